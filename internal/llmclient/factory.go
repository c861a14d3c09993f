// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/config"
)

// NewClient is a factory function that builds the tiered LLM router from the
// routing configuration. Model names are resolved through the config layer,
// which synthesizes entries for models absent from the models map.
func NewClient(cfg config.LLMRouterConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	if cfg.DefaultFastModel == "" {
		return nil, fmt.Errorf("configuration error: default_fast_model is not specified")
	}
	if cfg.DefaultPowerfulModel == "" {
		return nil, fmt.Errorf("configuration error: default_powerful_model is not specified")
	}

	fastClient, err := newTierClient(cfg, cfg.DefaultFastModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Fast tier LLM client (Model: %s): %w", cfg.DefaultFastModel, err)
	}

	// When both tiers name the same model, share one client instead of
	// holding two identical connection pools.
	if cfg.DefaultPowerfulModel == cfg.DefaultFastModel {
		return NewLLMRouter(logger, fastClient, fastClient)
	}

	powerfulClient, err := newTierClient(cfg, cfg.DefaultPowerfulModel, logger)
	if err != nil {
		fastClient.Close()
		return nil, fmt.Errorf("failed to initialize Powerful tier LLM client (Model: %s): %w", cfg.DefaultPowerfulModel, err)
	}

	return NewLLMRouter(logger, fastClient, powerfulClient)
}

// NewClientForModel builds a single provider client for one model name,
// bypassing the tier router. The dispatcher uses this when an explicit model
// override is configured.
func NewClientForModel(cfg config.LLMRouterConfig, model string, logger *zap.Logger) (schemas.LLMClient, error) {
	return newTierClient(cfg, model, logger)
}

func newTierClient(cfg config.LLMRouterConfig, model string, logger *zap.Logger) (schemas.LLMClient, error) {
	mc, err := cfg.Resolve(model)
	if err != nil {
		return nil, err
	}
	return newProviderClient(mc, logger)
}

func newProviderClient(mc config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch mc.Provider {
	case "":
		return nil, fmt.Errorf("LLM provider is not specified in the model configuration")
	case config.ProviderGemini:
		return NewGeminiClient(mc, logger)
	case config.ProviderOpenAI, config.ProviderOllama:
		return NewOpenAIClient(mc, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s %s %s]",
			mc.Provider, config.ProviderGemini, config.ProviderOpenAI, config.ProviderOllama)
	}
}
