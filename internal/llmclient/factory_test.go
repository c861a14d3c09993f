// internal/llmclient/factory_test.go
package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/config"
)

// -- Test Cases: Factory Initialization (NewClient) --

// Verifies that the factory correctly initializes the LLMRouter by looking up
// configurations from the models map.
func TestNewClient_Success_RouterInitialization(t *testing.T) {
	logger := setupTestLogger(t)

	fastConfig := getValidLLMConfig()
	fastConfig.Model = "gemini-flash" // Differentiate models
	fastConfig.APIKey = "key-fast"

	powerfulConfig := getValidLLMConfig()
	powerfulConfig.Model = "gemini-pro"
	powerfulConfig.APIKey = "key-powerful"

	const fastName = "FastAlias"
	const powerfulName = "PowerfulAlias"

	cfg := config.LLMRouterConfig{
		DefaultFastModel:     fastName,
		DefaultPowerfulModel: powerfulName,
		Models: map[string]config.LLMModelConfig{
			fastName:     fastConfig,
			powerfulName: powerfulConfig,
		},
	}

	client, err := NewClient(cfg, logger)

	require.NoError(t, err, "NewClient should succeed for a valid configuration")
	require.NotNil(t, client)
	t.Cleanup(func() { client.Close() })

	// Type assertion to ensure the LLMRouter implementation was instantiated
	router, ok := client.(*LLMRouter)
	require.True(t, ok, "The created client should be of type *LLMRouter")

	// White box testing: Verify the underlying clients were created and configured correctly.
	fastClient, okFast := router.clients[schemas.TierFast].(*GeminiClient)
	require.True(t, okFast, "Fast client should be an instance of *GeminiClient")
	assert.Equal(t, "gemini-flash", fastClient.config.Model)
	assert.Equal(t, "key-fast", fastClient.config.APIKey)

	powerfulClient, okPowerful := router.clients[schemas.TierPowerful].(*GeminiClient)
	require.True(t, okPowerful, "Powerful client should be an instance of *GeminiClient")
	assert.Equal(t, "gemini-pro", powerfulClient.config.Model)
	assert.Equal(t, "key-powerful", powerfulClient.config.APIKey)
}

// Verifies models missing from the map are synthesized via provider inference.
func TestNewClient_Success_SynthesizedModels(t *testing.T) {
	logger := setupTestLogger(t)

	cfg := config.LLMRouterConfig{
		DefaultFastModel:     "gemini-2.5-flash",
		DefaultPowerfulModel: "gemini-2.5-pro",
		GeminiAPIKey:         "provider-level-key",
	}

	client, err := NewClient(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	router, ok := client.(*LLMRouter)
	require.True(t, ok)

	fastClient, okFast := router.clients[schemas.TierFast].(*GeminiClient)
	require.True(t, okFast)
	assert.Equal(t, "provider-level-key", fastClient.config.APIKey)
	assert.Equal(t, "gemini-2.5-flash", fastClient.config.Model)
}

// Verifies both tiers share one client instance when they name the same model.
func TestNewClient_SharedClientForSameModel(t *testing.T) {
	logger := setupTestLogger(t)

	cfg := config.LLMRouterConfig{
		DefaultFastModel:     "gemini-2.5-flash",
		DefaultPowerfulModel: "gemini-2.5-flash",
		GeminiAPIKey:         "shared-key",
	}

	client, err := NewClient(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	router, ok := client.(*LLMRouter)
	require.True(t, ok)
	assert.Same(t, router.clients[schemas.TierFast], router.clients[schemas.TierPowerful],
		"Identical tier models should share one client")
}

// Verifies the robustness check against missing default model names.
func TestNewClient_Failure_MissingConfiguration(t *testing.T) {
	logger := setupTestLogger(t)

	tests := []struct {
		name          string
		routerConfig  config.LLMRouterConfig
		expectedError string
	}{
		{
			name: "Missing DefaultFastModel Name",
			routerConfig: config.LLMRouterConfig{
				DefaultPowerfulModel: "gemini-2.5-pro",
				GeminiAPIKey:         "key",
			},
			expectedError: "configuration error: default_fast_model is not specified",
		},
		{
			name: "Missing DefaultPowerfulModel Name",
			routerConfig: config.LLMRouterConfig{
				DefaultFastModel: "gemini-2.5-flash",
				GeminiAPIKey:     "key",
			},
			expectedError: "configuration error: default_powerful_model is not specified",
		},
		{
			name:          "Empty Router Config",
			routerConfig:  config.LLMRouterConfig{},
			expectedError: "configuration error: default_fast_model is not specified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.routerConfig, logger)
			assert.Error(t, err)
			assert.Nil(t, client)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

// Verifies that the factory propagates errors from the specific client's constructor.
func TestNewClient_Failure_ProviderInitializationError(t *testing.T) {
	logger := setupTestLogger(t)

	// Gemini without any API key anywhere fails in NewGeminiClient.
	cfg := config.LLMRouterConfig{
		DefaultFastModel:     "gemini-2.5-flash",
		DefaultPowerfulModel: "gemini-2.5-pro",
	}

	client, err := NewClient(cfg, logger)
	assert.Error(t, err)
	assert.Nil(t, client)
	// Verifying the error originates from the GeminiClient constructor and is wrapped by the factory
	assert.Contains(t, err.Error(), "failed to initialize Fast tier LLM client (Model: gemini-2.5-flash):")
	assert.Contains(t, err.Error(), "Gemini API Key is required")
}

// Verifies the factory returns an error for unknown providers in any tier.
func TestNewClient_Failure_UnsupportedProvider(t *testing.T) {
	logger := setupTestLogger(t)
	validConfig := getValidLLMConfig()

	unsupportedConfig := getValidLLMConfig()
	unsupportedConfig.Provider = "unsupported-provider-xyz"

	const validName = "Valid"
	const unsupportedName = "Unsupported"

	cfg := config.LLMRouterConfig{
		DefaultFastModel:     validName,
		DefaultPowerfulModel: unsupportedName,
		Models: map[string]config.LLMModelConfig{
			validName:       validConfig,
			unsupportedName: unsupportedConfig,
		},
	}

	client, err := NewClient(cfg, logger)

	assert.Error(t, err, "NewClient should fail for an unsupported provider")
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to initialize Powerful tier LLM client (Model: Unsupported):")
	assert.Contains(t, err.Error(), "unknown or unsupported LLM provider configured: 'unsupported-provider-xyz'")
	// Ensure the error message guides the user by listing supported options
	assert.Contains(t, err.Error(), string(config.ProviderGemini), "Error message should list supported providers")
}

// Verifies the provider dispatch guards against an unset provider field.
func TestNewProviderClient_Failure_MissingProviderField(t *testing.T) {
	logger := setupTestLogger(t)

	mc := getValidLLMConfig()
	mc.Provider = ""

	client, err := newProviderClient(mc, logger)
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "LLM provider is not specified in the model configuration")
}

// -- Test Cases: Single-Model Construction (NewClientForModel) --

func TestNewClientForModel(t *testing.T) {
	logger := setupTestLogger(t)

	t.Run("builds an ollama client from a configured model", func(t *testing.T) {
		cfg := config.LLMRouterConfig{
			Models: map[string]config.LLMModelConfig{
				"local-coder": {
					Provider: config.ProviderOllama,
					Endpoint: "http://localhost:11434/v1/chat/completions",
				},
			},
		}

		client, err := NewClientForModel(cfg, "local-coder", logger)
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })

		_, ok := client.(*OpenAIClient)
		assert.True(t, ok, "Ollama models should be served by the chat-completions client")
	})

	t.Run("synthesizes a gemini client by name", func(t *testing.T) {
		cfg := config.LLMRouterConfig{GeminiAPIKey: "key"}

		client, err := NewClientForModel(cfg, "gemini-2.5-flash", logger)
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })

		_, ok := client.(*GeminiClient)
		assert.True(t, ok)
	})
}
