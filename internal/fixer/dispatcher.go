// internal/fixer/dispatcher.go
package fixer

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/config"
	"github.com/xkilldash9x/logsurgeon/internal/llmutil"
)

const (
	minConcurrency = 1
	maxConcurrency = 64
	// maxExcerptLen bounds the raw-response excerpt carried by degraded
	// outcomes.
	maxExcerptLen = 500
)

// SourceResolver provides optional source snippets for prompt enrichment.
// A nil resolver simply produces prompts without source sections.
type SourceResolver interface {
	Snippet(frame schemas.StackFrame) (string, bool)
}

// fixPayload is the JSON contract the collaborator is instructed to return.
type fixPayload struct {
	RootCause       string              `json:"root_cause"`
	FixDescription  string              `json:"fix_description"`
	CodeSuggestions []suggestionPayload `json:"code_suggestions"`
	PreventionTips  []string            `json:"prevention_tips"`
	Confidence      float64             `json:"confidence"`
}

type suggestionPayload struct {
	File        string `json:"file"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// Dispatcher fans exception records out to the LLM collaborator under a
// bounded worker pool with request pacing. Every record yields exactly one
// outcome in input order; per-record failures degrade that record's outcome
// and never abort the batch.
type Dispatcher struct {
	cfg     config.DispatcherConfig
	logger  *zap.Logger
	client  schemas.LLMClient
	source  SourceResolver
	limiter *rate.Limiter

	// backoffFactory builds the per-record retry strategy; tests swap it
	// for a zero-delay variant.
	backoffFactory func() backoff.BackOff
}

// NewDispatcher wires the fix-generation pool. The source resolver may be
// nil; the client may not.
func NewDispatcher(cfg config.DispatcherConfig, client schemas.LLMClient, source SourceResolver, logger *zap.Logger) (*Dispatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("dispatcher requires an LLM client")
	}
	if cfg.MaxConcurrency < minConcurrency {
		cfg.MaxConcurrency = minConcurrency
	}
	if cfg.MaxConcurrency > maxConcurrency {
		cfg.MaxConcurrency = maxConcurrency
	}

	// A non-positive rate disables pacing entirely.
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Dispatcher{
		cfg:     cfg,
		logger:  logger.Named("dispatcher"),
		client:  client,
		source:  source,
		limiter: rate.NewLimiter(limit, 1),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 0 // retry count alone bounds the attempts
			return b
		},
	}, nil
}

// Dispatch asks the collaborator for a fix per record and returns the
// outcomes in record order regardless of completion order. Cancelling ctx
// stops new requests from being issued; requests already in flight run to
// completion or to their own timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, records []schemas.ExceptionRecord) []schemas.FixOutcome {
	if len(records) == 0 {
		return []schemas.FixOutcome{}
	}

	d.logger.Info("Dispatching fix generation.",
		zap.Int("records", len(records)),
		zap.Int("concurrency", d.cfg.MaxConcurrency))

	outcomes := make([]schemas.FixOutcome, len(records))

	// Each worker owns exactly one result cell, so no further
	// synchronization is needed around the slice.
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.MaxConcurrency)
	for i := range records {
		g.Go(func() error {
			outcomes[i] = d.dispatchOne(ctx, i, &records[i])
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (d *Dispatcher) dispatchOne(ctx context.Context, idx int, rec *schemas.ExceptionRecord) schemas.FixOutcome {
	started := time.Now()
	outcome := schemas.FixOutcome{
		RecordIndex:   idx,
		ExceptionType: rec.Type,
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Warn("Dispatch cancelled while waiting for rate limiter.",
			zap.Int("record", idx), zap.Error(err))
		return d.fail(outcome, started, 0, err)
	}

	req := schemas.GenerationRequest{
		SystemPrompt: fixSystemPrompt,
		UserPrompt:   buildUserPrompt(rec, d.resolveSnippet(rec), d.cfg.MaxFrames),
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     d.cfg.Temperature,
			ForceJSONFormat: true,
		},
	}

	var response string
	attempts := 0
	operation := func() error {
		attempts++
		// The call deadline is independent of the run context: an already
		// issued request is allowed to finish even when the run is being
		// cancelled, so partial batches still collect real outcomes.
		callCtx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout())
		defer cancel()

		resp, err := d.client.Generate(callCtx, req)
		if err != nil {
			if ctx.Err() != nil {
				// The run is gone; burning the retry budget is pointless.
				return backoff.Permanent(err)
			}
			return err
		}
		response = resp
		return nil
	}

	retry := backoff.WithMaxRetries(d.backoffFactory(), uint64(d.cfg.MaxRetries))
	if err := backoff.Retry(operation, retry); err != nil {
		d.logger.Warn("Fix generation failed after retries.",
			zap.Int("record", idx),
			zap.String("type", rec.Type),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return d.fail(outcome, started, attempts, err)
	}

	d.decodeResponse(&outcome, response)
	outcome.Attempts = attempts
	outcome.Elapsed = time.Since(started)

	d.logger.Debug("Fix outcome recorded.",
		zap.Int("record", idx),
		zap.String("status", string(outcome.Status)),
		zap.Float64("confidence", outcome.Confidence))
	return outcome
}

// decodeResponse fills the outcome from the raw response. Undecodable
// responses downgrade to UNPARSEABLE with a sentinel confidence and a
// truncated excerpt instead of the structured fields.
func (d *Dispatcher) decodeResponse(outcome *schemas.FixOutcome, response string) {
	payload, err := llmutil.ParseJSONResponse[fixPayload](response)
	if err != nil {
		outcome.Status = schemas.StatusUnparseable
		outcome.Confidence = schemas.UnparseableConfidence
		outcome.RootCause = llmutil.Truncate(response, maxExcerptLen)
		return
	}

	outcome.RootCause = payload.RootCause
	outcome.FixDescription = payload.FixDescription
	outcome.PreventionTips = payload.PreventionTips
	outcome.Confidence = clampConfidence(payload.Confidence)

	for _, s := range payload.CodeSuggestions {
		outcome.Suggestions = append(outcome.Suggestions, schemas.CodeSuggestion{
			File:        s.File,
			Symbol:      s.Symbol,
			Description: s.Description,
			Code:        llmutil.CleanCodeOutput(s.Code),
			Explanation: s.Explanation,
		})
	}

	if payload.RootCause == "" || payload.FixDescription == "" {
		outcome.Status = schemas.StatusPartiallyFixed
		return
	}
	outcome.Status = schemas.StatusFixed
}

func (d *Dispatcher) fail(outcome schemas.FixOutcome, started time.Time, attempts int, err error) schemas.FixOutcome {
	outcome.Status = schemas.StatusFailed
	outcome.Confidence = 0
	outcome.RootCause = llmutil.Truncate(fmt.Sprintf("fix generation failed: %v", err), maxExcerptLen)
	outcome.Attempts = attempts
	outcome.Elapsed = time.Since(started)
	return outcome
}

func (d *Dispatcher) resolveSnippet(rec *schemas.ExceptionRecord) string {
	if d.source == nil {
		return ""
	}
	frame := rec.InnermostFrame()
	if frame == nil {
		return ""
	}
	snippet, ok := d.source.Snippet(*frame)
	if !ok {
		return ""
	}
	return snippet
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
