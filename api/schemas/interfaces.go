package schemas

import "context"

// -- Store Interface --

// Store defines a generic interface for persisting completed runs. The
// abstraction keeps the pipeline independent of the specific database
// implementation (e.g., PostgreSQL, in-memory).
type Store interface {
	// PersistRun saves a finished run with its records and fix outcomes.
	PersistRun(ctx context.Context, result *RunResult) error
	// GetRecordsByRunID retrieves all exception records of a persisted run.
	GetRecordsByRunID(ctx context.Context, runID string) ([]ExceptionRecord, error)
}

// -- Pipeline Interfaces --

// Extractor scans a log source and produces the ordered sequence of
// exception records found in it. Implementations must be restartable:
// extracting the same input twice yields identical sequences.
type Extractor interface {
	// ExtractFile reads and scans the file at path. It fails only when the
	// source cannot be read at all; malformed content degrades individual
	// records, never the scan.
	ExtractFile(ctx context.Context, path string) ([]ExceptionRecord, error)
}

// Dispatcher fans extracted records out to the fix-generation collaborator
// and returns one outcome per record, preserving input order regardless of
// completion order. Per-record failures are absorbed into degraded
// outcomes; Dispatch itself never fails.
type Dispatcher interface {
	Dispatch(ctx context.Context, records []ExceptionRecord) []FixOutcome
}

// Reporter renders a finished run into one output format.
type Reporter interface {
	// Write renders the run result into the reporter's format.
	Write(result *RunResult) error
	// Close flushes and releases the underlying writer.
	Close() error
}

// Publisher pushes actionable fix outcomes to an external tracker.
type Publisher interface {
	// PublishRun creates one tracker entry per actionable outcome and
	// returns the entry URLs.
	PublishRun(ctx context.Context, result *RunResult) ([]string, error)
}

// -- LLM Client Schemas & Interface --

// ModelTier allows for selecting a large language model based on a
// preference for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions provides detailed parameters to control the text
// generation process of the LLM, such as creativity (temperature) and
// output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output valid JSON.
	TopP            float64 `json:"top_p"`             // Nucleus sampling parameter.
	TopK            int     `json:"top_k"`             // Top-k sampling parameter.
	MaxTokens       int     `json:"max_tokens"`        // Hard output cap; 0 uses the provider default.
}

// GenerationRequest encapsulates a complete request to the LLM, including
// the system and user prompts, the desired model tier, and generation
// options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"` // Instructions for the model's persona and task.
	UserPrompt   string            `json:"user_prompt"`   // The specific query or input from the user.
	Tier         ModelTier         `json:"tier"`          // The desired model tier (fast or powerful).
	Options      GenerationOptions `json:"options"`       // Advanced generation parameters.
}

// LLMClient defines a standard interface for interacting with a Large
// Language Model, abstracting the specifics of the underlying provider
// (e.g., Gemini, OpenAI-compatible endpoints).
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client (e.g., network connections).
	Close() error
}
