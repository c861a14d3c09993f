// internal/extract/engine.go
package extract

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/config"
)

const defaultMaxLineBytes = 1 << 20

// ctxCheckInterval is how many scanned lines pass between context checks
// while reading large files.
const ctxCheckInterval = 4096

// Engine drives the full extraction pass: classify every line, detect
// exception starts, and delegate trace reassembly to the Assembler. Malformed
// content degrades individual records; only an unreadable source fails the
// pass.
type Engine struct {
	cfg       config.ExtractionConfig
	logger    *zap.Logger
	assembler *Assembler
}

// NewEngine creates an extraction engine with the given settings.
func NewEngine(cfg config.ExtractionConfig, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		logger:    logger.Named("extract"),
		assembler: NewAssembler(cfg),
	}
}

// Extract scans an in-memory sequence of raw lines. It is the entry point
// for callers that already hold the content, such as the live watcher.
func (e *Engine) Extract(lines []string) []schemas.ExceptionRecord {
	return e.finalize(e.scan(ClassifyAll(lines)), "")
}

// ExtractFile reads and scans the log file at path. Files ending in .gz or
// .br are decompressed transparently. The returned records are ordered by
// their position in the file.
func (e *Engine) ExtractFile(ctx context.Context, path string) ([]schemas.ExceptionRecord, error) {
	raws, err := e.readLines(ctx, path)
	if err != nil {
		return nil, err
	}

	records := e.finalize(e.scan(ClassifyAll(raws)), path)
	e.logger.Info("Log extraction complete.",
		zap.String("file", path),
		zap.Int("lines", len(raws)),
		zap.Int("exceptions", len(records)))
	return records, nil
}

func (e *Engine) readLines(ctx context.Context, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("log path %q is a directory", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		reader = gz
	case strings.HasSuffix(path, ".br"):
		reader = brotli.NewReader(file)
	}

	maxBytes := e.cfg.MaxLineBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxLineBytes
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBytes)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return lines, nil
}

// scan is the single forward pass over the classified lines. The cursor
// jumps past each assembled trace so nested "Caused by:" lines are never
// re-detected as fresh records.
func (e *Engine) scan(lines []schemas.LogLine) []schemas.ExceptionRecord {
	records := []schemas.ExceptionRecord{}
	floor := 0
	for i := 0; i < len(lines); {
		if !IsExceptionStart(lines[i].Message) {
			i++
			continue
		}

		rec, next := e.assembler.Assemble(lines, i, floor)
		if next <= i {
			next = i + 1
		}
		if rec.Type != "" {
			records = append(records, rec)
		} else {
			e.logger.Debug("Dropped typeless exception candidate.", zap.Int("line", lines[i].Number))
		}
		floor, i = next, next
	}
	return records
}

func (e *Engine) finalize(records []schemas.ExceptionRecord, path string) []schemas.ExceptionRecord {
	for i := range records {
		stampRecord(&records[i], path)
	}
	return records
}

// stampRecord assigns the record ID and source path, recursing through the
// cause chain. IDs are derived from stable inputs rather than drawn randomly
// so that re-running extraction over the same input yields identical records.
func stampRecord(rec *schemas.ExceptionRecord, path string) {
	rec.FilePath = path
	seed := fmt.Sprintf("%s|%d|%s", path, rec.StartLine, rec.Type)
	rec.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
	for i := range rec.Causes {
		stampRecord(&rec.Causes[i], path)
	}
}
