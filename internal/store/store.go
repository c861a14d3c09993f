package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides a PostgreSQL implementation of the run repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// PersistRun saves a finished run with its records and fix outcomes in a
// single transaction.
func (s *Store) PersistRun(ctx context.Context, result *schemas.RunResult) error {
	if result == nil {
		return fmt.Errorf("cannot persist a nil run result")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports pgx.ErrTxClosed; that
		// is the expected outcome, not an error worth logging.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := s.persistRun(ctx, tx, result); err != nil {
		return err
	}

	if len(result.Records) > 0 {
		if err := s.persistRecords(ctx, tx, result.RunID, result.Records); err != nil {
			return err
		}
	}

	if len(result.Outcomes) > 0 {
		if err := s.persistOutcomes(ctx, tx, result.RunID, result.Outcomes); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) persistRun(ctx context.Context, tx pgx.Tx, result *schemas.RunResult) error {
	trace, err := marshalJSONB(result.Trace)
	if err != nil {
		return fmt.Errorf("failed to encode trace: %w", err)
	}

	sql := `
        INSERT INTO runs (id, file_path, success, error, total_exceptions, total_fixes, completed, trace, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
    `
	_, err = tx.Exec(ctx, sql,
		result.RunID, result.FilePath, result.Success, result.Error,
		result.TotalExceptions, result.TotalFixes, result.Completed,
		trace, result.StartedAt.UTC(), result.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (s *Store) persistRecords(ctx context.Context, tx pgx.Tx, runID string, records []schemas.ExceptionRecord) error {
	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		frames, err := marshalJSONB(rec.Frames)
		if err != nil {
			return fmt.Errorf("failed to encode frames for record %s: %w", rec.ID, err)
		}
		causes, err := marshalJSONB(rec.Causes)
		if err != nil {
			return fmt.Errorf("failed to encode causes for record %s: %w", rec.ID, err)
		}
		contextLines, err := marshalJSONB(rec.Context)
		if err != nil {
			return fmt.Errorf("failed to encode context for record %s: %w", rec.ID, err)
		}

		// Nullable timestamps stay NULL; everything else is normalized to UTC.
		var occurredAt *time.Time
		if rec.Timestamp != nil {
			utc := rec.Timestamp.UTC()
			occurredAt = &utc
		}

		rows[i] = []interface{}{
			rec.ID, runID, i,
			occurredAt, rec.Level, rec.Type, rec.Message,
			frames, causes, rec.CauseChainTruncated,
			contextLines, string(rec.Severity),
			rec.FilePath, rec.StartLine,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"exception_records"},
		[]string{"id", "run_id", "record_index", "occurred_at", "level", "type", "message", "frames", "causes", "cause_chain_truncated", "context", "severity", "file_path", "start_line"},
		pgx.CopyFromRows(rows),
	)

	if err != nil {
		return fmt.Errorf("failed to copy exception records: %w", err)
	}
	if int(copyCount) != len(records) {
		return fmt.Errorf("mismatch in copied record count: expected %d, got %d", len(records), copyCount)
	}

	return nil
}

func (s *Store) persistOutcomes(ctx context.Context, tx pgx.Tx, runID string, outcomes []schemas.FixOutcome) error {
	batch := &pgx.Batch{}

	sql := `
        INSERT INTO fix_outcomes (run_id, record_index, exception_type, status, root_cause, fix_description, suggestions, prevention_tips, confidence, attempts, elapsed_ms)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
    `
	for _, o := range outcomes {
		suggestions, err := marshalJSONB(o.Suggestions)
		if err != nil {
			return fmt.Errorf("failed to encode suggestions for record %d: %w", o.RecordIndex, err)
		}
		tips, err := marshalJSONB(o.PreventionTips)
		if err != nil {
			return fmt.Errorf("failed to encode prevention tips for record %d: %w", o.RecordIndex, err)
		}

		batch.Queue(sql,
			runID, o.RecordIndex, o.ExceptionType, string(o.Status),
			o.RootCause, o.FixDescription, suggestions, tips,
			o.Confidence, o.Attempts, o.Elapsed.Milliseconds(),
		)
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	defer func() {
		_ = br.Close()
	}()

	for i := range outcomes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to execute batch insert for outcome %d: %w", i, err)
		}
	}

	return nil
}

// GetRecordsByRunID retrieves the exception records of a persisted run in
// their original extraction order.
func (s *Store) GetRecordsByRunID(ctx context.Context, runID string) ([]schemas.ExceptionRecord, error) {
	query := `
        SELECT id, occurred_at, level, type, message, frames, causes, cause_chain_truncated, context, severity, file_path, start_line
        FROM exception_records
        WHERE run_id = $1
        ORDER BY record_index ASC;
    `
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exception records: %w", err)
	}
	defer rows.Close()

	var records []schemas.ExceptionRecord
	for rows.Next() {
		var rec schemas.ExceptionRecord
		var occurredAt *time.Time
		var severityStr string
		var frames, causes, contextLines []byte

		err := rows.Scan(
			&rec.ID, &occurredAt, &rec.Level, &rec.Type, &rec.Message,
			&frames, &causes, &rec.CauseChainTruncated,
			&contextLines, &severityStr,
			&rec.FilePath, &rec.StartLine,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}

		if err := json.Unmarshal(frames, &rec.Frames); err != nil {
			return nil, fmt.Errorf("failed to decode frames for record %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(causes, &rec.Causes); err != nil {
			return nil, fmt.Errorf("failed to decode causes for record %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(contextLines, &rec.Context); err != nil {
			return nil, fmt.Errorf("failed to decode context for record %s: %w", rec.ID, err)
		}

		rec.Timestamp = occurredAt
		rec.Severity = schemas.Severity(severityStr)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// marshalJSONB encodes a value for a jsonb column, normalizing nil slices
// to empty arrays so the column never holds SQL-visible nulls.
func marshalJSONB(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return json.RawMessage("[]"), nil
	}
	return data, nil
}
