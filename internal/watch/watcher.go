// internal/watch/watcher.go
package watch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/config"
	"github.com/xkilldash9x/logsurgeon/internal/extract"
)

// defaultFlushInterval closes a buffered burst when no continuation line
// arrives within it.
const defaultFlushInterval = 500 * time.Millisecond

// Event is one live-detected exception. Outcome is set when a dispatcher is
// attached and nil otherwise.
type Event struct {
	Record  schemas.ExceptionRecord
	Outcome *schemas.FixOutcome
}

// Watcher tails a live log file, buffers exception bursts, and emits one
// Event per extracted record. It survives log rotation by reopening the
// file.
type Watcher struct {
	logger        *zap.Logger
	engine        *extract.Engine
	dispatcher    schemas.Dispatcher
	path          string
	flushInterval time.Duration
	fromStart     bool
	events        chan<- Event

	wg sync.WaitGroup
}

// NewWatcher initializes a watcher for the given log file. The dispatcher
// may be nil, in which case events carry records without fix outcomes.
func NewWatcher(logger *zap.Logger, engine *extract.Engine, dispatcher schemas.Dispatcher, cfg config.WatchConfig, path string, events chan<- Event) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("a log file path is required for watch mode")
	}
	if engine == nil || events == nil {
		return nil, fmt.Errorf("cannot initialize watcher with nil dependencies")
	}

	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	if dispatcher == nil {
		logger.Debug("Watch: no dispatcher attached. Fix generation will be unavailable.")
	}

	return &Watcher{
		logger:        logger.Named("watch"),
		engine:        engine,
		dispatcher:    dispatcher,
		path:          path,
		flushInterval: flushInterval,
		fromStart:     cfg.FromStart,
		events:        events,
	}, nil
}

// Start begins tailing the log file. The monitor loop runs until ctx is
// cancelled or the tailer closes; Wait blocks until it and any in-flight
// burst handlers have finished.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("Starting live log watcher...", zap.String("file", w.path))

	whence := io.SeekEnd
	if w.fromStart {
		whence = io.SeekStart
	}

	t, err := tail.TailFile(w.path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail log file: %w", err)
	}

	w.wg.Add(1)
	go w.monitorLoop(ctx, t)
	return nil
}

// Wait blocks until the monitor loop and all burst handlers have returned.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

// The core loop that buffers multi-line exception bursts. A burst opens on
// a line the detector recognizes as an exception start, collects
// continuation lines, and closes when a fresh log entry arrives or the
// flush interval elapses with no input.
func (w *Watcher) monitorLoop(ctx context.Context, t *tail.Tail) {
	defer w.wg.Done()
	defer func() {
		t.Stop()
		t.Cleanup()
	}()

	var burst []string
	timeout := time.NewTimer(w.flushInterval)
	// Start the timer in a stopped state.
	if !timeout.Stop() {
		<-timeout.C
	}

	flush := func() {
		if len(burst) == 0 {
			return
		}
		// Hand the handler its own copy so the buffer can be reused.
		lines := make([]string, len(burst))
		copy(lines, burst)
		burst = nil

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.handleBurst(ctx, lines)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			w.logger.Info("Stopping log watcher.")
			return

		case line, ok := <-t.Lines:
			if !ok {
				flush()
				w.logger.Info("Log file tailer channel closed.")
				return
			}
			if line.Err != nil {
				w.logger.Warn("Error reading from log file", zap.Error(line.Err))
				continue
			}

			cls := extract.ClassifyLine(line.Text, 0)
			isNewEntry := cls.Class == schemas.LineEntry
			starts := extract.IsExceptionStart(cls.Message)

			// A fresh structured entry terminates the burst in progress.
			if len(burst) > 0 && isNewEntry {
				flush()
				if !timeout.Stop() {
					select {
					case <-timeout.C:
					default:
					}
				}
			}

			if len(burst) == 0 {
				if starts {
					burst = append(burst, line.Text)
					timeout.Reset(w.flushInterval)
				}
			} else {
				burst = append(burst, line.Text)
				timeout.Reset(w.flushInterval)
			}

		case <-timeout.C:
			flush()
		}
	}
}

// handleBurst extracts records from one buffered burst, asks the dispatcher
// for fixes when one is attached, and emits the events.
func (w *Watcher) handleBurst(ctx context.Context, lines []string) {
	records := w.engine.Extract(lines)
	if len(records) == 0 {
		return
	}
	for i := range records {
		records[i].FilePath = w.path
	}
	w.logger.Info("Live exceptions detected.", zap.Int("count", len(records)))

	var outcomes []schemas.FixOutcome
	if w.dispatcher != nil {
		outcomes = w.dispatcher.Dispatch(ctx, records)
	}

	for i := range records {
		ev := Event{Record: records[i]}
		if i < len(outcomes) {
			outcome := outcomes[i]
			ev.Outcome = &outcome
		}

		select {
		case w.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
