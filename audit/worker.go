package audit

import (
	"context"
	"log/slog"
	"sync"
)

// Worker decouples request handling from audit persistence: entries go onto
// a buffered channel and a single goroutine drains them into the sink. A
// full buffer drops entries rather than blocking the caller.
type Worker struct {
	entryCh chan Entry
	sink    Sink
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewWorker(sink Sink, bufferSize int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		entryCh: make(chan Entry, bufferSize),
		sink:    sink,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ctx.Done():
				slog.Info("draining audit entries before shutdown", "remaining_entries", len(w.entryCh))
				for len(w.entryCh) > 0 {
					entry := <-w.entryCh
					if err := w.sink.Save(context.Background(), entry); err != nil {
						slog.Error("failed to save audit entry during shutdown", "error", err, "action", entry.Action)
					}
				}
				return
			case entry := <-w.entryCh:
				if err := w.sink.Save(w.ctx, entry); err != nil {
					slog.Error("failed to save audit entry", "error", err, "action", entry.Action)
				}
			}
		}
	}()
}

func (w *Worker) Record(entry Entry) {
	select {
	case w.entryCh <- entry:
	default:
		slog.Warn("audit buffer full, dropping entry", "action", entry.Action)
	}
}

func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
	close(w.entryCh)
}
