package history

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const saveTimeout = 5 * time.Second

// Recorder hands entries to a Store from its own goroutine so callers never
// wait on the database. When the buffer is full the entry is dropped.
type Recorder struct {
	store   Store
	entries chan Entry
	log     *zap.Logger
	done    chan struct{}
}

func NewRecorder(store Store, buffer int, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		store:   store,
		entries: make(chan Entry, buffer),
		log:     log,
		done:    make(chan struct{}),
	}
}

func (r *Recorder) Record(e Entry) {
	select {
	case r.entries <- e:
	default:
		r.log.Warn("history buffer full, dropping entry",
			zap.String("room", e.RoomCode),
			zap.String("kind", string(e.Kind)))
	}
}

// Run drains entries until ctx is cancelled, then flushes what is buffered.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case e := <-r.entries:
			r.save(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.entries:
					r.save(e)
				default:
					return
				}
			}
		}
	}
}

// Done is closed after Run returns.
func (r *Recorder) Done() <-chan struct{} { return r.done }

func (r *Recorder) save(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.store.Save(ctx, e); err != nil {
		r.log.Error("saving history entry",
			zap.String("room", e.RoomCode),
			zap.String("kind", string(e.Kind)),
			zap.Error(err))
	}
}
