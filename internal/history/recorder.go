//go:generate go run go.uber.org/mock/mockgen -source=recorder.go -destination=../mocks/mock_store.go -package=mocks
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/manpreetbhatti/coderoom/backend/internal/db"
	"github.com/manpreetbhatti/coderoom/backend/internal/room"
)

const DefaultQueueSize = 256

// Store persists finished sessions.
type Store interface {
	SaveSession(s db.Session) (int64, error)
}

// Recorder writes room summaries to the store from a background worker so
// that tearing a room down never waits on disk.
type Recorder struct {
	store Store
	queue chan room.Summary
	log   *slog.Logger

	stopped atomic.Bool
	dropped atomic.Uint64
	saved   atomic.Uint64

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(store Store, queueSize int, log *slog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Recorder{
		store: store,
		queue: make(chan room.Summary, queueSize),
		log:   log,
		stop:  make(chan struct{}),
	}
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.run()
	r.log.Info("History recorder started", "queue", cap(r.queue))
}

// Stop writes whatever is still queued, then returns.
func (r *Recorder) Stop() {
	if r.stopped.Swap(true) {
		return
	}
	close(r.stop)
	r.wg.Wait()
	r.log.Info("History recorder stopped", "saved", r.saved.Load(), "dropped", r.dropped.Load())
}

// Record queues a summary. It never blocks: when the queue is full or the
// recorder has stopped the summary is dropped.
func (r *Recorder) Record(summary room.Summary) {
	if r.stopped.Load() {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- summary:
	default:
		r.dropped.Add(1)
		r.log.Warn("History queue full, dropping session", "room", summary.RoomID)
	}
}

// Saved and Dropped count summaries since start.
func (r *Recorder) Saved() uint64   { return r.saved.Load() }
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stop:
			for {
				select {
				case s := <-r.queue:
					r.save(s)
				default:
					return
				}
			}
		case s := <-r.queue:
			r.save(s)
		}
	}
}

func (r *Recorder) save(summary room.Summary) {
	id, err := r.store.SaveSession(toSession(summary))
	if err != nil {
		r.log.Error("Failed to save session", "room", summary.RoomID, "error", err)
		return
	}
	r.saved.Add(1)
	r.log.Debug("Session saved", "room", summary.RoomID, "session", id, "reason", summary.Reason)
}

func toSession(s room.Summary) db.Session {
	return db.Session{
		RoomID:           s.RoomID,
		OpenedAt:         s.OpenedAt,
		ClosedAt:         s.ClosedAt,
		Reason:           string(s.Reason),
		PeakParticipants: s.PeakParticipants,
		Pages: lo.Map(s.Pages, func(p room.Page, _ int) db.SessionPage {
			return db.SessionPage{
				PageID:      p.ID,
				Name:        p.Name,
				Language:    p.Language,
				CreatedBy:   p.CreatedBy,
				Size:        len(p.Code),
				ContentHash: hashContent(p.Code),
			}
		}),
	}
}

func hashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:8])
}
