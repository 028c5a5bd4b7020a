package room

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
)

type delivery struct {
	roomID    string
	to        string
	event     string
	data      any
	except    string
	broadcast bool
}

// recordingRelay captures everything the registry emits.
type recordingRelay struct {
	mu         sync.Mutex
	deliveries []delivery
	subs       map[string]map[string]bool
	dropped    []string
}

func newRecordingRelay() *recordingRelay {
	return &recordingRelay{subs: make(map[string]map[string]bool)}
}

func (r *recordingRelay) Subscribe(roomID, participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[roomID] == nil {
		r.subs[roomID] = make(map[string]bool)
	}
	r.subs[roomID][participantID] = true
}

func (r *recordingRelay) Unsubscribe(roomID, participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs[roomID], participantID)
}

func (r *recordingRelay) Publish(roomID, event string, data any, except string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, delivery{roomID: roomID, event: event, data: data, except: except, broadcast: true})
}

func (r *recordingRelay) Send(participantID, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, delivery{to: participantID, event: event, data: data})
}

func (r *recordingRelay) Drop(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, participantID)
}

func (r *recordingRelay) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
}

func (r *recordingRelay) published(event string) []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery
	for _, d := range r.deliveries {
		if d.broadcast && d.event == event {
			out = append(out, d)
		}
	}
	return out
}

func (r *recordingRelay) sentTo(participantID, event string) []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery
	for _, d := range r.deliveries {
		if !d.broadcast && d.to == participantID && d.event == event {
			out = append(out, d)
		}
	}
	return out
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *recordingRelay) {
	t.Helper()
	relay := newRecordingRelay()
	opts = append([]Option{WithGracePeriod(40 * time.Millisecond), WithEndDelay(20 * time.Millisecond)}, opts...)
	return NewRegistry(relay, logs.GetLoggerFromLevel(slog.LevelDebug), opts...), relay
}

// mustInfo returns the live room or fails the test.
func mustInfo(t *testing.T, g *Registry, roomID string) Info {
	t.Helper()
	info, ok := g.Room(roomID)
	if !ok {
		t.Fatalf("room %s should exist", roomID)
	}
	return info
}

func memberIDs(info Info) []string {
	ids := make([]string, 0, len(info.Participants))
	for _, p := range info.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}
