package util

import (
	"sync"

	"go.uber.org/zap/zapcore"
)

// LogEntry is one captured log line, shaped for the API's log stream.
type LogEntry struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// LogRing keeps the most recent log entries in a fixed-size ring so clients
// that connect late can still see what the process has been doing.
type LogRing struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
	notify  func(LogEntry)
}

func NewLogRing(capacity int) *LogRing {
	if capacity <= 0 {
		capacity = 500
	}
	return &LogRing{entries: make([]LogEntry, capacity)}
}

// Notify registers a callback invoked after every append. The callback runs
// outside the ring lock and must not block.
func (r *LogRing) Notify(fn func(LogEntry)) {
	r.mu.Lock()
	r.notify = fn
	r.mu.Unlock()
}

func (r *LogRing) Append(e LogEntry) {
	r.mu.Lock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	fn := r.notify
	r.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// Recent returns the buffered entries, oldest first.
func (r *LogRing) Recent() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]LogEntry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]LogEntry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

// ringCore tees committed log entries into a LogRing.
type ringCore struct {
	zapcore.LevelEnabler
	ring *LogRing
}

func NewRingCore(ring *LogRing, enab zapcore.LevelEnabler) zapcore.Core {
	return ringCore{LevelEnabler: enab, ring: ring}
}

func (c ringCore) With(fields []zapcore.Field) zapcore.Core { return c }

func (c ringCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c ringCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	c.ring.Append(LogEntry{
		Level:     ent.Level.String(),
		Message:   ent.Message,
		Timestamp: ent.Time.UnixMilli(),
	})
	return nil
}

func (c ringCore) Sync() error { return nil }
