package database

import (
	"sync"
	"time"
)

// ProfileEntry records one executed statement.
type ProfileEntry struct {
	SQL      string
	Args     []any
	Duration time.Duration
	At       time.Time
}

// Profiler accumulates an in-memory log of executed statements.
// The log is never auto-trimmed; bounding its memory is the caller's
// responsibility via Clear.
type Profiler struct {
	mu      sync.Mutex
	enabled bool
	entries []ProfileEntry
}

// NewProfiler returns a disabled profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// Enable turns statement recording on or off.
func (p *Profiler) Enable(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = on
}

// Enabled reports whether recording is active.
func (p *Profiler) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Record appends one statement to the log when enabled.
func (p *Profiler) Record(sql string, args []any, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	p.entries = append(p.entries, ProfileEntry{
		SQL:      sql,
		Args:     args,
		Duration: d,
		At:       time.Now(),
	})
}

// Entries returns a copy of the recorded log.
func (p *Profiler) Entries() []ProfileEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ProfileEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Clear discards the recorded log.
func (p *Profiler) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = nil
}
