// Package autosave decouples high-frequency local edits from the remote
// write path. A Coordinator owns a dirty flag and two debounce tiers: a
// short one for field-level edits and a long one for whole-document
// autosave. "Save now" and teardown collapse both into one immediate flush.
package autosave

import (
	"context"
	"log"
	"sync"
	"time"
)

// FlushFunc writes the full current document state to the remote store. It
// must read that state itself at dispatch time, not from a snapshot taken
// when the timer started.
type FlushFunc func(ctx context.Context) error

type Coordinator struct {
	flush         FlushFunc
	fieldDelay    time.Duration
	documentDelay time.Duration

	// flushMu serializes remote writes so two flushes never race.
	flushMu sync.Mutex

	mu            sync.Mutex
	dirty         bool
	seq           uint64
	lastErr       error
	closed        bool
	fieldTimer    *time.Timer
	documentTimer *time.Timer
}

// New creates a coordinator around flush. Non-positive delays fall back to
// the defaults (750ms field tier, 30s document tier).
func New(flush FlushFunc, fieldDelay, documentDelay time.Duration) *Coordinator {
	if fieldDelay <= 0 {
		fieldDelay = 750 * time.Millisecond
	}
	if documentDelay <= 0 {
		documentDelay = 30 * time.Second
	}
	return &Coordinator{
		flush:         flush,
		fieldDelay:    fieldDelay,
		documentDelay: documentDelay,
	}
}

// MarkDirty records a local edit. The field timer restarts on every call;
// the document timer arms once and fires even while edits keep streaming
// in, so a long burst of typing still autosaves.
func (c *Coordinator) MarkDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.dirty = true
	c.seq++

	if c.fieldTimer != nil {
		c.fieldTimer.Stop()
	}
	c.fieldTimer = time.AfterFunc(c.fieldDelay, c.timerFlush)

	if c.documentTimer == nil {
		c.documentTimer = time.AfterFunc(c.documentDelay, c.timerFlush)
	}
}

// SaveNow cancels pending timers and flushes immediately if dirty.
func (c *Coordinator) SaveNow(ctx context.Context) error {
	return c.flushIfDirty(ctx)
}

// Close cancels pending timers and performs one final flush when dirty, so
// navigating away does not silently drop recent edits. The coordinator
// accepts no edits afterwards.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.stopTimersLocked()
	c.mu.Unlock()
	return c.flushIfDirty(ctx)
}

// Dirty reports whether local edits are waiting for a flush.
func (c *Coordinator) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// LastError returns the most recent flush failure, cleared by the next
// successful flush. It is an indicator for the caller to surface, never a
// panic path.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Coordinator) timerFlush() {
	if err := c.flushIfDirty(context.Background()); err != nil {
		log.Printf("autosave: flush failed (will retry on next edit or save): %v", err)
	}
}

// flushIfDirty performs at most one remote write. Edits that arrive after
// the write is dispatched bump seq, so the dirty flag survives them and a
// later flush picks them up.
func (c *Coordinator) flushIfDirty(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	dispatched := c.seq
	c.stopTimersLocked()
	c.mu.Unlock()

	err := c.flush(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		return err
	}
	c.lastErr = nil
	if c.seq == dispatched {
		c.dirty = false
	}
	return nil
}

func (c *Coordinator) stopTimersLocked() {
	if c.fieldTimer != nil {
		c.fieldTimer.Stop()
		c.fieldTimer = nil
	}
	if c.documentTimer != nil {
		c.documentTimer.Stop()
		c.documentTimer = nil
	}
}
