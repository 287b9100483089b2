package syncer

import (
	"context"
	"fmt"
	"time"
)

// CursorKey is the store key of the last successful sync time.
const CursorKey = "sync:lastSyncTimestamp"

// Cursor returns the time of the last successful pass, or nil if the client never synced.
func (e *Engine) Cursor(ctx context.Context) (*time.Time, error) {
	e.cursorMu.Lock()
	defer e.cursorMu.Unlock()

	raw, ok, err := e.store.Get(ctx, CursorKey)
	if err != nil {
		return nil, fmt.Errorf("read sync cursor: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// Starting over only costs a full pull.
		e.log.Warn("sync cursor is unreadable, doing a full sync", "value", raw, "error", err)
		return nil, nil
	}
	return &ts, nil
}

// setCursor moves the cursor. It is only called at the end of a successful pass.
func (e *Engine) setCursor(ctx context.Context, ts time.Time) error {
	e.cursorMu.Lock()
	defer e.cursorMu.Unlock()

	if err := e.store.Set(ctx, CursorKey, ts.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write sync cursor: %w", err)
	}
	return nil
}

// ResetCursor forgets the last sync time so the next pass pulls and pushes everything.
func (e *Engine) ResetCursor(ctx context.Context) error {
	e.cursorMu.Lock()
	defer e.cursorMu.Unlock()

	if err := e.store.Remove(ctx, CursorKey); err != nil {
		return fmt.Errorf("reset sync cursor: %w", err)
	}
	return nil
}
