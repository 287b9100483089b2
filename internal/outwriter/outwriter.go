// Package outwriter has output and writer logic.
package outwriter

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/schema"
	"golang.org/x/term"
)

// timeLayout is used for every timestamp in table output.
const timeLayout = "2006-01-02 15:04:05"

// OutWriter renders status reports as tables or JSON.
type OutWriter struct {
	stdout io.Writer
	stderr io.Writer
}

// NewOutWriter creates an output writer bound to the process stdout and stderr.
func NewOutWriter() *OutWriter {
	return &OutWriter{stdout: os.Stdout, stderr: os.Stderr}
}

// NewOutWriterTo creates an output writer bound to the given writers.
func NewOutWriterTo(stdout, stderr io.Writer) *OutWriter {
	return &OutWriter{stdout: stdout, stderr: stderr}
}

// WriteCacheStats prints the cache statistics.
func (ow *OutWriter) WriteCacheStats(stats schema.CacheStats, cfg *contract.Config) error {
	return ow.dispatch(cfg, stats, "cache stats", func(w io.Writer) error {
		return writeCacheStatsTable(w, stats, cfg.UseColors)
	})
}

// WriteCacheKeys prints the cache metadata index.
func (ow *OutWriter) WriteCacheKeys(keys []schema.CacheKeyInfo, cfg *contract.Config) error {
	return ow.dispatch(cfg, keys, "cache keys", func(w io.Writer) error {
		return writeCacheKeysTable(w, keys, maxKeyWidth(w))
	})
}

// WriteSyncStatus prints the sync engine status.
func (ow *OutWriter) WriteSyncStatus(status schema.SyncStatus, cfg *contract.Config) error {
	return ow.dispatch(cfg, status, "sync status", func(w io.Writer) error {
		return writeSyncStatusTable(w, status, cfg.UseColors)
	})
}

// WriteQueue prints the pending sync queue markers.
func (ow *OutWriter) WriteQueue(markers []string, cfg *contract.Config) error {
	if markers == nil {
		markers = []string{}
	}
	return ow.dispatch(cfg, markers, "queue", func(w io.Writer) error {
		return writeQueueTable(w, markers)
	})
}

// WriteStoreStatus prints the persistent store status.
func (ow *OutWriter) WriteStoreStatus(status schema.StoreStatus, cfg *contract.Config) error {
	return ow.dispatch(cfg, status, "store status", func(w io.Writer) error {
		return writeStoreStatusTable(w, status)
	})
}

// dispatch writes data as JSON or as the table produced by table, to stdout or the output file.
func (ow *OutWriter) dispatch(cfg *contract.Config, data any, what string, table func(io.Writer) error) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, data)
		}, "Wrote JSON "+what); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	default:
		if err := ow.writeWithFile(cfg.OutputFile, table, "Wrote "+what); err != nil {
			return fmt.Errorf("error writing %s table: %w", what, err)
		}
	}
	return nil
}

// maxKeyWidth returns how wide the key column may be for w.
// Non-terminal writers get a conservative default.
func maxKeyWidth(w io.Writer) int {
	termWidth := 100
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			termWidth = width
		}
	}

	// Created + Expires + Size + Flags with borders and padding
	available := termWidth - 70
	if available < 20 {
		return 20
	}
	if available > 80 {
		return 80
	}
	return available
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return formatTime(*t)
}

func formatBytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}
