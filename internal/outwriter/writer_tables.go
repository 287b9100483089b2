package outwriter

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/schema"
)

// renderTable writes headers and rows as a table with one alignment for every cell.
func renderTable(w io.Writer, headers []string, rows [][]string, align tw.Align) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = align
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func writeCacheStatsTable(w io.Writer, stats schema.CacheStats, useColors bool) error {
	usage := fmt.Sprintf("%.1f%%", stats.UsagePercentage)
	label := contract.GetPlainLabel(stats.UsagePercentage)
	if useColors {
		label = contract.GetColorLabel(stats.UsagePercentage)
	}
	rows := [][]string{
		{"Total items", strconv.Itoa(stats.TotalItems)},
		{"Active items", strconv.Itoa(stats.ActiveItems)},
		{"Expired items", strconv.Itoa(stats.ExpiredItems)},
		{"Total size", formatBytes(stats.TotalSizeBytes)},
		{"Max size", formatBytes(stats.MaxSizeBytes)},
		{"Usage", usage + " (" + label + ")"},
	}
	return renderTable(w, []string{"Cache", "Value"}, rows, tw.AlignLeft)
}

func writeCacheKeysTable(w io.Writer, keys []schema.CacheKeyInfo, keyWidth int) error {
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		var flags string
		if k.Compressed {
			flags = "zstd"
		}
		if k.Expired {
			if flags != "" {
				flags += ","
			}
			flags += "expired"
		}
		rows = append(rows, []string{
			contract.TruncateKey(k.Key, keyWidth),
			formatTime(k.CreatedAt),
			formatTime(k.ExpiresAt),
			formatBytes(k.SizeBytes),
			flags,
		})
	}
	if err := renderTable(w, []string{"Key", "Created", "Expires", "Size", "Flags"}, rows, tw.AlignLeft); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d cache entries\n", len(keys))
	return err
}

func writeSyncStatusTable(w io.Writer, status schema.SyncStatus, useColors bool) error {
	state := string(status.State)
	if useColors {
		state = contract.GetColorState(status.State)
	}
	rows := [][]string{
		{"State", state},
		{"Last sync", formatTimePtr(status.LastSync)},
		{"Pending changes", strconv.Itoa(status.Pending)},
		{"Passes", strconv.FormatInt(status.Passes, 10)},
		{"Failures", strconv.FormatInt(status.Failures, 10)},
	}
	if status.RetryScheduled {
		rows = append(rows, []string{"Next retry", formatTimePtr(status.NextRetry)})
	}
	if status.LastError != "" {
		rows = append(rows, []string{"Last error", status.LastError})
	}
	return renderTable(w, []string{"Sync", "Value"}, rows, tw.AlignLeft)
}

func writeQueueTable(w io.Writer, markers []string) error {
	rows := make([][]string, 0, len(markers))
	for _, m := range markers {
		ref, err := schema.ParseEntityRef(m)
		if err != nil {
			rows = append(rows, []string{"?", m})
			continue
		}
		rows = append(rows, []string{string(ref.Type), ref.ID})
	}
	if err := renderTable(w, []string{"Type", "ID"}, rows, tw.AlignLeft); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d pending changes\n", len(markers))
	return err
}

func writeStoreStatusTable(w io.Writer, status schema.StoreStatus) error {
	rows := [][]string{
		{"Backend", status.Backend},
		{"Connected", strconv.FormatBool(status.Connected)},
	}
	if status.Connected {
		rows = append(rows,
			[]string{"Total keys", strconv.Itoa(status.TotalKeys)},
			[]string{"Total size", formatBytes(status.TotalBytes)},
		)
		if status.TotalKeys > 0 {
			rows = append(rows,
				[]string{"Last write", formatTime(status.LastWriteTime)},
				[]string{"Oldest write", formatTime(status.OldestWriteTime)},
			)
		}
		if status.CapacityBytes > 0 {
			rows = append(rows, []string{"Capacity", formatBytes(status.CapacityBytes)})
		}
	}
	return renderTable(w, []string{"Store", "Value"}, rows, tw.AlignLeft)
}
