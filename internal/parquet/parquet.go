// Package parquet exports the cache metadata index and the sync queue to Parquet
// files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/roamly/tripcache/schema"
)

// CacheEntry is one row of the cache metadata index.
type CacheEntry struct {
	// Namespace is the part of the key before the first colon, e.g. "routes"
	Namespace string `parquet:"namespace,snappy,dict"`

	Key string `parquet:"key,snappy"`

	CreatedAt time.Time `parquet:"created_at,snappy"`
	ExpiresAt time.Time `parquet:"expires_at,snappy"`

	SizeBytes  int64 `parquet:"size_bytes,snappy"`
	Compressed bool  `parquet:"compressed"`

	// Expired is evaluated at export time
	Expired bool `parquet:"expired"`
}

// QueueMarker is one pending sync queue marker.
type QueueMarker struct {
	EntityType string    `parquet:"entity_type,snappy,dict"`
	EntityID   string    `parquet:"entity_id,snappy"`
	ExportedAt time.Time `parquet:"exported_at,snappy"`
}

// ConvertCacheKeys converts the cache index rows for Parquet export.
func ConvertCacheKeys(keys []schema.CacheKeyInfo) []CacheEntry {
	result := make([]CacheEntry, len(keys))
	for i, k := range keys {
		namespace, _, _ := strings.Cut(k.Key, ":")
		result[i] = CacheEntry{
			Namespace:  namespace,
			Key:        k.Key,
			CreatedAt:  k.CreatedAt,
			ExpiresAt:  k.ExpiresAt,
			SizeBytes:  k.SizeBytes,
			Compressed: k.Compressed,
			Expired:    k.Expired,
		}
	}
	return result
}

// ConvertQueueMarkers converts "type:id" markers for Parquet export.
// Markers that do not parse are skipped.
func ConvertQueueMarkers(markers []string, exportedAt time.Time) []QueueMarker {
	result := make([]QueueMarker, 0, len(markers))
	for _, m := range markers {
		ref, err := schema.ParseEntityRef(m)
		if err != nil {
			continue
		}
		result = append(result, QueueMarker{
			EntityType: string(ref.Type),
			EntityID:   ref.ID,
			ExportedAt: exportedAt,
		})
	}
	return result
}

// WriteCacheEntriesParquet writes cache index rows to a Parquet file.
func WriteCacheEntriesParquet(data []CacheEntry, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteQueueMarkersParquet writes queue markers to a Parquet file.
func WriteQueueMarkersParquet(data []QueueMarker, outputPath string) error {
	return writeParquet(data, outputPath)
}

func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// The schema is derived from the struct tags of T.
	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}
