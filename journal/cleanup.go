package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cleanup removes journal files older than the retention period.
func Cleanup(dir string, config Config) error {
	cutoff := time.Now().AddDate(0, 0, -config.RetentionDays)
	for _, file := range Files(dir, config.FilePrefix) {
		if !isOlderThan(file, cutoff) {
			continue
		}
		if err := os.Remove(file); err != nil {
			return fmt.Errorf("failed to remove %s: %w", file, err)
		}
	}
	return nil
}

// isOlderThan checks if file modification time is before cutoff.
func isOlderThan(path string, cutoff time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().Before(cutoff)
}

// Stats summarizes the journal files in a directory.
type Stats struct {
	TotalFiles     int
	TotalSizeBytes int64
	OldestFile     time.Time
	NewestFile     time.Time
	LastSequence   int64
}

// GetStats collects statistics for a journal directory.
func GetStats(dir string, config Config) Stats {
	var stats Stats

	files := Files(dir, config.FilePrefix)
	stats.TotalFiles = len(files)

	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		stats.TotalSizeBytes += info.Size()
		mod := info.ModTime()
		if stats.OldestFile.IsZero() || mod.Before(stats.OldestFile) {
			stats.OldestFile = mod
		}
		if mod.After(stats.NewestFile) {
			stats.NewestFile = mod
		}
	}

	stats.LastSequence = findLastSequence(files)
	return stats
}

// findLastSequence scans files for the highest sequence, skipping
// corrupted entries.
func findLastSequence(files []string) int64 {
	var maxSeq int64
	for _, file := range files {
		reader, err := NewReader(filepath.Clean(file))
		if err != nil {
			continue
		}
		for {
			entry, err := reader.Next()
			if err != nil {
				break
			}
			if entry.Sequence > maxSeq {
				maxSeq = entry.Sequence
			}
		}
		_ = reader.Close()
	}
	return maxSeq
}
