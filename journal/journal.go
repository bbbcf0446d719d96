// Package journal captures the raw report stream of a monitoring
// session as an append-only line journal, so a failed or suspicious run
// can be audited and re-ingested after the fact.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one captured report line.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Sequence  int64     `json:"sequence"`
	Line      string    `json:"line"`
}

// Config controls journal file handling.
type Config struct {
	// MaxFileSize triggers rotation when the current file grows past
	// it.
	MaxFileSize int64
	// RetentionDays bounds how long rotated files are kept.
	RetentionDays int
	// FilePrefix names the journal files.
	FilePrefix string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:   64 * 1024 * 1024,
		RetentionDays: 7,
		FilePrefix:    "aita",
	}
}

// Journal is an append-only capture of report lines with size-based
// rotation.
type Journal struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	size     int64
	rotation int
	dir      string
	config   Config
}

// Open creates or opens a journal in dir with default config.
func Open(dir string) (*Journal, error) {
	return OpenWithConfig(dir, DefaultConfig())
}

// OpenWithConfig creates or opens a journal with explicit config.
func OpenWithConfig(dir string, config Config) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{dir: dir, config: config}
	if err := j.openFile(); err != nil {
		return nil, err
	}
	return j, nil
}

// openFile starts a fresh journal file.
func (j *Journal) openFile() error {
	j.rotation++
	filename := fmt.Sprintf("%s-%s-%04d.journal",
		j.config.FilePrefix, time.Now().Format("20060102-150405"), j.rotation)
	path := filepath.Join(j.dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}

	j.file = file
	j.writer = bufio.NewWriter(file)
	j.size = 0
	return nil
}

// Close flushes and closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return err
	}
	return j.file.Close()
}

// Append records one raw report line.
func (j *Journal) Append(line string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.sequence++
	entry := Entry{
		Timestamp: time.Now(),
		Sequence:  j.sequence,
		Line:      line,
	}

	return j.writeEntry(entry)
}

// writeEntry serializes, writes and flushes one entry, rotating first
// when the current file is full.
func (j *Journal) writeEntry(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if j.shouldRotate(int64(len(data) + 1)) {
		if err := j.rotate(); err != nil {
			return err
		}
	}

	if _, err := j.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if _, err := j.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	j.size += int64(len(data) + 1)
	return nil
}

// shouldRotate checks whether adding n bytes would overflow the file.
func (j *Journal) shouldRotate(n int64) bool {
	return j.config.MaxFileSize > 0 && j.size+n > j.config.MaxFileSize
}

// rotate closes the current file and starts a new one; the sequence
// keeps counting across files.
func (j *Journal) rotate() error {
	if err := j.writer.Flush(); err != nil {
		return err
	}
	if err := j.file.Close(); err != nil {
		return err
	}
	return j.openFile()
}

// Sequence returns the last sequence number written.
func (j *Journal) Sequence() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sequence
}

// Reader replays one journal file.
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
}

// NewReader opens a journal file for replay.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	return &Reader{scanner: scanner, file: file}, nil
}

// Next reads the next entry, returning io.EOF at the end.
func (r *Reader) Next() (*Entry, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	var entry Entry
	if err := json.Unmarshal(r.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Files lists a directory's journal files in name order, which is
// creation order given the timestamped names.
func Files(dir, prefix string) []string {
	files, err := filepath.Glob(filepath.Join(dir, prefix+"-*.journal"))
	if err != nil {
		return nil
	}
	return files
}

// Replay feeds every captured line in dir to handler, oldest file
// first. A handler error stops the replay and is returned.
func Replay(dir, prefix string, handler func(*Entry) error) error {
	for _, file := range Files(dir, prefix) {
		reader, err := NewReader(file)
		if err != nil {
			return err
		}

		for {
			entry, err := reader.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				_ = reader.Close()
				return err
			}
			if err := handler(entry); err != nil {
				_ = reader.Close()
				return err
			}
		}
		if err := reader.Close(); err != nil {
			return err
		}
	}
	return nil
}
