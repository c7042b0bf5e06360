package wal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/display-watch/internal/domain"
)

const (
	segmentPrefix = "segment-"
	filePerm      = 0644
)

// Journal is a file-backed write-ahead log for job submissions. Requests
// accepted while the queue is unreachable land here and are replayed into
// the queue once it recovers.
type Journal struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu             sync.Mutex
	currentSegment *os.File
	currentSize    int64
}

// NewJournal opens the journal directory, creating it if needed, and resumes
// appending to the newest segment.
func NewJournal(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory %s: %w", dir, err)
	}

	j := &Journal{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "submission_journal"),
	}

	if err := j.openLatestSegment(); err != nil {
		return nil, err
	}

	return j, nil
}

// Write appends a job request to the current segment. Each record is synced
// to disk before returning; a journaled submission must survive a crash.
func (j *Journal) Write(ctx context.Context, req domain.JobRequest) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal job request for journal: %w", err)
	}
	data = append(data, '\n')

	if j.currentSegment == nil {
		if err := j.rotate(); err != nil {
			return err
		}
	}

	// Check total size before writing
	totalSize, err := j.calculateTotalSize()
	if err != nil {
		j.logger.Error("Failed to calculate total journal size", "error", err)
		return fmt.Errorf("could not verify journal disk space: %w", err)
	}
	if totalSize+int64(len(data)) > j.maxTotalSize {
		return fmt.Errorf("journal max total size exceeded (%d > %d)", totalSize, j.maxTotalSize)
	}

	n, err := j.currentSegment.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to journal segment: %w", err)
	}
	j.currentSize += int64(n)

	if err := j.currentSegment.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal segment: %w", err)
	}

	if j.currentSize >= j.maxSegmentSize {
		if err := j.rotate(); err != nil {
			j.logger.Error("Failed to rotate journal segment", "error", err)
		}
	}

	return nil
}

// Replay reads all segments oldest first and calls the handler for each
// journaled request. Lines that no longer unmarshal are skipped, not fatal.
func (j *Journal) Replay(ctx context.Context, handler func(req domain.JobRequest) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.currentSegment != nil {
		j.currentSegment.Close()
		j.currentSegment = nil
	}

	segments, err := j.getSortedSegments()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		j.logger.Info("Journal is empty, nothing to replay")
		return nil
	}
	j.logger.Info("Starting journal replay", "segment_count", len(segments))

	for _, segmentPath := range segments {
		file, err := os.Open(segmentPath)
		if err != nil {
			return fmt.Errorf("failed to open segment %s for replay: %w", segmentPath, err)
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if ctx.Err() != nil {
				file.Close()
				return ctx.Err()
			}
			var req domain.JobRequest
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				j.logger.Warn("Failed to unmarshal request from journal, skipping", "error", err, "line", scanner.Text())
				continue
			}
			if err := handler(req); err != nil {
				file.Close()
				j.logger.Error("Journal replay handler failed, stopping replay", "error", err)
				return fmt.Errorf("replay handler failed: %w", err)
			}
		}
		if err := scanner.Err(); err != nil {
			file.Close()
			return fmt.Errorf("error scanning segment %s: %w", segmentPath, err)
		}
		file.Close()
	}

	j.logger.Info("Journal replay completed")
	return nil
}

// Truncate removes all segment files and opens a fresh empty segment.
func (j *Journal) Truncate(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.currentSegment != nil {
		j.currentSegment.Close()
		j.currentSegment = nil
	}

	segments, err := j.getSortedSegments()
	if err != nil {
		return err
	}

	for _, segmentPath := range segments {
		if err := os.Remove(segmentPath); err != nil {
			j.logger.Error("Failed to remove journal segment", "path", segmentPath, "error", err)
		}
	}

	j.logger.Info("Journal truncated")
	return j.openLatestSegment()
}

func (j *Journal) rotate() error {
	if j.currentSegment != nil {
		if err := j.currentSegment.Sync(); err != nil {
			j.logger.Error("Failed to sync journal segment before rotating", "error", err)
		}
		if err := j.currentSegment.Close(); err != nil {
			j.logger.Error("Failed to close journal segment before rotating", "error", err)
		}
		j.currentSegment = nil
	}

	segmentName := fmt.Sprintf("%s%d.log", segmentPrefix, time.Now().UnixNano())
	path := filepath.Join(j.dir, segmentName)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create new journal segment %s: %w", path, err)
	}

	j.currentSegment = f
	j.currentSize = 0
	j.logger.Info("Rotated to new journal segment", "path", path)
	return nil
}

func (j *Journal) openLatestSegment() error {
	segments, err := j.getSortedSegments()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		return j.rotate()
	}

	latestSegmentPath := segments[len(segments)-1]
	stat, err := os.Stat(latestSegmentPath)
	if err != nil {
		return fmt.Errorf("failed to stat latest segment %s: %w", latestSegmentPath, err)
	}

	f, err := os.OpenFile(latestSegmentPath, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open latest segment %s: %w", latestSegmentPath, err)
	}

	j.currentSegment = f
	j.currentSize = stat.Size()
	j.logger.Info("Opened existing journal segment", "path", latestSegmentPath, "size", j.currentSize)

	if j.currentSize >= j.maxSegmentSize {
		return j.rotate()
	}

	return nil
}

func (j *Journal) getSortedSegments() ([]string, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			segments = append(segments, filepath.Join(j.dir, entry.Name()))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func (j *Journal) calculateTotalSize() (int64, error) {
	var totalSize int64
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			info, err := entry.Info()
			if err != nil {
				return 0, err
			}
			totalSize += info.Size()
		}
	}
	return totalSize, nil
}

// Close ensures the current segment is closed gracefully.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.currentSegment != nil {
		return j.currentSegment.Close()
	}
	return nil
}
