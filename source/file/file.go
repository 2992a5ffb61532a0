// Package file provides a replay source that reads raw lineage events
// from a JSON-lines file, tracking its read position across runs by event
// id watermark.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/c360/provreport/config"
	"github.com/c360/provreport/errors"
	"github.com/c360/provreport/provenance"
)

// Source reads events appended to a JSON-lines file. Event ids are
// monotonic, so the read position is the highest id already handed out.
// The position survives restarts through the position file; without one
// the configured start position decides where the first run begins.
type Source struct {
	path          string
	directoryPath string
	positionFile  string
	startPosition string
	logger        *slog.Logger

	mu          sync.Mutex
	lastEventID int64
	initialized bool
}

// position is the persisted read cursor.
type position struct {
	LastEventID int64 `json:"last_event_id"`
}

// NewSource creates a file source from the source configuration
func NewSource(cfg config.SourceConfig, directoryPath string, logger *slog.Logger) (*Source, error) {
	if cfg.Path == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Source", "NewSource",
			"source path is required")
	}

	return &Source{
		path:          cfg.Path,
		directoryPath: directoryPath,
		positionFile:  cfg.PositionFile,
		startPosition: cfg.StartPosition,
		logger:        logger.With("source", "file"),
	}, nil
}

// NextBatch returns up to limit events past the current read position,
// advancing and persisting it.
func (s *Source) NextBatch(_ context.Context, limit int) (*provenance.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensurePosition(); err != nil {
		return nil, err
	}

	events, maxID, err := s.readEvents(limit)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	directory, err := s.loadDirectory()
	if err != nil {
		return nil, err
	}

	s.lastEventID = maxID
	if err := s.persistPosition(); err != nil {
		// The events are still returned; a redelivery after restart is
		// tolerated because downstream writes are idempotent by event id.
		s.logger.Warn("failed to persist read position", "error", err)
	}

	return &provenance.Batch{Directory: directory, Events: events}, nil
}

// ensurePosition resolves the starting watermark on the first call.
func (s *Source) ensurePosition() error {
	if s.initialized {
		return nil
	}

	if s.positionFile != "" {
		data, err := os.ReadFile(s.positionFile) // #nosec G304 -- operator-supplied path
		if err == nil {
			var pos position
			if err := json.Unmarshal(data, &pos); err != nil {
				return errors.WrapInvalid(err, "Source", "ensurePosition", "parse position file")
			}
			s.lastEventID = pos.LastEventID
			s.initialized = true
			s.logger.Debug("resumed read position", "last_event_id", s.lastEventID)
			return nil
		}
		if !os.IsNotExist(err) {
			return errors.WrapTransient(err, "Source", "ensurePosition", "read position file")
		}
	}

	// No persisted position: honor the configured start policy.
	if s.startPosition == config.StartEnd {
		maxID, err := s.maxEventID()
		if err != nil {
			return err
		}
		s.lastEventID = maxID
		s.logger.Debug("starting at end of stream", "last_event_id", maxID)
	}

	s.initialized = true
	return nil
}

// readEvents scans the file for events past the watermark.
func (s *Source) readEvents(limit int) ([]provenance.Raw, int64, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, errors.WrapTransient(err, "Source", "readEvents", "open event file")
	}
	defer f.Close()

	var events []provenance.Raw
	maxID := s.lastEventID

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var event provenance.Raw
		if err := json.Unmarshal(raw, &event); err != nil {
			s.logger.Warn("skipping malformed event line", "line", line, "error", err)
			continue
		}

		if event.EventID <= s.lastEventID {
			continue
		}

		events = append(events, event)
		if event.EventID > maxID {
			maxID = event.EventID
		}
		if len(events) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errors.WrapTransient(err, "Source", "readEvents", "scan event file")
	}

	return events, maxID, nil
}

// maxEventID returns the highest event id currently in the file.
func (s *Source) maxEventID() (int64, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.WrapTransient(err, "Source", "maxEventID", "open event file")
	}
	defer f.Close()

	var maxID int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var event provenance.Raw
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		if event.EventID > maxID {
			maxID = event.EventID
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.WrapTransient(err, "Source", "maxEventID", "scan event file")
	}
	return maxID, nil
}

// loadDirectory reads the component directory snapshot, when configured.
func (s *Source) loadDirectory() (provenance.Directory, error) {
	if s.directoryPath == "" {
		return (*provenance.MapDirectory)(nil), nil
	}

	data, err := os.ReadFile(s.directoryPath) // #nosec G304 -- operator-supplied path
	if err != nil {
		if os.IsNotExist(err) {
			return (*provenance.MapDirectory)(nil), nil
		}
		return nil, errors.WrapTransient(err, "Source", "loadDirectory", "read directory file")
	}

	var directory provenance.MapDirectory
	if err := json.Unmarshal(data, &directory); err != nil {
		return nil, errors.WrapInvalid(err, "Source", "loadDirectory", "parse directory file")
	}
	return &directory, nil
}

// persistPosition writes the watermark atomically.
func (s *Source) persistPosition() error {
	if s.positionFile == "" {
		return nil
	}

	data, err := json.Marshal(position{LastEventID: s.lastEventID})
	if err != nil {
		return err
	}

	tmp := s.positionFile + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.positionFile), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.positionFile)
}
