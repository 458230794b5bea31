// Package history implements the Audio History Sink: a best-effort
// background worker that writes mixed output audio to disk and records a
// metadata row, bounded by a small channel so a slow disk never backs up
// onto the orchestrator loop (spec §4.8).
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mwzkhalil/comv2/pkg/audio"
	"github.com/mwzkhalil/comv2/pkg/logging"
)

// DefaultQueueSize is the default bound on the sink's work channel (spec §4.8).
const DefaultQueueSize = 16

// Item is one finished event's mixed audio, ready to persist.
type Item struct {
	EventID  string
	MatchID  string
	PCM      []byte // interleaved stereo 16-bit samples
	Duration time.Duration
}

// Sink owns the history directory and the metadata database. Submit never
// blocks the caller: a full queue drops the item and logs it.
type Sink struct {
	dir        string
	sampleRate int
	db         *sql.DB
	logger     logging.Logger

	items chan Item
	done  chan struct{}
}

// Open creates the history directory and metadata database (if missing)
// and starts the background writer.
func Open(dir string, sampleRate int, queueSize int, logger logging.Logger) (*Sink, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: mkdir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "history.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS audio_history (
		event_id TEXT PRIMARY KEY,
		match_id TEXT NOT NULL,
		path TEXT NOT NULL,
		duration_seconds REAL NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}

	s := &Sink{
		dir:        dir,
		sampleRate: sampleRate,
		db:         db,
		logger:     logger,
		items:      make(chan Item, queueSize),
		done:       make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Submit hands the sink one finished event's audio. Non-blocking: if the
// queue is full the item is dropped and logged, never retried (spec §4.8).
func (s *Sink) Submit(item Item) {
	select {
	case s.items <- item:
	default:
		s.logger.Warn("history: queue full, dropping item", "event_id", item.EventID)
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for item := range s.items {
		if err := s.write(item); err != nil {
			s.logger.Error("history: write failed", "event_id", item.EventID, "error", err)
		}
	}
}

func (s *Sink) write(item Item) error {
	wav := audio.NewStereoWavBuffer(item.PCM, s.sampleRate)
	filename := fmt.Sprintf("%s.wav", sanitizeID(item.EventID))
	path := filepath.Join(s.dir, filename)

	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO audio_history (event_id, match_id, path, duration_seconds, created_at) VALUES (?, ?, ?, ?, ?)`,
		item.EventID, item.MatchID, path, item.Duration.Seconds(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

// Close stops accepting new items and waits for the in-flight queue to
// drain, up to deadline (spec §4.10: "flush the history queue up to a 2s
// deadline, then exit").
func (s *Sink) Close(ctx context.Context) error {
	close(s.items)
	select {
	case <-s.done:
		return s.db.Close()
	case <-ctx.Done():
		s.db.Close()
		return ctx.Err()
	}
}

func sanitizeID(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
