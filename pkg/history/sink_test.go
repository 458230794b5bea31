package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSinkWritesWavAndRow(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(dir, 22050, 0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	sink.Submit(Item{
		EventID:  "e1",
		MatchID:  "m1",
		PCM:      make([]byte, 4*100),
		Duration: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "e1.wav")); err != nil {
		t.Fatalf("expected wav file written: %v", err)
	}

	db, err := sql.Open("sqlite", "file:"+filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM audio_history WHERE event_id = ?", "e1").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestSinkDropsWhenQueueFull(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(dir, 22050, 1, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sink.Close(ctx)
	}()

	for i := 0; i < 10; i++ {
		sink.Submit(Item{EventID: "flood", MatchID: "m1", PCM: []byte{0, 0, 0, 0}})
	}
	// No assertion on drop count: the guarantee under test is that Submit
	// never blocks, which the test harness itself would hang on if violated.
}
