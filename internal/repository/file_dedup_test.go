package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"ZonePulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestFileDedupFirstRunIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.json")
	s, err := NewFileDedup(path, testLogger(t))
	if err != nil {
		t.Fatalf("NewFileDedup: %v", err)
	}
	if s.Contains("BTCUSDT:15m:bullish:14") {
		t.Error("fresh store must be empty")
	}
}

func TestFileDedupRecordPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.json")
	log := testLogger(t)

	s, err := NewFileDedup(path, log)
	if err != nil {
		t.Fatalf("NewFileDedup: %v", err)
	}
	key := "BTCUSDT:15m:bullish:14"
	if err := s.Record(context.Background(), key); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Simulated restart: a new store over the same file.
	s2, err := NewFileDedup(path, log)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !s2.Contains(key) {
		t.Error("recorded key lost across restart")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var keys []string
	if err := json.Unmarshal(b, &keys); err != nil {
		t.Fatalf("state file is not a JSON string array: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Errorf("unexpected state file contents: %v", keys)
	}
}

func TestFileDedupCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileDedup(path, testLogger(t))
	if err != nil {
		t.Fatalf("corrupt file must not fail construction: %v", err)
	}
	if s.Contains("anything") {
		t.Error("corrupt file must yield an empty set")
	}
}

func TestFileDedupDegradesOnWriteFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not bind root")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "dedup.json")
	s, err := NewFileDedup(path, testLogger(t))
	if err != nil {
		t.Fatalf("NewFileDedup: %v", err)
	}

	// Make the directory unwritable so the tmp file creation fails.
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o755)

	key := "BTCUSDT:15m:bullish:14"
	if err := s.Record(context.Background(), key); err == nil {
		t.Fatal("expected persistence error")
	}
	if !s.Degraded() {
		t.Error("store must degrade after a write failure")
	}
	if !s.Contains(key) {
		t.Error("key must stay recorded in memory after degrade")
	}
	// Subsequent records succeed silently in memory-only mode.
	if err := s.Record(context.Background(), "ETHUSDT:1h:bearish:3"); err != nil {
		t.Errorf("degraded record must not error: %v", err)
	}
}

func TestFileDedupConcurrentRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.json")
	s, err := NewFileDedup(path, testLogger(t))
	if err != nil {
		t.Fatalf("NewFileDedup: %v", err)
	}

	var wg sync.WaitGroup
	keys := []string{
		"BTCUSDT:15m:bullish:1",
		"ETHUSDT:15m:bearish:2",
		"SOLUSDT:1h:bullish:3",
		"BNBUSDT:4h:bearish:4",
	}
	for _, k := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			_ = s.Record(context.Background(), k)
		}(k)
	}
	wg.Wait()

	s2, err := NewFileDedup(path, testLogger(t))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	for _, k := range keys {
		if !s2.Contains(k) {
			t.Errorf("key %s lost under concurrent writes", k)
		}
	}
}

func TestMemoryDedup(t *testing.T) {
	s := NewMemoryDedup()
	key := "BTCUSDT:15m:bullish:14"
	if s.Contains(key) {
		t.Error("fresh store must be empty")
	}
	if err := s.Record(context.Background(), key); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !s.Contains(key) {
		t.Error("recorded key not found")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 key, got %d", s.Len())
	}
}
