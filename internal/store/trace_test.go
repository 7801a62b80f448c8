package store

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	runID := NewRunID()

	writer, err := NewTraceWriter(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}

	entries := []TraceEntry{
		{Iteration: 1, MeanDelta: 0.4, MaxDelta: 1.2, Timestamp: time.Now()},
		{Iteration: 2, MeanDelta: 0.1, MaxDelta: 0.5, Timestamp: time.Now()},
		{Iteration: 3, MeanDelta: 0.01, MaxDelta: 0.02, Timestamp: time.Now()},
	}
	for _, entry := range entries {
		if err := writer.Write(entry); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	if !strings.HasSuffix(writer.Path(), "trace.jsonl") {
		t.Errorf("Unexpected trace path: %s", writer.Path())
	}

	got, err := ReadTrace(tmpDir, runID)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Entry count mismatch: got %d, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].Iteration != entries[i].Iteration {
			t.Errorf("Entry %d iteration mismatch: got %d, want %d", i, got[i].Iteration, entries[i].Iteration)
		}
		if got[i].MaxDelta != entries[i].MaxDelta {
			t.Errorf("Entry %d max delta mismatch: got %f, want %f", i, got[i].MaxDelta, entries[i].MaxDelta)
		}
	}
}

func TestTraceWriterTruncates(t *testing.T) {
	tmpDir := t.TempDir()
	runID := NewRunID()

	for round := 0; round < 2; round++ {
		writer, err := NewTraceWriter(tmpDir, runID)
		if err != nil {
			t.Fatalf("Failed to create trace writer: %v", err)
		}
		writer.Write(TraceEntry{Iteration: round + 1})
		writer.Close()
	}

	got, err := ReadTrace(tmpDir, runID)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(got) != 1 || got[0].Iteration != 2 {
		t.Errorf("Expected only the second trace, got %+v", got)
	}
}

func TestReadTraceNotFound(t *testing.T) {
	_, err := ReadTrace(t.TempDir(), NewRunID())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDecodeTraceBadLine(t *testing.T) {
	input := "{\"iteration\":1}\nnot json\n"
	_, err := decodeTrace(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected error naming line 2, got %v", err)
	}
}
