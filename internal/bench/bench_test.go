package bench

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestComputeStats(t *testing.T) {
	durations := []time.Duration{
		5 * time.Millisecond,
		1 * time.Millisecond,
		3 * time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
	}
	stats := computeStats(durations)

	if stats.Min != 1*time.Millisecond {
		t.Errorf("Min = %v, want 1ms", stats.Min)
	}
	if stats.Max != 5*time.Millisecond {
		t.Errorf("Max = %v, want 5ms", stats.Max)
	}
	if stats.Mean != 3*time.Millisecond {
		t.Errorf("Mean = %v, want 3ms", stats.Mean)
	}
	if stats.Count != 5 {
		t.Errorf("Count = %d, want 5", stats.Count)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	stats := computeStats(nil)
	if stats.Count != 0 || stats.Max != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestRun_SmallLoad(t *testing.T) {
	cfg := Config{
		Readers:          4,
		Tasks:            20,
		QueriesPerReader: 3,
		Writers:          2,
		WritesPerWriter:  5,
		DBPath:           filepath.Join(t.TempDir(), "bench.db"),
	}

	result, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.Errors != 0 {
		t.Errorf("benchmark recorded %d errors", result.Errors)
	}
	if result.Reads.Count != cfg.Readers*cfg.QueriesPerReader {
		t.Errorf("reads = %d, want %d", result.Reads.Count, cfg.Readers*cfg.QueriesPerReader)
	}
	if result.Writes.Count != cfg.Writers*cfg.WritesPerWriter {
		t.Errorf("writes = %d, want %d", result.Writes.Count, cfg.Writers*cfg.WritesPerWriter)
	}
	if result.QueueDepth != cfg.Writers*cfg.WritesPerWriter {
		t.Errorf("queue depth = %d, want %d", result.QueueDepth, cfg.Writers*cfg.WritesPerWriter)
	}
	if result.Format() == "" {
		t.Error("Format() returned an empty report")
	}
}
