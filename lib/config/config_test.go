// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Interval() != 10*time.Second {
		t.Errorf("Interval() = %v, want 10s", cfg.Interval())
	}
	if cfg.Jitter() != 0 {
		t.Errorf("Jitter() = %v, want 0", cfg.Jitter())
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.yaml")
	content := "poll_interval: 30s\npoll_jitter: 500ms\npreferred_backends: [procfs]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Interval() != 30*time.Second {
		t.Errorf("Interval() = %v, want 30s", cfg.Interval())
	}
	if cfg.Jitter() != 500*time.Millisecond {
		t.Errorf("Jitter() = %v, want 500ms", cfg.Jitter())
	}
	if len(cfg.PreferredBackends) != 1 || cfg.PreferredBackends[0] != "procfs" {
		t.Errorf("PreferredBackends = %v", cfg.PreferredBackends)
	}
}

func TestLoadFilePartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.yaml")
	if err := os.WriteFile(path, []byte("poll_jitter: 1s\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	// poll_interval was absent from the file, so Default()'s value survives.
	if cfg.Interval() != 10*time.Second {
		t.Errorf("Interval() = %v, want 10s (default preserved)", cfg.Interval())
	}
	if cfg.Jitter() != time.Second {
		t.Errorf("Jitter() = %v, want 1s", cfg.Jitter())
	}
}

func TestLoadFileInvalidDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.yaml")
	if err := os.WriteFile(path, []byte("poll_interval: not-a-duration\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile: expected error for invalid poll_interval")
	}
}

func TestLoadUnset(t *testing.T) {
	t.Setenv("VMD_STATS_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Interval() != 10*time.Second {
		t.Errorf("Interval() = %v, want 10s", cfg.Interval())
	}
}
