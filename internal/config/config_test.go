package config

import (
	"path/filepath"
	"testing"
)

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdlsym.json")
	writeFile(t, path, `{"design":{"top":"cpu","systemVerilog":true},"engine":{"batchSize":50}}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Design.Top != "cpu" || !cfg.Design.SystemVerilog {
		t.Fatalf("unexpected design section: %+v", cfg.Design)
	}
	if cfg.Engine.BatchSize != 50 {
		t.Fatalf("expected batch size 50, got %d", cfg.Engine.BatchSize)
	}
	if cfg.Engine.ExplosionThreshold != defaultExplosionThreshold {
		t.Fatalf("expected default threshold, got %d", cfg.Engine.ExplosionThreshold)
	}
	if cfg.Engine.MaxPathsPerBlock != defaultMaxPathsPerBlock {
		t.Fatalf("expected default path cap, got %d", cfg.Engine.MaxPathsPerBlock)
	}
	if cfg.CacheEnabled() {
		t.Fatalf("expected cache disabled by default")
	}
	if cfg.Cache.Backend != "file" || cfg.Output.Format != "text" {
		t.Fatalf("unexpected defaults: cache=%+v output=%+v", cfg.Cache, cfg.Output)
	}
}

func TestLoadFileRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdlsym.json")
	writeFile(t, path, `{"cache":{"backend":"redis"}}`)

	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestLoadFileRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdlsym.json")
	writeFile(t, path, `{"engine":`)

	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdlsym.json")
	cfg := DefaultConfig()
	cfg.Cache.Enabled = boolPtr(true)
	cfg.Cache.Backend = "badger"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !loaded.CacheEnabled() || loaded.Cache.Backend != "badger" {
		t.Fatalf("unexpected cache section: %+v", loaded.Cache)
	}
}

func TestResolveCacheDir(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	if got, want := cfg.ResolveCacheDir(root), filepath.Join(root, defaultCacheDir); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	abs := filepath.Join(t.TempDir(), "verdicts")
	cfg.Cache.Dir = abs
	if got := cfg.ResolveCacheDir(root); got != abs {
		t.Fatalf("expected %s, got %s", abs, got)
	}
}

func TestShouldExcludeFile(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.ShouldExcludeFile("/work/proj/hdlsym.json") {
		t.Fatalf("expected config file to be excluded")
	}
	if cfg.ShouldExcludeFile("/work/proj/top.json") {
		t.Fatalf("did not expect design file to be excluded")
	}
}
