package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cpmech/smallbody/errs"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadDegree(t *testing.T) {
	cfg := Default()
	cfg.Shape.BezierDegree = 0
	err := cfg.Validate()
	if !errs.Is(err, errs.InputMalformed) {
		t.Fatalf("expected InputMalformed, got %v", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.BA.Iterations = 42
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.BA.Iterations != 42 {
		t.Fatalf("expected 42, got %d", loaded.BA.Iterations)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !errs.Is(err, errs.IOError) {
		t.Fatalf("expected IOError, got %v", err)
	}
}
