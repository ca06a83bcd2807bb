package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Thresholds.MaxCells != 10 || cfg.Thresholds.MaxLinesPerCell != 15 || cfg.Thresholds.MaxFunctionDefs != 0 {
		t.Errorf("unexpected default thresholds: %+v", cfg.Thresholds)
	}
	if !reflect.DeepEqual(cfg.RestrictedImports, []string{"subprocess"}) {
		t.Errorf("unexpected default restricted imports: %v", cfg.RestrictedImports)
	}
	if !reflect.DeepEqual(cfg.Tools, []string{"pyflakes", "mypy", "pylint", "black"}) {
		t.Errorf("unexpected default tools: %v", cfg.Tools)
	}
	if !reflect.DeepEqual(cfg.Branches.Whitelist, []string{"main", "dev"}) {
		t.Errorf("unexpected default branch whitelist: %v", cfg.Branches.Whitelist)
	}
	if cfg.Branches.Mainline != "origin/main" {
		t.Errorf("unexpected default mainline: %q", cfg.Branches.Mainline)
	}
}

func TestLoadWithoutConfigFiles(t *testing.T) {
	t.Setenv("PYNEAT_HOME", t.TempDir())

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(*cfg, Default()) {
		t.Errorf("expected defaults, got %+v", *cfg)
	}
}

func TestLoadPyneatYaml(t *testing.T) {
	t.Setenv("PYNEAT_HOME", t.TempDir())
	dir := t.TempDir()
	writeFile(t, dir, ".pyneat.yaml", `
thresholds:
  max_cells: 20
tools:
  - pyflakes
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Thresholds.MaxCells != 20 {
		t.Errorf("MaxCells = %d, want 20", cfg.Thresholds.MaxCells)
	}
	// Untouched keys keep their defaults
	if cfg.Thresholds.MaxLinesPerCell != 15 {
		t.Errorf("MaxLinesPerCell = %d, want 15", cfg.Thresholds.MaxLinesPerCell)
	}
	if !reflect.DeepEqual(cfg.Tools, []string{"pyflakes"}) {
		t.Errorf("Tools = %v, want [pyflakes]", cfg.Tools)
	}
}

func TestLoadPyproject(t *testing.T) {
	t.Setenv("PYNEAT_HOME", t.TempDir())
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", `
[tool.pyneat]
restricted_imports = ["subprocess", "pickle"]

[tool.pyneat.thresholds]
max_lines_per_cell = 30
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Thresholds.MaxLinesPerCell != 30 {
		t.Errorf("MaxLinesPerCell = %d, want 30", cfg.Thresholds.MaxLinesPerCell)
	}
	if !reflect.DeepEqual(cfg.RestrictedImports, []string{"subprocess", "pickle"}) {
		t.Errorf("RestrictedImports = %v", cfg.RestrictedImports)
	}
	if cfg.Thresholds.MaxCells != 10 {
		t.Errorf("MaxCells = %d, want 10", cfg.Thresholds.MaxCells)
	}
}

func TestYamlOverridesPyproject(t *testing.T) {
	t.Setenv("PYNEAT_HOME", t.TempDir())
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", `
[tool.pyneat.thresholds]
max_cells = 50
`)
	writeFile(t, dir, ".pyneat.yaml", `
thresholds:
  max_cells: 7
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Thresholds.MaxCells != 7 {
		t.Errorf("MaxCells = %d, want 7 (.pyneat.yaml wins)", cfg.Thresholds.MaxCells)
	}
}

func TestEnvOverridesFiles(t *testing.T) {
	t.Setenv("PYNEAT_HOME", t.TempDir())
	t.Setenv("PYNEAT_THRESHOLDS_MAX_CELLS", "3")
	dir := t.TempDir()
	writeFile(t, dir, ".pyneat.yaml", `
thresholds:
  max_cells: 7
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Thresholds.MaxCells != 3 {
		t.Errorf("MaxCells = %d, want 3 (environment wins)", cfg.Thresholds.MaxCells)
	}
}

func TestLoadMalformedPyproject(t *testing.T) {
	t.Setenv("PYNEAT_HOME", t.TempDir())
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", "not [valid toml")

	if _, err := Load(dir); err == nil {
		t.Error("expected error for malformed pyproject.toml")
	}
}

func TestFlattenKeys(t *testing.T) {
	got := flattenKeys("", map[string]interface{}{
		"concurrency": 4,
		"thresholds": map[string]interface{}{
			"max_cells": 20,
		},
	})

	want := map[string]interface{}{
		"concurrency":          4,
		"thresholds.max_cells": 20,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flattenKeys() = %v, want %v", got, want)
	}
}

func TestGetPyneatHome(t *testing.T) {
	t.Setenv("PYNEAT_HOME", "/tmp/custom-pyneat-home")

	home, err := GetPyneatHome()
	if err != nil {
		t.Fatalf("GetPyneatHome failed: %v", err)
	}
	if home != "/tmp/custom-pyneat-home" {
		t.Errorf("GetPyneatHome() = %q", home)
	}
}
