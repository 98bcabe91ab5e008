package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, "", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	if cfg.MinSQLLength != want.MinSQLLength || cfg.MatchMode != want.MatchMode {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if len(cfg.VariableContexts) == 0 {
		t.Error("default variable contexts missing")
	}
}

func TestLoadDedicatedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
min_sql_length = 5
variable_contexts = ["*custom*"]
dialect = "mysql"
`)
	cfg, err := Load(dir, "", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MinSQLLength != 5 {
		t.Errorf("min_sql_length = %d, want 5", cfg.MinSQLLength)
	}
	if len(cfg.VariableContexts) != 1 || cfg.VariableContexts[0] != "*custom*" {
		t.Errorf("variable_contexts = %v", cfg.VariableContexts)
	}
	if cfg.Dialect != "mysql" {
		t.Errorf("dialect = %q", cfg.Dialect)
	}
	// Untouched keys keep defaults.
	if cfg.MatchMode != "glob" {
		t.Errorf("match_mode = %q, want glob default", cfg.MatchMode)
	}
}

func TestLoadPyprojectTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", `
[project]
name = "demo"

[tool.sqlscout]
min_sql_length = 7
dialect = "sqlite"
`)
	cfg, err := Load(dir, "", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MinSQLLength != 7 || cfg.Dialect != "sqlite" {
		t.Errorf("pyproject table not applied: %+v", cfg)
	}
}

func TestLoadPrefersDedicatedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `min_sql_length = 5`)
	writeFile(t, dir, "pyproject.toml", "[tool.sqlscout]\nmin_sql_length = 99\n")
	cfg, err := Load(dir, "", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MinSQLLength != 5 {
		t.Errorf("min_sql_length = %d, want 5 from %s", cfg.MinSQLLength, FileName)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "custom.toml", `min_sql_length = 3`)
	cfg, err := Load(t.TempDir(), filepath.Join(dir, "custom.toml"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MinSQLLength != 3 {
		t.Errorf("min_sql_length = %d, want 3", cfg.MinSQLLength)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `min_sql_length = -1`)
	if _, err := Load(dir, "", zap.NewNop()); err == nil {
		t.Error("negative min_sql_length should be rejected")
	}
}

func TestLoadMalformedDiscoveredFileDegrades(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `min_sql_length = "not a number"`)
	cfg, err := Load(dir, "", zap.NewNop())
	if err != nil {
		t.Fatalf("discovered malformed file must not abort: %v", err)
	}
	if cfg.MinSQLLength != Default().MinSQLLength {
		t.Errorf("defaults not restored: %+v", cfg)
	}
}

func TestLoadExplicitMalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.toml", `min_sql_length = "oops"`)
	if _, err := Load(t.TempDir(), filepath.Join(dir, "bad.toml"), zap.NewNop()); err == nil {
		t.Error("an explicitly requested bad file should abort")
	}
}

func TestDefaultTOMLRoundTrips(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, DefaultTOML)
	cfg, err := Load(dir, "", zap.NewNop())
	if err != nil {
		t.Fatalf("the starter file must parse: %v", err)
	}
	want := Default()
	if cfg.MinSQLLength != want.MinSQLLength || cfg.MatchMode != want.MatchMode ||
		cfg.Dialect != want.Dialect {
		t.Errorf("starter file drifted from defaults: %+v", cfg)
	}
}
