package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// freshLoader builds a loader over its own viper instance so tests do not
// leak state through the shared global.
func freshLoader() *Loader {
	return NewLoaderWith(viper.New())
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if loader.v == nil {
		t.Error("Loader viper instance is nil")
	}
}

// TestLoadWithNoConfigFile tests loading with no config file present.
func TestLoadWithNoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg, err := freshLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Matcher.MaxNeighbors != 8 {
		t.Errorf("Expected default max_neighbors 8, got %d", cfg.Matcher.MaxNeighbors)
	}
}

// TestLoadWithValidYAMLFile tests loading from a valid YAML file.
func TestLoadWithValidYAMLFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "quadmatch.yaml")
	yamlContent := `
matcher:
  min_size: 35
  max_size: 250
  tolerance: 0.02
spatial:
  kind: grid
  cell_size: 48
server:
  host: 0.0.0.0
  port: 9090
log:
  level: debug
`
	if err := os.WriteFile(configFile, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := freshLoader().LoadWithFile(configFile)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.Matcher.MinSize != 35 {
		t.Errorf("Expected min_size 35, got %g", cfg.Matcher.MinSize)
	}
	if cfg.Matcher.MaxSize != 250 {
		t.Errorf("Expected max_size 250, got %g", cfg.Matcher.MaxSize)
	}
	if cfg.Matcher.Tolerance != 0.02 {
		t.Errorf("Expected tolerance 0.02, got %g", cfg.Matcher.Tolerance)
	}
	if cfg.Matcher.MaxNeighbors != 8 {
		t.Errorf("Expected defaulted max_neighbors 8, got %d", cfg.Matcher.MaxNeighbors)
	}
	if cfg.Spatial.Kind != "grid" {
		t.Errorf("Expected spatial kind 'grid', got %s", cfg.Spatial.Kind)
	}
	if cfg.Spatial.CellSize != 48 {
		t.Errorf("Expected cell_size 48, got %g", cfg.Spatial.CellSize)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected host '0.0.0.0', got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level 'debug', got %s", cfg.Log.Level)
	}
}

// TestLoadWithInvalidYAMLFile tests loading from an unparseable file.
func TestLoadWithInvalidYAMLFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "quadmatch.yaml")
	if err := os.WriteFile(configFile, []byte("matcher: [unclosed"), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := freshLoader().LoadWithFile(configFile); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

// TestLoadWithNonExistentFile tests loading from a missing explicit path.
func TestLoadWithNonExistentFile(t *testing.T) {
	_, err := freshLoader().LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file, got nil")
	}
	if err != nil && !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestLoadWithValidationFailure tests that invalid values are rejected.
func TestLoadWithValidationFailure(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "quadmatch.yaml")
	yamlContent := `
matcher:
  max_neighbors: 0
`
	if err := os.WriteFile(configFile, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := freshLoader().LoadWithFile(configFile)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("unexpected error: %v", err)
	}

	// The same file loads when validation is skipped.
	cfg, err := freshLoader().LoadWithFileWithoutValidation(configFile)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() unexpected error: %v", err)
	}
	if cfg.Matcher.MaxNeighbors != 0 {
		t.Errorf("Expected max_neighbors 0, got %d", cfg.Matcher.MaxNeighbors)
	}
}

// TestEnvironmentVariableOverride tests QUADMATCH_ env precedence.
func TestEnvironmentVariableOverride(t *testing.T) {
	t.Setenv("QUADMATCH_SERVER_PORT", "9191")
	t.Setenv("QUADMATCH_MATCHER_MIN_SIZE", "55")
	t.Setenv("QUADMATCH_LOG_LEVEL", "warn")

	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg, err := freshLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Expected env port 9191, got %d", cfg.Server.Port)
	}
	if cfg.Matcher.MinSize != 55 {
		t.Errorf("Expected env min_size 55, got %g", cfg.Matcher.MinSize)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected env log level 'warn', got %s", cfg.Log.Level)
	}
}

// TestGetSetConfigValues tests direct key access.
func TestGetSetConfigValues(t *testing.T) {
	loader := freshLoader()
	loader.Set("matcher.tolerance", 0.5)
	if got := loader.Get("matcher.tolerance"); got != 0.5 {
		t.Errorf("Get returned %v, want 0.5", got)
	}
	loader.Set("overlay.dir", "out")
	if got := loader.GetString("overlay.dir"); got != "out" {
		t.Errorf("GetString returned %q, want 'out'", got)
	}
}

// TestWriteConfigToFile tests persisting resolved settings.
func TestWriteConfigToFile(t *testing.T) {
	loader := freshLoader()
	loader.setDefaults()
	loader.Set("server.port", 7070)

	path := filepath.Join(t.TempDir(), "written.yaml")
	if err := loader.WriteConfigToFile(path); err != nil {
		t.Fatalf("WriteConfigToFile() error: %v", err)
	}

	cfg, err := freshLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("reloading written config: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Expected port 7070, got %d", cfg.Server.Port)
	}
}

// TestGenerateDefaultConfigFile tests default file generation.
func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quadmatch.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading generated file: %v", err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		t.Fatalf("generated file is not valid YAML: %v", err)
	}
	for _, section := range []string{"matcher", "spatial", "parallel", "overlay", "server", "batch", "log"} {
		if _, ok := tree[section]; !ok {
			t.Errorf("generated file is missing section %q", section)
		}
	}

	cfg, err := freshLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("generated file does not load: %v", err)
	}
	if *cfg != DefaultConfig() {
		t.Errorf("generated file does not round-trip the defaults")
	}
}

// TestGenerateDefaultConfigFileWithEmptyFilename tests the fallback name.
func TestGenerateDefaultConfigFileWithEmptyFilename(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	if err := GenerateDefaultConfigFile(""); err != nil {
		t.Fatalf("GenerateDefaultConfigFile(\"\") error: %v", err)
	}
	if _, err := os.Stat("quadmatch.yaml"); err != nil {
		t.Errorf("expected quadmatch.yaml in cwd: %v", err)
	}
}

// TestGetConfigSearchPaths verifies the search path list.
func TestGetConfigSearchPaths(t *testing.T) {
	paths := GetConfigSearchPaths()
	if len(paths) == 0 {
		t.Fatal("no search paths returned")
	}
	if paths[0] != "." {
		t.Errorf("first search path should be '.', got %s", paths[0])
	}
	found := false
	for _, p := range paths {
		if p == "/etc/quadmatch" {
			found = true
		}
	}
	if !found {
		t.Error("search paths missing /etc/quadmatch")
	}
}

// TestGetConfigFileUsed reports the file that satisfied the load.
func TestGetConfigFileUsed(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "quadmatch.yaml")
	if err := os.WriteFile(configFile, []byte("log:\n  level: info\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	loader := freshLoader()
	if _, err := loader.LoadWithFile(configFile); err != nil {
		t.Fatalf("LoadWithFile() error: %v", err)
	}
	if used := loader.GetConfigFileUsed(); used != configFile {
		t.Errorf("GetConfigFileUsed() = %q, want %q", used, configFile)
	}
}

// TestGetResolvedConfig exposes the flattened settings map.
func TestGetResolvedConfig(t *testing.T) {
	loader := freshLoader()
	loader.setDefaults()
	settings := loader.GetResolvedConfig()
	if _, ok := settings["matcher"]; !ok {
		t.Error("resolved settings missing matcher section")
	}
	if _, ok := settings["server"]; !ok {
		t.Error("resolved settings missing server section")
	}
}

// TestConfigYAMLRoundTrip marshals the tree and reads it back.
func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Matcher.Tolerance = 0.042
	cfg.Overlay.Enabled = true

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("yaml.Marshal error: %v", err)
	}

	var back Config
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("yaml.Unmarshal error: %v", err)
	}
	if back != cfg {
		t.Errorf("round trip changed the config:\n got %+v\nwant %+v", back, cfg)
	}
}
