package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/amitbl/pharmachat/pkg/chat/gemini"
	"github.com/amitbl/pharmachat/pkg/chat/openai"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.ListenAddr != ":8080" || c.MaxIterations != 10 {
		t.Errorf("defaults = %+v", c)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config file not written: %v", err)
	}
	// The written file must load back to the same shape.
	c2, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig (reload): %v", err)
	}
	if c2.ModelName != c.ModelName || len(c2.ModelConfigs) != len(c.ModelConfigs) {
		t.Errorf("reloaded config = %+v", c2)
	}
}

func TestLoadConfigParsesFile(t *testing.T) {
	content := `
listen_addr = ":9000"
data_dir = "/var/lib/pharmachat"
model_name = "local"
max_iterations = 4
loglevel = "DEBUG"

[[model_configs]]
type = "openai"
name = "local"
base_url = "http://localhost:11434/v1"
api_key = "unused"
model_name = "llama3"

[[model_configs]]
type = "gemini"
name = "gemini"
api_key_env = "GEMINI_API_KEY"
model_name = "gemini-2.5-flash"

[[mcp]]
name = "inventory"
command = ["inventory-mcp", "--stdio"]
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.ListenAddr != ":9000" || c.DataDir != "/var/lib/pharmachat" {
		t.Errorf("config = %+v", c)
	}
	if c.MaxIterations != 4 || c.LogLevel != slog.LevelDebug {
		t.Errorf("config = %+v", c)
	}
	if len(c.ModelConfigs) != 2 {
		t.Fatalf("got %d model configs, want 2", len(c.ModelConfigs))
	}
	oc, ok := c.ModelConfigs[0].(*openai.Config)
	if !ok {
		t.Fatalf("model config 0 is %T", c.ModelConfigs[0])
	}
	if oc.BaseURL != "http://localhost:11434/v1" || oc.ModelName != "llama3" {
		t.Errorf("openai config = %+v", oc)
	}
	if _, ok := c.ModelConfigs[1].(*gemini.Config); !ok {
		t.Fatalf("model config 1 is %T", c.ModelConfigs[1])
	}
	if len(c.MCP) != 1 || c.MCP[0].Name != "inventory" {
		t.Errorf("mcp = %+v", c.MCP)
	}

	f, err := c.Factory()
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	if f.Name() != "local" {
		t.Errorf("factory name = %q", f.Name())
	}
}

func TestLoadConfigUnknownModelType(t *testing.T) {
	content := `
[[model_configs]]
type = "anthropic"
name = "x"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown model type")
	}
}

func TestFactoryNotFound(t *testing.T) {
	c := defaultConfig()
	c.ModelName = "missing"
	if _, err := c.Factory(); err == nil {
		t.Fatal("expected error for unknown model name")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	c := defaultConfig()
	data, err := c.MarshalTOML()
	if err != nil {
		t.Fatalf("MarshalTOML: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	c2, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c2.ModelName != c.ModelName || c2.MaxIterations != c.MaxIterations {
		t.Errorf("round trip = %+v", c2)
	}
	if len(c2.ModelConfigs) != 2 {
		t.Fatalf("got %d model configs", len(c2.ModelConfigs))
	}
}
