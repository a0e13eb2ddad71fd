// package config loads the TOML configuration: the listen address, the
// data directory, the iteration cap, the configured model backends, and any
// MCP tool servers.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/amitbl/pharmachat/pkg/chat"
	"github.com/amitbl/pharmachat/pkg/chat/gemini"
	"github.com/amitbl/pharmachat/pkg/chat/openai"
	"github.com/amitbl/pharmachat/pkg/tools"
)

type ModelType string

const (
	ModelTypeOpenAI ModelType = "openai"
	ModelTypeGemini ModelType = "gemini"
)

type Config struct {
	ListenAddr    string
	DataDir       string
	ModelName     string
	MaxIterations int
	LogLevel      slog.Level

	ModelConfigs []chat.TransportFactory
	MCP          []tools.MCPServer
}

// Factory returns the transport factory selected by ModelName.
func (c *Config) Factory() (chat.TransportFactory, error) {
	for _, mc := range c.ModelConfigs {
		if mc.Name() == c.ModelName {
			return mc, nil
		}
	}
	return nil, fmt.Errorf("model config %q not found", c.ModelName)
}

func modelType(mc chat.TransportFactory) (ModelType, error) {
	switch mc.(type) {
	case *openai.Config:
		return ModelTypeOpenAI, nil
	case *gemini.Config:
		return ModelTypeGemini, nil
	default:
		return "", fmt.Errorf("unknown model config type %T", mc)
	}
}

func (c *Config) MarshalTOML() ([]byte, error) {
	data := map[string]any{
		"listen_addr":    c.ListenAddr,
		"data_dir":       c.DataDir,
		"model_name":     c.ModelName,
		"max_iterations": c.MaxIterations,
		"loglevel":       c.LogLevel.String(),
		"model_configs":  []map[string]any{},
	}
	for i, mc := range c.ModelConfigs {
		mt, err := modelType(mc)
		if err != nil {
			return nil, err
		}
		d, err := toml.Marshal(mc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %d-th config: %w", i, err)
		}
		m := map[string]any{}
		if err := toml.Unmarshal(d, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %d-th config: %w", i, err)
		}
		m["type"] = string(mt)
		data["model_configs"] = append(data["model_configs"].([]map[string]any), m)
	}
	if len(c.MCP) > 0 {
		data["mcp"] = c.MCP
	}
	return toml.Marshal(data)
}

func stringField(data map[string]any, key string, out *string) error {
	v, ok := data[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%s: want string got %T", key, v)
	}
	*out = s
	return nil
}

func (c *Config) UnmarshalTOML(input any) error {
	data, ok := input.(map[string]any)
	if !ok {
		return fmt.Errorf("type mismatched: want map[string]any got %T", input)
	}
	for key, out := range map[string]*string{
		"listen_addr": &c.ListenAddr,
		"data_dir":    &c.DataDir,
		"model_name":  &c.ModelName,
	} {
		if err := stringField(data, key, out); err != nil {
			return err
		}
	}
	if mi, ok := data["max_iterations"]; ok {
		n, ok := mi.(int64)
		if !ok {
			return fmt.Errorf("max_iterations: want integer got %T", mi)
		}
		c.MaxIterations = int(n)
	}
	c.LogLevel = slog.LevelInfo
	if ll, ok := data["loglevel"]; ok {
		lls, ok := ll.(string)
		if !ok {
			return fmt.Errorf("loglevel: want string got %T", ll)
		}
		if err := c.LogLevel.UnmarshalText([]byte(lls)); err != nil {
			return fmt.Errorf("failed to parse loglevel: %w", err)
		}
	}

	if mcpData, ok := data["mcp"]; ok {
		encoded, err := toml.Marshal(map[string]any{"mcp": mcpData})
		if err != nil {
			return err
		}
		var wrapper struct {
			MCP []tools.MCPServer `toml:"mcp"`
		}
		if err := toml.Unmarshal(encoded, &wrapper); err != nil {
			return fmt.Errorf("failed to parse mcp configs: %w", err)
		}
		c.MCP = wrapper.MCP
	}

	modelsData, ok := data["model_configs"]
	if !ok {
		return nil
	}
	models, ok := modelsData.([]map[string]any)
	if !ok {
		return fmt.Errorf("model_configs: want []map[string]any got %T", modelsData)
	}
	for i, modelConfig := range models {
		mtData, ok := modelConfig["type"]
		if !ok {
			return errors.New("missing field type for model config")
		}
		mtStr, ok := mtData.(string)
		if !ok {
			return fmt.Errorf("type mismatch for type field: want string got %T", mtData)
		}
		marshaled, err := toml.Marshal(modelConfig)
		if err != nil {
			return fmt.Errorf("failed to marshal %d-th config: %w", i, err)
		}
		switch ModelType(mtStr) {
		case ModelTypeOpenAI:
			openaiConfig := &openai.Config{}
			if err := toml.Unmarshal(marshaled, openaiConfig); err != nil {
				return fmt.Errorf("failed to parse %d-th config: %w", i, err)
			}
			c.ModelConfigs = append(c.ModelConfigs, openaiConfig)
		case ModelTypeGemini:
			geminiConfig := &gemini.Config{}
			if err := toml.Unmarshal(marshaled, geminiConfig); err != nil {
				return fmt.Errorf("failed to parse %d-th config: %w", i, err)
			}
			c.ModelConfigs = append(c.ModelConfigs, geminiConfig)
		default:
			return fmt.Errorf("unknown model config type %q", mtStr)
		}
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:    ":8080",
		DataDir:       "data",
		ModelName:     "openai",
		MaxIterations: 10,
		LogLevel:      slog.LevelInfo,
		ModelConfigs: []chat.TransportFactory{
			&openai.Config{
				ConfigName:    "openai",
				APIKeyFromEnv: "OPENAI_API_KEY",
				ModelName:     "gpt-4o-mini",
			},
			&gemini.Config{
				ConfigName:    "gemini",
				APIKeyFromEnv: "GEMINI_API_KEY",
				ModelName:     "gemini-2.5-flash",
			},
		},
	}
}

// LoadConfig reads the configuration from path, or from the user config dir
// when path is empty. A missing file is created with the defaults.
func LoadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path == "" {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		configDir := filepath.Join(userConfigDir, "pharmachat")
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, err
		}
		path = filepath.Join(configDir, "config.toml")
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		data, err := toml.Marshal(config)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	loadedConfig := defaultConfig()
	loadedConfig.ModelConfigs = nil
	if err := toml.Unmarshal(data, loadedConfig); err != nil {
		return nil, err
	}
	if len(loadedConfig.ModelConfigs) == 0 {
		loadedConfig.ModelConfigs = config.ModelConfigs
	}
	return loadedConfig, nil
}
