package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"github.com/amitbl/pharmachat/pkg/chat"
	"github.com/amitbl/pharmachat/pkg/tools"
)

// Config selects an OpenAI-compatible chat-completion backend.
type Config struct {
	ConfigName    string `toml:"name"`
	BaseURL       string `toml:"base_url,omitempty"`
	APIKey        string `toml:"api_key,omitempty"`
	APIKeyFromEnv string `toml:"api_key_env,omitempty"`
	ModelName     string `toml:"model_name"`
}

func (c *Config) Name() string {
	return c.ConfigName
}

func (c *Config) getOpts() ([]option.RequestOption, error) {
	var opts []option.RequestOption
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.APIKeyFromEnv != "" {
		apikey := os.Getenv(c.APIKeyFromEnv)
		if apikey == "" {
			return nil, fmt.Errorf("environment variable %s not found", c.APIKeyFromEnv)
		}
		opts = append(opts, option.WithAPIKey(apikey))
	} else if c.APIKey != "" {
		opts = append(opts, option.WithAPIKey(c.APIKey))
	}
	return opts, nil
}

func convertToolDef(d tools.ToolDefinition) (openai.ChatCompletionToolUnionParam, error) {
	rsch := d.RequestSchema()
	encoded, err := json.Marshal(rsch)
	if err != nil {
		return openai.ChatCompletionToolUnionParam{}, err
	}
	parameters := map[string]any{}
	if err := json.Unmarshal(encoded, &parameters); err != nil {
		return openai.ChatCompletionToolUnionParam{}, err
	}
	return openai.ChatCompletionToolUnionParam{
		OfFunction: &openai.ChatCompletionFunctionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        d.Name(),
				Description: param.NewOpt(d.Description()),
				Parameters:  parameters,
			},
			Type: "function",
		},
	}, nil
}

// NewTransport implements chat.TransportFactory.
func (c *Config) NewTransport(ctx context.Context, toolDefs []tools.ToolDefinition) (chat.Transport, error) {
	opts, err := c.getOpts()
	if err != nil {
		return nil, err
	}
	var toolParams []openai.ChatCompletionToolUnionParam
	for _, tdef := range toolDefs {
		toolParam, err := convertToolDef(tdef)
		if err != nil {
			return nil, err
		}
		toolParams = append(toolParams, toolParam)
	}
	return &Transport{
		client:    openai.NewChatCompletionService(opts...),
		modelName: c.ModelName,
		tools:     toolParams,
	}, nil
}
