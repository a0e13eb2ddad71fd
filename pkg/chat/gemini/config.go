package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"

	"github.com/amitbl/pharmachat/pkg/chat"
	"github.com/amitbl/pharmachat/pkg/tools"
)

// Config selects a Gemini backend.
type Config struct {
	ConfigName    string `toml:"name"`
	APIKey        string `toml:"api_key,omitempty"`
	APIKeyFromEnv string `toml:"api_key_env,omitempty"`
	ModelName     string `toml:"model_name"`
}

func (c *Config) Name() string {
	return c.ConfigName
}

func toSchema(s *jsonschema.Schema) (*genai.Schema, error) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	decoded := &genai.Schema{}
	if err := json.Unmarshal(encoded, decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// NewTransport implements chat.TransportFactory.
func (c *Config) NewTransport(ctx context.Context, toolDefs []tools.ToolDefinition) (chat.Transport, error) {
	apiKey := c.APIKey
	if c.APIKeyFromEnv != "" {
		apiKey = os.Getenv(c.APIKeyFromEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("environment variable %s not found", c.APIKeyFromEnv)
		}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}

	var funcs []*genai.FunctionDeclaration
	for _, d := range toolDefs {
		params, err := toSchema(d.RequestSchema())
		if err != nil {
			return nil, fmt.Errorf("failed to encode request schema for %s: %w", d.Name(), err)
		}
		resp, err := toSchema(d.ResponseSchema())
		if err != nil {
			return nil, fmt.Errorf("failed to encode response schema for %s: %w", d.Name(), err)
		}
		funcs = append(funcs, &genai.FunctionDeclaration{
			Name:        d.Name(),
			Description: d.Description(),
			Behavior:    genai.BehaviorBlocking,
			Parameters:  params,
			Response:    resp,
		})
	}
	return &Transport{
		client:    client,
		modelName: c.ModelName,
		funcs:     funcs,
	}, nil
}
