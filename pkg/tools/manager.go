package tools

import (
	"context"
	"sort"

	"github.com/amitbl/pharmachat/pkg/store"
)

// Manager is a source of tool definitions. The built-in pharmacy lookups
// and any configured MCP servers both implement it.
type Manager interface {
	ToolDefs(ctx context.Context) ([]ToolDefinition, error)
	Close() error
}

// MCPServer configures one external MCP tool server.
type MCPServer struct {
	Name           string            `toml:"name"`
	Command        []string          `toml:"command,omitempty"`
	Endpoint       string            `toml:"endpoint,omitempty"`
	RequestHeaders map[string]string `toml:"request_headers,omitempty"`
}

// NewManagers builds the tool managers: every configured MCP server first,
// then the pharmacy tools.
func NewManagers(s *store.Store, servers []MCPServer) []Manager {
	mcpManagers := map[string]Manager{}
	for _, sv := range servers {
		if sv.Endpoint != "" {
			mcpManagers[sv.Name] = NewHTTPMCP(sv.Name, sv.Endpoint, sv.RequestHeaders)
		} else if len(sv.Command) > 0 {
			mcpManagers[sv.Name] = NewCommandMCP(sv.Name, sv.Command)
		}
	}
	var keys []string
	for k := range mcpManagers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	mgrs := make([]Manager, 0, len(keys)+1)
	for _, k := range keys {
		mgrs = append(mgrs, mcpManagers[k])
	}
	return append(mgrs, NewPharmacy(s))
}

// CollectDefs flattens all managers into one definition list. On a name
// conflict the later manager wins, so the pharmacy tools shadow any MCP
// tool of the same name.
func CollectDefs(ctx context.Context, mgrs []Manager) ([]ToolDefinition, error) {
	var defs []ToolDefinition
	byName := map[string]int{}
	for _, m := range mgrs {
		tds, err := m.ToolDefs(ctx)
		if err != nil {
			return nil, err
		}
		for _, td := range tds {
			if i, ok := byName[td.Name()]; ok {
				defs[i] = td
				continue
			}
			byName[td.Name()] = len(defs)
			defs = append(defs, td)
		}
	}
	return defs, nil
}
