package jsonl

import (
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination(ConnectorName, NewDestination)
	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         ConnectorName,
		Type:         "destination",
		Description:  "JSON-lines RECORD and STATE messages to stdout or a file",
		Version:      "1.0.0",
		Author:       "Nebula Team",
		Capabilities: []string{"streaming", "json_lines", "state_messages", "compression"},
		ConfigSchema: map[string]registry.ConfigProperty{
			"path": {Type: "string", Description: "Output file; \"-\" or empty writes to stdout", Default: StdoutPath},
		},
	})
}
