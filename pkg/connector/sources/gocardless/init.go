package gocardless

import (
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource(ConnectorName, NewSource)
	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         ConnectorName,
		Type:         "source",
		Description:  "Incremental extraction of GoCardless payments API resources",
		Version:      ConnectorVersion,
		Author:       "Nebula Team",
		Capabilities: []string{"incremental", "full_refresh", "cursor_pagination", "check", "discover"},
		ConfigSchema: map[string]registry.ConfigProperty{
			keyAccessToken: {Type: "string", Description: "GoCardless access token", Required: true, Secret: true},
			keyEnvironment: {
				Type:        "string",
				Description: "API environment",
				Default:     EnvironmentLive,
				Enum:        []string{EnvironmentLive, EnvironmentSandbox},
			},
			keyVersion:      {Type: "string", Description: "Value of the GoCardless-Version header, e.g. 2015-07-06", Required: true},
			keyStartDate:    {Type: "string", Description: "Earliest created_at to fetch: ISO-8601 timestamp, date (YYYY-MM-DD or YYYYMMDD) or Unix seconds (any other all-digit value)", Required: true},
			keyLookbackDays: {Type: "integer", Description: "Days subtracted from the start point on each read; the sign is ignored", Default: 0},
			keyStreams:      {Type: "string", Description: "Comma-separated stream names; empty reads all"},
			keyBaseURL:      {Type: "string", Description: "Overrides the environment base URL"},
		},
	})
}
