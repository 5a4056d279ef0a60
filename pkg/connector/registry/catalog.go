package registry

import (
	"sort"
	"sync"

	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
)

// ConfigProperty describes one credential key a connector accepts.
type ConfigProperty struct {
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Secret      bool        `json:"secret,omitempty"`
}

// ConnectorInfo provides information about a connector
type ConnectorInfo struct {
	Name         string                    `json:"name"`
	Type         string                    `json:"type"`
	Description  string                    `json:"description"`
	Version      string                    `json:"version"`
	Author       string                    `json:"author"`
	Capabilities []string                  `json:"capabilities"`
	ConfigSchema map[string]ConfigProperty `json:"config_schema"`
}

// RequiredKeys returns the required config keys in sorted order.
func (i *ConnectorInfo) RequiredKeys() []string {
	var keys []string
	for k, p := range i.ConfigSchema {
		if p.Required {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// ConnectorCatalog manages connector metadata
type ConnectorCatalog struct {
	connectors map[string]*ConnectorInfo
	mu         sync.RWMutex
}

// NewConnectorCatalog creates a new connector catalog
func NewConnectorCatalog() *ConnectorCatalog {
	return &ConnectorCatalog{
		connectors: make(map[string]*ConnectorInfo),
	}
}

// Register adds a connector to the catalog
func (c *ConnectorCatalog) Register(info *ConnectorInfo) error {
	if info == nil || info.Name == "" {
		return errors.New(errors.ErrorTypeValidation, "connector info requires a name")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.connectors[info.Name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "connector %s already in catalog", info.Name)
	}

	c.connectors[info.Name] = info
	return nil
}

// Get retrieves connector information
func (c *ConnectorCatalog) Get(name string) (*ConnectorInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, exists := c.connectors[name]
	if !exists {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "connector %s not found in catalog", name)
	}
	return info, nil
}

// List returns all connectors in the catalog, sorted by name.
func (c *ConnectorCatalog) List() []*ConnectorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]*ConnectorInfo, 0, len(c.connectors))
	for _, info := range c.connectors {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

var globalCatalog = NewConnectorCatalog()

// RegisterConnectorInfo registers connector information in the global catalog
func RegisterConnectorInfo(info *ConnectorInfo) error {
	return globalCatalog.Register(info)
}

// GetConnectorInfo retrieves connector information from the global catalog
func GetConnectorInfo(name string) (*ConnectorInfo, error) {
	return globalCatalog.Get(name)
}

// ListConnectorInfo lists all connectors in the global catalog
func ListConnectorInfo() []*ConnectorInfo {
	return globalCatalog.List()
}
