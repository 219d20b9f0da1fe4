// pkg/registry/default.go
package registry

import _ "embed"

//go:embed default_registry.json
var defaultRegistryJSON []byte

// DefaultJSON returns the registry shipped with the binary.
func DefaultJSON() []byte { return defaultRegistryJSON }

// Default parses the embedded registry.
func Default() (*Registry, error) {
	return Parse(defaultRegistryJSON, FormatJSON)
}
