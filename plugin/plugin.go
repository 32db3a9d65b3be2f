// Package plugin manages optional logsink components (metric reporters)
// configured from decoded configuration maps.
package plugin

// Type is the type of plugin supported by the system.
type Type string

const (
	// Metrics plugins provide metric reporter backends.
	Metrics = "metrics"
)

// Factory is the interface for plugin factories.
type Factory interface {
	// Type returns the plugin type.
	Type() Type
	// Name returns the name of the plugin implementation.
	Name() string
	// ConfigType returns an empty struct that represents the plugin's configuration.
	// This struct will be populated by the manager using mapstructure.
	ConfigType() any
	// Setup initializes a plugin instance based on the configuration.
	Setup(any) (Plugin, error)

	Destroy(Plugin)
}

// Plugin is an initialized plugin instance.
type Plugin interface {
	FactoryName() string
}
