package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConfig is a structured configuration for the mock factory.
type mockConfig struct {
	Endpoint string
	Tag      string
}

// mockFactory implements Factory for testing the manager.
type mockFactory struct {
	pType        Type
	pName        string
	setupCount   int
	destroyCount int
	lastConfig   *mockConfig
}

func (m *mockFactory) Type() Type      { return m.pType }
func (m *mockFactory) Name() string    { return m.pName }
func (m *mockFactory) ConfigType() any { return &mockConfig{} }
func (m *mockFactory) Setup(config any) (Plugin, error) {
	m.setupCount++
	m.lastConfig, _ = config.(*mockConfig)
	return &mockPlugin{fName: m.pName}, nil
}
func (m *mockFactory) Destroy(p Plugin) { m.destroyCount++ }

type mockPlugin struct {
	fName string
}

func (mp *mockPlugin) FactoryName() string { return mp.fName }

func TestManager(t *testing.T) {
	t.Run("RegisterFactory", func(t *testing.T) {
		factory := &mockFactory{pType: Metrics, pName: "mockreporter"}
		manager := NewManager()
		manager.RegisterFactory(factory)
		assert.NotNil(t, manager.factories[Metrics])
		assert.Equal(t, factory, manager.factories[Metrics]["mockreporter"])
	})

	t.Run("SetupPluginsDecodesConfig", func(t *testing.T) {
		factory := &mockFactory{pType: Metrics, pName: "mockreporter"}
		manager := NewManager()
		manager.RegisterFactory(factory)

		conf := map[string]any{
			"metrics": map[string]any{
				"mockreporter": map[string]any{
					"endpoint": "localhost:9090",
				},
			},
		}
		require.NoError(t, manager.SetupPlugins(conf))
		assert.Equal(t, 1, factory.setupCount)
		require.NotNil(t, factory.lastConfig)
		assert.Equal(t, "localhost:9090", factory.lastConfig.Endpoint)

		ins, err := manager.GetPlugin(Metrics, "mockreporter")
		require.NoError(t, err)
		assert.Equal(t, "mockreporter", ins.(Plugin).FactoryName())
	})

	t.Run("SetupPluginsUsesTagAsKey", func(t *testing.T) {
		factory := &mockFactory{pType: Metrics, pName: "mockreporter"}
		manager := NewManager()
		manager.RegisterFactory(factory)

		conf := map[string]any{
			"metrics": map[string]any{
				"mockreporter": map[string]any{
					"tag": DefaultInsName,
				},
			},
		}
		require.NoError(t, manager.SetupPlugins(conf))

		_, err := manager.GetDefaultPlugin(Metrics)
		assert.NoError(t, err)
	})

	t.Run("SetupPluginsUnknownName", func(t *testing.T) {
		manager := NewManager()
		manager.RegisterFactory(&mockFactory{pType: Metrics, pName: "mockreporter"})

		conf := map[string]any{
			"metrics": map[string]any{
				"nosuch": map[string]any{},
			},
		}
		assert.ErrorIs(t, manager.SetupPlugins(conf), ErrPluginNotFound)
	})

	t.Run("SetupPluginsUnregisteredTypeIgnored", func(t *testing.T) {
		manager := NewManager()
		conf := map[string]any{
			"transport": map[string]any{
				"anything": map[string]any{},
			},
		}
		assert.NoError(t, manager.SetupPlugins(conf))
	})

	t.Run("SetupPluginsInvalidFormat", func(t *testing.T) {
		manager := NewManager()
		manager.RegisterFactory(&mockFactory{pType: Metrics, pName: "mockreporter"})

		conf := map[string]any{
			"metrics": "not a map",
		}
		assert.ErrorIs(t, manager.SetupPlugins(conf), ErrInvalidConfigFormat)
	})

	t.Run("GetPluginMissing", func(t *testing.T) {
		manager := NewManager()
		_, err := manager.GetPlugin(Metrics, "absent")
		assert.ErrorIs(t, err, ErrPluginNotFound)
	})

	t.Run("DestroyPlugins", func(t *testing.T) {
		factory := &mockFactory{pType: Metrics, pName: "mockreporter"}
		manager := NewManager()
		manager.RegisterFactory(factory)

		conf := map[string]any{
			"metrics": map[string]any{
				"mockreporter": map[string]any{},
			},
		}
		require.NoError(t, manager.SetupPlugins(conf))
		manager.DestroyPlugins()
		assert.Equal(t, 1, factory.destroyCount)

		_, err := manager.GetPlugin(Metrics, "mockreporter")
		assert.ErrorIs(t, err, ErrPluginNotFound)
	})
}
