// Package logsink assembles the append-only log persistence engine with its
// supporting subsystems: internal logging, the plugin manager, and the
// optional metric reporter plugins.
package logsink

import (
	"time"

	"github.com/linchenxuan/logsink/log"
	"github.com/linchenxuan/logsink/metrics/prometheus"
	"github.com/linchenxuan/logsink/persist"
	"github.com/linchenxuan/logsink/plugin"
)

// LogSink is the top-level application struct, holding the persistence engine
// and the plugin manager.
type LogSink struct {
	Engine        *persist.Engine
	PluginManager *plugin.Manager
}

// New creates a LogSink instance. A nil cfg starts the engine with defaults.
// pluginConf optionally enables plugins from decoded configuration; the
// Prometheus metric reporter factory is registered out of the box.
func New(cfg *persist.EngineCfg, pluginConf map[string]any) (*LogSink, error) {
	// 1. Plugins first so metric reporters observe the engine from its
	// first write.
	pluginManager := plugin.NewManager()
	pluginManager.RegisterFactory(prometheus.Factory())
	if len(pluginConf) > 0 {
		if err := pluginManager.SetupPlugins(pluginConf); err != nil {
			return nil, err
		}
	}

	// 2. Persistence engine.
	engine, err := persist.NewEngine(cfg)
	if err != nil {
		pluginManager.DestroyPlugins()
		return nil, err
	}

	s := &LogSink{
		Engine:        engine,
		PluginManager: pluginManager,
	}

	log.Info().Msg("logsink initialized")
	return s, nil
}

// Stop gracefully shuts down the engine within timeout and tears down all
// plugins. The engine error is returned after plugin teardown completes.
func (s *LogSink) Stop(timeout time.Duration) error {
	err := s.Engine.Shutdown(timeout)
	s.PluginManager.DestroyPlugins()
	log.Info().Msg("logsink stopped")
	return err
}
