package logsink

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linchenxuan/logsink/persist"
	"github.com/linchenxuan/logsink/plugin"
)

func TestNewAndStop(t *testing.T) {
	dir := t.TempDir()
	cfg := &persist.EngineCfg{
		Dir:        dir,
		FilePrefix: "svc",
		Policy:     persist.FlushPolicy{ErrorImmediate: true},
	}

	s, err := New(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, s.Engine)
	require.NotNil(t, s.PluginManager)

	s.Engine.Emit(persist.ChannelError, "startup failed once", true)
	require.True(t, s.Engine.WaitIdle(2*time.Second))
	require.NoError(t, s.Stop(2*time.Second))

	assert.FileExists(t, filepath.Join(dir, "svc_error_log.txt"))
	assert.FileExists(t, filepath.Join(dir, "svc_log.txt"))
}

func TestNewWithDefaults(t *testing.T) {
	cfg := &persist.EngineCfg{Dir: t.TempDir()}
	s, err := New(cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, s.Stop(2*time.Second))
}

func TestNewRejectsBadPluginConf(t *testing.T) {
	cfg := &persist.EngineCfg{Dir: t.TempDir()}
	conf := map[string]any{
		"metrics": map[string]any{
			"nosuch": map[string]any{},
		},
	}
	_, err := New(cfg, conf)
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)
}
