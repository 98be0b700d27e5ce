// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/libos"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, libos.DefaultConfig().Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LIBOS_MAX_PORTS", "12")
	t.Setenv("LIBOS_SCHEDULER", "backoff")
	t.Setenv("LIBOS_LOG_LEVEL", "debug")
	t.Setenv("LIBOS_METRICS_NAMESPACE", "test")

	cfg, err := libos.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxPorts)
	assert.Equal(t, libos.SchedulerBackoff, cfg.Scheduler)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "test", cfg.Metrics.Namespace)
	// untouched keys keep their defaults
	assert.Equal(t, libos.DefaultConfig().MaxTasks, cfg.MaxTasks)
	assert.Equal(t, libos.DefaultConfig().ShuttlesPerTask, cfg.ShuttlesPerTask)
}

func TestLoadConfigRejectsBadEnv(t *testing.T) {
	t.Setenv("LIBOS_MAX_TASKS", "lots")
	_, err := libos.LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_tasks: 8
handles_per_task: 4
log:
  development: true
metrics:
  enabled: true
`), 0o644))

	cfg, err := libos.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxTasks)
	assert.Equal(t, 4, cfg.HandlesPerTask)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "libos", cfg.Metrics.Namespace)
	assert.Equal(t, libos.DefaultConfig().MaxPorts, cfg.MaxPorts)
}

func TestLoadConfigFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := libos.LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("max_tasks: [1"), 0o644))
	_, err = libos.LoadConfigFile(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("scheduler: fifo\n"), 0o644))
	_, err = libos.LoadConfigFile(invalid)
	assert.ErrorContains(t, err, "unknown scheduler")
}

func TestValidateBounds(t *testing.T) {
	for name, mod := range map[string]func(*libos.Config){
		"zero tasks":       func(c *libos.Config) { c.MaxTasks = 0 },
		"too many ports":   func(c *libos.Config) { c.MaxPorts = 1 << 16 },
		"negative handles": func(c *libos.Config) { c.HandlesPerTask = -1 },
		"zero shuttles":    func(c *libos.Config) { c.ShuttlesPerTask = 0 },
		"zero ring":        func(c *libos.Config) { c.CompletionRing = 0 },
		"huge ring":        func(c *libos.Config) { c.CompletionRing = int(^uint(0) >> 1) },
		"unknown sched":    func(c *libos.Config) { c.Scheduler = "fifo" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := libos.DefaultConfig()
			mod(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := libos.New(cfg)
			assert.Error(t, err)
		})
	}

	cfg := libos.DefaultConfig()
	cfg.CompletionRing = 1<<16 - 1
	assert.NoError(t, cfg.Validate())
}
