package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	//** Act
	config, err := Load(New(), "")

	//** Assert
	require.Nil(t, err)
	assert.Equal(t, "simplex", config.Solver.Backend)
	assert.Equal(t, time.Duration(0), config.Solver.Timeout)
	assert.Equal(t, "glpsol", config.Solver.GlpkPath)
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, "memory", config.Store.Backend)
	assert.Equal(t, "text", config.Output)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	//** Arrange
	file := filepath.Join(t.TempDir(), "placement.yaml")
	content := `
solver:
  backend: pseudoboolean
  timeout: 30s
store:
  backend: redis
  redisAddr: redis:6379
output: json
`
	require.Nil(t, os.WriteFile(file, []byte(content), 0o644))
	t.Setenv("PLACEMENT_LOG_LEVEL", "debug")

	//** Act
	config, err := Load(New(), file)

	//** Assert
	require.Nil(t, err)
	assert.Equal(t, "pseudoboolean", config.Solver.Backend)
	assert.Equal(t, 30*time.Second, config.Solver.Timeout)
	assert.Equal(t, "redis", config.Store.Backend)
	assert.Equal(t, "redis:6379", config.Store.RedisAddr)
	assert.Equal(t, "json", config.Output)
	assert.Equal(t, "debug", config.Log.Level)
}

func TestLoadFailures(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)

	v := New()
	v.Set("solver.backend", "cplex")
	_, err = Load(v, "")
	assert.ErrorContains(t, err, "solver.backend")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		config, err := Load(New(), "")
		require.Nil(t, err)
		return config
	}

	invalid := map[string]func(config *Config){
		"Unknown output":        func(config *Config) { config.Output = "xml" },
		"Unknown backend":       func(config *Config) { config.Solver.Backend = "cplex" },
		"Negative timeout":      func(config *Config) { config.Solver.Timeout = -time.Second },
		"Negative max nodes":    func(config *Config) { config.Solver.MaxNodes = -1 },
		"Glpk without path":     func(config *Config) { config.Solver.Backend = "glpk"; config.Solver.GlpkPath = "" },
		"Unknown log level":     func(config *Config) { config.Log.Level = "verbose" },
		"Unknown store":         func(config *Config) { config.Store.Backend = "etcd" },
		"Redis without address": func(config *Config) { config.Store.Backend = "redis"; config.Store.RedisAddr = "" },
		"Negative redis db":     func(config *Config) { config.Store.RedisDB = -1 },
	}
	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			//** Arrange
			config := valid()
			mutate(&config)

			//** Act
			err := config.Validate()

			//** Assert
			assert.NotNil(t, err)
		})
	}
}
