package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const EnvPrefix = "PLACEMENT"

var (
	SolverBackends = []string{"simplex", "pseudoboolean", "glpk"}
	StoreBackends  = []string{"memory", "redis"}
	OutputFormats  = []string{"text", "json", "yaml"}
	LogLevels      = []string{"debug", "info", "warn", "error"}
)

// Config is the full configuration of the placement tool
type Config struct {
	Input  InputConfig  `mapstructure:"input" yaml:"input" json:"input"`
	Solver SolverConfig `mapstructure:"solver" yaml:"solver" json:"solver"`
	Log    LogConfig    `mapstructure:"log" yaml:"log" json:"log"`
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store" json:"store"`
	// Output is the format rosters are printed in by the solve command
	Output string `mapstructure:"output" yaml:"output" json:"output"`
}

type InputConfig struct {
	// Path to a JSON file, an XLSX workbook or a directory of CSV tables
	Path string `mapstructure:"path" yaml:"path" json:"path"`
	// Format overrides the format inferred from Path
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

type SolverConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`
	// Timeout bounds a single solve. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	// MaxNodes caps the branch and bound tree of the simplex backend. Zero means unlimited.
	MaxNodes int    `mapstructure:"maxNodes" yaml:"maxNodes" json:"maxNodes"`
	GlpkPath string `mapstructure:"glpkPath" yaml:"glpkPath" json:"glpkPath"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level" json:"level"`
	Development bool   `mapstructure:"development" yaml:"development" json:"development"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

type StoreConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend" json:"backend"`
	RedisAddr string `mapstructure:"redisAddr" yaml:"redisAddr" json:"redisAddr"`
	RedisDB   int    `mapstructure:"redisDB" yaml:"redisDB" json:"redisDB"`
	KeyPrefix string `mapstructure:"keyPrefix" yaml:"keyPrefix" json:"keyPrefix"`
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input.path", "")
	v.SetDefault("input.format", "")
	v.SetDefault("solver.backend", "simplex")
	v.SetDefault("solver.timeout", time.Duration(0))
	v.SetDefault("solver.maxNodes", 0)
	v.SetDefault("solver.glpkPath", "glpsol")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redisAddr", "localhost:6379")
	v.SetDefault("store.redisDB", 0)
	v.SetDefault("store.keyPrefix", "placement")
	v.SetDefault("output", "text")
}

// New returns a viper instance with defaults and PLACEMENT_ environment overrides
// (e.g. PLACEMENT_SOLVER_BACKEND)
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes v into a validated Config
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("cannot read config file %v: %w", file, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("cannot decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (config Config) Validate() error {
	if !lo.Contains(OutputFormats, config.Output) {
		return fmt.Errorf("output must be one of %v, got %q", OutputFormats, config.Output)
	}
	if err := config.Solver.Validate(); err != nil {
		return err
	}
	if err := config.Log.Validate(); err != nil {
		return err
	}
	return config.Store.Validate()
}

func (config SolverConfig) Validate() error {
	if !lo.Contains(SolverBackends, config.Backend) {
		return fmt.Errorf("solver.backend must be one of %v, got %q", SolverBackends, config.Backend)
	}
	if config.Timeout < 0 {
		return fmt.Errorf("solver.timeout must be non-negative, got %v", config.Timeout)
	}
	if config.MaxNodes < 0 {
		return fmt.Errorf("solver.maxNodes must be non-negative, got %v", config.MaxNodes)
	}
	if config.Backend == "glpk" && config.GlpkPath == "" {
		return fmt.Errorf("solver.glpkPath must be set for the glpk backend")
	}
	return nil
}

func (config LogConfig) Validate() error {
	if !lo.Contains(LogLevels, config.Level) {
		return fmt.Errorf("log.level must be one of %v, got %q", LogLevels, config.Level)
	}
	return nil
}

func (config StoreConfig) Validate() error {
	if !lo.Contains(StoreBackends, config.Backend) {
		return fmt.Errorf("store.backend must be one of %v, got %q", StoreBackends, config.Backend)
	}
	if config.Backend == "redis" && config.RedisAddr == "" {
		return fmt.Errorf("store.redisAddr must be set for the redis backend")
	}
	if config.RedisDB < 0 {
		return fmt.Errorf("store.redisDB must be non-negative, got %v", config.RedisDB)
	}
	return nil
}
