package config

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Sources  []SourceConfig `yaml:"sources" mapstructure:"sources"`
}

// StoreConfig selects the storage adapter. Path is used by sqlite,
// DatabaseURL by postgres.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type PipelineConfig struct {
	Workers            int      `yaml:"workers" mapstructure:"workers"`
	MemberThreshold    int      `yaml:"member_threshold" mapstructure:"member_threshold"`
	RulesFile          string   `yaml:"rules_file" mapstructure:"rules_file"`
	HighScrutinySheets []string `yaml:"high_scrutiny_sheets" mapstructure:"high_scrutiny_sheets"`
	AffiliationSheets  []string `yaml:"affiliation_sheets" mapstructure:"affiliation_sheets"`
}

// SourceConfig describes one named tabular source. Columns prepends
// candidate headers per logical field for this source only.
type SourceConfig struct {
	Name      string              `yaml:"name" mapstructure:"name"`
	Path      string              `yaml:"path" mapstructure:"path"`
	Sheet     string              `yaml:"sheet" mapstructure:"sheet"`
	Kind      string              `yaml:"kind" mapstructure:"kind"`
	HeaderRow int                 `yaml:"header_row" mapstructure:"header_row"`
	Columns   map[string][]string `yaml:"columns" mapstructure:"columns"`
}

// SheetName is the worksheet to read for xlsx sources.
func (s SourceConfig) SheetName() string {
	if strings.TrimSpace(s.Sheet) != "" {
		return s.Sheet
	}
	return s.Name
}

// SourceKind resolves the configured kind, falling back to the file
// extension.
func (s SourceConfig) SourceKind() string {
	if k := strings.ToLower(strings.TrimSpace(s.Kind)); k != "" {
		return k
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".csv", ".tsv", ".txt":
		return "csv"
	case ".html", ".htm":
		return "html"
	default:
		return ""
	}
}

// Load reads configuration from an optional YAML file, .env and the
// GROUPWATCH_ environment. An empty path searches for groupwatch.yaml in
// the working directory.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("groupwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GROUPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", filepath.Join("data", "groups.db"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.member_threshold", 50000)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks the settings an import run depends on.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Store.Path) == "" {
			return eris.New("config: store.path is required for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			return eris.New("config: store.database_url is required for postgres (GROUPWATCH_STORE_DATABASE_URL)")
		}
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}

	if len(c.Sources) == 0 {
		return eris.New("config: no sources configured")
	}
	seen := map[string]struct{}{}
	for i, src := range c.Sources {
		name := strings.TrimSpace(src.Name)
		if name == "" {
			return eris.Errorf("config: sources[%d] has no name", i)
		}
		if _, dup := seen[name]; dup {
			return eris.Errorf("config: duplicate source name %q", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(src.Path) == "" {
			return eris.Errorf("config: source %q has no path", name)
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
