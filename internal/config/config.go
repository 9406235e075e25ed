package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingInput is returned by RequireInputs when an input path is unset.
var ErrMissingInput = errors.New("missing input path")

// Config holds all application configuration.
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Graph    GraphConfig    `mapstructure:"graph"`
	Export   ExportConfig   `mapstructure:"export"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
}

type InputConfig struct {
	TitlesPath  string `mapstructure:"titles_path"`
	CreditsPath string `mapstructure:"credits_path"`
	Delimiter   string `mapstructure:"delimiter"`
	HasHeader   bool   `mapstructure:"has_header"`
	Quoting     bool   `mapstructure:"quoting"`
	LazyQuotes  bool   `mapstructure:"lazy_quotes"`
	Concurrent  bool   `mapstructure:"concurrent"`
}

// LimitsConfig caps how much of each input is consumed. Zero means unbounded.
type LimitsConfig struct {
	MaxTitleRows  int    `mapstructure:"max_title_rows"`
	MaxCreditRows int    `mapstructure:"max_credit_rows"`
	CapMode       string `mapstructure:"cap_mode"`
}

type GraphConfig struct {
	CountDuplicateCredits bool `mapstructure:"count_duplicate_credits"`
	MaxCastSize           int  `mapstructure:"max_cast_size"`
}

type ExportConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	EdgeLabels bool   `mapstructure:"edge_labels"`
}

type Neo4jConfig struct {
	URI       string `mapstructure:"uri"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	BatchSize int    `mapstructure:"batch_size"`
}

// SecretsConfig selects where credentials left empty in configuration are
// looked up. The environment is always consulted as a fallback.
type SecretsConfig struct {
	Provider   string `mapstructure:"provider"`
	FilePath   string `mapstructure:"file_path"`
	VaultAddr  string `mapstructure:"vault_addr"`
	VaultToken string `mapstructure:"vault_token"`
	VaultMount string `mapstructure:"vault_mount"`
	VaultPath  string `mapstructure:"vault_path"`
}

type TemporalConfig struct {
	Host       string        `mapstructure:"host"`
	Namespace  string        `mapstructure:"namespace"`
	TaskQueue  string        `mapstructure:"task_queue"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	HealthAddr string        `mapstructure:"health_addr"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

type LogConfig struct {
	Level            string        `mapstructure:"level"`
	Format           string        `mapstructure:"format"`
	Verbose          bool          `mapstructure:"verbose"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	// AuditPath receives one JSON line per build event. Empty disables it.
	AuditPath string `mapstructure:"audit_path"`
}

// FlagKeys maps CLI flag names onto configuration keys.
var FlagKeys = map[string]string{
	"titles":           "input.titles_path",
	"credits":          "input.credits_path",
	"concurrent":       "input.concurrent",
	"max-title-rows":   "limits.max_title_rows",
	"max-credit-rows":  "limits.max_credit_rows",
	"cap-mode":         "limits.cap_mode",
	"count-duplicates": "graph.count_duplicate_credits",
	"export":           "export.enabled",
	"format":           "export.format",
	"output":           "export.path",
	"edge-labels":      "export.edge_labels",
	"verbose":          "log.verbose",
	"metrics-file":     "metrics.textfile_path",
	"audit-log":        "log.audit_path",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input.titles_path", "")
	v.SetDefault("input.credits_path", "")
	v.SetDefault("input.delimiter", "\t")
	v.SetDefault("input.has_header", true)
	v.SetDefault("input.quoting", false)
	v.SetDefault("input.lazy_quotes", true)
	v.SetDefault("input.concurrent", false)

	v.SetDefault("limits.max_title_rows", 0)
	v.SetDefault("limits.max_credit_rows", 0)
	v.SetDefault("limits.cap_mode", "rows")

	v.SetDefault("graph.count_duplicate_credits", false)
	v.SetDefault("graph.max_cast_size", 0)

	v.SetDefault("export.enabled", false)
	v.SetDefault("export.format", "dot")
	v.SetDefault("export.path", "")
	v.SetDefault("export.edge_labels", false)

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.batch_size", 500)

	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.file_path", "")
	v.SetDefault("secrets.vault_addr", "http://localhost:8200")
	v.SetDefault("secrets.vault_token", "")
	v.SetDefault("secrets.vault_mount", "secret")
	v.SetDefault("secrets.vault_path", "castgraph")

	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "castgraph")
	v.SetDefault("temporal.run_timeout", 30*time.Minute)
	v.SetDefault("temporal.health_addr", ":8081")

	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.service_name", "castgraph")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("metrics.textfile_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.verbose", false)
	v.SetDefault("log.progress_interval", 2*time.Second)
	v.SetDefault("log.audit_path", "")
}

// Default returns the configuration with no file, environment or flags applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Limits.MaxTitleRows < 0 {
		warnings = append(warnings, fmt.Sprintf("limits max_title_rows %d is negative, treating as unbounded", c.Limits.MaxTitleRows))
	}
	if c.Limits.MaxCreditRows < 0 {
		warnings = append(warnings, fmt.Sprintf("limits max_credit_rows %d is negative, treating as unbounded", c.Limits.MaxCreditRows))
	}
	switch c.Limits.CapMode {
	case "", "rows", "retained":
	default:
		warnings = append(warnings, fmt.Sprintf("limits cap_mode %q is unknown, using 'rows'", c.Limits.CapMode))
	}
	if c.Input.Concurrent && c.Limits.CapMode == "retained" && c.Limits.MaxCreditRows > 0 {
		warnings = append(warnings, "input concurrent is ignored when cap_mode is 'retained' and max_credit_rows is set")
	}
	if len([]rune(c.Input.Delimiter)) != 1 {
		warnings = append(warnings, fmt.Sprintf("input delimiter %q must be a single character, using tab", c.Input.Delimiter))
	}
	if c.Export.Format == "neo4j" && c.Neo4j.Password == "" {
		warnings = append(warnings, "neo4j export is configured with an empty password, resolving it from the secrets provider")
	}
	switch c.Secrets.Provider {
	case "", "env", "file", "vault":
	default:
		warnings = append(warnings, fmt.Sprintf("secrets provider %q is unknown", c.Secrets.Provider))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

// RequireInputs reports whether both input paths are set.
func (c *Config) RequireInputs() error {
	if c.Input.TitlesPath == "" {
		return fmt.Errorf("%w: titles", ErrMissingInput)
	}
	if c.Input.CreditsPath == "" {
		return fmt.Errorf("%w: credits", ErrMissingInput)
	}
	return nil
}

// DelimiterRune returns the configured delimiter, falling back to tab.
func (c *Config) DelimiterRune() rune {
	r := []rune(c.Input.Delimiter)
	if len(r) != 1 {
		return '\t'
	}
	return r[0]
}

// LoadDotEnv loads a .env file from the working directory if one exists.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load reads configuration from an optional file, the environment and any
// flags in fs that appear in FlagKeys. Precedence is flag, env, file, default.
// Load does not report Validate warnings; callers log them.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CASTGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if fs != nil {
		for name, key := range FlagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}
