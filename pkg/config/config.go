// Package config loads the tool configuration. Values are merged from
// defaults, the first config.toml found (working directory, then the user
// config dir) and ORACLE_ environment variables; command line flags are
// applied on top by the CLI layer.
package config

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config describes all configuration options
type Config struct {
	Key       string `usage:"Oracle service key"`
	BaseURL   string `default:"https://oracle.mshq.dev/decompile" usage:"Oracle decompile endpoint"`
	StreamURL string `usage:"Oracle WebSocket endpoint (derived from the decompile endpoint when empty)"`
	Transport string `default:"ws" usage:"Transport used to reach the service (ws or http)"`
	Budget    int    `default:"8388608" usage:"Maximum payload bytes awaiting results on the WebSocket transport"`
	Cache     struct {
		Path     string `usage:"Result cache location (defaults to the user cache dir)"`
		Disabled bool   `default:"false" usage:"Skip the result cache entirely"`
	}
	Options struct {
		Version int    `default:"1" usage:"Decompiler options revision (1 or 2)"`
		File    string `usage:"JSON file with decompiler options to send after connecting"`
	}
	Log struct {
		Level string `default:"info"`
		File  string
		JSON  bool `default:"false" usage:"Output NDJSON instead of pretty console messages"`
	}
}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// Loader initializes an empty config object and returns a new Loader for this
// object. A .env file in the working directory is applied to the process
// environment first so ORACLE_KEY and friends can live there.
func Loader() (*Config, *aconfig.Loader) {
	_ = godotenv.Load()

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORACLE",
		SkipFlags: true,
		Files:     configFiles(),
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

func configFiles() []string {
	files := []string{"config.toml"}
	if base, err := os.UserConfigDir(); err == nil {
		files = append(files, filepath.Join(base, "oracle-postprocess", "config.toml"))
	}

	return files
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if _, ok := logLevels[cfg.Log.Level]; !ok {
		return eris.Errorf("invalid value for log.level: %s", cfg.Log.Level)
	}

	switch cfg.Transport {
	case "ws", "http":
	default:
		return eris.Errorf("invalid value for transport: %s (must be ws or http)", cfg.Transport)
	}

	if err := checkURL(cfg.BaseURL, "http", "https"); err != nil {
		return eris.Wrap(err, "invalid value for the decompile endpoint")
	}

	if cfg.StreamURL != "" {
		if err := checkURL(cfg.StreamURL, "ws", "wss"); err != nil {
			return eris.Wrap(err, "invalid value for the stream endpoint")
		}
	}

	if cfg.Budget <= 0 {
		return eris.Errorf("invalid value for budget: %d (must be positive)", cfg.Budget)
	}

	if cfg.Options.Version != 1 && cfg.Options.Version != 2 {
		return eris.Errorf("invalid value for options.version: %d (must be 1 or 2)", cfg.Options.Version)
	}

	return nil
}

func checkURL(value string, schemes ...string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return eris.Wrapf(err, "failed to parse %s", value)
	}

	if parsed.Host == "" {
		return eris.Errorf("%s has no host", value)
	}

	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			return nil
		}
	}

	return eris.Errorf("%s has an unexpected scheme (%s)", value, parsed.Scheme)
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}

// StreamEndpoint returns the WebSocket endpoint. When no explicit stream URL
// is configured, it is derived from the decompile endpoint: the scheme
// switches to its WebSocket equivalent and the path becomes /ws.
func (cfg *Config) StreamEndpoint() string {
	if cfg.StreamURL != "" {
		return cfg.StreamURL
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return ""
	}

	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	case "http":
		parsed.Scheme = "ws"
	}
	parsed.Path = "/ws"

	return parsed.String()
}
