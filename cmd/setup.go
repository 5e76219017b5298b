package cmd

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cutzel/oracle-postprocess/pkg/config"
	"github.com/cutzel/oracle-postprocess/pkg/decompiler"
	"github.com/cutzel/oracle-postprocess/pkg/oplog"
	"github.com/cutzel/oracle-postprocess/pkg/storage"
)

// loadConfig merges defaults, config files, the environment and the command
// line flags, then sets up logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, loader := config.Loader()
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load the configuration")
	}

	if err := overrideFromFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := oplog.Setup(cfg.LogLevel(), cfg.Log.JSON, cfg.Log.File); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideFromFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("key") {
		value, err := flags.GetString("key")
		if err != nil {
			return err
		}
		cfg.Key = value
	}

	if flags.Changed("base-url") {
		value, err := flags.GetString("base-url")
		if err != nil {
			return err
		}
		cfg.BaseURL = value
	}

	if flags.Changed("transport") {
		value, err := flags.GetString("transport")
		if err != nil {
			return err
		}
		cfg.Transport = value
	}

	if flags.Changed("no-cache") {
		value, err := flags.GetBool("no-cache")
		if err != nil {
			return err
		}
		cfg.Cache.Disabled = value
	}

	return nil
}

// buildClient connects to the service over the configured transport and
// wraps the connection with the result cache unless that is disabled. The
// returned cleanup has to run after Shutdown so cached results are flushed
// before the database closes.
func buildClient(ctx context.Context, cfg *config.Config) (decompiler.Client, func(), error) {
	if cfg.Key == "" {
		return nil, nil, eris.New("Oracle key not provided (use --key, the ORACLE_KEY env variable or config.toml)")
	}

	var client decompiler.Client
	if cfg.Transport == "http" {
		client = decompiler.NewHTTPClient(cfg.BaseURL, cfg.Key)
	} else {
		opts, err := sessionOptions(cfg)
		if err != nil {
			return nil, nil, err
		}

		session, err := decompiler.Dial(ctx, decompiler.SessionParams{
			Endpoint:    cfg.StreamEndpoint(),
			Key:         cfg.Key,
			Options:     opts,
			MaxInFlight: cfg.Budget,
		})
		if err != nil {
			return nil, nil, err
		}
		client = session
	}

	cleanup := func() {}
	if !cfg.Cache.Disabled {
		cache, err := openCache(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to open the result cache, continuing without it")
		} else {
			client = decompiler.NewCached(client, cache)
			cleanup = func() {
				if err := cache.Close(); err != nil {
					log.Warn().Err(err).Msg("Failed to close the result cache")
				}
			}
		}
	}

	return client, cleanup, nil
}

func sessionOptions(cfg *config.Config) (interface{}, error) {
	if cfg.Options.File == "" {
		return nil, nil
	}

	return decompiler.LoadOptionsFile(cfg.Options.File, cfg.Options.Version)
}

func openCache(cfg *config.Config) (*storage.Cache, error) {
	path := cfg.Cache.Path
	if path == "" {
		fallback, err := storage.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = fallback
	}

	return storage.Open(path, Version)
}

// shutdownClient flushes pending work with a grace period. Runs deferred, so
// failures are only logged.
func shutdownClient(client decompiler.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("The service connection did not close cleanly")
	}
}
