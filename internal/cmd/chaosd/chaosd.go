// Package chaosd parses chaosd command flags and launches the chaos
// engine runtime.
package chaosd

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/tremor/internal/platform/cmd"
	chaosdserver "github.com/louisbranch/tremor/internal/services/chaosd/app"
)

// Config holds chaosd command configuration.
type Config struct {
	Port           int           `env:"TREMOR_CHAOSD_PORT" envDefault:"8094"`
	DBPath         string        `env:"TREMOR_CHAOSD_DB_PATH" envDefault:"data/chaosd.db"`
	TickInterval   time.Duration `env:"TREMOR_CHAOSD_TICK_INTERVAL" envDefault:"15s"`
	CollectTimeout time.Duration `env:"TREMOR_CHAOSD_COLLECT_TIMEOUT" envDefault:"5s"`
	Regions        string        `env:"TREMOR_CHAOSD_REGIONS" envDefault:"crownspire:capital,heartland,edgewatch:frontier,mirewood:wilderness"`
	Seed           int64         `env:"TREMOR_CHAOSD_SEED" envDefault:"0"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The chaosd health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The chaosd SQLite database path")
	fs.DurationVar(&cfg.TickInterval, "tick-interval", cfg.TickInterval, "Orchestration loop interval")
	fs.DurationVar(&cfg.CollectTimeout, "collect-timeout", cfg.CollectTimeout, "Per-collector deadline")
	fs.StringVar(&cfg.Regions, "regions", cfg.Regions, "Comma-separated region list as name or name:type")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed; 0 picks one at startup")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the chaosd runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChaosd, func(context.Context) error {
		return chaosdserver.Run(ctx, chaosdserver.RuntimeConfig{
			Port:           cfg.Port,
			DBPath:         cfg.DBPath,
			TickInterval:   cfg.TickInterval,
			CollectTimeout: cfg.CollectTimeout,
			Regions:        cfg.Regions,
			Seed:           cfg.Seed,
		})
	})
}
