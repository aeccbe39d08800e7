// Package app wires the chaos engine runtime: storage, collectors, the
// health gRPC server, and the orchestration loop.
package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/tremor/internal/chaos/collect"
	"github.com/louisbranch/tremor/internal/chaos/engine"
	"github.com/louisbranch/tremor/internal/chaos/pressure"
	"github.com/louisbranch/tremor/internal/chaos/score"
	"github.com/louisbranch/tremor/internal/chaos/storage/sqlite"
	"github.com/louisbranch/tremor/internal/chaos/trigger"
	"github.com/louisbranch/tremor/internal/random"
)

// RuntimeConfig controls chaosd startup and loop behavior.
type RuntimeConfig struct {
	Port           int
	DBPath         string
	TickInterval   time.Duration
	CollectTimeout time.Duration
	Regions        string
	Seed           int64
}

const (
	defaultChaosdPort = 8094
	defaultChaosdDB   = "data/chaosd.db"
)

// Run starts chaosd runtime dependencies and the orchestration loop.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultChaosdPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultChaosdDB
	}
	if cfg.Seed == 0 {
		cfg.Seed = random.NewRand().Int63()
	}

	regionTypes, err := parseRegions(cfg.Regions)
	if err != nil {
		return fmt.Errorf("parse regions: %w", err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chaosd storage dir: %w", err)
		}
	}

	historyStore, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open chaosd sqlite store: %w", err)
	}
	defer func() {
		if closeErr := historyStore.Close(); closeErr != nil {
			log.Printf("close chaosd sqlite store: %v", closeErr)
		}
	}()

	eng := engine.New(ctx, engine.Config{
		TickInterval:   cfg.TickInterval,
		RegionTypes:    regionTypes,
		CollectTimeout: cfg.CollectTimeout,
	},
		engine.WithCollectors(simulatedCollectors(regionTypes, cfg.Seed)...),
		engine.WithHistory(historyStore),
		engine.WithDispatcher(logDispatcher{}),
		engine.WithSeed(cfg.Seed),
	)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on chaosd port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("chaosd.engine", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("chaosd server listening at %v", listener.Addr())
	return eng.Run(ctx)
}

// parseRegions reads a comma-separated "name:type" list. A bare name gets
// the standard profile.
func parseRegions(spec string) (map[string]score.RegionType, error) {
	out := make(map[string]score.RegionType)
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, typ, found := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("region entry %q has no name", entry)
		}
		if !found {
			out[name] = score.RegionStandard
			continue
		}
		switch regionType := score.RegionType(strings.TrimSpace(typ)); regionType {
		case score.RegionStandard, score.RegionCapital, score.RegionFrontier, score.RegionWilderness:
			out[name] = regionType
		default:
			return nil, fmt.Errorf("region %q has unknown type %q", name, typ)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one region is required")
	}
	return out, nil
}

// simulatedCollectors builds one random-walk collector per region and
// source, standing in for real game systems.
func simulatedCollectors(regionTypes map[string]score.RegionType, seed int64) []collect.Collector {
	rng := rand.New(rand.NewSource(seed))
	var collectors []collect.Collector
	for region := range regionTypes {
		for _, source := range pressure.Sources() {
			base := 0.2 + rng.Float64()*0.4
			name := fmt.Sprintf("%s-%s-sim", region, source)
			collectors = append(collectors, collect.NewSimulated(
				name, region, source, base,
				rand.New(rand.NewSource(rng.Int63())),
			))
		}
	}
	return collectors
}

// logDispatcher is the default event dispatch target when no game systems
// are connected.
type logDispatcher struct{}

func (logDispatcher) Dispatch(_ context.Context, system string, event trigger.Event) error {
	log.Printf("event %s (%s, %s) -> %s", event.Type, event.Region, event.Severity, system)
	return nil
}
