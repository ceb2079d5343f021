package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/fixture"
	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/server"
	"github.com/GoSim-25-26J-441/topology-core/internal/topology"
	"github.com/GoSim-25-26J-441/topology-core/pkg/config"
	"github.com/GoSim-25-26J-441/topology-core/pkg/logger"
)

func main() {
	var fixturePath string
	var configPath string
	var compact bool

	flag.StringVar(&fixturePath, "fixture", "", "observation fixture to build the map from (required)")
	flag.StringVar(&configPath, "config", "", "path to the YAML configuration (defaults are used when empty)")
	flag.BoolVar(&compact, "compact", false, "print the map on a single line")
	flag.Parse()

	if fixturePath == "" {
		fmt.Fprintln(os.Stderr, "-fixture is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), fixturePath, configPath, compact, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "topoctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, fixturePath, configPath string, compact bool, out io.Writer) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	// Diagnostics go to stderr so stdout stays valid JSON
	log := logger.NewWithFormat(cfg.LogLevel, "text", os.Stderr)

	d, err := fixture.LoadFile(fixturePath, cfg)
	if err != nil {
		return err
	}
	schemas, err := histogram.SchemasFromConfig(cfg.Schemas)
	if err != nil {
		return err
	}
	callTimeout, err := cfg.Builder.GetCallTimeout()
	if err != nil {
		return err
	}

	b, err := topology.NewBuilder(d.Window,
		topology.WithCatalog(d.Catalog),
		topology.WithLogger(log.With("component", "topology")),
		topology.WithMaxWorkers(cfg.Builder.MaxWorkers),
		topology.WithCallTimeout(callTimeout),
		topology.WithMaxSlots(cfg.Builder.MaxSlots),
	)
	if err != nil {
		return err
	}

	start := time.Now()
	var m *topology.ApplicationMap
	if d.Observations.IsEmpty() && d.Application != nil {
		m, err = b.BuildSingleApplication(ctx, *d.Application, d.Registry)
	} else {
		m, err = b.BuildFromObservations(ctx, d.Observations, d.Registry, b.SummarySource(d.Summary(schemas, b.Slot())))
	}
	if err != nil {
		return err
	}
	log.Info("built map", "nodes", len(m.Nodes()), "links", len(m.Links()), "elapsed", time.Since(start))

	enc := json.NewEncoder(out)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(server.NewMapView(m, schemas))
}
