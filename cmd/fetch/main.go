// Command fetch runs one paced batch over the gage registry, pulling fresh
// readings from each upstream source and refreshing the flat-file store and
// hydrograph images.
//
// Usage:
//
//	fetch [usgs|dwr|wyseo|prr|virtual] [reverse] [--verbose] [--id <gage-id>]
//
// With no arguments every gage runs in registry order. A source keyword
// restricts the batch to that source; reverse walks the list backwards; --id
// runs a single gage. Any argument implies verbose mode, which enables debug
// logging and disables pacing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	kafkaadapter "github.com/couchcryptid/river-gage-etl/internal/adapter/kafka"
	"github.com/couchcryptid/river-gage-etl/internal/config"
	"github.com/couchcryptid/river-gage-etl/internal/domain"
	"github.com/couchcryptid/river-gage-etl/internal/hydrograph"
	"github.com/couchcryptid/river-gage-etl/internal/observability"
	"github.com/couchcryptid/river-gage-etl/internal/registry"
	"github.com/couchcryptid/river-gage-etl/internal/runner"
	"github.com/couchcryptid/river-gage-etl/internal/source/dwr"
	"github.com/couchcryptid/river-gage-etl/internal/source/rockreport"
	"github.com/couchcryptid/river-gage-etl/internal/source/usgs"
	"github.com/couchcryptid/river-gage-etl/internal/source/wyseo"
	"github.com/couchcryptid/river-gage-etl/internal/store"
)

type options struct {
	source  domain.SourceType
	id      string
	reverse bool
	verbose bool
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
		cfg.FetchPacing = 0
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	reg, err := registry.Load(cfg.GageFile)
	if err != nil {
		logger.Error("failed to load gage registry", "error", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to open data directory", "error", err)
		os.Exit(1)
	}

	wyseoClient, err := wyseo.NewClient(cfg.RequestTimeout, cfg.PlotDays, logger)
	if err != nil {
		logger.Error("failed to create wyseo client", "error", err)
		os.Exit(1)
	}
	clients := map[domain.SourceType]runner.Fetcher{
		domain.SourceUSGS:  usgs.NewClient(cfg.RequestTimeout, cfg.PlotDays, logger),
		domain.SourceDWR:   dwr.NewClient(cfg.RequestTimeout, logger),
		domain.SourceWYSEO: wyseoClient,
		domain.SourcePRR:   rockreport.NewClient(cfg.RequestTimeout, st, logger),
	}

	// Readings sink is feature-flagged via KAFKA_ENABLED.
	var sink runner.ReadingSink
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sink = writer
		logger.Info("kafka readings sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	gages := selectGages(reg, opts)
	if len(gages) == 0 {
		logger.Error("no gages match the given filters")
		os.Exit(1)
	}

	r := runner.New(clients, reg, st, hydrograph.New(logger), sink, logger, metrics, cfg.FetchPacing, cfg.PlotDays)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := r.Run(ctx, gages); err != nil {
		logger.Error("batch aborted", "error", err)
		os.Exit(1)
	}
}

// parseArgs reads the positional filters and flags. Unknown arguments are an
// error rather than being silently ignored.
func parseArgs(args []string) (options, error) {
	var opts options
	for i := 0; i < len(args); i++ {
		switch arg := strings.ToLower(args[i]); arg {
		case "usgs":
			opts.source = domain.SourceUSGS
		case "dwr":
			opts.source = domain.SourceDWR
		case "wyseo":
			opts.source = domain.SourceWYSEO
		case "prr":
			opts.source = domain.SourcePRR
		case "virtual":
			opts.source = domain.SourceVirtual
		case "reverse":
			opts.reverse = true
		case "--verbose":
			opts.verbose = true
		case "--id":
			if i+1 >= len(args) {
				return options{}, fmt.Errorf("--id requires a gage id")
			}
			i++
			opts.id = args[i]
		default:
			return options{}, fmt.Errorf("unknown argument %q", args[i])
		}
	}
	// Any filter or flag means someone is running this by hand.
	opts.verbose = opts.verbose || len(args) > 0
	return opts, nil
}

// selectGages applies the CLI filters to the registry's gage list.
func selectGages(reg *registry.Registry, opts options) []domain.Gage {
	gages := reg.All()

	if opts.id != "" {
		var matched []domain.Gage
		for _, g := range gages {
			if g.ID == opts.id {
				matched = append(matched, g)
			}
		}
		gages = matched
	}

	if opts.source != "" {
		var matched []domain.Gage
		for _, g := range gages {
			if g.Type == opts.source {
				matched = append(matched, g)
			}
		}
		gages = matched
	}

	if opts.reverse {
		slices.Reverse(gages)
	}
	return gages
}
