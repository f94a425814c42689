// Package runner walks the gage registry, fetches each real gage through its
// source client, computes virtual gages from stored inputs, and persists
// readings and hydrograph images.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
	"github.com/couchcryptid/river-gage-etl/internal/hydrograph"
	"github.com/couchcryptid/river-gage-etl/internal/observability"
	"github.com/couchcryptid/river-gage-etl/internal/registry"
	"github.com/couchcryptid/river-gage-etl/internal/series"
	"github.com/couchcryptid/river-gage-etl/internal/store"
)

// Fetcher pulls one gage's update from its upstream source.
type Fetcher interface {
	Fetch(ctx context.Context, g domain.Gage) (domain.SeriesUpdate, error)
}

// ReadingSink receives readings after they are persisted. Sink failures are
// logged but never fail the batch; flat files remain the source of truth.
type ReadingSink interface {
	PublishReadings(ctx context.Context, g domain.Gage, readings domain.Series) error
}

// retryDelay is how long to wait before the one USGS retry. Independent of
// pacing: even in verbose mode the page needs time to regenerate its image.
const retryDelay = 3 * time.Second

// Runner executes one paced pass over a list of gages.
type Runner struct {
	clients    map[domain.SourceType]Fetcher
	registry   *registry.Registry
	store      *store.Store
	renderer   *hydrograph.Renderer
	sink       ReadingSink
	logger     *slog.Logger
	metrics    *observability.Metrics
	pacing     time.Duration
	retryDelay time.Duration
	plotDays   int
}

// New creates a Runner. sink may be nil when no downstream publishing is
// configured. pacing zero disables inter-gage delays.
func New(clients map[domain.SourceType]Fetcher, reg *registry.Registry, st *store.Store, renderer *hydrograph.Renderer, sink ReadingSink, logger *slog.Logger, metrics *observability.Metrics, pacing time.Duration, plotDays int) *Runner {
	return &Runner{
		clients:    clients,
		registry:   reg,
		store:      st,
		renderer:   renderer,
		sink:       sink,
		logger:     logger,
		metrics:    metrics,
		pacing:     pacing,
		retryDelay: retryDelay,
		plotDays:   plotDays,
	}
}

// Run processes the gages in order, sleeping the pacing interval between
// them. A gage failure never aborts the batch; the gage is skipped and the
// batch moves on. Run returns early only on context cancellation.
func (r *Runner) Run(ctx context.Context, gages []domain.Gage) error {
	r.logger.Info("batch started", "gages", len(gages))
	r.metrics.BatchRunning.Set(1)
	defer r.metrics.BatchRunning.Set(0)

	start := time.Now()
	for i, g := range gages {
		if i > 0 && !sleepWithContext(ctx, r.pacing) {
			r.logger.Info("batch cancelled", "reason", ctx.Err())
			return ctx.Err()
		}
		if ctx.Err() != nil {
			r.logger.Info("batch cancelled", "reason", ctx.Err())
			return ctx.Err()
		}
		r.processGage(ctx, g)
	}

	elapsed := time.Since(start)
	r.metrics.BatchDuration.Observe(elapsed.Seconds())
	r.logger.Info("batch finished", "gages", len(gages), "duration", elapsed)
	return nil
}

// processGage fetches, stores, and renders one gage, retrying exactly once
// when the USGS page is mid-refresh and its hydrograph image is missing.
func (r *Runner) processGage(ctx context.Context, g domain.Gage) {
	start := time.Now()

	update, err := r.fetch(ctx, g)
	if errors.Is(err, domain.ErrImageNotFound) {
		r.logger.Warn("hydrograph image missing, retrying once", "gage", g.ID, "source", g.Type)
		r.metrics.FetchRetries.Inc()
		if !sleepWithContext(ctx, r.retryDelay) {
			return
		}
		update, err = r.fetch(ctx, g)
	}
	if err != nil {
		r.logger.Warn("fetch failed, skipping gage", "gage", g.ID, "source", g.Type, "error", err)
		r.metrics.GagesProcessed.WithLabelValues(string(g.Type), "skipped").Inc()
		return
	}
	r.metrics.FetchDuration.WithLabelValues(string(g.Type)).Observe(time.Since(start).Seconds())

	if update.NoChange {
		r.logger.Debug("no new data", "gage", g.ID, "source", g.Type)
		r.metrics.GagesProcessed.WithLabelValues(string(g.Type), "no_change").Inc()
		return
	}

	if err := r.apply(ctx, g, update); err != nil {
		r.logger.Warn("store failed, skipping gage", "gage", g.ID, "source", g.Type, "error", err)
		r.metrics.GagesProcessed.WithLabelValues(string(g.Type), "skipped").Inc()
		return
	}

	r.logger.Info("gage stored", "gage", g.ID, "source", g.Type, "readings", len(update.Readings))
	r.metrics.GagesProcessed.WithLabelValues(string(g.Type), "stored").Inc()
}

// fetch dispatches to the gage's source client, or computes the series
// locally for virtual gages.
func (r *Runner) fetch(ctx context.Context, g domain.Gage) (domain.SeriesUpdate, error) {
	if g.Type == domain.SourceVirtual {
		return r.computeVirtual(g)
	}
	client, ok := r.clients[g.Type]
	if !ok {
		return domain.SeriesUpdate{}, fmt.Errorf("no client configured for source %s", g.Type)
	}
	return client.Fetch(ctx, g)
}

// computeVirtual derives a series from the stored data of the gage's two
// inputs. Virtual gages run after their inputs in registry order, so the
// input files are fresh from the same batch.
func (r *Runner) computeVirtual(g domain.Gage) (domain.SeriesUpdate, error) {
	if len(g.Inputs) != 2 {
		return domain.SeriesUpdate{}, fmt.Errorf("virtual gage %s needs 2 inputs, has %d", g.ID, len(g.Inputs))
	}

	inputs := make([]domain.Series, len(g.Inputs))
	for i, ref := range g.Inputs {
		in, err := r.registry.Lookup(ref.ID, ref.Type)
		if err != nil {
			return domain.SeriesUpdate{}, fmt.Errorf("input of %s: %w", g.ID, err)
		}
		s, err := r.store.Series(in)
		if err != nil {
			return domain.SeriesUpdate{}, fmt.Errorf("read input %s: %w", in.ID, err)
		}
		inputs[i] = s
	}

	var (
		computed domain.Series
		err      error
	)
	switch g.Recipe {
	case domain.RecipeDifference:
		computed, err = series.Difference(inputs[0], inputs[1], r.plotDays)
	case domain.RecipeInflow:
		computed, err = series.EstimatedInflow(inputs[0], inputs[1], r.plotDays)
	default:
		return domain.SeriesUpdate{}, fmt.Errorf("virtual gage %s has unknown recipe %q", g.ID, g.Recipe)
	}
	if err != nil {
		return domain.SeriesUpdate{}, fmt.Errorf("compute %s: %w", g.ID, err)
	}

	return domain.SeriesUpdate{Readings: computed, Mode: domain.ReplaceSeries}, nil
}

// apply writes the update to the store, refreshes the gage's hydrograph
// image, and publishes stored readings to the sink.
func (r *Runner) apply(ctx context.Context, g domain.Gage, update domain.SeriesUpdate) error {
	switch update.Mode {
	case domain.ReplaceSeries:
		if err := r.store.Replace(g, update.Readings); err != nil {
			return err
		}
	case domain.AppendReading:
		if len(update.Readings) != 1 {
			return fmt.Errorf("append update carries %d readings", len(update.Readings))
		}
		if err := r.store.Append(g, update.Readings[0]); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown update mode %d", update.Mode)
	}
	r.metrics.ReadingsStored.Add(float64(len(update.Readings)))

	if err := r.refreshImage(g, update); err != nil {
		return err
	}

	if r.sink != nil {
		if err := r.sink.PublishReadings(ctx, g, update.Readings); err != nil {
			r.logger.Warn("publish readings failed", "gage", g.ID, "error", err)
		}
	}
	return nil
}

// refreshImage stores the upstream image when the source provided one, and
// renders a hydrograph from the stored series otherwise.
func (r *Runner) refreshImage(g domain.Gage, update domain.SeriesUpdate) error {
	if update.Image != nil {
		return r.store.WriteImage(g, update.Image)
	}

	stored, err := r.store.Series(g)
	if err != nil {
		return fmt.Errorf("read back series: %w", err)
	}
	return r.renderer.Render(g, stored, r.plotDays, r.store.ImagePath(g))
}

// sleepWithContext sleeps d unless the context is cancelled first. Returns
// false on cancellation.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
