// Package pipeline runs a voxelization batch: ingest, render, then place
// signage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/twpayne/go-voxelize/feature"
	"github.com/twpayne/go-voxelize/geo"
	"github.com/twpayne/go-voxelize/internal/monitoring"
	"github.com/twpayne/go-voxelize/placement"
	"github.com/twpayne/go-voxelize/render"
	"github.com/twpayne/go-voxelize/topology"
	"github.com/twpayne/go-voxelize/world"
)

// ErrFatal wraps errors that abort a run.
var ErrFatal = errors.New("fatal")

var (
	featuresSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_pipeline_features_skipped_total",
		Help: "The total number of features skipped because they could not be rendered",
	})
	panicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxelize_pipeline_panics_recovered_total",
		Help: "The total number of panics recovered while rendering a feature",
	})
)

// A Report summarizes a run.
type Report struct {
	RunID               uuid.UUID     `json:"run_id"`
	StoriesAugmented    int           `json:"stories_augmented"`
	AddressesCorrelated int           `json:"addresses_correlated"`
	Roads               int           `json:"roads"`
	Buildings           int           `json:"buildings"`
	Barriers            int           `json:"barriers"`
	AddressSigns        int           `json:"address_signs"`
	Intersections       int           `json:"intersections"`
	StreetNameSigns     int           `json:"street_name_signs"`
	Lights              int           `json:"lights"`
	Signs               int           `json:"signs"`
	Skipped             int           `json:"skipped"`
	Duration            time.Duration `json:"duration"`
}

// An Option sets an option on a run.
type Option func(*runner)

// WithStoryAugmenter sets the story augmenter run before rendering.
func WithStoryAugmenter(augmenter feature.StoryAugmenter) Option {
	return func(r *runner) {
		r.augmenter = augmenter
	}
}

// WithRendererOptions sets the renderer's options.
func WithRendererOptions(options ...render.Option) Option {
	return func(r *runner) {
		r.rendererOptions = append(r.rendererOptions, options...)
	}
}

// WithPlacerOptions sets the placer's options.
func WithPlacerOptions(options ...placement.Option) Option {
	return func(r *runner) {
		r.placerOptions = append(r.placerOptions, options...)
	}
}

// WithRunID sets the run ID. The default is a random UUID.
func WithRunID(runID uuid.UUID) Option {
	return func(r *runner) {
		r.report.RunID = runID
	}
}

type runner struct {
	repository      *feature.Repository
	converter       *geo.Converter
	store           world.Store
	augmenter       feature.StoryAugmenter
	rendererOptions []render.Option
	placerOptions   []placement.Option
	occupancy       *render.OccupancyMap
	renderer        *render.Renderer
	report          *Report
}

// Run renders repository into store. Features that cannot be rendered are
// skipped and counted in the report. Any other error aborts the run, wrapped
// in ErrFatal, after flushing whatever has already been written. ctx is
// checked between features. On success the store is saved.
func Run(ctx context.Context, repository *feature.Repository, converter *geo.Converter, store world.Store, options ...Option) (*Report, error) {
	r := &runner{
		repository: repository,
		converter:  converter,
		store:      store,
		occupancy:  render.NewOccupancyMap(),
		report:     &Report{},
	}
	for _, option := range options {
		option(r)
	}
	if r.report.RunID == uuid.Nil {
		r.report.RunID = uuid.New()
	}
	r.renderer = render.NewRenderer(converter, store, r.occupancy, r.rendererOptions...)

	start := time.Now()
	err := r.run(ctx)
	r.report.Duration = time.Since(start)
	if err != nil {
		if flushErr := store.Flush(context.WithoutCancel(ctx)); flushErr != nil {
			err = errors.Join(err, fmt.Errorf("flush: %w", flushErr))
		}
		monitoring.Logf("run %s: %v", r.report.RunID, err)
		return r.report, err
	}
	monitoring.Logf("run %s: %d roads, %d buildings, %d barriers, %d intersections, %d signs, %d skipped in %s",
		r.report.RunID, r.report.Roads, r.report.Buildings, r.report.Barriers, r.report.Intersections,
		r.report.StreetNameSigns+r.report.Lights+r.report.Signs+r.report.AddressSigns, r.report.Skipped, r.report.Duration)
	return r.report, nil
}

func (r *runner) run(ctx context.Context) error {
	if err := r.ingest(); err != nil {
		return err
	}
	if err := r.render(ctx); err != nil {
		return err
	}
	if err := r.place(ctx); err != nil {
		return err
	}
	if err := r.store.Save(ctx); err != nil {
		return fmt.Errorf("%w: save: %w", ErrFatal, err)
	}
	return nil
}

// ingest completes building addresses from address points, then applies
// story counts by address.
func (r *runner) ingest() error {
	r.report.AddressesCorrelated = feature.CorrelateAddresses(r.repository)
	if r.augmenter != nil {
		n, err := r.augmenter.Augment(r.repository)
		if err != nil {
			return fmt.Errorf("%w: augment stories: %w", ErrFatal, err)
		}
		r.report.StoriesAugmented = n
	}
	return nil
}

func (r *runner) render(ctx context.Context) error {
	for _, road := range OrderRoads(r.repository.Roads) {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch ok, err := r.do("road", road.ID, func() error {
			return r.renderer.RenderRoad(ctx, road)
		}); {
		case err != nil:
			return err
		case ok:
			r.report.Roads++
		}
	}

	var rendered []*feature.BuildingFeature
	for _, building := range OrderBuildings(r.repository.Buildings) {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch ok, err := r.do("building", building.ID, func() error {
			return r.renderer.RenderBuilding(ctx, building)
		}); {
		case err != nil:
			return err
		case ok:
			r.report.Buildings++
			rendered = append(rendered, building)
		}
	}

	for _, barrier := range OrderBarriers(r.repository.Barriers) {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch ok, err := r.do("barrier", barrier.ID, func() error {
			return r.renderer.RenderBarrier(ctx, barrier)
		}); {
		case err != nil:
			return err
		case ok:
			r.report.Barriers++
		}
	}

	for _, building := range rendered {
		if !building.HasAddress() {
			continue
		}
		if _, err := r.do("address", building.ID, func() error {
			placed, err := r.renderer.PlaceAddressSign(ctx, building, r.repository.RoadsNamed(building.Street))
			if placed {
				r.report.AddressSigns++
			}
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) place(ctx context.Context) error {
	detector := topology.NewDetector(r.occupancy, topology.WithRoads(r.repository))
	intersections := detector.DetectAll()
	r.report.Intersections = len(intersections)

	placer := placement.NewPlacer(r.converter, r.store, r.occupancy, r.repository, r.placerOptions...)
	for _, sign := range r.repository.Signs {
		// Signals that cannot be converted are reported when they are placed.
		if err := placer.AddSignal(sign); err != nil && !isRecoverable(err) {
			return fmt.Errorf("%w: sign %d: %w", ErrFatal, sign.ID, err)
		}
	}

	for i, intersection := range intersections {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.do("intersection", int64(i), func() error {
			placements, err := placer.PlaceIntersection(ctx, intersection)
			for _, p := range placements {
				switch p.Attachment.Kind {
				case world.TrafficLight:
					r.report.Lights++
				default:
					r.report.StreetNameSigns++
				}
			}
			return err
		}); err != nil {
			return err
		}
	}

	for _, sign := range r.repository.Signs {
		if _, err := r.do("sign", sign.ID, func() error {
			_, placed, err := placer.PlaceSign(ctx, sign)
			if placed {
				r.report.Signs++
			}
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

// do runs f for one feature. Recoverable errors and panics are logged and
// counted and do returns false. Other errors are returned wrapped in ErrFatal.
func (r *runner) do(kind string, id int64, f func() error) (ok bool, err error) {
	defer func() {
		if v := recover(); v != nil {
			monitoring.Logf("%s %d: recovered from panic: %v", kind, id, v)
			panicsRecovered.Inc()
			r.skip()
			ok, err = false, nil
		}
	}()
	switch err := f(); {
	case err == nil:
		return true, nil
	case isRecoverable(err):
		monitoring.Logf("%s %d: skipped: %v", kind, id, err)
		r.skip()
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s %d: %w", ErrFatal, kind, id, err)
	}
}

func (r *runner) skip() {
	featuresSkipped.Inc()
	r.report.Skipped++
}

func isRecoverable(err error) bool {
	var errInvalidCoordinate *geo.ErrInvalidCoordinate
	return errors.Is(err, feature.ErrDegenerateFeature) || errors.As(err, &errInvalidCoordinate)
}
