// Package convert re-aggregates a census-division microsegment tree into a
// destination region scheme.
//
// Every destination is built independently: a zero-valued copy of the first
// origin subtree is seeded, then each origin subtree is folded in (in registry
// order) through the Merger with that origin's weight row.  Destinations share
// no mutable state and are built concurrently.
package convert

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/mseg-regionalizer/internal/domain/geomap"
	"github.com/turtacn/mseg-regionalizer/internal/domain/segment"
	"github.com/turtacn/mseg-regionalizer/internal/domain/taxonomy"
	"github.com/turtacn/mseg-regionalizer/internal/infrastructure/monitoring/logging"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// DefaultWorkers bounds destination concurrency when none is configured.
const DefaultWorkers = 4

// Service converts region trees between geographic schemes.
type Service interface {
	Convert(ctx context.Context, input *ConvertInput) (*ConvertResult, error)
}

// ConvertInput contains input for one conversion.
type ConvertInput struct {
	// Source is keyed by census division at the top level.
	Source      *segment.Tree
	Residential *geomap.Set
	Commercial  *geomap.Set
	Mode        Mode
	// Destinations overrides the destination list.  When empty, the columns
	// of a flat residential set are used.
	Destinations []string
}

// ConvertResult is the converted tree plus run statistics.
type ConvertResult struct {
	Tree         *segment.Tree
	Origins      int
	Destinations int
	LeavesMerged int64
	Elapsed      time.Duration
}

// Option configures the service.
type Option func(*serviceImpl)

// WithWorkers sets the number of destinations built concurrently.
func WithWorkers(n int) Option {
	return func(s *serviceImpl) {
		if n > 0 {
			s.workers = n
		}
	}
}

type serviceImpl struct {
	tax     *taxonomy.Taxonomy
	logger  logging.Logger
	workers int
}

// NewService returns a conversion service.
func NewService(tax *taxonomy.Taxonomy, logger logging.Logger, opts ...Option) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &serviceImpl{tax: tax, logger: logger.Named("convert"), workers: DefaultWorkers}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *serviceImpl) Convert(ctx context.Context, input *ConvertInput) (*ConvertResult, error) {
	start := time.Now()
	if input == nil || input.Source == nil || input.Source.IsLeaf() || input.Source.Len() == 0 {
		return nil, errs.InvalidParam("source tree must be a non-empty object keyed by census division")
	}
	if input.Residential == nil || input.Commercial == nil {
		return nil, errs.InvalidParam("residential and commercial weights are required")
	}

	for _, name := range input.Source.Keys() {
		if _, err := s.tax.OriginIndex(name); err != nil {
			return nil, err
		}
	}

	dests := input.Destinations
	if len(dests) == 0 {
		var ok bool
		if dests, ok = input.Residential.Destinations(); !ok {
			return nil, errs.InvalidParam("destinations must be given for fuel-keyed weights")
		}
	}

	type origin struct {
		name string
		row  int
		tree *segment.Tree
	}
	var origins []origin
	for _, name := range s.tax.OriginNames() {
		t, ok := input.Source.Child(name)
		if !ok {
			continue
		}
		row, _ := s.tax.OriginIndex(name)
		origins = append(origins, origin{name: name, row: row, tree: t})
	}

	first, _ := input.Source.Child(input.Source.Keys()[0])
	seed := first.Zero(input.Mode.skipped)

	merger := &Merger{
		Taxonomy:    s.tax,
		Residential: input.Residential,
		Commercial:  input.Commercial,
		Mode:        input.Mode,
	}

	s.logger.Info("converting",
		logging.String("mode", input.Mode.String()),
		logging.Int("origins", len(origins)),
		logging.Int("destinations", len(dests)),
		logging.Int("workers", s.workers))

	built := make([]*segment.Tree, len(dests))
	var leaves atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, dest := range dests {
		i, dest := i, dest
		g.Go(func() error {
			acc := seed.Clone()
			for _, o := range origins {
				if err := gctx.Err(); err != nil {
					return errs.Wrap(err, errs.CodeCanceled, "conversion canceled")
				}
				n, err := merger.Merge(acc, o.tree, o.row, dest)
				leaves.Add(int64(n))
				if err != nil {
					return errs.Wrap(err, errs.CodeUnknown, "merge origin into destination").
						WithDetailf("%s -> %s", o.name, dest)
				}
			}
			built[i] = acc
			s.logger.Debug("destination built", logging.String(logging.FieldDestination, dest))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := segment.NewNode()
	for i, dest := range dests {
		out.Set(dest, built[i])
	}
	res := &ConvertResult{
		Tree:         out,
		Origins:      len(origins),
		Destinations: len(dests),
		LeavesMerged: leaves.Load(),
		Elapsed:      time.Since(start),
	}
	logging.LogOperationDuration(s.logger, "convert", start,
		logging.Int64("leaves_merged", res.LeavesMerged))
	return res, nil
}

//Personal.AI order the ending
