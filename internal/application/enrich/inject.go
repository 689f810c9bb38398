package enrich

import (
	"context"
	"sort"

	"github.com/turtacn/mseg-regionalizer/internal/domain/segment"
	"github.com/turtacn/mseg-regionalizer/internal/domain/taxonomy"
	"github.com/turtacn/mseg-regionalizer/internal/infrastructure/monitoring/logging"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// InjectReport summarizes one injection pass.
type InjectReport struct {
	Envelope     int
	MELs         int
	Placeholders int
	// Unmatched lists MELs end uses or technologies for which no complete
	// reference record was found, sorted and without duplicates.
	Unmatched []string
}

// Injector walks a converted cost/performance/lifetime tree and fills
// envelope and MELs leaves with reference records.
type Injector struct {
	envelope *EnvelopeBuilder
	mels     *MELsBuilder
	logger   logging.Logger
}

// NewInjector returns an injector.
func NewInjector(envelope *EnvelopeBuilder, mels *MELsBuilder, logger logging.Logger) *Injector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Injector{envelope: envelope, mels: mels, logger: logger.Named("enrich")}
}

// Inject mutates tree in place.  A leaf whose parent key is "demand" is an
// envelope component; a leaf at end-use depth named after a MELs end use, or
// at technology depth below one, is a MELs technology.  Leaves without a
// complete reference record become the scalar 0.
func (in *Injector) Inject(ctx context.Context, tree *segment.Tree) (*InjectReport, error) {
	rep := &InjectReport{}
	unmatched := make(map[string]struct{})
	if err := in.walk(ctx, tree, nil, rep, unmatched); err != nil {
		return nil, err
	}
	for name := range unmatched {
		rep.Unmatched = append(rep.Unmatched, name)
	}
	sort.Strings(rep.Unmatched)
	in.logger.Info("supplemental records injected",
		logging.Int("envelope", rep.Envelope),
		logging.Int("mels", rep.MELs),
		logging.Int("placeholders", rep.Placeholders),
		logging.Int("unmatched", len(rep.Unmatched)))
	return rep, nil
}

func (in *Injector) walk(ctx context.Context, t *segment.Tree, path []string, rep *InjectReport, unmatched map[string]struct{}) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, errs.CodeCanceled, "injection canceled")
	}
	for _, k := range t.Keys() {
		child, _ := t.Child(k)
		keys := append(append([]string(nil), path...), k)
		if child.IsNode() {
			if err := in.walk(ctx, child, keys, rep, unmatched); err != nil {
				return err
			}
			continue
		}

		switch {
		case len(path) > 0 && path[len(path)-1] == taxonomy.KeyDemand:
			rec, ok, err := in.envelope.Build(keys)
			if err != nil {
				return errs.Wrap(err, errs.CodeUnknown, "build envelope record").WithDetail(segment.PathString(keys))
			}
			if ok {
				t.Set(k, rec)
				rep.Envelope++
			} else {
				t.SetValue(k, segment.Scalar(0))
				rep.Placeholders++
			}
		case (len(path) == 3 && in.mels.Covers(k)) || (len(path) == 4 && in.mels.Covers(path[3])):
			rec, ok, err := in.mels.Build(keys)
			if err != nil {
				return errs.Wrap(err, errs.CodeUnknown, "build MELs record").WithDetail(segment.PathString(keys))
			}
			if ok {
				t.Set(k, rec)
				rep.MELs++
			} else {
				t.SetValue(k, segment.Scalar(0))
				rep.Placeholders++
				unmatched[k] = struct{}{}
				in.logger.Debug("no complete MELs record", logging.String(logging.FieldPath, segment.PathString(keys)))
			}
		}
	}
	return nil
}

//Personal.AI order the ending
