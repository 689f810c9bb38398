// Package pipeline runs a full conversion: it resolves the weight tables for
// the chosen data type and geography, converts the census-division source,
// injects supplemental cost/performance/lifetime records, writes the result
// and optionally publishes it.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/turtacn/mseg-regionalizer/internal/application/convert"
	"github.com/turtacn/mseg-regionalizer/internal/application/enrich"
	"github.com/turtacn/mseg-regionalizer/internal/domain/geomap"
	"github.com/turtacn/mseg-regionalizer/internal/domain/segment"
	"github.com/turtacn/mseg-regionalizer/internal/domain/taxonomy"
	"github.com/turtacn/mseg-regionalizer/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/mseg-regionalizer/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/mseg-regionalizer/internal/infrastructure/storage/minio"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// Stage names used in logs and metrics.
const (
	StageLoad        = "load"
	StageConvert     = "convert"
	StageEnrich      = "enrich"
	StageRecalibrate = "recalibrate"
	StageWrite       = "write"
	StagePublish     = "publish"
)

// Paths locates the run inputs and outputs.
type Paths struct {
	InputDir    string
	TableDir    string
	Metadata    string
	Reference   string
	Conversions string
	// Shares is an optional end-use share table applied to energy runs.
	Shares    string
	OutputDir string
}

// Publisher uploads output files.
type Publisher interface {
	Publish(ctx context.Context, runID string, meta map[string]string, files ...string) ([]minio.PublishedObject, error)
}

// Result summarizes a finished run.
type Result struct {
	RunID     string
	Plan      *Plan
	Years     []string
	Outputs   []string
	Convert   *convert.ConvertResult
	Inject    *enrich.InjectReport
	Shares    *enrich.ShareReport
	Published []minio.PublishedObject
	Elapsed   time.Duration
}

// Unmatched returns the technology names that received placeholders.
func (r *Result) Unmatched() []string {
	if r.Inject == nil {
		return nil
	}
	return r.Inject.Unmatched
}

// Runner executes conversion runs.
type Runner struct {
	tax       *taxonomy.Taxonomy
	paths     Paths
	converter convert.Service
	logger    logging.Logger
	metrics   *prom.RunMetrics
	publisher Publisher
	indent    int
	gzip      bool
	newRunID  func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records run metrics.
func WithMetrics(m *prom.RunMetrics) Option { return func(r *Runner) { r.metrics = m } }

// WithPublisher uploads outputs after they are written.
func WithPublisher(p Publisher) Option { return func(r *Runner) { r.publisher = p } }

// WithIndent sets the JSON indent width of the main output.
func WithIndent(n int) Option { return func(r *Runner) { r.indent = n } }

// WithGzip enables or disables the compressed copy.
func WithGzip(on bool) Option { return func(r *Runner) { r.gzip = on } }

// WithConverter replaces the conversion service.
func WithConverter(s convert.Service) Option { return func(r *Runner) { r.converter = s } }

// NewRunner returns a runner.
func NewRunner(tax *taxonomy.Taxonomy, paths Paths, logger logging.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &Runner{
		tax:      tax,
		paths:    paths,
		logger:   logger.Named("pipeline"),
		indent:   2,
		gzip:     true,
		newRunID: uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	if r.converter == nil {
		r.converter = convert.NewService(tax, logger)
	}
	return r
}

// Run performs one conversion for choices.
func (r *Runner) Run(ctx context.Context, choices Choices) (res *Result, err error) {
	start := time.Now()
	plan, err := NewPlan(choices)
	if err != nil {
		return nil, err
	}
	res = &Result{RunID: r.newRunID(), Plan: plan}
	log := r.logger.With(logging.String(logging.FieldRunID, res.RunID))
	defer func() {
		if r.metrics != nil {
			prom.RecordRun(r.metrics, choices.Data, choices.Geo, choices.Captured, err)
		}
	}()

	log.Info("run started",
		logging.String("mode", plan.Mode.String()),
		logging.String("scheme", string(plan.Scheme)),
		logging.Int("fuel", choices.Fuel),
		logging.Int("detail", choices.Detail),
		logging.Bool("captured", choices.Captured),
		logging.String("output", plan.Output))

	// Load.
	stage := time.Now()
	years, err := LoadYears(r.paths.Metadata)
	if err != nil {
		return nil, err
	}
	res.Years = years
	tree, err := readTree(filepath.Join(r.paths.InputDir, plan.Input))
	if err != nil {
		return nil, err
	}
	r.stageDone(log, StageLoad, stage)

	// Convert.
	if plan.Convert {
		stage = time.Now()
		out, err := r.convert(ctx, plan, tree)
		if err != nil {
			return nil, err
		}
		res.Convert = out
		tree = out.Tree
		if r.metrics != nil {
			r.metrics.LeavesMerged.WithLabelValues(plan.Mode.String()).Set(float64(out.LeavesMerged))
			r.metrics.Destinations.WithLabelValues(string(plan.Scheme)).Set(float64(out.Destinations))
		}
		r.stageDone(log, StageConvert, stage)
	}

	// Enrich.
	if plan.Mode == convert.ModeCPL {
		stage = time.Now()
		rep, err := r.inject(ctx, plan, years, tree)
		if err != nil {
			return nil, err
		}
		res.Inject = rep
		if r.metrics != nil {
			r.metrics.RecordsInjected.WithLabelValues("envelope").Set(float64(rep.Envelope))
			r.metrics.RecordsInjected.WithLabelValues("mels").Set(float64(rep.MELs))
			r.metrics.RecordsInjected.WithLabelValues("placeholder").Set(float64(rep.Placeholders))
			r.metrics.UnmatchedTechs.WithLabelValues().Set(float64(len(rep.Unmatched)))
		}
		r.stageDone(log, StageEnrich, stage)
	} else if r.paths.Shares != "" {
		stage = time.Now()
		shares, err := enrich.LoadSharesFile(r.paths.Shares)
		if err != nil {
			return nil, err
		}
		rep, err := enrich.NewRecalibrator(r.tax, r.logger).Apply(tree, shares)
		if err != nil {
			return nil, err
		}
		res.Shares = rep
		if r.metrics != nil {
			r.metrics.ShareMisses.WithLabelValues().Set(float64(len(rep.Misses)))
		}
		r.stageDone(log, StageRecalibrate, stage)
	}

	// Write.
	stage = time.Now()
	outputs, err := r.write(plan, tree)
	if err != nil {
		return nil, err
	}
	res.Outputs = outputs
	r.stageDone(log, StageWrite, stage)

	// Publish.
	if r.publisher != nil {
		stage = time.Now()
		meta := map[string]string{
			"Data":     strconv.Itoa(choices.Data),
			"Geo":      strconv.Itoa(choices.Geo),
			"Scheme":   string(plan.Scheme),
			"Captured": strconv.FormatBool(choices.Captured),
		}
		objs, err := r.publisher.Publish(ctx, res.RunID, meta, outputs...)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeUnknown, "publish outputs")
		}
		res.Published = objs
		if r.metrics != nil && len(objs) > 0 {
			r.metrics.PublishedObjects.WithLabelValues(objs[0].Bucket).Add(float64(len(objs)))
		}
		r.stageDone(log, StagePublish, stage)
	}

	res.Elapsed = time.Since(start)
	logging.LogOperationDuration(log, "run", start,
		logging.Strings("outputs", outputs),
		logging.Int("unmatched", len(res.Unmatched())))
	return res, nil
}

func (r *Runner) stageDone(log logging.Logger, stage string, start time.Time) {
	d := time.Since(start)
	if r.metrics != nil {
		prom.RecordStage(r.metrics, stage, d)
	}
	log.Debug("stage completed", logging.String(logging.FieldStage, stage), logging.Duration("elapsed", d))
}

func (r *Runner) convert(ctx context.Context, plan *Plan, tree *segment.Tree) (*convert.ConvertResult, error) {
	resSet, err := geomap.LoadSet(r.paths.TableDir, plan.Residential)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeUnknown, "load residential weights")
	}
	comSet, err := geomap.LoadSet(r.paths.TableDir, plan.Commercial)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeUnknown, "load commercial weights")
	}
	dests, err := plan.Destinations(r.tax)
	if err != nil {
		return nil, err
	}
	return r.converter.Convert(ctx, &convert.ConvertInput{
		Source:       tree,
		Residential:  resSet,
		Commercial:   comSet,
		Mode:         plan.Mode,
		Destinations: dests,
	})
}

func (r *Runner) inject(ctx context.Context, plan *Plan, years []string, tree *segment.Tree) (*enrich.InjectReport, error) {
	ref, err := enrich.LoadReference(r.paths.Reference, r.paths.Conversions)
	if err != nil {
		return nil, err
	}
	var perf *geomap.Matrix
	if plan.EnvelopePerf != "" {
		perf, err = geomap.LoadTSVFile(filepath.Join(r.paths.TableDir, plan.EnvelopePerf))
		if err != nil {
			return nil, err
		}
	}
	env, err := enrich.NewEnvelopeBuilder(ref, r.tax, years, perf)
	if err != nil {
		return nil, err
	}
	mels := enrich.NewMELsBuilder(ref, r.tax, years)
	return enrich.NewInjector(env, mels, r.logger).Inject(ctx, tree)
}

func (r *Runner) write(plan *Plan, tree *segment.Tree) ([]string, error) {
	if err := os.MkdirAll(r.paths.OutputDir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "create output directory").WithDetail(r.paths.OutputDir)
	}
	primary := filepath.Join(r.paths.OutputDir, plan.Output)
	if err := WriteJSON(primary, tree, strings.Repeat(" ", r.indent)); err != nil {
		return nil, err
	}
	outputs := []string{primary}
	if name := plan.GzipName(); r.gzip && name != "" {
		gz := filepath.Join(r.paths.OutputDir, name)
		if err := WriteGzip(gz, tree); err != nil {
			return nil, err
		}
		outputs = append(outputs, gz)
	}
	if r.metrics != nil {
		for _, p := range outputs {
			if st, err := os.Stat(p); err == nil {
				r.metrics.OutputBytes.WithLabelValues(filepath.Base(p)).Set(float64(st.Size()))
			}
		}
	}
	return outputs, nil
}

// LoadYears reads the "min year" and "max year" of an AEO metadata file and
// returns every year in between, inclusive.
func LoadYears(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "read metadata").WithDetail(path)
	}
	if !gjson.ValidBytes(b) {
		return nil, errs.New(errs.CodeParse, "metadata is not valid json").WithDetail(path)
	}
	minY, maxY := gjson.GetBytes(b, "min year"), gjson.GetBytes(b, "max year")
	if minY.Type != gjson.Number || maxY.Type != gjson.Number {
		return nil, errs.New(errs.CodeParse, "metadata lacks numeric min year / max year").WithDetail(path)
	}
	lo, hi := minY.Int(), maxY.Int()
	if lo > hi {
		return nil, errs.InvalidParam("metadata min year exceeds max year").WithDetailf("%d > %d", lo, hi)
	}
	years := make([]string, 0, hi-lo+1)
	for y := lo; y <= hi; y++ {
		years = append(years, strconv.FormatInt(y, 10))
	}
	return years, nil
}

func readTree(path string) (*segment.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "open source data").WithDetail(path)
	}
	defer f.Close()
	t, err := segment.Decode(f)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeUnknown, "decode source data").WithDetail(path)
	}
	return t, nil
}

//Personal.AI order the ending
