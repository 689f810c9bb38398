package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/mseg-regionalizer/internal/domain/segment"
	"github.com/turtacn/mseg-regionalizer/internal/domain/taxonomy"
	prom "github.com/turtacn/mseg-regionalizer/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/mseg-regionalizer/internal/infrastructure/storage/minio"
	"github.com/turtacn/mseg-regionalizer/internal/testutil"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

const energyJSON = `{
  "new england": {
    "single family home": {
      "electricity": {
        "heating": {"energy": {"2020": 10}},
        "cooling": {"energy": {"2020": 30}}
      }
    }
  },
  "mid atlantic": {
    "single family home": {
      "electricity": {
        "heating": {"energy": {"2020": 4}},
        "cooling": {"energy": {"2020": 6}}
      }
    }
  }
}`

// aiaRowSums sends all of new england's data half to each zone and every
// other division to zone 1.
const aiaRowSums = "CDIV\tAIA_CZ1\tAIA_CZ2\n" +
	"1\t0.5\t0.5\n2\t1\t0\n3\t1\t0\n4\t1\t0\n5\t1\t0\n6\t1\t0\n7\t1\t0\n8\t1\t0\n9\t1\t0\n"

const cplSource = `{
  "new england": {
    "single family home": {
      "electricity": {
        "heating": {
          "demand": {"roof": 0},
          "supply": {"ASHP": {"installed cost": 1}}
        }
      }
    }
  }
}`

const cplRef = `{
  "envelope": {
    "roof": {
      "residential": {
        "cost": {"typical": 10, "units": "2016$/ft^2 roof", "source": "RSMeans"},
        "performance": {
          "typical": {"AIA_CZ1": 30, "AIA_CZ2": 40, "AIA_CZ3": 50, "AIA_CZ4": 60, "AIA_CZ5": 70},
          "units": "R value", "source": "IECC"
        },
        "lifetime": {"average": 30, "range": 5, "units": "years", "source": "NAHB"}
      }
    }
  },
  "MELs": {}
}`

const costConversions = `{
  "cost unit conversions": {
    "heating and cooling": {
      "demand": {
        "roof": {
          "original units": "$/ft^2 roof", "revised units": "$/ft^2 floor",
          "conversion factor": {"value": {"residential": {"single family home": 0.5}, "commercial": 1.2}}
        }
      }
    }
  },
  "building type conversions": {"conversion data": {"value": {}}}
}`

const aiaCdivColSums = "AIA\tnew england\n1\t0.5\n2\t0.5\n3\t0\n4\t0\n5\t0\n"

type fixture struct {
	root  string
	paths Paths
}

func newFixture(t *testing.T, minYear, maxYear string) *fixture {
	t.Helper()
	root := t.TempDir()
	in, tables, ref := filepath.Join(root, "inputs"), filepath.Join(root, "geo_map"), filepath.Join(root, "convert_data")
	for _, d := range []string{in, tables, ref} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return &fixture{
		root: root,
		paths: Paths{
			InputDir:    in,
			TableDir:    tables,
			Metadata:    testutil.WriteFile(t, in, "metadata.json", `{"min year": `+minYear+`, "max year": `+maxYear+`}`),
			Reference:   testutil.WriteFile(t, ref, "cpl_envelope_mels.json", cplRef),
			Conversions: testutil.WriteFile(t, ref, "ecm_cost_convert.json", costConversions),
			OutputDir:   filepath.Join(root, "out"),
		},
	}
}

func (f *fixture) energy(t *testing.T) {
	t.Helper()
	testutil.WriteFile(t, f.paths.InputDir, EnergyInput, energyJSON)
	testutil.WriteFile(t, f.paths.TableDir, "Res_Cdiv_Czone_RowSums.txt", aiaRowSums)
	testutil.WriteFile(t, f.paths.TableDir, "Com_Cdiv_Czone_RowSums.txt", aiaRowSums)
}

func (f *fixture) cpl(t *testing.T) {
	t.Helper()
	testutil.WriteFile(t, f.paths.InputDir, CPLInput, cplSource)
	testutil.WriteFile(t, f.paths.TableDir, "AIA_Cdiv_ColSums.txt", aiaCdivColSums)
}

func readOutput(t *testing.T, path string) *segment.Tree {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	tree, err := segment.Decode(f)
	require.NoError(t, err)
	return tree
}

func series(t *testing.T, tree *segment.Tree, path ...string) []float64 {
	t.Helper()
	n, ok := tree.Get(path...)
	require.True(t, ok, segment.PathString(path))
	require.True(t, n.IsLeaf(), segment.PathString(path))
	return n.Leaf().Series.Values
}

type fakePublisher struct {
	runID string
	meta  map[string]string
	files []string
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, runID string, meta map[string]string, files ...string) ([]minio.PublishedObject, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.runID, p.meta, p.files = runID, meta, files
	out := make([]minio.PublishedObject, len(files))
	for i, f := range files {
		out[i] = minio.PublishedObject{Bucket: "mseg-outputs", Key: runID + "/" + filepath.Base(f)}
	}
	return out, nil
}

func newCollector(t *testing.T) (prom.MetricsCollector, *prom.RunMetrics) {
	t.Helper()
	c, err := prom.NewMetricsCollector(prom.CollectorConfig{Namespace: "msegconv"}, nil)
	require.NoError(t, err)
	return c, prom.NewRunMetrics(c)
}

func textfile(t *testing.T, c prom.MetricsCollector) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, c.WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

// ─────────────────────────────────────────────────────────────────────────────
// Runs
// ─────────────────────────────────────────────────────────────────────────────

func TestRunner_EnergyAIA(t *testing.T) {
	f := newFixture(t, "2020", "2020")
	f.energy(t)
	log := testutil.NewMockLogger()

	res, err := NewRunner(taxonomy.Default(), f.paths, log).Run(context.Background(), Choices{Data: DataEnergy, Geo: GeoAIA})
	require.NoError(t, err)

	out := filepath.Join(f.paths.OutputDir, "mseg_res_com_cz.json")
	assert.Equal(t, []string{out}, res.Outputs)
	assert.Equal(t, []string{"2020"}, res.Years)
	assert.NotEmpty(t, res.RunID)
	require.NotNil(t, res.Convert)
	assert.Equal(t, 2, res.Convert.Origins)
	assert.Equal(t, 2, res.Convert.Destinations)
	assert.Nil(t, res.Inject)
	assert.Nil(t, res.Unmatched())

	tree := readOutput(t, out)
	assert.Equal(t, []string{"AIA_CZ1", "AIA_CZ2"}, tree.Keys())
	base := []string{"single family home", "electricity"}
	assert.InDeltaSlice(t, []float64{9}, series(t, tree, append([]string{"AIA_CZ1"}, append(base, "heating", "energy")...)...), 1e-9)
	assert.InDeltaSlice(t, []float64{21}, series(t, tree, append([]string{"AIA_CZ1"}, append(base, "cooling", "energy")...)...), 1e-9)
	assert.InDeltaSlice(t, []float64{5}, series(t, tree, append([]string{"AIA_CZ2"}, append(base, "heating", "energy")...)...), 1e-9)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"AIA_CZ1\"")

	assert.True(t, log.HasMessage("info", "run started"))
	assert.True(t, log.HasMessage("info", "operation completed"))
	assert.True(t, log.HasMessage("debug", "stage completed"))
}

func TestRunner_EnergyConvertMetrics(t *testing.T) {
	f := newFixture(t, "2020", "2020")
	f.energy(t)
	c, m := newCollector(t)

	_, err := NewRunner(taxonomy.Default(), f.paths, nil, WithMetrics(m)).
		Run(context.Background(), Choices{Data: DataEnergy, Geo: GeoAIA})
	require.NoError(t, err)

	out := textfile(t, c)
	assert.Contains(t, out, `msegconv_destinations{scheme="aia"} 2`)
	assert.Contains(t, out, `msegconv_leaves_merged{mode="energy"} 8`)
	assert.Contains(t, out, `msegconv_runs_total{captured="false",data="1",geo="1",status="success"} 1`)
}

func TestRunner_EnergySharesRecalibration(t *testing.T) {
	f := newFixture(t, "2020", "2020")
	f.energy(t)
	f.paths.Shares = testutil.WriteFile(t, f.root, "shares.csv",
		"region,building class,end use,share\nAIA_CZ1,residential,heating,0.5\nAIA_CZ1,residential,cooling,0.5\n")

	res, err := NewRunner(taxonomy.Default(), f.paths, nil).Run(context.Background(), Choices{Data: DataEnergy, Geo: GeoAIA})
	require.NoError(t, err)

	require.NotNil(t, res.Shares)
	assert.Equal(t, 2, res.Shares.Rescaled)
	assert.Equal(t, []string{"AIA_CZ2 / residential / cooling", "AIA_CZ2 / residential / heating"}, res.Shares.Misses)

	tree := readOutput(t, res.Outputs[0])
	assert.InDeltaSlice(t, []float64{15}, series(t, tree, "AIA_CZ1", "single family home", "electricity", "heating", "energy"), 1e-9)
	assert.InDeltaSlice(t, []float64{15}, series(t, tree, "AIA_CZ1", "single family home", "electricity", "cooling", "energy"), 1e-9)
	assert.InDeltaSlice(t, []float64{5}, series(t, tree, "AIA_CZ2", "single family home", "electricity", "heating", "energy"), 1e-9)
}

func TestRunner_CPLStateInjectsEnvelope(t *testing.T) {
	f := newFixture(t, "2020", "2021")
	f.cpl(t)
	pub := &fakePublisher{}
	c, m := newCollector(t)

	r := NewRunner(taxonomy.Default(), f.paths, nil, WithPublisher(pub), WithMetrics(m))
	r.newRunID = func() string { return "run-1" }
	res, err := r.Run(context.Background(), Choices{Data: DataCPL, Geo: GeoState})
	require.NoError(t, err)

	jsonOut := filepath.Join(f.paths.OutputDir, "cpl_res_com_cdiv.json")
	gzOut := filepath.Join(f.paths.OutputDir, "cpl_res_com_cdiv.gz")
	assert.Equal(t, []string{jsonOut, gzOut}, res.Outputs)
	assert.Nil(t, res.Convert)
	require.NotNil(t, res.Inject)
	assert.Equal(t, 1, res.Inject.Envelope)
	assert.Empty(t, res.Unmatched())

	tree := readOutput(t, jsonOut)
	roof := []string{"new england", "single family home", "electricity", "heating", "demand", "roof"}
	assert.Equal(t, []float64{5, 5}, series(t, tree, append(roof, "installed cost", "typical")...))
	assert.InDeltaSlice(t, []float64{35, 35}, series(t, tree, append(roof, "performance", "typical")...), 1e-9)
	assert.Equal(t, []float64{30, 30}, series(t, tree, append(roof, "lifetime", "average")...))
	ashp, ok := tree.Get("new england", "single family home", "electricity", "heating", "supply", "ASHP", "installed cost")
	require.True(t, ok)
	assert.Equal(t, 1.0, ashp.Leaf().Scalar)

	gf, err := os.Open(gzOut)
	require.NoError(t, err)
	defer gf.Close()
	zr, err := gzip.NewReader(gf)
	require.NoError(t, err)
	assert.Equal(t, "cpl_res_com_cdiv.gz", zr.Name)
	fromGz, err := segment.Decode(zr)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5}, series(t, fromGz, append(roof, "installed cost", "typical")...))

	assert.Equal(t, "run-1", pub.runID)
	assert.Equal(t, res.Outputs, pub.files)
	assert.Equal(t, "2", pub.meta["Data"])
	assert.Equal(t, "3", pub.meta["Geo"])
	assert.Equal(t, "cdiv", pub.meta["Scheme"])
	assert.Len(t, res.Published, 2)

	metrics := textfile(t, c)
	assert.Contains(t, metrics, `msegconv_runs_total{captured="false",data="2",geo="3",status="success"} 1`)
	assert.Contains(t, metrics, `msegconv_records_injected{kind="envelope"} 1`)
	assert.Contains(t, metrics, `msegconv_published_objects_total{bucket="mseg-outputs"} 2`)
	assert.Contains(t, metrics, `msegconv_stage_duration_seconds_count{stage="enrich"} 1`)
	assert.NotContains(t, metrics, `stage="convert"`)
}

func TestRunner_GzipDisabledAndCompact(t *testing.T) {
	f := newFixture(t, "2020", "2021")
	f.cpl(t)

	res, err := NewRunner(taxonomy.Default(), f.paths, nil, WithGzip(false), WithIndent(0)).
		Run(context.Background(), Choices{Data: DataCPL, Geo: GeoState})
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)

	raw, err := os.ReadFile(res.Outputs[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), `{"new england":`))
	_, err = os.Stat(filepath.Join(f.paths.OutputDir, "cpl_res_com_cdiv.gz"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunner_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid choices", func(t *testing.T) {
		f := newFixture(t, "2020", "2020")
		_, err := NewRunner(taxonomy.Default(), f.paths, nil).Run(ctx, Choices{Data: 3, Geo: 1})
		assert.True(t, errs.IsCode(err, errs.CodeInvalidParam))
	})

	t.Run("missing metadata", func(t *testing.T) {
		f := newFixture(t, "2020", "2020")
		f.energy(t)
		f.paths.Metadata = filepath.Join(f.root, "absent.json")
		_, err := NewRunner(taxonomy.Default(), f.paths, nil).Run(ctx, Choices{Data: 1, Geo: 1})
		assert.True(t, errs.IsCode(err, errs.CodeIO))
	})

	t.Run("missing source", func(t *testing.T) {
		f := newFixture(t, "2020", "2020")
		_, err := NewRunner(taxonomy.Default(), f.paths, nil).Run(ctx, Choices{Data: 1, Geo: 1})
		assert.True(t, errs.IsCode(err, errs.CodeIO))
	})

	t.Run("missing weight tables", func(t *testing.T) {
		f := newFixture(t, "2020", "2020")
		testutil.WriteFile(t, f.paths.InputDir, EnergyInput, energyJSON)
		_, err := NewRunner(taxonomy.Default(), f.paths, nil).Run(ctx, Choices{Data: 1, Geo: 1})
		require.Error(t, err)
		_, statErr := os.Stat(filepath.Join(f.paths.OutputDir, "mseg_res_com_cz.json"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("publish failure is counted", func(t *testing.T) {
		f := newFixture(t, "2020", "2020")
		f.energy(t)
		c, m := newCollector(t)
		pub := &fakePublisher{err: errs.New(errs.CodeStorage, "bucket unavailable")}

		_, err := NewRunner(taxonomy.Default(), f.paths, nil, WithPublisher(pub), WithMetrics(m)).
			Run(ctx, Choices{Data: 1, Geo: 1})
		assert.True(t, errs.IsCode(err, errs.CodeStorage))
		assert.FileExists(t, filepath.Join(f.paths.OutputDir, "mseg_res_com_cz.json"))
		assert.Contains(t, textfile(t, c), `msegconv_runs_total{captured="false",data="1",geo="1",status="failure"} 1`)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func TestLoadYears(t *testing.T) {
	dir := t.TempDir()

	years, err := LoadYears(testutil.WriteFile(t, dir, "ok.json", `{"min year": 2020, "max year": 2023}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"2020", "2021", "2022", "2023"}, years)

	_, err = LoadYears(filepath.Join(dir, "missing.json"))
	assert.True(t, errs.IsCode(err, errs.CodeIO))

	_, err = LoadYears(testutil.WriteFile(t, dir, "bad.json", `{"min year": 2020,`))
	assert.True(t, errs.IsCode(err, errs.CodeParse))

	_, err = LoadYears(testutil.WriteFile(t, dir, "text.json", `{"min year": "2020", "max year": 2021}`))
	assert.True(t, errs.IsCode(err, errs.CodeParse))

	_, err = LoadYears(testutil.WriteFile(t, dir, "reversed.json", `{"min year": 2030, "max year": 2021}`))
	assert.True(t, errs.IsCode(err, errs.CodeInvalidParam))
}

func TestWriteAtomic_RemovesTempOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	err := writeAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("boom")
	})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	tree, err := segment.DecodeBytes([]byte(`{"b": {"2020": 1}, "a": "text"}`))
	require.NoError(t, err)

	path := filepath.Join(dir, "out.json")
	require.NoError(t, WriteJSON(path, tree, ""))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"b":{"2020":1},"a":"text"}`, strings.TrimSpace(string(raw)))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), st.Mode().Perm())

	err = WriteJSON(filepath.Join(dir, "missing", "out.json"), tree, "")
	assert.True(t, errs.IsCode(err, errs.CodeIO))
}

//Personal.AI order the ending
