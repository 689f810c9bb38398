package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/mseg-regionalizer/internal/application/pipeline"
	"github.com/turtacn/mseg-regionalizer/internal/config"
	"github.com/turtacn/mseg-regionalizer/internal/testutil"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

const retryMessage = "Please try again. Enter either 1 or 2. Use ctrl-c to exit."

func TestChoiceList(t *testing.T) {
	assert.Equal(t, "1 or 2", choiceList(2))
	assert.Equal(t, "1, 2, or 3", choiceList(3))
}

func TestPrompter_Choose(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("x\n3\n 2 \n"), &out)

	v, err := p.Choose("pick: ", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 3, strings.Count(out.String(), "pick: "))
	assert.Equal(t, 2, strings.Count(out.String(), retryMessage))
}

func TestPrompter_ClosedInput(t *testing.T) {
	var out bytes.Buffer
	_, err := NewPrompter(strings.NewReader("7\n"), &out).Choose("pick: ", 3)
	assert.True(t, errs.IsCode(err, errs.CodeCanceled))
	assert.Contains(t, out.String(), "Please try again. Enter either 1, 2, or 3. Use ctrl-c to exit.")
}

func TestResolveChoices(t *testing.T) {
	t.Run("flag, config and prompt", func(t *testing.T) {
		opts := &ConvertOptions{}
		cmd := newConvertCmd(opts)
		require.NoError(t, cmd.Flags().Set("data", "1"))
		cfg := &config.Config{Convert: config.ConvertConfig{Data: 2, Geo: 2}}
		var out bytes.Buffer

		c, err := resolveChoices(cmd, cfg, opts, NewPrompter(strings.NewReader("2\n1\n"), &out))
		require.NoError(t, err)
		assert.Equal(t, pipeline.Choices{Data: 1, Geo: 2, Fuel: 2, Detail: 1}, c)
		assert.Contains(t, out.String(), fuelQuestion)
		assert.Contains(t, out.String(), detailQuestion)
		assert.NotContains(t, out.String(), geoQuestion)
	})

	t.Run("fuel and detail skipped where they do not apply", func(t *testing.T) {
		opts := &ConvertOptions{}
		cmd := newConvertCmd(opts)
		cfg := &config.Config{Convert: config.ConvertConfig{Data: 2, Geo: 3, Fuel: 1, Captured: true}}
		var out bytes.Buffer

		c, err := resolveChoices(cmd, cfg, opts, NewPrompter(strings.NewReader(""), &out))
		require.NoError(t, err)
		assert.Equal(t, pipeline.Choices{Data: 2, Geo: 3, Captured: true}, c)
		assert.Empty(t, out.String())
	})

	t.Run("invalid flag is not re-asked", func(t *testing.T) {
		opts := &ConvertOptions{}
		cmd := newConvertCmd(opts)
		require.NoError(t, cmd.Flags().Set("data", "1"))
		require.NoError(t, cmd.Flags().Set("geo", "5"))
		var out bytes.Buffer

		_, err := resolveChoices(cmd, &config.Config{}, opts, NewPrompter(strings.NewReader("1\n"), &out))
		assert.True(t, errs.IsCode(err, errs.CodeInvalidParam))
		assert.Empty(t, out.String())
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// End to end
// ─────────────────────────────────────────────────────────────────────────────

const rowSums = "CDIV\tAIA_CZ1\tAIA_CZ2\n" +
	"1\t0.5\t0.5\n2\t1\t0\n3\t1\t0\n4\t1\t0\n5\t1\t0\n6\t1\t0\n7\t1\t0\n8\t1\t0\n9\t1\t0\n"

const cdivSource = `{
  "new england": {"single family home": {"electricity": {"heating": {"energy": {"2020": 10}}}}},
  "mid atlantic": {"single family home": {"electricity": {"heating": {"energy": {"2020": 4}}}}}
}`

func writeWorkspace(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	in, tables := filepath.Join(dir, "inputs"), filepath.Join(dir, "geo_map")
	require.NoError(t, os.MkdirAll(in, 0o755))
	require.NoError(t, os.MkdirAll(tables, 0o755))
	testutil.WriteFile(t, in, "metadata.json", `{"min year": 2020, "max year": 2020}`)
	testutil.WriteFile(t, in, pipeline.EnergyInput, cdivSource)
	testutil.WriteFile(t, tables, "Res_Cdiv_Czone_RowSums.txt", rowSums)
	testutil.WriteFile(t, tables, "Com_Cdiv_Czone_RowSums.txt", rowSums)

	cfgPath = testutil.WriteFile(t, dir, "msegconv.yaml", strings.Join([]string{
		"paths:",
		"  input_dir: " + in,
		"  table_dir: " + tables,
		"  metadata: " + filepath.Join(in, "metadata.json"),
		"output:",
		"  dir: " + filepath.Join(dir, "out"),
		"metrics:",
		"  textfile: " + filepath.Join(dir, "metrics", "msegconv.prom"),
		"log:",
		"  level: error",
		"",
	}, "\n"))
	return dir, cfgPath
}

func TestConvertCmd_PromptsAndWrites(t *testing.T) {
	dir, cfg := writeWorkspace(t)

	out, err := execute(t, "4\n1\n1\n", "convert", "--config", cfg, "--captured")
	require.NoError(t, err)

	assert.Contains(t, out, retryMessage)
	assert.Contains(t, out, "OK: wrote "+filepath.Join(dir, "out", "mseg_res_com_cz.json"))
	assert.FileExists(t, filepath.Join(dir, "out", "mseg_res_com_cz.json"))

	metrics, err := os.ReadFile(filepath.Join(dir, "metrics", "msegconv.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `msegconv_runs_total{captured="true",data="1",geo="1",status="success"} 1`)
}

func TestConvertCmd_FlagsOverrideOutput(t *testing.T) {
	dir, cfg := writeWorkspace(t)
	alt := filepath.Join(dir, "alt")

	_, err := execute(t, "", "convert", "--config", cfg, "--data", "1", "--geo", "1", "--out", alt)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(alt, "mseg_res_com_cz.json"))
	assert.NoFileExists(t, filepath.Join(dir, "out", "mseg_res_com_cz.json"))
}

func TestConvertCmd_FailureStillWritesMetrics(t *testing.T) {
	dir, cfg := writeWorkspace(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "geo_map", "Com_Cdiv_Czone_RowSums.txt")))

	_, err := execute(t, "", "convert", "--config", cfg, "--data", "1", "--geo", "1")
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeIO))

	metrics, readErr := os.ReadFile(filepath.Join(dir, "metrics", "msegconv.prom"))
	require.NoError(t, readErr)
	assert.Contains(t, string(metrics), `status="failure"`)
}

//Personal.AI order the ending
