package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/mseg-regionalizer/internal/application/convert"
	"github.com/turtacn/mseg-regionalizer/internal/application/pipeline"
	"github.com/turtacn/mseg-regionalizer/internal/domain/geomap"
	"github.com/turtacn/mseg-regionalizer/internal/infrastructure/monitoring/logging"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// TablesOptions holds the tables command flags.
type TablesOptions struct {
	Data      int
	Geo       int
	Fuel      int
	Detail    int
	Tolerance float64
}

// NewTablesCmd creates the tables command, which loads the weight tables of
// a run and reports rows or columns that do not sum to one.
func NewTablesCmd() *cobra.Command {
	opts := &TablesOptions{}

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Check the conversion weight tables used by a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return runTables(cmd, cliCtx, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Data, "data", pipeline.DataEnergy, "1 energy/stock tables (row sums), 2 cost/performance/lifetime tables (column sums)")
	f.IntVar(&opts.Geo, "geo", 0, "1 AIA climate zones, 2 EMM regions, 3 states (required)")
	f.IntVar(&opts.Fuel, "fuel", pipeline.FuelAll, "fuel disaggregation choice for energy EMM/state tables")
	f.IntVar(&opts.Detail, "detail", pipeline.DetailEndUse, "electricity detail choice for energy EMM/state tables")
	f.Float64Var(&opts.Tolerance, "tol", 1e-3, "allowed distance of a sum from one")
	_ = cmd.MarkFlagRequired("geo")
	return cmd
}

type tableCheck struct {
	class  string
	label  string
	matrix *geomap.Matrix
}

func runTables(cmd *cobra.Command, cliCtx *CLIContext, opts *TablesOptions) error {
	c := pipeline.Choices{Data: opts.Data, Geo: opts.Geo}
	if c.NeedsFuel() {
		c.Fuel, c.Detail = opts.Fuel, opts.Detail
	}
	plan, err := pipeline.NewPlan(c)
	if err != nil {
		return err
	}
	dir := cliCtx.Config.Paths.TableDir

	var checks []tableCheck
	if plan.Convert {
		for _, src := range []struct {
			class string
			src   geomap.Source
		}{{"residential", plan.Residential}, {"commercial", plan.Commercial}} {
			set, err := geomap.LoadSet(dir, src.src)
			if err != nil {
				return errs.Wrap(err, errs.CodeUnknown, "load "+src.class+" weights")
			}
			ms := set.Matrices()
			for _, label := range geomap.SortedLabels(ms) {
				checks = append(checks, tableCheck{class: src.class, label: label, matrix: ms[label]})
			}
		}
	}
	if plan.EnvelopePerf != "" {
		m, err := geomap.LoadTSVFile(filepath.Join(dir, plan.EnvelopePerf))
		if err != nil {
			return err
		}
		checks = append(checks, tableCheck{class: "envelope", label: plan.EnvelopePerf, matrix: m})
	}

	axis := geomap.ByRow
	if plan.Mode == convert.ModeCPL {
		axis = geomap.ByColumn
	}

	rows := make([][]string, 0, len(checks))
	bad := 0
	for _, chk := range checks {
		status := "ok"
		if imb := chk.matrix.CheckSums(axis, opts.Tolerance); len(imb) > 0 {
			bad++
			parts := make([]string, len(imb))
			for i, x := range imb {
				parts[i] = fmt.Sprintf("%s=%.4f", x.Label, x.Sum)
			}
			status = strings.Join(parts, " ")
		}
		rows = append(rows, []string{
			chk.class,
			chk.label,
			fmt.Sprintf("%dx%d", chk.matrix.Rows(), len(chk.matrix.Columns())),
			status,
		})
	}
	fmt.Fprint(cmd.OutOrStdout(), FormatTable([]string{"CLASS", "TABLE", "SHAPE", "SUMS"}, rows))

	cliCtx.Logger.Info("weight tables checked",
		logging.Int("tables", len(checks)),
		logging.Int("unbalanced", bad),
		logging.String(logging.FieldPath, dir))
	if bad > 0 {
		return errs.New(errs.CodeWeightTable, fmt.Sprintf("%d of %d weight tables do not sum to one", bad, len(checks)))
	}
	return nil
}

//Personal.AI order the ending
