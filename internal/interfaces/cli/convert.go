package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/mseg-regionalizer/internal/application/convert"
	"github.com/turtacn/mseg-regionalizer/internal/application/pipeline"
	"github.com/turtacn/mseg-regionalizer/internal/config"
	"github.com/turtacn/mseg-regionalizer/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/mseg-regionalizer/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/mseg-regionalizer/internal/infrastructure/storage/minio"
)

// ConvertOptions holds the convert command flags.
type ConvertOptions struct {
	Data      int
	Geo       int
	Fuel      int
	Detail    int
	Captured  bool
	OutputDir string
	Shares    string
	NoGzip    bool
}

// NewConvertCmd creates the convert command.
func NewConvertCmd() *cobra.Command {
	return newConvertCmd(&ConvertOptions{})
}

func newConvertCmd(opts *ConvertOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert the census-division database to another geography",
		Long: `Convert mseg_res_com_cdiv.json (energy, stock and floor area) or
cpl_res_com_cdiv.json (cost, performance and lifetime) to AIA climate zones,
EMM regions or states.  Choices not given by flag or config are asked for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			prompter := NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			choices, err := resolveChoices(cmd, cliCtx.Config, opts, prompter)
			if err != nil {
				return err
			}
			return runConvert(cmd, cliCtx, opts, choices)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Data, "data", 0, "1 energy/stock/square footage, 2 cost/performance/lifetime")
	f.IntVar(&opts.Geo, "geo", 0, "1 AIA climate zones, 2 EMM regions, 3 states")
	f.IntVar(&opts.Fuel, "fuel", 0, "1 detailed electricity only, 2 detailed all fuels (energy, EMM/state)")
	f.IntVar(&opts.Detail, "detail", 0, "1 technology-level, 2 end-use-level electricity data (energy, EMM/state)")
	f.BoolVar(&opts.Captured, "captured", false, "weight tables were captured from a prior EIA API pull")
	f.StringVar(&opts.OutputDir, "out", "", "output directory; overrides config")
	f.StringVar(&opts.Shares, "shares", "", "end-use share table applied to energy runs; overrides config")
	f.BoolVar(&opts.NoGzip, "no-gzip", false, "skip the compressed copy")
	return cmd
}

// resolveChoices takes each choice from its flag, else the config, else the
// prompter.  Fuel and detail are only resolved where they apply.
func resolveChoices(cmd *cobra.Command, cfg *config.Config, opts *ConvertOptions, p *Prompter) (pipeline.Choices, error) {
	c := pipeline.Choices{Captured: opts.Captured || cfg.Convert.Captured}

	pick := func(flag string, flagVal, cfgVal int, question string, n int) (int, error) {
		if cmd.Flags().Changed(flag) {
			return flagVal, nil
		}
		if cfgVal != 0 {
			return cfgVal, nil
		}
		return p.Choose(question, n)
	}

	var err error
	if c.Data, err = pick("data", opts.Data, cfg.Convert.Data, dataQuestion, 2); err != nil {
		return c, err
	}
	if c.Geo, err = pick("geo", opts.Geo, cfg.Convert.Geo, geoQuestion, 3); err != nil {
		return c, err
	}
	if c.NeedsFuel() {
		if c.Fuel, err = pick("fuel", opts.Fuel, cfg.Convert.Fuel, fuelQuestion, 2); err != nil {
			return c, err
		}
	}
	if c.NeedsDetail() {
		if c.Detail, err = pick("detail", opts.Detail, cfg.Convert.Detail, detailQuestion, 2); err != nil {
			return c, err
		}
	}
	return c, c.Validate()
}

func runConvert(cmd *cobra.Command, cliCtx *CLIContext, opts *ConvertOptions, choices pipeline.Choices) error {
	cfg, logger := cliCtx.Config, cliCtx.Logger
	tax, err := loadTaxonomy(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if cliCtx.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cliCtx.Timeout)
		defer cancel()
	}

	paths := pipeline.Paths{
		InputDir:    cfg.Paths.InputDir,
		TableDir:    cfg.Paths.TableDir,
		Metadata:    cfg.Paths.Metadata,
		Reference:   cfg.Paths.Reference,
		Conversions: cfg.Paths.Conversions,
		Shares:      cfg.Paths.Shares,
		OutputDir:   cfg.Output.Dir,
	}
	if opts.OutputDir != "" {
		paths.OutputDir = opts.OutputDir
	}
	if opts.Shares != "" {
		paths.Shares = opts.Shares
	}

	runnerOpts := []pipeline.Option{
		pipeline.WithIndent(cfg.Output.Indent),
		pipeline.WithGzip(!cfg.Output.DisableGzip && !opts.NoGzip),
		pipeline.WithConverter(convert.NewService(tax, logger, convert.WithWorkers(cfg.Convert.Workers))),
	}

	var collector prom.MetricsCollector
	if cfg.Metrics.Textfile != "" {
		collector, err = prom.NewMetricsCollector(prom.CollectorConfig{Namespace: cfg.Metrics.Namespace}, logger)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, pipeline.WithMetrics(prom.NewRunMetrics(collector)))
	}

	if cfg.MinIO.Enabled {
		pub, err := minio.NewMinIOClient(minioConfig(cfg), logger)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, pipeline.WithPublisher(pub))
	}

	res, runErr := pipeline.NewRunner(tax, paths, logger, runnerOpts...).Run(ctx, choices)
	if collector != nil {
		if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("failed to write metrics textfile", logging.String(logging.FieldPath, cfg.Metrics.Textfile), logging.Err(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	printSummary(cmd, res)
	return nil
}

func minioConfig(cfg *config.Config) *minio.MinIOConfig {
	return &minio.MinIOConfig{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKey,
		SecretAccessKey: cfg.MinIO.SecretKey,
		UseSSL:          cfg.MinIO.UseSSL,
		Region:          cfg.MinIO.Region,
		Bucket:          cfg.MinIO.Bucket,
		Prefix:          cfg.MinIO.Prefix,
	}
}

func printSummary(cmd *cobra.Command, res *pipeline.Result) {
	out := cmd.OutOrStdout()
	for _, p := range res.Outputs {
		PrintSuccess(cmd, "wrote "+p)
	}
	for _, o := range res.Published {
		PrintSuccess(cmd, fmt.Sprintf("published s3://%s/%s", o.Bucket, o.Key))
	}
	if res.Shares != nil && len(res.Shares.Misses) > 0 {
		fmt.Fprintf(out, "End uses left unscaled (no share or zero total): %d\n", len(res.Shares.Misses))
		for _, m := range res.Shares.Misses {
			fmt.Fprintf(out, "  %s\n", m)
		}
	}
	if names := res.Unmatched(); len(names) > 0 {
		fmt.Fprintf(out, "Technologies given zero placeholder cost, performance and lifetime: %s\n",
			strings.Join(names, ", "))
	}
}

//Personal.AI order the ending
