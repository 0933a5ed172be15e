package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/coachlens/internal/domain/difficulty"
	"github.com/okian/coachlens/internal/domain/groups"
	"github.com/okian/coachlens/internal/domain/pipeline"
	"github.com/okian/coachlens/internal/domain/thresholds"
	"github.com/okian/coachlens/internal/domain/types"
	"github.com/okian/coachlens/internal/simulate"
	"github.com/okian/coachlens/pkg/logger"
)

// Default flag values.
const (
	defaultStudents = 1000
	defaultTopN     = 50
	defaultTimeout  = 30 * time.Second
	defaultRunLimit = 10 * time.Minute
)

func newRootCmd() *cobra.Command {
	var logFormat string
	root := &cobra.Command{
		Use:   "coachlens-sim",
		Short: "Generate synthetic students and exercise the coachlens engine",
		Long: `coachlens-sim builds deterministic synthetic student populations,
evaluates them locally, or drives a running coachlens server with them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return logger.Init(logger.WithFormat(logFormat), logger.WithOutput(cmd.ErrOrStderr()))
		},
	}
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(newGenerateCmd(), newEvaluateCmd(), newLoadCmd())
	return root
}

func newGenerateCmd() *cobra.Command {
	var (
		students int
		seed     uint64
		output   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic population as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pop := simulate.NewGenerator(seed, time.Now()).Population(students)
			if output == "" || output == "-" {
				return simulate.WritePopulation(cmd.OutOrStdout(), pop)
			}
			if err := simulate.SavePopulation(output, pop); err != nil {
				return err
			}
			logger.Get().Info(cmd.Context(), "population saved",
				logger.String("output", output), logger.Int("students", len(pop)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&students, "students", "n", defaultStudents, "number of students to generate")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "generator seed")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout when empty)")
	return cmd
}

// evaluation is the report printed by the evaluate command.
type evaluation struct {
	Records []types.StudentRecord `json:"records"`
	Courses []groups.Stats        `json:"courses"`
}

func newEvaluateCmd() *cobra.Command {
	var (
		input string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a population file locally and print records with course rollups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pop, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			table := thresholds.Default()
			recs, err := pipeline.EvaluateBatch(cmd.Context(), pop, difficulty.Default(nil), table, time.Now(), limit)
			if err != nil {
				return fmt.Errorf("evaluate population: %w", err)
			}
			return writeReport(cmd.OutOrStdout(), recs, table)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "population file (stdin when empty)")
	cmd.Flags().IntVar(&limit, "limit", runtime.NumCPU(), "concurrent evaluations")
	return cmd
}

func newLoadCmd() *cobra.Command {
	var (
		cfg      simulate.Config
		input    string
		students int
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Submit a population to a running server and fetch triage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var pop []pipeline.Input
			if input != "" {
				var err error
				if pop, err = simulate.LoadPopulation(input); err != nil {
					return err
				}
			} else {
				pop = simulate.NewGenerator(seed, time.Now()).Population(students)
			}

			ctx, cancel := contextWithLimit(cmd)
			defer cancel()
			_, triage, err := simulate.Run(ctx, cfg, pop)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(triage)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "concurrent submitters")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", 0, "wait before fetching triage")
	f.IntVar(&cfg.TopN, "top", defaultTopN, "triage entries to fetch")
	f.BoolVar(&cfg.Ingest, "ingest", false, "use the async ingest endpoint")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log failed submissions")
	f.StringVarP(&input, "input", "i", "", "population file (generated when empty)")
	f.IntVarP(&students, "students", "n", defaultStudents, "students to generate when no input is given")
	f.Uint64Var(&seed, "seed", 1, "generator seed")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]pipeline.Input, error) {
	if path == "" || path == "-" {
		return simulate.ReadPopulation(stdin)
	}
	return simulate.LoadPopulation(path)
}

func writeReport(w io.Writer, recs []types.StudentRecord, table thresholds.Table) error {
	members := make([]groups.Member, 0, len(recs))
	for _, rec := range recs {
		members = append(members, groups.MemberOf(rec, rec.Course.Name))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(evaluation{Records: recs, Courses: groups.Aggregate(members, table)}); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// contextWithLimit bounds a load run so a stalled server cannot hang the CLI.
func contextWithLimit(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, defaultRunLimit)
}
