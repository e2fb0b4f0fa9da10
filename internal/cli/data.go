package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chartgenie/chartgenie/internal/analysis"
	"github.com/chartgenie/chartgenie/internal/autochart"
	"github.com/chartgenie/chartgenie/internal/chartconfig"
	"github.com/chartgenie/chartgenie/internal/config"
	"github.com/chartgenie/chartgenie/internal/query"
	"github.com/chartgenie/chartgenie/internal/schema"
	"github.com/chartgenie/chartgenie/internal/tabular"
	"github.com/chartgenie/chartgenie/pkg/contracts"
	"github.com/chartgenie/chartgenie/pkg/models"
	"github.com/chartgenie/chartgenie/pkg/server"
)

// dataset is a CSV file loaded for local commands: the schema comes from
// the raw strings, the rows are dynamically typed.
type dataset struct {
	schema models.Schema
	rows   []models.Row
	raw    []models.Row
}

func loadCSV(path string, cfg *config.Config) (*dataset, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	raw, err := tabular.ParseBytes(data, tabular.Options{})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	typed, err := tabular.ParseBytes(data, tabular.Options{DynamicTyping: true})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &dataset{
		schema: schema.NewClassifier(cfg.Schema).Infer(raw.Header, raw.Rows),
		rows:   typed.Rows,
		raw:    raw.Rows,
	}, nil
}

// reasonerFor returns the configured reasoner unless rulesOnly is set.
func reasonerFor(cfg *config.Config, rulesOnly bool) contracts.Reasoner {
	if rulesOnly {
		return nil
	}
	r, _ := server.NewReasoner(cfg)
	return r
}

// ── analyze ─────────────────────────────────────────────────

type analyzeOutput struct {
	ColumnSchema       models.Schema      `json:"column_schema"`
	RowCount           int                `json:"row_count"`
	PreviewData        []models.Row       `json:"preview_data,omitempty"`
	SuggestedQuestions []string           `json:"suggested_questions"`
	Charts             []models.ChartSpec `json:"charts,omitempty"`
}

func newAnalyzeCommand(opts *rootOptions) *cobra.Command {
	var (
		preview   int
		charts    bool
		rulesOnly bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <file.csv>",
		Short: "Classify columns and suggest questions for a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ds, err := loadCSV(args[0], cfg)
			if err != nil {
				return err
			}

			out := analyzeOutput{
				ColumnSchema: ds.schema,
				RowCount:     len(ds.rows),
				SuggestedQuestions: analysis.SuggestQuestions(ctxOf(cmd), reasonerFor(cfg, rulesOnly),
					cfg.Analysis.QuestionTimeout, ds.schema, ds.raw),
			}
			if preview > 0 {
				out.PreviewData = ds.raw[:min(preview, len(ds.raw))]
			}
			if charts {
				out.Charts = autochart.NewSelector(cfg.Charts).Select(ds.schema, ds.rows)
			}
			return opts.write(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&preview, "preview", 0, "include the first N rows")
	cmd.Flags().BoolVar(&charts, "charts", false, "include automatically selected charts")
	cmd.Flags().BoolVar(&rulesOnly, "rules", false, "never call a reasoning provider")
	return cmd
}

// ── ask ─────────────────────────────────────────────────────

func newAskCommand(opts *rootOptions) *cobra.Command {
	var (
		history   string
		rulesOnly bool
	)
	cmd := &cobra.Command{
		Use:   "ask <file.csv> <question...>",
		Short: "Answer a question about a CSV file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ds, err := loadCSV(args[0], cfg)
			if err != nil {
				return err
			}

			router := query.NewRouter(reasonerFor(cfg, rulesOnly), cfg.Query)
			res, err := router.Ask(ctxOf(cmd), query.Request{
				Schema:   ds.schema,
				Rows:     ds.rows,
				Question: strings.Join(args[1:], " "),
				History:  history,
			})
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&history, "history", "", "prior conversation to include as context")
	cmd.Flags().BoolVar(&rulesOnly, "rules", false, "answer with the rule engine only")
	return cmd
}

// ── render ──────────────────────────────────────────────────

type renderedChart struct {
	Spec   models.ChartSpec         `json:"chart_spec"`
	Render chartconfig.RenderConfig `json:"render"`
}

func newRenderCommand(opts *rootOptions) *cobra.Command {
	var specFile string
	cmd := &cobra.Command{
		Use:   "render <file.csv>",
		Short: "Build render configs for a CSV file's automatic charts or a given chart spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ds, err := loadCSV(args[0], cfg)
			if err != nil {
				return err
			}

			var specs []models.ChartSpec
			if specFile != "" {
				spec, err := readSpec(specFile)
				if err != nil {
					return err
				}
				specs = []models.ChartSpec{*spec}
			} else {
				specs = autochart.NewSelector(cfg.Charts).Select(ds.schema, ds.rows)
			}

			b := chartconfig.NewBuilder(chartconfig.CoralReef(), chartconfig.DefaultFormatter())
			out := make([]renderedChart, 0, len(specs))
			for _, spec := range specs {
				out = append(out, renderedChart{Spec: spec, Render: b.Build(spec, ds.rows)})
			}
			return opts.write(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&specFile, "spec", "", "JSON chart spec file to render instead of the automatic charts")
	return cmd
}

func readSpec(path string) (*models.ChartSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	var spec models.ChartSpec
	if err := spec.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("decode spec %s: %w", path, err)
	}
	return &spec, nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
