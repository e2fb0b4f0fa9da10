// Package query is the conversational router. It answers one question
// about a dataset with the reasoning capability when one is configured,
// and falls back to the deterministic rule engine on any failure.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chartgenie/chartgenie/internal/chartconfig"
	"github.com/chartgenie/chartgenie/internal/fallback"
	"github.com/chartgenie/chartgenie/pkg/contracts"
	"github.com/chartgenie/chartgenie/pkg/models"
)

// ErrNoStrategy is returned when every strategy failed. With the rule
// engine always last this only happens on a misconfigured router.
var ErrNoStrategy = errors.New("no query strategy produced an answer")

// MapUnavailable is the answer given instead of a map chart.
const MapUnavailable = "I understand you want a map visualization, but geographic maps aren't available yet. " +
	"Try asking for a bar chart, line chart, scatter plot, or treemap instead!"

const (
	StrategyReasoning = "reasoning"
	StrategyRules     = "rules"
)

// Options bounds the reasoning calls.
type Options struct {
	ReasoningTimeout time.Duration `mapstructure:"reasoning_timeout" yaml:"reasoning_timeout"`
	InsightTimeout   time.Duration `mapstructure:"insight_timeout" yaml:"insight_timeout"`
}

// DefaultOptions returns the default timeouts.
func DefaultOptions() Options {
	return Options{
		ReasoningTimeout: 20 * time.Second,
		InsightTimeout:   10 * time.Second,
	}
}

// Request is one conversational turn.
type Request struct {
	Schema   models.Schema
	Rows     []models.Row
	Question string
	// History is the formatted prior conversation, oldest first.
	History string
}

// answer is a strategy's raw resolution before shaping and insight.
type answer struct {
	Type   models.ResultType
	Text   string
	Config models.ChartConfig
}

type strategy struct {
	name    string
	resolve func(ctx context.Context, req Request) (*answer, error)
}

// Router answers conversational questions.
type Router struct {
	reasoner contracts.Reasoner
	rules    *fallback.Engine
	opts     Options
	tracer   trace.Tracer
}

// NewRouter creates a router. A nil reasoner leaves only the rule engine.
func NewRouter(reasoner contracts.Reasoner, opts Options) *Router {
	def := DefaultOptions()
	if opts.ReasoningTimeout <= 0 {
		opts.ReasoningTimeout = def.ReasoningTimeout
	}
	if opts.InsightTimeout <= 0 {
		opts.InsightTimeout = def.InsightTimeout
	}
	return &Router{
		reasoner: reasoner,
		rules:    fallback.NewEngine(),
		opts:     opts,
		tracer:   otel.Tracer("chartgenie/query"),
	}
}

// selectStrategies returns the strategies to try in order.
func (r *Router) selectStrategies() []strategy {
	rules := strategy{name: StrategyRules, resolve: r.resolveRules}
	if r.reasoner == nil {
		return []strategy{rules}
	}
	return []strategy{{name: StrategyReasoning, resolve: r.resolveReasoning}, rules}
}

// Ask answers req. It only fails when ctx itself is cancelled.
func (r *Router) Ask(ctx context.Context, req Request) (*models.QueryResult, error) {
	ctx, span := r.tracer.Start(ctx, "query.ask",
		trace.WithAttributes(
			attribute.Int("dataset.rows", len(req.Rows)),
			attribute.Int("dataset.columns", req.Schema.Len()),
		),
	)
	defer span.End()

	for _, st := range r.selectStrategies() {
		ans, err := st.resolve(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				span.SetStatus(codes.Error, "cancelled")
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("strategy", st.name).Msg("Query strategy failed, trying next")
			span.AddEvent("strategy failed", trace.WithAttributes(
				attribute.String("strategy", st.name),
				attribute.String("error", err.Error()),
			))
			continue
		}

		span.SetAttributes(
			attribute.String("query.strategy", st.name),
			attribute.String("query.result_type", string(ans.Type)),
		)
		res, err := r.finish(ctx, st.name, req, ans)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return res, nil
	}
	span.SetStatus(codes.Error, ErrNoStrategy.Error())
	return nil, ErrNoStrategy
}

// finish turns an answer into the result, shaping rows and producing the
// insight for charts.
func (r *Router) finish(ctx context.Context, strategyName string, req Request, ans *answer) (*models.QueryResult, error) {
	res := &models.QueryResult{
		Strategy:     strategyName,
		UsedFallback: strategyName != StrategyReasoning,
	}

	if ans.Type == models.ResultText {
		res.Type = models.ResultText
		res.Insight = ans.Text
		return res, nil
	}
	if ans.Config.ChartType() == models.ChartMap {
		res.Type = models.ResultText
		res.Insight = MapUnavailable
		return res, nil
	}

	spec := models.ChartSpec{Config: ans.Config, Title: ans.Config.Options().Title}
	rows := ShapeRows(ans.Config, req.Rows)

	if strategyName == StrategyReasoning {
		insight, err := r.insight(ctx, spec, rows)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Msg("Insight generation failed, using template")
			insight = fmt.Sprintf("Showing %s chart of %s", spec.Type(), chartconfig.Describe(spec.Config))
		}
		spec.Insight = insight
	} else {
		spec.Insight = fmt.Sprintf("Showing %s chart based on your request", spec.Type())
	}

	res.Type = models.ResultViz
	res.Insight = spec.Insight
	res.ChartSpec = &spec
	res.ChartData = rows
	return res, nil
}

// ── Strategies ──────────────────────────────────────────────

func (r *Router) resolveReasoning(ctx context.Context, req Request) (*answer, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.ReasoningTimeout)
	defer cancel()

	temp := 0.6
	resp, err := r.reasoner.Complete(callCtx, models.CompletionRequest{
		System:      systemPrompt,
		Messages:    []models.ChatMessage{{Role: "user", Content: buildUserPrompt(req)}},
		Temperature: &temp,
		MaxTokens:   4096,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning call: %w", err)
	}

	rep, err := parseReply(resp.Content)
	if err != nil {
		return nil, err
	}
	if rep.Type == models.ResultText {
		return &answer{Type: models.ResultText, Text: rep.Answer}, nil
	}
	cfg, err := rep.chartConfig(req.Schema)
	if err != nil {
		return nil, err
	}
	return &answer{Type: models.ResultViz, Config: cfg}, nil
}

func (r *Router) resolveRules(_ context.Context, req Request) (*answer, error) {
	res := r.rules.Resolve(req.Schema, req.Rows, req.Question)
	if res.Type == models.ResultText {
		return &answer{Type: models.ResultText, Text: res.Answer}, nil
	}
	return &answer{Type: models.ResultViz, Config: res.Config}, nil
}

func (r *Router) insight(ctx context.Context, spec models.ChartSpec, rows []models.Row) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.InsightTimeout)
	defer cancel()

	temp := 0.7
	resp, err := r.reasoner.Complete(callCtx, models.CompletionRequest{
		Messages:    []models.ChatMessage{{Role: "user", Content: buildInsightPrompt(spec, rows)}},
		Temperature: &temp,
		MaxTokens:   500,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", errors.New("empty insight")
	}
	return text, nil
}

// ShapeRows keeps the rows a chart type can draw: heatmaps need x, y and
// value; gantt charts need task, start and end. Other types take every row.
func ShapeRows(cfg models.ChartConfig, rows []models.Row) []models.Row {
	var need []string
	switch c := cfg.(type) {
	case models.HeatmapConfig:
		need = []string{c.X, c.Y, c.Value}
	case models.GanttConfig:
		need = []string{c.Task, c.Start, c.End}
	default:
		return rows
	}

	out := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		keep := true
		for _, col := range need {
			if models.IsBlank(row[col]) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}
