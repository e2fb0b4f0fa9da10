// Package analysis runs the dataset analysis job: download the raw CSV,
// classify its columns, keep a preview and suggest questions.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/chartgenie/chartgenie/internal/schema"
	"github.com/chartgenie/chartgenie/internal/storage"
	"github.com/chartgenie/chartgenie/internal/store"
	"github.com/chartgenie/chartgenie/internal/tabular"
	"github.com/chartgenie/chartgenie/pkg/contracts"
	"github.com/chartgenie/chartgenie/pkg/models"
)

// ErrNotReady is returned by Load for datasets still being analyzed or
// whose analysis failed.
var ErrNotReady = errors.New("dataset is not ready")

// Options tunes the analysis job.
type Options struct {
	PreviewRows     int           `mapstructure:"preview_rows" yaml:"preview_rows"`
	QuestionTimeout time.Duration `mapstructure:"question_timeout" yaml:"question_timeout"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryInterval   time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
}

// DefaultOptions returns the defaults used by the server.
func DefaultOptions() Options {
	return Options{
		PreviewRows:     100,
		QuestionTimeout: 15 * time.Second,
		MaxRetries:      4,
		RetryInterval:   500 * time.Millisecond,
	}
}

// Analyzer runs analysis jobs, at most one at a time per dataset.
type Analyzer struct {
	store      store.Store
	blobs      contracts.BlobStore
	reasoner   contracts.Reasoner
	classifier *schema.Classifier
	opts       Options
	tracer     trace.Tracer
	notifier   contracts.Notifier

	group singleflight.Group
	wg    sync.WaitGroup
}

// NewAnalyzer creates an analyzer. A nil reasoner means suggested
// questions always come from the templates.
func NewAnalyzer(s store.Store, blobs contracts.BlobStore, reasoner contracts.Reasoner, classifier *schema.Classifier, opts Options) *Analyzer {
	def := DefaultOptions()
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = def.PreviewRows
	}
	if opts.QuestionTimeout <= 0 {
		opts.QuestionTimeout = def.QuestionTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = def.RetryInterval
	}
	if classifier == nil {
		classifier = schema.Default
	}
	return &Analyzer{
		store:      s,
		blobs:      blobs,
		reasoner:   reasoner,
		classifier: classifier,
		opts:       opts,
		tracer:     otel.Tracer("chartgenie/analysis"),
	}
}

// SetNotifier registers a receiver for READY and ERROR transitions.
func (a *Analyzer) SetNotifier(n contracts.Notifier) { a.notifier = n }

// Submit starts analysis in the background. The job outlives the
// caller's cancellation but keeps its trace context.
func (a *Analyzer) Submit(ctx context.Context, datasetID string) {
	jobCtx := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if _, err := a.Analyze(jobCtx, datasetID); err != nil {
			log.Error().Err(err).Str("dataset", datasetID).Msg("Dataset analysis failed")
		}
	}()
}

// Wait blocks until every submitted job has finished.
func (a *Analyzer) Wait() { a.wg.Wait() }

// Analyze runs the job now. Concurrent calls for the same dataset share
// one run.
func (a *Analyzer) Analyze(ctx context.Context, datasetID string) (*models.Dataset, error) {
	v, err, shared := a.group.Do(datasetID, func() (any, error) {
		return a.run(ctx, datasetID)
	})
	if shared {
		log.Debug().Str("dataset", datasetID).Msg("Joined in-flight analysis")
	}
	if err != nil {
		return nil, err
	}
	return v.(*models.Dataset), nil
}

func (a *Analyzer) run(ctx context.Context, datasetID string) (*models.Dataset, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.run", trace.WithAttributes(attribute.String("dataset.id", datasetID)))
	defer span.End()
	start := time.Now()

	ds, err := a.store.GetDataset(ctx, datasetID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ds.Status = models.DatasetAnalyzing
	ds.Error = ""
	if err := a.store.UpdateDataset(ctx, ds); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("mark analyzing: %w", err)
	}

	if err := a.analyze(ctx, ds); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ds.Status = models.DatasetError
		ds.Error = err.Error()
		if uerr := a.store.UpdateDataset(ctx, ds); uerr != nil {
			log.Error().Err(uerr).Str("dataset", datasetID).Msg("Failed to record analysis error")
		}
		a.notify(ctx, models.EventDatasetFailed, ds)
		return nil, err
	}

	ds.Status = models.DatasetReady
	if err := a.store.UpdateDataset(ctx, ds); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("mark ready: %w", err)
	}

	span.SetAttributes(attribute.Int("dataset.rows", ds.RowCount), attribute.Int("dataset.columns", ds.ColumnSchema.Len()))
	log.Info().
		Str("dataset", datasetID).
		Int("rows", ds.RowCount).
		Int("columns", ds.ColumnSchema.Len()).
		Dur("took", time.Since(start)).
		Msg("📊 Dataset analyzed")
	a.notify(ctx, models.EventDatasetReady, ds)
	return ds, nil
}

func (a *Analyzer) notify(ctx context.Context, eventType string, ds *models.Dataset) {
	if a.notifier == nil {
		return
	}
	a.notifier.Notify(ctx, models.DatasetEvent{
		Type:        eventType,
		DatasetID:   ds.ID,
		OwnerID:     ds.OwnerID,
		DatasetName: ds.Name,
		Status:      ds.Status,
		RowCount:    ds.RowCount,
		Error:       ds.Error,
		Timestamp:   time.Now().UTC(),
	})
}

// analyze fills in schema, preview and questions from the raw strings.
func (a *Analyzer) analyze(ctx context.Context, ds *models.Dataset) error {
	data, err := a.download(ctx, ds.StorageObjectPath)
	if err != nil {
		return err
	}
	tbl, err := tabular.ParseBytes(data, tabular.Options{})
	if err != nil {
		return fmt.Errorf("parse csv: %w", err)
	}

	ds.ColumnSchema = a.classifier.Infer(tbl.Header, tbl.Rows)
	ds.RowCount = len(tbl.Rows)
	preview := tbl.Rows
	if len(preview) > a.opts.PreviewRows {
		preview = preview[:a.opts.PreviewRows]
	}
	ds.PreviewData = preview
	ds.SuggestedQuestions = a.suggest(ctx, ds.ColumnSchema, tbl.Rows)
	return nil
}

// download fetches the raw object, retrying transient failures with
// exponential backoff. A missing object fails at once.
func (a *Analyzer) download(ctx context.Context, locator string) ([]byte, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.opts.RetryInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(a.opts.MaxRetries)), ctx)

	op := func() ([]byte, error) {
		rc, err := a.blobs.Get(ctx, locator)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, rc); err != nil {
			return nil, fmt.Errorf("read %s: %w", locator, err)
		}
		return buf.Bytes(), nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("locator", locator).Dur("retry_in", wait).Msg("Download failed, retrying")
	}

	data, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", locator, err)
	}
	return data, nil
}

// Load returns the typed schema and dynamically typed rows of a ready
// dataset. It satisfies conversation.Loader.
func (a *Analyzer) Load(ctx context.Context, datasetID string) (models.Schema, []models.Row, error) {
	ds, err := a.store.GetDataset(ctx, datasetID)
	if err != nil {
		return models.Schema{}, nil, err
	}
	if ds.Status != models.DatasetReady {
		return models.Schema{}, nil, fmt.Errorf("%w: %s is %s", ErrNotReady, datasetID, ds.Status)
	}
	tbl, err := a.Rows(ctx, ds, true)
	if err != nil {
		return models.Schema{}, nil, err
	}
	return ds.ColumnSchema, tbl.Rows, nil
}

// Rows downloads and parses a dataset's CSV.
func (a *Analyzer) Rows(ctx context.Context, ds *models.Dataset, dynamicTyping bool) (*tabular.Table, error) {
	data, err := a.download(ctx, ds.StorageObjectPath)
	if err != nil {
		return nil, err
	}
	tbl, err := tabular.ParseBytes(data, tabular.Options{DynamicTyping: dynamicTyping})
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return tbl, nil
}
