// Package pipeline wires the full daily run: aggregate, train, deploy,
// forecast, clean up.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/internal/aggregate"
	"github.com/atmolab/atmocast/internal/features"
	"github.com/atmolab/atmocast/internal/forecast"
	"github.com/atmolab/atmocast/internal/observability"
	"github.com/atmolab/atmocast/internal/partition"
	"github.com/atmolab/atmocast/internal/provision"
	"github.com/atmolab/atmocast/internal/reclaim"
	"github.com/atmolab/atmocast/internal/storage"
	"github.com/atmolab/atmocast/internal/training"
	"github.com/atmolab/atmocast/pkg/errors"
	"github.com/atmolab/atmocast/pkg/models"
)

// ArtifactLocator renders a store key into the location string the
// provisioning service expects, e.g. s3://bucket/models/....
type ArtifactLocator func(key string) string

// S3ArtifactLocator builds locations for a bucket.
func S3ArtifactLocator(bucket string) ArtifactLocator {
	return func(key string) string {
		return fmt.Sprintf("s3://%s/%s", bucket, key)
	}
}

// Pipeline owns one synchronous end-to-end run. Stages execute in order and
// the run aborts on the first stage error; teardown still happens
// best-effort afterwards.
type Pipeline struct {
	store        storage.ObjectStore
	appender     *partition.Appender
	aggregator   *aggregate.Aggregator
	trainer      *training.Trainer
	orchestrator *provision.Orchestrator
	forecaster   *forecast.Forecaster
	reclaimer    *reclaim.Reclaimer
	locator      ArtifactLocator
	logger       *logrus.Logger
}

// New creates a pipeline over the given store and provisioning client
func New(store storage.ObjectStore, client provision.Client, locator ArtifactLocator, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		store:        store,
		appender:     partition.NewAppender(store, logger),
		aggregator:   aggregate.NewAggregator(store, logger),
		trainer:      training.NewTrainer(logger),
		orchestrator: provision.NewOrchestrator(client, logger),
		forecaster:   forecast.NewForecaster(client, logger),
		reclaimer:    reclaim.NewReclaimer(client, store, logger),
		locator:      locator,
		logger:       logger,
	}
}

// Run executes one full pipeline run for the window ending at endDate.
func (p *Pipeline) Run(ctx context.Context, endDate time.Time) error {
	runID := uuid.NewString()
	date := endDate.UTC().Format(partition.DateLayout)
	log := p.logger.WithFields(logrus.Fields{"run_id": runID, "date": date})

	observability.PipelineRuns.Inc()
	log.Info("Pipeline run starting")

	// Endpoints are scoped to this run; tear them down however the run
	// ends.
	deployed := false
	defer func() {
		if deployed {
			p.reclaimer.Cleanup(ctx, models.Metrics(), date)
		}
	}()

	datasetKey, err := p.aggregator.BuildDataset(ctx, endDate)
	if err != nil {
		return err
	}

	rows, err := p.aggregator.LoadDataset(ctx, datasetKey)
	if err != nil {
		return err
	}
	averages := features.BucketAverages(rows)

	endpoints := make(map[models.Metric]string, len(models.Metrics()))
	for _, metric := range models.Metrics() {
		x, y, err := features.TrainingFrame(rows, metric)
		if err != nil {
			return err
		}

		model, _, err := p.trainer.Train(metric, x, y)
		if err != nil {
			return err
		}

		artifactKey, err := p.trainer.Package(ctx, p.store, model, date)
		if err != nil {
			return err
		}

		deployed = true
		endpointName, err := p.orchestrator.Deploy(ctx, date, metric, p.locator(artifactKey))
		if err != nil {
			observability.ProvisioningFailures.Inc()
			return err
		}
		endpoints[metric] = endpointName
	}

	batches, err := p.forecaster.Run(ctx, p.appender, endpoints, averages, endDate)
	if err != nil {
		return err
	}

	log.WithField("days", len(batches)).Info("Pipeline run completed")
	return nil
}

// RunManagedTraining builds the dataset for the window ending at endDate and
// hands model fitting to the provisioning service as a training job, blocking
// until the job reaches a terminal status. Returns the job name.
func (p *Pipeline) RunManagedTraining(ctx context.Context, endDate time.Time) (string, error) {
	date := endDate.UTC().Format(partition.DateLayout)
	log := p.logger.WithField("date", date)

	log.Info("Managed training run starting")

	datasetKey, err := p.aggregator.BuildDataset(ctx, endDate)
	if err != nil {
		return "", err
	}

	// Do not submit a job over an empty window.
	rows, err := p.aggregator.LoadDataset(ctx, datasetKey)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", errors.WrapError(errors.ErrEmptyDataset, errors.ErrorTypeTraining, errors.CodeInsufficientData,
			"dataset '"+datasetKey+"' has no rows to train on")
	}
	log.WithFields(logrus.Fields{"dataset": datasetKey, "rows": len(rows)}).Info("Dataset ready for training job")

	jobName, err := p.orchestrator.SubmitTraining(ctx, date, time.Now())
	if err != nil {
		observability.ProvisioningFailures.Inc()
		return "", err
	}

	log.WithField("job", jobName).Info("Managed training run completed")
	return jobName, nil
}
