// Package reclaim tears down provisioned inference resources and artifact
// files once a pipeline run no longer needs them.
package reclaim

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/internal/aggregate"
	"github.com/atmolab/atmocast/internal/provision"
	"github.com/atmolab/atmocast/internal/storage"
	"github.com/atmolab/atmocast/internal/training"
	"github.com/atmolab/atmocast/pkg/models"
)

// Reclaimer deletes endpoints, endpoint configs, models and artifacts.
// Every deletion is best-effort and isolated: a failure is logged and the
// remaining deletions still run. Cleanup never returns an error.
type Reclaimer struct {
	client provision.Client
	store  storage.ObjectStore
	logger *logrus.Logger
}

// NewReclaimer creates a reclaimer
func NewReclaimer(client provision.Client, store storage.ObjectStore, logger *logrus.Logger) *Reclaimer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reclaimer{client: client, store: store, logger: logger}
}

// Cleanup tears down the run's resources for each metric independently:
// endpoint, then endpoint config, then model, then the model artifact file.
func (r *Reclaimer) Cleanup(ctx context.Context, metrics []models.Metric, date string) {
	r.logger.WithField("date", date).Info("Cleaning up models, endpoint configs, endpoints")

	for _, metric := range metrics {
		endpointName := provision.EndpointName(date, metric)
		configName := provision.EndpointConfigName(date, metric)
		modelName := provision.ModelName(date, metric)
		artifactKey := training.ArtifactKey(date, metric)

		if err := r.client.DeleteEndpoint(ctx, endpointName); err != nil {
			r.logger.WithError(err).WithField("endpoint", endpointName).Warn("Unable to delete endpoint")
		} else {
			r.logger.WithField("endpoint", endpointName).Info("Deleted endpoint")
		}

		if err := r.client.DeleteEndpointConfig(ctx, configName); err != nil {
			r.logger.WithError(err).WithField("endpoint_config", configName).Warn("Unable to delete endpoint config")
		} else {
			r.logger.WithField("endpoint_config", configName).Info("Deleted endpoint config")
		}

		if err := r.client.DeleteModel(ctx, modelName); err != nil {
			r.logger.WithError(err).WithField("model", modelName).Warn("Unable to delete model")
		} else {
			r.logger.WithField("model", modelName).Info("Deleted model")
		}

		if err := r.store.Delete(ctx, artifactKey); err != nil {
			r.logger.WithError(err).WithField("key", artifactKey).Warn("Unable to delete model artifact")
		} else {
			r.logger.WithField("key", artifactKey).Info("Deleted model artifact")
		}
	}
}

// CleanupDataset best-effort deletes the aggregate dataset generated on
// date.
func (r *Reclaimer) CleanupDataset(ctx context.Context, date string) {
	key := aggregate.DatasetKey(date)
	if err := r.store.Delete(ctx, key); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Unable to delete aggregate dataset")
		return
	}
	r.logger.WithField("key", key).Info("Deleted aggregate dataset")
}
