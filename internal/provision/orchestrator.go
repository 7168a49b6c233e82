package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/pkg/models"
)

// Resource naming conventions. Endpoint handles live for one pipeline run:
// created here, used for forecasting, destroyed by the reclaimer.

// ModelName returns the provisioning name for one metric's model.
func ModelName(date string, metric models.Metric) string {
	return fmt.Sprintf("%s-%s-model", date, metric)
}

// EndpointConfigName returns the endpoint-config name for one metric.
func EndpointConfigName(date string, metric models.Metric) string {
	return fmt.Sprintf("%s-%s-endpoint-config", date, metric)
}

// EndpointName returns the endpoint name for one metric.
func EndpointName(date string, metric models.Metric) string {
	return ModelName(date, metric) + "-endpoint"
}

// TrainingJobName returns a unique training job name for a run started at t.
func TrainingJobName(date string, t time.Time) string {
	return fmt.Sprintf("%s-train-models-job-%d", date, t.Unix())
}

// Orchestrator drives provisioning operations through a Client and waits on
// them with bounded polling.
type Orchestrator struct {
	client Client
	logger *logrus.Logger

	// Pollers may be replaced before first use to change the wait budgets.
	EndpointPoller *Poller
	TrainingPoller *Poller
}

// NewOrchestrator creates an orchestrator with the default poll budgets
func NewOrchestrator(client Client, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		client:         client,
		logger:         logger,
		EndpointPoller: NewPoller(EndpointPollInterval, EndpointMaxTries, logger),
		TrainingPoller: NewPoller(TrainingPollInterval, TrainingMaxTries, logger),
	}
}

// Deploy registers the model, creates its endpoint config and endpoint, and
// blocks until the endpoint is in service. Returns the endpoint name.
func (o *Orchestrator) Deploy(ctx context.Context, date string, metric models.Metric, artifactLocation string) (string, error) {
	modelName := ModelName(date, metric)
	configName := EndpointConfigName(date, metric)
	endpointName := EndpointName(date, metric)

	log := o.logger.WithFields(logrus.Fields{
		"metric":   metric,
		"endpoint": endpointName,
	})

	log.Info("Registering model")
	if err := o.client.CreateModel(ctx, modelName, artifactLocation); err != nil {
		return "", err
	}

	log.Info("Creating endpoint config")
	if err := o.client.CreateEndpointConfig(ctx, configName, modelName); err != nil {
		return "", err
	}

	log.Info("Creating endpoint")
	if err := o.client.CreateEndpoint(ctx, endpointName, configName); err != nil {
		return "", err
	}

	err := o.EndpointPoller.Wait(ctx, "endpoint "+endpointName, func(ctx context.Context) (Status, string, error) {
		return o.client.DescribeEndpoint(ctx, endpointName)
	})
	if err != nil {
		return "", err
	}

	return endpointName, nil
}

// SubmitTraining submits a training job and blocks until it completes.
// Returns the job name.
func (o *Orchestrator) SubmitTraining(ctx context.Context, date string, startedAt time.Time) (string, error) {
	jobName := TrainingJobName(date, startedAt)

	o.logger.WithField("job", jobName).Info("Submitting training job")
	if err := o.client.CreateTrainingJob(ctx, jobName); err != nil {
		return "", err
	}

	err := o.TrainingPoller.Wait(ctx, "training job "+jobName, func(ctx context.Context) (Status, string, error) {
		return o.client.DescribeTrainingJob(ctx, jobName)
	})
	if err != nil {
		return "", err
	}

	return jobName, nil
}
