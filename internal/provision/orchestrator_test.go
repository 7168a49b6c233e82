package provision

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmolab/atmocast/pkg/models"
)

// fakeClient records provisioning calls and reports canned statuses.
type fakeClient struct {
	models          []string
	configs         []string
	endpoints       []string
	trainingJobs    []string
	endpointStatus  Status
	trainingStatus  Status
	failureReason   string
	describeCalls   int
	artifactByModel map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		endpointStatus:  StatusInService,
		trainingStatus:  StatusCompleted,
		artifactByModel: make(map[string]string),
	}
}

func (f *fakeClient) CreateModel(ctx context.Context, name, artifactLocation string) error {
	f.models = append(f.models, name)
	f.artifactByModel[name] = artifactLocation
	return nil
}

func (f *fakeClient) CreateEndpointConfig(ctx context.Context, name, modelName string) error {
	f.configs = append(f.configs, name)
	return nil
}

func (f *fakeClient) CreateEndpoint(ctx context.Context, name, configName string) error {
	f.endpoints = append(f.endpoints, name)
	return nil
}

func (f *fakeClient) CreateTrainingJob(ctx context.Context, name string) error {
	f.trainingJobs = append(f.trainingJobs, name)
	return nil
}

func (f *fakeClient) DescribeEndpoint(ctx context.Context, name string) (Status, string, error) {
	f.describeCalls++
	return f.endpointStatus, f.failureReason, nil
}

func (f *fakeClient) DescribeTrainingJob(ctx context.Context, name string) (Status, string, error) {
	f.describeCalls++
	return f.trainingStatus, f.failureReason, nil
}

func (f *fakeClient) InvokeEndpoint(ctx context.Context, name string, features []float64) (float64, error) {
	return 0, nil
}

func (f *fakeClient) DeleteEndpoint(ctx context.Context, name string) error       { return nil }
func (f *fakeClient) DeleteEndpointConfig(ctx context.Context, name string) error { return nil }
func (f *fakeClient) DeleteModel(ctx context.Context, name string) error          { return nil }

func newTestOrchestrator(client Client) *Orchestrator {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	o := NewOrchestrator(client, logger)
	// No sleeping in tests.
	o.EndpointPoller = NewPoller(0, 3, logger)
	o.TrainingPoller = NewPoller(0, 3, logger)
	return o
}

func TestDeployCreatesResourcesInOrder(t *testing.T) {
	client := newFakeClient()
	o := newTestOrchestrator(client)

	endpoint, err := o.Deploy(context.Background(), "2024-05-01", models.MetricTemperature, "s3://bucket/models/x.tar.gz")
	require.NoError(t, err)

	assert.Equal(t, "2024-05-01-temperature-model-endpoint", endpoint)
	assert.Equal(t, []string{"2024-05-01-temperature-model"}, client.models)
	assert.Equal(t, []string{"2024-05-01-temperature-endpoint-config"}, client.configs)
	assert.Equal(t, []string{"2024-05-01-temperature-model-endpoint"}, client.endpoints)
	assert.Equal(t, "s3://bucket/models/x.tar.gz", client.artifactByModel["2024-05-01-temperature-model"])
}

func TestDeployPropagatesEndpointFailure(t *testing.T) {
	client := newFakeClient()
	client.endpointStatus = StatusFailed
	client.failureReason = "image not found"
	o := newTestOrchestrator(client)

	_, err := o.Deploy(context.Background(), "2024-05-01", models.MetricHumidity, "s3://bucket/models/y.tar.gz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image not found")
}

func TestSubmitTrainingNamesJobByDate(t *testing.T) {
	client := newFakeClient()
	o := newTestOrchestrator(client)

	startedAt := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	job, err := o.SubmitTraining(context.Background(), "2024-05-01", startedAt)
	require.NoError(t, err)

	require.Len(t, client.trainingJobs, 1)
	assert.Equal(t, job, client.trainingJobs[0])
	assert.Contains(t, job, "2024-05-01-train-models-job-")
}
