package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmolab/atmocast/internal/aggregate"
	"github.com/atmolab/atmocast/internal/partition"
	"github.com/atmolab/atmocast/internal/provision"
	"github.com/atmolab/atmocast/internal/storage/memory"
	apperrors "github.com/atmolab/atmocast/pkg/errors"
	"github.com/atmolab/atmocast/pkg/models"
)

// fakeProvisioner fulfills every provisioning call in memory.
type fakeProvisioner struct {
	createdEndpoints []string
	deletedEndpoints []string
	deletedConfigs   []string
	deletedModels    []string
	endpointStatus   provision.Status
	trainingStatus   provision.Status
	trainingJobs     []string
	invocations      int
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{
		endpointStatus: provision.StatusInService,
		trainingStatus: provision.StatusCompleted,
	}
}

func (f *fakeProvisioner) CreateModel(ctx context.Context, name, artifactLocation string) error {
	return nil
}
func (f *fakeProvisioner) CreateEndpointConfig(ctx context.Context, name, modelName string) error {
	return nil
}
func (f *fakeProvisioner) CreateEndpoint(ctx context.Context, name, configName string) error {
	f.createdEndpoints = append(f.createdEndpoints, name)
	return nil
}
func (f *fakeProvisioner) CreateTrainingJob(ctx context.Context, name string) error {
	f.trainingJobs = append(f.trainingJobs, name)
	return nil
}

func (f *fakeProvisioner) DescribeEndpoint(ctx context.Context, name string) (provision.Status, string, error) {
	return f.endpointStatus, "resource limit", nil
}
func (f *fakeProvisioner) DescribeTrainingJob(ctx context.Context, name string) (provision.Status, string, error) {
	return f.trainingStatus, "AlgorithmError", nil
}

func (f *fakeProvisioner) InvokeEndpoint(ctx context.Context, name string, features []float64) (float64, error) {
	f.invocations++
	return 7.25, nil
}

func (f *fakeProvisioner) DeleteEndpoint(ctx context.Context, name string) error {
	f.deletedEndpoints = append(f.deletedEndpoints, name)
	return nil
}
func (f *fakeProvisioner) DeleteEndpointConfig(ctx context.Context, name string) error {
	f.deletedConfigs = append(f.deletedConfigs, name)
	return nil
}
func (f *fakeProvisioner) DeleteModel(ctx context.Context, name string) error {
	f.deletedModels = append(f.deletedModels, name)
	return nil
}

// seedWindow writes 30 days of synthetic readings at 10-minute cadence
// ending at endDate. The metric shapes differ so no column is a linear
// combination of another.
func seedWindow(t *testing.T, store *memory.Store, endDate time.Time) {
	t.Helper()
	ctx := context.Background()

	for offset := 0; offset < aggregate.WindowDays; offset++ {
		day := endDate.AddDate(0, 0, -offset)
		midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

		part := models.Partition{}
		for tod := 0; tod < 24*60*60; tod += models.SlotInterval {
			phase := 2 * math.Pi * float64(tod) / 86400
			part.Entries = append(part.Entries, models.Reading{
				T:   midnight.Add(time.Duration(tod) * time.Second).UnixMilli(),
				Tmp: 20 + 8*math.Sin(phase) + 0.1*float64(offset),
				Hum: 50 + 15*math.Cos(phase),
				Pr:  1010 + 5*math.Sin(phase+1) + 0.05*float64(offset),
			})
		}

		data, err := part.Marshal()
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, partition.Key(midnight), data))
	}
}

func newTestPipeline(store *memory.Store, client provision.Client) *Pipeline {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	p := New(store, client, S3ArtifactLocator("atmocast-test"), logger)
	p.orchestrator.EndpointPoller = provision.NewPoller(0, 3, logger)
	p.orchestrator.TrainingPoller = provision.NewPoller(0, 3, logger)
	return p
}

func TestRunEndToEnd(t *testing.T) {
	store := memory.NewStore()
	client := newFakeProvisioner()
	endDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedWindow(t, store, endDate)

	p := newTestPipeline(store, client)
	require.NoError(t, p.Run(context.Background(), endDate))

	ctx := context.Background()

	// The aggregate dataset was produced.
	_, found, err := store.Get(ctx, aggregate.DatasetKey("2024-05-01"))
	require.NoError(t, err)
	assert.True(t, found)

	// One endpoint per metric was created and later torn down.
	assert.Len(t, client.createdEndpoints, 3)
	assert.ElementsMatch(t, client.createdEndpoints, client.deletedEndpoints)
	assert.Len(t, client.deletedConfigs, 3)
	assert.Len(t, client.deletedModels, 3)

	// Model artifacts were uploaded during the run and reclaimed after it.
	for _, key := range store.Keys() {
		assert.NotContains(t, key, "models/")
	}

	// Seven days of predictions, 144 slots each, all carrying the endpoint's
	// rounded answer.
	appender := partition.NewAppender(store, nil)
	for offset := 0; offset < 7; offset++ {
		date := endDate.AddDate(0, 0, offset).Format(partition.DateLayout)
		part, err := appender.Load(ctx, partition.PredictionsKey(date))
		require.NoError(t, err)
		require.Len(t, part.Entries, models.SlotsPerDay, "day %s", date)
		assert.Equal(t, 7.25, part.Entries[0].Tmp)
		assert.Equal(t, 7.25, part.Entries[0].Hum)
		assert.Equal(t, 7.25, part.Entries[0].Pr)
	}

	// 7 days * 144 slots * 3 metrics.
	assert.Equal(t, 7*models.SlotsPerDay*3, client.invocations)
}

func TestRunCleansUpAfterDeployFailure(t *testing.T) {
	store := memory.NewStore()
	client := newFakeProvisioner()
	client.endpointStatus = provision.StatusFailed
	endDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedWindow(t, store, endDate)

	p := newTestPipeline(store, client)
	err := p.Run(context.Background(), endDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource limit")

	// Teardown still ran for every metric.
	assert.Len(t, client.deletedEndpoints, 3)
	assert.Len(t, client.deletedModels, 3)

	// No predictions were written.
	_, found, getErr := store.Get(context.Background(), partition.PredictionsKey("2024-05-01"))
	require.NoError(t, getErr)
	assert.False(t, found)
}

func TestRunFailsWithoutData(t *testing.T) {
	store := memory.NewStore()
	client := newFakeProvisioner()

	p := newTestPipeline(store, client)
	err := p.Run(context.Background(), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)

	// Nothing was provisioned, so there is nothing to clean up.
	assert.Empty(t, client.createdEndpoints)
	assert.Empty(t, client.deletedEndpoints)
}

func TestRunManagedTrainingSubmitsJob(t *testing.T) {
	store := memory.NewStore()
	client := newFakeProvisioner()
	endDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedWindow(t, store, endDate)

	p := newTestPipeline(store, client)
	jobName, err := p.RunManagedTraining(context.Background(), endDate)
	require.NoError(t, err)

	require.Len(t, client.trainingJobs, 1)
	assert.Equal(t, client.trainingJobs[0], jobName)
	assert.Contains(t, jobName, "2024-05-01-train-models-job-")

	// The dataset the job consumes was built first.
	_, found, err := store.Get(context.Background(), aggregate.DatasetKey("2024-05-01"))
	require.NoError(t, err)
	assert.True(t, found)

	// Managed training never touches endpoints.
	assert.Empty(t, client.createdEndpoints)
}

func TestRunManagedTrainingReportsJobFailure(t *testing.T) {
	store := memory.NewStore()
	client := newFakeProvisioner()
	client.trainingStatus = provision.StatusFailed
	endDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	seedWindow(t, store, endDate)

	p := newTestPipeline(store, client)
	_, err := p.RunManagedTraining(context.Background(), endDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AlgorithmError")
}

func TestRunManagedTrainingFailsWithoutData(t *testing.T) {
	store := memory.NewStore()
	client := newFakeProvisioner()

	p := newTestPipeline(store, client)
	_, err := p.RunManagedTraining(context.Background(), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, apperrors.ErrEmptyDataset)

	// The job is never submitted over an empty window.
	assert.Empty(t, client.trainingJobs)
}

func TestS3ArtifactLocator(t *testing.T) {
	locator := S3ArtifactLocator("bucket-a")
	assert.Equal(t, "s3://bucket-a/models/2024-05-01-temperature-model.tar.gz",
		locator("models/2024-05-01-temperature-model.tar.gz"))
}
