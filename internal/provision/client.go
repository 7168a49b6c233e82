// Package provision drives asynchronous provisioning of models, endpoint
// configs, endpoints and training jobs, and polls them to completion.
package provision

import (
	"context"
	"time"
)

// Status is a provisioning state reported by the service. Requested units
// move Creating/InProgress and settle in InService, Completed, Failed or
// Stopped.
type Status string

const (
	StatusCreating   Status = "Creating"
	StatusInProgress Status = "InProgress"
	StatusStopping   Status = "Stopping"
	StatusInService  Status = "InService"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
	StatusStopped    Status = "Stopped"
)

// Polling budgets. Training jobs settle in minutes, endpoints take longer
// per poll but fewer of them.
const (
	TrainingPollInterval = 10 * time.Second
	TrainingMaxTries     = 30
	EndpointPollInterval = 30 * time.Second
	EndpointMaxTries     = 10
)

// Client is the provisioning service boundary. Creation calls are
// independent of each other; deletions are best-effort and isolated per
// resource.
type Client interface {
	CreateModel(ctx context.Context, name, artifactLocation string) error
	CreateEndpointConfig(ctx context.Context, name, modelName string) error
	CreateEndpoint(ctx context.Context, name, configName string) error
	CreateTrainingJob(ctx context.Context, name string) error

	// Describe calls return the current status plus an optional failure
	// reason supplied by the service.
	DescribeEndpoint(ctx context.Context, name string) (Status, string, error)
	DescribeTrainingJob(ctx context.Context, name string) (Status, string, error)

	// InvokeEndpoint runs synchronous inference and returns the scalar
	// prediction.
	InvokeEndpoint(ctx context.Context, name string, features []float64) (float64, error)

	DeleteEndpoint(ctx context.Context, name string) error
	DeleteEndpointConfig(ctx context.Context, name string) error
	DeleteModel(ctx context.Context, name string) error
}
