// Package sagemaker implements the provisioning client on AWS SageMaker.
package sagemaker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime"
	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/internal/provision"
	"github.com/atmolab/atmocast/pkg/errors"
)

// Config holds configuration for the SageMaker provisioning client
type Config struct {
	Region               string `json:"region"`
	RoleARN              string `json:"role_arn"`
	TrainingImage        string `json:"training_image"`
	TrainingInstanceType string `json:"training_instance_type"`
	ServingInstanceType  string `json:"serving_instance_type"`
	OutputPath           string `json:"output_path"`
	SubmitDirectory      string `json:"submit_directory"`
	MaxRuntimeSeconds    int64  `json:"max_runtime_seconds"`
	VolumeSizeGB         int64  `json:"volume_size_gb"`
}

// Client implements provision.Client against SageMaker
type Client struct {
	config  *Config
	sm      *sagemaker.SageMaker
	runtime *sagemakerruntime.SageMakerRuntime
	logger  *logrus.Logger
}

// invokeRequest matches the inference adapter's input contract.
type invokeRequest struct {
	Features []float64 `json:"features"`
}

// NewClient creates a SageMaker client
func NewClient(config *Config, logger *logrus.Logger) (*Client, error) {
	if config == nil {
		return nil, errors.NewProvisioningError(errors.CodeCreateFailed, "SageMaker config cannot be nil")
	}
	if config.RoleARN == "" {
		return nil, errors.NewProvisioningError(errors.CodeCreateFailed, "SageMaker execution role is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	sess, err := session.NewSession(&aws.Config{Region: aws.String(config.Region)})
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeConnectionFailed,
			"failed to create AWS session")
	}

	return &Client{
		config:  config,
		sm:      sagemaker.New(sess),
		runtime: sagemakerruntime.New(sess),
		logger:  logger,
	}, nil
}

// CreateModel registers a packaged model archive with SageMaker
func (c *Client) CreateModel(ctx context.Context, name, artifactLocation string) error {
	_, err := c.sm.CreateModelWithContext(ctx, &sagemaker.CreateModelInput{
		ModelName: aws.String(name),
		PrimaryContainer: &sagemaker.ContainerDefinition{
			Image:        aws.String(c.config.TrainingImage),
			ModelDataUrl: aws.String(artifactLocation),
		},
		ExecutionRoleArn: aws.String(c.config.RoleARN),
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeCreateFailed,
			"failed to create model '"+name+"'")
	}
	return nil
}

// CreateEndpointConfig creates a single-variant endpoint config
func (c *Client) CreateEndpointConfig(ctx context.Context, name, modelName string) error {
	_, err := c.sm.CreateEndpointConfigWithContext(ctx, &sagemaker.CreateEndpointConfigInput{
		EndpointConfigName: aws.String(name),
		ProductionVariants: []*sagemaker.ProductionVariant{
			{
				VariantName:          aws.String("AllTraffic"),
				ModelName:            aws.String(modelName),
				InstanceType:         aws.String(c.config.ServingInstanceType),
				InitialInstanceCount: aws.Int64(1),
			},
		},
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeCreateFailed,
			"failed to create endpoint config '"+name+"'")
	}
	return nil
}

// CreateEndpoint creates an inference endpoint from a config
func (c *Client) CreateEndpoint(ctx context.Context, name, configName string) error {
	_, err := c.sm.CreateEndpointWithContext(ctx, &sagemaker.CreateEndpointInput{
		EndpointName:       aws.String(name),
		EndpointConfigName: aws.String(configName),
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeCreateFailed,
			"failed to create endpoint '"+name+"'")
	}
	return nil
}

// CreateTrainingJob submits a managed training job
func (c *Client) CreateTrainingJob(ctx context.Context, name string) error {
	_, err := c.sm.CreateTrainingJobWithContext(ctx, &sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(name),
		AlgorithmSpecification: &sagemaker.AlgorithmSpecification{
			TrainingImage:     aws.String(c.config.TrainingImage),
			TrainingInputMode: aws.String("File"),
		},
		RoleArn: aws.String(c.config.RoleARN),
		ResourceConfig: &sagemaker.ResourceConfig{
			InstanceType:   aws.String(c.config.TrainingInstanceType),
			InstanceCount:  aws.Int64(1),
			VolumeSizeInGB: aws.Int64(c.config.VolumeSizeGB),
		},
		OutputDataConfig: &sagemaker.OutputDataConfig{
			S3OutputPath: aws.String(c.config.OutputPath),
		},
		StoppingCondition: &sagemaker.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int64(c.config.MaxRuntimeSeconds),
		},
		HyperParameters: map[string]*string{
			"sagemaker_program":          aws.String("train.py"),
			"sagemaker_submit_directory": aws.String(c.config.SubmitDirectory),
		},
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeCreateFailed,
			"failed to create training job '"+name+"'")
	}
	return nil
}

// DescribeEndpoint returns the endpoint status and failure reason
func (c *Client) DescribeEndpoint(ctx context.Context, name string) (provision.Status, string, error) {
	out, err := c.sm.DescribeEndpointWithContext(ctx, &sagemaker.DescribeEndpointInput{
		EndpointName: aws.String(name),
	})
	if err != nil {
		return "", "", errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeProvisioningFailed,
			"failed to describe endpoint '"+name+"'")
	}
	return provision.Status(aws.StringValue(out.EndpointStatus)), aws.StringValue(out.FailureReason), nil
}

// DescribeTrainingJob returns the job status and failure reason
func (c *Client) DescribeTrainingJob(ctx context.Context, name string) (provision.Status, string, error) {
	out, err := c.sm.DescribeTrainingJobWithContext(ctx, &sagemaker.DescribeTrainingJobInput{
		TrainingJobName: aws.String(name),
	})
	if err != nil {
		return "", "", errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeProvisioningFailed,
			"failed to describe training job '"+name+"'")
	}
	return provision.Status(aws.StringValue(out.TrainingJobStatus)), aws.StringValue(out.FailureReason), nil
}

// InvokeEndpoint runs synchronous inference for one feature vector
func (c *Client) InvokeEndpoint(ctx context.Context, name string, features []float64) (float64, error) {
	body, err := json.Marshal(invokeRequest{Features: features})
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeInvokeFailed,
			"failed to encode invocation payload")
	}

	out, err := c.runtime.InvokeEndpointWithContext(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(name),
		ContentType:  aws.String("application/json"),
		Accept:       aws.String("application/json"),
		Body:         body,
	})
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeInvokeFailed,
			"failed to invoke endpoint '"+name+"'")
	}

	// The adapter answers either a bare array or an object with a single
	// prediction value.
	var scalars []float64
	if err := json.Unmarshal(out.Body, &scalars); err == nil && len(scalars) > 0 {
		return scalars[0], nil
	}
	var obj struct {
		Prediction float64 `json:"prediction"`
	}
	if err := json.Unmarshal(out.Body, &obj); err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeInvokeFailed,
			fmt.Sprintf("unexpected invocation response from '%s'", name))
	}
	return obj.Prediction, nil
}

// DeleteEndpoint removes an endpoint
func (c *Client) DeleteEndpoint(ctx context.Context, name string) error {
	_, err := c.sm.DeleteEndpointWithContext(ctx, &sagemaker.DeleteEndpointInput{
		EndpointName: aws.String(name),
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeDeleteFailed,
			"failed to delete endpoint '"+name+"'")
	}
	return nil
}

// DeleteEndpointConfig removes an endpoint config
func (c *Client) DeleteEndpointConfig(ctx context.Context, name string) error {
	_, err := c.sm.DeleteEndpointConfigWithContext(ctx, &sagemaker.DeleteEndpointConfigInput{
		EndpointConfigName: aws.String(name),
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeDeleteFailed,
			"failed to delete endpoint config '"+name+"'")
	}
	return nil
}

// DeleteModel removes a registered model
func (c *Client) DeleteModel(ctx context.Context, name string) error {
	_, err := c.sm.DeleteModelWithContext(ctx, &sagemaker.DeleteModelInput{
		ModelName: aws.String(name),
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeProvisioning, errors.CodeDeleteFailed,
			"failed to delete model '"+name+"'")
	}
	return nil
}
