// Package commands implements the atmocast CLI subcommands.
package commands

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/internal/config"
	"github.com/atmolab/atmocast/internal/partition"
	"github.com/atmolab/atmocast/internal/provision"
	"github.com/atmolab/atmocast/internal/provision/sagemaker"
	"github.com/atmolab/atmocast/internal/storage"
	s3store "github.com/atmolab/atmocast/internal/storage/s3"
	"github.com/atmolab/atmocast/pkg/errors"
)

// Options carries the root command's persistent flags.
type Options struct {
	CfgFile *string
	Verbose *bool
}

// env bundles the dependencies a subcommand needs.
type env struct {
	cfg    *config.Config
	logger *logrus.Logger
	store  storage.ObjectStore
	client provision.Client
}

// setup loads configuration and connects the object store and provisioning
// client.
func setup(ctx context.Context, opts *Options, needProvisioning bool) (*env, error) {
	cfg, err := config.Load(*opts.CfgFile)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(lvl)
	}

	store, err := s3store.NewStore(&s3store.Config{
		Region:         cfg.Store.Region,
		Bucket:         cfg.Store.Bucket,
		Prefix:         cfg.Store.Prefix,
		Endpoint:       cfg.Store.Endpoint,
		ForcePathStyle: cfg.Store.ForcePathStyle,
		MaxRetries:     cfg.Store.MaxRetries,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Connect(ctx); err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, logger: logger, store: store}

	if needProvisioning {
		client, err := sagemaker.NewClient(&sagemaker.Config{
			Region:               cfg.Provision.Region,
			RoleARN:              cfg.Provision.RoleARN,
			TrainingImage:        cfg.Provision.TrainingImage,
			TrainingInstanceType: cfg.Provision.TrainingInstanceType,
			ServingInstanceType:  cfg.Provision.ServingInstanceType,
			OutputPath:           cfg.Provision.OutputPath,
			SubmitDirectory:      cfg.Provision.SubmitDirectory,
			MaxRuntimeSeconds:    cfg.Provision.MaxRuntimeSeconds,
			VolumeSizeGB:         cfg.Provision.VolumeSizeGB,
		}, logger)
		if err != nil {
			return nil, err
		}
		e.client = client
	}

	return e, nil
}

// parseDate validates a --date flag, defaulting to today (UTC).
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(partition.DateLayout, value)
	if err != nil {
		return time.Time{}, errors.WrapError(errors.ErrInvalidDate, errors.ErrorTypeValidation, errors.CodeInvalidDate,
			"date must be YYYY-MM-DD, got '"+value+"'")
	}
	return t.UTC(), nil
}
