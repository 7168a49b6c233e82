package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atmolab/atmocast/internal/aggregate"
	"github.com/atmolab/atmocast/internal/features"
	"github.com/atmolab/atmocast/internal/partition"
	"github.com/atmolab/atmocast/internal/pipeline"
	"github.com/atmolab/atmocast/internal/training"
	"github.com/atmolab/atmocast/pkg/models"
)

// NewTrainCmd creates the train command: fit and package the per-metric
// models from an existing dataset without deploying anything. With --managed
// the fit runs as a provisioning-service training job instead of locally.
func NewTrainCmd(opts *Options) *cobra.Command {
	var (
		date    string
		managed bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit per-metric models from a built dataset and upload artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			day, err := parseDate(date)
			if err != nil {
				return err
			}
			dateKey := day.Format(partition.DateLayout)

			if managed {
				e, err := setup(ctx, opts, true)
				if err != nil {
					return err
				}

				p := pipeline.New(e.store, e.client, pipeline.S3ArtifactLocator(e.cfg.Store.Bucket), e.logger)
				jobName, err := p.RunManagedTraining(ctx, day)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), jobName)
				return nil
			}

			e, err := setup(ctx, opts, false)
			if err != nil {
				return err
			}

			rows, err := aggregate.NewAggregator(e.store, e.logger).LoadDataset(ctx, aggregate.DatasetKey(dateKey))
			if err != nil {
				return err
			}

			trainer := training.NewTrainer(e.logger)
			for _, metric := range models.Metrics() {
				x, y, err := features.TrainingFrame(rows, metric)
				if err != nil {
					return err
				}

				model, _, err := trainer.Train(metric, x, y)
				if err != nil {
					return err
				}

				key, err := trainer.Package(ctx, e.store, model, dateKey)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "dataset date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&managed, "managed", false, "submit a training job to the provisioning service instead of fitting locally")
	return cmd
}
