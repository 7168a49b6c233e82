package commands

import (
	"github.com/spf13/cobra"

	"github.com/atmolab/atmocast/internal/aggregate"
	"github.com/atmolab/atmocast/internal/features"
	"github.com/atmolab/atmocast/internal/forecast"
	"github.com/atmolab/atmocast/internal/partition"
	"github.com/atmolab/atmocast/internal/provision"
	"github.com/atmolab/atmocast/pkg/models"
)

// NewForecastCmd creates the forecast command. It assumes the per-metric
// endpoints for the given date are already in service (deployed by a prior
// run) and produces the 7-day horizon from that date's dataset.
func NewForecastCmd(opts *Options) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Produce 7-day forecasts against already-deployed endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			startDate, err := parseDate(date)
			if err != nil {
				return err
			}
			dateKey := startDate.Format(partition.DateLayout)

			e, err := setup(ctx, opts, true)
			if err != nil {
				return err
			}

			rows, err := aggregate.NewAggregator(e.store, e.logger).LoadDataset(ctx, aggregate.DatasetKey(dateKey))
			if err != nil {
				return err
			}

			endpoints := make(map[models.Metric]string, len(models.Metrics()))
			for _, metric := range models.Metrics() {
				endpoints[metric] = provision.EndpointName(dateKey, metric)
			}

			forecaster := forecast.NewForecaster(e.client, e.logger)
			appender := partition.NewAppender(e.store, e.logger)
			_, err = forecaster.Run(ctx, appender, endpoints, features.BucketAverages(rows), startDate)
			return err
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "forecast start date (YYYY-MM-DD, default today)")
	return cmd
}
