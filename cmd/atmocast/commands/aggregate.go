package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atmolab/atmocast/internal/aggregate"
)

// NewAggregateCmd creates the aggregate command: build the rolling 30-day
// dataset without training or forecasting.
func NewAggregateCmd(opts *Options) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Build the rolling 30-day training dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			endDate, err := parseDate(date)
			if err != nil {
				return err
			}

			e, err := setup(ctx, opts, false)
			if err != nil {
				return err
			}

			key, err := aggregate.NewAggregator(e.store, e.logger).BuildDataset(ctx, endDate)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "window end date (YYYY-MM-DD, default today)")
	return cmd
}
