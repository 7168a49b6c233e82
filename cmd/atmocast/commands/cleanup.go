package commands

import (
	"github.com/spf13/cobra"

	"github.com/atmolab/atmocast/internal/partition"
	"github.com/atmolab/atmocast/internal/reclaim"
	"github.com/atmolab/atmocast/pkg/models"
)

// NewCleanupCmd creates the cleanup command: best-effort teardown of the
// resources provisioned for one date.
func NewCleanupCmd(opts *Options) *cobra.Command {
	var (
		date        string
		withDataset bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Tear down endpoints, models and artifacts for one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			day, err := parseDate(date)
			if err != nil {
				return err
			}
			dateKey := day.Format(partition.DateLayout)

			e, err := setup(ctx, opts, true)
			if err != nil {
				return err
			}

			reclaimer := reclaim.NewReclaimer(e.client, e.store, e.logger)
			reclaimer.Cleanup(ctx, models.Metrics(), dateKey)
			if withDataset {
				reclaimer.CleanupDataset(ctx, dateKey)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "resource date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&withDataset, "with-dataset", false, "also delete the aggregate dataset")
	return cmd
}
