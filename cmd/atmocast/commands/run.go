package commands

import (
	"github.com/spf13/cobra"

	"github.com/atmolab/atmocast/internal/pipeline"
)

// NewRunCmd creates the run command: the full aggregate-train-deploy-
// forecast-cleanup pipeline.
func NewRunCmd(opts *Options) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline for one window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			endDate, err := parseDate(date)
			if err != nil {
				return err
			}

			e, err := setup(ctx, opts, true)
			if err != nil {
				return err
			}

			p := pipeline.New(e.store, e.client, pipeline.S3ArtifactLocator(e.cfg.Store.Bucket), e.logger)
			return p.Run(ctx, endDate)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "window end date (YYYY-MM-DD, default today)")
	return cmd
}
