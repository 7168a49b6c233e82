package commands

import (
	"github.com/spf13/cobra"

	"github.com/atmolab/atmocast/internal/ingest"
	"github.com/atmolab/atmocast/internal/partition"
)

// NewIngestCmd creates the ingest command: consume the reading queue into
// daily partitions until interrupted.
func NewIngestCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Consume the ingestion queue into daily partitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := setup(ctx, opts, false)
			if err != nil {
				return err
			}

			consumer, err := ingest.NewConsumer(&ingest.Config{
				Region:      e.cfg.Queue.Region,
				QueueURL:    e.cfg.Queue.URL,
				MaxMessages: e.cfg.Queue.MaxMessages,
				WaitTime:    e.cfg.Queue.WaitTime,
			}, partition.NewAppender(e.store, e.logger), e.logger)
			if err != nil {
				return err
			}

			return consumer.Run(ctx)
		},
	}

	return cmd
}
