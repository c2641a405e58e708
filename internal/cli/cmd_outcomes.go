package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/argusauth/argus/internal/config"
	"github.com/argusauth/argus/internal/storage"
	"github.com/argusauth/argus/internal/telemetry"
)

func newOutcomesCommand(out io.Writer) *cobra.Command {
	var (
		configPath string
		verify     bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "List or verify the recorded authentication outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store, err := storage.Open(cfg.Storage.Path, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := context.Background()
			if verify {
				service, err := telemetry.NewService(store.Outcomes, slog.Default())
				if err != nil {
					return err
				}
				result, err := service.Verify(ctx)
				if err != nil {
					return err
				}
				if !result.Valid {
					return fmt.Errorf("outcome chain broken at %s (%d events)", result.BrokenAt, result.EventCount)
				}
				fmt.Fprintf(out, "chain valid, %d events\n", result.EventCount)
				return nil
			}

			records, err := store.Outcomes.List(ctx, storage.OutcomeFilter{Limit: limit})
			if err != nil {
				return err
			}
			for _, record := range records {
				fmt.Fprintf(out, "%s %s %s modality=%s crypto=%t confirm=%dms total=%dms\n",
					record.CreatedAt.Format("2006-01-02T15:04:05Z"),
					record.SessionToken, record.Reason, record.Modality,
					record.CryptoBound, record.ConfirmLatencyMS, record.TotalLatencyMS)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to argusd.toml")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify the outcome hash chain")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events to list (0 = all)")
	return cmd
}
