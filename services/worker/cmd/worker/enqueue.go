package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"yourarch/pkg/domain"
	"yourarch/services/worker/internal/app"
	"yourarch/services/worker/internal/config"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		userID int64
		file   string
	)
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Add videos to the caption queue for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return errors.New("--user must be a positive id")
			}
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			items, err := loadItems(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			core, err := newStoreOnlyApp(cfg)
			if err != nil {
				return err
			}
			defer core.Close()

			n, err := core.EnqueueItems(cmd.Context(), items, userID)
			if err != nil {
				return err
			}
			slog.Info("videos enqueued", "user_id", userID, "count", n)
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d videos\n", n)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Owner user id")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON array of videos (- reads stdin)")
	return cmd
}

// loadItems decodes a JSON array of {videoTitle, videoId, channelId}.
func loadItems(stdin io.Reader, path string) ([]domain.NewQueueItem, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open items: %w", err)
		}
		defer f.Close()
		r = f
	}
	var items []domain.NewQueueItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("no videos to enqueue")
	}
	return items, nil
}

func newStoreOnlyApp(cfg config.FileConfig) (*app.App, error) {
	return app.New(app.Config{DatabaseURL: cfg.DatabaseURL})
}
