package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/statusline/statusline/internal/errors"
	"github.com/statusline/statusline/internal/status"
	"github.com/statusline/statusline/internal/validation"
)

var (
	statusStart string
	statusEnd   string
)

var statusCmd = &cobra.Command{
	Use:   "status <entity>",
	Short: "Print the state intervals of an entity over a window",
	Long: `Print the interval sequence for one entity as JSON, exactly as the
HTTP API would return it. --start and --end are Unix milliseconds.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusStart, "start", "", "Window start (Unix milliseconds)")
	statusCmd.Flags().StringVar(&statusEnd, "end", "", "Window end (Unix milliseconds)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	entityID := args[0]
	if err := validation.CheckEntity(entityID); err != nil {
		return fmt.Errorf("%s", errors.ClientMessage(err))
	}
	window, err := validation.CheckParams(statusStart, statusEnd)
	if err != nil {
		return fmt.Errorf("%s", errors.ClientMessage(err))
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	intervals, err := status.NewService(store, nil, nil).Status(cmd.Context(), entityID, window)
	if err != nil {
		return fmt.Errorf("%s", errors.ClientMessage(err))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(intervals)
}
