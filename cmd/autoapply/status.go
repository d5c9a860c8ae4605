package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply/internal/config"
	"github.com/jonathan/autoapply/internal/logging"
	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

var statusCommand = &cobra.Command{
	Use:   "status",
	Short: "Print queue item counts by state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCommand)
}

var allStates = []types.QueueState{
	types.StateQueued,
	types.StateGenerating,
	types.StatePendingReview,
	types.StateReadyToSubmit,
	types.StateSubmitting,
	types.StateRetrying,
	types.StateSubmitted,
	types.StateRejected,
	types.StateFailedTransient,
	types.StateFailedPermanent,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New("error")

	st, cleanup, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, state := range allStates {
		items, err := st.ListItems(cmd.Context(), store.ItemFilter{States: []types.QueueState{state}})
		if err != nil {
			return fmt.Errorf("failed to list %s items: %w", state, err)
		}
		fmt.Printf("%-18s %d\n", state, len(items))
	}
	return nil
}
