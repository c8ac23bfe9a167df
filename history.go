package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelpush/modelpush/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent deployments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.Context(), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")

	return cmd
}

func runHistory(ctx context.Context, limit int) error {
	logger := buildLogger()

	ledger := openLedger(logger)
	if ledger == nil {
		return errors.New("deployment history unavailable")
	}
	defer ledger.Close()

	entries, err := ledger.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("reading deployment history: %w", err)
	}

	if flagJSON {
		return printHistoryJSON(entries)
	}

	printHistoryTable(entries)

	return nil
}

// historyJSONEntry is the JSON output schema for a single deployment.
type historyJSONEntry struct {
	ID          int64  `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	ItemID      string `json:"item_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Action      string `json:"action,omitempty"`
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func printHistoryJSON(entries []history.Entry) error {
	out := make([]historyJSONEntry, 0, len(entries))
	for i := range entries {
		out = append(out, historyJSONEntry{
			ID:          entries[i].ID,
			WorkspaceID: entries[i].WorkspaceID,
			ItemID:      entries[i].ItemID,
			Name:        entries[i].Name,
			Action:      entries[i].Action,
			Success:     entries[i].Success,
			Message:     entries[i].Message,
			CreatedAt:   entries[i].CreatedAt.Format(time.RFC3339),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func printHistoryTable(entries []history.Entry) {
	headers := []string{"WHEN", "RESULT", "ACTION", "NAME", "MESSAGE"}
	rows := make([][]string, 0, len(entries))

	for i := range entries {
		result := "ok"
		if !entries[i].Success {
			result = "failed"
		}

		rows = append(rows, []string{
			formatTime(entries[i].CreatedAt),
			result,
			entries[i].Action,
			entries[i].Name,
			entries[i].Message,
		})
	}

	printTable(os.Stdout, headers, rows)
}
