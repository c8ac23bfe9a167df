package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelpush/modelpush/internal/creds"
	"github.com/modelpush/modelpush/internal/workspace"
)

func newItemsCmd() *cobra.Command {
	var (
		flags    creds.Flags
		itemType string
	)

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List items in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runItems(cmd.Context(), flags, itemType)
		},
	}

	cmd.Flags().StringVar(&flags.WorkspaceURL, "workspace", "", "workspace URL")
	cmd.Flags().StringVar(&itemType, "type", workspace.ItemTypeSemanticModel, "item type to list")

	return cmd
}

func runItems(ctx context.Context, flags creds.Flags, itemType string) error {
	logger := buildLogger()

	sess, err := newSession(ctx, flags, false, logger)
	if err != nil {
		return err
	}

	client, err := sess.workspaceClient(logger)
	if err != nil {
		return err
	}

	items, err := client.ListItems(ctx, itemType)
	if err != nil {
		return fmt.Errorf("listing items: %w", err)
	}

	slices.SortFunc(items, func(a, b workspace.Item) int {
		return strings.Compare(a.DisplayName, b.DisplayName)
	})

	if flagJSON {
		return writeItemsJSON(os.Stdout, items)
	}

	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{it.DisplayName, it.Type, it.ID}
	}

	printTable(os.Stdout, []string{"NAME", "TYPE", "ID"}, rows)

	return nil
}

// itemsJSONItem is the JSON shape of one listed item.
type itemsJSONItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

func writeItemsJSON(w io.Writer, items []workspace.Item) error {
	out := make([]itemsJSONItem, len(items))
	for i, it := range items {
		out[i] = itemsJSONItem{ID: it.ID, Name: it.DisplayName, Type: it.Type, Description: it.Description}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}
