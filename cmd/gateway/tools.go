package main

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect tools exposed by active mounts",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools exposed by every currently active mount",
	RunE:  runToolsList,
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
}

func runToolsList(cmd *cobra.Command, args []string) error {
	store, err := loadReadOnlyStore()
	if err != nil {
		return err
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Entry", "Prefix", "Tool"}),
	)
	for _, m := range store.ListActiveMounts() {
		if len(m.Tools) == 0 {
			table.Append([]string{m.EntryID, m.Prefix, "(none)"})
			continue
		}
		for _, tool := range m.Tools {
			table.Append([]string{m.EntryID, m.Prefix, tool})
		}
	}
	table.Render()
	return nil
}
