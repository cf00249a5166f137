package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ramkansal/fightgraph/internal/storage"
	"github.com/spf13/cobra"
)

var (
	filterArg       string
	placeholdersArg bool
)

var fightersCmd = &cobra.Command{
	Use:   "fighters",
	Short: "List the fighters in the database.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()

		fighters, err := store.ListFighters(cmd.Context())
		if err != nil {
			return err
		}
		bouts, err := store.ListBouts(cmd.Context())
		if err != nil {
			return err
		}
		boutCount := map[int64]int{}
		for _, b := range bouts {
			boutCount[b.Fighter1ID]++
			boutCount[b.Fighter2ID]++
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Name", "Record", "Division", "Nationality", "Bouts", "Placeholder"})
		shown := 0
		for _, f := range fighters {
			if placeholdersArg && !f.Placeholder {
				continue
			}
			if filterArg != "" && !strings.Contains(strings.ToLower(f.Name), strings.ToLower(filterArg)) {
				continue
			}
			placeholder := ""
			if f.Placeholder {
				placeholder = "yes"
			}
			t.AppendRow(table.Row{f.ID, f.Name, f.Record.String(), f.WeightClass, f.Nationality, boutCount[f.ID], placeholder})
			shown++
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d fighters", shown), "", "", "", len(bouts), ""})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func init() {
	fightersCmd.Flags().StringVar(&filterArg, "name", "", "only fighters whose name contains this text")
	fightersCmd.Flags().BoolVar(&placeholdersArg, "placeholders", false, "only opponents not crawled yet")
}
