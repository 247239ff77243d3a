package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/achingachris/mya-server/internal/config"
	"github.com/achingachris/mya-server/migrations"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the ledger schema up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer l.close()

			if c.cfg.Store == config.StoreSQLite {
				cmd.Printf("sqlite schema at %s is up to date\n", c.cfg.SQLitePath)
				return nil
			}

			names, err := migrations.Names()
			if err != nil {
				return err
			}
			applied := make(map[string]bool, len(l.applied))
			for _, name := range l.applied {
				applied[name] = true
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Migration", "Status"})
			for _, name := range names {
				status := "already applied"
				if applied[name] {
					status = "applied"
				}
				tw.AppendRow(table.Row{name, status})
			}
			tw.Render()
			return nil
		},
	}
}
