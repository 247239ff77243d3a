package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/achingachris/mya-server/internal/app"
	"github.com/achingachris/mya-server/internal/domain"
)

type chargeFlags struct {
	kind      string
	status    string
	subjectID string
	flagged   bool
	since     time.Duration
}

func (f *chargeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "kind", "", "vote or ticket")
	cmd.Flags().StringVar(&f.status, "status", "", "pending, completed or failed")
	cmd.Flags().StringVar(&f.subjectID, "subject", "", "nominee or ticket type id")
	cmd.Flags().BoolVar(&f.flagged, "flagged", false, "only charges flagged for an operator")
	cmd.Flags().DurationVar(&f.since, "since", 0, "only charges created within this window, e.g. 72h")
}

func (f *chargeFlags) filter() app.ChargeFilter {
	filter := app.ChargeFilter{
		Kind:      domain.ChargeKind(f.kind),
		Status:    domain.ChargeStatus(f.status),
		SubjectID: f.subjectID,
		Flagged:   f.flagged,
	}
	if f.since > 0 {
		from := time.Now().UTC().Add(-f.since)
		filter.From = &from
	}
	return filter
}

func (c *cli) chargesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "charges", Short: "Inspect the charge ledger"}
	cmd.AddCommand(c.chargesListCmd())
	cmd.AddCommand(c.chargesExportCmd())
	cmd.AddCommand(c.chargesSummaryCmd())
	return cmd
}

func (c *cli) chargesListCmd() *cobra.Command {
	var (
		f             chargeFlags
		limit, offset int
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List charges, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer l.close()

			filter := f.filter()
			filter.Limit, filter.Offset = limit, offset
			rows, err := app.NewReportService(l.reports).ListCharges(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			renderCharges(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func renderCharges(w io.Writer, rows []app.ChargeRow) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Reference", "Kind", "Subject", "Qty", "Amount", "Status", "Flag", "Via", "Created"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	for _, r := range rows {
		subject := r.SubjectName
		if subject == "" {
			subject = r.SubjectID
		}
		tw.AppendRow(table.Row{
			r.Reference,
			r.Kind,
			subject,
			r.Quantity,
			r.Currency + " " + app.FormatMinor(r.AmountDue),
			r.Status,
			r.Flag,
			r.ResolvedVia,
			r.CreatedAt.Format(time.DateTime),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "", "", "", fmt.Sprintf("%d rows", len(rows))})
	tw.Render()
}

func (c *cli) chargesExportCmd() *cobra.Command {
	var (
		f   chargeFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write matching charges as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer l.close()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			n, err := app.NewReportService(l.reports).ExportCharges(cmd.Context(), w, f.filter())
			if err != nil {
				return err
			}
			if w != cmd.OutOrStdout() {
				cmd.PrintErrf("wrote %d charges to %s\n", n, out)
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func (c *cli) chargesSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show revenue and charge counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer l.close()

			s, err := app.NewReportService(l.reports).Summary(cmd.Context())
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendRows([]table.Row{
				{"Vote revenue", app.FormatMinor(s.VoteRevenue)},
				{"Ticket revenue", app.FormatMinor(s.TicketRevenue)},
				{"Votes cast", s.VotesCast},
				{"Tickets sold", s.TicketsSold},
				{"Completed charges", s.CompletedCharges},
				{"Pending charges", s.PendingCharges},
				{"Failed charges", s.FailedCharges},
				{"Flagged charges", s.FlaggedCharges},
				{"Categories", s.Categories},
				{"Nominees", s.Nominees},
				{"Ticket types", s.TicketTypes},
			})
			tw.Render()
			return nil
		},
	}
}
