package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradesim/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query a SQLite session journal",
	Long: `Query and display journaled session records.

Subcommands:
  positions    - List a session's positions
  position     - Show one position by id
  transactions - List a session's ledger
  equity       - List a session's equity snapshots
  balance      - Sum a session's ledger

Examples:
  tradesim journal --db replay.sqlite transactions replay
  tradesim journal --db replay.sqlite --org position 01HQ...`,
}

var journalPositionsCmd = &cobra.Command{
	Use:   "positions <session-id>",
	Short: "List a session's positions",
	Args:  cobra.ExactArgs(1),
	RunE: withJournal(func(cmd *cobra.Command, j *journal.SQLite, arg string) error {
		positions, err := j.ListPositions(cmd.Context(), arg)
		if err != nil {
			return fmt.Errorf("list positions: %w", err)
		}
		if journalOrg {
			txs, err := j.ListTransactions(cmd.Context(), arg)
			if err != nil {
				return fmt.Errorf("list transactions: %w", err)
			}
			fmt.Println(journal.FormatPositionsOrg(positions, txs))
			return nil
		}
		return printPositions(positions)
	}),
}

var journalPositionCmd = &cobra.Command{
	Use:   "position <position-id>",
	Short: "Show one position",
	Args:  cobra.ExactArgs(1),
	RunE: withJournal(func(cmd *cobra.Command, j *journal.SQLite, arg string) error {
		p, err := j.GetPosition(cmd.Context(), arg)
		if err != nil {
			return fmt.Errorf("get position: %w", err)
		}
		if journalOrg {
			txs, err := j.ListTransactions(cmd.Context(), p.SessionID)
			if err != nil {
				return fmt.Errorf("list transactions: %w", err)
			}
			fmt.Println(journal.FormatPositionOrg(p, txs))
			return nil
		}
		return printPositions([]journal.Position{p})
	}),
}

var journalTransactionsCmd = &cobra.Command{
	Use:   "transactions <session-id>",
	Short: "List a session's ledger in sequence order",
	Args:  cobra.ExactArgs(1),
	RunE: withJournal(func(cmd *cobra.Command, j *journal.SQLite, arg string) error {
		txs, err := j.ListTransactions(cmd.Context(), arg)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTIME\tTYPE\tAMOUNT\tPOSITION\tNOTE")
		for _, tx := range txs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				tx.Seq, tx.CreatedAt.Format(time.RFC3339Nano), tx.Type, tx.Amount, tx.PositionID, tx.Note)
		}
		return w.Flush()
	}),
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity <session-id>",
	Short: "List a session's equity snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: withJournal(func(cmd *cobra.Command, j *journal.SQLite, arg string) error {
		snaps, err := j.ListEquity(cmd.Context(), arg)
		if err != nil {
			return fmt.Errorf("list equity: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tBALANCE\tEQUITY\tMARGIN")
		for _, s := range snaps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Time.Format(time.RFC3339Nano), s.Balance, s.Equity, s.MarginUsed)
		}
		return w.Flush()
	}),
}

var journalBalanceCmd = &cobra.Command{
	Use:   "balance <session-id>",
	Short: "Sum a session's ledger",
	Args:  cobra.ExactArgs(1),
	RunE: withJournal(func(cmd *cobra.Command, j *journal.SQLite, arg string) error {
		bal, err := j.SessionBalance(cmd.Context(), arg)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		fmt.Println(bal.StringFixed(2))
		return nil
	}),
}

var journalOrg bool

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.PersistentFlags().BoolVar(&journalOrg, "org", false, "print positions as Org-mode blocks")
	journalCmd.AddCommand(journalPositionsCmd, journalPositionCmd, journalTransactionsCmd, journalEquityCmd, journalBalanceCmd)
}

func withJournal(fn func(cmd *cobra.Command, j *journal.SQLite, arg string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if cfg.Journal.Type != "sqlite" {
			return fmt.Errorf("journal queries need a sqlite journal (--db)")
		}
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer j.Close()
		return fn(cmd, j, args[0])
	}
}

func printPositions(positions []journal.Position) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tINSTRUMENT\tSIDE\tQTY\tENTRY\tEXIT\tSTATUS\tOPENED\tPNL\tCOSTS")
	for _, p := range positions {
		exit := "-"
		if p.Status.Terminal() {
			exit = p.ExitPrice.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Instrument, p.Side, p.Quantity, p.EntryPrice, exit, p.Status,
			p.OpenedAt.Format(time.RFC3339Nano), p.RealizedPnL, p.Costs)
	}
	return w.Flush()
}
