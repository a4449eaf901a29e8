package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatPositionOrg renders a position and its ledger rows as an Org-mode
// block. Structured facts go in the PROPERTIES drawer so they stay
// searchable; txs rows for other positions are skipped.
func FormatPositionOrg(p Position, txs []Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Position: %s %s (%s)\n", p.Instrument, p.Side, shortID(p.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", p.ID)
	fmt.Fprintf(&b, ":SESSION_ID: %s\n", p.SessionID)
	fmt.Fprintf(&b, ":INSTRUMENT: %s\n", p.Instrument)
	fmt.Fprintf(&b, ":SIDE: %s\n", p.Side)
	fmt.Fprintf(&b, ":QUANTITY: %s\n", p.Quantity)
	fmt.Fprintf(&b, ":STATUS: %s\n", p.Status)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %s\n", p.EntryPrice)
	fmt.Fprintf(&b, ":OPENED_AT: %s\n", p.OpenedAt.UTC().Format(time.RFC3339Nano))
	if p.Status.Terminal() {
		fmt.Fprintf(&b, ":EXIT_PRICE: %s\n", p.ExitPrice)
	}
	if p.ClosedAt != nil {
		fmt.Fprintf(&b, ":CLOSED_AT: %s\n", p.ClosedAt.UTC().Format(time.RFC3339Nano))
	}
	fmt.Fprintf(&b, ":REALIZED_PNL: %s\n", p.RealizedPnL.StringFixed(2))
	fmt.Fprintf(&b, ":COSTS: %s\n", p.Costs.StringFixed(2))
	b.WriteString(":END:\n")

	b.WriteString("\n*** Ledger\n")
	n := 0
	for _, t := range txs {
		if t.PositionID != p.ID {
			continue
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", t.Seq, t.CreatedAt.UTC().Format(time.RFC3339Nano), t.Type, t.Amount)
		n++
	}
	if n == 0 {
		b.WriteString("- none\n")
	}
	b.WriteString("\n*** Review\n- \n")

	return b.String()
}

// FormatPositionsOrg renders multiple positions separated by blank lines.
func FormatPositionsOrg(positions []Position, txs []Transaction) string {
	var b strings.Builder
	for i, p := range positions {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatPositionOrg(p, txs))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
