package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatPositionOrg renders a position as an org-mode entry with the facts
// in a PROPERTIES drawer and empty review sections to fill in by hand.
func FormatPositionOrg(p PositionRecord) string {
	heading := fmt.Sprintf("** Position: %s %s (%s)", p.Symbol, p.Side, shortID(p.PositionID))
	open := p.OpenTime.UTC().Format(time.RFC3339)
	closed := p.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":ID: %s\n", p.PositionID))
	if p.RunID != "" {
		b.WriteString(fmt.Sprintf(":RUN_ID: %s\n", p.RunID))
	}
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", p.Symbol))
	b.WriteString(fmt.Sprintf(":SIDE: %s\n", p.Side))
	b.WriteString(fmt.Sprintf(":LEVERAGE: %d\n", p.Leverage))
	b.WriteString(fmt.Sprintf(":QUANTITY: %g\n", p.Quantity))
	b.WriteString(fmt.Sprintf(":ADJUSTMENTS: %d\n", p.Adjustments))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %.2f\n", p.EntryPrice))
	b.WriteString(fmt.Sprintf(":EXIT_PRICE: %.2f\n", p.ExitPrice))
	b.WriteString(fmt.Sprintf(":OPEN_TIME: %s\n", open))
	b.WriteString(fmt.Sprintf(":CLOSE_TIME: %s\n", closed))
	b.WriteString(fmt.Sprintf(":PROFIT: %.2f\n", p.Profit))
	b.WriteString(fmt.Sprintf(":FEES: %.2f\n", p.Fees))
	b.WriteString(fmt.Sprintf(":NET_PROFIT: %.2f\n", p.NetProfit))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", p.Reason))
	if p.Ambiguous {
		b.WriteString(":AMBIGUOUS: t\n")
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatPositionsOrg renders multiple positions separated by blank lines.
func FormatPositionsOrg(positions []PositionRecord) string {
	var b strings.Builder
	for i, p := range positions {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatPositionOrg(p))
	}
	return b.String()
}

// shortID keeps the first 8 characters of an ID for headings.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
