package publisher

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"FountainProtocol/internal/model"
)

// FormatDailyReport formats a snapshot as a Telegram HTML message.
func FormatDailyReport(snap *model.DailySnapshot) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("⛲ <b>Fountain daily snapshot</b> | %s\n\n", snap.Date))
	b.WriteString(fmt.Sprintf("Active holders: %s (prev %s)\n",
		humanize.Comma(snap.ActiveHolders), humanize.Comma(snap.PreviousActiveHolders)))
	b.WriteString(fmt.Sprintf("New donors: %s\n\n", humanize.Comma(snap.NewDonors)))

	b.WriteString("📈 <b>Growth</b>\n")
	b.WriteString(fmt.Sprintf("  Growth rate: %s%%\n", snap.GrowthRate.Shift(2).StringFixed(2)))
	b.WriteString(fmt.Sprintf("  Cumulative score: %s → %s\n",
		snap.PreviousCumulativeScore.String(), snap.CumulativeScore.String()))
	b.WriteString(fmt.Sprintf("  Multiplier: ×%s\n", snap.GrowthMultiplier.String()))
	b.WriteString(fmt.Sprintf("  Donor booster: +%d\n\n", snap.DonorBooster))

	b.WriteString(fmt.Sprintf("💧 <b>Entitlement:</b> %s per holder\n", humanize.Comma(snap.FinalEntitlement)))
	b.WriteString(fmt.Sprintf("   Total allocated: %s\n", humanize.Comma(snap.TotalAllocated)))
	return b.String()
}

// FormatState formats the carried-forward state.
func FormatState(st *model.OracleState) string {
	if st == nil {
		return "📦 <b>Oracle state</b>\n\nNo day computed yet."
	}
	var b strings.Builder
	b.WriteString("📦 <b>Oracle state</b>\n\n")
	b.WriteString(fmt.Sprintf("Last computed day: %s\n", st.Date))
	b.WriteString(fmt.Sprintf("Cumulative score: %s\n", st.CumulativeScore.String()))
	b.WriteString(fmt.Sprintf("Active holders: %s\n", humanize.Comma(st.ActiveHolders)))
	b.WriteString(fmt.Sprintf("Updated: %s\n", st.UpdatedAt.Format("2006-01-02 15:04")))
	return b.String()
}

// FormatHistory formats recent snapshots, newest first, as a Telegram message.
func FormatHistory(snaps []*model.DailySnapshot) string {
	if len(snaps) == 0 {
		return "📅 <b>History</b>\n\nNo snapshots yet."
	}
	var b strings.Builder
	b.WriteString("📅 <b>History</b>\n\n")
	for _, s := range snaps {
		b.WriteString(fmt.Sprintf("%s  holders %s  Et %d  ×%s  total %s\n",
			s.Date, humanize.Comma(s.ActiveHolders), s.FinalEntitlement,
			s.GrowthMultiplier.String(), humanize.Comma(s.TotalAllocated)))
	}
	return b.String()
}

// FormatHistoryTable renders snapshots as a console table.
func FormatHistoryTable(snaps []*model.DailySnapshot) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Date", "Holders", "Donors", "Growth", "Score", "Mult", "Boost", "Et", "Total"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, s := range snaps {
		table.Append([]string{
			s.Date,
			humanize.Comma(s.ActiveHolders),
			humanize.Comma(s.NewDonors),
			s.GrowthRate.Shift(2).StringFixed(2) + "%",
			s.CumulativeScore.String(),
			s.GrowthMultiplier.String(),
			fmt.Sprintf("%d", s.DonorBooster),
			humanize.Comma(s.FinalEntitlement),
			humanize.Comma(s.TotalAllocated),
		})
	}
	table.Render()
	return b.String()
}
