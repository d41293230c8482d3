package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/yourorg/rentledger/internal/domain"
)

var summaryCSVHeader = []string{"section", "property", "unit", "tenant", "expected", "received", "pending"}

// LandlordMonthlyCSV renders the landlord's monthly summary as CSV: one row per
// unit, one subtotal row per property, a grand total, then the arrears list.
func (s *ReportService) LandlordMonthlyCSV(ctx context.Context, actor domain.Identity, landlordID string, year, month int, w io.Writer) error {
	summary, err := s.LandlordMonthlySummary(ctx, actor, landlordID, year, month)
	if err != nil {
		return err
	}
	return WriteSummaryCSV(w, summary)
}

// WriteSummaryCSV writes a computed summary. Amounts have two decimals.
func WriteSummaryCSV(w io.Writer, summary *MonthlySummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryCSVHeader); err != nil {
		return err
	}
	for _, p := range summary.Properties {
		for _, u := range p.Units {
			if err := cw.Write([]string{
				"unit", p.Name, u.Number, "",
				u.Expected.StringFixed(2), u.Received.StringFixed(2), u.Pending.StringFixed(2),
			}); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{
			"property", p.Name, "", "",
			p.Expected.StringFixed(2), p.Received.StringFixed(2), p.Pending.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{
		"total", fmt.Sprintf("landlord %s", summary.LandlordID), "", summary.Period.String(),
		summary.ExpectedTotal.StringFixed(2), summary.ReceivedTotal.StringFixed(2), summary.PendingTotal.StringFixed(2),
	}); err != nil {
		return err
	}
	for _, a := range summary.Arrears {
		if err := cw.Write([]string{
			"arrears", a.PropertyID, a.UnitNumber, a.TenantName,
			a.Expected.StringFixed(2), a.Paid.StringFixed(2), a.Balance.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
