// services/billing.go
//
// Pure money math for both ledgers. Nothing in here touches a database, so
// every function is deterministic: same inputs, same outputs.
package services

import (
	"math"
	"strings"

	"pharmabill-backend/models"
)

// Round2 rounds to two decimal places, the resolution every stored amount
// uses.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RecomputeSalesLine rewrites a sales line's derived amounts from its
// quantity, rate and tax percentages. Caller-supplied derived values are
// always discarded.
func RecomputeSalesLine(line *models.SalesLineItem) {
	gross := float64(line.Quantity) * line.Rate
	cgst := gross * line.CgstPercent / 100
	sgst := gross * line.SgstPercent / 100
	line.GrossAmount = Round2(gross)
	line.CgstAmount = Round2(cgst)
	line.SgstAmount = Round2(sgst)
	line.Total = Round2(gross + cgst + sgst)
}

// RecomputeSalesTotals sums the header aggregates from the lines and returns
// the exact bill amount before any round-off is applied.
func RecomputeSalesTotals(inv *models.SalesInvoice) float64 {
	var qty int
	var gross, cgst, sgst float64
	for _, line := range inv.Items {
		qty += line.Quantity
		gross += line.GrossAmount
		cgst += line.CgstAmount
		sgst += line.SgstAmount
	}
	inv.TotalQty = qty
	inv.GrossTotal = Round2(gross)
	inv.TotalCgst = Round2(cgst)
	inv.TotalSgst = Round2(sgst)
	return inv.GrossTotal + inv.TotalCgst + inv.TotalSgst
}

// ApplyDefaultRounding sets the nearest-integer final amount and the
// round-off difference for the given bill amount. Used whenever the operator
// has not supplied an override.
func ApplyDefaultRounding(inv *models.SalesInvoice, bill float64) {
	inv.FinalAmount = math.Round(bill)
	inv.RoundOff = Round2(inv.FinalAmount - bill)
}

// SalesProfit is the derived margin over an invoice's lines:
// sum of (rate - purchase price) x quantity.
func SalesProfit(inv models.SalesInvoice) float64 {
	var profit float64
	for _, line := range inv.Items {
		profit += (line.Rate - line.PurchasePrice) * float64(line.Quantity)
	}
	return Round2(profit)
}

// PurchaseLineRefund computes the refund for returning qty units priced at
// the original invoice's figures: gross less discount, plus both tax
// components on the taxable amount.
func PurchaseLineRefund(qty int, rate, discountPct, cgstPct, sgstPct float64) float64 {
	gross := float64(qty) * rate
	taxable := gross * (1 - discountPct/100)
	cgst := taxable * cgstPct / 100
	sgst := taxable * sgstPct / 100
	return Round2(taxable + cgst + sgst)
}

// LineKey normalizes a (productName, batch) pair into the map key used for
// reconciliation. Case-insensitive; empty and absent batch are the same key.
func LineKey(productName, batch string) string {
	return strings.ToLower(strings.TrimSpace(productName)) + "\x00" + strings.ToLower(strings.TrimSpace(batch))
}

// RemainingQuantities folds the return history into a per-key remaining
// quantity map for the invoice.
func RemainingQuantities(inv models.PurchaseInvoice, returns []models.PurchaseReturn) map[string]int {
	remaining := make(map[string]int, len(inv.Items))
	for _, item := range inv.Items {
		remaining[LineKey(item.ProductName, item.Batch)] += item.Quantity
	}
	for _, ret := range returns {
		for _, item := range ret.Items {
			remaining[LineKey(item.ProductName, item.Batch)] -= item.Quantity
		}
	}
	return remaining
}

// RemainingLine is an invoice line restated at its remaining quantity.
type RemainingLine struct {
	models.PurchaseLineItem
	RemainingQty int     `json:"remainingQty"`
	Taxable      float64 `json:"taxable"`
	CgstAmount   float64 `json:"cgstAmount"`
	SgstAmount   float64 `json:"sgstAmount"`
	LineTotal    float64 `json:"lineTotal"`
}

type RemainingTotals struct {
	SubTotal   float64 `json:"subTotal"`
	TotalCgst  float64 `json:"totalCgst"`
	TotalSgst  float64 `json:"totalSgst"`
	GrandTotal float64 `json:"grandTotal"`
}

// RemainingView is the sole input for any post-return print or report.
type RemainingView struct {
	ActiveLines        []RemainingLine `json:"activeLines"`
	RecalculatedTotals RemainingTotals `json:"recalculatedTotals"`
	TotalRefunded      float64         `json:"totalRefunded"`
}

// MaterializeRemainingView recomputes the invoice as if it had been entered
// with only the remaining quantities. Lines fully returned drop out; totals
// come only from what is left. When several lines share a (productName, batch)
// key, returned quantity drains them in original line order: the first line
// empties before the next is touched. TotalRefunded is informational and
// reported separately. Idempotent: no writes, ordering follows the original
// lines.
func MaterializeRemainingView(inv models.PurchaseInvoice, returns []models.PurchaseReturn) RemainingView {
	returned := make(map[string]int)
	var refunded float64
	for _, ret := range returns {
		refunded += ret.TotalReturnAmount
		for _, item := range ret.Items {
			returned[LineKey(item.ProductName, item.Batch)] += item.Quantity
		}
	}

	view := RemainingView{
		ActiveLines:   []RemainingLine{},
		TotalRefunded: Round2(refunded),
	}
	var subTotal, totalCgst, totalSgst, grandTotal float64
	for _, item := range inv.Items {
		key := LineKey(item.ProductName, item.Batch)
		take := returned[key]
		if take > item.Quantity {
			take = item.Quantity
		}
		returned[key] -= take
		remaining := item.Quantity - take
		if remaining <= 0 {
			continue
		}
		gross := float64(remaining) * item.Rate
		taxable := gross * (1 - item.DiscountPercent/100)
		cgst := taxable * item.CgstPercent / 100
		sgst := taxable * item.SgstPercent / 100

		line := RemainingLine{
			PurchaseLineItem: item,
			RemainingQty:     remaining,
			Taxable:          Round2(taxable),
			CgstAmount:       Round2(cgst),
			SgstAmount:       Round2(sgst),
			LineTotal:        Round2(taxable + cgst + sgst),
		}
		view.ActiveLines = append(view.ActiveLines, line)

		subTotal += taxable
		totalCgst += cgst
		totalSgst += sgst
		grandTotal += taxable + cgst + sgst
	}
	view.RecalculatedTotals = RemainingTotals{
		SubTotal:   Round2(subTotal),
		TotalCgst:  Round2(totalCgst),
		TotalSgst:  Round2(totalSgst),
		GrandTotal: Round2(grandTotal),
	}
	return view
}

// ExpectedPurchaseTotals recomputes what the invoice totals should be from
// its lines. Stored totals stay caller-supplied; this is only used to log a
// mismatch warning at create time.
func ExpectedPurchaseTotals(items []models.PurchaseLineItem) RemainingTotals {
	var subTotal, totalCgst, totalSgst, grandTotal float64
	for _, item := range items {
		gross := float64(item.Quantity) * item.Rate
		taxable := gross * (1 - item.DiscountPercent/100)
		cgst := taxable * item.CgstPercent / 100
		sgst := taxable * item.SgstPercent / 100
		subTotal += taxable
		totalCgst += cgst
		totalSgst += sgst
		grandTotal += taxable + cgst + sgst
	}
	return RemainingTotals{
		SubTotal:   Round2(subTotal),
		TotalCgst:  Round2(totalCgst),
		TotalSgst:  Round2(totalSgst),
		GrandTotal: Round2(grandTotal),
	}
}
