package ticket

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// centEpsilon is the tolerance for monetary comparisons.
	centEpsilon = decimal.NewFromFloat(0.01)

	// subtotalHardThreshold is the discrepancy beyond which a printed
	// subtotal is treated as OCR garbage and replaced by the item sum.
	subtotalHardThreshold = decimal.NewFromFloat(1.00)
)

// quantityEpsilon is the tolerance for quantity comparisons.
const quantityEpsilon = 1e-6

// Reconcile cross-checks parsed items against the printed totals, fills in
// whichever of subtotal/tax/total can be derived from the others, and
// repairs items where only two of quantity, unit price and line total were
// confidently read. It is idempotent: reconciling an already reconciled
// result changes no values.
func Reconcile(in ParseResult) ParseResult {
	out := in
	out.Items = make([]Item, len(in.Items))
	copy(out.Items, in.Items)

	for i := range out.Items {
		out.Items[i] = repairItem(out.Items[i])
	}

	sum := itemSum(out.Items)

	// Check the printed subtotal against the item sum first so every later
	// inference works from a trustworthy subtotal. A small discrepancy only
	// warns (the printed value may itself be OCR-noisy); past the hard
	// threshold the computed sum wins.
	if out.Subtotal != nil && len(out.Items) > 0 {
		diff := sum.Sub(*out.Subtotal).Abs()
		if diff.GreaterThan(subtotalHardThreshold) {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"printed subtotal %s disagrees with item sum %s beyond tolerance; using item sum",
				out.Subtotal.StringFixed(2), sum.StringFixed(2)))
			s := sum
			out.Subtotal = &s
		} else if diff.GreaterThan(centEpsilon) {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"item sum %s differs from printed subtotal %s",
				sum.StringFixed(2), out.Subtotal.StringFixed(2)))
		}
	}

	if out.Subtotal == nil && len(out.Items) > 0 {
		s := sum
		out.Subtotal = &s
	}
	if out.Total == nil {
		if out.Subtotal != nil && out.Tax != nil {
			t := out.Subtotal.Add(*out.Tax)
			out.Total = &t
		} else if len(out.Items) > 0 {
			t := sum
			out.Total = &t
		}
	}
	if out.Total != nil && out.Subtotal != nil && out.Tax == nil &&
		out.Total.GreaterThanOrEqual(*out.Subtotal) {
		tax := out.Total.Sub(*out.Subtotal)
		out.Tax = &tax
	}
	if out.Subtotal == nil && out.Total != nil && out.Tax != nil {
		s := out.Total.Sub(*out.Tax)
		out.Subtotal = &s
	}

	return out
}

// repairItem recomputes the missing or inconsistent leg of the
// line_total = quantity × unit_price invariant from the other two.
func repairItem(it Item) Item {
	if it.Quantity < quantityEpsilon {
		it.Quantity = 1
	}
	qty := decimal.NewFromFloat(it.Quantity)
	switch {
	case it.TotalPrice.IsZero() && !it.Price.IsZero():
		it.TotalPrice = it.Price.Mul(qty).Round(2)
	case it.Price.IsZero() && !it.TotalPrice.IsZero():
		it.Price = it.TotalPrice.Div(qty).Round(2)
	case !it.Price.IsZero() && !it.TotalPrice.IsZero():
		implied := it.Price.Mul(qty)
		if implied.Sub(it.TotalPrice).Abs().GreaterThan(centEpsilon) {
			ratio, _ := it.TotalPrice.Div(it.Price).Round(0).Float64()
			it.Quantity = math.Max(ratio, 1)
		}
	}
	return it
}

func itemSum(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.TotalPrice)
	}
	return sum
}
