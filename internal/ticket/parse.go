package ticket

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ParseResult carries the items and printed totals extracted from the raw
// OCR text of one receipt. Absent totals stay nil rather than zero so that
// downstream reconciliation can tell "not printed" from "printed as 0.00".
type ParseResult struct {
	Items    []Item
	Subtotal *decimal.Decimal
	Tax      *decimal.Decimal
	Tip      *decimal.Decimal
	Total    *decimal.Decimal
	Warnings []string
}

// Amount tokens tolerate the usual OCR digit confusions; they are mapped
// back to digits before numeric conversion.
const amountToken = `[0-9OolIS]+(?:[.,][0-9OolIS]{1,2})`

var (
	trailingAmountRe = regexp.MustCompile(`(?:^|\s)(` + amountToken + `)\s*(?:€|EUR|\$|USD)?\s*$`)
	qtyTimesPriceRe  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*x\s*(` + amountToken + `)\s*(?:€|EUR|\$)?`)
	leadingQtyRe     = regexp.MustCompile(`(?i)^(\d+(?:[.,]\d+)?)\s*(?:uds?\.?|und|unidades|unidad|u\.|kg|gr?|l|ml)?\s+(.+)$`)
	dotLeaderRe      = regexp.MustCompile(`\.{2,}`)

	// Label tokens for printed totals, matched at the start of an
	// accent-folded upper-cased line.
	labelRe = regexp.MustCompile(`^(SUB TOTAL|SUBTOTAL|SUMA|GRAND TOTAL|TOTAL|IMPORTE|IVA|IMPUESTOS|IMPUESTO|TAX|VAT|PROPINA|TIP|SERVICIO|SERVICE)\b`)

	// Lines that are receipt furniture rather than items: separators,
	// barcodes, dates, times, contact/fiscal info, payment lines, footers.
	noiseRes = []*regexp.Regexp{
		regexp.MustCompile(`^[-=*_.\s]+$`),
		regexp.MustCompile(`^\d{8,}$`),
		regexp.MustCompile(`^\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}`),
		regexp.MustCompile(`^\d{1,2}:\d{2}`),
		regexp.MustCompile(`\b(TEL|TLF|PHONE|FAX|NIF|CIF)\b`),
		regexp.MustCompile(`\b(GRACIAS|THANK|VISITA|WELCOME|BIENVENIDO)\b`),
		regexp.MustCompile(`\b(VISA|MASTERCARD|TARJETA|EFECTIVO|CASH|CAMBIO|CHANGE|ENTREGADO)\b`),
		regexp.MustCompile(`WWW\.|HTTP`),
	}
)

// Parse turns raw OCR text into an ordered item list plus any printed
// subtotal, tax, tip and total. Item ids are assigned in encounter order
// starting at 1. Lines whose amounts cannot be read even after OCR digit
// normalization produce a warning instead of a zero-valued item.
func Parse(rawText string) ParseResult {
	var result ParseResult
	result.Items = []Item{}
	nextID := 1

	for _, line := range strings.Split(rawText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		folded := fold(line)
		if isNoise(folded) {
			continue
		}

		if m := labelRe.FindStringSubmatch(folded); m != nil {
			amount, ok := trailingAmount(line)
			if ok {
				// Receipts sometimes repeat headers; the last printed
				// value per label wins.
				switch labelField(m[1]) {
				case "subtotal":
					result.Subtotal = &amount
				case "tax":
					result.Tax = &amount
				case "tip":
					result.Tip = &amount
				case "total":
					result.Total = &amount
				}
			}
			continue
		}

		item, warning, ok := parseItemLine(line)
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		if !ok {
			continue
		}
		item.ID = nextID
		nextID++
		result.Items = append(result.Items, item)
	}

	return result
}

// parseItemLine extracts one candidate item from a receipt line. The
// trailing amount is the line total (or the unit price when a quantity
// prefix makes the line a per-unit price). Lines with a price but no
// readable name are dropped, not fabricated.
func parseItemLine(line string) (Item, string, bool) {
	loc := trailingAmountRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return Item{}, "", false
	}
	amount, ok := parseAmount(line[loc[2]:loc[3]])
	if !ok {
		return Item{}, fmt.Sprintf("unreadable amount on line %q", line), false
	}
	rest := strings.TrimSpace(line[:loc[0]])
	rest = strings.TrimSpace(dotLeaderRe.ReplaceAllString(rest, " "))

	var item Item
	if qm := qtyTimesPriceRe.FindStringSubmatchIndex(rest); qm != nil {
		// "NAME ... 2 x 1.50 ... 3.00": unit price inside, total trailing.
		qty := parseQuantity(rest[qm[2]:qm[3]])
		unit, unitOK := parseAmount(rest[qm[4]:qm[5]])
		if !unitOK {
			return Item{}, fmt.Sprintf("unreadable unit price on line %q", line), false
		}
		name := cleanName(rest[:qm[0]])
		if name == "" {
			return Item{}, "", false
		}
		if unit.IsPositive() {
			implied := unit.Mul(decimal.NewFromFloat(qty))
			if implied.Sub(amount).Abs().GreaterThan(centEpsilon) {
				// Quantity inconsistent with the printed prices: trust the
				// money and infer the count.
				ratio, _ := amount.Div(unit).Round(0).Float64()
				qty = math.Max(ratio, 1)
			}
		}
		item = Item{Name: name, Quantity: qty, Price: unit, TotalPrice: amount}
	} else if lm := leadingQtyRe.FindStringSubmatch(rest); lm != nil && hasLetter(lm[2]) {
		// "2 KG NAME ... 3.50": trailing amount is the unit price.
		qty := parseQuantity(lm[1])
		name := cleanName(lm[2])
		if name == "" {
			return Item{}, "", false
		}
		item = Item{
			Name:       name,
			Quantity:   qty,
			Price:      amount,
			TotalPrice: amount.Mul(decimal.NewFromFloat(qty)).Round(2),
		}
	} else {
		name := cleanName(rest)
		if name == "" {
			return Item{}, "", false
		}
		item = Item{Name: name, Quantity: 1, Price: amount, TotalPrice: amount}
	}
	return item, "", true
}

func labelField(keyword string) string {
	switch keyword {
	case "SUB TOTAL", "SUBTOTAL", "SUMA":
		return "subtotal"
	case "IVA", "IMPUESTO", "IMPUESTOS", "TAX", "VAT":
		return "tax"
	case "PROPINA", "TIP", "SERVICIO", "SERVICE":
		return "tip"
	default:
		return "total"
	}
}

func isNoise(folded string) bool {
	for _, re := range noiseRes {
		if re.MatchString(folded) {
			return true
		}
	}
	return false
}

// trailingAmount extracts the rightmost currency-like token of a line.
func trailingAmount(line string) (decimal.Decimal, bool) {
	m := trailingAmountRe.FindStringSubmatch(line)
	if m == nil {
		return decimal.Decimal{}, false
	}
	return parseAmount(m[1])
}

var ocrDigits = strings.NewReplacer("O", "0", "o", "0", "l", "1", "I", "1", "S", "5", "s", "5")

// parseAmount converts a currency-like token to a decimal, normalizing OCR
// digit confusions and comma/period decimal separators first. Failure means
// the amount is absent, never zero.
func parseAmount(token string) (decimal.Decimal, bool) {
	t := ocrDigits.Replace(strings.TrimSpace(token))
	if strings.Contains(t, ",") && strings.Contains(t, ".") {
		// Thousands plus decimal separator: the rightmost one is decimal.
		if strings.LastIndex(t, ",") > strings.LastIndex(t, ".") {
			t = strings.ReplaceAll(t, ".", "")
			t = strings.ReplaceAll(t, ",", ".")
		} else {
			t = strings.ReplaceAll(t, ",", "")
		}
	} else {
		t = strings.ReplaceAll(t, ",", ".")
	}
	d, err := decimal.NewFromString(t)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}

func parseQuantity(token string) float64 {
	t := strings.ReplaceAll(strings.TrimSpace(token), ",", ".")
	q, err := strconv.ParseFloat(t, 64)
	if err != nil || q <= 0 {
		return 1
	}
	return q
}

func cleanName(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "-:.,*")
	s = strings.Join(strings.Fields(s), " ")
	if !hasLetter(s) {
		return ""
	}
	return s
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// fold upper-cases a line and strips diacritics so label matching is both
// case- and accent-insensitive ("Subtotál" matches SUBTOTAL).
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(out)
}
