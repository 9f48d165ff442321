package ticket

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Claim is one participant's assertion of consuming some quantity of an
// item. Quantity <= 0 means a whole-item claim (the frontend's plain
// item-id form).
type Claim struct {
	ItemID   int     `json:"item_id"`
	Quantity float64 `json:"quantity"`
}

// UnmarshalJSON accepts either a bare item id or an {item_id, quantity}
// object, normalizing both into the canonical claim shape so the calculator
// never sees the wire variant.
func (c *Claim) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			ItemID   int     `json:"item_id"`
			Quantity float64 `json:"quantity"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		c.ItemID = obj.ItemID
		c.Quantity = obj.Quantity
		return nil
	}
	var id int
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("claim must be an item id or an {item_id, quantity} object")
	}
	c.ItemID = id
	c.Quantity = 0
	return nil
}

// Assignments maps participant names to their claims, preserving the order
// in which participants appeared in the request body. That order is the tie
// break when assigning the rounding remainder, so it has to be stable;
// a plain map would lose it.
type Assignments struct {
	order  []string
	claims map[string][]Claim
}

// NewAssignments builds an Assignments value in the given participant order,
// mainly for tests and direct callers.
func NewAssignments(participants []string, claims map[string][]Claim) Assignments {
	a := Assignments{claims: make(map[string][]Claim)}
	for _, p := range participants {
		a.order = append(a.order, p)
		a.claims[p] = claims[p]
	}
	return a
}

// Participants returns the participant names in request order.
func (a Assignments) Participants() []string {
	return a.order
}

// Claims returns the claims for one participant.
func (a Assignments) Claims(participant string) []Claim {
	return a.claims[participant]
}

// Len returns the participant count.
func (a Assignments) Len() int {
	return len(a.order)
}

func (a *Assignments) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("assignments must be an object of participant to claims")
	}
	a.order = nil
	a.claims = make(map[string][]Claim)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name := keyTok.(string)
		var claims []Claim
		if err := dec.Decode(&claims); err != nil {
			return fmt.Errorf("claims for %q: %w", name, err)
		}
		if _, dup := a.claims[name]; !dup {
			a.order = append(a.order, name)
		}
		a.claims[name] = claims
	}
	_, err = dec.Token()
	return err
}

func (a Assignments) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range a.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		claims := a.claims[p]
		if claims == nil {
			claims = []Claim{}
		}
		val, err := json.Marshal(claims)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ShareItem is a participant's view of one item at calculation time: the
// quantity and cost attributed to them. It is a snapshot copy, never a
// reference into the receipt.
type ShareItem struct {
	ItemID   int             `json:"item_id"`
	Name     string          `json:"name"`
	Quantity float64         `json:"quantity"`
	Cost     decimal.Decimal `json:"cost"`
}

// Share is one participant's computed portion of the bill. Items holds
// directly claimed portions; SharedItems holds portions received through
// equitable or proportional distribution.
type Share struct {
	Participant string          `json:"participant"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	Items       []ShareItem     `json:"items"`
	SharedItems []ShareItem     `json:"shared_items"`
}

// SplitResult is the settlement for one receipt and one assignment snapshot.
type SplitResult struct {
	TotalCalculated decimal.Decimal `json:"total_calculated"`
	Shares          []Share         `json:"shares"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// Split computes each participant's amount due for the given items and
// printed total. Unclaimed items are distributed equally across all
// participants; the unclaimed remainder of a partially claimed item is
// distributed equally among its claimants; over-claims are scaled down
// proportionally. All computation paths are total: unknown item ids degrade
// to a warning, never an error.
func Split(items []Item, total *decimal.Decimal, assignments Assignments) SplitResult {
	result := SplitResult{Shares: []Share{}}
	participants := assignments.Participants()
	n := len(participants)

	byID := make(map[int]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	shares := make(map[string]*Share, n)
	amounts := make(map[string]float64, n)
	for _, p := range participants {
		shares[p] = &Share{Participant: p, Items: []ShareItem{}, SharedItems: []ShareItem{}}
	}

	// Per item: total claimed quantity in participant order, dropping claims
	// that reference items not on the receipt.
	type claimant struct {
		participant string
		quantity    float64
	}
	claimed := make(map[int][]claimant)
	for _, p := range participants {
		for _, c := range assignments.Claims(p) {
			it, ok := byID[c.ItemID]
			if !ok {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"unknown item id %d claimed by %q ignored", c.ItemID, p))
				continue
			}
			qty := c.Quantity
			if qty <= 0 {
				qty = it.Quantity // whole-item claim
			}
			claimed[it.ID] = append(claimed[it.ID], claimant{p, qty})
		}
	}

	for _, it := range items {
		lineTotal, _ := it.TotalPrice.Float64()
		unit := lineTotal
		if it.Quantity > quantityEpsilon {
			unit = lineTotal / it.Quantity
		}
		claimants := claimed[it.ID]

		if len(claimants) == 0 {
			if n == 0 {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"no participants to share item %d (%s); its cost is unattributed", it.ID, it.Name))
				continue
			}
			// Unassigned: equal split across everyone in the request.
			for _, p := range participants {
				cost := lineTotal / float64(n)
				amounts[p] += cost
				shares[p].SharedItems = append(shares[p].SharedItems, shareItem(it, it.Quantity/float64(n), cost))
			}
			continue
		}

		var claimedTotal float64
		for _, c := range claimants {
			claimedTotal += c.quantity
		}
		scale := 1.0
		if claimedTotal > it.Quantity+quantityEpsilon {
			// Over-claim: shrink every claim proportionally, preserving the
			// ratios between claimants.
			scale = it.Quantity / claimedTotal
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"claims for item %d (%s) total %.4g of %.4g available; scaled down proportionally",
				it.ID, it.Name, claimedTotal, it.Quantity))
		}
		for _, c := range claimants {
			qty := c.quantity * scale
			cost := qty * unit
			amounts[c.participant] += cost
			shares[c.participant].Items = append(shares[c.participant].Items, shareItem(it, qty, cost))
		}
		if remainder := it.Quantity - claimedTotal*scale; remainder > quantityEpsilon {
			// Leftover of a partially claimed item goes equally to the
			// interested parties, not to everyone.
			perQty := remainder / float64(len(claimants))
			for _, c := range claimants {
				cost := perQty * unit
				amounts[c.participant] += cost
				shares[c.participant].SharedItems = append(shares[c.participant].SharedItems, shareItem(it, perQty, cost))
			}
		}
	}

	sum := itemSum(items)
	target := sum
	if total != nil && total.GreaterThan(sum) {
		// Printed total above the item sum: non-itemized costs such as a
		// service charge, distributed equally.
		excess := total.Sub(sum)
		target = *total
		if n > 0 {
			perExcess, _ := excess.Float64()
			for _, p := range participants {
				amounts[p] += perExcess / float64(n)
			}
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"no participants to share non-itemized cost %s", excess.StringFixed(2)))
		}
	}

	if n == 0 {
		if len(items) > 0 {
			result.Warnings = append(result.Warnings, "no participants in split request; nothing attributed")
		}
		result.TotalCalculated = decimal.Zero.Round(2)
		return result
	}

	// Round to cents only here, then pin any penny drift on the largest
	// share (first in request order on ties) so the shares sum exactly to
	// the receipt total.
	rounded := make(map[string]decimal.Decimal, n)
	roundedSum := decimal.Zero
	for _, p := range participants {
		r := decimal.NewFromFloat(amounts[p]).Round(2)
		rounded[p] = r
		roundedSum = roundedSum.Add(r)
	}
	drift := target.Round(2).Sub(roundedSum)
	if !drift.IsZero() {
		largest := participants[0]
		for _, p := range participants[1:] {
			if rounded[p].GreaterThan(rounded[largest]) {
				largest = p
			}
		}
		rounded[largest] = rounded[largest].Add(drift)
	}

	totalCalculated := decimal.Zero
	for _, p := range participants {
		sh := shares[p]
		sh.AmountDue = rounded[p]
		totalCalculated = totalCalculated.Add(sh.AmountDue)
		result.Shares = append(result.Shares, *sh)
	}
	result.TotalCalculated = totalCalculated
	return result
}

func shareItem(it Item, qty, cost float64) ShareItem {
	return ShareItem{
		ItemID:   it.ID,
		Name:     it.Name,
		Quantity: qty,
		Cost:     decimal.NewFromFloat(cost).Round(2),
	}
}
