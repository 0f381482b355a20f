package market

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// ParsedItem is one line recognized from a free-text paste.
type ParsedItem struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

var (
	quantityColonRe = regexp.MustCompile(`^(.*?)\s+Quantity:\s*([\d,.']+)\s*$`)
	multibuyRe      = regexp.MustCompile(`^(.*?)\s+x\s*([\d,.']+)\s*$`)
)

// ParsePaste recognizes the three common inventory paste shapes:
// tab-separated "name<TAB>quantity", inventory-style
// "name    Quantity: 1,234", and multi-buy "name x3". A bare name
// counts as quantity 1. Lines for the same item merge.
func ParsePaste(text string) []ParsedItem {
	var order []string
	totals := make(map[string]int64)
	display := make(map[string]string)

	add := func(name string, qty int64) {
		name = strings.TrimSpace(name)
		if name == "" || qty <= 0 {
			return
		}
		key := strings.ToLower(name)
		if _, seen := totals[key]; !seen {
			order = append(order, key)
			display[key] = name
		}
		totals[key] += qty
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.Contains(line, "\t") {
			fields := strings.Split(line, "\t")
			name := fields[0]
			qty := int64(1)
			for _, f := range fields[1:] {
				if n, ok := parseQuantity(f); ok {
					qty = n
					break
				}
			}
			add(name, qty)
			continue
		}
		if m := quantityColonRe.FindStringSubmatch(line); m != nil {
			if n, ok := parseQuantity(m[2]); ok {
				add(m[1], n)
				continue
			}
		}
		if m := multibuyRe.FindStringSubmatch(line); m != nil {
			if n, ok := parseQuantity(m[2]); ok {
				add(m[1], n)
				continue
			}
		}
		add(line, 1)
	}

	out := make([]ParsedItem, 0, len(order))
	for _, key := range order {
		out = append(out, ParsedItem{Name: display[key], Quantity: totals[key]})
	}
	return out
}

// parseQuantity accepts plain integers with optional thousands
// separators (comma, period, apostrophe).
func parseQuantity(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	cleaned := strings.NewReplacer(",", "", ".", "", "'", "").Replace(s)
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ValuationInput is one resolved item to price.
type ValuationInput struct {
	TypeID   int32
	Name     string
	Quantity int64
}

// ValuationLine is the per-item breakdown of a valuation.
type ValuationLine struct {
	Name      string  `json:"name"`
	TypeID    int32   `json:"type_id"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
	Source    string  `json:"source"`
	Freshness string  `json:"freshness"`
	Missing   bool    `json:"missing,omitempty"`
}

// ValuationResult totals a list of items against one side of the book.
type ValuationResult struct {
	Lines      []ValuationLine `json:"items"`
	TotalISK   float64         `json:"total_isk"`
	Side       string          `json:"side"`
	Confidence string          `json:"confidence"` // high | medium | low
	Warnings   []string        `json:"warnings,omitempty"`
}

// Valuate prices each item for the given side: "sell" values against
// the lowest sell order (cost to buy), "buy" against the highest buy
// order (instant-sell value). An empty input is a zero total, not an
// error.
func (c *Cache) Valuate(ctx context.Context, regionID int32, side string, items []ValuationInput) (ValuationResult, error) {
	res := ValuationResult{Side: side, Confidence: "high"}
	if len(items) == 0 {
		return res, nil
	}

	ids := make([]int32, len(items))
	for i, it := range items {
		ids[i] = it.TypeID
	}
	prices, err := c.Prices(ctx, regionID, ids)
	if err != nil {
		return ValuationResult{}, err
	}
	byID := make(map[int32]Price, len(prices))
	for _, p := range prices {
		byID[p.TypeID] = p
	}

	anyRecent, anyStale := false, false
	for _, it := range items {
		p := byID[it.TypeID]
		line := ValuationLine{
			Name:      it.Name,
			TypeID:    it.TypeID,
			Quantity:  it.Quantity,
			Source:    p.Source,
			Freshness: p.Freshness,
		}
		switch {
		case side == "buy" && p.Buy != nil:
			line.UnitPrice = p.Buy.Max
		case side == "sell" && p.Sell != nil:
			line.UnitPrice = p.Sell.Min
		default:
			line.Missing = true
			anyStale = true
			res.Warnings = append(res.Warnings, "no price for "+it.Name)
		}
		line.Subtotal = line.UnitPrice * float64(it.Quantity)
		res.TotalISK += line.Subtotal
		res.Lines = append(res.Lines, line)

		switch p.Freshness {
		case "recent":
			anyRecent = true
		case "stale":
			if !line.Missing {
				anyStale = true
			}
		}
	}

	switch {
	case anyStale:
		res.Confidence = "low"
	case anyRecent:
		res.Confidence = "medium"
	}
	return res, nil
}
