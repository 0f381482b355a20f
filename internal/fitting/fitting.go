// Package fitting parses the game's canonical plain-text fit format
// and computes derived statistics from static attribute data.
package fitting

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"eve-tactician/internal/errs"
)

// Slot sections appear in the text in a fixed order, separated by
// blank lines. Trailing sections hold drones and cargo.
const (
	SectionLow = iota
	SectionMid
	SectionHigh
	SectionRig
	SectionOther
)

var sectionNames = []string{"low", "mid", "high", "rig", "other"}

// SectionName returns the label for a slot section index.
func SectionName(section int) string {
	if section < 0 || section >= len(sectionNames) {
		return "other"
	}
	return sectionNames[section]
}

// Module is one fitted module line.
type Module struct {
	Name     string `json:"name"`
	TypeID   int32  `json:"type_id"`
	Charge   string `json:"charge,omitempty"`
	ChargeID int32  `json:"charge_id,omitempty"`
	Offline  bool   `json:"offline,omitempty"`
	Section  int    `json:"-"`
	Slot     string `json:"slot"`
}

// Item is a quantity line (drones, cargo).
type Item struct {
	Name     string `json:"name"`
	TypeID   int32  `json:"type_id"`
	Quantity int    `json:"quantity"`
}

// Fit is a parsed fitting.
type Fit struct {
	ShipName   string   `json:"ship"`
	ShipTypeID int32    `json:"ship_type_id"`
	FitName    string   `json:"fit_name"`
	Modules    []Module `json:"modules"`
	Items      []Item   `json:"items,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Resolver maps an item name to its type id, case-insensitively.
// A false return means the name is unknown.
type Resolver func(ctx context.Context, name string) (int32, bool)

var (
	headerRe    = regexp.MustCompile(`^\[(.+?),\s*(.+)\]$`)
	emptySlotRe = regexp.MustCompile(`^\[[Ee]mpty .*\]$`)
	quantityRe  = regexp.MustCompile(`^(.+?)\s+x(\d+)$`)
)

// Parse reads a fit in the canonical text format: a `[Ship, Name]`
// header, blank-line separated slot sections, module lines with an
// optional ",charge" suffix or "/offline" marker, and "Item xN"
// quantity lines. Unknown items are skipped with a warning; an unknown
// ship type fails the parse.
func Parse(ctx context.Context, text string, resolve Resolver) (*Fit, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	// Header is the first non-empty line.
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return nil, errs.InvalidParameter("fit", "empty fit text")
	}
	m := headerRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
	if m == nil {
		return nil, errs.InvalidParameter("fit", "first line must be [ShipType, FitName]")
	}
	shipName := strings.TrimSpace(m[1])
	shipID, ok := resolve(ctx, shipName)
	if !ok {
		return nil, errs.TypeNotFound(shipName, nil)
	}

	fit := &Fit{ShipName: shipName, ShipTypeID: shipID, FitName: strings.TrimSpace(m[2])}
	section := SectionLow
	inSection := false

	for i++; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			if inSection && section < SectionOther {
				section++
			}
			inSection = false
			continue
		}
		inSection = true
		if emptySlotRe.MatchString(line) {
			continue
		}

		if m := quantityRe.FindStringSubmatch(line); m != nil {
			qty, err := strconv.Atoi(m[2])
			if err == nil && qty > 0 {
				name := strings.TrimSpace(m[1])
				id, ok := resolve(ctx, name)
				if !ok {
					fit.Warnings = append(fit.Warnings, "unknown item skipped: "+name)
					continue
				}
				fit.Items = append(fit.Items, Item{Name: name, TypeID: id, Quantity: qty})
				continue
			}
		}

		mod := Module{Section: section, Slot: SectionName(section)}
		rest := line
		if strings.HasSuffix(rest, "/offline") {
			mod.Offline = true
			rest = strings.TrimSpace(strings.TrimSuffix(rest, "/offline"))
		}
		if idx := strings.Index(rest, ","); idx >= 0 {
			mod.Charge = strings.TrimSpace(rest[idx+1:])
			rest = strings.TrimSpace(rest[:idx])
		}
		mod.Name = rest

		id, ok := resolve(ctx, mod.Name)
		if !ok {
			fit.Warnings = append(fit.Warnings, "unknown item skipped: "+mod.Name)
			continue
		}
		mod.TypeID = id
		if mod.Charge != "" {
			if cid, ok := resolve(ctx, mod.Charge); ok {
				mod.ChargeID = cid
			} else {
				fit.Warnings = append(fit.Warnings, "unknown charge skipped: "+mod.Charge)
				mod.Charge = ""
			}
		}
		fit.Modules = append(fit.Modules, mod)
	}
	return fit, nil
}
