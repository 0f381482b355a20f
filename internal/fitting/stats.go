package fitting

import (
	"encoding/json"
	"fmt"
	"os"
)

// TypeAttributes is the static attribute record for one item type.
// Resonances are damage-taken multipliers in (0,1]; zero means the
// attribute is absent for this type.
type TypeAttributes struct {
	// Hull attributes.
	ShieldHP          float64    `json:"shield_hp,omitempty"`
	ArmorHP           float64    `json:"armor_hp,omitempty"`
	HullHP            float64    `json:"hull_hp,omitempty"`
	ShieldResonance   [4]float64 `json:"shield_resonance"` // em, thermal, kinetic, explosive
	ArmorResonance    [4]float64 `json:"armor_resonance"`
	HullResonance     [4]float64 `json:"hull_resonance"`
	CapacitorCapacity float64    `json:"capacitor_capacity,omitempty"` // GJ
	CapacitorRecharge float64    `json:"capacitor_recharge,omitempty"` // seconds
	CPUOutput         float64    `json:"cpu_output,omitempty"`
	PowerOutput       float64    `json:"power_output,omitempty"`

	// Module and drone attributes.
	CPUUsage     float64 `json:"cpu_usage,omitempty"`
	PowerUsage   float64 `json:"power_usage,omitempty"`
	VolleyDamage float64 `json:"volley_damage,omitempty"`
	RateOfFire   float64 `json:"rate_of_fire,omitempty"` // seconds per cycle
}

// Stats is the derived view of a fit.
type Stats struct {
	Ship    string `json:"ship"`
	FitName string `json:"fit_name"`

	DPS          float64 `json:"dps"`
	VolleyDamage float64 `json:"volley_damage"`

	EHP       float64 `json:"ehp"`
	ShieldEHP float64 `json:"shield_ehp"`
	ArmorEHP  float64 `json:"armor_ehp"`
	HullEHP   float64 `json:"hull_ehp"`

	CapacitorCapacity float64 `json:"capacitor_capacity"`
	CapacitorRecharge float64 `json:"capacitor_recharge_seconds"`
	CapacitorPeakRate float64 `json:"capacitor_peak_rate"` // GJ/s

	CPUUsed     float64 `json:"cpu_used"`
	CPUOutput   float64 `json:"cpu_output"`
	PowerUsed   float64 `json:"power_used"`
	PowerOutput float64 `json:"power_output"`
	OverCPU     bool    `json:"over_cpu,omitempty"`
	OverPower   bool    `json:"over_power,omitempty"`

	ModuleCount int      `json:"module_count"`
	DroneCount  int      `json:"drone_count"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Engine computes derived stats from a static attribute table.
type Engine struct {
	attrs map[int32]TypeAttributes
}

// NewEngine wraps an attribute table. A nil map is a valid empty table;
// every computation then degrades to warnings.
func NewEngine(attrs map[int32]TypeAttributes) *Engine {
	if attrs == nil {
		attrs = make(map[int32]TypeAttributes)
	}
	return &Engine{attrs: attrs}
}

// LoadAttributes reads a JSON attribute table keyed by type id.
func LoadAttributes(path string) (map[int32]TypeAttributes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attribute table: %w", err)
	}
	var out map[int32]TypeAttributes
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse attribute table %s: %w", path, err)
	}
	return out, nil
}

// avgResonance is the mean damage-taken multiplier over the four
// damage types, assuming a uniform incoming damage split. A zero
// resonance vector means no resists recorded and counts as 1.
func avgResonance(r [4]float64) float64 {
	sum, n := 0.0, 0
	for _, v := range r {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// Stats derives the fit's statistics. Offline modules consume no CPU
// or power and contribute nothing. Items without attribute data are
// reported in Warnings and otherwise ignored.
func (e *Engine) Stats(fit *Fit) Stats {
	out := Stats{
		Ship:        fit.ShipName,
		FitName:     fit.FitName,
		ModuleCount: len(fit.Modules),
		Warnings:    append([]string(nil), fit.Warnings...),
	}

	ship, ok := e.attrs[fit.ShipTypeID]
	if !ok {
		out.Warnings = append(out.Warnings, "no attribute data for hull "+fit.ShipName)
	} else {
		out.ShieldEHP = ship.ShieldHP / avgResonance(ship.ShieldResonance)
		out.ArmorEHP = ship.ArmorHP / avgResonance(ship.ArmorResonance)
		out.HullEHP = ship.HullHP / avgResonance(ship.HullResonance)
		out.EHP = out.ShieldEHP + out.ArmorEHP + out.HullEHP
		out.CapacitorCapacity = ship.CapacitorCapacity
		out.CapacitorRecharge = ship.CapacitorRecharge
		if ship.CapacitorRecharge > 0 {
			// Peak recharge sits near 2.5x the average rate.
			out.CapacitorPeakRate = 2.5 * ship.CapacitorCapacity / ship.CapacitorRecharge
		}
		out.CPUOutput = ship.CPUOutput
		out.PowerOutput = ship.PowerOutput
	}

	for _, mod := range fit.Modules {
		if mod.Offline {
			continue
		}
		a, ok := e.attrs[mod.TypeID]
		if !ok {
			out.Warnings = append(out.Warnings, "no attribute data for "+mod.Name)
			continue
		}
		out.CPUUsed += a.CPUUsage
		out.PowerUsed += a.PowerUsage
		if a.VolleyDamage > 0 && a.RateOfFire > 0 {
			out.VolleyDamage += a.VolleyDamage
			out.DPS += a.VolleyDamage / a.RateOfFire
		}
	}

	for _, item := range fit.Items {
		a, ok := e.attrs[item.TypeID]
		if !ok {
			continue // cargo without combat attributes is expected
		}
		if a.VolleyDamage > 0 && a.RateOfFire > 0 {
			out.DroneCount += item.Quantity
			out.VolleyDamage += float64(item.Quantity) * a.VolleyDamage
			out.DPS += float64(item.Quantity) * a.VolleyDamage / a.RateOfFire
		}
	}

	out.OverCPU = out.CPUOutput > 0 && out.CPUUsed > out.CPUOutput
	out.OverPower = out.PowerOutput > 0 && out.PowerUsed > out.PowerOutput
	if out.OverCPU {
		out.Warnings = append(out.Warnings, "fit exceeds CPU output")
	}
	if out.OverPower {
		out.Warnings = append(out.Warnings, "fit exceeds power output")
	}
	return out
}
