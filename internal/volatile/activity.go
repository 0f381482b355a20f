package volatile

import (
	"context"
	"sort"
	"time"

	"eve-tactician/internal/esi"
)

// ActivityRecord is the merged hourly activity view of one system.
// A system absent from the upstream maps is semantically all-zero.
type ActivityRecord struct {
	SystemID  int32  `json:"system_id"`
	ShipKills int    `json:"ship_kills"`
	PodKills  int    `json:"pod_kills"`
	NPCKills  int    `json:"npc_kills"`
	ShipJumps int    `json:"ship_jumps"`
	Level     string `json:"activity_level"`
}

// Activity-level thresholds on player kills (ship + pod) per hour.
const (
	levelLowMax    = 2
	levelMediumMax = 10
	levelHighMax   = 30
	quietJumpsMax  = 10
)

// Level classifies hourly activity into none/low/medium/high/extreme.
func Level(shipKills, podKills, shipJumps int) string {
	playerKills := shipKills + podKills
	switch {
	case playerKills == 0 && shipJumps <= quietJumpsMax:
		return "none"
	case playerKills <= levelLowMax:
		return "low"
	case playerKills <= levelMediumMax:
		return "medium"
	case playerKills <= levelHighMax:
		return "high"
	default:
		return "extreme"
	}
}

// Meta carries the cache provenance of a combined read. Age is the
// older of the two contributing layers.
type Meta struct {
	Age      time.Duration
	Stale    bool
	Warnings []string
}

// Activity merges the kills and jumps layers for the requested systems.
func (c *Cache) Activity(ctx context.Context, systemIDs []int32) ([]ActivityRecord, Meta, error) {
	kills, err := c.kills.get(ctx)
	if err != nil {
		return nil, Meta{}, err
	}
	jumps, err := c.jumps.get(ctx)
	if err != nil {
		return nil, Meta{}, err
	}

	meta := combineMeta(kills.Age, jumps.Age, kills.Stale || jumps.Stale,
		kills.Warning, jumps.Warning)

	out := make([]ActivityRecord, len(systemIDs))
	for i, id := range systemIDs {
		out[i] = mergeRecord(id, kills.Data, jumps.Data)
	}
	return out, meta, nil
}

// Hotspots returns the most violent systems galaxy-wide, ranked by
// player kills descending, system id ascending on ties.
func (c *Cache) Hotspots(ctx context.Context, limit int) ([]ActivityRecord, Meta, error) {
	kills, err := c.kills.get(ctx)
	if err != nil {
		return nil, Meta{}, err
	}
	jumps, err := c.jumps.get(ctx)
	if err != nil {
		return nil, Meta{}, err
	}

	meta := combineMeta(kills.Age, jumps.Age, kills.Stale || jumps.Stale,
		kills.Warning, jumps.Warning)

	out := make([]ActivityRecord, 0, len(kills.Data))
	for id := range kills.Data {
		r := mergeRecord(id, kills.Data, jumps.Data)
		if r.ShipKills+r.PodKills > 0 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki := out[i].ShipKills + out[i].PodKills
		kj := out[j].ShipKills + out[j].PodKills
		if ki == kj {
			return out[i].SystemID < out[j].SystemID
		}
		return ki > kj
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, meta, nil
}

func mergeRecord(id int32, kills map[int32]esi.SystemKills, jumps map[int32]esi.SystemJumps) ActivityRecord {
	r := ActivityRecord{SystemID: id}
	if k, ok := kills[id]; ok {
		r.ShipKills = k.ShipKills
		r.PodKills = k.PodKills
		r.NPCKills = k.NPCKills
	}
	if j, ok := jumps[id]; ok {
		r.ShipJumps = j.ShipJumps
	}
	r.Level = Level(r.ShipKills, r.PodKills, r.ShipJumps)
	return r
}

func combineMeta(killsAge, jumpsAge time.Duration, stale bool, warnings ...string) Meta {
	age := killsAge
	if jumpsAge > age {
		age = jumpsAge
	}
	m := Meta{Age: age, Stale: stale}
	for _, w := range warnings {
		if w != "" {
			m.Warnings = append(m.Warnings, w)
		}
	}
	return m
}
