// Package skills computes training times from the game's skill-point
// formulas: cumulative SP per level scales with the skill's training
// rank, and training speed derives from the pilot's attributes.
package skills

import (
	"fmt"
	"math"
	"time"

	"eve-tactician/internal/errs"
)

const (
	MinRank  = 1
	MaxRank  = 16
	MaxLevel = 5

	// Attribute range: 17 base, remaps and boosters top out at 35.
	MinAttribute     = 17
	MaxAttribute     = 35
	DefaultAttribute = 20
)

// CumulativeSP is the total skill points needed to hold a skill at the
// given level. Level steps scale by sqrt(32); the canonical rank-1
// table is 250 / 1,415 / 8,000 / 45,255 / 256,000.
func CumulativeSP(rank, level int) int64 {
	if level <= 0 {
		return 0
	}
	return int64(math.Ceil(250 * float64(rank) * math.Pow(32, float64(level-1)/2)))
}

// SPPerMinute is the training speed for an attribute pair.
func SPPerMinute(primary, secondary int) float64 {
	return float64(primary) + float64(secondary)/2
}

// Attributes is the pilot's relevant attribute pair for one skill.
type Attributes struct {
	Primary   int `json:"primary"`
	Secondary int `json:"secondary"`
}

func (a Attributes) withDefaults() Attributes {
	if a.Primary == 0 {
		a.Primary = DefaultAttribute
	}
	if a.Secondary == 0 {
		a.Secondary = DefaultAttribute
	}
	return a
}

func (a Attributes) validate() error {
	if a.Primary < MinAttribute || a.Primary > MaxAttribute {
		return errs.InvalidParameter("primary", fmt.Sprintf("must be in [%d,%d]", MinAttribute, MaxAttribute))
	}
	if a.Secondary < MinAttribute || a.Secondary > MaxAttribute {
		return errs.InvalidParameter("secondary", fmt.Sprintf("must be in [%d,%d]", MinAttribute, MaxAttribute))
	}
	return nil
}

// TrainingRequest describes one skill to train between two levels.
type TrainingRequest struct {
	Skill        string     `json:"skill"`
	Rank         int        `json:"rank"`
	CurrentLevel int        `json:"current_level"`
	TargetLevel  int        `json:"target_level"`
	Attributes   Attributes `json:"attributes"`
}

// TrainingResult is the computed time for one skill.
type TrainingResult struct {
	Skill        string  `json:"skill"`
	Rank         int     `json:"rank"`
	CurrentLevel int     `json:"current_level"`
	TargetLevel  int     `json:"target_level"`
	SPRequired   int64   `json:"sp_required"`
	SPTotal      int64   `json:"sp_total"`
	SPPerMinute  float64 `json:"sp_per_minute"`
	Seconds      int64   `json:"duration_seconds"`
	Duration     string  `json:"duration"`
}

// TrainingTime computes the time to train one skill from its current
// level to the target. Zero attributes default to 20/20.
func TrainingTime(req TrainingRequest) (TrainingResult, error) {
	if req.Rank < MinRank || req.Rank > MaxRank {
		return TrainingResult{}, errs.InvalidParameter("rank", fmt.Sprintf("must be in [%d,%d]", MinRank, MaxRank))
	}
	if req.CurrentLevel < 0 || req.CurrentLevel >= MaxLevel {
		return TrainingResult{}, errs.InvalidParameter("current_level", fmt.Sprintf("must be in [0,%d)", MaxLevel))
	}
	if req.TargetLevel <= req.CurrentLevel || req.TargetLevel > MaxLevel {
		return TrainingResult{}, errs.InvalidParameter("target_level", fmt.Sprintf("must be in (current_level,%d]", MaxLevel))
	}
	attrs := req.Attributes.withDefaults()
	if err := attrs.validate(); err != nil {
		return TrainingResult{}, err
	}

	total := CumulativeSP(req.Rank, req.TargetLevel)
	required := total - CumulativeSP(req.Rank, req.CurrentLevel)
	perMin := SPPerMinute(attrs.Primary, attrs.Secondary)
	seconds := int64(math.Ceil(float64(required) / perMin * 60))

	return TrainingResult{
		Skill:        req.Skill,
		Rank:         req.Rank,
		CurrentLevel: req.CurrentLevel,
		TargetLevel:  req.TargetLevel,
		SPRequired:   required,
		SPTotal:      total,
		SPPerMinute:  perMin,
		Seconds:      seconds,
		Duration:     FormatDuration(time.Duration(seconds) * time.Second),
	}, nil
}

// PlanResult is the aggregate over an ordered list of skills.
type PlanResult struct {
	Entries      []TrainingResult `json:"entries"`
	TotalSP      int64            `json:"total_sp"`
	TotalSeconds int64            `json:"total_seconds"`
	TotalText    string           `json:"total_duration"`
}

// Plan computes the end-to-end time for an ordered skill queue.
// Validation failures name the offending entry by position.
func Plan(reqs []TrainingRequest) (PlanResult, error) {
	if len(reqs) == 0 {
		return PlanResult{}, errs.InvalidParameter("skills", "must contain at least one entry")
	}
	var out PlanResult
	for i, req := range reqs {
		res, err := TrainingTime(req)
		if err != nil {
			return PlanResult{}, errs.AsError(err).With("entry", i)
		}
		out.Entries = append(out.Entries, res)
		out.TotalSP += res.SPRequired
		out.TotalSeconds += res.Seconds
	}
	out.TotalText = FormatDuration(time.Duration(out.TotalSeconds) * time.Second)
	return out, nil
}

// FormatDuration renders a duration as "12d 4h 30m" style text.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
