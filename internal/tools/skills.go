package tools

import (
	"context"
	"encoding/json"

	"eve-tactician/internal/skills"
)

var skillsActions = []string{"training_time", "plan"}

type skillsRequest struct {
	Action string `json:"action"`
	skills.TrainingRequest
	Skills []skills.TrainingRequest `json:"skills"`
}

func (d *Dispatcher) skills(_ context.Context, params json.RawMessage) (any, error) {
	var req skillsRequest
	if err := decode(params, &req); err != nil {
		return nil, err
	}
	switch req.Action {
	case "training_time":
		return skills.TrainingTime(req.TrainingRequest)
	case "plan":
		res, err := skills.Plan(req.Skills)
		if err != nil {
			return nil, err
		}
		return struct {
			skills.PlanResult
			TotalFound int `json:"total_found"`
		}{res, len(res.Entries)}, nil
	default:
		return nil, unknownAction(req.Action, skillsActions)
	}
}
