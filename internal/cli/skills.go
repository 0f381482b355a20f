package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"eve-tactician/internal/errs"
)

func (a *App) skillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Skill training time from rank, levels, and attributes",
	}
	cmd.AddCommand(a.skillsTrainingTimeCmd(), a.skillsPlanCmd())
	return cmd
}

func (a *App) skillsTrainingTimeCmd() *cobra.Command {
	var skill string
	var rank, current, target, primary, secondary int
	cmd := &cobra.Command{
		Use:   "training-time",
		Short: "Time to train one skill between two levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "skills", map[string]any{
				"action": "training_time", "skill": skill, "rank": rank,
				"current_level": current, "target_level": target,
				"attributes": map[string]any{"primary": primary, "secondary": secondary},
			})
		},
	}
	cmd.Flags().StringVar(&skill, "skill", "", "skill name (informational)")
	cmd.Flags().IntVar(&rank, "rank", 0, "training rank")
	cmd.Flags().IntVar(&current, "current-level", 0, "level already trained")
	cmd.Flags().IntVar(&target, "target-level", 0, "level to reach")
	cmd.Flags().IntVar(&primary, "primary", 0, "primary attribute (default 20)")
	cmd.Flags().IntVar(&secondary, "secondary", 0, "secondary attribute (default 20)")
	cmd.MarkFlagRequired("rank")
	cmd.MarkFlagRequired("target-level")
	return cmd
}

func (a *App) skillsPlanCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Total time for an ordered skill queue",
		Long:  "Reads a JSON array of training requests from --file, or stdin when --file is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(file)
			if err != nil {
				return err
			}
			var entries []map[string]any
			if err := json.Unmarshal([]byte(raw), &entries); err != nil {
				return errs.InvalidParameter("skills", "input must be a JSON array of training requests")
			}
			return a.run(cmd, "skills", map[string]any{"action": "plan", "skills": entries})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "queue JSON file (default stdin)")
	return cmd
}
