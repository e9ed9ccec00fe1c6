package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-health/internal/models"
	"github.com/benvon/smart-health/internal/personalization"
	"github.com/benvon/smart-health/internal/tracking"
	"github.com/benvon/smart-health/internal/validation"
)

func newShowCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the persisted interaction snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.view(cmd, func(s models.InteractionSnapshot) error {
				return env.render(cmd.OutOrStdout(), s, func(w io.Writer) { printSnapshot(w, s) })
			})
		},
	}
}

func newLayoutCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Show the dashboard layout derived from the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.view(cmd, func(s models.InteractionSnapshot) error {
				plan := personalization.PlanLayout(s)
				return env.render(cmd.OutOrStdout(), plan, func(w io.Writer) {
					fmt.Fprintf(w, "Primary widgets:   %s\n", joinCapabilities(plan.PrimaryWidgets))
					fmt.Fprintf(w, "Secondary widgets: %s\n", joinCapabilities(plan.SecondaryWidgets))
					fmt.Fprintf(w, "Show onboarding:   %t\n", plan.ShowOnboarding)
					fmt.Fprintf(w, "Show quick search: %t\n", plan.ShowQuickSearch)
					fmt.Fprintf(w, "Theme:             %s\n", plan.FocusTheme)
				})
			})
		},
	}
}

func newRecommendCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "recommend",
		Short: "Show the recommendations derived from the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.view(cmd, func(s models.InteractionSnapshot) error {
				recs := personalization.Recommend(s)
				return env.render(cmd.OutOrStdout(), recs, func(w io.Writer) {
					if len(recs) == 0 {
						fmt.Fprintln(w, "No recommendations")
						return
					}
					for _, r := range recs {
						fmt.Fprintf(w, "[%s] %s: %s\n", r.Priority, r.Title, r.Description)
					}
				})
			})
		},
	}
}

func newSymptomsCmd(env *Env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "symptoms",
		Short: "Show the most frequent recent symptoms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return env.view(cmd, func(s models.InteractionSnapshot) error {
				insights := personalization.SymptomInsights(s, limit)
				return env.render(cmd.OutOrStdout(), insights, func(w io.Writer) {
					if len(insights) == 0 {
						fmt.Fprintln(w, "No symptoms recorded")
						return
					}
					for _, f := range insights {
						fmt.Fprintf(w, "%-24s %3d  last %s\n", f.Name, f.Count, f.LastMention.Format(time.RFC3339))
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum number of symptoms")
	return cmd
}

func newFocusCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "focus <general|chronic|acute|preventive>",
		Short: "Set the health focus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			focus := strings.ToLower(strings.TrimSpace(args[0]))
			if err := validation.ValidateHealthFocus(focus); err != nil {
				return err
			}
			s, err := env.update(cmd, func(s models.InteractionSnapshot) models.InteractionSnapshot {
				return tracking.SetHealthFocus(s, models.HealthFocus(focus))
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Health focus set to %s\n", s.HealthFocus)
			return nil
		},
	}
}

func newCompleteOnboardingCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "complete-onboarding",
		Short: "Mark onboarding as complete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.update(cmd, tracking.CompleteOnboarding); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Onboarding marked complete")
			return nil
		},
	}
}

func newResetCmd(env *Env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the interaction record",
		Long:  "Delete the persisted interaction record. The next session starts from defaults.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the interaction record without --yes")
			}
			store, key, err := env.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(cmd, store)

			if err := store.Delete(cmd.Context(), key); err != nil {
				return fmt.Errorf("failed to delete interaction record: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Interaction record deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

func printSnapshot(w io.Writer, s models.InteractionSnapshot) {
	fmt.Fprintf(w, "Health focus:        %s\n", s.HealthFocus)
	fmt.Fprintf(w, "Onboarding complete: %t\n", s.OnboardingComplete)
	fmt.Fprintf(w, "Sessions:            %d\n", s.SessionCount)
	fmt.Fprintf(w, "Time spent:          %s\n", time.Duration(s.TotalTimeSpent)*time.Second)
	fmt.Fprintf(w, "Last visit:          %s\n", s.LastVisit.Format(time.RFC3339))
	fmt.Fprintf(w, "Preferred features:  %s\n", joinCapabilities(s.PreferredFeatures))

	fmt.Fprintln(w, "Feature usage:")
	for _, c := range models.Capabilities {
		fmt.Fprintf(w, "  %-16s %d\n", c, s.UsageCount(c))
	}

	fmt.Fprintf(w, "Recent searches (%d):\n", len(s.RecentSearches))
	for _, e := range s.RecentSearches {
		fmt.Fprintf(w, "  %s (%s, %d results)\n", e.Query, e.Type, e.ResultCount)
	}
	fmt.Fprintf(w, "Recent conditions (%d):\n", len(s.RecentConditionsViewed))
	for _, e := range s.RecentConditionsViewed {
		fmt.Fprintf(w, "  %s (%s)\n", e.Name, e.Action)
	}
	fmt.Fprintf(w, "Favorites (%d):\n", len(s.FavoriteItems))
	for _, e := range s.FavoriteItems {
		fmt.Fprintf(w, "  %s [%s]\n", e.Item, e.Type)
	}
}

func joinCapabilities(cs []models.Capability) string {
	if len(cs) == 0 {
		return "-"
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
