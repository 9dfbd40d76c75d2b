package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/faultline/internal/learning"
	"github.com/fyrsmithlabs/faultline/internal/monitor"
)

var (
	feedbackRating   int
	feedbackSuccess  bool
	feedbackComments string
	discoverPromote  bool
	discoverJSON     bool
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <pattern-id>",
	Short: "Record feedback about a suggested pattern",
	Long: `Record feedback about a suggested pattern. Feedback adjusts the
pattern's success rate and confidence over time.

Examples:
  # The suggestion was right and the fix worked
  faultline feedback builtin.docker_permission_denied --rating 5 --success

  # The suggestion was wrong
  faultline feedback builtin.oom_killed --rating 1`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Show discovered pattern candidates",
	Long: `Show candidates discovered from recurring unrecognized failures.

Examples:
  # List candidates
  faultline discover

  # Promote all current candidates into the catalog
  faultline discover --promote`,
	RunE: runDiscover,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog and learning statistics",
	RunE:  runStats,
}

func init() {
	feedbackCmd.Flags().IntVar(&feedbackRating, "rating", 3, "rating from 1 (wrong) to 5 (exactly right)")
	feedbackCmd.Flags().BoolVar(&feedbackSuccess, "success", false, "the suggested fix resolved the failure")
	feedbackCmd.Flags().StringVar(&feedbackComments, "comments", "", "free-form commentary")

	discoverCmd.Flags().BoolVar(&discoverPromote, "promote", false, "promote candidates into the catalog")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "emit JSON")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	fb := learning.NewFeedback(args[0], feedbackRating, feedbackSuccess)
	fb.Comments = feedbackComments

	if err := a.learner.LearnFromFeedback(ctx, fb); err != nil {
		return err
	}

	p, err := a.store.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recorded feedback for %s (success_rate=%.2f confidence=%.2f)\n",
		p.ID, p.SuccessRate, p.ConfidenceBase)
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	candidates := a.learner.Discover(ctx)
	if discoverJSON && !discoverPromote {
		return printJSON(cmd.OutOrStdout(), candidates)
	}

	w := cmd.OutOrStdout()
	if len(candidates) == 0 {
		fmt.Fprintln(w, "no candidates")
		return nil
	}

	for _, c := range candidates {
		if discoverPromote {
			p, err := a.learner.Promote(ctx, c)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "promoted %s (seen %d times, category %s)\n",
				p.ID, c.Frequency, c.Category)
			continue
		}
		fmt.Fprintf(w, "%3dx [%s] %s\n", c.Frequency, c.Category, c.ErrorSignature)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	w := cmd.OutOrStdout()
	stats := a.learner.Stats()
	fmt.Fprintf(w, "patterns:          %d\n", a.store.Count())
	fmt.Fprintf(w, "feedback applied:  %d\n", stats.FeedbackProcessed)
	fmt.Fprintf(w, "tracked unknowns:  %d\n", stats.TrackedUnknowns)
	fmt.Fprintf(w, "promoted:          %d\n", stats.Promoted)
	fmt.Fprintf(w, "memory:            %s\n", monitor.FormatMemory(a.monitor.MemoryUsage()))
	fmt.Fprintf(w, "compactions:       %d\n", a.monitor.Compactions())
	return nil
}
