package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/faultline/internal/pattern"
)

var (
	patternsJSON      bool
	patternsCategory  string
	addName           string
	addCategory       string
	addRegexes        []string
	addKeywords       []string
	addConfidenceBase float64
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Manage the pattern catalog",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patterns in the catalog",
	Long: `List patterns in the catalog.

Examples:
  faultline patterns list
  faultline patterns list --category network --json`,
	RunE: runPatternsList,
}

var patternsAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add a user-defined pattern",
	Long: `Add a user-defined pattern to the catalog.

Examples:
  faultline patterns add user.redis_down \
    --name "Redis unavailable" --category network \
    --regex '(?i)redis.*connection (refused|reset)' \
    --keyword redis --keyword connection`,
	Args: cobra.ExactArgs(1),
	RunE: runPatternsAdd,
}

var patternsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a pattern from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsRemove,
}

func init() {
	patternsListCmd.Flags().BoolVar(&patternsJSON, "json", false, "emit JSON")
	patternsListCmd.Flags().StringVar(&patternsCategory, "category", "", "filter by category")

	patternsAddCmd.Flags().StringVar(&addName, "name", "", "human-readable pattern name (required)")
	patternsAddCmd.Flags().StringVar(&addCategory, "category", "general", "failure category")
	patternsAddCmd.Flags().StringArrayVar(&addRegexes, "regex", nil, "regex pattern (repeatable)")
	patternsAddCmd.Flags().StringArrayVar(&addKeywords, "keyword", nil, "prefilter keyword (repeatable)")
	patternsAddCmd.Flags().Float64Var(&addConfidenceBase, "confidence", 0.7, "base confidence (0-1)")
	_ = patternsAddCmd.MarkFlagRequired("name")

	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsAddCmd)
	patternsCmd.AddCommand(patternsRemoveCmd)
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	var patterns []*pattern.Pattern
	if patternsCategory != "" {
		patterns = a.store.GetByCategory(patternsCategory)
	} else {
		patterns = a.store.All()
	}

	if patternsJSON {
		return printJSON(cmd.OutOrStdout(), patterns)
	}

	w := cmd.OutOrStdout()
	for _, p := range patterns {
		fmt.Fprintf(w, "%-40s %-14s %-8s base=%.2f success=%.2f hits=%d\n",
			p.ID, p.Category, p.Source, p.ConfidenceBase, p.SuccessRate, p.OccurrenceCount)
	}
	fmt.Fprintf(w, "\n%d pattern(s)\n", len(patterns))
	return nil
}

func runPatternsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	now := time.Now()
	p := &pattern.Pattern{
		ID:             args[0],
		Name:           addName,
		Category:       addCategory,
		RegexPatterns:  addRegexes,
		Keywords:       addKeywords,
		ConfidenceBase: addConfidenceBase,
		SuccessRate:    0.5,
		CreatedAt:      now,
		UpdatedAt:      now,
		UserDefined:    true,
		Source:         pattern.SourceUser,
	}
	if err := a.store.Add(p); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "added pattern %s\n", p.ID)
	return nil
}

func runPatternsRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if !a.store.Remove(args[0]) {
		return fmt.Errorf("pattern %q not found", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed pattern %s\n", args[0])
	return nil
}
