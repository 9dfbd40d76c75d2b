package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/faultline/internal/engine"
)

var (
	analyzeJSON         bool
	analyzeCategory     string
	analyzeThreshold    float64
	analyzeMaxPatterns  int
	analyzeForceChunked bool
	analyzeErrorType    string
	analyzeProjectType  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a failure log",
	Long: `Analyze a CI/CD failure log against the pattern catalog.

Reads from the given file, or from stdin when the argument is "-" or
omitted.

Examples:
  # Analyze a build log
  faultline analyze build.log

  # Analyze from stdin, JSON output
  kubectl logs job/build | faultline analyze --json -

  # Restrict to network failures with a stricter threshold
  faultline analyze --category network --threshold 0.7 build.log`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit the full result as JSON")
	analyzeCmd.Flags().StringVar(&analyzeCategory, "category", "", "restrict matching to one category")
	analyzeCmd.Flags().Float64Var(&analyzeThreshold, "threshold", 0, "confidence threshold override")
	analyzeCmd.Flags().IntVar(&analyzeMaxPatterns, "max-patterns", 0, "maximum patterns to report")
	analyzeCmd.Flags().BoolVar(&analyzeForceChunked, "force-chunked", false, "force chunked-parallel matching")
	analyzeCmd.Flags().StringVar(&analyzeErrorType, "error-type", "", "error type hint for confidence adjustment")
	analyzeCmd.Flags().StringVar(&analyzeProjectType, "project-type", "", "project type hint for confidence adjustment")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	text, err := readInput(args)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	opts := a.engineOptions()
	opts.CategoryFilter = analyzeCategory
	opts.ForceChunked = analyzeForceChunked
	opts.ErrorType = analyzeErrorType
	opts.ProjectType = analyzeProjectType
	if analyzeThreshold > 0 {
		opts.ConfidenceThreshold = analyzeThreshold
	}
	if analyzeMaxPatterns > 0 {
		opts.MaxPatterns = analyzeMaxPatterns
	}

	result, err := a.engine.AnalyzeWithFallback(ctx, text, opts)
	if err != nil {
		return err
	}

	if analyzeJSON {
		return printJSON(cmd.OutOrStdout(), result)
	}
	printResult(cmd.OutOrStdout(), result)
	return nil
}

// readInput reads the log from a file argument or stdin.
func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, res *engine.AnalysisResult) {
	fmt.Fprintf(w, "%s (status: %s, confidence: %.2f)\n",
		res.Summary, res.Status, res.OverallConfidence)

	for i, pm := range res.Matches {
		fmt.Fprintf(w, "\n%d. %s [%s] confidence %.2f\n",
			i+1, pm.Pattern.Name, pm.Pattern.Category, pm.Confidence)
		for _, ev := range pm.SupportingEvidence {
			fmt.Fprintf(w, "   evidence: %s\n", ev)
		}
	}

	fmt.Fprintf(w, "\nprocessed %d bytes in %s", res.Metrics.LogSize, res.Metrics.ProcessingTime)
	if len(res.Metrics.OptimizationsApplied) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(res.Metrics.OptimizationsApplied, ", "))
	}
	fmt.Fprintln(w)
}
