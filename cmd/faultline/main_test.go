package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/faultline/internal/engine"
	"github.com/fyrsmithlabs/faultline/internal/match"
	"github.com/fyrsmithlabs/faultline/internal/pattern"
)

func TestReadInputFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(path, []byte("npm ERR! code E404\n"), 0o600))

	text, err := readInput([]string{path})
	require.NoError(t, err)
	assert.Equal(t, "npm ERR! code E404\n", text)
}

func TestReadInputMissingFile(t *testing.T) {
	_, err := readInput([]string{filepath.Join(t.TempDir(), "no-such.log")})
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	res := &engine.AnalysisResult{
		Summary:           "identified 1 known failure pattern(s)",
		Status:            engine.StatusCompleted,
		OverallConfidence: 0.81,
		Matches: []*match.PatternMatch{
			{
				Pattern: &pattern.Pattern{
					Name:     "Docker daemon permission denied",
					Category: "permission",
				},
				Confidence:         0.81,
				SupportingEvidence: []string{"permission denied while trying to connect to the Docker daemon"},
			},
		},
		Metrics: engine.PerformanceMetrics{
			LogSize:              128,
			ProcessingTime:       3 * time.Millisecond,
			OptimizationsApplied: []string{"trie_prefilter"},
		},
	}

	var buf bytes.Buffer
	printResult(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "Docker daemon permission denied")
	assert.Contains(t, out, "[permission]")
	assert.Contains(t, out, "confidence 0.81")
	assert.Contains(t, out, "trie_prefilter")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"patterns": 10}))
	assert.JSONEq(t, `{"patterns": 10}`, buf.String())
}
