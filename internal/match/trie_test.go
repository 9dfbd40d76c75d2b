package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrieScanFindsKeywords(t *testing.T) {
	trie := newKeywordTrie([]string{"docker", "timeout", "denied"})

	hits := trie.Scan("Got permission DENIED while talking to the Docker daemon")

	assert.Contains(t, hits, "docker")
	assert.Contains(t, hits, "denied")
	assert.NotContains(t, hits, "timeout")
}

func TestTrieScanIsCaseInsensitive(t *testing.T) {
	trie := newKeywordTrie([]string{"OOM", "Killed"})

	hits := trie.Scan("process oom-killed by kernel")

	assert.Contains(t, hits, "oom")
	assert.Contains(t, hits, "killed")
}

func TestTrieScanReportsPositions(t *testing.T) {
	trie := newKeywordTrie([]string{"fail"})

	hits := trie.Scan("fail early, fail often")

	require.Len(t, hits["fail"], 2)
	assert.Equal(t, []int{0, 12}, hits["fail"])
}

func TestTrieScanOverlappingKeywords(t *testing.T) {
	// One keyword is a prefix of another; both must be reported.
	trie := newKeywordTrie([]string{"time", "timeout"})

	hits := trie.Scan("request timeout")

	assert.Contains(t, hits, "time")
	assert.Contains(t, hits, "timeout")
}

func TestTrieScanEmpty(t *testing.T) {
	assert.Empty(t, newKeywordTrie(nil).Scan("anything"))
	assert.Empty(t, newKeywordTrie([]string{"kw"}).Scan(""))
}
