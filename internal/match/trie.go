package match

import "strings"

// keywordTrie is a case-insensitive multi-keyword trie. One pass over
// the input finds every keyword occurrence in O(len(input) * max
// keyword length), independent of how many keywords are indexed.
type keywordTrie struct {
	root     *trieNode
	maxDepth int
	size     int
}

type trieNode struct {
	children map[byte]*trieNode
	// word is the (lowercased) keyword terminating at this node, empty
	// for interior nodes.
	word string
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[byte]*trieNode)}
}

// newKeywordTrie indexes the given keywords, lowercased. Empty keywords
// are ignored.
func newKeywordTrie(keywords []string) *keywordTrie {
	t := &keywordTrie{root: newTrieNode()}
	for _, kw := range keywords {
		t.insert(strings.ToLower(kw))
	}
	return t
}

func (t *keywordTrie) insert(word string) {
	if word == "" {
		return
	}
	node := t.root
	for i := 0; i < len(word); i++ {
		c := lowerByte(word[i])
		next, ok := node.children[c]
		if !ok {
			next = newTrieNode()
			node.children[c] = next
		}
		node = next
	}
	if node.word == "" {
		t.size++
	}
	node.word = word
	if len(word) > t.maxDepth {
		t.maxDepth = len(word)
	}
}

// Scan walks text once and returns every indexed keyword found, mapped
// to the start offsets of its occurrences.
func (t *keywordTrie) Scan(text string) map[string][]int {
	hits := make(map[string][]int)
	if t.size == 0 {
		return hits
	}
	for i := 0; i < len(text); i++ {
		node := t.root
		limit := i + t.maxDepth
		if limit > len(text) {
			limit = len(text)
		}
		for j := i; j < limit; j++ {
			next, ok := node.children[lowerByte(text[j])]
			if !ok {
				break
			}
			node = next
			if node.word != "" {
				hits[node.word] = append(hits[node.word], i)
			}
		}
	}
	return hits
}

func lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
