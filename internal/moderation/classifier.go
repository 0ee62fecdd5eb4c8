// Package moderation screens incoming user text against a keyword
// blocklist before a turn is allowed to reach the LLM collaborator.
package moderation

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Classifier matches text against a blocklist with case-insensitive
// substring semantics. Safe for concurrent use; the keyword set can be
// swapped at runtime by a file watcher.
type Classifier struct {
	mu       sync.RWMutex
	keywords []string
}

// NewClassifier builds a classifier from the given keywords. Keywords are
// lowercased and blank entries are dropped.
func NewClassifier(keywords []string) *Classifier {
	c := &Classifier{}
	c.SetKeywords(keywords)
	return c
}

// IsOffensive reports whether text contains any blocked keyword. Empty
// text never matches.
func (c *Classifier) IsOffensive(text string) bool {
	if text == "" {
		return false
	}
	normalized := strings.ToLower(text)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, word := range c.keywords {
		if strings.Contains(normalized, word) {
			return true
		}
	}
	return false
}

// SetKeywords replaces the blocklist.
func (c *Classifier) SetKeywords(keywords []string) {
	cleaned := make([]string, 0, len(keywords))
	for _, w := range keywords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			cleaned = append(cleaned, w)
		}
	}

	c.mu.Lock()
	c.keywords = cleaned
	c.mu.Unlock()
}

// Keywords returns a copy of the current blocklist.
func (c *Classifier) Keywords() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.keywords))
	copy(out, c.keywords)
	return out
}

// LoadKeywordsFile reads a blocklist file: one keyword per line, blank
// lines and '#' comments ignored.
func LoadKeywordsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keywords file: %w", err)
	}
	defer f.Close()

	var keywords []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keywords = append(keywords, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}
	return keywords, nil
}
