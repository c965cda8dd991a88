// Package textutil holds the tokenizer, stopword list and sentence splitter
// shared by the segmenter, the hashing embedder, snippet selection and the TUI.
package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	stopwords  = buildStopwords()
)

// Tokens lower-cases text and returns its word tokens, stopwords removed.
func Tokens(text string) []string {
	raw := wordRe.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokens(text)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// Sentences splits text into trimmed sentences. Text without terminal
// punctuation is returned as a single sentence; blank text yields nil.
func Sentences(text string) []string {
	found := sentenceRe.FindAllString(text, -1)
	var out []string
	for _, s := range found {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	// trailing text after the last terminator
	if idx := strings.LastIndexAny(text, ".!?"); idx >= 0 && idx+1 < len(text) {
		if t := strings.TrimSpace(text[idx+1:]); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}
	return out
}

// Overlap counts the distinct tokens of sentence that appear in query.
func Overlap(query map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range Tokens(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}

// BestSentence returns the index of the sentence sharing the most tokens
// with query. Ties go to the earliest sentence.
func BestSentence(sentences []string, query string) int {
	q := TokenSet(query)
	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := Overlap(q, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// Truncate cuts s to at most n runes, appending "…" when it cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

func buildStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
