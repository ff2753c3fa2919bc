package textnorm

import (
	"strings"
	"unicode/utf8"
)

// maxWindow is the longest word n-gram produced by LookupPhrases.
const maxWindow = 4

// minTokenRunes is the shortest token kept after stopword removal.
const minTokenRunes = 2

// Tokenizer splits normalized text into content words. The stopword
// predicate and suffix list come from the lexicon; suffixes must be ordered
// longest first.
type Tokenizer struct {
	isStop   func(string) bool
	suffixes []string
}

// NewTokenizer creates a tokenizer. A nil stop predicate keeps every word.
func NewTokenizer(isStop func(string) bool, suffixes []string) *Tokenizer {
	if isStop == nil {
		isStop = func(string) bool { return false }
	}
	return &Tokenizer{isStop: isStop, suffixes: suffixes}
}

// Words returns the query-normalized words of text, including stopwords.
func (t *Tokenizer) Words(text string) []string {
	return strings.Fields(NormalizeQuery(text))
}

// ContentWords returns the words of text with stopwords and one-rune tokens removed.
func (t *Tokenizer) ContentWords(text string) []string {
	words := t.Words(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if t.isStop(w) || utf8.RuneCountInString(w) < minTokenRunes {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Tokens returns stemmed content words: stopwords dropped, one suffix stripped
// per word and tokens shorter than two runes discarded.
func (t *Tokenizer) Tokens(text string) []string {
	words := t.Words(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if t.isStop(w) {
			continue
		}
		w = t.Stem(w)
		if utf8.RuneCountInString(w) < minTokenRunes {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Stem strips the first matching suffix as long as at least two runes remain.
func (t *Tokenizer) Stem(word string) string {
	for _, suffix := range t.suffixes {
		if suffix == "" || !strings.HasSuffix(word, suffix) {
			continue
		}
		stem := strings.TrimSuffix(word, suffix)
		if utf8.RuneCountInString(stem) >= minTokenRunes {
			return stem
		}
	}
	return word
}

// LookupPhrases turns a message into catalog probe phrases, most specific
// first. The whole normalized message leads, followed by every contiguous
// window of content words from min(4, n) words down to one. Duplicates and
// empty phrases are dropped.
func (t *Tokenizer) LookupPhrases(message string) []string {
	full := NormalizeQuery(message)
	if full == "" {
		return nil
	}

	seen := make(map[string]struct{})
	phrases := make([]string, 0, 8)
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		phrases = append(phrases, p)
	}

	add(full)

	words := t.ContentWords(message)
	n := len(words)
	size := min(maxWindow, n)
	for ; size >= 1; size-- {
		for start := 0; start+size <= n; start++ {
			add(strings.Join(words[start:start+size], " "))
		}
	}
	return phrases
}
