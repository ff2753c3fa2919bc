// Package lexicon loads the word lists that drive phrase extraction, money
// parsing and intent classification. A default lexicon is embedded in the
// binary; deployments can replace it with their own YAML file.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/daramad/daramad-engine/pkg/textnorm"
)

//go:embed default.yaml
var defaultYAML []byte

// ScaleWords groups the keywords that select a monetary multiplier.
type ScaleWords struct {
	Billion  []string `yaml:"billion"`
	Million  []string `yaml:"million"`
	Thousand []string `yaml:"thousand"`
	Toman    []string `yaml:"toman"`
	Rial     []string `yaml:"rial"`
}

// Lexicon holds every keyword set used by the text pipeline.
// Word entries are passed through textnorm.NormalizeQuery when the lexicon
// is compiled, so files may use any spelling variant.
type Lexicon struct {
	Stopwords           []string       `yaml:"stopwords"`
	Suffixes            []string       `yaml:"suffixes"`
	IncomeKeywords      []string       `yaml:"income_keywords"`
	InvestmentKeywords  []string       `yaml:"investment_keywords"`
	ExplorationKeywords []string       `yaml:"exploration_keywords"`
	HighIncomePatterns  []string       `yaml:"high_income_patterns"`
	ZeroKeywords        []string       `yaml:"zero_keywords"`
	UnknownKeywords     []string       `yaml:"unknown_keywords"`
	NonCashKeywords     []string       `yaml:"non_cash_keywords"`
	Scale               ScaleWords     `yaml:"scale"`
	SpelledDigits       map[string]int `yaml:"spelled_digits"`
	HalfWords           []string       `yaml:"half_words"`
	RangeConnectors     []string       `yaml:"range_connectors"`
	BetweenWords        []string       `yaml:"between_words"`

	stopSet    map[string]struct{}
	highIncome []*regexp.Regexp
	tokenizer  *textnorm.Tokenizer
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
)

// Default returns the embedded lexicon. It panics if the embedded YAML is
// invalid, which can only happen at build time.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		lex, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded lexicon is invalid: %v", err))
		}
		defaultLex = lex
	})
	return defaultLex
}

// Load reads a lexicon from a YAML file. An empty path returns the default lexicon.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML lexicon and compiles its patterns.
func Parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("failed to decode lexicon: %w", err)
	}
	if err := lex.compile(); err != nil {
		return nil, err
	}
	return &lex, nil
}

func (l *Lexicon) compile() error {
	for _, list := range []*[]string{
		&l.Stopwords, &l.Suffixes, &l.IncomeKeywords, &l.InvestmentKeywords,
		&l.ExplorationKeywords, &l.ZeroKeywords, &l.UnknownKeywords,
		&l.NonCashKeywords, &l.Scale.Billion, &l.Scale.Million,
		&l.Scale.Thousand, &l.Scale.Toman, &l.Scale.Rial, &l.HalfWords,
		&l.RangeConnectors, &l.BetweenWords,
	} {
		*list = normalizeWords(*list)
	}

	digits := make(map[string]int, len(l.SpelledDigits))
	for w, v := range l.SpelledDigits {
		if w = textnorm.NormalizeQuery(w); w != "" {
			digits[w] = v
		}
	}
	l.SpelledDigits = digits

	l.stopSet = make(map[string]struct{}, len(l.Stopwords))
	for _, w := range l.Stopwords {
		l.stopSet[w] = struct{}{}
	}

	l.highIncome = make([]*regexp.Regexp, 0, len(l.HighIncomePatterns))
	for _, p := range l.HighIncomePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid high income pattern %q: %w", p, err)
		}
		l.highIncome = append(l.highIncome, re)
	}

	// Longest suffix first so "های" is stripped before "ی".
	sort.SliceStable(l.Suffixes, func(i, j int) bool {
		return len([]rune(l.Suffixes[i])) > len([]rune(l.Suffixes[j]))
	})

	if len(l.RangeConnectors) == 0 {
		return fmt.Errorf("lexicon must define at least one range connector")
	}

	l.tokenizer = textnorm.NewTokenizer(l.IsStopword, l.Suffixes)
	return nil
}

func normalizeWords(words []string) []string {
	out := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = textnorm.NormalizeQuery(w)
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Tokenizer returns a tokenizer that uses this lexicon's stopwords and suffixes.
func (l *Lexicon) Tokenizer() *textnorm.Tokenizer {
	return l.tokenizer
}

// IsStopword reports whether the token is in the stopword list.
func (l *Lexicon) IsStopword(token string) bool {
	_, ok := l.stopSet[token]
	return ok
}

// MatchesHighIncome reports whether a normalized message asks for the
// highest-paying jobs.
func (l *Lexicon) MatchesHighIncome(normalized string) bool {
	for _, re := range l.highIncome {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any keyword starts at a word boundary of the
// normalized text. Keywords may span several words. Keywords shorter than
// three runes ("m", "vs") must match a whole word.
func ContainsAny(normalized string, keywords []string) bool {
	if normalized == "" {
		return false
	}
	padded := " " + normalized + " "
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		needle := " " + kw
		if utf8.RuneCountInString(kw) < 3 {
			needle += " "
		}
		if strings.Contains(padded, needle) {
			return true
		}
	}
	return false
}

// HasIncomeKeyword reports whether the message mentions income or salary.
func (l *Lexicon) HasIncomeKeyword(normalized string) bool {
	return ContainsAny(normalized, l.IncomeKeywords)
}

// HasInvestmentKeyword reports whether the message mentions investment.
func (l *Lexicon) HasInvestmentKeyword(normalized string) bool {
	return ContainsAny(normalized, l.InvestmentKeywords)
}

// HasExplorationKeyword reports whether the message asks for comparison or
// general information about a job.
func (l *Lexicon) HasExplorationKeyword(normalized string) bool {
	return ContainsAny(normalized, l.ExplorationKeywords)
}
