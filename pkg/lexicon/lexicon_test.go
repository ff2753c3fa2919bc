package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Loads(t *testing.T) {
	lex := Default()
	require.NotNil(t, lex)

	assert.True(t, lex.IsStopword("بگو"))
	assert.True(t, lex.IsStopword("income"))
	assert.False(t, lex.IsStopword("پرستار"))
	assert.Equal(t, 5, lex.SpelledDigits["پنج"])
	assert.Contains(t, lex.Scale.Million, "میلیون")
}

func TestDefault_SuffixesLongestFirst(t *testing.T) {
	lex := Default()
	require.NotEmpty(t, lex.Suffixes)
	for i := 1; i < len(lex.Suffixes); i++ {
		assert.GreaterOrEqual(t,
			len([]rune(lex.Suffixes[i-1])), len([]rune(lex.Suffixes[i])),
			"suffix %q must not precede a longer one", lex.Suffixes[i-1])
	}
}

func TestMatchesHighIncome(t *testing.T) {
	lex := Default()

	tests := []struct {
		message string
		want    bool
	}{
		{"پردرآمدترین شغل ها کدومن", true},
		{"پر درآمد ترین کارها", true},
		{"شغل های پردرآمد برای خانم ها", true},
		{"بیشترین درآمد رو کدوم شغل داره", true},
		{"highest paying jobs", true},
		{"درآمد پرستار چقدره", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, lex.MatchesHighIncome(tt.message))
		})
	}
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("درآمدش چقدره", []string{"درآمد"}))
	assert.True(t, ContainsAny("بدون سرمایه میشه", []string{"بدون سرمایه"}))
	assert.False(t, ContainsAny("کارشناس", []string{"شناس"}), "keywords must start at a word boundary")
	assert.False(t, ContainsAny("", []string{"درآمد"}))
	assert.False(t, ContainsAny("درآمد", []string{""}))
	assert.True(t, ContainsAny("5 m toman", []string{"m"}))
	assert.False(t, ContainsAny("between 3 and 5", []string{"b"}), "short keywords must match whole words")
}

func TestKeywordHelpers(t *testing.T) {
	lex := Default()
	assert.True(t, lex.HasIncomeKeyword("حقوق برنامه نویس"))
	assert.True(t, lex.HasInvestmentKeyword("سرمایه اولیه چقدره"))
	assert.True(t, lex.HasExplorationKeyword("پرستار بگو"))
	assert.False(t, lex.HasIncomeKeyword("پرستار بگو"))
}

func TestParse_InvalidPattern(t *testing.T) {
	_, err := Parse([]byte("high_income_patterns:\n  - '('\nrange_connectors: [to]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid high income pattern")
}

func TestParse_RequiresRangeConnector(t *testing.T) {
	_, err := Parse([]byte("stopwords: [a]\n"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	lex, err := Load("")
	require.NoError(t, err)
	assert.Same(t, Default(), lex)

	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stopwords: [foo]\nrange_connectors: [to]\n"), 0o600))

	custom, err := Load(path)
	require.NoError(t, err)
	assert.True(t, custom.IsStopword("foo"))
	assert.False(t, custom.IsStopword("بگو"))

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestParse_NormalizesEntries(t *testing.T) {
	yml := "stopwords: [\"\u0643ار\", \"  Job \"]\n" +
		"income_keywords: [\"حقوق،\"]\n" +
		"spelled_digits: {\"سه\": 3}\n" +
		"range_connectors: [\"تا\"]\n"

	lex, err := Parse([]byte(yml))
	require.NoError(t, err)

	assert.True(t, lex.IsStopword("کار"), "arabic kaf must be unified")
	assert.True(t, lex.IsStopword("job"))
	assert.Equal(t, []string{"حقوق"}, lex.IncomeKeywords)
	assert.Equal(t, 3, lex.SpelledDigits["سه"])
}

func TestTokenizer_UsesLexicon(t *testing.T) {
	tok := Default().Tokenizer()
	require.NotNil(t, tok)

	assert.Equal(t, []string{"پرستار بگو", "پرستار"}, tok.LookupPhrases("پرستار بگو"))
	assert.Equal(t, []string{"کارشناس", "پرستار"}, tok.Tokens("درآمد کارشناس پرستاری"))
}
