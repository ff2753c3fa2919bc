package money

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/daramad/daramad-engine/pkg/lexicon"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// numberPattern matches digits with optional thousands separators and one
// decimal part. "/" between digits is a common decimal separator on Persian
// keyboards.
var numberPattern = regexp.MustCompile(`\d+(?:[,٬]\d{3})*(?:[.٫/]\d+)?`)

// extractNumber returns the first number of the fragment, falling back to
// spelled digits. "و نیم" adds one half to a whole number.
func (p *Parser) extractNumber(frag fragment) (float64, bool) {
	n, ok := parseNumeric(frag.text)
	if !ok {
		n, ok = p.spelledNumber(frag.words)
	}

	half := p.hasHalf(frag.words)
	switch {
	case ok && half && n == math.Trunc(n):
		n += 0.5
	case !ok && lexicon.ContainsAny(frag.words, p.lex.HalfWords):
		n, ok = 0.5, true
	}
	return n, ok
}

func parseNumeric(text string) (float64, bool) {
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	m = strings.NewReplacer(",", "", "٬", "", "٫", ".", "/", ".").Replace(m)
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// spelledNumber sums the first run of spelled number words joined by "و",
// so "سیصد و پنجاه" is 350.
func (p *Parser) spelledNumber(words string) (float64, bool) {
	tokens := strings.Fields(words)
	total, found := 0, false
	for i := 0; i < len(tokens); i++ {
		v, ok := p.lex.SpelledDigits[tokens[i]]
		if !ok {
			if found {
				break
			}
			continue
		}
		total += v
		found = true
		if i+2 >= len(tokens) || !isOneOf(tokens[i+1], andWords) {
			break
		}
		if _, next := p.lex.SpelledDigits[tokens[i+2]]; !next {
			break
		}
		i++
	}
	return float64(total), found
}

// hasDigits reports whether text holds a numeric or spelled number, not
// counting a lone half word.
func (p *Parser) hasDigits(text string) bool {
	if _, ok := parseNumeric(text); ok {
		return true
	}
	_, ok := p.spelledNumber(textnorm.NormalizeQuery(text))
	return ok
}

func (p *Parser) hasHalf(words string) bool {
	for _, h := range p.lex.HalfWords {
		if lexicon.ContainsAny(words, []string{"و " + h, "and " + h}) {
			return true
		}
	}
	return false
}

// hasNumber reports whether the fragment holds a numeric or spelled amount.
func (p *Parser) hasNumber(frag fragment) bool {
	_, ok := p.extractNumber(frag)
	return ok
}
