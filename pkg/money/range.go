package money

import (
	"math"
	"slices"
	"strings"

	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

var (
	dashConnectors = []string{"-"}
	andWords       = []string{"و", "and"}
)

// ParseRange parses an "X تا Y" or "بین X و Y" range. The boolean is false
// when the text is not a range; the value then carries no meaning.
func (p *Parser) ParseRange(raw string, opts Options) (models.MonetaryValue, bool) {
	opts = opts.withDefaults()
	frag := prepare(raw)
	if v, done := p.screen(frag, opts); done {
		return v, false
	}
	return p.parseRange(frag, opts)
}

func (p *Parser) parseRange(frag fragment, opts Options) (models.MonetaryValue, bool) {
	left, right, ok := p.splitRange(frag.text)
	if !ok {
		return models.MonetaryValue{}, false
	}

	lf, rf := newFragment(left), newFragment(right)

	// A side without its own scale borrows the other side's.
	ls, rs := p.detectScale(lf.words), p.detectScale(rf.words)
	if ls.kind == scaleNone {
		ls = rs
	}
	if rs.kind == scaleNone {
		rs = ls
	}

	lv, lbillion, status, note := p.amount(lf, ls, opts)
	if status != models.MoneyOK {
		return models.MonetaryValue{Status: status, Note: note}, true
	}
	rv, rbillion, status, note := p.amount(rf, rs, opts)
	if status != models.MoneyOK {
		return models.MonetaryValue{Status: status, Note: note}, true
	}

	lo, hi := lv, rv
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == 0 && opts.Profile == ProfileIncome {
		return models.MonetaryValue{Status: models.MoneyInvalid, Note: "zero income is not allowed"}, true
	}

	mid := (lo + hi) / 2
	if mid > 2*opts.SanityCeiling && !lbillion && !rbillion {
		return models.MonetaryValue{Status: models.MoneyAmbiguousUnit, Note: "range midpoint exceeds sanity ceiling without a billion keyword"}, true
	}

	return models.MonetaryValue{
		Status:  models.MoneyOK,
		Value:   int64(math.Round(mid)),
		Min:     int64(math.Round(lo)),
		Max:     int64(math.Round(hi)),
		IsRange: true,
		Unit:    models.CanonicalMoneyUnit,
	}, true
}

func newFragment(text string) fragment {
	return fragment{text: text, words: textnorm.NormalizeQuery(text)}
}

// splitRange finds the two sides of a range. Both sides must hold a number;
// "سه تا ماشین" is a count, not a range.
func (p *Parser) splitRange(text string) (string, string, bool) {
	tokens := strings.Fields(strings.ReplaceAll(text, "-", " - "))
	if len(tokens) < 3 {
		return "", "", false
	}

	for i, tok := range tokens {
		if !isOneOf(tok, p.lex.BetweenWords) {
			continue
		}
		for j := i + 2; j < len(tokens)-1; j++ {
			if !isOneOf(tokens[j], andWords) || isOneOf(tokens[j+1], p.lex.HalfWords) {
				continue
			}
			left := strings.Join(tokens[i+1:j], " ")
			right := strings.Join(tokens[j+1:], " ")
			if p.rangeSide(left) && p.rangeSide(right) {
				return left, right, true
			}
		}
	}

	for i := 1; i < len(tokens)-1; i++ {
		if !isOneOf(tokens[i], p.lex.RangeConnectors) && !isOneOf(tokens[i], dashConnectors) {
			continue
		}
		left := strings.Join(tokens[:i], " ")
		right := strings.Join(tokens[i+1:], " ")
		if p.rangeSide(left) && p.rangeSide(right) {
			return left, right, true
		}
	}
	return "", "", false
}

// rangeSide reports whether text can stand as one side of a range. The "و"
// inside a chained amount is not a range connector.
func (p *Parser) rangeSide(text string) bool {
	frag := newFragment(text)
	return p.hasNumber(frag) && p.readable(frag)
}

func isOneOf(token string, words []string) bool {
	return slices.Contains(words, token)
}
