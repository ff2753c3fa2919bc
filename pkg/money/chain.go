package money

import (
	"math"
	"strings"

	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// chain is an amount spelled across several scale words, as in
// "دو میلیون و پانصد هزار".
type chain struct {
	value   float64
	billion bool
	// note is set when the chain cannot be read without guessing.
	note string
}

func (p *Parser) scaleOf(token string) (float64, bool) {
	w := textnorm.NormalizeQuery(token)
	switch {
	case isOneOf(w, p.lex.Scale.Billion):
		return 1_000_000_000, true
	case isOneOf(w, p.lex.Scale.Million):
		return 1_000_000, true
	case isOneOf(w, p.lex.Scale.Thousand):
		return 1_000, true
	}
	return 0, false
}

// readChain sums the segments of a chained amount. The boolean is false when
// the text is a plain single-scale amount. Segments must name strictly
// decreasing scales and each must hold a number; a number joined by "و"
// after the last scale word has no unit of its own and makes the whole
// amount ambiguous.
func (p *Parser) readChain(text string) (chain, bool) {
	var (
		c       chain
		segment []string
		scales  int
		ordered = true
		last    = math.Inf(1)
	)
	for _, tok := range strings.Fields(text) {
		mult, ok := p.scaleOf(tok)
		if !ok {
			segment = append(segment, tok)
			continue
		}
		scales++
		n, found := p.extractNumber(newFragment(strings.Join(segment, " ")))
		if !found || mult >= last {
			ordered = false
		}
		c.value += n * mult
		c.billion = c.billion || mult >= 1_000_000_000
		last = mult
		segment = nil
	}

	trailing := len(segment) > 1 && isOneOf(segment[0], andWords) &&
		p.hasDigits(strings.Join(segment[1:], " "))
	switch {
	case scales == 0, scales == 1 && !trailing:
		return chain{}, false
	case !ordered:
		return chain{note: "scale words are out of order"}, true
	case trailing:
		return chain{note: "number after the last scale word has no unit"}, true
	}

	c.value *= p.detectScale(textnorm.NormalizeQuery(text)).currency
	return c, true
}

// readable reports whether a fragment is not a broken chain.
func (p *Parser) readable(frag fragment) bool {
	c, ok := p.readChain(frag.text)
	return !ok || c.note == ""
}
