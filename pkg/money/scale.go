package money

import "github.com/daramad/daramad-engine/pkg/lexicon"

type scaleKind int

// Ordered by priority; a higher kind wins when several keywords appear.
const (
	scaleNone scaleKind = iota
	scaleCurrency
	scaleThousand
	scaleMillion
	scaleBillion
)

type scale struct {
	kind       scaleKind
	multiplier float64
	currency   float64 // 1 for toman or no currency word, 0.1 for rial
}

func (p *Parser) detectScale(words string) scale {
	sc := scale{kind: scaleNone, multiplier: 1, currency: 1}

	hasToman := lexicon.ContainsAny(words, p.lex.Scale.Toman)
	hasRial := lexicon.ContainsAny(words, p.lex.Scale.Rial)
	if hasRial {
		sc.currency = 0.1
	}
	if hasToman || hasRial {
		sc.kind = scaleCurrency
	}

	switch {
	case lexicon.ContainsAny(words, p.lex.Scale.Billion):
		sc.kind, sc.multiplier = scaleBillion, 1_000_000_000
	case lexicon.ContainsAny(words, p.lex.Scale.Million):
		sc.kind, sc.multiplier = scaleMillion, 1_000_000
	case lexicon.ContainsAny(words, p.lex.Scale.Thousand):
		sc.kind, sc.multiplier = scaleThousand, 1_000
	}
	return sc
}
