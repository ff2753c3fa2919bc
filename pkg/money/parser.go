// Package money parses colloquial monetary answers ("۱۰ میلیون تومن",
// "سه تا پنج میلیون", bare digits) into integer toman. Fragments whose scale
// cannot be established are rejected as ambiguous instead of guessed.
package money

import (
	"math"
	"regexp"
	"strings"

	"github.com/daramad/daramad-engine/pkg/lexicon"
	"github.com/daramad/daramad-engine/pkg/models"
	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// Profile selects the validation rules for a field.
type Profile string

const (
	// ProfileIncome rejects zero and unit-less giant numbers.
	ProfileIncome Profile = "income"
	// ProfileInvestment accepts explicit zero and non-cash answers.
	ProfileInvestment Profile = "investment"
)

// IsValid returns true if the profile is known.
func (p Profile) IsValid() bool {
	return p == ProfileIncome || p == ProfileInvestment
}

const (
	DefaultLargeBareThreshold = 100_000
	DefaultSanityCeiling      = 2_000_000_000
)

// Options controls a single parse.
type Options struct {
	Profile Profile
	// LargeBareThreshold is the smallest unit-less number taken as toman.
	LargeBareThreshold float64
	// SanityCeiling bounds plausible amounts; values above twice the ceiling
	// need an explicit billion keyword.
	SanityCeiling float64
}

// DefaultOptions returns options with the default thresholds.
func DefaultOptions(profile Profile) Options {
	return Options{
		Profile:            profile,
		LargeBareThreshold: DefaultLargeBareThreshold,
		SanityCeiling:      DefaultSanityCeiling,
	}
}

func (o Options) withDefaults() Options {
	if !o.Profile.IsValid() {
		o.Profile = ProfileIncome
	}
	if o.LargeBareThreshold <= 0 {
		o.LargeBareThreshold = DefaultLargeBareThreshold
	}
	if o.SanityCeiling <= 0 {
		o.SanityCeiling = DefaultSanityCeiling
	}
	return o
}

var (
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	digitLetterPair = regexp.MustCompile(`(\d)(\pL)`)
	letterDigitPair = regexp.MustCompile(`(\pL)(\d)`)
	zeroPattern     = regexp.MustCompile(`^0+(?:[.٫]0+)?$`)
)

// Parser converts text fragments to monetary values. It is safe for
// concurrent use.
type Parser struct {
	lex *lexicon.Lexicon
}

// NewParser creates a parser over the given lexicon. A nil lexicon selects
// the embedded default.
func NewParser(lex *lexicon.Lexicon) *Parser {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &Parser{lex: lex}
}

// fragment is a prepared piece of input: text keeps separators needed for
// decimals, words is the query-normalized form used for keyword checks.
type fragment struct {
	text  string
	words string
}

func prepare(raw string) fragment {
	s := tagPattern.ReplaceAllString(raw, " ")
	s = strings.ToLower(textnorm.Normalize(s))
	s = digitLetterPair.ReplaceAllString(s, "$1 $2")
	s = letterDigitPair.ReplaceAllString(s, "$1 $2")
	s = strings.NewReplacer("–", " - ", "—", " - ").Replace(s)
	s = textnorm.Normalize(s)
	return fragment{text: s, words: textnorm.NormalizeQuery(s)}
}

// Parse converts raw text to a monetary value. Ranges ("X تا Y") are tried
// before single amounts. Parse never fails; unusable input is reported
// through the status.
func (p *Parser) Parse(raw string, opts Options) models.MonetaryValue {
	opts = opts.withDefaults()
	frag := prepare(raw)

	if v, done := p.screen(frag, opts); done {
		return v
	}
	if v, ok := p.parseRange(frag, opts); ok {
		return v
	}
	return p.parseSingle(frag, opts)
}

// ParseSingle parses raw text as one amount without range detection.
func (p *Parser) ParseSingle(raw string, opts Options) models.MonetaryValue {
	opts = opts.withDefaults()
	frag := prepare(raw)
	if v, done := p.screen(frag, opts); done {
		return v
	}
	return p.parseSingle(frag, opts)
}

// screen handles the answers that carry no amount: empty, unknown and zero.
func (p *Parser) screen(frag fragment, opts Options) (models.MonetaryValue, bool) {
	if frag.words == "" {
		return models.MonetaryValue{Status: models.MoneyUnknown, Note: "empty"}, true
	}
	if lexicon.ContainsAny(frag.words, p.lex.UnknownKeywords) {
		return models.MonetaryValue{Status: models.MoneyUnknown, Note: "answer states the amount is unknown"}, true
	}
	compact := strings.ReplaceAll(frag.text, " ", "")
	if zeroPattern.MatchString(compact) || lexicon.ContainsAny(frag.words, p.lex.ZeroKeywords) {
		return zeroValue(opts), true
	}
	return models.MonetaryValue{}, false
}

func zeroValue(opts Options) models.MonetaryValue {
	if opts.Profile == ProfileInvestment {
		return models.MonetaryValue{Status: models.MoneyZero, Value: 0, Unit: models.CanonicalMoneyUnit}
	}
	return models.MonetaryValue{Status: models.MoneyInvalid, Note: "zero income is not allowed"}
}

func (p *Parser) parseSingle(frag fragment, opts Options) models.MonetaryValue {
	sc := p.detectScale(frag.words)
	if !p.hasNumber(frag) {
		if opts.Profile == ProfileInvestment && lexicon.ContainsAny(frag.words, p.lex.NonCashKeywords) {
			return models.MonetaryValue{Status: models.MoneyAssetOrNonCash, Note: "non-cash answer"}
		}
		return models.MonetaryValue{Status: models.MoneyInvalid, Note: "no number found"}
	}
	if opts.Profile == ProfileInvestment && sc.kind < scaleCurrency &&
		lexicon.ContainsAny(frag.words, p.lex.NonCashKeywords) {
		return models.MonetaryValue{Status: models.MoneyAssetOrNonCash, Note: "non-cash answer"}
	}

	value, billion, status, note := p.amount(frag, sc, opts)
	if status != models.MoneyOK {
		return models.MonetaryValue{Status: status, Note: note}
	}
	if value == 0 {
		return zeroValue(opts)
	}
	if exceedsCeiling(value, billion, opts) {
		return models.MonetaryValue{Status: models.MoneyAmbiguousUnit, Note: "amount exceeds sanity ceiling without a billion keyword"}
	}

	v := int64(math.Round(value))
	return models.MonetaryValue{
		Status: models.MoneyOK,
		Value:  v,
		Min:    v,
		Max:    v,
		Unit:   models.CanonicalMoneyUnit,
	}
}

// amount evaluates a fragment under sc. Chained scale words are summed and
// carry their own scales. The boolean reports a billion keyword.
func (p *Parser) amount(frag fragment, sc scale, opts Options) (float64, bool, models.MoneyStatus, string) {
	if c, ok := p.readChain(frag.text); ok {
		if c.note != "" {
			return 0, false, models.MoneyAmbiguousUnit, c.note
		}
		return c.value, c.billion, models.MoneyOK, ""
	}
	n, ok := p.extractNumber(frag)
	if !ok {
		return 0, false, models.MoneyInvalid, "no number found"
	}
	value, status, note := p.apply(n, sc, opts)
	return value, sc.kind == scaleBillion, status, note
}

// apply turns a bare number into toman under the detected scale.
func (p *Parser) apply(n float64, sc scale, opts Options) (float64, models.MoneyStatus, string) {
	switch sc.kind {
	case scaleBillion, scaleMillion, scaleThousand:
		return n * sc.multiplier * sc.currency, models.MoneyOK, ""
	case scaleCurrency:
		value := n * sc.currency
		if opts.Profile == ProfileIncome && value < opts.LargeBareThreshold {
			return 0, models.MoneyAmbiguousUnit, "currency given but amount is too small to be an income"
		}
		return value, models.MoneyOK, ""
	default:
		if n >= opts.LargeBareThreshold {
			return n, models.MoneyOK, ""
		}
		return 0, models.MoneyAmbiguousUnit, "number has no unit"
	}
}

// exceedsCeiling applies to single income values. Investments can
// legitimately run to billions.
func exceedsCeiling(value float64, billion bool, opts Options) bool {
	return opts.Profile == ProfileIncome && value > 2*opts.SanityCeiling && !billion
}
