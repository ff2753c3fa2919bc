package models

// MoneyStatus is the outcome of parsing a monetary text fragment.
type MoneyStatus string

// Only MoneyOK values take part in aggregation. The rejected statuses must be
// shown as unknown or approximate, never coerced to a number.
const (
	MoneyOK             MoneyStatus = "ok"
	MoneyZero           MoneyStatus = "zero"
	MoneyUnknown        MoneyStatus = "unknown"
	MoneyInvalid        MoneyStatus = "invalid"
	MoneyAmbiguousUnit  MoneyStatus = "ambiguous_unit"
	MoneyAssetOrNonCash MoneyStatus = "asset_or_non_cash"
)

// CanonicalMoneyUnit is the unit every parsed amount is expressed in.
const CanonicalMoneyUnit = "toman"

// String returns the string representation of a MoneyStatus.
func (s MoneyStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known parse outcome.
func (s MoneyStatus) IsValid() bool {
	switch s {
	case MoneyOK, MoneyZero, MoneyUnknown, MoneyInvalid, MoneyAmbiguousUnit, MoneyAssetOrNonCash:
		return true
	default:
		return false
	}
}

// MonetaryValue is a parsed amount in the canonical unit. For single values
// Min and Max equal Value; for ranges Value is the midpoint.
type MonetaryValue struct {
	Status  MoneyStatus `json:"status"`
	Value   int64       `json:"value"`
	Min     int64       `json:"min,omitempty"`
	Max     int64       `json:"max,omitempty"`
	IsRange bool        `json:"is_range,omitempty"`
	Unit    string      `json:"unit,omitempty"`
	Note    string      `json:"note,omitempty"`
}

// Usable reports whether the value may be aggregated.
func (v MonetaryValue) Usable() bool {
	return v.Status == MoneyOK
}
