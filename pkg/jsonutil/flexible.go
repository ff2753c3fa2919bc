// Package jsonutil holds lenient JSON scalar decoding for request bodies
// written by chat clients, which often quote numbers or send numbers where
// strings are expected.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/daramad/daramad-engine/pkg/textnorm"
)

// flexibleString converts a json.RawMessage to a string, accepting
// numbers or booleans in place of strings. Returns empty string for null/empty.
func flexibleString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return num.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	return string(raw)
}

// FlexibleID is an int64 identifier that decodes from a JSON number or a
// numeric string ("12", "۱۲"). Null and "" decode to zero.
type FlexibleID int64

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(flexibleString(data))
	if s == "" {
		*id = 0
		return nil
	}
	s = strings.Map(textnorm.ToASCIIDigit, s)

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", s)
	}
	if v < 0 {
		return fmt.Errorf("invalid id %d", v)
	}
	*id = FlexibleID(v)
	return nil
}

// Ptr returns nil for the zero id and a pointer to the value otherwise.
func (id FlexibleID) Ptr() *int64 {
	if id == 0 {
		return nil
	}
	v := int64(id)
	return &v
}
