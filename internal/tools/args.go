package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ziadkadry99/hostkb/internal/apperr"
)

// decodeArgs strictly decodes tool arguments into v. Unknown fields and
// trailing data are validation errors; empty input decodes as {}.
func decodeArgs(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("arguments", "%v", err)
	}
	if dec.More() {
		return apperr.Validation("arguments", "unexpected data after arguments")
	}
	return nil
}

// wholeNumber is an integer argument. Models send integers as 3, 3.0 or "3";
// all of those decode, while fractions and non-numbers are rejected.
type wholeNumber int64

func (n *wholeNumber) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = wholeNumber(i)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return fmt.Errorf("%s is not a number", b)
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return fmt.Errorf("%s is not a whole number", b)
	}
	*n = wholeNumber(f)
	return nil
}
