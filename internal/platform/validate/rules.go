// Package validate holds ozzo-validation rules shared by request types.
package validate

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequiredUUID rejects uuid.Nil. validation.Required treats any fixed-size
// array as present, so it cannot be used for uuid.UUID.
var RequiredUUID = validation.By(func(value interface{}) error {
	switch v := value.(type) {
	case uuid.UUID:
		if v == uuid.Nil {
			return errors.New("cannot be blank")
		}
	case *uuid.UUID:
		if v == nil || *v == uuid.Nil {
			return errors.New("cannot be blank")
		}
	}
	return nil
})

// Phone accepts 7 to 15 digits with an optional leading "+".
var Phone = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return errors.New("must be 7 to 15 digits")
	}
	return is.Digit.Validate(digits)
})

// NonNegativeMoney rejects negative decimal amounts.
var NonNegativeMoney = validation.By(func(value interface{}) error {
	var d decimal.Decimal
	switch v := value.(type) {
	case decimal.Decimal:
		d = v
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		d = *v
	default:
		return nil
	}
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
})

// Date accepts YYYY-MM-DD or an RFC 3339 timestamp.
var Date = validation.By(func(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return nil
		}
		s = *v
	}
	if s == "" {
		return nil
	}
	if _, err := ParseDate(s); err != nil {
		return errors.New("must be a date in YYYY-MM-DD format")
	}
	return nil
})

func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// NotBlank rejects strings that are empty after trimming spaces.
var NotBlank = validation.By(func(value interface{}) error {
	if s, _ := value.(string); strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})
