package edm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Edm.Double magnitude bounds. Nonzero values must stay strictly inside
// (doubleMinMagnitude, doubleMaxMagnitude) in absolute value.
const (
	doubleMaxMagnitude = 1.79e308
	doubleMinMagnitude = 2.229e-308
)

// Edm.Single digit budget: at most five integer digits and five
// fractional digits.
const singleDigitLimit = 5

// ValidateDefaultValue checks a DefaultValue against the declared type's
// domain. JSON numbers are expected as json.Number (decode with UseNumber)
// so that literal digits are preserved for digit-budget checks.
// A nil value is valid for every type regardless of Nullable.
func ValidateDefaultValue(kind Kind, value interface{}, bounds DateTimeBounds) error {
	if value == nil {
		return nil
	}

	switch kind {
	case KindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("cannot use %T as Edm.String default", value)
		}
		return nil

	case KindBoolean:
		return validateBooleanDefault(value)

	case KindInt32:
		return validateInt32Default(value)

	case KindDouble:
		return validateDoubleDefault(value)

	case KindSingle:
		return validateSingleDefault(value)

	case KindDateTime:
		return validateDateTimeDefault(value, bounds)

	case KindComplex:
		return fmt.Errorf("complex-typed properties accept only a null default")

	default:
		return fmt.Errorf("unknown type kind %d", kind)
	}
}

func validateBooleanDefault(value interface{}) error {
	switch v := value.(type) {
	case bool:
		return nil
	case string:
		if v == "true" || v == "false" {
			return nil
		}
		return fmt.Errorf("string %q is not a boolean literal", v)
	default:
		return fmt.Errorf("cannot use %T as Edm.Boolean default", value)
	}
}

func validateInt32Default(value interface{}) error {
	num, ok := value.(json.Number)
	if !ok {
		return fmt.Errorf("cannot use %T as Edm.Int32 default", value)
	}
	parsed, err := strconv.ParseInt(num.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("value %s is not a valid integer", num.String())
	}
	if parsed < math.MinInt32 || parsed > math.MaxInt32 {
		return fmt.Errorf("value %d out of range for Edm.Int32", parsed)
	}
	return nil
}

func validateDoubleDefault(value interface{}) error {
	num, ok := value.(json.Number)
	if !ok {
		return fmt.Errorf("cannot use %T as Edm.Double default", value)
	}
	parsed, err := strconv.ParseFloat(num.String(), 64)
	if err != nil {
		return fmt.Errorf("value %s out of range for Edm.Double", num.String())
	}
	if parsed == 0 {
		return nil
	}
	magnitude := math.Abs(parsed)
	if magnitude >= doubleMaxMagnitude || magnitude <= doubleMinMagnitude {
		return fmt.Errorf("value %s out of range for Edm.Double", num.String())
	}
	return nil
}

func validateSingleDefault(value interface{}) error {
	num, ok := value.(json.Number)
	if !ok {
		return fmt.Errorf("cannot use %T as Edm.Single default", value)
	}
	dec, err := decimal.NewFromString(num.String())
	if err != nil {
		return fmt.Errorf("value %s is not a valid number", num.String())
	}

	digits := dec.Abs().String()
	integerPart := digits
	fractionPart := ""
	if idx := strings.IndexByte(digits, '.'); idx >= 0 {
		integerPart = digits[:idx]
		fractionPart = digits[idx+1:]
	}
	if len(integerPart) > singleDigitLimit || len(fractionPart) > singleDigitLimit {
		return fmt.Errorf("value %s exceeds the Edm.Single digit budget (%d.%d)", num.String(), singleDigitLimit, singleDigitLimit)
	}
	return nil
}

func validateDateTimeDefault(value interface{}, bounds DateTimeBounds) error {
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("cannot use %T as Edm.DateTime default", value)
	}
	if str == SysUTCDateTime {
		return nil
	}
	ms, ok := ParseDateLiteral(str)
	if !ok {
		return fmt.Errorf("value %q is not a wrapped date literal", str)
	}
	if !bounds.Contains(ms) {
		return fmt.Errorf("value %d out of range for Edm.DateTime", ms)
	}
	return nil
}
