package edm

import (
	"fmt"
	"regexp"
	"strconv"
)

// SysUTCDateTime is the sentinel DefaultValue literal meaning
// "server-assigned current time on each write".
const SysUTCDateTime = "SYSUTCDATETIME()"

// Default epoch-millisecond bounds for Edm.DateTime values
// (0001-01-01T00:00:00Z is below the representable floor used here;
// the range matches 1753-01-01 through 9999-12-31T23:59:59.999Z).
const (
	DefaultDateTimeMin int64 = -6847804800000
	DefaultDateTimeMax int64 = 253402300799999
)

// DateTimeBounds is the inclusive epoch-millisecond range accepted for
// Edm.DateTime literals.
type DateTimeBounds struct {
	Min int64
	Max int64
}

// DefaultDateTimeBounds returns the service-default DateTime range.
func DefaultDateTimeBounds() DateTimeBounds {
	return DateTimeBounds{Min: DefaultDateTimeMin, Max: DefaultDateTimeMax}
}

var dateLiteralPattern = regexp.MustCompile(`^/Date\((-?[0-9]+)\)/$`)

// ParseDateLiteral parses a wrapped OData date literal "/Date(N)/" and
// returns N. A bare numeric or a malformed wrapper does not parse.
func ParseDateLiteral(value string) (int64, bool) {
	match := dateLiteralPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, false
	}
	ms, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

// FormatDateLiteral renders epoch milliseconds in the wrapped literal form.
func FormatDateLiteral(ms int64) string {
	return fmt.Sprintf("/Date(%d)/", ms)
}

// Contains reports whether ms falls inside the bounds, inclusive.
func (b DateTimeBounds) Contains(ms int64) bool {
	return ms >= b.Min && ms <= b.Max
}
