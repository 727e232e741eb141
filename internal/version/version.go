// Package version negotiates the data service protocol version between
// client and server. Requests may declare the version they speak with
// DataServiceVersion and cap what they accept with MaxDataServiceVersion;
// responses always carry the version they were rendered in.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a data service protocol version.
type Version struct {
	Major int
	Minor int
}

// The service renders responses in version 2.0 and accepts requests
// declared as 1.0 or 2.0.
var (
	Default   = Version{Major: 2, Minor: 0}
	supported = []Version{{Major: 2, Minor: 0}, {Major: 1, Minor: 0}}
)

// String returns the "Major.Minor" header form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtMost reports whether v is less than or equal to other.
func (v Version) AtMost(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor <= other.Minor
}

// Parse reads a header value like "2.0". The minor component may be
// omitted ("2" parses as 2.0). Anything else is an error.
func Parse(raw string) (Version, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	parts := strings.Split(raw, ".")
	if len(parts) > 2 {
		return Version{}, fmt.Errorf("invalid version %q", raw)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return Version{}, fmt.Errorf("invalid version %q", raw)
	}
	minor := 0
	if len(parts) == 2 {
		minor, err = strconv.Atoi(parts[1])
		if err != nil || minor < 0 {
			return Version{}, fmt.Errorf("invalid version %q", raw)
		}
	}
	return Version{Major: major, Minor: minor}, nil
}

// Negotiate picks the response version from the request headers.
//
// A declared DataServiceVersion must parse and be one the service
// accepts. MaxDataServiceVersion, when present, caps the response
// version; the highest supported version at or under the cap wins.
// Either header failing these rules is a negotiation error, and the
// caller rejects the request.
func Negotiate(dataServiceVersion, maxDataServiceVersion string) (Version, error) {
	if dataServiceVersion != "" {
		declared, err := Parse(dataServiceVersion)
		if err != nil {
			return Version{}, err
		}
		if !isSupported(declared) {
			return Version{}, fmt.Errorf("unsupported version %s", declared)
		}
	}

	if maxDataServiceVersion == "" {
		return Default, nil
	}
	ceiling, err := Parse(maxDataServiceVersion)
	if err != nil {
		return Version{}, err
	}
	for _, v := range supported {
		if v.AtMost(ceiling) {
			return v, nil
		}
	}
	return Version{}, fmt.Errorf("no supported version at or under %s", ceiling)
}

func isSupported(v Version) bool {
	for _, s := range supported {
		if v == s {
			return true
		}
	}
	return false
}
