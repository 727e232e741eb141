package etag

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Generate creates a weak ETag for a schema entity from its update
// timestamp (epoch milliseconds).
func Generate(updated int64) string {
	sum := xxhash.Sum64String(strconv.FormatInt(updated, 10))
	return fmt.Sprintf("W/\"%016x\"", sum)
}

// Parse extracts the opaque value from a quoted ETag string.
// Handles both strong ("value") and weak (W/"value") ETags.
func Parse(etagHeader string) string {
	if etagHeader == "" {
		return ""
	}

	if len(etagHeader) > 2 && etagHeader[:2] == "W/" {
		etagHeader = etagHeader[2:]
	}

	if len(etagHeader) >= 2 && etagHeader[0] == '"' && etagHeader[len(etagHeader)-1] == '"' {
		return etagHeader[1 : len(etagHeader)-1]
	}

	return etagHeader
}

// Match checks the If-Match header against the current ETag.
// An empty header means no precondition; "*" matches any existing entity.
func Match(ifMatch string, currentETag string) bool {
	if ifMatch == "" {
		return true
	}

	if ifMatch == "*" {
		return currentETag != ""
	}

	return Parse(ifMatch) == Parse(currentETag)
}
