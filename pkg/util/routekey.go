package util

import (
	"fmt"
	"strings"
)

// MakeRouteKey composes the canonical route identifier {zip}-{carrierRoute}
// used as the aggregate's primary key. The carrier route code is upper-cased
// so "c001" and "C001" map to the same aggregate.
func MakeRouteKey(zip, carrierRoute string) string {
	return strings.TrimSpace(zip) + "-" + strings.ToUpper(strings.TrimSpace(carrierRoute))
}

// SplitRouteKey decomposes a route key back into its zip and carrier route
// parts.
func SplitRouteKey(key string) (zip, carrierRoute string, err error) {
	zip, carrierRoute, ok := strings.Cut(key, "-")
	if !ok || zip == "" || carrierRoute == "" {
		return "", "", fmt.Errorf("malformed route key %q, want {zip}-{carrierRoute}", key)
	}
	return zip, carrierRoute, nil
}
