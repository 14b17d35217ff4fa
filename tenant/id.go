package tenant

import (
	"regexp"
	"strings"
)

// ID identifies a tenant. It is letter-led, contains only letters, digits and
// dashes, and is at least three characters long.
type ID string

// String returns the identifier as a plain string.
func (id ID) String() string { return string(id) }

const minIDLength = 3

var reTenantName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

// Valid reports whether s satisfies the tenant identifier grammar.
func Valid(s string) bool {
	return len(s) >= minIDLength && reTenantName.MatchString(s)
}

// Parse validates s as a tenant identifier.
func Parse(s string) (ID, error) {
	if !Valid(s) {
		return "", ErrMalformedTenant
	}
	return ID(s), nil
}

// Extract returns the tenant named by the first non-empty segment of path.
// found is false when the path has no segments at all (e.g. "/"), in which
// case no tenant is asserted and err is nil.
func Extract(path string) (id ID, found bool, err error) {
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		id, err = Parse(seg)
		return id, true, err
	}
	return "", false, nil
}
