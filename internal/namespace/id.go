// Package namespace parses and formats the Namespace:Database:Table
// addressing scheme (C4) that every catalog entity and record id lives
// under. The shape generalizes the teacher's IssueID
// (project:branch-hash) parser to three colon-separated identifier
// components instead of two.
package namespace

import (
	"fmt"
	"regexp"
	"strings"
)

// Address is a fully-qualified Namespace:Database:Table path. Database
// and Table may be empty when the address only scopes to a namespace or
// namespace+database.
type Address struct {
	Namespace string
	Database  string
	Table     string
}

// String renders the canonical "ns:db:tb" form, omitting trailing empty
// components.
func (a Address) String() string {
	switch {
	case a.Table != "":
		return fmt.Sprintf("%s:%s:%s", a.Namespace, a.Database, a.Table)
	case a.Database != "":
		return fmt.Sprintf("%s:%s", a.Namespace, a.Database)
	default:
		return a.Namespace
	}
}

// ParseAddress parses "ns", "ns:db", or "ns:db:tb" into an Address. The
// first component is always the namespace; ctxNS and ctxDB are not
// consulted, so a component left out of input stays empty.
func ParseAddress(input, ctxNS, ctxDB string) (Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Address{}, fmt.Errorf("namespace: empty address")
	}
	parts := strings.Split(input, ":")
	switch len(parts) {
	case 1:
		if !isValidIdent(parts[0]) {
			return Address{}, fmt.Errorf("namespace: invalid identifier %q", parts[0])
		}
		return Address{Namespace: parts[0]}, nil
	case 2:
		if !isValidIdent(parts[0]) || !isValidIdent(parts[1]) {
			return Address{}, fmt.Errorf("namespace: invalid address %q", input)
		}
		return Address{Namespace: parts[0], Database: parts[1]}, nil
	case 3:
		for _, p := range parts {
			if !isValidIdent(p) {
				return Address{}, fmt.Errorf("namespace: invalid address %q", input)
			}
		}
		return Address{Namespace: parts[0], Database: parts[1], Table: parts[2]}, nil
	default:
		return Address{}, fmt.Errorf("namespace: too many components in %q", input)
	}
}

// Validate checks that every populated component is a well-formed
// identifier, required before the address is used to build a C1 key.
func (a Address) Validate() error {
	if a.Namespace == "" {
		return fmt.Errorf("namespace: namespace is required")
	}
	if !isValidIdent(a.Namespace) {
		return fmt.Errorf("namespace: invalid namespace %q", a.Namespace)
	}
	if a.Database != "" && !isValidIdent(a.Database) {
		return fmt.Errorf("namespace: invalid database %q", a.Database)
	}
	if a.Table != "" && !isValidIdent(a.Table) {
		return fmt.Errorf("namespace: invalid table %q", a.Table)
	}
	if a.Table != "" && a.Database == "" {
		return fmt.Errorf("namespace: table %q given without a database", a.Table)
	}
	return nil
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func isValidIdent(s string) bool {
	return identPattern.MatchString(s)
}
