package domain

import (
	"fmt"
	"slices"
	"strings"
)

type Role string

const (
	RoleUser     Role = "USER"
	RoleProvider Role = "PROVIDER"
	RoleAdmin    Role = "ADMIN"
	// RoleRequester is only found on old user rows.
	RoleRequester Role = "REQUESTER"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleUser, RoleProvider, RoleAdmin, RoleRequester:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Session is the authenticated caller of a single request. It is built by the
// transport layer and passed explicitly into every service call.
type Session struct {
	ID    int64  `json:"id"`
	Roles []Role `json:"roles"`
}

func (s Session) HasRole(r Role) bool { return slices.Contains(s.Roles, r) }

func (s Session) IsAdmin() bool { return s.HasRole(RoleAdmin) }

// HasAnyRole reports whether the session holds at least one of roles.
func (s Session) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if s.HasRole(r) {
			return true
		}
	}
	return false
}

// Kind names a resource type guarded by the visibility policy.
type Kind string

const (
	KindAuction  Kind = "auction"
	KindLot      Kind = "lot"
	KindBid      Kind = "bid"
	KindContract Kind = "contract"
	KindInvoice  Kind = "invoice"
	KindReview   Kind = "review"
	KindCompany  Kind = "company"
	KindUser     Kind = "user"
)
