package model

import "time"

// AdminGrant is an administrative quota override. While unexpired it
// replaces the user's tier limit with a fixed monthly allowance per
// output class, independent of subscription state.
type AdminGrant struct {
	ID        string
	UserID    string
	GrantType string // e.g. "support", "partner", "internal"
	Allowance int    // iterations per output class per month
	ExpiresAt *time.Time
	GrantedBy string
	CreatedAt time.Time
}

// ActiveAt reports whether the grant applies at the given instant.
func (g *AdminGrant) ActiveAt(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}
