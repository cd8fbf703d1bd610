package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"cover-studio/internal/domain"
)

// User carries only what admission and prompt building need: the
// subscription tier and an optional style anchor. Identity and session
// handling live outside this service.
type User struct {
	ID          string
	Email       string
	Tier        SubscriptionTier
	StyleAnchor string // preferred prompt anchor; empty means use the default
	CreatedAt   time.Time
}

func NewUser(id, email string, tier SubscriptionTier) (*User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = ulid.Make().String()
	}
	if tier == "" {
		tier = TierFree
	}
	return &User{
		ID:        id,
		Email:     email,
		Tier:      tier,
		CreatedAt: time.Now(),
	}, nil
}
