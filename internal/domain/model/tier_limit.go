package model

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierCreator SubscriptionTier = "creator"
	TierStudio  SubscriptionTier = "studio"
)

// TierLimit is the quota configuration for one (tier, output class) pair.
// IsUnlimited short-circuits admission; ResetsMonthly decides whether
// usage is summed over the current calendar month or over the lifetime
// of the key.
type TierLimit struct {
	Tier          SubscriptionTier
	OutputClass   string
	MaxIterations int
	IsUnlimited   bool
	ResetsMonthly bool
}
