// Package progress persists per-user game state: kitchen supplies and
// station upgrades, saved and loaded as one blob by the game client.
package progress

import "context"

// Supplies is the ingredient and money inventory.
type Supplies struct {
	Tomato  int64 `json:"tomato"`
	Lettuce int64 `json:"lettuce"`
	Meat    int64 `json:"meat"`
	Potato  int64 `json:"potato"`
	Bread   int64 `json:"bread"`
	Money   int64 `json:"money"`
}

// Upgrades is the per-station upgrade levels.
type Upgrades struct {
	Fryer   int64 `json:"fryer"`
	Grill   int64 `json:"grill"`
	Cutting int64 `json:"cutting"`
}

// Repository is the game-state persistence port.
type Repository interface {
	// Save upserts both sections for a user in one call.
	Save(ctx context.Context, userID int64, s Supplies, u Upgrades) error
	// Load returns the stored state; users that never saved get zero values.
	Load(ctx context.Context, userID int64) (Supplies, Upgrades, error)
}
