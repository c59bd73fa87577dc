package domain

import "github.com/shopspring/decimal"

// Product is a purchasable gacha pack from the catalog.
type Product struct {
	ID           string
	Name         string
	PoolID       string
	UnitPrice    decimal.Decimal
	PerUserLimit int
	Active       bool
}

// OwnedPlayer is one granted item in a buyer's holdings, tagged with the
// order and draw that produced it so retries can be detected.
type OwnedPlayer struct {
	ID       string
	BuyerID  string
	PlayerID string
	OrderID  string
	DrawID   string
}

// GachaDraw records the outcome of the randomized allocation for an order.
// At most one draw exists per order.
type GachaDraw struct {
	ID        string
	OrderID   string
	PoolID    string
	Seed      string
	PlayerIDs []string
}
