package models

import (
	"time"

	"github.com/google/uuid"
)

// GameType is the product category of a game
type GameType string

const (
	GameTypeBingo GameType = "Bingo"
	GameTypeSlot  GameType = "Slot"
	GameTypeTable GameType = "Table"
	GameTypeLive  GameType = "Live"
)

// GameTypes lists every category in schema order
var GameTypes = []GameType{GameTypeBingo, GameTypeSlot, GameTypeTable, GameTypeLive}

// Valid reports whether t is a known game category
func (t GameType) Valid() bool {
	switch t {
	case GameTypeBingo, GameTypeSlot, GameTypeTable, GameTypeLive:
		return true
	}
	return false
}

// GameStatus is the operational state of a game
type GameStatus string

const (
	GameStatusActive      GameStatus = "Active"
	GameStatusMaintenance GameStatus = "Maintenance"
)

// Game is a playable product. Its statistics are always derived from the ledger.
type Game struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Type      GameType   `db:"type" json:"type"`
	Status    GameStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}
