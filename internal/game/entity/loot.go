// Package entity — loot table schema and loot generation.
package entity

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cory-johannsen/duskfall/internal/game/dice"
)

// ItemDrop defines a single item entry in a loot table with a drop chance.
type ItemDrop struct {
	ItemID string  `yaml:"item"`
	Chance float64 `yaml:"chance"`
	MinQty int     `yaml:"min_qty"`
	MaxQty int     `yaml:"max_qty"`
}

// LootTable defines the possible loot drops for an agent template.
type LootTable struct {
	Items []ItemDrop `yaml:"items"`
}

// Validate checks that the loot table satisfies its invariants.
//
// Precondition: lt must not be nil.
// Postcondition: Returns nil iff all item constraints hold; an empty loot
// table is valid.
func (lt *LootTable) Validate() error {
	for i, item := range lt.Items {
		if item.ItemID == "" {
			return fmt.Errorf("loot table: item[%d] must have a non-empty item id", i)
		}
		if item.Chance <= 0 || item.Chance > 1.0 {
			return fmt.Errorf("loot table: item[%d] chance must be in (0, 1.0], got %f", i, item.Chance)
		}
		if item.MinQty < 1 {
			return fmt.Errorf("loot table: item[%d] min_qty must be >= 1, got %d", i, item.MinQty)
		}
		if item.MinQty > item.MaxQty {
			return fmt.Errorf("loot table: item[%d] min_qty (%d) must be <= max_qty (%d)", i, item.MinQty, item.MaxQty)
		}
	}
	return nil
}

// LootItem represents a single item instance in a loot result.
type LootItem struct {
	ItemID     string
	InstanceID string
	Quantity   int
}

// GenerateLoot rolls loot from the given LootTable using src.
//
// Precondition: lt must have passed Validate(); src must be non-nil.
// Postcondition: Each item's Quantity is in [MinQty, MaxQty] for items that
// pass the chance roll.
func GenerateLoot(lt LootTable, src dice.Source) []LootItem {
	var items []LootItem
	for _, item := range lt.Items {
		if !dice.Chance(item.Chance, src) {
			continue
		}
		qty := item.MinQty
		spread := item.MaxQty - item.MinQty
		if spread > 0 {
			qty += src.Intn(spread + 1)
		}
		items = append(items, LootItem{
			ItemID:     item.ItemID,
			InstanceID: uuid.New().String(),
			Quantity:   qty,
		})
	}
	return items
}
