package game

import (
	"fmt"
	"math/big"
)

type Config struct {
	ID      string
	BaseURI string

	TotalItems                        uint64
	ItemsPerLevel                     uint64
	MaxPurchasesWithoutAnswerPerLevel uint64
	// MaxMintsPerUserPerLevel caps one identity's mints at a level across both tiers.
	// Zero means "same as MaxPurchasesWithoutAnswerPerLevel".
	MaxMintsPerUserPerLevel uint64

	// Prices in wei.
	PricePerItem    *big.Int
	MaxPricePerItem *big.Int

	// Operational parameters. Not part of the game rules.
	SnapshotEveryTxs int
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "paradox"
	}
	if c.MaxMintsPerUserPerLevel == 0 {
		c.MaxMintsPerUserPerLevel = c.MaxPurchasesWithoutAnswerPerLevel
	}
	if c.PricePerItem == nil {
		c.PricePerItem = new(big.Int)
	}
	if c.MaxPricePerItem == nil {
		c.MaxPricePerItem = new(big.Int)
	}
	if c.SnapshotEveryTxs <= 0 {
		c.SnapshotEveryTxs = 500
	}
}

func (c Config) validate() error {
	if c.TotalItems == 0 {
		return fmt.Errorf("total items must be positive")
	}
	if c.ItemsPerLevel == 0 {
		return fmt.Errorf("items per level must be positive")
	}
	if c.MaxPurchasesWithoutAnswerPerLevel == 0 {
		return fmt.Errorf("max purchases without answer per level must be positive")
	}
	if c.MaxMintsPerUserPerLevel == 0 {
		return fmt.Errorf("max mints per user per level must be positive")
	}
	if c.PricePerItem.Sign() < 0 || c.MaxPricePerItem.Sign() < 0 {
		return fmt.Errorf("prices must not be negative")
	}
	if c.PricePerItem.Cmp(c.MaxPricePerItem) > 0 {
		return fmt.Errorf("price per item %s exceeds max price per item %s", c.PricePerItem, c.MaxPricePerItem)
	}
	return nil
}

func (c Config) limits() Limits {
	return Limits{
		TotalItems:               c.TotalItems,
		ItemsPerLevel:            c.ItemsPerLevel,
		MaxWithoutAnswerPerLevel: c.MaxPurchasesWithoutAnswerPerLevel,
		MaxPerUserPerLevel:       c.MaxMintsPerUserPerLevel,
	}
}
