package tuning

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"gopkg.in/yaml.v3"

	"paradox.game/internal/game"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	GameID  string `yaml:"game_id" json:"game_id"`
	BaseURI string `yaml:"base_uri" json:"base_uri"`

	TotalItems                        uint64 `yaml:"total_items" json:"total_items"`
	ItemsPerLevel                     uint64 `yaml:"items_per_level" json:"items_per_level"`
	MaxPurchasesWithoutAnswerPerLevel uint64 `yaml:"max_purchases_without_answer_per_level" json:"max_purchases_without_answer_per_level"`
	MaxMintsPerUserPerLevel           uint64 `yaml:"max_mints_per_user_per_level" json:"max_mints_per_user_per_level"`

	// Wei amounts, decimal or 0x-hex.
	PricePerItem    string `yaml:"price_per_item" json:"price_per_item"`
	MaxPricePerItem string `yaml:"max_price_per_item" json:"max_price_per_item"`

	// ProgramAccounts are refused by mint.
	ProgramAccounts []string `yaml:"program_accounts" json:"program_accounts"`

	SnapshotEveryTxs int `yaml:"snapshot_every_txs" json:"snapshot_every_txs"`

	RateLimits RateLimits `yaml:"rate_limits" json:"rate_limits"`
}

// RateLimits are per websocket connection.
type RateLimits struct {
	CallsPerSecond float64 `yaml:"calls_per_second" json:"calls_per_second"`
	CallBurst      int     `yaml:"call_burst" json:"call_burst"`
}

// Defaults mirror the launch deployment.
func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:                   "1.0",
		GameID:                            "paradox",
		BaseURI:                           "http://example.com/",
		TotalItems:                        4500,
		ItemsPerLevel:                     300,
		MaxPurchasesWithoutAnswerPerLevel: 100,
		PricePerItem:                      "10000000000000000",
		MaxPricePerItem:                   "50000000000000000",
		SnapshotEveryTxs:                  500,
		RateLimits: RateLimits{
			CallsPerSecond: 5,
			CallBurst:      10,
		},
	}
}

// Load reads path over Defaults. A missing file yields Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) GameConfig() (game.Config, error) {
	price, ok := math.ParseBig256(strings.TrimSpace(t.PricePerItem))
	if !ok {
		return game.Config{}, fmt.Errorf("tuning: bad price_per_item %q", t.PricePerItem)
	}
	maxPrice, ok := math.ParseBig256(strings.TrimSpace(t.MaxPricePerItem))
	if !ok {
		return game.Config{}, fmt.Errorf("tuning: bad max_price_per_item %q", t.MaxPricePerItem)
	}
	return game.Config{
		ID:                                t.GameID,
		BaseURI:                           t.BaseURI,
		TotalItems:                        t.TotalItems,
		ItemsPerLevel:                     t.ItemsPerLevel,
		MaxPurchasesWithoutAnswerPerLevel: t.MaxPurchasesWithoutAnswerPerLevel,
		MaxMintsPerUserPerLevel:           t.MaxMintsPerUserPerLevel,
		PricePerItem:                      price,
		MaxPricePerItem:                   maxPrice,
		SnapshotEveryTxs:                  t.SnapshotEveryTxs,
	}, nil
}

func (t Tuning) Classifier() (game.StaticClassifier, error) {
	programs := make([]common.Address, 0, len(t.ProgramAccounts))
	for _, a := range t.ProgramAccounts {
		a = strings.TrimSpace(a)
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("tuning: program account %q is not an address", a)
		}
		programs = append(programs, common.HexToAddress(a))
	}
	return game.NewStaticClassifier(programs), nil
}
