package main

import (
	"context"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"

	"paradox.game/internal/commitment"
	"paradox.game/internal/game"
	"paradox.game/internal/protocol"
	"paradox.game/internal/transport/ws"
)

func TestBotLoginAndMint(t *testing.T) {
	owner := common.HexToAddress("0x0000000000000000000000000000000000000001")
	g, err := game.New(game.Config{
		ID:                                "bot-test",
		TotalItems:                        9,
		ItemsPerLevel:                     3,
		MaxPurchasesWithoutAnswerPerLevel: 2,
		PricePerItem:                      big.NewInt(3),
		MaxPricePerItem:                   big.NewInt(8),
	}, owner, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if _, err := g.CreateLevel(owner, "ipfs://img/1", commitment.AnswerHash("achilles")); err != nil {
		t.Fatalf("create level: %v", err)
	}
	if err := g.SetActiveLevel(owner, 1); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := g.SetPaused(owner, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = g.Run(ctx) }()

	s, err := ws.NewServer(g, nil, ws.Options{}, nil)
	if err != nil {
		t.Fatalf("ws server: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	key, err := loadKey("")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	me := crypto.PubkeyToAddress(key.PublicKey)
	welcome, err := login(conn, key, "test")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if welcome.Address != me.Hex() || welcome.Game.ActiveLevel != 1 || welcome.Game.PricePerItem != "3" {
		t.Fatalf("welcome: %+v", welcome)
	}

	call, err := mintCall(welcome.Game, me, 1, "achilles", 2)
	if err != nil {
		t.Fatalf("mintCall: %v", err)
	}
	if call.Value != "6" {
		t.Fatalf("answer tier value=%s want 6", call.Value)
	}
	res, err := roundTrip(conn, call)
	if err != nil {
		t.Fatalf("roundTrip: %v", err)
	}
	if !res.OK || len(res.TokenIDs) != 2 || res.Amount != "6" {
		t.Fatalf("result: %+v", res)
	}

	call, _ = mintCall(welcome.Game, me, 1, "", 1)
	if call.Value != "8" || call.Params.Guess != "" {
		t.Fatalf("without-answer call: %+v", call)
	}
	// The per-user cap defaults to the without-answer cap of 2.
	res, err = roundTrip(conn, call)
	if err != nil {
		t.Fatalf("roundTrip: %v", err)
	}
	if res.OK || res.Code != protocol.ErrNoSupply {
		t.Fatalf("third mint: %+v", res)
	}
}

func TestLoadKey(t *testing.T) {
	k, err := loadKey("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	if err != nil {
		t.Fatalf("loadKey: %v", err)
	}
	if got := crypto.PubkeyToAddress(k.PublicKey).Hex(); got != "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23" {
		t.Fatalf("address=%s", got)
	}
	if _, err := loadKey("zz"); err == nil {
		t.Fatalf("expected error for bad key")
	}
}
