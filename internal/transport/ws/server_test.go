package ws

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"

	"paradox.game/internal/commitment"
	"paradox.game/internal/game"
	"paradox.game/internal/protocol"
)

type harness struct {
	g   *game.Game
	srv *httptest.Server
}

func newHarness(t *testing.T, owner common.Address, opts Options, programs ...common.Address) *harness {
	t.Helper()
	g, err := game.New(game.Config{
		ID:                                "ws-test",
		TotalItems:                        9,
		ItemsPerLevel:                     3,
		MaxPurchasesWithoutAnswerPerLevel: 2,
	}, owner, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = g.Run(ctx) }()

	s, err := NewServer(g, game.NewStaticClassifier(programs), opts, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &harness{g: g, srv: srv}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv[T any](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	var v T
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&v); err != nil {
		t.Fatalf("read: %v", err)
	}
	return v
}

func login(t *testing.T, conn *websocket.Conn, key *ecdsa.PrivateKey) protocol.WelcomeMsg {
	t.Helper()
	addr := crypto.PubkeyToAddress(key.PublicKey)
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Address: addr.Hex()})
	ch := recv[protocol.ChallengeMsg](t, conn)
	if ch.Type != protocol.TypeChallenge || ch.Nonce == "" {
		t.Fatalf("challenge=%+v", ch)
	}
	sig, err := SignLogin(ch.Nonce, func(h []byte) ([]byte, error) { return crypto.Sign(h, key) })
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	send(t, conn, protocol.AuthMsg{Type: protocol.TypeAuth, ProtocolVersion: protocol.Version, Signature: sig})
	return recv[protocol.WelcomeMsg](t, conn)
}

func call(method string, reqID string, params protocol.CallParams, value string) protocol.CallMsg {
	return protocol.CallMsg{
		Type:            protocol.TypeCall,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Method:          method,
		Params:          params,
		Value:           value,
	}
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	return k
}

func TestServer_LoginAndCalls(t *testing.T) {
	ownerKey, playerKey := mustKey(t), mustKey(t)
	owner := crypto.PubkeyToAddress(ownerKey.PublicKey)
	player := crypto.PubkeyToAddress(playerKey.PublicKey)
	h := newHarness(t, owner, Options{})

	oc := h.dial(t)
	w := login(t, oc, ownerKey)
	if w.Address != owner.Hex() || w.GameID != "ws-test" || !w.Game.Paused || w.AccountKind != "human" {
		t.Fatalf("welcome=%+v", w)
	}

	send(t, oc, call(protocol.MethodCreateLevel, "R1", protocol.CallParams{ImageURL: "img", AnswerHash: commitment.AnswerHash("x")}, ""))
	if res := recv[protocol.ResultMsg](t, oc); !res.OK || res.ReqID != "R1" || res.Seq != 0 {
		t.Fatalf("create level: %+v", res)
	}
	send(t, oc, call(protocol.MethodSetPaused, "R2", protocol.CallParams{Flag: false}, ""))
	if res := recv[protocol.ResultMsg](t, oc); !res.OK {
		t.Fatalf("unpause: %+v", res)
	}

	pc := h.dial(t)
	login(t, pc, playerKey)

	send(t, pc, call(protocol.MethodSetPaused, "P1", protocol.CallParams{Flag: true}, ""))
	if res := recv[protocol.ResultMsg](t, pc); res.OK || res.Code != protocol.ErrNoPermission {
		t.Fatalf("player pause: %+v", res)
	}

	guess := commitment.Guess("x", player).Hex()
	send(t, pc, call(protocol.MethodMint, "P2", protocol.CallParams{LevelID: 1, Guess: guess, Quantity: 1}, "0"))
	res := recv[protocol.ResultMsg](t, pc)
	if !res.OK || len(res.TokenIDs) != 1 || res.TokenIDs[0] != 0 || res.Amount != "0" {
		t.Fatalf("mint: %+v", res)
	}

	// The owner replaying the player's guess gets nothing.
	send(t, oc, call(protocol.MethodMint, "R3", protocol.CallParams{LevelID: 1, Guess: guess, Quantity: 1}, ""))
	if res := recv[protocol.ResultMsg](t, oc); res.OK || res.Reason != game.ReasonIncorrectAnswer {
		t.Fatalf("replayed guess: %+v", res)
	}
}

func TestServer_RejectsMalformedCalls(t *testing.T) {
	key := mustKey(t)
	h := newHarness(t, crypto.PubkeyToAddress(key.PublicKey), Options{})
	conn := h.dial(t)
	login(t, conn, key)

	raw := map[string]any{
		"type": "CALL", "protocol_version": protocol.Version, "req_id": "B1",
		"method": "mint", "params": map[string]any{"bogus": 1},
	}
	send(t, conn, raw)
	if res := recv[protocol.ResultMsg](t, conn); res.OK || res.Code != protocol.ErrProtoBadRequest || res.ReqID != "B1" {
		t.Fatalf("bad params: %+v", res)
	}
	send(t, conn, call("burn", "B2", protocol.CallParams{}, ""))
	if res := recv[protocol.ResultMsg](t, conn); res.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("unknown method: %+v", res)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if res := recv[protocol.ResultMsg](t, conn); res.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("bad json: %+v", res)
	}
}

func TestServer_RateLimit(t *testing.T) {
	key := mustKey(t)
	h := newHarness(t, crypto.PubkeyToAddress(key.PublicKey), Options{CallsPerSecond: 0.001, CallBurst: 1})
	conn := h.dial(t)
	login(t, conn, key)

	send(t, conn, call(protocol.MethodSetBaseURI, "L1", protocol.CallParams{URI: "a"}, ""))
	if res := recv[protocol.ResultMsg](t, conn); !res.OK {
		t.Fatalf("first call: %+v", res)
	}
	send(t, conn, call(protocol.MethodSetBaseURI, "L2", protocol.CallParams{URI: "b"}, ""))
	if res := recv[protocol.ResultMsg](t, conn); res.OK || res.Code != protocol.ErrRateLimit {
		t.Fatalf("second call: %+v", res)
	}
}

func TestServer_ProgramAccountCannotMint(t *testing.T) {
	ownerKey, botKey := mustKey(t), mustKey(t)
	bot := crypto.PubkeyToAddress(botKey.PublicKey)
	h := newHarness(t, crypto.PubkeyToAddress(ownerKey.PublicKey), Options{}, bot)

	conn := h.dial(t)
	w := login(t, conn, botKey)
	if w.AccountKind != "program" {
		t.Fatalf("kind=%s", w.AccountKind)
	}
	send(t, conn, call(protocol.MethodMint, "M1", protocol.CallParams{LevelID: 1, Quantity: 1}, ""))
	if res := recv[protocol.ResultMsg](t, conn); res.OK || res.Reason != game.ReasonContractCaller {
		t.Fatalf("program mint: %+v", res)
	}
}

func TestServer_RejectsForgedLogin(t *testing.T) {
	victimKey, attackerKey := mustKey(t), mustKey(t)
	victim := crypto.PubkeyToAddress(victimKey.PublicKey)
	h := newHarness(t, victim, Options{})
	conn := h.dial(t)

	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Address: victim.Hex()})
	ch := recv[protocol.ChallengeMsg](t, conn)
	sig, err := SignLogin(ch.Nonce, func(h []byte) ([]byte, error) { return crypto.Sign(h, attackerKey) })
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	send(t, conn, protocol.AuthMsg{Type: protocol.TypeAuth, ProtocolVersion: protocol.Version, Signature: sig})

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.ClosePolicyViolation || ce.Text != protocol.ErrUnauthenticated {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestRecoverLoginSigner(t *testing.T) {
	key := mustKey(t)
	sig, err := SignLogin("n1", func(h []byte) ([]byte, error) { return crypto.Sign(h, key) })
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := RecoverLoginSigner("n1", sig)
	if err != nil || got != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("recover: %s %v", got.Hex(), err)
	}
	if other, _ := RecoverLoginSigner("n2", sig); other == got {
		t.Fatalf("signature must be bound to the nonce")
	}
	if _, err := RecoverLoginSigner("n1", "0x1234"); err == nil {
		t.Fatalf("expected length error")
	}
}
