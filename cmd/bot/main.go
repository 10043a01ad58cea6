package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"paradox.game/internal/commitment"
	"paradox.game/internal/protocol"
	"paradox.game/internal/transport/ws"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		keyHex   = flag.String("key", "", "hex private key (default: a fresh key)")
		level    = flag.Uint64("level", 0, "level to mint from (default: the active level)")
		answer   = flag.String("answer", "", "answer plaintext; empty mints without answer at the max price")
		quantity = flag.Uint64("quantity", 1, "items to mint")
		name     = flag.String("name", "bot", "client name sent in HELLO")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	key, err := loadKey(*keyHex)
	if err != nil {
		logger.Fatalf("key: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	welcome, err := login(conn, key, *name)
	if err != nil {
		logger.Fatalf("login: %v", err)
	}
	logger.Printf("WELCOME game=%s address=%s kind=%s active_level=%d paused=%v",
		welcome.GameID, welcome.Address, welcome.AccountKind, welcome.Game.ActiveLevel, welcome.Game.Paused)

	lv := *level
	if lv == 0 {
		lv = welcome.Game.ActiveLevel
	}
	call, err := mintCall(welcome.Game, crypto.PubkeyToAddress(key.PublicKey), lv, *answer, *quantity)
	if err != nil {
		logger.Fatalf("mint: %v", err)
	}
	res, err := roundTrip(conn, call)
	if err != nil {
		logger.Fatalf("call: %v", err)
	}
	if !res.OK {
		logger.Printf("RESULT rejected seq=%d code=%s reason=%s", res.Seq, res.Code, res.Reason)
		os.Exit(1)
	}
	logger.Printf("RESULT ok seq=%d tokens=%v paid=%s", res.Seq, res.TokenIDs, res.Amount)
}

func loadKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return crypto.GenerateKey()
	}
	return crypto.HexToECDSA(hexKey)
}

// login runs HELLO -> CHALLENGE -> AUTH and returns the WELCOME.
func login(conn *websocket.Conn, key *ecdsa.PrivateKey, name string) (protocol.WelcomeMsg, error) {
	var welcome protocol.WelcomeMsg
	addr := crypto.PubkeyToAddress(key.PublicKey)
	if err := conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Address:         addr.Hex(),
		ClientName:      name,
		MaxQueue:        8,
	}); err != nil {
		return welcome, fmt.Errorf("send HELLO: %w", err)
	}

	var ch protocol.ChallengeMsg
	if err := readTyped(conn, protocol.TypeChallenge, &ch); err != nil {
		return welcome, err
	}
	sig, err := ws.SignLogin(ch.Nonce, func(hash []byte) ([]byte, error) {
		return crypto.Sign(hash, key)
	})
	if err != nil {
		return welcome, fmt.Errorf("sign: %w", err)
	}
	if err := conn.WriteJSON(protocol.AuthMsg{
		Type:            protocol.TypeAuth,
		ProtocolVersion: protocol.Version,
		Signature:       sig,
	}); err != nil {
		return welcome, fmt.Errorf("send AUTH: %w", err)
	}
	if err := readTyped(conn, protocol.TypeWelcome, &welcome); err != nil {
		return welcome, err
	}
	return welcome, nil
}

// mintCall prices the mint from the game params: the answer tier when a plaintext is given,
// otherwise the without-answer tier.
func mintCall(params protocol.GameParams, caller common.Address, level uint64, answer string, quantity uint64) (protocol.CallMsg, error) {
	unitStr := params.MaxPricePerItem
	var guess string
	if answer != "" {
		unitStr = params.PricePerItem
		guess = commitment.Guess(answer, caller).Hex()
	}
	unit, ok := math.ParseBig256(unitStr)
	if !ok {
		return protocol.CallMsg{}, fmt.Errorf("bad price %q", unitStr)
	}
	value := new(big.Int).Mul(unit, new(big.Int).SetUint64(quantity))
	return protocol.CallMsg{
		Type:            protocol.TypeCall,
		ProtocolVersion: protocol.Version,
		ReqID:           uuid.NewString(),
		Method:          protocol.MethodMint,
		Params: protocol.CallParams{
			LevelID:  level,
			Guess:    guess,
			Quantity: quantity,
		},
		Value: value.String(),
	}, nil
}

func roundTrip(conn *websocket.Conn, call protocol.CallMsg) (protocol.ResultMsg, error) {
	var res protocol.ResultMsg
	if err := conn.WriteJSON(call); err != nil {
		return res, fmt.Errorf("send CALL: %w", err)
	}
	for {
		if err := readTyped(conn, protocol.TypeResult, &res); err != nil {
			return res, err
		}
		if res.ReqID == call.ReqID {
			return res, nil
		}
	}
}

func readTyped(conn *websocket.Conn, typ string, out any) error {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read %s: %w", typ, err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return fmt.Errorf("read %s: %w", typ, err)
	}
	if base.Type != typ {
		return fmt.Errorf("expected %s, got %s", typ, base.Type)
	}
	return json.Unmarshal(msg, out)
}
