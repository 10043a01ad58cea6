package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"paradox.game/internal/game"
	"paradox.game/internal/protocol"
	"paradox.game/schemas"
)

type Options struct {
	// Per-connection CALL rate. Zero disables limiting.
	CallsPerSecond float64
	CallBurst      int
	// CallTimeout bounds how long a CALL may wait to enter the game queue.
	CallTimeout time.Duration
}

type Server struct {
	game       *game.Game
	classifier game.AccountClassifier
	log        *log.Logger
	opts       Options

	helloSchema *jsonschema.Schema
	authSchema  *jsonschema.Schema
	callSchema  *jsonschema.Schema

	upgrader websocket.Upgrader
	newNonce func() string
}

func NewServer(g *game.Game, classifier game.AccountClassifier, opts Options, logger *log.Logger) (*Server, error) {
	if classifier == nil {
		classifier = game.StaticClassifier(nil)
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}
	s := &Server{
		game:       g,
		classifier: classifier,
		log:        logger,
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		newNonce: uuid.NewString,
	}
	var err error
	if s.helloSchema, err = jsonschema.CompileString("hello.schema.json", schemas.Hello); err != nil {
		return nil, fmt.Errorf("hello schema: %w", err)
	}
	if s.authSchema, err = jsonschema.CompileString("auth.schema.json", schemas.Auth); err != nil {
		return nil, fmt.Errorf("auth schema: %w", err)
	}
	if s.callSchema, err = jsonschema.CompileString("call.schema.json", schemas.Call); err != nil {
		return nil, fmt.Errorf("call schema: %w", err)
	}
	return s, nil
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		caller, maxQ, ok := s.handshake(r.Context(), conn)
		if !ok {
			return
		}
		kind := s.classifier.Classify(caller)
		s.printf("login address=%s kind=%s", caller.Hex(), kind)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan protocol.ResultMsg, maxQ)
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case res := <-out:
					if err := writeJSON(conn, res); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		var limiter *rate.Limiter
		if s.opts.CallsPerSecond > 0 {
			burst := s.opts.CallBurst
			if burst <= 0 {
				burst = 1
			}
			limiter = rate.NewLimiter(rate.Limit(s.opts.CallsPerSecond), burst)
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			res := s.handleCall(ctx, caller, kind, limiter, msg)
			select {
			case out <- res:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-writerDone
	}
}

func (s *Server) handleCall(ctx context.Context, caller common.Address, kind game.AccountKind, limiter *rate.Limiter, msg []byte) protocol.ResultMsg {
	res := protocol.ResultMsg{Type: protocol.TypeResult, ProtocolVersion: protocol.Version}

	var call protocol.CallMsg
	if err := json.Unmarshal(msg, &call); err != nil {
		return reject(res, protocol.ErrProtoBadRequest, "malformed json")
	}
	res.ReqID = call.ReqID
	if call.Type != protocol.TypeCall {
		return reject(res, protocol.ErrProtoBadRequest, "expected CALL")
	}
	if call.ProtocolVersion != protocol.Version {
		return reject(res, protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if err := validate(s.callSchema, msg); err != nil {
		return reject(res, protocol.ErrProtoBadRequest, err.Error())
	}
	if limiter != nil && !limiter.Allow() {
		return reject(res, protocol.ErrRateLimit, "too many calls")
	}

	tx, err := toTx(caller, kind, call)
	if err != nil {
		return reject(res, protocol.ErrProtoBadRequest, err.Error())
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()
	rec, err := s.game.Submit(callCtx, tx)
	if err != nil && !isRuleError(err) {
		return reject(res, protocol.ErrGameBusy, err.Error())
	}
	res.OK = rec.OK
	res.Seq = rec.Seq
	res.Code = rec.Code
	res.Reason = rec.Reason
	res.TokenIDs = rec.TokenIDs
	if rec.Amount != nil {
		res.Amount = rec.Amount.String()
	}
	return res
}

func isRuleError(err error) bool {
	var ge *game.Error
	return errors.As(err, &ge)
}

func reject(res protocol.ResultMsg, code, reason string) protocol.ResultMsg {
	res.OK = false
	res.Code = code
	res.Reason = reason
	return res
}

func toTx(caller common.Address, kind game.AccountKind, call protocol.CallMsg) (game.Tx, error) {
	p := call.Params
	tx := game.Tx{
		Caller:     caller,
		CallerKind: kind,
		Method:     call.Method,
		Params: game.TxParams{
			Flag:        p.Flag,
			URI:         p.URI,
			ImageURL:    p.ImageURL,
			AnswerHash:  p.AnswerHash,
			LevelID:     p.LevelID,
			Initialized: p.Initialized,
			Quantity:    p.Quantity,
		},
	}
	if p.Account != "" {
		tx.Params.Account = common.HexToAddress(p.Account)
	}
	if p.To != "" {
		tx.Params.To = common.HexToAddress(p.To)
	}
	if p.Guess != "" {
		tx.Params.Guess = common.HexToHash(p.Guess)
	}
	if v := strings.TrimSpace(call.Value); v != "" {
		amount, ok := math.ParseBig256(v)
		if !ok {
			return game.Tx{}, fmt.Errorf("bad value %q", call.Value)
		}
		tx.Value = amount
	} else {
		tx.Value = new(big.Int)
	}
	return tx, nil
}

// handshake runs HELLO -> CHALLENGE -> AUTH -> WELCOME and returns the proven address.
func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (common.Address, int, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return common.Address{}, 0, false
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return common.Address{}, 0, false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return common.Address{}, 0, false
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return common.Address{}, 0, false
	}
	if err := validate(s.helloSchema, msg); err != nil {
		closeWith(conn, "bad HELLO")
		return common.Address{}, 0, false
	}
	claimed := common.HexToAddress(hello.Address)

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}

	nonce := s.newNonce()
	if err := writeJSON(conn, protocol.ChallengeMsg{
		Type:            protocol.TypeChallenge,
		ProtocolVersion: protocol.Version,
		Nonce:           nonce,
	}); err != nil {
		return common.Address{}, 0, false
	}

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	_, msg, err = conn.ReadMessage()
	if err != nil {
		return common.Address{}, 0, false
	}
	var auth protocol.AuthMsg
	if err := json.Unmarshal(msg, &auth); err != nil || auth.Type != protocol.TypeAuth {
		closeWith(conn, "expected AUTH")
		return common.Address{}, 0, false
	}
	if err := validate(s.authSchema, msg); err != nil {
		closeWith(conn, protocol.ErrUnauthenticated)
		return common.Address{}, 0, false
	}
	signer, err := RecoverLoginSigner(nonce, auth.Signature)
	if err != nil || signer != claimed {
		s.printf("auth failed address=%s err=%v", claimed.Hex(), err)
		closeWith(conn, protocol.ErrUnauthenticated)
		return common.Address{}, 0, false
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		GameID:          s.game.ID(),
		Address:         claimed.Hex(),
		AccountKind:     s.classifier.Classify(claimed).String(),
	}
	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.game.Read(readCtx, func(g *game.Game) { welcome.Game = GameParams(g) }); err != nil {
		closeWith(conn, protocol.ErrGameBusy)
		return common.Address{}, 0, false
	}
	if err := writeJSON(conn, welcome); err != nil {
		return common.Address{}, 0, false
	}
	return claimed, maxQ, true
}

// GameParams must run on the game goroutine.
func GameParams(g *game.Game) protocol.GameParams {
	return protocol.GameParams{
		BaseURI:                           g.BaseURI(),
		TotalItems:                        g.TotalItems(),
		ItemsPerLevel:                     g.ItemsPerLevel(),
		MaxPurchasesWithoutAnswerPerLevel: g.MaxPurchasesWithoutAnswerPerLevel(),
		MaxMintsPerUserPerLevel:           g.MaxMintsPerUserPerLevel(),
		PricePerItem:                      g.PricePerItem().String(),
		MaxPricePerItem:                   g.MaxPricePerItem().String(),
		Paused:                            g.Paused(),
		ActiveLevel:                       g.ActiveLevel(),
	}
}

// RecoverLoginSigner returns the address that signed LoginMessage(nonce) with personal_sign.
func RecoverLoginSigner(nonce, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, err
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	// Wallets produce v in {27,28}; SigToPub wants {0,1}.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(protocol.LoginMessage(nonce))), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignLogin is the client side of RecoverLoginSigner.
func SignLogin(nonce string, sign func(hash []byte) ([]byte, error)) (string, error) {
	sig, err := sign(accounts.TextHash([]byte(protocol.LoginMessage(nonce))))
	if err != nil {
		return "", err
	}
	if len(sig) == crypto.SignatureLength && sig[crypto.RecoveryIDOffset] < 27 {
		sig[crypto.RecoveryIDOffset] += 27
	}
	return hexutil.Encode(sig), nil
}

func validate(s *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
