package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"paradox.game/internal/game"
	"paradox.game/internal/persistence/indexdb"
)

// StatsSource is implemented by the index backends.
type StatsSource interface {
	Stats() indexdb.Stats
}

type Options struct {
	// EnableAdmin mounts /admin/v1/*. Admin endpoints still refuse non-loopback peers.
	EnableAdmin bool
	// Index is optional; when set its queue stats are exported on /metrics.
	Index StatsSource
	// ReadTimeout bounds how long a query waits for the game loop.
	ReadTimeout time.Duration
}

type Server struct {
	game *game.Game
	opts Options
	log  *log.Logger
}

func NewServer(g *game.Game, opts Options, logger *log.Logger) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	return &Server{game: g, opts: opts, log: logger}
}

// Routes builds the router. ws, when non-nil, is served at /v1/ws.
func (s *Server) Routes(ws http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", s.handleMetrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/game", s.handleGame)
		r.Get("/levels/{id}", s.handleLevel)
		r.Get("/levels/{id}/users/{address}", s.handleUserMints)
		r.Get("/tokens/{id}", s.handleToken)
		r.Get("/accounts/{address}", s.handleAccount)
		r.Post("/answers/check", s.handleCheckAnswer)
		if ws != nil {
			r.Get("/ws", ws.ServeHTTP)
		}
	})

	if s.opts.EnableAdmin {
		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(loopbackOnly)
			r.Get("/state", s.handleAdminState)
			r.Post("/snapshot", s.handleAdminSnapshot)
		})
	} else {
		s.printf("admin endpoints disabled")
	}
	return r
}

func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			WriteError(w, http.StatusForbidden, CodeForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type gameView struct {
	ID                                string `json:"id"`
	Owner                             string `json:"owner"`
	Paused                            bool   `json:"paused"`
	BaseURI                           string `json:"base_uri"`
	ActiveLevel                       uint64 `json:"active_level"`
	LevelCount                        uint64 `json:"level_count"`
	TotalSupply                       uint64 `json:"total_supply"`
	TotalItems                        uint64 `json:"total_items"`
	ItemsPerLevel                     uint64 `json:"items_per_level"`
	MaxPurchasesWithoutAnswerPerLevel uint64 `json:"max_purchases_without_answer_per_level"`
	MaxMintsPerUserPerLevel           uint64 `json:"max_mints_per_user_per_level"`
	PricePerItem                      string `json:"price_per_item"`
	MaxPricePerItem                   string `json:"max_price_per_item"`
	Treasury                          string `json:"treasury"`
	Seq                               uint64 `json:"seq"`
}

type userMintsView struct {
	LevelID uint64 `json:"level_id"`
	Address string `json:"address"`
	Mints   uint64 `json:"mints"`
}

type tokenView struct {
	ID       uint64 `json:"id"`
	Owner    string `json:"owner"`
	TokenURI string `json:"token_uri"`
}

type accountView struct {
	Address string `json:"address"`
	IsOwner bool   `json:"is_owner"`
	IsAdmin bool   `json:"is_admin"`
	Balance uint64 `json:"balance"`
}

type checkAnswerReq struct {
	LevelID    uint64 `json:"level_id"`
	Caller     string `json:"caller"`
	Commitment string `json:"commitment"`
}

type checkAnswerResp struct {
	LevelID uint64 `json:"level_id"`
	Caller  string `json:"caller"`
	Correct bool   `json:"correct"`
}

// read runs fn on the game loop and writes a 503 if the loop is unavailable.
func (s *Server) read(w http.ResponseWriter, r *http.Request, fn func(*game.Game)) bool {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ReadTimeout)
	defer cancel()
	if err := s.game.Read(ctx, fn); err != nil {
		WriteError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
		return false
	}
	return true
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	var v gameView
	if !s.read(w, r, func(g *game.Game) {
		v = gameView{
			ID:                                g.ID(),
			Owner:                             g.Owner().Hex(),
			Paused:                            g.Paused(),
			BaseURI:                           g.BaseURI(),
			ActiveLevel:                       g.ActiveLevel(),
			LevelCount:                        g.LevelCount(),
			TotalSupply:                       g.TotalSupply(),
			TotalItems:                        g.TotalItems(),
			ItemsPerLevel:                     g.ItemsPerLevel(),
			MaxPurchasesWithoutAnswerPerLevel: g.MaxPurchasesWithoutAnswerPerLevel(),
			MaxMintsPerUserPerLevel:           g.MaxMintsPerUserPerLevel(),
			PricePerItem:                      g.PricePerItem().String(),
			MaxPricePerItem:                   g.MaxPricePerItem().String(),
			Treasury:                          g.Treasury().String(),
			Seq:                               g.CurrentSeq(),
		}
	}) {
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var (
		lv    game.Level
		found bool
	)
	if !s.read(w, r, func(g *game.Game) { lv, found = g.Level(id) }) {
		return
	}
	if !found {
		WriteError(w, http.StatusNotFound, CodeNotFound, game.ReasonUnknownLevel)
		return
	}
	WriteJSON(w, http.StatusOK, lv)
}

func (s *Server) handleUserMints(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	user, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	var (
		n     uint64
		found bool
	)
	if !s.read(w, r, func(g *game.Game) {
		_, found = g.Level(id)
		n = g.UserMints(id, user)
	}) {
		return
	}
	if !found {
		WriteError(w, http.StatusNotFound, CodeNotFound, game.ReasonUnknownLevel)
		return
	}
	WriteJSON(w, http.StatusOK, userMintsView{LevelID: id, Address: user.Hex(), Mints: n})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var (
		v     tokenView
		found bool
	)
	if !s.read(w, r, func(g *game.Game) {
		owner, exists := g.OwnerOf(id)
		if !exists {
			return
		}
		uri, err := g.TokenURI(id)
		if err != nil {
			return
		}
		found = true
		v = tokenView{ID: id, Owner: owner.Hex(), TokenURI: uri}
	}) {
		return
	}
	if !found {
		WriteError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("token %d does not exist", id))
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	v := accountView{Address: id.Hex()}
	if !s.read(w, r, func(g *game.Game) {
		v.IsOwner = g.Owner() == id
		v.IsAdmin = g.IsAdmin(id)
		v.Balance = g.BalanceOf(id)
	}) {
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

func (s *Server) handleCheckAnswer(w http.ResponseWriter, r *http.Request) {
	var req checkAnswerReq
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "invalid json: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "bad caller address")
		return
	}
	guess, err := hexutil.Decode(req.Commitment)
	if err != nil || len(guess) != common.HashLength {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "commitment must be 32 bytes of 0x hex")
		return
	}
	caller := common.HexToAddress(req.Caller)
	resp := checkAnswerResp{LevelID: req.LevelID, Caller: caller.Hex()}
	if !s.read(w, r, func(g *game.Game) {
		resp.Correct = g.CheckAnswer(req.LevelID, caller, common.BytesToHash(guess))
	}) {
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminState(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		GameID  string       `json:"game_id"`
		Seq     uint64       `json:"seq"`
		Digest  string       `json:"digest"`
		Admins  []string     `json:"admins"`
		Metrics game.Metrics `json:"metrics"`
	}{
		GameID:  s.game.ID(),
		Metrics: s.game.Metrics(),
	}
	if !s.read(w, r, func(g *game.Game) {
		resp.Seq = g.CurrentSeq()
		resp.Digest = g.StateDigest()
		for _, a := range g.Admins() {
			resp.Admins = append(resp.Admins, a.Hex())
		}
	}) {
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	seq, err := s.game.RequestSnapshot(ctx)
	if err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "seq": seq, "error": err.Error()})
		return
	}
	s.printf("admin snapshot requested seq=%d", seq)
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "seq": seq})
}

func uintParam(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "bad "+name)
		return 0, false
	}
	return v, true
}

func addressParam(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	raw := chi.URLParam(r, name)
	if !common.IsHexAddress(raw) {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, "bad "+name)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (s *Server) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
