package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/vkotenev/zapwatch/pkg/chain"
	"github.com/vkotenev/zapwatch/pkg/engine"
	"github.com/vkotenev/zapwatch/pkg/storage"
	"github.com/vkotenev/zapwatch/pkg/util"
)

// Server exposes the engine over REST and streams its events over
// WebSocket. It is the process's only outward surface; all trading logic
// lives behind the registry and the chain callers.
type Server struct {
	registry *engine.Registry
	wallets  *chain.WalletRegistry
	client   *chain.Client
	vault    *chain.VaultCaller
	gas      engine.FeeGate
	journal  *storage.Journal
	logs     *util.LogRing
	router   *mux.Router
	hub      *Hub
	log      *zap.SugaredLogger
}

type Deps struct {
	Registry *engine.Registry
	Wallets  *chain.WalletRegistry
	Client   *chain.Client
	Vault    *chain.VaultCaller
	Gas      engine.FeeGate
	Journal  *storage.Journal
	Logs     *util.LogRing
	Logger   *zap.SugaredLogger
}

func NewServer(deps Deps) *Server {
	s := &Server{
		registry: deps.Registry,
		wallets:  deps.Wallets,
		client:   deps.Client,
		vault:    deps.Vault,
		gas:      deps.Gas,
		journal:  deps.Journal,
		logs:     deps.Logs,
		router:   mux.NewRouter(),
		hub:      NewHub(deps.Logger),
		log:      deps.Logger,
	}
	s.setupRoutes()
	if s.logs != nil {
		s.logs.Notify(func(e util.LogEntry) {
			s.hub.BroadcastToChannel("logs", WSAppLog{Type: "appLog", LogEntry: e})
		})
	}
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/wallets", s.handleAddWallet).Methods("POST")
	api.HandleFunc("/wallets", s.handleListWallets).Methods("GET")

	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders/{id}/stop", s.handleStopOrder).Methods("POST")

	api.HandleFunc("/trade/buy", s.handleManualBuy).Methods("POST")
	api.HandleFunc("/trade/sell", s.handleManualSell).Methods("POST")

	api.HandleFunc("/trades", s.handleRecentTrades).Methods("GET")
	api.HandleFunc("/logs", s.handleRecentLogs).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	if s.log != nil {
		s.log.Infow("api_server_starting", "addr", addr)
	}
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// Event fan-out (wired to the registry's hooks)
// ==============================

func (s *Server) BroadcastPrice(u engine.PriceUpdate) {
	s.hub.BroadcastToChannel("prices", WSPriceUpdate{Type: "priceUpdate", PriceUpdate: u})
}

func (s *Server) BroadcastOrderUpdate(u engine.OrderUpdate) {
	s.hub.BroadcastToChannel("orders", WSOrderUpdate{Type: "orderUpdate", OrderUpdate: u})
}

func (s *Server) BroadcastTrade(t engine.Trade) {
	s.hub.BroadcastToChannel("trades", WSTradeExecuted{Type: "tradeExecuted", Trade: t})
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleAddWallet(w http.ResponseWriter, r *http.Request) {
	var req AddWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.PrivateKey == "" {
		respondError(w, http.StatusBadRequest, "missing privateKey", "")
		return
	}

	wallet, err := chain.NewWallet(strings.TrimPrefix(req.PrivateKey, "0x"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid private key", err.Error())
		return
	}
	s.wallets.Add(wallet)

	balance := "0"
	if b, err := s.client.BalanceAt(r.Context(), wallet.Address()); err == nil {
		balance = chain.FormatNative(b)
	}

	if s.log != nil {
		s.log.Infow("wallet_added", "address", wallet.Address().Hex())
	}
	respondJSON(w, WalletInfo{Address: wallet.Address().Hex(), Balance: balance})
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	addrs := s.wallets.Addresses()
	out := make([]WalletInfo, 0, len(addrs))
	for _, addr := range addrs {
		info := WalletInfo{Address: addr.Hex()}
		if b, err := s.client.BalanceAt(r.Context(), addr); err == nil {
			info.Balance = chain.FormatNative(b)
		}
		out = append(out, info)
	}
	respondJSON(w, out)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	order, err := s.orderFromRequest(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	// The order outlives this request; its loop is bound to the process
	// context via the registry.
	id, err := s.registry.Create(context.Background(), order)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}
	respondJSON(w, CreateOrderResponse{OrderID: id})
}

func (s *Server) orderFromRequest(req CreateOrderRequest) (*engine.Order, error) {
	order := &engine.Order{Threshold: req.Threshold}

	switch strings.ToLower(req.Mode) {
	case "buy":
		order.Mode = engine.Buy
	case "sell":
		order.Mode = engine.Sell
	default:
		return nil, errBadField("mode", req.Mode)
	}

	for _, f := range []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"tokenAddress", req.TokenAddress, &order.TargetAsset},
		{"poolAddress", req.PoolAddress, &order.PoolAddress},
		{"vaultAddress", req.VaultAddress, &order.VaultAddr},
	} {
		if !common.IsHexAddress(f.value) {
			return nil, errBadField(f.name, f.value)
		}
		*f.dst = common.HexToAddress(f.value)
	}

	if !common.IsHexAddress(req.Wallet) {
		return nil, errBadField("wallet", req.Wallet)
	}
	wallet, ok := s.wallets.Get(common.HexToAddress(req.Wallet))
	if !ok {
		return nil, errBadField("wallet", "not registered")
	}
	order.Wallet = wallet

	if order.Mode == engine.Buy {
		amount, err := chain.ParseNative(req.BuyAmount)
		if err != nil {
			return nil, err
		}
		order.BuyAmount = amount
	}
	return order, nil
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.registry.List())
}

func (s *Server) handleStopOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	respondJSON(w, StopOrderResponse{Stopped: s.registry.Stop(id)})
}

func (s *Server) handleManualBuy(w http.ResponseWriter, r *http.Request) {
	req, wallet, token, vault, ok := s.manualTradeParams(w, r)
	if !ok {
		return
	}
	amount, err := chain.ParseNative(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	fees := s.gas.FeeParams(r.Context())
	hash, err := s.vault.SubmitBuy(r.Context(), wallet, vault, token, amount, fees)
	if err != nil {
		respondError(w, http.StatusBadGateway, "buy failed", err.Error())
		return
	}
	respondJSON(w, TradeResponse{TxHash: hash.Hex()})
}

func (s *Server) handleManualSell(w http.ResponseWriter, r *http.Request) {
	_, wallet, token, vault, ok := s.manualTradeParams(w, r)
	if !ok {
		return
	}

	fees := s.gas.FeeParams(r.Context())
	hash, err := s.vault.SubmitSell(r.Context(), wallet, vault, token, fees)
	if err != nil {
		respondError(w, http.StatusBadGateway, "sell failed", err.Error())
		return
	}
	respondJSON(w, TradeResponse{TxHash: hash.Hex()})
}

func (s *Server) manualTradeParams(w http.ResponseWriter, r *http.Request) (ManualTradeRequest, *chain.Wallet, common.Address, common.Address, bool) {
	var req ManualTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return req, nil, common.Address{}, common.Address{}, false
	}
	if !common.IsHexAddress(req.Wallet) || !common.IsHexAddress(req.TokenAddress) || !common.IsHexAddress(req.VaultAddress) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return req, nil, common.Address{}, common.Address{}, false
	}
	wallet, ok := s.wallets.Get(common.HexToAddress(req.Wallet))
	if !ok {
		respondError(w, http.StatusBadRequest, "wallet not registered", "")
		return req, nil, common.Address{}, common.Address{}, false
	}
	return req, wallet, common.HexToAddress(req.TokenAddress), common.HexToAddress(req.VaultAddress), true
}

func (s *Server) handleRecentTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	trades, err := s.journal.RecentTrades(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
		return
	}
	if trades == nil {
		trades = []engine.Trade{}
	}
	respondJSON(w, trades)
}

func (s *Server) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		respondJSON(w, []util.LogEntry{})
		return
	}
	respondJSON(w, s.logs.Recent())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

type fieldError struct{ field, value string }

func (e fieldError) Error() string { return "invalid " + e.field + ": " + e.value }

func errBadField(field, value string) error { return fieldError{field, value} }

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
