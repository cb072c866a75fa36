package api

import (
	"github.com/vkotenev/zapwatch/pkg/engine"
	"github.com/vkotenev/zapwatch/pkg/util"
)

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Request Types
// ==============================

type AddWalletRequest struct {
	PrivateKey string `json:"privateKey"`
}

type CreateOrderRequest struct {
	Mode         string  `json:"mode"`   // "buy" or "sell"
	Wallet       string  `json:"wallet"` // address of a registered wallet
	TokenAddress string  `json:"tokenAddress"`
	PoolAddress  string  `json:"poolAddress"`
	VaultAddress string  `json:"vaultAddress"`
	Threshold    float64 `json:"threshold"`
	BuyAmount    string  `json:"buyAmount,omitempty"` // native units, buy only
}

type ManualTradeRequest struct {
	Wallet       string `json:"wallet"`
	TokenAddress string `json:"tokenAddress"`
	VaultAddress string `json:"vaultAddress"`
	Amount       string `json:"amount,omitempty"` // native units, buy only
}

// ==============================
// REST Response Types
// ==============================

type WalletInfo struct {
	Address string `json:"address"`
	Balance string `json:"balance"` // native currency, decimal
}

type CreateOrderResponse struct {
	OrderID string `json:"orderId"`
}

type StopOrderResponse struct {
	Stopped bool `json:"stopped"`
}

type TradeResponse struct {
	TxHash string `json:"txHash"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Types
// ==============================

// WSSubscribeRequest selects channels: "prices", "orders", "trades", "logs".
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

type WSPriceUpdate struct {
	Type string `json:"type"` // "priceUpdate"
	engine.PriceUpdate
}

type WSOrderUpdate struct {
	Type string `json:"type"` // "orderUpdate"
	engine.OrderUpdate
}

type WSTradeExecuted struct {
	Type string `json:"type"` // "tradeExecuted"
	engine.Trade
}

type WSAppLog struct {
	Type string `json:"type"` // "appLog"
	util.LogEntry
}
