package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/vkotenev/zapwatch/pkg/engine"
)

// Journal persists executed trades to Pebble. History only: active orders
// are never written and do not survive a restart.
//
// keys: t:<8-byte-big-endian-millis><orderID>
type Journal struct {
	db *pebble.DB
}

func OpenJournal(path string) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

const prefixTrade = "t:"

func tradeKey(ts int64, orderID string) []byte {
	key := make([]byte, 0, len(prefixTrade)+8+len(orderID))
	key = append(key, prefixTrade...)
	var millis [8]byte
	binary.BigEndian.PutUint64(millis[:], uint64(ts))
	key = append(key, millis[:]...)
	return append(key, orderID...)
}

func tradePrefix() []byte { return []byte(prefixTrade) }

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// SaveTrade appends one executed trade.
func (j *Journal) SaveTrade(trade engine.Trade) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}
	key := tradeKey(trade.Timestamp, trade.OrderID)
	if err := j.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// RecentTrades returns up to limit trades, newest first.
func (j *Journal) RecentTrades(limit int) ([]engine.Trade, error) {
	prefix := tradePrefix()
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var trades []engine.Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var trade engine.Trade
		if err := json.Unmarshal(iter.Value(), &trade); err != nil {
			continue // skip corrupt entries
		}
		trades = append(trades, trade)
	}
	return trades, nil
}
