package storage

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/vkotenev/zapwatch/pkg/engine"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "trades"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestSaveAndRecentTrades(t *testing.T) {
	j := openTestJournal(t)

	trades := []engine.Trade{
		{OrderID: "a", Mode: "buy", Asset: "0x01", TxHash: "0xaaa", Price: 0.01, Timestamp: 1000},
		{OrderID: "b", Mode: "sell", Asset: "0x02", TxHash: "0xbbb", Price: 0.05, Timestamp: 2000},
		{OrderID: "c", Mode: "buy", Asset: "0x03", TxHash: "0xccc", Price: 0.02, Timestamp: 3000},
	}
	for _, tr := range trades {
		if err := j.SaveTrade(tr); err != nil {
			t.Fatalf("save trade %s: %v", tr.OrderID, err)
		}
	}

	got, err := j.RecentTrades(10)
	if err != nil {
		t.Fatalf("recent trades: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("trades = %d, want 3", len(got))
	}
	// Newest first
	for i, wantID := range []string{"c", "b", "a"} {
		if got[i].OrderID != wantID {
			t.Errorf("trade[%d] = %s, want %s", i, got[i].OrderID, wantID)
		}
	}
	if got[0].TxHash != "0xccc" || got[0].Price != 0.02 {
		t.Errorf("round trip mismatch: %+v", got[0])
	}
}

func TestRecentTradesLimit(t *testing.T) {
	j := openTestJournal(t)

	for i := int64(0); i < 5; i++ {
		if err := j.SaveTrade(engine.Trade{OrderID: "o", Timestamp: 1000 + i}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := j.RecentTrades(2)
	if err != nil {
		t.Fatalf("recent trades: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("trades = %d, want 2", len(got))
	}
	if got[0].Timestamp != 1004 || got[1].Timestamp != 1003 {
		t.Errorf("timestamps = %d, %d; want 1004, 1003", got[0].Timestamp, got[1].Timestamp)
	}
}

func TestRecentTradesEmpty(t *testing.T) {
	j := openTestJournal(t)
	got, err := j.RecentTrades(10)
	if err != nil {
		t.Fatalf("recent trades: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("trades = %d, want 0", len(got))
	}
}

func TestKeyUpperBound(t *testing.T) {
	tests := []struct {
		prefix []byte
		want   []byte
	}{
		{[]byte("t:"), []byte("t;")},
		{[]byte{0x01, 0xff}, []byte{0x02}},
		{[]byte{0xff}, nil},
	}
	for _, tt := range tests {
		if got := keyUpperBound(tt.prefix); !bytes.Equal(got, tt.want) {
			t.Errorf("keyUpperBound(%v) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
}
