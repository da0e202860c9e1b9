package ledger

import (
	"context"
	"sync"
	"time"

	"lakumart/backoffice/internal/domain"
)

// MemoryStore keeps raw offline records in process memory. It backs dev mode
// and tests; production deployments read the device-synced Redis key or the
// Postgres mirror table instead.
type MemoryStore struct {
	mu      sync.RWMutex
	records []RawRecord
}

func NewMemory(records ...RawRecord) *MemoryStore {
	return &MemoryStore{records: append([]RawRecord(nil), records...)}
}

// NewMemorySeeded returns a store preloaded with a few plausible offline
// sales around the current day, for demo mode without a device feed.
func NewMemorySeeded() *MemoryStore {
	now := time.Now()
	day := now.Format(time.DateOnly)
	yesterday := now.AddDate(0, 0, -1).Format(time.DateOnly)

	return NewMemory(
		RawRecord{
			ID:               "offline-001",
			Tanggal:          day + " 09:12:40",
			MetodePembayaran: "tunai",
			Subtotal:         78500,
			Total:            87135,
			Items: []RawItem{
				{Nama: "Beras Premium 5kg", Qty: 1, Harga: 68500},
				{Nama: "Gula Pasir 1kg", Qty: 1, Harga: 10000},
			},
		},
		RawRecord{
			ID:               "offline-002",
			Tanggal:          day + " 10:03:11",
			MetodePembayaran: "qris",
			Pelanggan:        "Bu Rina",
			Subtotal:         24000,
			Total:            26640,
			Items: []RawItem{
				{Nama: "Minyak Goreng 1L", Qty: 2, Harga: 12000},
			},
		},
		RawRecord{
			ID:               "offline-003",
			Tanggal:          yesterday + " 17:45:02",
			MetodePembayaran: "tunai",
			Subtotal:         15500,
			Total:            17205,
		},
	)
}

func (s *MemoryStore) List(ctx context.Context) ([]domain.Transaction, int, error) {
	s.mu.RLock()
	records := append([]RawRecord(nil), s.records...)
	s.mu.RUnlock()

	transactions, skipped := NormalizeAll(records, fallbackCashierFromContext(ctx))
	return transactions, skipped, nil
}

// Put appends a raw record. Tests use it to stage ledger contents; the
// serving path never writes.
func (s *MemoryStore) Put(record RawRecord) {
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
}
