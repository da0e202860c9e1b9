// Package ledger exposes the offline-entered transaction log kept by POS
// devices while they have no connection. The back office only ever reads it:
// writes happen on the devices, and reconciliation into reporting never
// mutates or deletes entries.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"lakumart/backoffice/internal/domain"
	"lakumart/backoffice/internal/xid"
)

var ErrUnavailable = errors.New("offline ledger unavailable")

// Store is a read-only view over the persisted offline records, normalized
// into the unified transaction shape. The int result is the number of
// malformed records that were skipped; a single corrupt entry must never
// blank the whole report.
type Store interface {
	List(ctx context.Context) ([]domain.Transaction, int, error)
}

// RawRecord is the schema devices persist for an offline sale. Field names
// follow the device storage format and must not be renamed.
type RawRecord struct {
	ID               string    `json:"id,omitempty"`
	Tanggal          string    `json:"tanggal"`
	MetodePembayaran string    `json:"metodePembayaran"`
	Kasir            string    `json:"kasir,omitempty"`
	Pelanggan        string    `json:"pelanggan,omitempty"`
	Subtotal         int64     `json:"subtotal"`
	Total            int64     `json:"total"`
	Items            []RawItem `json:"items,omitempty"`
}

type RawItem struct {
	Nama  string `json:"nama"`
	Qty   int    `json:"qty"`
	Harga int64  `json:"harga"`
}

// localIDPrefix namespaces offline ids so they can never collide with ids
// issued by the server ledger.
const localIDPrefix = "local-"

var recordedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Normalize converts one raw device record into the unified shape. The
// fallbackCashier is the requesting session's display name, used when the
// device omitted the cashier field.
func Normalize(raw RawRecord, fallbackCashier string) (domain.Transaction, error) {
	recordedAt, err := parseRecordedAt(raw.Tanggal)
	if err != nil {
		return domain.Transaction{}, err
	}

	method, ok := domain.NormalizePaymentMethod(raw.MetodePembayaran)
	if !ok {
		return domain.Transaction{}, fmt.Errorf("unrecognized payment method %q", raw.MetodePembayaran)
	}

	if raw.Total < 0 || raw.Subtotal < 0 {
		return domain.Transaction{}, fmt.Errorf("negative amount (subtotal=%d total=%d)", raw.Subtotal, raw.Total)
	}

	id := strings.TrimSpace(raw.ID)
	switch {
	case id == "":
		id = xid.New("local")
	case !strings.HasPrefix(id, localIDPrefix):
		id = localIDPrefix + id
	}

	cashier := strings.TrimSpace(raw.Kasir)
	if cashier == "" {
		cashier = strings.TrimSpace(fallbackCashier)
	}
	if cashier == "" {
		cashier = "Kasir"
	}

	customer := strings.TrimSpace(raw.Pelanggan)
	if customer == "" {
		customer = domain.WalkInCustomerLabel
	}

	items := make([]domain.LineItem, 0, len(raw.Items))
	for _, item := range raw.Items {
		items = append(items, domain.LineItem{
			ProductName:    item.Nama,
			Qty:            item.Qty,
			UnitPriceCents: item.Harga,
		})
	}

	return domain.Transaction{
		ID:            id,
		Timestamp:     recordedAt,
		CashierName:   cashier,
		CustomerLabel: customer,
		PaymentMethod: method,
		SubtotalCents: raw.Subtotal,
		TotalCents:    raw.Total,
		LineItems:     items,
		Origin:        domain.OriginLocal,
	}, nil
}

// NormalizeAll normalizes every record it can and counts the rest. Skips are
// logged once each for diagnostics but never abort the read.
func NormalizeAll(raws []RawRecord, fallbackCashier string) ([]domain.Transaction, int) {
	transactions := make([]domain.Transaction, 0, len(raws))
	skipped := 0
	for i, raw := range raws {
		tx, err := Normalize(raw, fallbackCashier)
		if err != nil {
			skipped++
			log.Printf("[ledger] WARN: skipping malformed offline record #%d (id=%q): %v", i, raw.ID, err)
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, skipped
}

// fallbackCashierFromContext resolves the display name used to fill records
// the device saved without a cashier.
func fallbackCashierFromContext(ctx context.Context) string {
	actor, ok := domain.ActorFromContext(ctx)
	if !ok {
		return ""
	}
	if actor.DisplayName != "" {
		return actor.DisplayName
	}
	return actor.Username
}

func parseRecordedAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing tanggal")
	}
	for _, layout := range recordedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable tanggal %q", raw)
}
