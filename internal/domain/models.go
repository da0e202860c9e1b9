package domain

import (
	"context"
	"strings"
	"time"
)

// Origin tags where a transaction record came from. It drives merge ordering
// and display badges only and is never persisted beyond the session.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// PaymentMethod is the canonical payment enum. Source data (both the remote
// ledger and the offline device records) may carry locale spellings; they are
// normalized at ingestion and never downstream.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentDebit  PaymentMethod = "DEBIT"
	PaymentCredit PaymentMethod = "CREDIT"
	PaymentQRIS   PaymentMethod = "QRIS"
)

// NormalizePaymentMethod maps raw payment spellings onto the canonical enum.
// The bool reports whether the input was recognized.
func NormalizePaymentMethod(raw string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash", "tunai":
		return PaymentCash, true
	case "debit", "kartu debit", "debit card":
		return PaymentDebit, true
	case "credit", "kredit", "kartu kredit", "credit card":
		return PaymentCredit, true
	case "qris", "qr":
		return PaymentQRIS, true
	default:
		return "", false
	}
}

// WalkInCustomerLabel is used when a record carries no customer label.
const WalkInCustomerLabel = "Pelanggan Umum"

type LineItem struct {
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Transaction is the unified record, regardless of origin. Remote ledger rows
// and offline device records are both normalized into this shape at ingestion.
// Amounts are in minor currency units. Tax is derived for local records, not
// stored, so the struct carries no tax field.
type Transaction struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	CashierID     string        `json:"cashier_id,omitempty"`
	CashierName   string        `json:"cashier_name"`
	CustomerLabel string        `json:"customer_label"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	SubtotalCents int64         `json:"subtotal_cents"`
	DiscountCents int64         `json:"discount_cents"`
	TotalCents    int64         `json:"total_cents"`
	LineItems     []LineItem    `json:"line_items,omitempty"`
	Origin        Origin        `json:"origin"`
}

// Summary holds the combined report figures. AverageDuration is a formatted
// string passed through from the remote source unchanged; offline records
// carry no duration telemetry so the local contribution is always zero.
type Summary struct {
	GrossSalesCents  int64  `json:"gross_sales_cents"`
	TransactionCount int64  `json:"transaction_count"`
	DiscountCents    int64  `json:"discount_cents"`
	TaxCents         int64  `json:"tax_cents"`
	NetSalesCents    int64  `json:"net_sales_cents"`
	AverageDuration  string `json:"average_duration,omitempty"`
}

type DailyPoint struct {
	Date         string `json:"date"`
	Transactions int64  `json:"transactions"`
	TotalCents   int64  `json:"total_cents"`
}

type PaymentSlice struct {
	Method       PaymentMethod `json:"method"`
	Transactions int64         `json:"transactions"`
	TotalCents   int64         `json:"total_cents"`
}

type ProductTotal struct {
	ProductName string `json:"product_name"`
	Qty         int64  `json:"qty"`
	TotalCents  int64  `json:"total_cents"`
}

type CashierTotal struct {
	CashierID    string `json:"cashier_id"`
	CashierName  string `json:"cashier_name"`
	Transactions int64  `json:"transactions"`
	TotalCents   int64  `json:"total_cents"`
}

type Pagination struct {
	TotalPages int `json:"totalPages"`
}

type SalesReportRequest struct {
	DateFrom      string `json:"date_from"`
	DateTo        string `json:"date_to"`
	CashierID     string `json:"cashier_id,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Page          int    `json:"page,omitempty"`
	Query         string `json:"query,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username    string
	DisplayName string
	Role        string
}

// Privileged reports whether the actor may query other cashiers' figures.
func (a Actor) Privileged() bool {
	return a.Role == "admin"
}

// UserAccount is an internal model for seeded auth credentials.
type UserAccount struct {
	Username    string
	DisplayName string
	Password    string
	Role        string
	Active      bool
	CreatedAt   time.Time
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
