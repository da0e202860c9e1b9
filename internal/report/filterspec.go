package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"lakumart/backoffice/internal/domain"
)

var ErrInvalidFilter = errors.New("invalid filter")

// CashierAll is the selector sentinel meaning "no cashier restriction".
// It is only honored for privileged callers.
const CashierAll = "all"

// FilterSpec describes one reporting window: an inclusive calendar-day range
// plus optional cashier and payment-method constraints. Build one with
// NewFilterSpec and treat it as immutable; both the remote query and the
// local ledger filter must honor the same spec.
//
// Cashier matching is origin-dependent: remote records match on CashierID,
// local records match on the cashier display name (device records never carry
// an account id). That is a known data-model gap in the offline schema, kept
// explicit here rather than papered over.
type FilterSpec struct {
	DateFrom time.Time
	DateTo   time.Time

	// CashierID and CashierName are both empty when the spec carries no
	// cashier restriction.
	CashierID   string
	CashierName string

	Payment domain.PaymentMethod // empty means no restriction

	loc *time.Location
}

// NewFilterSpec validates and builds a FilterSpec.
//
// dateFrom and dateTo are required and compared at day granularity in loc;
// dateFrom after dateTo is rejected, not swapped. A non-privileged caller is
// always pinned to their own identity regardless of cashierSelector.
func NewFilterSpec(dateFrom, dateTo time.Time, cashierSelector, paymentSelector string, caller domain.Actor, loc *time.Location) (FilterSpec, error) {
	if loc == nil {
		loc = time.Local
	}
	if dateFrom.IsZero() || dateTo.IsZero() {
		return FilterSpec{}, fmt.Errorf("%w: date range is required", ErrInvalidFilter)
	}

	from := dayOf(dateFrom, loc)
	to := dayOf(dateTo, loc)
	if from.After(to) {
		return FilterSpec{}, fmt.Errorf("%w: date_from %s is after date_to %s", ErrInvalidFilter, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	spec := FilterSpec{DateFrom: from, DateTo: to, loc: loc}

	cashierSelector = strings.TrimSpace(cashierSelector)
	if !caller.Privileged() {
		spec.CashierID = caller.Username
		spec.CashierName = caller.DisplayName
	} else if cashierSelector != "" && cashierSelector != CashierAll {
		spec.CashierID = cashierSelector
		name := cashierSelector
		if cashierSelector == caller.Username && caller.DisplayName != "" {
			name = caller.DisplayName
		}
		spec.CashierName = name
	}
	if spec.CashierID != "" && spec.CashierName == "" {
		spec.CashierName = spec.CashierID
	}

	paymentSelector = strings.TrimSpace(paymentSelector)
	if paymentSelector != "" && !strings.EqualFold(paymentSelector, "all") {
		method, ok := domain.NormalizePaymentMethod(paymentSelector)
		if !ok {
			return FilterSpec{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidFilter, paymentSelector)
		}
		spec.Payment = method
	}

	return spec, nil
}

// Valid reports whether the spec was built through NewFilterSpec.
func (f FilterSpec) Valid() bool {
	return !f.DateFrom.IsZero() && !f.DateTo.IsZero() && !f.DateFrom.After(f.DateTo)
}

// InRange reports whether t's calendar day falls within the inclusive window.
func (f FilterSpec) InRange(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	day := dayOf(t, f.location())
	return !day.Before(f.DateFrom) && !day.After(f.DateTo)
}

// Matches applies the full predicate: date range, payment method, and the
// origin-dependent cashier constraint.
func (f FilterSpec) Matches(tx domain.Transaction) bool {
	if !f.InRange(tx.Timestamp) {
		return false
	}
	if f.Payment != "" && tx.PaymentMethod != f.Payment {
		return false
	}
	if f.CashierID != "" {
		if tx.Origin == domain.OriginLocal {
			return tx.CashierName == f.CashierName
		}
		return tx.CashierID == f.CashierID
	}
	return true
}

// Query renders the spec into the wire filter body shared by every remote
// report endpoint.
func (f FilterSpec) Query() Query {
	return Query{
		From:      f.DateFrom.Format(time.DateOnly),
		To:        f.DateTo.Format(time.DateOnly),
		CashierID: f.CashierID,
		Payment:   f.Payment,
	}
}

func (f FilterSpec) location() *time.Location {
	if f.loc == nil {
		return time.Local
	}
	return f.loc
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Query is the filter body accepted by every remote report endpoint.
type Query struct {
	From      string               `json:"from"`
	To        string               `json:"to"`
	CashierID string               `json:"cashierId,omitempty"`
	Payment   domain.PaymentMethod `json:"paymentMethod,omitempty"`
}
