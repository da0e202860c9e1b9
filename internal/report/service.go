// Package report implements the sales-reporting reconciliation and
// aggregation engine: it combines the authoritative server-side ledger with
// the offline-entered local ledger under one FilterSpec and produces a single
// consistent view.
//
// Every invocation recomputes from scratch; nothing is cached between filter
// changes or page navigations, and the pipeline is re-entrant. Superseding an
// in-flight report with a newer spec is the caller's job (last-request-wins):
// the engine does not cancel older runs on its own.
package report

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"lakumart/backoffice/internal/domain"
	"lakumart/backoffice/internal/ledger"
)

// RemoteClient is the contract over the external reporting API. Each method
// maps to one report dimension; the engine treats every call as independent
// and tolerates individual failures.
type RemoteClient interface {
	Summary(ctx context.Context, q Query) (*domain.Summary, error)
	Daily(ctx context.Context, q Query) ([]domain.DailyPoint, error)
	PaymentBreakdown(ctx context.Context, q Query) ([]domain.PaymentSlice, error)
	Transactions(ctx context.Context, q Query, page, limit int) ([]domain.Transaction, domain.Pagination, error)
	ProductTotals(ctx context.Context, q Query) ([]domain.ProductTotal, error)
	CashierTotals(ctx context.Context, q Query) ([]domain.CashierTotal, error)
}

// SalesReport is the assembled result of one pipeline run. A nil Summary
// means "no data" and must be rendered as an empty state, not as zeros.
// Degraded names the dimensions whose source failed, for the partial-failure
// banner; every other dimension still renders.
type SalesReport struct {
	Summary      *domain.Summary       `json:"summary,omitempty"`
	Rows         []domain.Transaction  `json:"rows"`
	TotalPages   int                   `json:"total_pages"`
	Daily        []domain.DailyPoint   `json:"daily"`
	ByPayment    []domain.PaymentSlice `json:"by_payment"`
	ByProduct    []domain.ProductTotal `json:"by_product"`
	ByCashier    []domain.CashierTotal `json:"by_cashier"`
	Degraded     []string              `json:"degraded,omitempty"`
	SkippedLocal int                   `json:"skipped_local_records,omitempty"`
	MergeStats   MergeStats            `json:"merge_stats,omitempty"`
}

type Service struct {
	remote   RemoteClient
	ledger   ledger.Store
	taxRate  float64
	pageSize int
	loc      *time.Location
}

func NewService(remote RemoteClient, ledgerStore ledger.Store, taxRate float64, pageSize int, loc *time.Location) *Service {
	if taxRate <= 0 {
		taxRate = DefaultTaxRate
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if loc == nil {
		loc = time.Local
	}

	return &Service{
		remote:   remote,
		ledger:   ledgerStore,
		taxRate:  taxRate,
		pageSize: pageSize,
		loc:      loc,
	}
}

// Location returns the session time zone reports are computed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// BuildFilter constructs the FilterSpec for a caller in the service's time
// zone, enforcing the privilege rules.
func (s *Service) BuildFilter(dateFrom, dateTo time.Time, cashierSelector, paymentSelector string, caller domain.Actor) (FilterSpec, error) {
	return NewFilterSpec(dateFrom, dateTo, cashierSelector, paymentSelector, caller, s.loc)
}

// SalesReport runs the whole pipeline for one spec: the six remote queries in
// parallel, the offline ledger read, then merge, aggregate and page.
//
// Failures degrade per dimension. A failed remote summary falls back to
// local-only figures; a failed ledger read falls back to remote-only. Only an
// invalid spec is refused outright.
func (s *Service) SalesReport(ctx context.Context, spec FilterSpec, page int, query string) (SalesReport, error) {
	if !spec.Valid() {
		return SalesReport{}, fmt.Errorf("%w: spec must be built through NewFilterSpec", ErrInvalidFilter)
	}
	if page < 1 {
		page = 1
	}

	q := spec.Query()

	var (
		remoteSummary *domain.Summary
		daily         []domain.DailyPoint
		byPayment     []domain.PaymentSlice
		remoteTxs     []domain.Transaction
		remotePages   domain.Pagination
		byProduct     []domain.ProductTotal
		byCashier     []domain.CashierTotal

		mu       sync.Mutex
		degraded []string
	)

	fail := func(dimension string, err error) {
		log.Printf("[report] WARN: remote %s query failed, degrading: %v", dimension, err)
		mu.Lock()
		degraded = append(degraded, dimension)
		mu.Unlock()
	}

	// The six remote dimensions are independent; issue them concurrently and
	// isolate each failure to its own slot.
	var wg sync.WaitGroup
	wg.Add(6)
	go func() {
		defer wg.Done()
		summary, err := s.remote.Summary(ctx, q)
		if err != nil {
			fail("summary", err)
			return
		}
		remoteSummary = summary
	}()
	go func() {
		defer wg.Done()
		points, err := s.remote.Daily(ctx, q)
		if err != nil {
			fail("daily", err)
			return
		}
		daily = points
	}()
	go func() {
		defer wg.Done()
		slices, err := s.remote.PaymentBreakdown(ctx, q)
		if err != nil {
			fail("payment", err)
			return
		}
		byPayment = slices
	}()
	go func() {
		defer wg.Done()
		txs, pagination, err := s.remote.Transactions(ctx, q, page, s.pageSize)
		if err != nil {
			fail("transactions", err)
			return
		}
		remoteTxs = txs
		remotePages = pagination
	}()
	go func() {
		defer wg.Done()
		totals, err := s.remote.ProductTotals(ctx, q)
		if err != nil {
			fail("product", err)
			return
		}
		byProduct = totals
	}()
	go func() {
		defer wg.Done()
		totals, err := s.remote.CashierTotals(ctx, q)
		if err != nil {
			fail("cashier", err)
			return
		}
		byCashier = totals
	}()

	localTxs, skippedLocal, ledgerErr := s.ledger.List(ctx)
	if ledgerErr != nil {
		log.Printf("[report] WARN: offline ledger read failed, degrading to remote-only: %v", ledgerErr)
		localTxs = nil
	}

	wg.Wait()

	if ledgerErr != nil {
		degraded = append(degraded, "local-ledger")
	}

	merged, stats := Merge(remoteTxs, localTxs, spec)
	rows, pagerPages := Page(merged, query, page, s.pageSize)

	totalPages := pagerPages
	if remotePages.TotalPages > totalPages {
		totalPages = remotePages.TotalPages
	}

	return SalesReport{
		Summary:      Combine(remoteSummary, localTxs, spec, s.taxRate),
		Rows:         rows,
		TotalPages:   totalPages,
		Daily:        orEmptyDaily(daily),
		ByPayment:    orEmptyPayment(byPayment),
		ByProduct:    orEmptyProduct(byProduct),
		ByCashier:    orEmptyCashier(byCashier),
		Degraded:     degraded,
		SkippedLocal: skippedLocal,
		MergeStats:   stats,
	}, nil
}

func orEmptyDaily(v []domain.DailyPoint) []domain.DailyPoint {
	if v == nil {
		return []domain.DailyPoint{}
	}
	return v
}

func orEmptyPayment(v []domain.PaymentSlice) []domain.PaymentSlice {
	if v == nil {
		return []domain.PaymentSlice{}
	}
	return v
}

func orEmptyProduct(v []domain.ProductTotal) []domain.ProductTotal {
	if v == nil {
		return []domain.ProductTotal{}
	}
	return v
}

func orEmptyCashier(v []domain.CashierTotal) []domain.CashierTotal {
	if v == nil {
		return []domain.CashierTotal{}
	}
	return v
}
