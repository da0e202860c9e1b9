// Package remote is the thin HTTP contract over the external reporting API.
// It owns wire decoding and payment-method normalization for remote rows;
// everything downstream works with the unified domain shape only.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lakumart/backoffice/internal/domain"
	"lakumart/backoffice/internal/report"
)

// Error wraps any failed remote call. Callers treat it as a recoverable
// source-unavailable condition, never as fatal.
type Error struct {
	Path   string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("report api %s: status %d", e.Path, e.Status)
	}
	return fmt.Sprintf("report api %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Summary(ctx context.Context, q report.Query) (*domain.Summary, error) {
	var payload struct {
		Data wireSummary `json:"data"`
	}
	if err := c.post(ctx, "/report/summary", q, &payload); err != nil {
		return nil, err
	}
	summary := payload.Data.toDomain()
	return &summary, nil
}

func (c *Client) Daily(ctx context.Context, q report.Query) ([]domain.DailyPoint, error) {
	var payload struct {
		Data []domain.DailyPoint `json:"data"`
	}
	if err := c.post(ctx, "/report/daily", q, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

func (c *Client) PaymentBreakdown(ctx context.Context, q report.Query) ([]domain.PaymentSlice, error) {
	var payload struct {
		Data []wirePaymentSlice `json:"data"`
	}
	if err := c.post(ctx, "/report/payment", q, &payload); err != nil {
		return nil, err
	}

	slices := make([]domain.PaymentSlice, 0, len(payload.Data))
	for _, slice := range payload.Data {
		method, ok := domain.NormalizePaymentMethod(slice.Method)
		if !ok {
			method = domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(slice.Method)))
		}
		slices = append(slices, domain.PaymentSlice{
			Method:       method,
			Transactions: slice.Transactions,
			TotalCents:   slice.Total,
		})
	}
	return slices, nil
}

func (c *Client) Transactions(ctx context.Context, q report.Query, page, limit int) ([]domain.Transaction, domain.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	path := "/report/transactions?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)

	var payload struct {
		Data       []wireTransaction `json:"data"`
		Pagination domain.Pagination `json:"pagination"`
	}
	if err := c.post(ctx, path, q, &payload); err != nil {
		return nil, domain.Pagination{}, err
	}

	transactions := make([]domain.Transaction, 0, len(payload.Data))
	for _, wire := range payload.Data {
		transactions = append(transactions, wire.toDomain())
	}
	return transactions, payload.Pagination, nil
}

func (c *Client) ProductTotals(ctx context.Context, q report.Query) ([]domain.ProductTotal, error) {
	var payload struct {
		Data []domain.ProductTotal `json:"data"`
	}
	if err := c.post(ctx, "/report/product", q, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

func (c *Client) CashierTotals(ctx context.Context, q report.Query) ([]domain.CashierTotal, error) {
	var payload struct {
		Data []domain.CashierTotal `json:"data"`
	}
	if err := c.post(ctx, "/report/cashier", q, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	if c.baseURL == "" {
		return &Error{Path: path, Err: errors.New("report api base url not configured")}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return &Error{Path: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return &Error{Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &Error{Path: path, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &Error{Path: path, Err: err}
	}
	return nil
}

type wireSummary struct {
	GrossSales      int64  `json:"grossSales"`
	Transactions    int64  `json:"transactionCount"`
	Discount        int64  `json:"totalDiscount"`
	Tax             int64  `json:"totalTax"`
	NetSales        int64  `json:"netSales"`
	AverageDuration string `json:"averageTransactionDuration"`
}

func (w wireSummary) toDomain() domain.Summary {
	return domain.Summary{
		GrossSalesCents:  w.GrossSales,
		TransactionCount: w.Transactions,
		DiscountCents:    w.Discount,
		TaxCents:         w.Tax,
		NetSalesCents:    w.NetSales,
		AverageDuration:  w.AverageDuration,
	}
}

type wirePaymentSlice struct {
	Method       string `json:"paymentMethod"`
	Transactions int64  `json:"transactions"`
	Total        int64  `json:"total"`
}

type wireLineItem struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
}

type wireTransaction struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	CashierID     string         `json:"cashierId"`
	CashierName   string         `json:"cashierName"`
	Customer      string         `json:"customer"`
	PaymentMethod string         `json:"paymentMethod"`
	Subtotal      int64          `json:"subtotal"`
	Discount      int64          `json:"discount"`
	Total         int64          `json:"total"`
	Items         []wireLineItem `json:"items"`
}

func (w wireTransaction) toDomain() domain.Transaction {
	method, ok := domain.NormalizePaymentMethod(w.PaymentMethod)
	if !ok {
		method = domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(w.PaymentMethod)))
	}

	customer := strings.TrimSpace(w.Customer)
	if customer == "" {
		customer = domain.WalkInCustomerLabel
	}

	items := make([]domain.LineItem, 0, len(w.Items))
	for _, item := range w.Items {
		items = append(items, domain.LineItem{
			ProductName:    item.ProductName,
			Qty:            item.Quantity,
			UnitPriceCents: item.UnitPrice,
		})
	}

	return domain.Transaction{
		ID:            w.ID,
		Timestamp:     w.Timestamp,
		CashierID:     w.CashierID,
		CashierName:   w.CashierName,
		CustomerLabel: customer,
		PaymentMethod: method,
		SubtotalCents: w.Subtotal,
		DiscountCents: w.Discount,
		TotalCents:    w.Total,
		LineItems:     items,
		Origin:        domain.OriginRemote,
	}
}
