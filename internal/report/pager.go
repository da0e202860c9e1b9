package report

import (
	"strconv"
	"strings"

	"lakumart/backoffice/internal/domain"
)

// rowDateLayout is the date rendering the transaction table shows; free-text
// search matches against the same rendering.
const rowDateLayout = "02/01/2006"

// Page applies free-text search and a stable page window over the merged,
// already-sorted transaction set. The query is a case-insensitive substring
// match against cashier name, customer label, payment method, formatted total
// and formatted date; an empty query matches everything.
//
// totalPages is max(1, ceil(matched/pageSize)). The function does not clamp:
// a page beyond totalPages yields empty rows, and callers decide whether to
// clamp and re-request.
func Page(transactions []domain.Transaction, query string, pageNumber, pageSize int) ([]domain.Transaction, int) {
	if pageSize < 1 {
		pageSize = 10
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	matched := transactions
	if needle != "" {
		matched = make([]domain.Transaction, 0, len(transactions))
		for _, tx := range transactions {
			if strings.Contains(searchText(tx), needle) {
				matched = append(matched, tx)
			}
		}
	}

	totalPages := (len(matched) + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	start := (pageNumber - 1) * pageSize
	if pageNumber < 1 || start >= len(matched) {
		return []domain.Transaction{}, totalPages
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], totalPages
}

func searchText(tx domain.Transaction) string {
	fields := []string{
		tx.CashierName,
		tx.CustomerLabel,
		string(tx.PaymentMethod),
		FormatAmount(tx.TotalCents),
		tx.Timestamp.Format(rowDateLayout),
	}
	return strings.ToLower(strings.Join(fields, " "))
}

// FormatAmount renders minor units the way the transaction table does,
// e.g. 1500000 -> "Rp 1.500.000".
func FormatAmount(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}

	digits := strconv.FormatInt(cents, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := "Rp " + b.String()
	if negative {
		out = "-" + out
	}
	return out
}
