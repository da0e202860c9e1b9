package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakumart/backoffice/internal/domain"
)

func remoteTx(id string, ts time.Time, totalCents int64) domain.Transaction {
	return domain.Transaction{
		ID: id, Timestamp: ts,
		CashierID: "sinta", CashierName: "Sinta Dewi",
		CustomerLabel: domain.WalkInCustomerLabel,
		PaymentMethod: domain.PaymentCash,
		SubtotalCents: totalCents, TotalCents: totalCents,
		Origin: domain.OriginRemote,
	}
}

func localTx(id string, ts time.Time, totalCents int64) domain.Transaction {
	tx := remoteTx(id, ts, totalCents)
	tx.CashierID = ""
	tx.Origin = domain.OriginLocal
	return tx
}

func openSpec(t *testing.T, from, to time.Time) FilterSpec {
	t.Helper()
	spec, err := NewFilterSpec(from, to, "all", "", admin, jakarta)
	require.NoError(t, err)
	return spec
}

func TestMergeSortsNewestFirst(t *testing.T) {
	spec := openSpec(t, day(2026, 3, 10), day(2026, 3, 10))

	remote := []domain.Transaction{
		remoteTx("trx-1", at(2026, 3, 10, 9), 10000),
		remoteTx("trx-2", at(2026, 3, 10, 15), 20000),
	}
	local := []domain.Transaction{
		localTx("local-1", at(2026, 3, 10, 12), 5000),
	}

	merged, stats := Merge(remote, local, spec)
	require.Len(t, merged, 3)
	assert.Equal(t, "trx-2", merged[0].ID)
	assert.Equal(t, "local-1", merged[1].ID)
	assert.Equal(t, "trx-1", merged[2].ID)
	assert.Zero(t, stats.MissingTimestamp)
	assert.Zero(t, stats.DuplicateIDs)
}

func TestMergeTieBreakRemoteBeforeLocalThenIDAsc(t *testing.T) {
	spec := openSpec(t, day(2026, 3, 10), day(2026, 3, 10))
	ts := at(2026, 3, 10, 12)

	remote := []domain.Transaction{
		remoteTx("trx-b", ts, 1000),
		remoteTx("trx-a", ts, 1000),
	}
	local := []domain.Transaction{
		localTx("local-z", ts, 1000),
		localTx("local-a", ts, 1000),
	}

	merged, _ := Merge(remote, local, spec)
	require.Len(t, merged, 4)
	assert.Equal(t, []string{"trx-a", "trx-b", "local-a", "local-z"}, ids(merged))
}

func TestMergeDedupKeepsFirstSeen(t *testing.T) {
	spec := openSpec(t, day(2026, 3, 10), day(2026, 3, 10))

	first := remoteTx("trx-1", at(2026, 3, 10, 9), 10000)
	shadow := remoteTx("trx-1", at(2026, 3, 10, 11), 99999)

	merged, stats := Merge([]domain.Transaction{first, shadow}, nil, spec)
	require.Len(t, merged, 1)
	assert.Equal(t, int64(10000), merged[0].TotalCents)
	assert.Equal(t, 1, stats.DuplicateIDs)
}

func TestMergeDropsMissingTimestamps(t *testing.T) {
	spec := openSpec(t, day(2026, 3, 10), day(2026, 3, 10))

	broken := remoteTx("trx-1", time.Time{}, 10000)
	ok := remoteTx("trx-2", at(2026, 3, 10, 9), 10000)

	merged, stats := Merge([]domain.Transaction{broken, ok}, nil, spec)
	require.Len(t, merged, 1)
	assert.Equal(t, "trx-2", merged[0].ID)
	assert.Equal(t, 1, stats.MissingTimestamp)
}

func TestMergeFiltersLocalOutOfWindow(t *testing.T) {
	spec := openSpec(t, day(2026, 3, 10), day(2026, 3, 10))

	local := []domain.Transaction{
		localTx("local-1", at(2026, 3, 10, 9), 5000),
		localTx("local-2", at(2026, 3, 9, 23), 7000),
		localTx("local-3", at(2026, 3, 11, 0), 7000),
	}

	merged, _ := Merge(nil, local, spec)
	require.Len(t, merged, 1)
	assert.Equal(t, "local-1", merged[0].ID)
}

func TestMergeIsIdempotent(t *testing.T) {
	spec := openSpec(t, day(2026, 3, 10), day(2026, 3, 10))

	remote := []domain.Transaction{
		remoteTx("trx-1", at(2026, 3, 10, 9), 10000),
		remoteTx("trx-2", at(2026, 3, 10, 15), 20000),
	}
	local := []domain.Transaction{
		localTx("local-1", at(2026, 3, 10, 12), 5000),
	}

	once, _ := Merge(remote, local, spec)
	again, _ := Merge(remote, local, spec)
	assert.Equal(t, once, again)

	// Feeding the merged output back in changes nothing either.
	reFed, stats := Merge(once, nil, spec)
	assert.Equal(t, once, reFed)
	assert.Zero(t, stats.DuplicateIDs)
}

func ids(txs []domain.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
