package splits

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charter-reconciliation/internal/models"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func receipt(id int64, vendor, day, gross, description string) *models.Receipt {
	return &models.Receipt{
		ID:          id,
		VendorName:  vendor,
		ReceiptDate: date(day),
		GrossAmount: dec(gross),
		Description: description,
	}
}

func link(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: true}
}

func TestDeclaredTotal(t *testing.T) {
	got, ok := DeclaredTotal("split, total $85.76")
	require.True(t, ok)
	assert.True(t, got.Equal(dec("85.76")))

	got, ok = DeclaredTotal("part card part cash, total 1,234.50")
	require.True(t, ok)
	assert.True(t, got.Equal(dec("1234.50")))

	_, ok = DeclaredTotal("fuel fill-up")
	assert.False(t, ok)
}

func TestSiblingIDs(t *testing.T) {
	assert.Equal(t, []int64{214}, SiblingIDs("split with #214"))
	assert.Equal(t, []int64{12, 13}, SiblingIDs("with #12, see #13"))
	assert.Empty(t, SiblingIDs("no markers here"))
}

func TestResolve_DeclaredTotalGroup(t *testing.T) {
	// Two FAS GAS receipts, same date, $80.00 + $5.76, declared total $85.76.
	// The banking link must land on the lower-id member.
	r1 := receipt(101, "FAS GAS", "2012-04-10", "80.00", "")
	r1.BankingTransactionID = link(900)
	r2 := receipt(102, "FAS GAS", "2012-04-10", "5.76", "split, total $85.76")

	res := Resolve([]*models.Receipt{r2, r1})
	require.Len(t, res.Groups, 1)
	require.Empty(t, res.NeedsReview)

	g := res.Groups[0]
	assert.Equal(t, int64(101), g.ID)
	assert.True(t, g.Total.Equal(dec("85.76")))
	require.True(t, g.BankingTransactionID.Valid)
	assert.Equal(t, int64(900), g.BankingTransactionID.Int64)

	updates := res.PlanUpdates()
	require.Len(t, updates, 2)
	assert.Equal(t, int64(101), updates[0].ReceiptID)
	assert.Equal(t, link(101), updates[0].SplitGroupID)
	assert.Equal(t, link(900), updates[0].BankingTransactionID)
	assert.Equal(t, int64(102), updates[1].ReceiptID)
	assert.Equal(t, link(101), updates[1].SplitGroupID)
	assert.False(t, updates[1].BankingTransactionID.Valid)
}

func TestResolve_LinkMovesToLowestID(t *testing.T) {
	// The link sits on the higher-id member and must be re-derived onto the
	// lowest-id member.
	r1 := receipt(201, "FAS GAS", "2012-04-10", "80.00", "")
	r2 := receipt(202, "FAS GAS", "2012-04-10", "5.76", "split, total $85.76")
	r2.BankingTransactionID = link(901)

	res := Resolve([]*models.Receipt{r1, r2})
	require.Len(t, res.Groups, 1)

	updates := res.PlanUpdates()
	require.Len(t, updates, 2)
	assert.Equal(t, int64(201), updates[0].ReceiptID)
	assert.Equal(t, link(901), updates[0].BankingTransactionID)
	assert.Equal(t, int64(202), updates[1].ReceiptID)
	assert.False(t, updates[1].BankingTransactionID.Valid)
}

func TestResolve_SiblingMarkerGroup(t *testing.T) {
	r1 := receipt(301, "CO-OP", "2012-05-02", "40.00", "")
	r2 := receipt(302, "CO-OP", "2012-05-02", "12.34", "split with #301")

	res := Resolve([]*models.Receipt{r1, r2})
	require.Len(t, res.Groups, 1)
	assert.Equal(t, int64(301), res.Groups[0].ID)
	assert.True(t, res.Groups[0].Total.Equal(dec("52.34")))
}

func TestResolve_AmbiguousLeftUngrouped(t *testing.T) {
	// Same vendor and date, no marker, no declared total: never guessed.
	r1 := receipt(401, "FAS GAS", "2012-06-01", "80.00", "")
	r2 := receipt(402, "FAS GAS", "2012-06-01", "5.76", "")

	res := Resolve([]*models.Receipt{r1, r2})
	assert.Empty(t, res.Groups)
	assert.Empty(t, res.NeedsReview)
	assert.Len(t, res.Ungrouped, 2)
}

func TestResolve_AmbiguousTotalNeedsReview(t *testing.T) {
	// Two distinct member sets sum to the declared total; picking one would
	// misattribute money.
	r1 := receipt(501, "LIQUOR BARN", "2012-07-01", "30.00", "split, total $50.00")
	r2 := receipt(502, "LIQUOR BARN", "2012-07-01", "20.00", "")
	r3 := receipt(503, "LIQUOR BARN", "2012-07-01", "20.00", "")

	res := Resolve([]*models.Receipt{r1, r2, r3})
	assert.Empty(t, res.Groups)
	require.Len(t, res.NeedsReview, 1)
	assert.Equal(t, ReviewAmbiguousTotal, res.NeedsReview[0].Reason)
	assert.Len(t, res.NeedsReview[0].Receipts, 3)
}

func TestResolve_ConflictingSignalsNeedsReview(t *testing.T) {
	// Sibling marker joins the two receipts but the declared total disagrees
	// with their sum. No documented tie-break exists, so: manual review.
	r1 := receipt(601, "CO-OP", "2012-08-01", "40.00", "")
	r2 := receipt(602, "CO-OP", "2012-08-01", "12.34", "with #601, total $99.99")

	res := Resolve([]*models.Receipt{r1, r2})
	assert.Empty(t, res.Groups)
	require.Len(t, res.NeedsReview, 1)
	assert.Equal(t, ReviewConflictingSignals, res.NeedsReview[0].Reason)
}

func TestResolve_MultipleBankLinksNeedsReview(t *testing.T) {
	r1 := receipt(651, "CO-OP", "2012-08-02", "40.00", "")
	r1.BankingTransactionID = link(910)
	r2 := receipt(652, "CO-OP", "2012-08-02", "12.34", "with #651")
	r2.BankingTransactionID = link(911)

	res := Resolve([]*models.Receipt{r1, r2})
	assert.Empty(t, res.Groups)
	require.Len(t, res.NeedsReview, 1)
	assert.Equal(t, ReviewMultipleBankLinks, res.NeedsReview[0].Reason)
}

func TestResolve_Idempotent(t *testing.T) {
	r1 := receipt(701, "FAS GAS", "2012-09-01", "80.00", "")
	r1.BankingTransactionID = link(920)
	r2 := receipt(702, "FAS GAS", "2012-09-01", "5.76", "split, total $85.76")

	first := Resolve([]*models.Receipt{r1, r2})
	require.Len(t, first.Groups, 1)

	// Apply the planned updates, then resolve again.
	byID := map[int64]*models.Receipt{r1.ID: r1, r2.ID: r2}
	for _, u := range first.PlanUpdates() {
		byID[u.ReceiptID].SplitGroupID = u.SplitGroupID
		byID[u.ReceiptID].BankingTransactionID = u.BankingTransactionID
	}

	second := Resolve([]*models.Receipt{r1, r2})
	require.Len(t, second.Groups, 1)
	assert.Equal(t, first.Groups[0].ID, second.Groups[0].ID)
	assert.True(t, first.Groups[0].Total.Equal(second.Groups[0].Total))
	assert.Empty(t, second.PlanUpdates(), "re-run must plan no mutations")
}

func TestResolve_ExistingGroupsReformed(t *testing.T) {
	// Receipts already sharing a split_group_id re-form the same group even
	// without any description marker.
	r1 := receipt(801, "FAS GAS", "2012-10-01", "80.00", "")
	r1.SplitGroupID = link(801)
	r1.BankingTransactionID = link(930)
	r2 := receipt(802, "FAS GAS", "2012-10-01", "5.76", "")
	r2.SplitGroupID = link(801)

	res := Resolve([]*models.Receipt{r1, r2})
	require.Len(t, res.Groups, 1)
	assert.Equal(t, int64(801), res.Groups[0].ID)
	assert.Empty(t, res.PlanUpdates())
}

func TestResolve_GroupInvariants(t *testing.T) {
	r1 := receipt(901, "FAS GAS", "2012-11-01", "80.00", "")
	r1.BankingTransactionID = link(940)
	r2 := receipt(902, "FAS GAS", "2012-11-01", "5.76", "split, total $85.76")
	r3 := receipt(903, "CO-OP", "2012-11-01", "25.00", "with #904")
	r4 := receipt(904, "CO-OP", "2012-11-01", "10.00", "")

	res := Resolve([]*models.Receipt{r1, r2, r3, r4})
	require.Len(t, res.Groups, 2)

	for _, g := range res.Groups {
		sum := dec("0")
		for _, m := range g.Receipts {
			sum = sum.Add(m.GrossAmount)
		}
		assert.True(t, sum.Sub(g.Total).Abs().LessThanOrEqual(dec("0.01")))
		assert.Equal(t, g.Receipts[0].ID, g.ID)
	}

	// After applying updates, exactly one member per group carries the link
	// (when the group has one at all).
	all := []*models.Receipt{r1, r2, r3, r4}
	byID := make(map[int64]*models.Receipt)
	for _, r := range all {
		byID[r.ID] = r
	}
	for _, u := range res.PlanUpdates() {
		byID[u.ReceiptID].SplitGroupID = u.SplitGroupID
		byID[u.ReceiptID].BankingTransactionID = u.BankingTransactionID
	}
	for _, g := range res.Groups {
		links := 0
		for _, m := range g.Receipts {
			if m.BankingTransactionID.Valid {
				links++
			}
		}
		if g.BankingTransactionID.Valid {
			assert.Equal(t, 1, links, "group %d", g.ID)
		} else {
			assert.Zero(t, links, "group %d", g.ID)
		}
	}
}

func TestResolve_NeverCrossesVendorOrDate(t *testing.T) {
	r1 := receipt(951, "FAS GAS", "2012-12-01", "80.00", "split, total $85.76")
	r2 := receipt(952, "CO-OP", "2012-12-01", "5.76", "")
	r3 := receipt(953, "FAS GAS", "2012-12-02", "5.76", "")

	res := Resolve([]*models.Receipt{r1, r2, r3})
	assert.Empty(t, res.Groups)
	assert.Len(t, res.Ungrouped, 3)
}
