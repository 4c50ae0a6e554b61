// Package splits identifies receipt rows that jointly represent one physical
// multi-tender purchase and resolves them into stable split groups.
//
// Two detection signals are honored: an explicit sibling marker in the
// free-text description (e.g. "split with #214") and a declared physical
// total (e.g. "split, total $85.76"). When the signals disagree, or a
// declared total admits more than one member set, the receipts are routed to
// manual review rather than guessed at.
package splits

import (
	"database/sql"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"charter-reconciliation/internal/models"
	"charter-reconciliation/internal/money"
)

// Group is one resolved split group. The group id is the smallest member
// receipt id, which makes resolution deterministic and idempotent.
type Group struct {
	ID                   int64
	Receipts             []*models.Receipt // sorted by id
	Total                decimal.Decimal
	BankingTransactionID sql.NullInt64 // the single external link carried by the group
}

// ReviewItem holds receipts that could not be grouped without guessing.
type ReviewItem struct {
	Receipts []*models.Receipt
	Reason   string
}

// Review reasons
const (
	ReviewConflictingSignals = "conflicting_signals"
	ReviewAmbiguousTotal     = "ambiguous_total"
	ReviewMultipleBankLinks  = "multiple_bank_links"
)

// Resolution is the full output of one resolver pass.
type Resolution struct {
	Groups      []Group
	Ungrouped   []*models.Receipt
	NeedsReview []ReviewItem
}

// ReceiptUpdate is one planned mutation from a resolution. Only receipts
// whose stored state differs from the resolved state produce an update, so a
// re-run over already-grouped data plans nothing.
type ReceiptUpdate struct {
	ReceiptID            int64
	SplitGroupID         sql.NullInt64
	BankingTransactionID sql.NullInt64
}

var (
	declaredTotalRe = regexp.MustCompile(`(?i)total[^0-9$]{0,10}\$?\s*([0-9][0-9,]*\.[0-9]{2})`)
	siblingRe       = regexp.MustCompile(`(?i)(?:with|see)\s+(?:receipt\s+)?#([0-9]+)`)
)

// DeclaredTotal extracts a declared physical-receipt total from a
// description, if one is present.
func DeclaredTotal(description string) (decimal.Decimal, bool) {
	m := declaredTotalRe.FindStringSubmatch(description)
	if m == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SiblingIDs extracts declared sibling receipt ids from a description.
func SiblingIDs(description string) []int64 {
	var ids []int64
	for _, m := range siblingRe.FindAllStringSubmatch(description, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Resolve groups the given receipts. Receipts are bucketed by exact
// (vendor_name, receipt_date); grouping never crosses a bucket boundary.
// Already-grouped receipts re-form the same groups, so running Resolve twice
// over its own output yields identical assignments.
func Resolve(receipts []*models.Receipt) Resolution {
	var res Resolution

	buckets := make(map[string][]*models.Receipt)
	var order []string
	for _, r := range receipts {
		k := r.VendorName + "|" + r.ReceiptDate.Format("2006-01-02")
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], r)
	}
	sort.Strings(order)

	for _, k := range order {
		resolveBucket(buckets[k], &res)
	}

	sort.Slice(res.Groups, func(i, j int) bool { return res.Groups[i].ID < res.Groups[j].ID })
	sort.Slice(res.Ungrouped, func(i, j int) bool { return res.Ungrouped[i].ID < res.Ungrouped[j].ID })
	return res
}

func resolveBucket(bucket []*models.Receipt, res *Resolution) {
	sort.Slice(bucket, func(i, j int) bool { return bucket[i].ID < bucket[j].ID })

	if len(bucket) < 2 {
		res.Ungrouped = append(res.Ungrouped, bucket...)
		return
	}

	pool := make(map[int64]*models.Receipt, len(bucket))
	for _, r := range bucket {
		pool[r.ID] = r
	}

	// Existing assignments re-form as-is. A prior run already established
	// membership; recomputing the min-id group identifier keeps the pass
	// idempotent.
	existing := make(map[int64][]*models.Receipt)
	for _, r := range bucket {
		if r.SplitGroupID.Valid {
			existing[r.SplitGroupID.Int64] = append(existing[r.SplitGroupID.Int64], r)
		}
	}
	var existingIDs []int64
	for gid := range existing {
		existingIDs = append(existingIDs, gid)
	}
	sort.Slice(existingIDs, func(i, j int) bool { return existingIDs[i] < existingIDs[j] })
	for _, gid := range existingIDs {
		members := existing[gid]
		if len(members) < 2 {
			continue // a dangling group id resolves like any ungrouped receipt
		}
		emitGroup(members, res)
		for _, m := range members {
			delete(pool, m.ID)
		}
	}

	// Sibling markers: a receipt declaring "with #N" joins N's group when N
	// is in the same bucket. Membership is the transitive closure.
	sibGroups := siblingClosure(pool)
	for _, members := range sibGroups {
		if conflictsWithDeclaredTotal(members) {
			res.NeedsReview = append(res.NeedsReview, ReviewItem{Receipts: members, Reason: ReviewConflictingSignals})
			for _, m := range members {
				delete(pool, m.ID)
			}
			continue
		}
		emitGroup(members, res)
		for _, m := range members {
			delete(pool, m.ID)
		}
	}

	// Declared totals: amounts in the remaining pool that sum to a declared
	// physical-receipt total form a group, but only when exactly one member
	// set does. Several candidate sets would mean guessing.
	resolveDeclaredTotals(pool, res)

	rest := poolSlice(pool)
	res.Ungrouped = append(res.Ungrouped, rest...)
}

// siblingClosure partitions the pool by declared sibling links.
func siblingClosure(pool map[int64]*models.Receipt) [][]*models.Receipt {
	parent := make(map[int64]int64, len(pool))
	for id := range pool {
		parent[id] = id
	}
	var find func(int64) int64
	find = func(x int64) int64 {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int64) {
		ra, rb := find(a), find(b)
		if ra != rb {
			if rb < ra {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}

	linked := make(map[int64]bool)
	for id, r := range pool {
		for _, sib := range SiblingIDs(r.Description) {
			if _, ok := pool[sib]; ok {
				union(id, sib)
				linked[id] = true
				linked[sib] = true
			}
		}
	}

	byRoot := make(map[int64][]*models.Receipt)
	for id := range pool {
		if !linked[id] {
			continue
		}
		root := find(id)
		byRoot[root] = append(byRoot[root], pool[id])
	}

	var roots []int64
	for root := range byRoot {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	var groups [][]*models.Receipt
	for _, root := range roots {
		members := byRoot[root]
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		groups = append(groups, members)
	}
	return groups
}

// conflictsWithDeclaredTotal reports whether a sibling-derived member set
// carries a declared total that disagrees with the set's own sum. The source
// data never documented which signal wins, so a disagreement goes to review.
func conflictsWithDeclaredTotal(members []*models.Receipt) bool {
	sum := decimal.Zero
	for _, m := range members {
		sum = sum.Add(m.GrossAmount)
	}
	for _, m := range members {
		if declared, ok := DeclaredTotal(m.Description); ok {
			if !money.WithinCent(declared, sum) {
				return true
			}
		}
	}
	return false
}

func resolveDeclaredTotals(pool map[int64]*models.Receipt, res *Resolution) {
	receipts := poolSlice(pool)

	totals := make(map[string]decimal.Decimal)
	for _, r := range receipts {
		if declared, ok := DeclaredTotal(r.Description); ok {
			totals[declared.StringFixed(2)] = declared
		}
	}
	var keys []string
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		target := totals[k]
		candidates := poolSlice(pool)
		if len(candidates) < 2 {
			return
		}
		subsets := findSubsets(candidates, target)
		switch len(subsets) {
		case 0:
			// Declared total with no member set: left ungrouped.
		case 1:
			emitGroup(subsets[0], res)
			for _, m := range subsets[0] {
				delete(pool, m.ID)
			}
		default:
			flagged := make(map[int64]*models.Receipt)
			for _, subset := range subsets {
				for _, m := range subset {
					flagged[m.ID] = m
				}
			}
			members := make([]*models.Receipt, 0, len(flagged))
			for _, m := range flagged {
				members = append(members, m)
			}
			sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
			res.NeedsReview = append(res.NeedsReview, ReviewItem{Receipts: members, Reason: ReviewAmbiguousTotal})
			for id := range flagged {
				delete(pool, id)
			}
		}
	}
}

// findSubsets returns every member set of size >= 2 whose gross amounts sum
// to the target within a cent.
func findSubsets(candidates []*models.Receipt, target decimal.Decimal) [][]*models.Receipt {
	var result [][]*models.Receipt
	for size := 2; size <= len(candidates); size++ {
		combine(candidates, size, target, nil, &result)
	}
	return result
}

func combine(candidates []*models.Receipt, size int, target decimal.Decimal, current []*models.Receipt, result *[][]*models.Receipt) {
	if size == 0 {
		sum := decimal.Zero
		for _, r := range current {
			sum = sum.Add(r.GrossAmount)
		}
		if money.WithinCent(sum, target) {
			subset := make([]*models.Receipt, len(current))
			copy(subset, current)
			*result = append(*result, subset)
		}
		return
	}
	if len(candidates) < size {
		return
	}
	combine(candidates[1:], size-1, target, append(current, candidates[0]), result)
	combine(candidates[1:], size, target, current, result)
}

// emitGroup finalizes a member set: min-id group identifier, summed total,
// and the single banking link carried by the group. Two distinct links
// inside one set violate the group invariant and go to review instead.
func emitGroup(members []*models.Receipt, res *Resolution) {
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	total := decimal.Zero
	var link sql.NullInt64
	distinctLinks := 0
	for _, m := range members {
		total = total.Add(m.GrossAmount)
		if m.BankingTransactionID.Valid {
			if link.Valid && link.Int64 != m.BankingTransactionID.Int64 {
				distinctLinks++
			} else if !link.Valid {
				link = m.BankingTransactionID
				distinctLinks = 1
			}
		}
	}
	if distinctLinks > 1 {
		res.NeedsReview = append(res.NeedsReview, ReviewItem{Receipts: members, Reason: ReviewMultipleBankLinks})
		return
	}

	res.Groups = append(res.Groups, Group{
		ID:                   members[0].ID,
		Receipts:             members,
		Total:                total,
		BankingTransactionID: link,
	})
}

// PlanUpdates converts a resolution into the receipt mutations it requires.
// The group's banking link always lands on the lowest-id member; every other
// member's link is cleared. Receipts already in the resolved state produce
// no update, so re-running a resolution plans an empty batch.
func (r Resolution) PlanUpdates() []ReceiptUpdate {
	var updates []ReceiptUpdate
	for _, g := range r.Groups {
		for i, m := range g.Receipts {
			want := ReceiptUpdate{
				ReceiptID:    m.ID,
				SplitGroupID: sql.NullInt64{Int64: g.ID, Valid: true},
			}
			if i == 0 {
				want.BankingTransactionID = g.BankingTransactionID
			}
			if m.SplitGroupID == want.SplitGroupID && m.BankingTransactionID == want.BankingTransactionID {
				continue
			}
			updates = append(updates, want)
		}
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].ReceiptID < updates[j].ReceiptID })
	return updates
}

func poolSlice(pool map[int64]*models.Receipt) []*models.Receipt {
	out := make([]*models.Receipt, 0, len(pool))
	for _, r := range pool {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
