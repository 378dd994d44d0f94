package order

import (
	"cmp"
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

// Sort orders an order list.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortOldest    Sort = "oldest"
	SortTotalAsc  Sort = "total_asc"
	SortTotalDesc Sort = "total_desc"
)

// ErrUnknownSort is returned by ParseSort for unsupported values.
var ErrUnknownSort = errors.New("unknown sort")

// ParseSort parses a sort name; the empty string selects SortNewest.
func ParseSort(s string) (Sort, error) {
	switch v := Sort(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortTotalAsc, SortTotalDesc:
		return v, nil
	default:
		return "", errors.Wrapf(ErrUnknownSort, "%q", s)
	}
}

// Query filters and sorts an order list the way the order tracking view
// does.
type Query struct {
	// Status keeps only orders in this status when set.
	Status Status
	// Text keeps orders whose code or any item name contains it,
	// case-insensitively.
	Text string
	Sort Sort
}

// Apply returns the matching orders in the requested order. The input slice
// is not modified.
func (q Query) Apply(orders []Order) []Order {
	text := strings.ToLower(strings.TrimSpace(q.Text))

	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		if text != "" && !matchesText(o, text) {
			continue
		}
		out = append(out, o)
	}

	slices.SortStableFunc(out, compareBy(q.Sort))
	return out
}

func matchesText(o Order, text string) bool {
	if strings.Contains(strings.ToLower(o.Code), text) {
		return true
	}
	for _, it := range o.Items {
		if strings.Contains(strings.ToLower(it.Name), text) {
			return true
		}
	}
	return false
}

func compareBy(s Sort) func(a, b Order) int {
	switch s {
	case SortOldest:
		return func(a, b Order) int { return a.PlacedAt.Compare(b.PlacedAt) }
	case SortTotalAsc:
		return func(a, b Order) int { return cmp.Compare(a.Total, b.Total) }
	case SortTotalDesc:
		return func(a, b Order) int { return cmp.Compare(b.Total, a.Total) }
	default:
		return func(a, b Order) int { return b.PlacedAt.Compare(a.PlacedAt) }
	}
}
