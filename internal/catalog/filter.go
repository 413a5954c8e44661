package catalog

import (
	"strings"
	"time"

	"github.com/burelanicolas23/24seven/internal/orders"
)

// AllCategories is the category entry that disables category filtering.
const AllCategories = "All"

type Filter struct {
	Query    string
	Category string
}

func (f Filter) match(p orders.Product) bool {
	if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
		return false
	}
	if f.Category != "" && f.Category != AllCategories && p.Category != f.Category {
		return false
	}
	return true
}

func (f Filter) Apply(products []orders.Product) []orders.Product {
	out := make([]orders.Product, 0, len(products))
	for _, p := range products {
		if f.match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Categories returns AllCategories followed by each distinct category in the
// order it first appears.
func Categories(products []orders.Product) []string {
	out := []string{AllCategories}
	seen := map[string]bool{}
	for _, p := range products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	return out
}

// ParseClock parses an HH:mm time of day into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// OpenNow reports whether now falls inside either of the product's merchant
// shifts. A shift whose close is before its open runs past midnight.
func OpenNow(p orders.Product, now time.Time) bool {
	minute := now.Hour()*60 + now.Minute()
	return inShift(p.MerchantOpening, p.MerchantClosing, minute) ||
		inShift(p.MerchantOpening2, p.MerchantClosing2, minute)
}

func inShift(opening, closing string, minute int) bool {
	if opening == "" || closing == "" {
		return false
	}
	from, err := ParseClock(opening)
	if err != nil {
		return false
	}
	to, err := ParseClock(closing)
	if err != nil {
		return false
	}
	if from <= to {
		return minute >= from && minute < to
	}
	return minute >= from || minute < to
}
