package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusUnset           StatusLabel = ""
	StatusWishlist        StatusLabel = "Wishlist"
	StatusToBeConfirmed   StatusLabel = "To be confirmed"
	StatusSpent           StatusLabel = "Spent"
	StatusToBeSpent       StatusLabel = "To be spent"
	StatusToBeSpentProj   StatusLabel = "To be spent (Projects)"
	StatusToBeSpentRecur  StatusLabel = "To be spent (Recurring)"
	StatusWillNotBeSpent  StatusLabel = "Will not be spent"
	StatusOutOfBudgetItem StatusLabel = "Out of Budget"
)

// StatusLabel is the manual, per-period classification a user assigns to a
// budget line.
type StatusLabel string

// StatusLabels lists the assignable labels in dashboard order.
func StatusLabels() []StatusLabel {
	return []StatusLabel{
		StatusWishlist,
		StatusToBeConfirmed,
		StatusSpent,
		StatusToBeSpent,
		StatusToBeSpentProj,
		StatusToBeSpentRecur,
		StatusWillNotBeSpent,
		StatusOutOfBudgetItem,
	}
}

// ParseStatusLabel matches s case-insensitively against the known labels. An
// empty string yields StatusUnset.
func ParseStatusLabel(s string) (StatusLabel, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusUnset, nil
	}
	for _, l := range StatusLabels() {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return StatusUnset, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// ClassificationEntry is one saved status for (file, category, sub-category,
// period).
type ClassificationEntry struct {
	FileKey     string          `json:"file_key"`
	Category    string          `json:"category"`
	SubCategory string          `json:"sub_category"`
	Period      string          `json:"period"`
	Status      StatusLabel     `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	UpdatedBy   string          `json:"updated_by"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Validate checks the fields a store needs to persist the entry.
func (e ClassificationEntry) Validate() error {
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("entry has empty category")
	}
	if strings.TrimSpace(e.SubCategory) == "" {
		return fmt.Errorf("entry %s has empty sub-category", e.Category)
	}
	if PeriodIndex(e.Period) < 0 {
		return fmt.Errorf("entry %s/%s has unknown period %q", e.Category, e.SubCategory, e.Period)
	}
	if _, err := ParseStatusLabel(string(e.Status)); err != nil {
		return err
	}
	return nil
}

// PeriodIndex returns the zero-based month index of a period label, accepting
// full and three-letter month names; -1 when unknown.
func PeriodIndex(period string) int {
	p := strings.ToLower(strings.TrimSpace(period))
	if len(p) < 3 {
		return -1
	}
	for i, m := range Months {
		full := strings.ToLower(m)
		if p == full || p == full[:3] {
			return i
		}
	}
	return -1
}
