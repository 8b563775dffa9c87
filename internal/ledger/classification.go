package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockledger/internal/cache"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ABC classes.
const (
	ClassA = "A"
	ClassB = "B"
	ClassC = "C"
)

// Cumulative value share boundaries for the ABC walk.
const (
	classAThreshold = 80.0
	classBThreshold = 95.0
)

// DefaultClassificationTTL bounds how stale a cached classification may be.
const DefaultClassificationTTL = 15 * time.Minute

// ClassifiedItem is one item with its share of the aggregated value.
type ClassifiedItem struct {
	ItemID        uuid.UUID       `json:"item_id"`
	ItemCode      string          `json:"item_code"`
	ItemName      string          `json:"item_name"`
	Amount        decimal.Decimal `json:"amount"`
	Percentage    float64         `json:"percentage"`
	CumulativePct float64         `json:"cumulative_pct"`
	Class         string          `json:"class"`
}

// Classification is the full ABC partition over one aggregation window.
type Classification struct {
	Kind       string     `json:"kind"`
	Category   string     `json:"category"`
	WindowDays int        `json:"window_days"`
	HotelID    *uuid.UUID `json:"hotel_id,omitempty"`

	Items   []ClassifiedItem `json:"items"`
	Summary SummaryStats     `json:"summary"`
}

// SummaryStats condenses a classification into per-class counts and the
// Pareto diagnostics.
type SummaryStats struct {
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	CountA int `json:"count_a"`
	CountB int `json:"count_b"`
	CountC int `json:"count_c"`

	AmountA decimal.Decimal `json:"amount_a"`
	AmountB decimal.Decimal `json:"amount_b"`
	AmountC decimal.Decimal `json:"amount_c"`

	// Share of the item population in class A, and the share of total value
	// it carries.
	ClassAPctItems float64 `json:"class_a_pct_items"`
	ClassAPctValue float64 `json:"class_a_pct_value"`

	// ParetoValid reports whether the distribution shows the expected
	// concentration: few A items carrying most of the value.
	ParetoValid bool    `json:"pareto_valid"`
	Gini        float64 `json:"gini"`
}

// ClassificationEngine ranks items by aggregated movement value and assigns
// ABC classes by cumulative share. Results are cached per window and day.
type ClassificationEngine struct {
	entryRepo repository.EntryRepository
	cache     cache.Cache
	ttl       time.Duration
	log       *logrus.Logger

	// now is injectable for tests.
	now func() time.Time
}

func NewClassificationEngine(entryRepo repository.EntryRepository, c cache.Cache, log *logrus.Logger) *ClassificationEngine {
	return &ClassificationEngine{
		entryRepo: entryRepo,
		cache:     c,
		ttl:       DefaultClassificationTTL,
		log:       log,
		now:       time.Now,
	}
}

// Classify aggregates entry amounts of one kind and category over the last
// windowDays and partitions the items into A, B and C classes. The class of
// an item is decided by the cumulative value share accumulated before it, so
// the first item is always A and a single-item population is all A.
func (e *ClassificationEngine) Classify(ctx context.Context, kind, category string, windowDays int, hotelID *uuid.UUID) (*Classification, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	key := e.cacheKey(kind, category, windowDays, hotelID)
	var cached Classification
	if hit, err := e.cache.Get(ctx, key, &cached); err != nil {
		e.log.WithError(err).Warn("classification cache read failed")
	} else if hit {
		return &cached, nil
	}

	since := e.now().AddDate(0, 0, -windowDays)
	amounts, err := e.entryRepo.AmountsByItem(ctx, kind, category, since, hotelID)
	if err != nil {
		return nil, err
	}

	result := e.partition(kind, category, windowDays, hotelID, amounts)
	if err := e.cache.Set(ctx, key, result, e.ttl); err != nil {
		e.log.WithError(err).Warn("classification cache write failed")
	}
	return result, nil
}

// ClearCache drops every cached classification, called after imports and
// replacements change the underlying aggregates.
func (e *ClassificationEngine) ClearCache(ctx context.Context) error {
	return e.cache.Clear(ctx)
}

func (e *ClassificationEngine) cacheKey(kind, category string, windowDays int, hotelID *uuid.UUID) string {
	hotel := "all"
	if hotelID != nil {
		hotel = hotelID.String()
	}
	day := e.now().Format("2006-01-02")
	return fmt.Sprintf("abc:%s:%s:%d:%s:%s", kind, category, windowDays, hotel, day)
}

func (e *ClassificationEngine) partition(kind, category string, windowDays int, hotelID *uuid.UUID, amounts []model.ItemAmount) *Classification {
	result := &Classification{
		Kind:       kind,
		Category:   category,
		WindowDays: windowDays,
		HotelID:    hotelID,
	}

	// Zero and negative aggregates (fully reverted spend) carry no share.
	kept := amounts[:0]
	for _, a := range amounts {
		if a.Amount.IsPositive() {
			kept = append(kept, a)
		}
	}
	amounts = kept

	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Amount)
	}
	result.Summary.TotalItems = len(amounts)
	result.Summary.TotalAmount = total
	if len(amounts) == 0 || !total.IsPositive() {
		return result
	}

	totalF, _ := total.Float64()
	cumulative := 0.0
	values := make([]float64, 0, len(amounts))
	for _, a := range amounts {
		amountF, _ := a.Amount.Float64()
		pct := amountF / totalF * 100

		class := ClassC
		switch {
		case cumulative < classAThreshold:
			class = ClassA
		case cumulative < classBThreshold:
			class = ClassB
		}
		cumulative += pct

		result.Items = append(result.Items, ClassifiedItem{
			ItemID:        a.ItemID,
			ItemCode:      a.ItemCode,
			ItemName:      a.ItemName,
			Amount:        a.Amount,
			Percentage:    pct,
			CumulativePct: cumulative,
			Class:         class,
		})
		values = append(values, amountF)

		switch class {
		case ClassA:
			result.Summary.CountA++
			result.Summary.AmountA = result.Summary.AmountA.Add(a.Amount)
		case ClassB:
			result.Summary.CountB++
			result.Summary.AmountB = result.Summary.AmountB.Add(a.Amount)
		default:
			result.Summary.CountC++
			result.Summary.AmountC = result.Summary.AmountC.Add(a.Amount)
		}
	}

	s := &result.Summary
	s.ClassAPctItems = float64(s.CountA) / float64(s.TotalItems) * 100
	amountAF, _ := s.AmountA.Float64()
	s.ClassAPctValue = amountAF / totalF * 100
	s.ParetoValid = s.ClassAPctItems <= 35 && s.ClassAPctValue >= 70
	s.Gini = Gini(values)
	return result
}

// Gini computes the Gini coefficient of a value distribution, 0 for perfect
// equality and approaching 1 as value concentrates in few items.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum, weighted float64
	for i, v := range sorted {
		sum += v
		weighted += float64(2*(i+1)-n-1) * v
	}
	if sum == 0 {
		return 0
	}
	return weighted / (float64(n) * sum)
}
