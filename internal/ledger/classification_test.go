package ledger_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"stockledger/internal/ledger"
	"stockledger/internal/model"
)

// seedSpend records one purchase per amount, priced so total_amount equals
// the amount, and returns the item codes in seed order.
func seedSpend(t *testing.T, env *testEnv, amounts []float64) []string {
	t.Helper()
	codes := make([]string, len(amounts))
	for i, amount := range amounts {
		code := fmt.Sprintf("F%04d", i+1)
		item := createTestItem(t, env, code, "kg", 1)
		mustCreate(t, env, ledger.EntryInput{
			ItemID:   item.ID,
			Kind:     model.KindPurchase,
			Quantity: amount,
		})
		codes[i] = code
	}
	return codes
}

func TestClassifyCumulativeBoundaries(t *testing.T) {
	env := newTestEnv(t, ledger.Config{})
	ctx := context.Background()

	// Total 2000: shares 50, 25, 15, 5, 5 percent. The class is decided by
	// the cumulative share before each item, so the third item is still A.
	codes := seedSpend(t, env, []float64{1000, 500, 300, 100, 100})

	result, err := env.classifier.Classify(ctx, model.KindPurchase, model.CategoryFood, 30, nil)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	wantClasses := []string{"A", "A", "A", "B", "C"}
	if len(result.Items) != len(wantClasses) {
		t.Fatalf("classified %d items, want %d", len(result.Items), len(wantClasses))
	}
	for i, want := range wantClasses {
		got := result.Items[i]
		if got.ItemCode != codes[i] {
			t.Errorf("item %d = %s, want %s (must be ordered by amount desc)", i, got.ItemCode, codes[i])
		}
		if got.Class != want {
			t.Errorf("item %s class = %s, want %s", got.ItemCode, got.Class, want)
		}
	}

	s := result.Summary
	if s.CountA != 3 || s.CountB != 1 || s.CountC != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/1/1", s.CountA, s.CountB, s.CountC)
	}
	if math.Abs(s.ClassAPctItems-60) > 1e-9 {
		t.Errorf("class A item share = %v, want 60", s.ClassAPctItems)
	}
	if math.Abs(s.ClassAPctValue-90) > 1e-9 {
		t.Errorf("class A value share = %v, want 90", s.ClassAPctValue)
	}
	// 60 percent of items holding 90 percent of value is too flat for the
	// 80/20 shape.
	if s.ParetoValid {
		t.Error("distribution should not qualify as Pareto-shaped")
	}
}

func TestClassifySingleItemIsAllA(t *testing.T) {
	env := newTestEnv(t, ledger.Config{})
	seedSpend(t, env, []float64{42})

	result, err := env.classifier.Classify(context.Background(), model.KindPurchase, model.CategoryFood, 30, nil)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].Class != ledger.ClassA {
		t.Fatalf("single item must classify A, got %+v", result.Items)
	}
}

func TestClassifyEmptyWindow(t *testing.T) {
	env := newTestEnv(t, ledger.Config{})

	result, err := env.classifier.Classify(context.Background(), model.KindPurchase, model.CategoryFood, 30, nil)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(result.Items) != 0 || result.Summary.TotalItems != 0 {
		t.Errorf("empty window should classify nothing, got %+v", result)
	}
}

func TestClassifyExcludesOpeningBalances(t *testing.T) {
	env := newTestEnv(t, ledger.Config{})
	item := createTestItem(t, env, "F0001", "kg", 1)

	mustCreate(t, env, ledger.EntryInput{
		ItemID:           item.ID,
		Kind:             model.KindAdjustment,
		Quantity:         1000,
		Direction:        1,
		IsOpeningBalance: true,
	})
	mustCreate(t, env, ledger.EntryInput{ItemID: item.ID, Kind: model.KindPurchase, Quantity: 50})

	result, err := env.classifier.Classify(context.Background(), model.KindPurchase, model.CategoryFood, 30, nil)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("classified %d items, want 1", len(result.Items))
	}
	if got, _ := result.Items[0].Amount.Float64(); got != 50 {
		t.Errorf("amount = %v, want 50 (opening balance must not count as spend)", got)
	}
}

func TestClassifyUsesCacheUntilCleared(t *testing.T) {
	env := newTestEnv(t, ledger.Config{})
	ctx := context.Background()
	item := createTestItem(t, env, "F0001", "kg", 1)
	mustCreate(t, env, ledger.EntryInput{ItemID: item.ID, Kind: model.KindPurchase, Quantity: 100})

	first, err := env.classifier.Classify(ctx, model.KindPurchase, model.CategoryFood, 30, nil)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	// New spend lands after the cache was primed.
	mustCreate(t, env, ledger.EntryInput{ItemID: item.ID, Kind: model.KindPurchase, Quantity: 900})

	cached, err := env.classifier.Classify(ctx, model.KindPurchase, model.CategoryFood, 30, nil)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !cached.Summary.TotalAmount.Equal(first.Summary.TotalAmount) {
		t.Error("second call should serve the cached result")
	}

	if err := env.classifier.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}
	fresh, err := env.classifier.Classify(ctx, model.KindPurchase, model.CategoryFood, 30, nil)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got, _ := fresh.Summary.TotalAmount.Float64(); got != 1000 {
		t.Errorf("total after cache clear = %v, want 1000", got)
	}
}

func TestGini(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"uniform", []float64{10, 10, 10, 10}, 0},
		{"all zero", []float64{0, 0, 0}, 0},
		{"two way split", []float64{0, 100}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ledger.Gini(tt.values)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Gini(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}

	concentrated := ledger.Gini([]float64{1, 1, 1, 97})
	flat := ledger.Gini([]float64{20, 25, 25, 30})
	if concentrated <= flat {
		t.Errorf("concentrated distribution should score higher: %v vs %v", concentrated, flat)
	}
}
