package ledger

import (
	"context"
	"math"

	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StockEpsilon is the tolerance used when comparing a materialized stock
// value against the ledger sum. Quantities are float64, so sums of many
// entries accumulate rounding noise well below this threshold.
const StockEpsilon = 1e-3

// RebuildReport summarizes one reconciliation pass.
type RebuildReport struct {
	ItemsChecked int                   `json:"items_checked"`
	Mismatches   []model.StockMismatch `json:"mismatches"`
	Repaired     int                   `json:"repaired"`
}

// StockProjector owns the materialized current_stock column. Every stock
// mutation goes through Apply or Revert, which run a single atomic increment,
// so concurrent entries never lose updates. Rebuild re-derives stock from the
// ledger sum when the projection is suspected to have drifted.
type StockProjector struct {
	itemRepo  repository.ItemRepository
	entryRepo repository.EntryRepository
	txManager repository.TransactionManager
	log       *logrus.Logger
}

func NewStockProjector(
	itemRepo repository.ItemRepository,
	entryRepo repository.EntryRepository,
	txManager repository.TransactionManager,
	log *logrus.Logger,
) *StockProjector {
	return &StockProjector{
		itemRepo:  itemRepo,
		entryRepo: entryRepo,
		txManager: txManager,
		log:       log,
	}
}

// Apply folds an entry's signed quantity into the item's stock.
func (p *StockProjector) Apply(ctx context.Context, entry *model.LedgerEntry) error {
	return p.itemRepo.IncrementStock(ctx, entry.ItemID, entry.SignedQuantity)
}

// Revert undoes the stock effect of an entry, used on soft delete and on
// batch replacement.
func (p *StockProjector) Revert(ctx context.Context, entry *model.LedgerEntry) error {
	return p.itemRepo.IncrementStock(ctx, entry.ItemID, -entry.SignedQuantity)
}

// Rebuild compares current_stock against the ledger sum for one item, or for
// every active item when itemID is nil. With repair set, mismatched items are
// overwritten with the calculated sum inside a transaction.
func (p *StockProjector) Rebuild(ctx context.Context, itemID *uuid.UUID, repair bool) (*RebuildReport, error) {
	var items []model.Item
	if itemID != nil {
		item, err := p.itemRepo.FindByID(ctx, *itemID)
		if err != nil {
			return nil, err
		}
		items = []model.Item{*item}
	} else {
		var err error
		items, err = p.itemRepo.ListActive(ctx, nil)
		if err != nil {
			return nil, err
		}
	}

	report := &RebuildReport{ItemsChecked: len(items)}
	for _, item := range items {
		sum, err := p.entryRepo.SumSignedByItem(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		diff := item.CurrentStock - sum
		if math.Abs(diff) <= StockEpsilon {
			continue
		}

		report.Mismatches = append(report.Mismatches, model.StockMismatch{
			ItemID:     item.ID,
			ItemCode:   item.Code,
			ItemName:   item.Name,
			Stored:     item.CurrentStock,
			Calculated: sum,
			Diff:       diff,
		})
		p.log.WithFields(logrus.Fields{
			"item_code":  item.Code,
			"stored":     item.CurrentStock,
			"calculated": sum,
		}).Warn("stock mismatch detected")

		if !repair {
			continue
		}
		calculated := sum
		id := item.ID
		err = p.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			return p.itemRepo.SetStock(txCtx, id, calculated)
		})
		if err != nil {
			return nil, err
		}
		report.Repaired++
	}
	return report, nil
}
