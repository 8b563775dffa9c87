package importer

import (
	"strings"

	"stockledger/internal/model"
)

// ColumnMap holds the detected column index for each recognized field, -1
// when the sheet has no such column.
type ColumnMap struct {
	Name      int
	Unit      int
	Stock     int
	Price     int
	Warehouse int
}

// categoryByWarehouse maps warehouse names appearing inside the data to an
// item category. Keys match by substring.
var categoryByWarehouse = map[string]string{
	"مواد غذایی":       model.CategoryFood,
	"فاسد شدنی":        model.CategoryFood,
	"خوارو بار":        model.CategoryFood,
	"نوشیدنی":          model.CategoryFood,
	"ملزومات بهداشتی":  model.CategoryNonFood,
	"ملزومات":          model.CategoryNonFood,
	"فنی":              model.CategoryNonFood,
	"مهندسی":           model.CategoryNonFood,
	"food":             model.CategoryFood,
	"beverage":         model.CategoryFood,
	"housekeeping":     model.CategoryNonFood,
	"engineering":      model.CategoryNonFood,
}

// unitMap standardizes source-document unit spellings. Container words
// collapse to the count unit.
var unitMap = map[string]string{
	"کیلو":    "کیلوگرم",
	"کیلوگرم": "کیلوگرم",
	"عدد":     "عدد",
	"بطری":    "عدد",
	"بسته":    "بسته",
	"گالن":    "گالن",
	"لیتر":    "لیتر",
	"گرم":     "گرم",
	"جفت":     "جفت",
	"دست":     "دست",
	"رول":     "رول",
	"قوطی":    "عدد",
	"شیشه":    "عدد",
	"پاکت":    "عدد",
	"قالب":    "عدد",
	"برگ":     "عدد",
	"حلقه":    "عدد",
	"جلد":     "عدد",
	"متر":     "متر",
	"قرص":     "عدد",
	"kilo":    "kg",
	"kilogram": "kg",
	"litre":   "l",
	"liter":   "l",
	"bottle":  "piece",
	"pcs":     "piece",
}

var foodKeywords = []string{
	"گوشت", "مرغ", "ماهی", "برنج", "روغن", "شکر", "نمک", "ماست",
	"پنیر", "شیر", "تخم", "نان", "میوه", "سبزی", "سیب", "موز",
	"چای", "قهوه", "نوشابه", "آب", "رب", "سس", "ادویه", "زعفران",
	"عسل", "مربا", "بستنی", "سوسیس", "کالباس", "خامه", "کره",
}

// DetectColumns scans a header row and maps the recognized fields to their
// column indexes. Header matching is by keyword, so reordered or extra
// columns in the source workbook are tolerated.
func DetectColumns(header []string) ColumnMap {
	cols := ColumnMap{Name: -1, Unit: -1, Stock: -1, Price: -1, Warehouse: -1}
	for i, raw := range header {
		h := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case containsAny(h, "شرح", "نام کالا", "کالا", "item name", "description"):
			if cols.Name == -1 {
				cols.Name = i
			}
		case strings.Contains(h, "نام انبار") || strings.Contains(h, "warehouse"):
			if cols.Warehouse == -1 {
				cols.Warehouse = i
			}
		case strings.Contains(h, "واحد") || strings.Contains(h, "unit"):
			if cols.Unit == -1 {
				cols.Unit = i
			}
		case containsAny(h, "موجودی", "انبار", "stock", "quantity", "qty"):
			if cols.Stock == -1 && !strings.Contains(h, "نام") {
				cols.Stock = i
			}
		case containsAny(h, "قیمت", "فی", "price"):
			if cols.Price == -1 {
				cols.Price = i
			}
		}
	}
	return cols
}

// DetectSheetCategory infers a default category from the sheet name. An empty
// result means the category is decided per row.
func DetectSheetCategory(sheetName string) string {
	lower := strings.ToLower(sheetName)
	switch {
	case containsAny(lower, "ghazaei", "غذا", "drink", "food"):
		return model.CategoryFood
	case containsAny(lower, "behdashti", "بهداشت", "malzumat", "housekeeping"):
		return model.CategoryNonFood
	case containsAny(lower, "eng", "فنی"):
		return model.CategoryNonFood
	}
	return ""
}

// DetectWarehouseCategory maps a warehouse cell value to a category, empty
// when the name is unrecognized.
func DetectWarehouseCategory(warehouse string) string {
	w := strings.ToLower(strings.TrimSpace(warehouse))
	if w == "" {
		return ""
	}
	for key, cat := range categoryByWarehouse {
		if strings.Contains(w, strings.ToLower(key)) {
			return cat
		}
	}
	return ""
}

// GuessCategory falls back to keyword matching on the item name when neither
// the sheet nor the warehouse decided the category.
func GuessCategory(itemName string) string {
	for _, kw := range foodKeywords {
		if strings.Contains(itemName, kw) {
			return model.CategoryFood
		}
	}
	return model.CategoryNonFood
}

// StandardizeUnit collapses unit spelling variants to a canonical form.
// Unknown units pass through unchanged; an empty unit defaults to the count
// unit.
func StandardizeUnit(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "عدد"
	}
	if std, ok := unitMap[strings.ToLower(u)]; ok {
		return std
	}
	if std, ok := unitMap[u]; ok {
		return std
	}
	return u
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
