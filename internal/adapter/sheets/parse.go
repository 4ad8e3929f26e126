package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	domain "github.com/wirangar/bazarino-bot/internal/entity"
)

// Product worksheet layout, one product per row starting at row 2:
// A id, B cat, C fa, D it, E brand, F description, G weight, H price,
// I image_url, J stock, K bestseller.
const (
	productRange   = "A2:K"
	stockColumn    = "J"
	firstDataRow   = 2
	discountRange  = "A2:D"
	sheetDateLayout = "2006-01-02"
)

func cellString(row []interface{}, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func cellInt(row []interface{}, idx int) (int, error) {
	s := cellString(row, idx)
	if s == "" {
		return 0, nil
	}
	// Sheets returns formatted values; tolerate "3.0" style numbers.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), nil
	}
	return strconv.Atoi(s)
}

func cellDecimal(row []interface{}, idx int) (decimal.Decimal, error) {
	s := cellString(row, idx)
	if s == "" {
		return decimal.Zero, nil
	}
	// European sheets often carry "4,50".
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSuffix(s, "€")
	return decimal.NewFromString(strings.TrimSpace(s))
}

func cellBool(row []interface{}, idx int) bool {
	switch strings.ToLower(cellString(row, idx)) {
	case "true", "yes", "1", "x":
		return true
	}
	return false
}

func parseProductRow(row []interface{}) (domain.Product, error) {
	id := cellString(row, 0)
	if id == "" {
		return domain.Product{}, fmt.Errorf("empty product id")
	}
	price, err := cellDecimal(row, 7)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: bad price: %w", id, err)
	}
	if price.Sign() <= 0 {
		return domain.Product{}, fmt.Errorf("product %s: non-positive price", id)
	}
	stock, err := cellInt(row, 9)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s: bad stock: %w", id, err)
	}
	if stock < 0 {
		stock = 0
	}
	return domain.Product{
		ID:          id,
		Category:    cellString(row, 1),
		NameFA:      cellString(row, 2),
		NameIT:      cellString(row, 3),
		Brand:       cellString(row, 4),
		Description: cellString(row, 5),
		Weight:      cellString(row, 6),
		Price:       price,
		ImageURL:    cellString(row, 8),
		Stock:       stock,
		Bestseller:  cellBool(row, 10),
	}, nil
}

// Discount worksheet layout: A code, B percent, C valid_until, D active.
func parseDiscountRow(row []interface{}) (domain.DiscountCode, error) {
	code := cellString(row, 0)
	if code == "" {
		return domain.DiscountCode{}, fmt.Errorf("empty discount code")
	}
	pct, err := cellInt(row, 1)
	if err != nil {
		return domain.DiscountCode{}, fmt.Errorf("discount %s: bad percent: %w", code, err)
	}
	var until time.Time
	if s := cellString(row, 2); s != "" {
		until, err = time.Parse(sheetDateLayout, s)
		if err != nil {
			return domain.DiscountCode{}, fmt.Errorf("discount %s: bad date: %w", code, err)
		}
	}
	return domain.DiscountCode{
		Code:       strings.ToUpper(code),
		PercentOff: pct,
		ValidUntil: until,
		Active:     cellBool(row, 3),
	}, nil
}
