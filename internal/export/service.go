package export

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-pipeline/internal/store"
)

// Service produces XLSX bytes from persisted pipeline results.
type Service struct {
	store  store.ReceiptStore
	logger *slog.Logger
}

func NewService(st store.ReceiptStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// ExportXLSX returns an XLSX workbook with one row per line item, for every
// stored receipt whose purchase date falls in the window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> every stored receipt.
func (s *Service) ExportXLSX(from, to *time.Time) ([]byte, error) {
	start := time.Now()

	recs, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}

	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}

	filtered := recs[:0]
	for _, r := range recs {
		if inWindow(r.Receipt.Receipt.Date, fromDate, toDate) {
			filtered = append(filtered, r)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Receipt.Receipt.Date < filtered[j].Receipt.Receipt.Date
	})

	f := excelize.NewFile()
	const sheet = "Receipts"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Purchase Date",
		"Store",
		"Item",
		"Quantity",
		"Unit Price",
		"Line Total",
		"VAT Rate",
		"Receipt Total",
		"Source",
		"Source File",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	items := 0
	for _, rec := range filtered {
		r := rec.Receipt.Receipt

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		total := ""
		if r.Total != nil {
			total = fmt.Sprintf("%.2f", *r.Total)
		}

		for _, it := range r.Items {
			write(1, r.Date)
			write(2, r.Store)
			write(3, it.Name)
			write(4, it.Quantity)
			write(5, it.UnitPrice)
			write(6, it.TotalPrice)
			write(7, it.VATRate)
			write(8, total)
			write(9, r.Source)
			write(10, rec.SourceFile)
			row++
			items++
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 14) // date
	_ = f.SetColWidth(sheet, "B", "B", 22) // store
	_ = f.SetColWidth(sheet, "C", "C", 36) // item
	_ = f.SetColWidth(sheet, "D", "H", 12) // numbers
	_ = f.SetColWidth(sheet, "I", "I", 10) // source
	_ = f.SetColWidth(sheet, "J", "J", 60) // path

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"receipts", len(filtered),
		"rows", items,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// inWindow treats receipts without a parseable ISO date as always in range;
// losing them from an export is worse than a loose filter.
func inWindow(date string, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return true
	}
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}
