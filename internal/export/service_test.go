package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/store"
)

type memStore struct {
	records []store.Record
}

func (m *memStore) Save(rec store.Record) error { m.records = append(m.records, rec); return nil }
func (m *memStore) Get(string) (store.Record, error) {
	return store.Record{}, nil
}
func (m *memStore) List() ([]store.Record, error) { return m.records, nil }
func (m *memStore) Delete(string) error           { return nil }
func (m *memStore) Close() error                  { return nil }

func storedReceipt(hash, date string, items ...entity.LineItem) store.Record {
	total := 0.0
	for _, it := range items {
		total += it.TotalPrice
	}
	return store.Record{
		Hash:       hash,
		SourceFile: hash + ".png",
		Receipt: entity.ValidatedReceipt{
			Receipt: entity.ExtractedReceipt{
				Store:  "Lidl",
				Date:   date,
				Items:  items,
				Total:  &total,
				Source: "llm",
			},
		},
		StoredAt: time.Now(),
	}
}

func TestExportXLSX_RowPerItem(t *testing.T) {
	st := &memStore{}
	require.NoError(t, st.Save(storedReceipt("h1", "2024-03-15",
		entity.LineItem{Name: "Chleb Zytni", Quantity: 1, UnitPrice: 2.99, TotalPrice: 2.99, VATRate: "A"},
		entity.LineItem{Name: "Maslo Extra", Quantity: 1, UnitPrice: 4.50, TotalPrice: 4.50, VATRate: "B"},
	)))

	data, err := NewService(st, nil).ExportXLSX(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 items

	assert.Equal(t, "Purchase Date", rows[0][0])
	assert.Equal(t, "2024-03-15", rows[1][0])
	assert.Equal(t, "Chleb Zytni", rows[1][2])
	assert.Equal(t, "Maslo Extra", rows[2][2])
	assert.Equal(t, "7.49", rows[1][7])
}

func TestExportXLSX_DateWindow(t *testing.T) {
	st := &memStore{}
	require.NoError(t, st.Save(storedReceipt("old", "2024-01-10",
		entity.LineItem{Name: "Stare", Quantity: 1, UnitPrice: 1.00, TotalPrice: 1.00})))
	require.NoError(t, st.Save(storedReceipt("new", "2024-03-15",
		entity.LineItem{Name: "Nowe", Quantity: 1, UnitPrice: 2.00, TotalPrice: 2.00})))

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	data, err := NewService(st, nil).ExportXLSX(&from, &to)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Nowe", rows[1][2])
}

func TestExportXLSX_KeepsUnparseableDates(t *testing.T) {
	st := &memStore{}
	require.NoError(t, st.Save(storedReceipt("x", "marzec",
		entity.LineItem{Name: "Woda", Quantity: 1, UnitPrice: 1.89, TotalPrice: 1.89})))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data, err := NewService(st, nil).ExportXLSX(&from, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestExportXLSX_Empty(t *testing.T) {
	data, err := NewService(&memStore{}, nil).ExportXLSX(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
