// Package ingest loads catalog workbooks into the product store and the
// vector index. One ingest runs at a time, guarded by a file lock.
package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/coatseek/coatseek/internal/catalog"
)

// Workbook is the parsed content of one Excel catalog file.
type Workbook struct {
	// Products holds one record per non-empty data row.
	Products []*catalog.Product
	// Columns are the canonical header names, resolver-mapped.
	Columns []string
	// SkippedRows counts rows dropped for having no usable cells.
	SkippedRows int
}

// ReadWorkbook parses the first sheet of an .xlsx catalog export. The
// header row is mapped to canonical field names through the field alias
// table; unmapped headers become product attributes.
func ReadWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	resolver := catalog.NewFieldResolver(headers)

	columns := make([]string, 0, len(headers))
	for _, h := range headers {
		if h == "" {
			continue
		}
		columns = append(columns, resolver.Resolve(h))
	}

	wb := &Workbook{Columns: columns}
	for _, row := range rows[1:] {
		product := rowToProduct(headers, row, resolver)
		if product == nil {
			wb.SkippedRows++
			continue
		}
		wb.Products = append(wb.Products, product)
	}

	return wb, nil
}

// rowToProduct builds a product from one data row, or nil if the row has
// no usable cells.
func rowToProduct(headers, row []string, resolver *catalog.FieldResolver) *catalog.Product {
	p := &catalog.Product{}
	filled := 0

	for i, header := range headers {
		if header == "" || i >= len(row) {
			continue
		}
		value := cleanCell(row[i])
		if value == "" {
			continue
		}
		filled++

		switch resolver.Resolve(header) {
		case catalog.FieldSKU:
			p.SKU = value
		case catalog.FieldFamily:
			p.Family = value
		case catalog.FieldType:
			p.Type = value
		case catalog.FieldModel:
			p.Model = value
		case catalog.FieldName:
			p.Name = value
		case catalog.FieldDescription:
			p.Description = value
		case catalog.FieldApplication:
			p.Application = value
		default:
			if p.Attrs == nil {
				p.Attrs = make(map[string]string)
			}
			p.Attrs[resolver.Resolve(header)] = value
		}
	}

	if filled == 0 {
		return nil
	}
	return p
}

// cleanCell trims whitespace, drops spreadsheet NaN markers, and rewrites
// whole-number floats ("250.0") as integers, mirroring how the catalog
// exports are cleaned upstream.
func cleanCell(raw string) string {
	value := strings.TrimSpace(raw)
	switch strings.ToLower(value) {
	case "", "nan", "n/a", "na", "null", "none", "-":
		return ""
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		if f == float64(int64(f)) && strings.Contains(value, ".") {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return value
}
