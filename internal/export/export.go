// Package export renders seller reports as CSV or XLSX tables.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/atmx/sales-engine/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet the XLSX export writes to.
const SheetName = "Sellers"

// ErrUnsupportedFormat is returned by Write for unknown formats.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// Header is the column layout shared by every format.
var Header = []string{
	"rank", "seller_id", "name", "revenue", "profit", "sales_count", "bonus", "top_products",
}

// ParseFormat maps a query or flag value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Write renders sellers to w in the given format. Sellers must already be
// in rank order.
func Write(w io.Writer, format Format, sellers []model.SellerReport) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, sellers)
	case FormatXLSX:
		return WriteXLSX(w, sellers)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// WriteCSV writes a header row and one row per seller.
func WriteCSV(w io.Writer, sellers []model.SellerReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, s := range sellers {
		if err := cw.Write(row(i, s)); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single-sheet workbook with the same layout as the CSV.
func WriteXLSX(w io.Writer, sellers []model.SellerReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, s := range sellers {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row(i, s)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// row renders one seller. Money is fixed to two places and top products are
// rendered as "sku:qty" pairs separated by semicolons.
func row(i int, s model.SellerReport) []string {
	top := make([]string, len(s.TopProducts))
	for j, p := range s.TopProducts {
		top[j] = p.SKU + ":" + strconv.Itoa(p.Quantity)
	}
	return []string{
		strconv.Itoa(i + 1),
		s.SellerID,
		s.Name,
		s.Revenue.StringFixed(2),
		s.Profit.StringFixed(2),
		strconv.Itoa(s.SalesCount),
		s.Bonus.StringFixed(2),
		strings.Join(top, ";"),
	}
}
