package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"

	"github.com/alimansour/cardvault-backend/pkg/config"
	"github.com/alimansour/cardvault-backend/pkg/logger"
)

// Row is one exported code with the product it belongs to.
type Row struct {
	ProductName  string
	SerialNumber string
	PIN          string
}

// Service writes fulfilled codes to tenant-scoped files for the "file"
// delivery option. Each format is best effort: a failing format is logged
// and skipped without failing the others.
type Service struct {
	baseDir string
	log     *logger.Logger
}

func NewService(cfg config.ExportConfig, log *logger.Logger) *Service {
	return &Service{baseDir: cfg.BaseDir, log: log}
}

// WriteAll renders the rows as text, CSV and PDF under the tenant's export
// directory and returns the paths that were written successfully.
func (s *Service) WriteAll(ctx context.Context, tenantID, orderID uuid.UUID, rows []Row) []string {
	dir := filepath.Join(s.baseDir, tenantID.String())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		s.log.Error(ctx, "creating export directory", err)
		return nil
	}

	base := filepath.Join(dir, orderID.String())
	var written []string
	for ext, write := range map[string]func(string, []Row) error{
		".txt": writeText,
		".csv": writeCSV,
		".pdf": writePDF,
	} {
		path := base + ext
		if err := write(path, rows); err != nil {
			s.log.Warn(ctx, fmt.Sprintf("export %s failed: %v", ext, err))
			continue
		}
		written = append(written, path)
	}
	return written
}

// writeText emits one serial\tpin line per code.
func writeText(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, row := range rows {
		if _, err := fmt.Fprintf(f, "%s\t%s\n", row.SerialNumber, row.PIN); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV emits [productName, serialNumber, pin] rows.
func writeCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"product_name", "serial_number", "pin"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write([]string{row.ProductName, row.SerialNumber, row.PIN}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writePDF(path string, rows []Row) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Card Codes", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, "Card Codes")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(70, 8, "Product", "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, "Serial Number", "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, "PIN", "1", 1, "L", false, 0, "")

	pdf.SetFont("Courier", "", 10)
	for _, row := range rows {
		pdf.CellFormat(70, 8, row.ProductName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 8, row.SerialNumber, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 8, row.PIN, "1", 1, "L", false, 0, "")
	}
	return pdf.OutputFileAndClose(path)
}
