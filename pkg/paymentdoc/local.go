package paymentdoc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/transfa/collections-service/internal/domain"
)

// LocalProvider writes a PDF payment slip to dir and builds the payment link
// from linkBase. Used when no gateway is configured.
type LocalProvider struct {
	dir      string
	linkBase string
}

// NewLocalProvider creates a LocalProvider.
func NewLocalProvider(dir, linkBase string) *LocalProvider {
	return &LocalProvider{dir: dir, linkBase: strings.TrimRight(linkBase, "/")}
}

// Generate renders the slip and returns its path and the payment link.
func (p *LocalProvider) Generate(ctx context.Context, charge domain.Charge) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	link := ""
	if p.linkBase != "" {
		link = p.linkBase + "/pay/" + charge.ID
	}

	filePath := filepath.Join(p.dir, fmt.Sprintf("charge_%s.pdf", charge.ID))

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 20

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Payment slip", "", 1, "C", false, 0, "")
	pdf.Ln(3)
	pdf.Line(10, pdf.GetY(), pageW-10, pdf.GetY())
	pdf.Ln(3)

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(contentW*0.35, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(contentW*0.65, 6, value, "", 1, "L", false, 0, "")
	}
	row("Reference", charge.ID)
	row("Client", charge.ClientID)
	row("Due date", charge.DueDate.Format("02/01/2006"))
	if charge.Notes != "" {
		row("Notes", charge.Notes)
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW*0.35, 8, "Amount", "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.65, 8, charge.Amount.StringFixed(2), "", 1, "R", false, 0, "")

	if link != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(contentW, 5, "Pay online: "+link, "", 1, "C", false, 0, link)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, link, nil
}
