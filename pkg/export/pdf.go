package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/calebhart/parley/pkg/domain"
)

// PDFExporter renders a conversation as a single PDF document. It shares the
// block intermediate form with the HTML exporter: prose paragraphs in a
// proportional face, code blocks in a monospace face with a light fill.
// The creation date is pinned so identical input yields identical bytes,
// pagination included.
type PDFExporter struct {
	opts Options
}

// Verify interface compliance.
var _ Exporter = (*PDFExporter)(nil)

// FormatName returns the stable format identifier.
func (e *PDFExporter) FormatName() string { return FormatPDF }

// pdfEpoch pins document dates for deterministic output.
var pdfEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Export renders the conversation to PDF bytes.
func (e *PDFExporter) Export(conv *domain.Conversation) (*Artifact, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetModificationDate(pdfEpoch)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if e.opts.IncludeMetadata {
		title := conv.Metadata.Title
		if title == "" {
			title = "Conversation"
		}
		pdf.SetFont("Helvetica", "B", 16)
		pdf.MultiCell(0, 8, tr(title), "", "L", false)

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(110, 110, 110)
		if conv.Metadata.ID != "" {
			pdf.MultiCell(0, 5, tr("ID: "+conv.Metadata.ID), "", "L", false)
		}
		if tags := joinTags(conv.Metadata.Tags); tags != "" {
			pdf.MultiCell(0, 5, tr("Tags: "+tags), "", "L", false)
		}
		if e.opts.IncludeTimestamps {
			pdf.MultiCell(0, 5, tr("Created: "+formatTimestamp(conv.Metadata.CreatedAt)), "", "L", false)
			pdf.MultiCell(0, 5, tr("Updated: "+formatTimestamp(conv.Metadata.UpdatedAt)), "", "L", false)
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(4)
	}

	for _, msg := range conv.Messages {
		e.renderMessage(pdf, tr, msg)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}

	return &Artifact{
		Content:    buf.Bytes(),
		FormatName: FormatPDF,
		Filename:   baseFilename(conv) + ".pdf",
	}, nil
}

func (e *PDFExporter) renderMessage(pdf *fpdf.Fpdf, tr func(string) string, msg domain.Message) {
	header := roleTitle(msg.Role)
	if e.opts.IncludeTimestamps && !msg.Timestamp.IsZero() {
		header += "  (" + formatTimestamp(msg.Timestamp) + ")"
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.MultiCell(0, 6, tr(header), "", "L", false)

	if msg.Role == domain.RoleTool {
		if msg.Name != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.SetTextColor(110, 110, 110)
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("Result of %s (%s)", msg.Name, msg.ToolCallID)), "", "L", false)
			pdf.SetTextColor(0, 0, 0)
		}
		if msg.Content != "" {
			writeCode(pdf, tr, msg.Content)
		}
	} else if msg.Content != "" {
		for _, block := range parseBlocks(msg.Content) {
			if block.Code {
				writeCode(pdf, tr, block.Text)
			} else {
				pdf.SetFont("Helvetica", "", 10)
				pdf.MultiCell(0, 5, tr(block.Text), "", "L", false)
			}
		}
	}

	for _, tc := range msg.ToolCalls {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(110, 110, 110)
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("Tool call %s (%s)", tc.Name, tc.ID)), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		writeCode(pdf, tr, tc.Arguments)
	}

	pdf.Ln(3)
}

func writeCode(pdf *fpdf.Fpdf, tr func(string) string, code string) {
	pdf.SetFont("Courier", "", 9)
	pdf.SetFillColor(246, 248, 250)
	pdf.MultiCell(0, 4.5, tr(code), "", "L", true)
	pdf.SetFillColor(255, 255, 255)
}
