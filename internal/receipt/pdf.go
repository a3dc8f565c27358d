// Package receipt renders the one-time PDF vote receipt handed to the member
// after a successful submission.
package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Renderer produces vote receipts. CoopName appears in the header.
type Renderer struct {
	CoopName string
}

// PositionVotes is one position's selections as printed on the receipt.
type PositionVotes struct {
	Title      string
	Candidates []string
}

// Data is everything a receipt shows: who voted, where, under which control
// number, and the selections grouped by position.
type Data struct {
	MemberName    string
	MemberCode    string
	BranchNumber  string
	ControlNumber int
	IssuedAt      time.Time
	Positions     []PositionVotes
}

// Render builds the PDF. The receipt lists the control number prominently;
// it is the member's only proof of submission.
func (r *Renderer) Render(d Data) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Vote Receipt", false)
	pdf.AddPage()

	coop := r.CoopName
	if coop == "" {
		coop = "Cooperative Election"
	}
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, coop, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, "Official Vote Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Control Number: %s-%04d", d.BranchNumber, d.ControlNumber), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Member: "+d.MemberName, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Member Code: "+d.MemberCode, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Branch: "+d.BranchNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Issued: "+d.IssuedAt.Format("January 2, 2006 3:04 PM"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for _, p := range d.Positions {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, p.Title, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, name := range p.Candidates {
			pdf.CellFormat(0, 6, "    - "+name, "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "Keep this receipt. It is issued once and confirms your ballot was recorded. Individual selections are reported only in aggregate.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
