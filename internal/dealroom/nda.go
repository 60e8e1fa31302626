package dealroom

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// builtinNDA is used when no default template row exists.
const builtinNDA = `MUTUAL NON-DISCLOSURE AGREEMENT

This Mutual Non-Disclosure Agreement (the "Agreement") is made as of {{DATE}} between:

Party A: {{PARTY_A_NAME}}
Party B: {{PARTY_B_NAME}}

1. CONFIDENTIAL INFORMATION
Either party may share non-public business, financial or technical information ("Confidential Information") while evaluating a possible transaction between them (the "Purpose").

2. OBLIGATIONS
The receiving party shall keep Confidential Information strictly confidential, shall not disclose it to any third party without prior written consent, and shall use it only for the Purpose.

3. EXCLUSIONS
These obligations do not apply to information that is or becomes public without breach of this Agreement, was lawfully known to the receiving party before disclosure, or is independently developed without use of Confidential Information.

4. TERM
This Agreement remains in force for two (2) years from the date above.

5. GOVERNING LAW
This Agreement is governed by the laws of {{JURISDICTION}}.

AGREED AND ACCEPTED:
Party A Signature: _______________________  Date: ______________
Party B Signature: _______________________  Date: ______________`

var jurisdictions = map[string]string{
	"US": "the State of Delaware, United States",
	"UK": "England and Wales",
	"GB": "England and Wales",
	"SG": "the Republic of Singapore",
	"AE": "the Dubai International Financial Centre",
}

// Jurisdiction maps a template jurisdiction code to governing-law text.
// Unknown or empty codes yield fallback.
func Jurisdiction(code, fallback string) string {
	if text, ok := jurisdictions[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return text
	}
	return fallback
}

// NDAParties are the values substituted into a template.
type NDAParties struct {
	PartyA       string
	PartyB       string
	Jurisdiction string
	Date         time.Time
}

// RenderNDAText substitutes {{DATE}}, {{PARTY_A_NAME}}, {{PARTY_B_NAME}} and
// {{JURISDICTION}}. Unknown placeholders are left untouched.
func RenderNDAText(template string, p NDAParties) string {
	if strings.TrimSpace(template) == "" {
		template = builtinNDA
	}
	return strings.NewReplacer(
		"{{DATE}}", p.Date.Format("January 2, 2006"),
		"{{PARTY_A_NAME}}", p.PartyA,
		"{{PARTY_B_NAME}}", p.PartyB,
		"{{JURISDICTION}}", p.Jurisdiction,
	).Replace(template)
}

// Renderer turns NDA text into a document.
type Renderer interface {
	Render(title, text string) ([]byte, error)
}

// PDFRenderer lays text out on A4 pages with Helvetica. The first non-blank
// line is set as a heading.
type PDFRenderer struct{}

func (PDFRenderer) Render(title, text string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("intent-broker", true)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 10)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	heading := true
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			pdf.Ln(5)
			continue
		}
		if heading {
			pdf.SetFont("Helvetica", "B", 14)
			pdf.MultiCell(0, 7, tr(line), "", "C", false)
			pdf.SetFont("Helvetica", "", 10)
			heading = false
			continue
		}
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render nda pdf: %w", err)
	}
	return buf.Bytes(), nil
}
