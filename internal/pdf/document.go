// Package pdf turns a stored farm plan into a printable document.
package pdf

import (
	"bytes"
	"html/template"
	"strconv"
)

const documentTmpl = `<html><head><meta charset="utf-8"><style>
	body { font-family: sans-serif; font-size: 12px; } h1, h2, h3 { color: #2c6b4f; }
	table { border-collapse: collapse; width: 100%; margin-top: 1em; margin-bottom: 1em; }
	th, td { border: 1px solid #dddddd; text-align: left; padding: 8px; }
	th { background-color: #f2f2f2; }
	.footer { text-align: center; font-size: 10px; color: #777; position: fixed; bottom: 0; width: 100%; }
</style></head><body>
	<h1>Farm Plan for {{.Location}}</h1> <p><strong>Prepared for:</strong> {{.PreparedFor}}</p> <hr>
	{{.PlanHTML}}
	<div class="footer"><p>Generated by YieldWise AI</p></div>
</body></html>
`

var document = template.Must(template.New("plan").Parse(documentTmpl))

// Document is one plan laid out for printing. PlanHTML must already be
// sanitised; it is embedded verbatim.
type Document struct {
	Location    string
	PreparedFor string
	PlanHTML    template.HTML
}

func (d Document) HTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := document.Execute(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename is the download name for plan id.
func Filename(planID uint64) string {
	return "YieldWise_Plan_" + strconv.FormatUint(planID, 10) + ".pdf"
}
