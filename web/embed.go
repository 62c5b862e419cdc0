package web

import "embed"

// QuotationTemplate is the path of the quotation document layout inside Templates.
const QuotationTemplate = "templates/reports/quotation.html"

// Templates holds the HTML layouts rendered into quotation PDFs.
//
//go:embed templates/reports/*.html
var Templates embed.FS
