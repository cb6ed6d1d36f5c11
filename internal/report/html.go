package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const styleCSS = `
body{font-family:-apple-system,'Segoe UI',Roboto,Helvetica,Arial,sans-serif;color:#1c1917;margin:0;padding:1rem;}
.report-wrap{max-width:900px;margin:0 auto;}
h1{font-size:1.6rem;border-bottom:2px solid #e7e5e4;padding-bottom:0.4rem;}
h2{font-size:1.2rem;margin-top:1.6rem;}
h3{font-size:1rem;margin-top:1.2rem;}
table{width:100%;border-collapse:collapse;font-size:0.85rem;}
th,td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;}
thead th{background:#f1f5f9;font-weight:700;}
pre{background:#f5f5f4;border:1px solid #e7e5e4;padding:0.6rem;font-size:0.8rem;white-space:pre-wrap;}
`

// BuildHTML converts the markdown report into a standalone HTML document.
func BuildHTML(in Input) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(BuildMarkdown(in)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	title := "Test Case Review"
	if strings.TrimSpace(in.TicketKey) != "" {
		title += " — " + in.TicketKey
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + styleCSS +
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}" +
		"@media print{ @page{size:auto;margin:12mm;} body{padding:0;} }" +
		"</style></head><body>" +
		"<div class='report-wrap'>" + content.String() + "</div>" +
		"</body></html>", nil
}
