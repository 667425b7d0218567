package bootstrap

import (
	"html/template"
	"net/mail"
	texttmpl "text/template"

	"github.com/trezcool/masomodb/core"
)

var (
	reportTextTmpl = texttmpl.Must(texttmpl.New("report.txt").Parse(
		`Bootstrap {{if .Report.Success}}succeeded{{else}}FAILED{{end}} in {{.Report.DurationMs}}ms.
{{if .Report.ErrorMessage}}
Error: {{.Report.ErrorMessage}}
{{end}}
Steps:
{{range .Report.Steps}}  - {{.Step}}: {{.Outcome}}{{if .Message}} ({{.Message}}){{end}}
{{end}}{{if .Report.Warnings}}
Warnings:
{{range .Report.Warnings}}  - {{.}}
{{end}}{{end}}`))

	reportHTMLTmpl = template.Must(template.New("report.html").Parse(
		`<p>Bootstrap <strong>{{if .Report.Success}}succeeded{{else}}failed{{end}}</strong> in {{.Report.DurationMs}}ms.</p>
{{if .Report.ErrorMessage}}<p>Error: {{.Report.ErrorMessage}}</p>{{end}}
<ul>{{range .Report.Steps}}<li>{{.Step}}: {{.Outcome}}{{if .Message}} ({{.Message}}){{end}}</li>{{end}}</ul>
{{if .Report.Warnings}}<p>Warnings:</p><ul>{{range .Report.Warnings}}<li>{{.}}</li>{{end}}</ul>{{end}}`))
)

// NewReportMessage builds the email sent to operators after a run.
func NewReportMessage(to []mail.Address, report InitializationReport) *core.EmailMessage {
	subject := "Bootstrap succeeded"
	switch {
	case !report.Success:
		subject = "Bootstrap failed"
	case len(report.Warnings) > 0:
		subject = "Bootstrap succeeded with warnings"
	}
	return &core.EmailMessage{
		To:           to,
		Subject:      subject,
		TextTemplate: reportTextTmpl,
		HTMLTemplate: reportHTMLTmpl,
		TemplateData: map[string]interface{}{"Report": report},
	}
}
