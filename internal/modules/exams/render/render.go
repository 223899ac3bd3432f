// Package render produces the HTML content snapshot stored on a PCMSO version.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/occhealth/pcmso-backend/internal/domain/catalog"
	"github.com/occhealth/pcmso-backend/internal/domain/rules"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/consolidate"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/snapshot"
)

type Input struct {
	Company       catalog.Company
	Title         string
	VersionNumber int
	GeneratedAt   time.Time
	Jobs          []consolidate.Result
	Changes       snapshot.ChangeReport
}

type examRow struct {
	Name        string
	Periodicity string
	Events      string
	Sources     string
}

type jobSection struct {
	Title string
	Exams []examRow
}

type view struct {
	Title         string
	TradeName     string
	CorporateName string
	CNPJ          string
	VersionNumber int
	GeneratedAt   string
	Jobs          []jobSection
	Changes       []string
}

var pcmsoTemplate = template.Must(template.New("pcmso").Parse(`<article class="pcmso">
<h1>{{.Title}}</h1>
<h2>Programa de Controle Médico de Saúde Ocupacional</h2>
<div class="company-info">
<p><strong>Empresa:</strong> {{.TradeName}}</p>
{{- if .CorporateName}}
<p><strong>Razão Social:</strong> {{.CorporateName}}</p>
{{- end}}
{{- if .CNPJ}}
<p><strong>CNPJ:</strong> {{.CNPJ}}</p>
{{- end}}
<p><strong>Versão:</strong> {{.VersionNumber}}</p>
<p><strong>Data de Geração:</strong> {{.GeneratedAt}}</p>
</div>
<h3>Cargos e Exames Ocupacionais</h3>
{{- range .Jobs}}
<section class="job">
<h4>{{.Title}}</h4>
{{- if .Exams}}
<table>
<thead><tr><th>Exame</th><th>Periodicidade</th><th>Eventos</th><th>Origem</th></tr></thead>
<tbody>
{{- range .Exams}}
<tr><td>{{.Name}}</td><td>{{.Periodicity}}</td><td>{{.Events}}</td><td>{{.Sources}}</td></tr>
{{- end}}
</tbody>
</table>
{{- else}}
<p>Nenhum exame obrigatório.</p>
{{- end}}
</section>
{{- end}}
{{- if .Changes}}
<h3>Alterações desde a versão anterior</h3>
<ul>
{{- range .Changes}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
<h3>Observações</h3>
<p>Este documento foi gerado automaticamente a partir do mapeamento de riscos e exames configurado no sistema.</p>
</article>
`))

// HTML renders the document. Output depends only on the input.
func HTML(in Input) (string, error) {
	v := view{
		Title:         in.Title,
		TradeName:     in.Company.TradeName,
		CorporateName: in.Company.CorporateName,
		CNPJ:          in.Company.CNPJ,
		VersionNumber: in.VersionNumber,
		GeneratedAt:   in.GeneratedAt.UTC().Format("02/01/2006"),
	}
	for _, job := range in.Jobs {
		sec := jobSection{Title: job.JobTitle}
		for _, e := range job.Consolidated {
			sec.Exams = append(sec.Exams, examRow{
				Name:        e.ExamName,
				Periodicity: Periodicity(e.Effective),
				Events:      Events(e.Applicability),
				Sources:     sources(e),
			})
		}
		v.Jobs = append(v.Jobs, sec)
	}
	if in.Changes.LastSignedVersion != nil {
		for _, c := range in.Changes.Changes {
			v.Changes = append(v.Changes, c.Description)
		}
	}
	var buf bytes.Buffer
	if err := pcmsoTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render pcmso: %w", err)
	}
	return buf.String(), nil
}

// Periodicity is the document label of a policy.
func Periodicity(p periodicity.Policy) string {
	switch {
	case p.Type == periodicity.EventOnly:
		return "Somente nos eventos indicados"
	case p.Rule != nil:
		return fmt.Sprintf("Regra %s (padrão %d meses)", p.Rule.Kind(), p.DefaultMonths())
	case p.Months != nil && *p.Months == 1:
		return "Mensal"
	case p.Months != nil:
		return fmt.Sprintf("A cada %d meses", *p.Months)
	}
	return "Conforme NR-7"
}

// Events lists the occupational events an exam applies to.
func Events(a rules.Applicability) string {
	var parts []string
	if a.OnAdmission {
		parts = append(parts, "Admissional")
	}
	if a.Periodic {
		parts = append(parts, "Periódico")
	}
	if a.OnReturn {
		parts = append(parts, "Retorno ao trabalho")
	}
	if a.OnChange {
		parts = append(parts, "Mudança de risco")
	}
	if a.OnDismissal {
		parts = append(parts, "Demissional")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func sources(e consolidate.Entry) string {
	parts := make([]string, 0, len(e.Sources))
	for _, s := range e.Sources {
		if s.RiskName != "" {
			parts = append(parts, "Risco: "+s.RiskName)
			continue
		}
		parts = append(parts, "Cargo")
	}
	return strings.Join(parts, "; ")
}
