package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/domainhunt/internal/model"
)

// Summary contains aggregated figures about one enrichment run.
type Summary struct {
	RunID         string
	Total         int
	Resolved      int
	NotFound      int
	Failed        int
	UniqueDomains int
	// SharedDomains counts domains that more than one name resolved to.
	SharedDomains map[string]int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}

// HitRate is the share of names that resolved, in percent.
func (s Summary) HitRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Resolved) * 100 / float64(s.Total)
}

// Summarize aggregates records of a run that ran from start to end.
func Summarize(records []model.Record, start, end time.Time) Summary {
	s := Summary{
		SharedDomains: make(map[string]int),
		StartTime:     start,
		EndTime:       end,
	}
	if end.After(start) {
		s.Duration = end.Sub(start)
	}

	domains := make(map[string]int)
	for _, r := range records {
		s.Total++
		if s.RunID == "" {
			s.RunID = r.RunID
		}

		switch r.Kind {
		case model.KindResolved:
			s.Resolved++
			domains[r.Domain]++
		case model.KindNotFound:
			s.NotFound++
		default:
			s.Failed++
		}
	}

	s.UniqueDomains = len(domains)
	for d, n := range domains {
		if n > 1 {
			s.SharedDomains[d] = n
		}
	}
	return s
}

// Span returns the earliest and latest creation time among records. Zero
// times are ignored.
func Span(records []model.Record) (start, end time.Time) {
	for _, r := range records {
		if r.CreatedAt.IsZero() {
			continue
		}
		if start.IsZero() || r.CreatedAt.Before(start) {
			start = r.CreatedAt
		}
		if r.CreatedAt.After(end) {
			end = r.CreatedAt
		}
	}
	return start, end
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	out := struct {
		Summary
		HitRate float64
	}{summary, summary.HitRate()}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Domain Lookup Summary
---------------------
{{- if .RunID}}
Run:            {{.RunID}}
{{- end}}
{{- if not .StartTime.IsZero}}
Time:           {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:       {{.Duration}}
{{- end}}
Total Names:    {{.Total}}
Resolved:       {{.Resolved}} ({{printf "%.1f" .HitRate}}%)
Not Found:      {{.NotFound}}
Errors:         {{.Failed}}
Unique Domains: {{.UniqueDomains}}

Shared Domains:
{{- range $domain, $count := .SharedDomains}}
  {{$domain}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Domain Lookup Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Domain Lookup Report</h1>
  {{- if .RunID}}
  <p><strong>Run:</strong> {{.RunID}}</p>
  {{- end}}
  {{- if not .StartTime.IsZero}}
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>
  {{- end}}

  <div class="stat-card">
    <div>Names</div>
    <div class="stat-val">{{.Total}}</div>
  </div>
  <div class="stat-card">
    <div>Resolved</div>
    <div class="stat-val">{{.Resolved}} ({{printf "%.1f" .HitRate}}%)</div>
  </div>
  <div class="stat-card">
    <div>Not Found</div>
    <div class="stat-val">{{.NotFound}}</div>
  </div>
  <div class="stat-card">
    <div>Errors</div>
    <div class="stat-val" style="color: {{if gt .Failed 0}}red{{else}}green{{end}};">{{.Failed}}</div>
  </div>

  <h3>Shared Domains</h3>
  <table>
    <tr><th>Domain</th><th>Names</th></tr>
    {{- range $domain, $count := .SharedDomains}}
    <tr><td>{{$domain}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	return nil
}
