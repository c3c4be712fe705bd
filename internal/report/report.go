package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"slices"
	"text/template"
	"time"

	"github.com/FranksOps/sprig/internal/keyword"
	"github.com/FranksOps/sprig/internal/storage"
)

// TopN is how many keywords the summary lists.
const TopN = 10

// Summary aggregates a set of archived research runs.
type Summary struct {
	TotalRuns         int
	FailedRuns        int
	TotalKeywords     int
	UniqueKeywords    int
	ByIntent          map[keyword.Intent]int
	ByLevel           map[keyword.CompetitionLevel]int
	TotalVolume       int
	AverageVolume     float64
	AverageDifficulty float64
	SuggestionsAdded  int
	IdeasAdded        int
	TopKeywords       []keyword.Record
	Failures          map[string]string
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}

// GenerateSummary aggregates runs. Keywords repeated across runs count once
// toward UniqueKeywords and TopKeywords, keeping their highest volume.
func GenerateSummary(runs []*storage.Run) Summary {
	s := Summary{
		ByIntent: make(map[keyword.Intent]int),
		ByLevel:  make(map[keyword.CompetitionLevel]int),
		Failures: make(map[string]string),
	}

	if len(runs) == 0 {
		return s
	}

	s.StartTime = runs[0].CreatedAt
	s.EndTime = runs[0].CreatedAt

	best := make(map[string]keyword.Record)
	var difficulty int
	for _, r := range runs {
		s.TotalRuns++
		if r.Failed() {
			s.FailedRuns++
			s.Failures[r.Input] = r.Error
		}
		s.SuggestionsAdded += r.SuggestionsAdded
		s.IdeasAdded += r.IdeasAdded

		for _, rec := range r.Keywords {
			s.TotalKeywords++
			s.ByIntent[rec.Intent]++
			s.ByLevel[rec.CompetitionLevel]++
			s.TotalVolume += rec.SearchVolume
			difficulty += rec.Difficulty
			if prev, ok := best[rec.Keyword]; !ok || rec.SearchVolume > prev.SearchVolume {
				best[rec.Keyword] = rec
			}
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	if s.TotalKeywords > 0 {
		s.AverageVolume = float64(s.TotalVolume) / float64(s.TotalKeywords)
		s.AverageDifficulty = float64(difficulty) / float64(s.TotalKeywords)
	}

	s.UniqueKeywords = len(best)
	top := make([]keyword.Record, 0, len(best))
	for _, rec := range best {
		top = append(top, rec)
	}
	slices.SortFunc(top, func(a, b keyword.Record) int {
		if c := cmp.Compare(b.SearchVolume, a.SearchVolume); c != 0 {
			return c
		}
		return cmp.Compare(a.Keyword, b.Keyword)
	})
	if len(top) > TopN {
		top = top[:TopN]
	}
	s.TopKeywords = top

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Sprig Research Summary
----------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Runs:          {{.TotalRuns}} ({{.FailedRuns}} failed)
Keywords:      {{.TotalKeywords}} ({{.UniqueKeywords}} unique)
Total Volume:  {{.TotalVolume}}
Avg Volume:    {{printf "%.1f" .AverageVolume}}
Avg Difficulty: {{printf "%.1f" .AverageDifficulty}}
Expansion:     {{.SuggestionsAdded}} from suggestions, {{.IdeasAdded}} from ideas

By Intent:
{{- range $intent, $count := .ByIntent}}
  {{$intent}}: {{$count}}
{{- else}}
  None
{{- end}}

By Competition:
{{- range $level, $count := .ByLevel}}
  {{$level}}: {{$count}}
{{- else}}
  None
{{- end}}

Top Keywords:
{{- range .TopKeywords}}
  {{.Keyword}}: {{.SearchVolume}}
{{- else}}
  None
{{- end}}
{{- if .Failures}}

Failures:
{{- range $input, $err := .Failures}}
  {{$input}}: {{$err}}
{{- end}}
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parsing text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("rendering text report: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer. Keyword and
// input text is escaped.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Sprig Research Report</title>
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
  <h1>Sprig Research Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}}</p>

  <div class="stat-card">
    <div>Runs</div>
    <div class="stat-val">{{.TotalRuns}}</div>
  </div>
  <div class="stat-card">
    <div>Failed</div>
    <div class="stat-val" style="color: {{if gt .FailedRuns 0}}red{{else}}green{{end}};">{{.FailedRuns}}</div>
  </div>
  <div class="stat-card">
    <div>Keywords</div>
    <div class="stat-val">{{.UniqueKeywords}}</div>
  </div>
  <div class="stat-card">
    <div>Avg Volume</div>
    <div class="stat-val">{{printf "%.0f" .AverageVolume}}</div>
  </div>
  <div class="stat-card">
    <div>Avg Difficulty</div>
    <div class="stat-val">{{printf "%.0f" .AverageDifficulty}}</div>
  </div>

  <h3>Top Keywords</h3>
  <table>
    <tr><th>Keyword</th><th>Volume</th><th>CPC</th><th>Competition</th><th>Intent</th><th>Difficulty</th></tr>
    {{- range .TopKeywords}}
    <tr><td>{{.Keyword}}</td><td>{{.SearchVolume}}</td><td>{{printf "%.2f" .CPC}}</td><td>{{.CompetitionLevel}}</td><td>{{.Intent}}</td><td>{{.Difficulty}}</td></tr>
    {{- else}}
    <tr><td colspan="6">None</td></tr>
    {{- end}}
  </table>

  <h3>By Intent</h3>
  <table>
    <tr><th>Intent</th><th>Count</th></tr>
    {{- range $intent, $count := .ByIntent}}
    <tr><td>{{$intent}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>By Competition</h3>
  <table>
    <tr><th>Level</th><th>Count</th></tr>
    {{- range $level, $count := .ByLevel}}
    <tr><td>{{$level}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
  {{- if .Failures}}

  <h3>Failures</h3>
  <table>
    <tr><th>Input</th><th>Error</th></tr>
    {{- range $input, $err := .Failures}}
    <tr><td>{{$input}}</td><td>{{$err}}</td></tr>
    {{- end}}
  </table>
  {{- end}}
</body>
</html>
`
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parsing html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("rendering html report: %w", err)
	}

	return nil
}
