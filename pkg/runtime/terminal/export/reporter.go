package export

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/de-tools/cost-watcher/pkg/services/cost/aws_ce"
	"github.com/de-tools/cost-watcher/pkg/services/ingestion"
)

type TableConfig struct {
	KeyWidth    int
	StatusWidth int
	DetailWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		KeyWidth:    48,
		StatusWidth: 12,
		DetailWidth: 40,
	}
}

// Reporter renders command results as plain-text tables.
type Reporter struct {
	writer io.Writer
	config TableConfig
}

type row struct {
	Key    string
	Status string
	Detail string
}

type cycleView struct {
	Result *ingestion.Result
	Rows   []row
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

func (c *Reporter) funcs() template.FuncMap {
	return template.FuncMap{
		"formatRow": func(key, status, detail string) string {
			return fmt.Sprintf("| %-*s | %-*s | %-*s |",
				c.config.KeyWidth, key,
				c.config.StatusWidth, status,
				c.config.DetailWidth, truncate(detail, c.config.DetailWidth))
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+",
				strings.Repeat("-", c.config.KeyWidth+2),
				strings.Repeat("-", c.config.StatusWidth+2),
				strings.Repeat("-", c.config.DetailWidth+2))
		},
	}
}

func (c *Reporter) render(name, tmpl string, data any) error {
	t, err := template.New(name).Funcs(c.funcs()).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(c.writer, data)
}

// Ledger prints the processed file keys.
func (c *Reporter) Ledger(key string, keys []string) error {
	tmpl := `Ledger {{.Key}}: {{len .Keys}} processed file(s)
{{range .Keys}}  {{.}}
{{end}}`
	return c.render("ledger", tmpl, struct {
		Key  string
		Keys []string
	}{Key: key, Keys: keys})
}

// Exports prints one row per exported day.
func (c *Reporter) Exports(results []*aws_ce.ExportResult) error {
	rows := make([]row, 0, len(results))
	for _, r := range results {
		rows = append(rows, row{Key: r.Key, Status: r.Date, Detail: fmt.Sprintf("%d row(s)", r.Rows)})
	}

	tmpl := `
{{separator}}
{{formatRow "Key" "Date" "Rows"}}
{{separator}}
{{range .}}{{formatRow .Key .Status .Detail}}
{{end}}{{separator}}
`
	return c.render("exports", tmpl, rows)
}

// Cycle prints the outcome of a single ingestion cycle.
func (c *Reporter) Cycle(result *ingestion.Result) error {
	if result == nil {
		return nil
	}

	var rows []row
	for _, key := range result.Ingested {
		rows = append(rows, row{Key: key, Status: "ingested"})
	}
	for _, key := range result.Empty {
		rows = append(rows, row{Key: key, Status: "empty"})
	}
	failed := make([]string, 0, len(result.Failed))
	for key := range result.Failed {
		failed = append(failed, key)
	}
	sort.Strings(failed)
	for _, key := range failed {
		rows = append(rows, row{Key: key, Status: "failed", Detail: result.Failed[key].Error()})
	}

	tmpl := `
Cycle started {{.Result.StartedAt.Format "2006-01-02T15:04:05Z07:00"}}
Listed: {{.Result.Listed}}  Skipped: {{.Result.Skipped}}  Points written: {{.Result.PointsWritten}}
{{if .Result.PruneErr}}Prune failed: {{.Result.PruneErr}}
{{else if not .Result.Cutoff.IsZero}}Pruned points before {{.Result.Cutoff.Format "2006-01-02"}}
{{end}}{{if .Rows}}
{{separator}}
{{formatRow "Key" "Status" "Detail"}}
{{separator}}
{{range .Rows}}{{formatRow .Key .Status .Detail}}
{{end}}{{separator}}
{{end}}`
	return c.render("cycle", tmpl, cycleView{Result: result, Rows: rows})
}

func truncate(s string, width int) string {
	if len(s) <= width || width < 4 {
		return s
	}
	return s[:width-3] + "..."
}
