package journal

import (
	"bytes"
	"os"
	"text/template"
	"time"
)

// Run summarises one backtest.
type Run struct {
	RunID    string
	Created  time.Time
	Symbol   string
	Interval string
	Strategy string
	Dataset  string
	Leverage int
	Ratio    float64

	Start   time.Time
	End     time.Time
	Candles int

	Positions int
	Wins      int
	Losses    int
	Ambiguous int

	StartBalance float64
	EndBalance   float64
	NetPL        float64
	ReturnPct    float64
	WinRate      float64
	MaxDDPct     float64
	Liquidated   bool

	Notes []string
}

var runOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var runOrgTmpl = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// Org renders the run as an org-mode entry.
func (r Run) Org() (string, error) {
	buf := new(bytes.Buffer)
	if err := runOrgTmpl.Execute(buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r Run) WriteOrg(path string) error {
	s, err := r.Org()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0o644)
}

const RunOrgTemplate = `* BACKTEST: {{.Strategy}} {{.Symbol}} {{if .Interval}}{{.Interval}}{{else}}(interval?){{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:INTERVAL:    {{.Interval}}
:SYMBOL:      {{.Symbol}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:LEVERAGE:    {{.Leverage}}
:RATIO:       {{printf "%.4f" .Ratio}}
:START_DATE:  {{.Start.UTC.Format "2006-01-02 15:04"}}
:END_DATE:    {{.End.UTC.Format "2006-01-02 15:04"}}
:CANDLES:     {{.Candles}}
:START_BAL:   {{printf "%.2f" .StartBalance}}
:END_BAL:     {{printf "%.2f" .EndBalance}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:POSITIONS:   {{.Positions}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:LIQUIDATED:  {{.Liquidated}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPL}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDDPct}}%*
- Win Rate:         *{{printf "%.2f" (mul100 .WinRate)}}%*

** Position Distribution
| Outcome   | Count |
|-----------+-------|
| Wins      | {{.Wins}} |
| Losses    | {{.Losses}} |
| Ambiguous | {{.Ambiguous}} |
| Total     | {{.Positions}} |
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
