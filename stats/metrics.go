package stats

import (
	"io"
	"text/template"

	"github.com/guigolab/bammatrix/sam"
)

// FilterMetric is the fraction of contacts flagged by one filter.
type FilterMetric struct {
	Name     string   `json:"name"`
	Fraction fraction `json:"fraction"`
}

// Metrics are the fractions derived from ContactStats.
type Metrics struct {
	Valid   fraction       `json:"FRACTION_VALID"`
	Trans   fraction       `json:"FRACTION_TRANS"`
	Filters []FilterMetric `json:"filters,omitempty"`
}

// Calculate derives the metrics of s, naming filters after fs.
func Calculate(s *ContactStats, fs sam.FilterSet) *Metrics {
	m := &Metrics{}
	if s.Contacts == 0 {
		return m
	}
	total := fraction(s.Contacts)
	m.Valid = fraction(s.Valid) / total
	if s.Valid > 0 {
		m.Trans = fraction(s.Trans) / fraction(s.Valid)
	}
	for _, f := range fs {
		if n, ok := s.Filtered[f.Code]; ok {
			m.Filters = append(m.Filters, FilterMetric{f.Name, fraction(n) / total})
		}
	}
	return m
}

var metricsTmpl = template.Must(template.New("metrics").Parse(`FRACTION_VALID	{{.Valid}}
FRACTION_TRANS	{{.Trans}}
{{range .Filters}}FRACTION_{{.Name}}	{{.Fraction}}
{{end}}`))

// Output writes the metrics as tab separated lines.
func (m *Metrics) Output(out io.Writer) error {
	return metricsTmpl.Execute(out, m)
}
