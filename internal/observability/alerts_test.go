package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	jobmetrics "github.com/quotedesk/quotedesk/internal/jobs"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertFile struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

// collectingRegisterer remembers every collector registered through it.
type collectingRegisterer struct {
	prometheus.Registerer
	collectors []prometheus.Collector
}

func (c *collectingRegisterer) MustRegister(cs ...prometheus.Collector) {
	c.Registerer.MustRegister(cs...)
	c.collectors = append(c.collectors, cs...)
}

var (
	fqNamePattern = regexp.MustCompile(`fqName: "([^"]+)"`)
	metricPattern = regexp.MustCompile(`quotedesk_[a-z_]+`)
)

// exportedNames lists every series name the API and worker can expose,
// including histogram suffixes.
func exportedNames(t *testing.T) map[string]bool {
	t.Helper()
	m := NewMetrics()
	reg := &collectingRegisterer{Registerer: prometheus.NewRegistry()}
	jobmetrics.NewMetrics(reg)

	all := append([]prometheus.Collector{
		m.requestsTotal, m.requestDuration, m.quotations, m.transitions, m.adjustments, m.pdfRenders,
	}, reg.collectors...)

	names := map[string]bool{}
	for _, c := range all {
		descs := make(chan *prometheus.Desc, 8)
		go func() {
			c.Describe(descs)
			close(descs)
		}()
		for d := range descs {
			match := fqNamePattern.FindStringSubmatch(d.String())
			require.Len(t, match, 2, d.String())
			for _, suffix := range []string{"", "_bucket", "_sum", "_count"} {
				names[match[1]+suffix] = true
			}
		}
	}
	return names
}

func TestQuotationAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "quotedesk.yml"))
	require.NoError(t, err)

	var file alertFile
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.Len(t, file.Groups, 1)
	require.Equal(t, "quotedesk", file.Groups[0].Name)
	rules := file.Groups[0].Rules

	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"HighErrorRate":        {severity: "critical", runbook: "docs/runbook.md#high-error-rate"},
		"HighLatency":          {severity: "warning", runbook: "docs/runbook.md#high-latency"},
		"PDFRenderFailures":    {severity: "warning", runbook: "docs/runbook.md#pdf-render-failures"},
		"PDFRegenerateFailing": {severity: "warning", runbook: "docs/runbook.md#pdf-regenerate-failing"},
	}
	require.Len(t, rules, len(expected))

	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook.md"))
	require.NoError(t, err)
	exported := exportedNames(t)

	for _, rule := range rules {
		t.Run(rule.Alert, func(t *testing.T) {
			want, ok := expected[rule.Alert]
			require.True(t, ok, "unexpected rule")
			assert.Equal(t, want.severity, rule.Labels["severity"])
			assert.Equal(t, want.runbook, rule.Annotations["runbook"])
			assert.NotEmpty(t, rule.Annotations["summary"])
			assert.NotEmpty(t, rule.Annotations["description"])
			assert.NotEmpty(t, rule.For)

			anchor := want.runbook[len("docs/runbook.md#"):]
			assert.Contains(t, string(runbook), "\n## "+anchor+"\n", "runbook section missing")

			metrics := metricPattern.FindAllString(rule.Expr, -1)
			require.NotEmpty(t, metrics, "expression references no quotedesk metric")
			for _, name := range metrics {
				assert.True(t, exported[name], "metric %s is not exported", name)
			}
		})
	}
}
