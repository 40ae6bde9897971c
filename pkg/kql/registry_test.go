package kql

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityFilter(t *testing.T) {
	tests := []struct {
		min  string
		want string
	}{
		{"Informational", "'Informational','Low','Medium','High'"},
		{"Low", "'Low','Medium','High'"},
		{"Medium", "'Medium','High'"},
		{"High", "'High'"},
		{"Critical", "'Informational','Low','Medium','High'"},
		{"", "'Informational','Low','Medium','High'"},
	}
	for _, tt := range tests {
		t.Run(tt.min, func(t *testing.T) {
			assert.Equal(t, tt.want, SeverityFilter(tt.min))
		})
	}
}

func TestSeverityFilterMonotonic(t *testing.T) {
	// Each step up the threshold must strictly shrink the filter.
	prev := len(strings.Split(SeverityFilter(SeverityOrder[0]), ","))
	for _, s := range SeverityOrder[1:] {
		n := len(strings.Split(SeverityFilter(s), ","))
		assert.Equal(t, prev-1, n, "threshold %s", s)
		prev = n
	}
}

func TestBuildSubstitutesAllPlaceholders(t *testing.T) {
	query, err := Build(TemplateListIncidents, map[string]string{
		"time_range":      "24h",
		"severity_filter": SeverityFilter("Medium"),
		"limit":           "20",
	})
	require.NoError(t, err)
	assert.Contains(t, query, "ago(24h)")
	assert.Contains(t, query, "Severity in ('Medium','High')")
	assert.Contains(t, query, "take 20")
	assert.NotContains(t, query, "{")
}

func TestBuildReportsAllMissingParams(t *testing.T) {
	_, err := Build(TemplateListIncidents, map[string]string{"limit": "20"})
	require.Error(t, err)

	var missing *MissingParamsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "list_incidents", missing.Template)
	assert.Equal(t, []string{"severity_filter", "time_range"}, missing.Missing)
}

func TestBuildUnknownTemplate(t *testing.T) {
	_, err := Build(TemplateID(99), nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestBuildIgnoresExtraParams(t *testing.T) {
	query, err := Build(TemplateIncidentByNumber, map[string]string{
		"incident_number": "42",
		"unused":          "x",
	})
	require.NoError(t, err)
	assert.Contains(t, query, "IncidentNumber == 42")
}

func TestTemplateTimeouts(t *testing.T) {
	assert.Equal(t, 60*time.Second, TemplateListIncidents.Timeout())
	assert.Equal(t, 60*time.Second, TemplateIncidentEntities.Timeout())
	assert.Equal(t, 180*time.Second, TemplateAlertTrend.Timeout())
	assert.Equal(t, 180*time.Second, TemplateAlertTrendTotal.Timeout())
	assert.Equal(t, 180*time.Second, TemplateTopEntities.Timeout())
}

func TestWindowLookup(t *testing.T) {
	w, ok := Window("last_7d")
	require.True(t, ok)
	assert.Equal(t, 7*24*time.Hour, w.Timespan)
	assert.Equal(t, "7d", w.Ago)

	_, ok = Window("yesterday")
	assert.False(t, ok)

	assert.Equal(t, []string{"last_14d", "last_1h", "last_24h", "last_30d", "last_3d", "last_7d"}, WindowNames())
}

func TestBinSize(t *testing.T) {
	assert.Equal(t, "1h", BinSize("last_1h"))
	assert.Equal(t, "1h", BinSize("last_24h"))
	assert.Equal(t, "1d", BinSize("last_3d"))
	assert.Equal(t, "1d", BinSize("last_30d"))
	assert.Equal(t, "1d", BinSize("bogus"))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultIncidentLimit, ClampLimit(0, DefaultIncidentLimit, MaxIncidentLimit))
	assert.Equal(t, DefaultIncidentLimit, ClampLimit(-5, DefaultIncidentLimit, MaxIncidentLimit))
	assert.Equal(t, MaxIncidentLimit, ClampLimit(500, DefaultIncidentLimit, MaxIncidentLimit))
	assert.Equal(t, 30, ClampLimit(30, DefaultIncidentLimit, MaxIncidentLimit))
}
