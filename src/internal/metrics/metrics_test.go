package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Packet(TransportCapture, ResultAccepted)
	m.Packet(TransportCapture, ResultAccepted)
	m.Packet(TransportDnstap, ResultRejected)
	m.DecodeError(TransportCapture, "truncated")
	m.Match()
	m.Command(3, 2*time.Millisecond, nil)
	m.Command(1, time.Millisecond, errors.New("nft failed"))
	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	m.RuleSet(10, 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PacketsTotal.WithLabelValues(TransportCapture, ResultAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsTotal.WithLabelValues(TransportDnstap, ResultRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues(TransportCapture, "truncated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatchesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ElementsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamConnections))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.RulesLoaded))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.TargetsLoaded))
}

func TestMetrics_Exposition(t *testing.T) {
	m := New()
	m.Match()

	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP keen_dnsset_matches_total Responses whose question matched at least one rule.
# TYPE keen_dnsset_matches_total counter
keen_dnsset_matches_total 1
`), "keen_dnsset_matches_total")
	require.NoError(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Packet(TransportCLI, ResultAccepted)
		m.DecodeError(TransportCLI, "header")
		m.Match()
		m.Command(1, time.Second, nil)
		m.ConnOpened()
		m.ConnClosed()
		m.RuleSet(1, 1)
	})
}
