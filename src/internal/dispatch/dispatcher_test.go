package dispatch

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurb/keen-dnsset/src/internal/dnsmsg"
	"github.com/maksimkurb/keen-dnsset/src/internal/metrics"
	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/rules"
)

type recordingExecutor struct {
	calls []string
	err   error
}

func (e *recordingExecutor) Execute(_ context.Context, cmd *nft.Command) error {
	e.calls = append(e.calls, cmd.String())
	return e.err
}

func (e *recordingExecutor) Close() error {
	return nil
}

func ruleSet(t *testing.T, text string) *rules.RuleSet {
	t.Helper()
	rs, err := rules.Parse(strings.NewReader(text))
	require.NoError(t, err)
	return rs
}

func response(t *testing.T, name string, qtype uint16, answers ...dns.RR) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion(name, qtype)
	m.Response = true
	m.Answer = answers
	b, err := m.Pack()
	require.NoError(t, err)
	return b
}

func a(name, ip string) dns.RR {
	return &dns.A{Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: net.ParseIP(ip).To4()}
}

func aaaa(name, ip string) dns.RR {
	return &dns.AAAA{Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 60}, AAAA: net.ParseIP(ip)}
}

func cname(name, target string) dns.RR {
	return &dns.CNAME{Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 60}, Target: target}
}

func TestHandlePayload_ARecordEndToEnd(t *testing.T) {
	exec := &recordingExecutor{}
	d := New(metrics.TransportCLI, ruleSet(t, ",,inet,myset,ipv4_addr\n"), exec, nil)

	res := d.HandlePayload(context.Background(), response(t, "foo.com.", dns.TypeA, a("foo.com.", "93.184.216.34")))

	require.NoError(t, res.Err)
	assert.True(t, res.Executed)
	assert.Equal(t, "foo.com.", res.Question)
	assert.Equal(t, []string{"add element inet myset { 93.184.216.34 }; "}, exec.calls)
}

func TestHandlePayload_CNAMEOnlyDoesNotExecute(t *testing.T) {
	exec := &recordingExecutor{}
	d := New(metrics.TransportCLI, ruleSet(t, ",,inet,myset,ipv4_addr\n"), exec, nil)

	res := d.HandlePayload(context.Background(), response(t, "alias.com.", dns.TypeA, cname("alias.com.", "real.net.")))

	require.NoError(t, res.Err)
	assert.False(t, res.Executed)
	require.NotNil(t, res.Command)
	assert.True(t, res.Command.IsEmpty())
	assert.Empty(t, exec.calls)
}

func TestHandlePayload_CrossProductUsesQuestionName(t *testing.T) {
	exec := &recordingExecutor{}
	rs := ruleSet(t, `
example.com,inet,filter,v4,ipv4_addr
example.com,inet,filter,v6,ipv6_addr,1h
cdn.net,inet,filter,cdn,ipv4_addr
`)
	d := New(metrics.TransportCLI, rs, exec, nil)

	// Answers are owned by the CNAME target, not the question name.
	payload := response(t, "www.example.com.", dns.TypeA,
		cname("www.example.com.", "edge.cdn.net."),
		a("edge.cdn.net.", "1.1.1.1"),
		aaaa("edge.cdn.net.", "2001:db8::1"),
		a("edge.cdn.net.", "1.0.0.1"),
	)
	res := d.HandlePayload(context.Background(), payload)

	require.NoError(t, res.Err)
	assert.Len(t, res.Targets, 2)
	require.Len(t, exec.calls, 1)
	assert.Equal(t,
		"add element inet filter v4 { 1.1.1.1 }; "+
			"add element inet filter v6 { 2001:db8::1 timeout 1h }; "+
			"add element inet filter v4 { 1.0.0.1 }; ",
		exec.calls[0])
}

func TestHandlePayload_DuplicateAnswers(t *testing.T) {
	exec := &recordingExecutor{}
	d := New(metrics.TransportCLI, ruleSet(t, "a.com,,t,s,ipv4\n"), exec, nil)

	d.HandlePayload(context.Background(), response(t, "a.com.", dns.TypeA, a("a.com.", "10.0.0.1"), a("a.com.", "10.0.0.1")))

	assert.Equal(t, []string{"add element t s { 10.0.0.1 }; "}, exec.calls)
}

func TestHandlePayload_NoMatch(t *testing.T) {
	exec := &recordingExecutor{}
	d := New(metrics.TransportCLI, ruleSet(t, "example.com,,t,s,ipv4\n"), exec, nil)

	res := d.HandlePayload(context.Background(), response(t, "example.org.", dns.TypeA, a("example.org.", "1.2.3.4")))

	assert.Empty(t, res.Targets)
	assert.Nil(t, res.Command)
	assert.False(t, res.Executed)
	assert.Empty(t, exec.calls)
}

func TestHandlePayload_NonAddressQuestion(t *testing.T) {
	exec := &recordingExecutor{}
	d := New(metrics.TransportCLI, ruleSet(t, ",,t,s,ipv4\n"), exec, nil)

	res := d.HandlePayload(context.Background(), response(t, "example.com.", dns.TypeMX, a("example.com.", "1.2.3.4")))

	assert.NoError(t, res.Err)
	assert.Empty(t, res.Question)
	assert.Empty(t, exec.calls)
}

func TestHandlePayload_DecodeError(t *testing.T) {
	exec := &recordingExecutor{}
	m := metrics.New()
	d := New(metrics.TransportDnstap, ruleSet(t, ",,t,s,ipv4\n"), exec, m)

	res := d.HandlePayload(context.Background(), []byte{1, 2, 3})

	assert.ErrorIs(t, res.Err, dnsmsg.ErrMalformedHeader)
	assert.Empty(t, exec.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues(metrics.TransportDnstap, "header")))
}

func TestHandlePayload_ExecutionFailureIsNotFatal(t *testing.T) {
	exec := &recordingExecutor{err: errors.New("nft: no such set")}
	m := metrics.New()
	d := New(metrics.TransportCapture, ruleSet(t, ",,t,s,ipv4\n"), exec, m)

	res := d.HandlePayload(context.Background(), response(t, "a.com.", dns.TypeA, a("a.com.", "1.2.3.4")))
	assert.Error(t, res.Err)
	assert.True(t, res.Executed)

	// The next message is still processed.
	exec.err = nil
	res = d.HandlePayload(context.Background(), response(t, "b.com.", dns.TypeA, a("b.com.", "5.6.7.8")))
	assert.NoError(t, res.Err)
	assert.Len(t, exec.calls, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MatchesTotal))
}

func TestHandleMessage_FamilyFiltering(t *testing.T) {
	exec := &recordingExecutor{}
	d := New(metrics.TransportCLI, ruleSet(t, "v6only.com,,t,s6,ipv6_addr\n"), exec, nil)

	res := d.HandlePayload(context.Background(), response(t, "v6only.com.", dns.TypeA, a("v6only.com.", "1.2.3.4")))

	assert.Len(t, res.Targets, 1)
	assert.False(t, res.Executed)
	assert.Empty(t, exec.calls)
}

func TestHandlePayload_MappedAAAAGoesToIPv6Set(t *testing.T) {
	exec := &recordingExecutor{}
	d := New(metrics.TransportCLI, ruleSet(t, ",inet,filter,v4,ipv4_addr\n,inet,filter,v6,ipv6_addr\n"), exec, nil)

	res := d.HandlePayload(context.Background(), response(t, "foo.com.", dns.TypeAAAA, aaaa("foo.com.", "::ffff:1.2.3.4")))

	require.NoError(t, res.Err)
	assert.True(t, res.Executed)
	assert.Equal(t, []string{"add element inet filter v6 { ::ffff:1.2.3.4 }; "}, exec.calls)
}
