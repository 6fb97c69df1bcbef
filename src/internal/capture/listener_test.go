package capture

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/gopacket/gopacket/layers"
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurb/keen-dnsset/src/internal/dispatch"
	"github.com/maksimkurb/keen-dnsset/src/internal/metrics"
	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/rules"
)

func TestListener_HandlePacket(t *testing.T) {
	rs, err := rules.Parse(strings.NewReader(",,inet,myset,ipv4_addr\n"))
	require.NoError(t, err)

	exec := &nft.DryRunExecutor{}
	m := metrics.New()
	l := NewListener(Options{Group: 0}, rs, func() (nft.Executor, error) { return exec, nil }, m)
	d := dispatch.New(metrics.TransportCapture, rs, exec, m)

	msg := new(dns.Msg)
	msg.SetQuestion("foo.com.", dns.TypeA)
	msg.Response = true
	msg.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: "foo.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
		A:   net.ParseIP("93.184.216.34").To4(),
	}}
	wire, err := msg.Pack()
	require.NoError(t, err)

	l.handlePacket(context.Background(), d, udpPacket(t, ipv4Layer(layers.IPProtocolUDP), wire))
	l.handlePacket(context.Background(), d, []byte{0x45, 0, 0})
	l.handlePacket(context.Background(), d, udpPacket(t, ipv4Layer(layers.IPProtocolUDP), []byte{1, 2}))

	assert.Equal(t, []string{"add element inet myset { 93.184.216.34 }; "}, exec.Commands)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PacketsTotal.WithLabelValues(metrics.TransportCapture, metrics.ResultAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsTotal.WithLabelValues(metrics.TransportCapture, metrics.ResultRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues(metrics.TransportCapture, "short")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues(metrics.TransportCapture, "header")))
}
