package capture

import (
	"context"

	"github.com/maksimkurb/keen-dnsset/src/internal/dispatch"
	"github.com/maksimkurb/keen-dnsset/src/internal/log"
	"github.com/maksimkurb/keen-dnsset/src/internal/metrics"
	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/rules"
)

// Options configures the NFLOG listener.
type Options struct {
	Group     uint16
	LinkLayer LinkLayer
}

// Listener receives packets logged to an NFLOG group and dispatches the DNS
// responses they carry. All packets are handled synchronously on the nflog
// receive goroutine with a single executor owned by the listener.
type Listener struct {
	opts    Options
	rules   *rules.RuleSet
	newExec nft.ExecutorFactory
	metrics *metrics.Metrics
}

// NewListener creates a listener. m may be nil.
func NewListener(opts Options, rs *rules.RuleSet, factory nft.ExecutorFactory, m *metrics.Metrics) *Listener {
	return &Listener{
		opts:    opts,
		rules:   rs,
		newExec: factory,
		metrics: m,
	}
}

// handlePacket runs extract, decode and dispatch for one captured packet.
func (l *Listener) handlePacket(ctx context.Context, d *dispatch.Dispatcher, packet []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[nflog] Panic while handling packet (%d bytes): %v", len(packet), r)
		}
	}()

	payload, err := ExtractDNSPayload(packet, l.opts.LinkLayer)
	if err != nil {
		log.Debugf("[nflog] Dropping packet (%d bytes): %v", len(packet), err)
		l.metrics.Packet(metrics.TransportCapture, metrics.ResultRejected)
		l.metrics.DecodeError(metrics.TransportCapture, rejectKind(err))
		return
	}

	l.metrics.Packet(metrics.TransportCapture, metrics.ResultAccepted)
	d.HandlePayload(ctx, payload)
}
