//go:build linux
// +build linux

package capture

import (
	"context"
	"time"

	"github.com/florianl/go-nflog/v2"

	"github.com/maksimkurb/keen-dnsset/src/internal/dispatch"
	apperrors "github.com/maksimkurb/keen-dnsset/src/internal/errors"
	"github.com/maksimkurb/keen-dnsset/src/internal/log"
	"github.com/maksimkurb/keen-dnsset/src/internal/metrics"
	"github.com/maksimkurb/keen-dnsset/src/internal/utils"
)

// Run binds the NFLOG group and processes packets until ctx is cancelled.
// Failing to bind the group is returned as a capture error; everything after
// that is logged and never stops the loop.
func (l *Listener) Run(ctx context.Context) error {
	exec, err := l.newExec()
	if err != nil {
		return apperrors.NewCaptureError("failed to create executor", err)
	}
	defer utils.CloseOrWarn(exec)

	nf, err := nflog.Open(&nflog.Config{
		Group:       l.opts.Group,
		Copymode:    nflog.CopyPacket,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return apperrors.NewCaptureError("failed to open nflog", err)
	}
	defer utils.CloseOrWarn(nf)

	d := dispatch.New(metrics.TransportCapture, l.rules, exec, l.metrics)

	err = nf.RegisterWithErrorFunc(ctx,
		func(attrs nflog.Attribute) int {
			if attrs.Payload == nil || len(*attrs.Payload) == 0 {
				return 0
			}
			l.handlePacket(ctx, d, *attrs.Payload)
			return 0
		},
		func(err error) int {
			if ctx.Err() == nil {
				log.Warnf("[nflog] Receive error on group %d: %v", l.opts.Group, err)
			}
			return 0
		},
	)
	if err != nil {
		return apperrors.NewCaptureError("failed to register nflog callback", err)
	}

	log.Infof("Capturing DNS responses from NFLOG group %d", l.opts.Group)
	<-ctx.Done()
	log.Infof("Stopped capturing on NFLOG group %d", l.opts.Group)
	return nil
}
