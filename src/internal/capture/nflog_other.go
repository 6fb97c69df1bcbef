//go:build !linux
// +build !linux

package capture

import (
	"context"
	"errors"

	apperrors "github.com/maksimkurb/keen-dnsset/src/internal/errors"
)

// Run always fails: NFLOG is a Linux netfilter facility.
func (l *Listener) Run(_ context.Context) error {
	return apperrors.NewCaptureError("nflog capture is not supported", errors.New("nflog requires linux"))
}
