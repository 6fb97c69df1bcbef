//go:build !linux
// +build !linux

package nft

import (
	"errors"

	apperrors "github.com/maksimkurb/keen-dnsset/src/internal/errors"
)

// NetlinkExecutorFactory returns a factory that always fails: nftables netlink is Linux-only.
func NetlinkExecutorFactory() ExecutorFactory {
	return func() (Executor, error) {
		return nil, apperrors.NewExecError("netlink executor is not supported", errors.New("nftables requires linux"))
	}
}
