//go:build linux
// +build linux

package nft

import (
	"context"
	"fmt"

	"github.com/google/nftables"

	apperrors "github.com/maksimkurb/keen-dnsset/src/internal/errors"
)

// nftConn abstracts the nftables.Conn operations used by NetlinkExecutor for testing.
type nftConn interface {
	GetSetByName(t *nftables.Table, name string) (*nftables.Set, error)
	SetAddElements(s *nftables.Set, vals []nftables.SetElement) error
	Flush() error
	CloseLasting() error
}

// NetlinkExecutor adds set elements through a lasting netlink connection
// instead of spawning nft. The connection is bound to this executor and
// must not be shared between goroutines.
type NetlinkExecutor struct {
	conn nftConn
	sets map[Key]*nftables.Set
}

// NewNetlinkExecutor opens a lasting nftables netlink connection.
func NewNetlinkExecutor() (*NetlinkExecutor, error) {
	conn, err := nftables.New(nftables.AsLasting())
	if err != nil {
		return nil, apperrors.NewExecError("failed to open nftables connection", err)
	}
	return newNetlinkExecutor(conn), nil
}

func newNetlinkExecutor(conn nftConn) *NetlinkExecutor {
	return &NetlinkExecutor{
		conn: conn,
		sets: make(map[Key]*nftables.Set),
	}
}

// NetlinkExecutorFactory returns a factory producing one netlink executor per worker.
func NetlinkExecutorFactory() ExecutorFactory {
	return func() (Executor, error) {
		return NewNetlinkExecutor()
	}
}

// tableFamily maps a rule family to the netlink table family. nft treats an
// unspecified family as "ip".
func tableFamily(f Family) nftables.TableFamily {
	switch f {
	case FamilyIP6:
		return nftables.TableFamilyIPv6
	case FamilyInet:
		return nftables.TableFamilyINet
	default:
		return nftables.TableFamilyIPv4
	}
}

// getSet returns a cached set reference or looks it up by name.
func (e *NetlinkExecutor) getSet(target *Target) (*nftables.Set, error) {
	key := target.Key()
	if s, ok := e.sets[key]; ok {
		return s, nil
	}

	table := &nftables.Table{
		Name:   target.Table,
		Family: tableFamily(target.Family),
	}
	s, err := e.conn.GetSetByName(table, target.Set)
	if err != nil {
		return nil, fmt.Errorf("set %s not found: %w", target, err)
	}
	e.sets[key] = s
	return s, nil
}

// Execute queues all elements of the command grouped by set and commits them in one flush.
func (e *NetlinkExecutor) Execute(_ context.Context, cmd *Command) error {
	if cmd.IsEmpty() {
		return nil
	}

	type batch struct {
		set      *nftables.Set
		elements []nftables.SetElement
	}
	var order []Key
	batches := make(map[Key]*batch)

	for _, elem := range cmd.Elements() {
		key := elem.Target.Key()
		b, ok := batches[key]
		if !ok {
			set, err := e.getSet(elem.Target)
			if err != nil {
				return apperrors.NewExecError("failed to resolve set", err)
			}
			b = &batch{set: set}
			batches[key] = b
			order = append(order, key)
		}

		timeout, err := ParseTimeout(elem.Target.Timeout)
		if err != nil {
			return apperrors.NewExecError("failed to add element", err)
		}

		b.elements = append(b.elements, nftables.SetElement{
			Key:     elem.Addr.AsSlice(),
			Timeout: timeout,
		})
	}

	for _, key := range order {
		b := batches[key]
		if err := e.conn.SetAddElements(b.set, b.elements); err != nil {
			return apperrors.NewExecError(fmt.Sprintf("failed to add elements to set %s", b.set.Name), err)
		}
	}

	if err := e.conn.Flush(); err != nil {
		// A cached set may have been deleted and recreated; look it up again next time.
		e.sets = make(map[Key]*nftables.Set)
		return apperrors.NewExecError("failed to flush nftables changes", err)
	}
	return nil
}

// Close releases the lasting netlink connection.
func (e *NetlinkExecutor) Close() error {
	return e.conn.CloseLasting()
}

func (e *NetlinkExecutor) String() string {
	return "nftables netlink"
}
