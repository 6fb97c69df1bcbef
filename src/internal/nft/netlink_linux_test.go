//go:build linux
// +build linux

package nft

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/google/nftables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	lookups  int
	added    map[string][]nftables.SetElement
	flushes  int
	flushErr error
	missing  map[string]bool
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{added: make(map[string][]nftables.SetElement), missing: make(map[string]bool)}
}

func (f *fakeConn) GetSetByName(t *nftables.Table, name string) (*nftables.Set, error) {
	f.lookups++
	if f.missing[name] {
		return nil, errors.New("no such file or directory")
	}
	return &nftables.Set{Table: t, Name: name}, nil
}

func (f *fakeConn) SetAddElements(s *nftables.Set, vals []nftables.SetElement) error {
	f.added[s.Name] = append(f.added[s.Name], vals...)
	return nil
}

func (f *fakeConn) Flush() error {
	f.flushes++
	return f.flushErr
}

func (f *fakeConn) CloseLasting() error {
	f.closed = true
	return nil
}

func TestNetlinkExecutor_GroupsBySetAndFlushesOnce(t *testing.T) {
	conn := newFakeConn()
	e := newNetlinkExecutor(conn)

	t4 := &Target{Family: FamilyInet, Table: "filter", Set: "v4", ElemType: ElemIPv4Addr, Timeout: "1h"}
	t6 := &Target{Family: FamilyInet, Table: "filter", Set: "v6", ElemType: ElemIPv6Addr}

	cmd := NewCommand()
	cmd.AddElement(t4, netip.MustParseAddr("1.2.3.4"))
	cmd.AddElement(t6, netip.MustParseAddr("2001:db8::1"))
	cmd.AddElement(t4, netip.MustParseAddr("5.6.7.8"))

	require.NoError(t, e.Execute(context.Background(), cmd))
	assert.Equal(t, 1, conn.flushes)
	assert.Equal(t, 2, conn.lookups)

	require.Len(t, conn.added["v4"], 2)
	assert.Equal(t, []byte{1, 2, 3, 4}, conn.added["v4"][0].Key)
	assert.Equal(t, time.Hour, conn.added["v4"][0].Timeout)
	assert.Equal(t, []byte{5, 6, 7, 8}, conn.added["v4"][1].Key)
	require.Len(t, conn.added["v6"], 1)
	assert.Len(t, conn.added["v6"][0].Key, 16)

	// Second run reuses cached sets.
	require.NoError(t, e.Execute(context.Background(), cmd))
	assert.Equal(t, 2, conn.lookups)

	require.NoError(t, e.Close())
	assert.True(t, conn.closed)
}

func TestNetlinkExecutor_MissingSet(t *testing.T) {
	conn := newFakeConn()
	conn.missing["absent"] = true
	e := newNetlinkExecutor(conn)

	cmd := NewCommand()
	cmd.AddElement(&Target{Table: "filter", Set: "absent", ElemType: ElemIPv4Addr}, netip.MustParseAddr("1.2.3.4"))

	err := e.Execute(context.Background(), cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filter absent")
	assert.Equal(t, 0, conn.flushes)
}

func TestNetlinkExecutor_FlushErrorDropsCache(t *testing.T) {
	conn := newFakeConn()
	conn.flushErr = errors.New("netlink: busy")
	e := newNetlinkExecutor(conn)

	cmd := NewCommand()
	cmd.AddElement(&Target{Table: "filter", Set: "s", ElemType: ElemIPv4Addr}, netip.MustParseAddr("1.2.3.4"))

	require.Error(t, e.Execute(context.Background(), cmd))
	require.Error(t, e.Execute(context.Background(), cmd))
	assert.Equal(t, 2, conn.lookups)
}

func TestNetlinkExecutor_EmptyCommand(t *testing.T) {
	conn := newFakeConn()
	e := newNetlinkExecutor(conn)
	require.NoError(t, e.Execute(context.Background(), NewCommand()))
	assert.Equal(t, 0, conn.flushes)
}

func TestTableFamily(t *testing.T) {
	assert.Equal(t, nftables.TableFamilyIPv4, tableFamily(FamilyUnspec))
	assert.Equal(t, nftables.TableFamilyIPv4, tableFamily(FamilyIP))
	assert.Equal(t, nftables.TableFamilyIPv6, tableFamily(FamilyIP6))
	assert.Equal(t, nftables.TableFamilyINet, tableFamily(FamilyInet))
}
