package nft

import "strings"

// Target identifies one nftables set that receives resolved addresses.
//
// Targets are immutable once parsed and are shared by pointer: the rule set
// collapses structurally equal descriptors into a single instance, so pointer
// equality is identity.
type Target struct {
	Family   Family
	Table    string
	Set      string
	ElemType SetElemType
	// Timeout is an nft duration token passed through verbatim; empty means no timeout.
	Timeout string
}

// Key is the structural identity of a target. Equal keys mean equal descriptors.
type Key struct {
	Family   Family
	Table    string
	Set      string
	ElemType SetElemType
	Timeout  string
}

// Key returns the comparable descriptor of t.
func (t *Target) Key() Key {
	return Key{
		Family:   t.Family,
		Table:    t.Table,
		Set:      t.Set,
		ElemType: t.ElemType,
		Timeout:  t.Timeout,
	}
}

// String renders the target the way nft addresses a set, e.g. "inet filter vpn".
func (t *Target) String() string {
	var sb strings.Builder
	if t.Family.IsSpecified() {
		sb.WriteString(t.Family.String())
		sb.WriteByte(' ')
	}
	sb.WriteString(t.Table)
	sb.WriteByte(' ')
	sb.WriteString(t.Set)
	return sb.String()
}
