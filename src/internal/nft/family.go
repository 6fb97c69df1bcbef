package nft

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

var (
	// ErrUnknownFamily is returned by ParseFamily for an unrecognised table family.
	ErrUnknownFamily = errors.New("unknown table family")

	// ErrUnknownElemType is returned by ParseSetElemType for an unrecognised element type.
	ErrUnknownElemType = errors.New("unknown set element type")
)

// Family is the nftables table address family.
// The zero value means the family is not specified and nft picks its default ("ip").
type Family uint8

const (
	FamilyUnspec Family = iota
	FamilyIP
	FamilyIP6
	FamilyInet
)

// ParseFamily parses a family column. An empty string yields FamilyUnspec.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(s) {
	case "":
		return FamilyUnspec, nil
	case "ip":
		return FamilyIP, nil
	case "ip6":
		return FamilyIP6, nil
	case "inet":
		return FamilyInet, nil
	default:
		return FamilyUnspec, fmt.Errorf("%w: %q", ErrUnknownFamily, s)
	}
}

// IsSpecified reports whether a family token should be emitted.
func (f Family) IsSpecified() bool {
	return f != FamilyUnspec
}

func (f Family) String() string {
	switch f {
	case FamilyIP:
		return "ip"
	case FamilyIP6:
		return "ip6"
	case FamilyInet:
		return "inet"
	default:
		return ""
	}
}

// SetElemType is the element type of an nftables set.
type SetElemType uint8

const (
	ElemIPv4Addr SetElemType = iota + 1
	ElemIPv6Addr
)

// ParseSetElemType parses an element type column.
// Accepted spellings are ipv4_addr, ipv4, ip4 and ipv6_addr, ipv6, ip6.
func ParseSetElemType(s string) (SetElemType, error) {
	switch strings.ToLower(s) {
	case "ipv4_addr", "ipv4", "ip4":
		return ElemIPv4Addr, nil
	case "ipv6_addr", "ipv6", "ip6":
		return ElemIPv6Addr, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownElemType, s)
	}
}

// Accepts reports whether addr belongs to the address family of the set.
// An IPv4-mapped IPv6 address is IPv6: it only goes to ipv6_addr sets.
func (t SetElemType) Accepts(addr netip.Addr) bool {
	switch t {
	case ElemIPv4Addr:
		return addr.Is4()
	case ElemIPv6Addr:
		return addr.Is6()
	default:
		return false
	}
}

func (t SetElemType) String() string {
	switch t {
	case ElemIPv4Addr:
		return "ipv4_addr"
	case ElemIPv6Addr:
		return "ipv6_addr"
	default:
		return "unknown"
	}
}
