package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

const minIPv4UDPLen = 20 + 8

var (
	ErrPacketTooShort = errors.New("packet shorter than IPv4+UDP headers")
	ErrNotIPv4        = errors.New("not an IPv4 packet")
	ErrFragmented     = errors.New("fragmented IPv4 packet")
	ErrNotUDP         = errors.New("not a UDP datagram")
	ErrMalformed      = errors.New("malformed packet headers")
)

// LinkLayer describes what precedes the IP header in a captured packet.
type LinkLayer uint8

const (
	// LinkLayerNone means the packet starts with the IP header, which is what NFLOG delivers.
	LinkLayerNone LinkLayer = iota
	LinkLayerEthernet
)

// ParseLinkLayer parses "none" (or empty) and "ethernet".
func ParseLinkLayer(s string) (LinkLayer, error) {
	switch strings.ToLower(s) {
	case "", "none", "raw":
		return LinkLayerNone, nil
	case "ethernet", "eth":
		return LinkLayerEthernet, nil
	default:
		return LinkLayerNone, fmt.Errorf("unknown link layer %q", s)
	}
}

func (l LinkLayer) String() string {
	if l == LinkLayerEthernet {
		return "ethernet"
	}
	return "none"
}

// ExtractDNSPayload returns the UDP payload of an IPv4 packet. The IP header
// length is taken from the IHL field, so packets with IP options are handled.
// Fragments and non-UDP packets are rejected. The returned slice aliases packet.
func ExtractDNSPayload(packet []byte, linkLayer LinkLayer) ([]byte, error) {
	data := packet

	if linkLayer == LinkLayerEthernet {
		var eth layers.Ethernet
		if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPacketTooShort, err)
		}
		if eth.EthernetType != layers.EthernetTypeIPv4 {
			return nil, fmt.Errorf("%w: ethertype %s", ErrNotIPv4, eth.EthernetType)
		}
		data = eth.Payload
	}

	if len(data) < minIPv4UDPLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooShort, len(data))
	}
	if version := data[0] >> 4; version != 4 {
		return nil, fmt.Errorf("%w: version %d", ErrNotIPv4, version)
	}

	var ip layers.IPv4
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ip.FragOffset != 0 || ip.Flags&layers.IPv4MoreFragments != 0 {
		return nil, ErrFragmented
	}
	if ip.Protocol != layers.IPProtocolUDP {
		return nil, fmt.Errorf("%w: protocol %s", ErrNotUDP, ip.Protocol)
	}

	var udp layers.UDP
	if err := udp.DecodeFromBytes(ip.Payload, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return udp.Payload, nil
}

// rejectKind classifies an extraction error for metrics labels.
func rejectKind(err error) string {
	switch {
	case errors.Is(err, ErrPacketTooShort):
		return "short"
	case errors.Is(err, ErrNotIPv4):
		return "not_ipv4"
	case errors.Is(err, ErrFragmented):
		return "fragment"
	case errors.Is(err, ErrNotUDP):
		return "not_udp"
	default:
		return "malformed"
	}
}
