package dnsmsg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/miekg/dns"

	"github.com/maksimkurb/keen-dnsset/src/internal/log"
)

const (
	headerLen   = 12
	questionLen = 4  // type + class
	rrHeaderLen = 10 // type + class + ttl + rdlength

	flagQR = 1 << 15
)

var (
	ErrMalformedHeader      = errors.New("malformed DNS header")
	ErrMalformedName        = errors.New("malformed domain name")
	ErrTruncatedRecord      = errors.New("truncated DNS record")
	ErrUnsupportedQueryType = errors.New("no A or AAAA question")
)

// Question is a single entry of the question section.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// Answer is an interpreted A or AAAA record from the answer section.
type Answer struct {
	Name string
	Type uint16
	TTL  uint32
	Addr netip.Addr
}

// Message is the part of a DNS message the dispatcher needs.
type Message struct {
	ID        uint16
	Response  bool
	Rcode     int
	Questions []Question
	Answers   []Answer
	// Skipped counts answer records that were not A/AAAA, or A/AAAA records with a bad RDLENGTH.
	Skipped int
}

// Decode parses b as a DNS message. It never panics; every failure is one of
// the package errors, possibly wrapped with detail.
func Decode(b []byte) (*Message, error) {
	if len(b) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedHeader, len(b))
	}

	flags := binary.BigEndian.Uint16(b[2:])
	qdcount := int(binary.BigEndian.Uint16(b[4:]))
	ancount := int(binary.BigEndian.Uint16(b[6:]))

	msg := &Message{
		ID:       binary.BigEndian.Uint16(b[0:]),
		Response: flags&flagQR != 0,
		Rcode:    int(flags & 0xF),
	}

	off := headerLen
	for i := 0; i < qdcount; i++ {
		name, next, err := unpackName(b, off)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		if next+questionLen > len(b) {
			return nil, fmt.Errorf("%w: question %d", ErrTruncatedRecord, i)
		}

		msg.Questions = append(msg.Questions, Question{
			Name:  name,
			Type:  binary.BigEndian.Uint16(b[next:]),
			Class: binary.BigEndian.Uint16(b[next+2:]),
		})
		off = next + questionLen
	}

	for i := 0; i < ancount; i++ {
		name, next, err := unpackName(b, off)
		if err != nil {
			return nil, fmt.Errorf("answer %d: %w", i, err)
		}
		if next+rrHeaderLen > len(b) {
			return nil, fmt.Errorf("%w: answer %d header", ErrTruncatedRecord, i)
		}

		rrtype := binary.BigEndian.Uint16(b[next:])
		ttl := binary.BigEndian.Uint32(b[next+4:])
		rdlength := int(binary.BigEndian.Uint16(b[next+8:]))

		start := next + rrHeaderLen
		end := start + rdlength
		if end > len(b) {
			return nil, fmt.Errorf("%w: answer %d rdata", ErrTruncatedRecord, i)
		}
		off = end

		addr, ok := parseAddr(rrtype, b[start:end])
		if !ok {
			if rrtype == dns.TypeA || rrtype == dns.TypeAAAA {
				log.Debugf("Discarding %s record for %s with rdlength %d", dns.TypeToString[rrtype], name, rdlength)
			}
			msg.Skipped++
			continue
		}

		msg.Answers = append(msg.Answers, Answer{
			Name: name,
			Type: rrtype,
			TTL:  ttl,
			Addr: addr,
		})
	}

	return msg, nil
}

func unpackName(b []byte, off int) (string, int, error) {
	if off >= len(b) {
		return "", off, ErrTruncatedRecord
	}
	name, next, err := dns.UnpackDomainName(b, off)
	if err != nil {
		return "", off, fmt.Errorf("%w: %v", ErrMalformedName, err)
	}
	return name, next, nil
}

func parseAddr(rrtype uint16, rdata []byte) (netip.Addr, bool) {
	switch {
	case rrtype == dns.TypeA && len(rdata) == 4:
		return netip.AddrFrom4([4]byte(rdata)), true
	case rrtype == dns.TypeAAAA && len(rdata) == 16:
		return netip.AddrFrom16([16]byte(rdata)), true
	default:
		return netip.Addr{}, false
	}
}

// AddressQuestion returns the first question asking for A or AAAA records.
func (m *Message) AddressQuestion() (Question, error) {
	for _, q := range m.Questions {
		if q.Type == dns.TypeA || q.Type == dns.TypeAAAA {
			return q, nil
		}
	}
	return Question{}, ErrUnsupportedQueryType
}

// Addrs returns the addresses of all A and AAAA answers, regardless of owner name.
func (m *Message) Addrs() []netip.Addr {
	addrs := make([]netip.Addr, 0, len(m.Answers))
	for _, a := range m.Answers {
		addrs = append(addrs, a.Addr)
	}
	return addrs
}

// ErrorKind classifies a decode error for logging and metrics labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedHeader):
		return "header"
	case errors.Is(err, ErrMalformedName):
		return "name"
	case errors.Is(err, ErrTruncatedRecord):
		return "truncated"
	case errors.Is(err, ErrUnsupportedQueryType):
		return "qtype"
	default:
		return "other"
	}
}

// String renders the question as "name TYPE".
func (q Question) String() string {
	if s, ok := dns.TypeToString[q.Type]; ok {
		return q.Name + " " + s
	}
	return fmt.Sprintf("%s TYPE%d", q.Name, q.Type)
}
