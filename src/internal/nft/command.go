package nft

import (
	"net/netip"
	"strings"
)

// Element is one address scheduled for insertion into a target set.
type Element struct {
	Target *Target
	Addr   netip.Addr
}

// Command accumulates "add element" directives for a single dispatch.
// It keeps both the nft script text and the structured elements, so text
// and native executors can consume the same command.
//
// A Command is not safe for concurrent use; it lives for one message.
type Command struct {
	sb       strings.Builder
	elements []Element
	seen     map[elementKey]struct{}
}

type elementKey struct {
	target *Target
	addr   netip.Addr
}

// NewCommand creates an empty command.
func NewCommand() *Command {
	return &Command{}
}

// AddElement appends "add element [<family> ]<table> <set> { <addr>[ timeout <t>] }; ".
// It returns false without writing anything if the address family does not
// match the target element type, or if the same address was already added
// to the same target.
func (c *Command) AddElement(target *Target, addr netip.Addr) bool {
	if target == nil || !addr.IsValid() || !target.ElemType.Accepts(addr) {
		return false
	}

	key := elementKey{target: target, addr: addr}
	if c.seen == nil {
		c.seen = make(map[elementKey]struct{})
	}
	if _, ok := c.seen[key]; ok {
		return false
	}
	c.seen[key] = struct{}{}

	c.sb.WriteString("add element ")
	if target.Family.IsSpecified() {
		c.sb.WriteString(target.Family.String())
		c.sb.WriteByte(' ')
	}
	c.sb.WriteString(target.Table)
	c.sb.WriteByte(' ')
	c.sb.WriteString(target.Set)
	c.sb.WriteString(" { ")
	c.sb.WriteString(addr.String())
	c.sb.WriteByte(' ')
	if target.Timeout != "" {
		c.sb.WriteString("timeout ")
		c.sb.WriteString(target.Timeout)
		c.sb.WriteByte(' ')
	}
	c.sb.WriteString("}; ")

	c.elements = append(c.elements, Element{Target: target, Addr: addr})
	return true
}

// IsEmpty reports whether no directive has been added.
func (c *Command) IsEmpty() bool {
	return len(c.elements) == 0
}

// Len returns the number of directives.
func (c *Command) Len() int {
	return len(c.elements)
}

// Elements returns the structured directives in insertion order.
func (c *Command) Elements() []Element {
	return c.elements
}

// String returns the nft script text.
func (c *Command) String() string {
	return c.sb.String()
}
