// Package dnsmsg decodes DNS response messages received from untrusted sources.
//
// The decoder reads the header and question section, then walks the answer
// section record by record. Only A and AAAA answers are interpreted; all other
// record types are skipped using their RDLENGTH. Names are unpacked with
// github.com/miekg/dns, which bounds compression pointer chains and total
// name length. Every offset is checked against the buffer before it is read,
// so a hostile section count fails with ErrTruncatedRecord instead of causing
// a large allocation or a panic.
//
// Authority and additional sections are never parsed.
package dnsmsg
