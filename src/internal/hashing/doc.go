// Package hashing provides MD5 checksum calculation for streamed data.
//
// ChecksumReaderProxy wraps an io.Reader and hashes everything that passes
// through it, so a file can be parsed and fingerprinted in a single read:
//
//	f, _ := os.Open(path)
//	proxy := hashing.NewMD5ReaderProxy(f)
//	rs, _ := rules.Parse(proxy)
//	fmt.Printf("%d rules, MD5: %s\n", rs.Len(), proxy.GetChecksum())
//
// The rule loader uses it to report which revision of the rule file is
// active in the check command and in the status API.
package hashing
