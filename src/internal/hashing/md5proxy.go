package hashing

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
)

// ChecksumProvider is implemented by anything that can report a checksum of the data it has seen.
type ChecksumProvider interface {
	GetChecksum() string
}

// ChecksumReaderProxy is a proxy that calculates the MD5 checksum of data as it's read.
type ChecksumReaderProxy struct {
	reader   io.Reader
	checksum hash.Hash
	read     int64
}

// NewMD5ReaderProxy creates a new instance of ChecksumReaderProxy.
func NewMD5ReaderProxy(reader io.Reader) *ChecksumReaderProxy {
	return &ChecksumReaderProxy{
		reader:   reader,
		checksum: md5.New(),
	}
}

// Read reads data from the underlying reader and feeds it into the checksum.
func (p *ChecksumReaderProxy) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if n > 0 {
		// hash.Hash.Write never returns an error
		p.checksum.Write(buf[:n])
		p.read += int64(n)
	}
	return n, err
}

// BytesRead returns the number of bytes passed through the proxy so far.
func (p *ChecksumReaderProxy) BytesRead() int64 {
	return p.read
}

// GetChecksum returns the MD5 checksum of everything read so far as a hex string.
func (p *ChecksumReaderProxy) GetChecksum() string {
	return hex.EncodeToString(p.checksum.Sum(nil))
}
