package rules

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/maksimkurb/keen-dnsset/src/internal/errors"
	"github.com/maksimkurb/keen-dnsset/src/internal/hashing"
	"github.com/maksimkurb/keen-dnsset/src/internal/log"
	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/utils"
)

// RuleSet maps domain suffixes to the nftables sets that receive their addresses.
//
// Every rule line contributes exactly one index entry keyed by its literal
// (normalised) pattern. Suffix expansion happens at lookup time: Match tries
// the empty key, each label-boundary suffix and the full name.
//
// A RuleSet is built once and is read-only afterwards, so it can be shared
// by any number of goroutines without locking.
type RuleSet struct {
	// targets holds one shared instance per distinct descriptor.
	targets map[nft.Key]*nft.Target
	// order keeps distinct targets in first-seen order.
	order []*nft.Target
	// suffixes maps a normalised pattern to targets in rule-file order.
	suffixes map[string][]*nft.Target
	rules    int

	checksum string
	path     string
}

// New creates an empty rule set.
func New() *RuleSet {
	return &RuleSet{
		targets:  make(map[nft.Key]*nft.Target),
		suffixes: make(map[string][]*nft.Target),
	}
}

// LoadFile reads the rule file at path. Any malformed line fails the whole load.
func LoadFile(path string) (*RuleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewRulesError(fmt.Sprintf("failed to open rule file %s", path), err)
	}
	defer utils.CloseOrWarn(file)

	proxy := hashing.NewMD5ReaderProxy(file)
	rs, err := Parse(proxy)
	if err != nil {
		return nil, apperrors.NewRulesError(fmt.Sprintf("failed to load rule file %s", path), err)
	}
	rs.checksum = proxy.GetChecksum()
	rs.path = path

	log.Debugf("Loaded %d rules (%d sets) from %s, md5=%s", rs.Len(), rs.TargetCount(), path, rs.checksum)
	return rs, nil
}

// Parse reads rules from r. Blank lines and lines starting with "#" or "//" are skipped.
func Parse(r io.Reader) (*RuleSet, error) {
	rs := New()
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		if err := rs.Add(line); err != nil {
			return nil, &LineError{Line: lineNo, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return rs, nil
}

// Add parses a single rule line "<domain>,<family>,<table>,<set>,<elem-type>[,<timeout>]"
// and indexes it.
func (rs *RuleSet) Add(line string) error {
	pattern, target, err := parseRule(line)
	if err != nil {
		return err
	}

	shared := rs.intern(target)
	rs.suffixes[pattern] = append(rs.suffixes[pattern], shared)
	rs.rules++
	return nil
}

// intern returns the shared instance for t's descriptor, registering t if it is new.
func (rs *RuleSet) intern(t *nft.Target) *nft.Target {
	key := t.Key()
	if existing, ok := rs.targets[key]; ok {
		return existing
	}
	rs.targets[key] = t
	rs.order = append(rs.order, t)
	return t
}

// Match returns every target whose pattern is the empty string, a
// label-boundary suffix of name, or name itself. Matching is ASCII
// case-insensitive and ignores a trailing dot. The result is nil if nothing
// matches.
func (rs *RuleSet) Match(name string) []*nft.Target {
	name = utils.NormalizeDomain(name)

	var matched []*nft.Target
	matched = append(matched, rs.suffixes[""]...)
	utils.ForEachSuffix(name, func(suffix string) bool {
		matched = append(matched, rs.suffixes[suffix]...)
		return true
	})
	if name != "" {
		matched = append(matched, rs.suffixes[name]...)
	}

	return matched
}

// Len returns the number of rules loaded.
func (rs *RuleSet) Len() int {
	return rs.rules
}

// TargetCount returns the number of distinct target descriptors.
func (rs *RuleSet) TargetCount() int {
	return len(rs.order)
}

// Targets returns the distinct targets in first-seen order.
func (rs *RuleSet) Targets() []*nft.Target {
	return rs.order
}

// Patterns returns the number of distinct domain patterns.
func (rs *RuleSet) Patterns() int {
	return len(rs.suffixes)
}

// Checksum returns the MD5 of the rule file, or an empty string when the
// rule set was not loaded from a file.
func (rs *RuleSet) Checksum() string {
	return rs.checksum
}

// Path returns the file the rule set was loaded from.
func (rs *RuleSet) Path() string {
	return rs.path
}
