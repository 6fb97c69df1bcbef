package capture

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coreos/go-iptables/iptables"
	"github.com/valyala/fasttemplate"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	apperrors "github.com/maksimkurb/keen-dnsset/src/internal/errors"
	"github.com/maksimkurb/keen-dnsset/src/internal/log"
)

// Template placeholders accepted in capture rules.
const (
	TmplGroup     = "group"
	TmplInterface = "interface"
)

// iptablesRunner is the subset of *iptables.IPTables used by RuleInstaller.
type iptablesRunner interface {
	Exists(table, chain string, rulespec ...string) (bool, error)
	AppendUnique(table, chain string, rulespec ...string) error
	DeleteIfExists(table, chain string, rulespec ...string) error
}

// RuleOptions describes the iptables rule(s) that send DNS responses to NFLOG.
type RuleOptions struct {
	Table      string
	Chain      string
	Rule       []string
	Interfaces []string
	Group      uint16
}

// RuleInstaller installs the NFLOG capture rules and removes them again on shutdown.
type RuleInstaller struct {
	ipt   iptablesRunner
	table string
	chain string
	rules [][]string
}

// NewRuleInstaller creates an installer backed by the IPv4 iptables binary.
func NewRuleInstaller(opts RuleOptions) (*RuleInstaller, error) {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to initialize iptables", err)
	}
	return newRuleInstaller(ipt, opts), nil
}

func newRuleInstaller(ipt iptablesRunner, opts RuleOptions) *RuleInstaller {
	return &RuleInstaller{
		ipt:   ipt,
		table: opts.Table,
		chain: opts.Chain,
		rules: BuildRules(opts),
	}
}

// BuildRules renders the rule template. With no interfaces one rule is
// produced; otherwise one rule per interface, prefixed with "-i <name>"
// unless the template already references {{interface}}.
func BuildRules(opts RuleOptions) [][]string {
	if len(opts.Interfaces) == 0 {
		return [][]string{renderRule(opts.Rule, opts.Group, "")}
	}

	usesInterface := false
	for _, part := range opts.Rule {
		if strings.Contains(part, "{{"+TmplInterface+"}}") {
			usesInterface = true
			break
		}
	}

	rules := make([][]string, 0, len(opts.Interfaces))
	for _, iface := range opts.Interfaces {
		rule := renderRule(opts.Rule, opts.Group, iface)
		if !usesInterface {
			rule = append([]string{"-i", iface}, rule...)
		}
		rules = append(rules, rule)
	}
	return rules
}

func renderRule(template []string, group uint16, iface string) []string {
	vars := map[string]interface{}{
		TmplGroup:     strconv.FormatUint(uint64(group), 10),
		TmplInterface: iface,
	}

	rule := make([]string, len(template))
	for i, part := range template {
		if !strings.Contains(part, "{{") {
			rule[i] = part
			continue
		}
		rule[i] = fasttemplate.New(part, "{{", "}}").ExecuteString(vars)
	}
	return rule
}

// Rules returns the rendered rule specs.
func (r *RuleInstaller) Rules() [][]string {
	return r.rules
}

// Install appends every rule that is not present yet.
func (r *RuleInstaller) Install() error {
	for _, rule := range r.rules {
		log.Infof("Adding iptables rule: -t %s -A %s %s", r.table, r.chain, strings.Join(rule, " "))
		if err := r.ipt.AppendUnique(r.table, r.chain, rule...); err != nil {
			return apperrors.NewNetworkError(fmt.Sprintf("failed to add iptables rule to %s/%s", r.table, r.chain), err)
		}
	}
	return nil
}

// Remove deletes every installed rule. It tries all rules and returns the first error.
func (r *RuleInstaller) Remove() error {
	var firstErr error
	for _, rule := range r.rules {
		log.Infof("Deleting iptables rule: -t %s -D %s %s", r.table, r.chain, strings.Join(rule, " "))
		if err := r.ipt.DeleteIfExists(r.table, r.chain, rule...); err != nil {
			log.Warnf("Failed to delete iptables rule: %v", err)
			if firstErr == nil {
				firstErr = apperrors.NewNetworkError("failed to delete iptables rule", err)
			}
		}
	}
	return firstErr
}

// Check reports which rules are currently present.
func (r *RuleInstaller) Check() ([]bool, error) {
	present := make([]bool, len(r.rules))
	for i, rule := range r.rules {
		exists, err := r.ipt.Exists(r.table, r.chain, rule...)
		if err != nil {
			return nil, apperrors.NewNetworkError("failed to check iptables rule", err)
		}
		log.Debugf("Checking iptables rule presence [%v]: exists=%v", rule, exists)
		present[i] = exists
	}
	return present, nil
}

// CheckInterfaces verifies that every named interface exists. Interfaces
// that are down only produce a warning, since they may come up later.
func CheckInterfaces(names []string) error {
	for _, name := range names {
		link, err := netlink.LinkByName(name)
		if err != nil {
			return apperrors.NewNetworkError(fmt.Sprintf("interface %s not found", name), err)
		}
		if link.Attrs().RawFlags&unix.IFF_UP == 0 {
			log.Warnf("Interface %s is down", name)
		}
	}
	return nil
}
