package commands

import (
	"flag"
	"fmt"
	"strings"

	"github.com/maksimkurb/keen-dnsset/src/internal/capture"
	"github.com/maksimkurb/keen-dnsset/src/internal/config"
	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
)

// CheckCommand validates the configuration and rule file and prints a summary.
type CheckCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	cfg *config.Config

	rulesFile string
	iptables  bool
}

func CreateCheckCommand() *CheckCommand {
	c := &CheckCommand{
		fs: flag.NewFlagSet("check", flag.ContinueOnError),
	}
	c.fs.StringVar(&c.rulesFile, "rules", "", "Rule file (overrides general.rules_file)")
	c.fs.BoolVar(&c.iptables, "iptables", false, "Also check whether the capture rule is installed")
	return c
}

func (c *CheckCommand) Name() string {
	return c.fs.Name()
}

func (c *CheckCommand) Init(args []string, ctx *AppContext) error {
	c.ctx = ctx

	if err := c.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfigOrFail(ctx)
	if err != nil {
		return err
	}
	if err := overrideRulesFile(cfg, c.rulesFile); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func (c *CheckCommand) Run() error {
	out := c.ctx.stdout()

	fmt.Fprintf(out, "Configuration: %s\n", c.cfg.GetConfigFilePath())
	if err := validateConfigOrFail(c.cfg); err != nil {
		return err
	}

	rs, err := loadRulesOrFail(c.cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Rule file:     %s\n", rs.Path())
	fmt.Fprintf(out, "MD5:           %s\n", rs.Checksum())
	fmt.Fprintf(out, "Rules:         %d\n", rs.Len())
	fmt.Fprintf(out, "Patterns:      %d\n", rs.Patterns())
	fmt.Fprintf(out, "Sets:          %d\n", rs.TargetCount())
	for _, t := range rs.Targets() {
		fmt.Fprintf(out, "  - %s\n", describeTarget(t))
	}

	fmt.Fprintf(out, "Executor:      %s\n", describeExecutor(c.cfg))
	if c.cfg.General.Executor == config.ExecutorNft {
		if err := nft.NewCLIExecutor(c.cfg.General.NftPath).CheckExecutable(); err != nil {
			return err
		}
	}

	if c.cfg.CaptureEnabled() {
		fmt.Fprintf(out, "Capture:       NFLOG group %d (link layer %s)\n", c.cfg.Capture.Group, c.cfg.Capture.LinkLayer)
		if c.cfg.Capture.InstallRule {
			if err := c.checkCaptureRule(); err != nil {
				return err
			}
		}
	}
	if c.cfg.DnstapEnabled() {
		fmt.Fprintf(out, "Dnstap:        %s (mode %s)\n", c.cfg.Dnstap.SocketPath, c.cfg.Dnstap.SocketMode)
	}
	if c.cfg.APIEnabled() {
		fmt.Fprintf(out, "API:           http://%s\n", c.cfg.API.ListenAddr)
	}

	fmt.Fprintln(out, "OK")
	return nil
}

func (c *CheckCommand) checkCaptureRule() error {
	out := c.ctx.stdout()
	opts := capture.RuleOptions{
		Table:      c.cfg.Capture.Table,
		Chain:      c.cfg.Capture.Chain,
		Rule:       c.cfg.Capture.Rule,
		Interfaces: c.cfg.Capture.Interfaces,
		Group:      c.cfg.Capture.Group,
	}

	if err := capture.CheckInterfaces(opts.Interfaces); err != nil {
		return err
	}

	if !c.iptables {
		for _, rule := range capture.BuildRules(opts) {
			fmt.Fprintf(out, "  iptables -t %s -A %s %s\n", opts.Table, opts.Chain, strings.Join(rule, " "))
		}
		return nil
	}

	installer, err := capture.NewRuleInstaller(opts)
	if err != nil {
		return err
	}
	present, err := installer.Check()
	if err != nil {
		return err
	}
	for i, rule := range installer.Rules() {
		state := "missing"
		if present[i] {
			state = "present"
		}
		fmt.Fprintf(out, "  [%s] iptables -t %s -A %s %s\n", state, opts.Table, opts.Chain, strings.Join(rule, " "))
	}
	return nil
}
