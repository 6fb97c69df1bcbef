package commands

import (
	"errors"
	"flag"
	"fmt"

	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/rules"
)

// MatchCommand prints the sets each given domain name would be added to.
type MatchCommand struct {
	fs      *flag.FlagSet
	ctx     *AppContext
	rules   *rules.RuleSet
	domains []string

	rulesFile string
}

func CreateMatchCommand() *MatchCommand {
	c := &MatchCommand{
		fs: flag.NewFlagSet("match", flag.ContinueOnError),
	}
	c.fs.StringVar(&c.rulesFile, "rules", "", "Rule file (overrides general.rules_file)")
	return c
}

func (c *MatchCommand) Name() string {
	return c.fs.Name()
}

func (c *MatchCommand) Init(args []string, ctx *AppContext) error {
	c.ctx = ctx

	if err := c.fs.Parse(args); err != nil {
		return err
	}
	c.domains = c.fs.Args()
	if len(c.domains) == 0 {
		return errors.New("usage: match [-rules <file>] <domain>...")
	}

	cfg, err := loadConfigOrFail(ctx)
	if err != nil {
		return err
	}
	if err := overrideRulesFile(cfg, c.rulesFile); err != nil {
		return err
	}

	c.rules, err = loadRulesOrFail(cfg)
	return err
}

func (c *MatchCommand) Run() error {
	out := c.ctx.stdout()

	for _, domain := range c.domains {
		targets := c.rules.Match(domain)
		if len(targets) == 0 {
			fmt.Fprintf(out, "%s: no match\n", domain)
			continue
		}

		fmt.Fprintf(out, "%s:\n", domain)
		seen := make(map[*nft.Target]bool, len(targets))
		for _, t := range targets {
			if seen[t] {
				continue
			}
			seen[t] = true
			fmt.Fprintf(out, "  - %s\n", describeTarget(t))
		}
	}
	return nil
}
