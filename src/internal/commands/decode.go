package commands

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/maksimkurb/keen-dnsset/src/internal/capture"
	"github.com/maksimkurb/keen-dnsset/src/internal/dispatch"
	"github.com/maksimkurb/keen-dnsset/src/internal/dnsmsg"
	"github.com/maksimkurb/keen-dnsset/src/internal/metrics"
	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/rules"
)

// DecodeCommand decodes a hex-encoded DNS message (or captured IPv4 packet)
// and prints the nft command it would produce, without running nft.
type DecodeCommand struct {
	fs      *flag.FlagSet
	ctx     *AppContext
	rules   *rules.RuleSet
	payload []byte

	rulesFile string
	packet    bool
	linkLayer string
}

func CreateDecodeCommand() *DecodeCommand {
	c := &DecodeCommand{
		fs: flag.NewFlagSet("decode", flag.ContinueOnError),
	}
	c.fs.StringVar(&c.rulesFile, "rules", "", "Rule file (overrides general.rules_file)")
	c.fs.BoolVar(&c.packet, "packet", false, "Input is a captured IPv4/UDP packet instead of a bare DNS message")
	c.fs.StringVar(&c.linkLayer, "link", "none", "Link layer of the packet: none or ethernet (with -packet)")
	return c
}

func (c *DecodeCommand) Name() string {
	return c.fs.Name()
}

func (c *DecodeCommand) Init(args []string, ctx *AppContext) error {
	c.ctx = ctx

	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if c.fs.NArg() == 0 {
		return errors.New("usage: decode [-rules <file>] [-packet [-link ethernet]] <hex>...")
	}

	data, err := parseHex(strings.Join(c.fs.Args(), ""))
	if err != nil {
		return err
	}

	if c.packet {
		linkLayer, err := capture.ParseLinkLayer(c.linkLayer)
		if err != nil {
			return err
		}
		if data, err = capture.ExtractDNSPayload(data, linkLayer); err != nil {
			return fmt.Errorf("failed to extract DNS payload: %w", err)
		}
	}
	c.payload = data

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

// parseHex accepts hex with optional whitespace, colons or a 0x prefix.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.NewReplacer(" ", "", "\n", "", "\t", "", ":", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}

func (c *DecodeCommand) Run() error {
	out := c.ctx.stdout()

	msg, err := dnsmsg.Decode(c.payload)
	if err != nil {
		return fmt.Errorf("failed to decode DNS message: %w", err)
	}

	fmt.Fprintf(out, "ID: %d, response: %v, rcode: %d\n", msg.ID, msg.Response, msg.Rcode)
	for _, q := range msg.Questions {
		fmt.Fprintf(out, "Question: %s\n", q)
	}
	for _, a := range msg.Answers {
		fmt.Fprintf(out, "Answer:   %s %d %s\n", a.Name, a.TTL, a.Addr)
	}
	if msg.Skipped > 0 {
		fmt.Fprintf(out, "Skipped:  %d record(s)\n", msg.Skipped)
	}

	exec := &nft.DryRunExecutor{}
	res := dispatch.New(metrics.TransportCLI, c.rules, exec, nil).HandleMessage(context.Background(), msg)

	if res.Question == "" {
		fmt.Fprintln(out, "No A/AAAA question, nothing to do")
		return nil
	}
	if len(res.Targets) == 0 {
		fmt.Fprintf(out, "No rules match %s\n", res.Question)
		return nil
	}
	if !res.Executed {
		fmt.Fprintf(out, "%s matches %d set(s) but the response carries no usable addresses\n", res.Question, len(res.Targets))
		return nil
	}
	for _, cmd := range exec.Commands {
		fmt.Fprintf(out, "nft %q\n", cmd)
	}
	return nil
}
