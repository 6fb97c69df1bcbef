// Package dispatch turns decoded DNS responses into nftables set updates.
//
// For every message the dispatcher takes the first A/AAAA question, looks
// its name up in the rule set, pairs every matching target with every A/AAAA
// answer address and submits the resulting command to an executor exactly
// once. Nothing that happens to a single message is fatal to the caller.
package dispatch

import (
	"context"
	"time"

	"github.com/maksimkurb/keen-dnsset/src/internal/dnsmsg"
	"github.com/maksimkurb/keen-dnsset/src/internal/log"
	"github.com/maksimkurb/keen-dnsset/src/internal/metrics"
	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/rules"
)

// Dispatcher processes messages for one worker. It is bound to that worker's
// executor and must not be shared between goroutines; the rule set it reads
// may be shared.
type Dispatcher struct {
	transport string
	rules     *rules.RuleSet
	exec      nft.Executor
	metrics   *metrics.Metrics
}

// Result describes what happened to one message.
type Result struct {
	// Question is the name that was matched; empty if the message had no A/AAAA question.
	Question string
	Targets  []*nft.Target
	Command  *nft.Command
	// Executed is true if the command was handed to the executor.
	Executed bool
	// Err is the decode or execution error, if any.
	Err error
}

// New creates a dispatcher. transport labels metrics and log lines; m may be nil.
func New(transport string, rs *rules.RuleSet, exec nft.Executor, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		rules:     rs,
		exec:      exec,
		metrics:   m,
	}
}

// HandlePayload decodes a raw DNS message and dispatches it.
// Decode failures are logged at debug level and reported in the result.
func (d *Dispatcher) HandlePayload(ctx context.Context, payload []byte) Result {
	msg, err := dnsmsg.Decode(payload)
	if err != nil {
		log.Debugf("[%s] Dropping undecodable DNS message (%d bytes): %v", d.transport, len(payload), err)
		d.metrics.DecodeError(d.transport, dnsmsg.ErrorKind(err))
		return Result{Err: err}
	}
	return d.HandleMessage(ctx, msg)
}

// HandleMessage matches a decoded message and executes the resulting command.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg *dnsmsg.Message) Result {
	q, err := msg.AddressQuestion()
	if err != nil {
		log.Tracef("[%s] Ignoring message %d: %v", d.transport, msg.ID, err)
		return Result{}
	}

	res := Result{Question: q.Name}
	res.Targets = d.rules.Match(q.Name)
	if len(res.Targets) == 0 {
		log.Tracef("[%s] No rules for %s", d.transport, q.Name)
		return res
	}
	d.metrics.Match()

	cmd := nft.NewCommand()
	for _, addr := range msg.Addrs() {
		for _, target := range res.Targets {
			cmd.AddElement(target, addr)
		}
	}
	res.Command = cmd

	if cmd.IsEmpty() {
		log.Tracef("[%s] %s matched %d set(s) but carried no usable addresses", d.transport, q, len(res.Targets))
		return res
	}

	start := time.Now()
	res.Err = d.exec.Execute(ctx, cmd)
	res.Executed = true
	d.metrics.Command(cmd.Len(), time.Since(start), res.Err)

	if res.Err != nil {
		log.Warnf("[%s] Failed to update sets for %s: %v", d.transport, q.Name, res.Err)
		return res
	}
	log.Debugf("[%s] %s: %s", d.transport, q.Name, cmd)
	return res
}
