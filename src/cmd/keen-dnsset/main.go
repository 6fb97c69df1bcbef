package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/maksimkurb/keen-dnsset/src/internal/api"
	"github.com/maksimkurb/keen-dnsset/src/internal/commands"
	"github.com/maksimkurb/keen-dnsset/src/internal/log"
)

var (
	version = "dev"
	commit  = "n/a"
	date    = "n/a"
)

const defaultConfigPath = "/opt/etc/keen-dnsset/keen-dnsset.conf"

func main() {
	ctx := &commands.AppContext{
		Version: api.VersionInfo{Version: version, Commit: commit, Date: date},
	}

	var trace bool
	flag.StringVar(&ctx.ConfigPath, "config", defaultConfigPath, "Path to configuration file")
	flag.BoolVar(&ctx.Verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&trace, "trace", false, "Enable trace logging (every ignored packet)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Keenetic DNS-to-nftables set updater\n")
		fmt.Fprintf(os.Stderr, "Version: %s (Commit: %s, Date: %s)\n\n", version, commit, date)
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  service [-rules f] [-group n] [-socket p]   Capture DNS responses and update nftables sets\n")
		fmt.Fprintf(os.Stderr, "  check [-rules f] [-iptables]                Validate configuration and rule file\n")
		fmt.Fprintf(os.Stderr, "  match [-rules f] <domain>...                Show the sets a domain would be added to\n")
		fmt.Fprintf(os.Stderr, "  decode [-rules f] [-packet] <hex>           Decode a DNS message and print the nft command\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			ctx.ConfigExplicit = true
		}
	})

	if ctx.Verbose {
		log.SetVerbose(true)
	}
	if trace {
		log.SetTrace(true)
	}

	cmds := []commands.Runner{
		commands.CreateServiceCommand(),
		commands.CreateCheckCommand(),
		commands.CreateMatchCommand(),
		commands.CreateDecodeCommand(),
	}

	args := flag.Args()

	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	subcommand := args[0]
	for _, cmd := range cmds {
		if cmd.Name() == subcommand {
			if err := cmd.Init(args[1:], ctx); err != nil {
				log.Fatalf("Failed to initialize command: %v", err)
			}

			if err := cmd.Run(); err != nil {
				log.Fatalf("Failed to run command: %v", err)
			}

			os.Exit(0)
		}
	}

	log.Fatalf("Unknown subcommand: %s", subcommand)
}
