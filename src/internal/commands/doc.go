// Package commands implements the keen-dnsset subcommands.
//
// Every subcommand implements Runner: Init parses its flags and loads what
// it needs, Run does the work. Available commands:
//   - service: run the capture and dnstap transports until SIGINT/SIGTERM
//   - check: validate the configuration and the rule file
//   - match: show which sets a domain name would be added to
//   - decode: decode a hex DNS message and print the resulting nft command
package commands
