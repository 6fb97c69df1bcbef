// Package config handles configuration file parsing and validation for keen-dnsset.
//
// The configuration is a TOML file with four sections:
//   - [general]: rule file location and the set update executor
//   - [capture]: NFLOG group, link layer and the optional iptables capture rule
//   - [dnstap]: Frame Streams unix socket path, mode and limits
//   - [api]: HTTP status and metrics listener
//
// Every setting has a default, so a missing file at the default location is
// not an error. Values from the file override the defaults field by field.
//
// Loading and validating a configuration file:
//
//	cfg, err := config.LoadConfig("/opt/etc/keen-dnsset/keen-dnsset.conf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.ValidateConfig(); err != nil {
//	    log.Fatal(err)
//	}
//
// Validation collects every problem into ValidationErrors instead of
// stopping at the first one.
package config
