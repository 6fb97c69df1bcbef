package config

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"time"

	"github.com/maksimkurb/keen-dnsset/src/internal/utils"
)

const (
	ExecutorNft     = "nft"
	ExecutorNetlink = "netlink"

	LinkLayerNone     = "none"
	LinkLayerEthernet = "ethernet"
)

type Config struct {
	// General holds the rule file and executor settings.
	General *GeneralConfig `toml:"general"`
	// Capture configures the NFLOG capture transport.
	Capture *CaptureConfig `toml:"capture"`
	// Dnstap configures the dnstap Frame Streams socket transport.
	Dnstap *DnstapConfig `toml:"dnstap"`
	// API configures the status and metrics HTTP server.
	API *APIConfig `toml:"api"`

	_absConfigFilePath string
}

type GeneralConfig struct {
	// RulesFile is the path to the rule file, relative to the config file directory.
	RulesFile string `toml:"rules_file" json:"rules_file" validate:"required"`
	// Executor selects how set updates are applied: "nft" runs the nft binary, "netlink" talks to nftables directly (default: nft).
	Executor string `toml:"executor" json:"executor" validate:"required,oneof=nft netlink"`
	// NftPath is the nft binary used by the "nft" executor (default: nft from $PATH).
	NftPath string `toml:"nft_path" json:"nft_path" validate:"required_if=Executor nft"`
}

type CaptureConfig struct {
	// Enable enables capturing DNS responses from an NFLOG group (default: true).
	Enable bool `toml:"enable" json:"enable"`
	// Group is the NFLOG group number to bind (default: 0).
	Group uint16 `toml:"group" json:"group"`
	// LinkLayer is what precedes the IP header in captured packets: "none" or "ethernet" (default: none).
	LinkLayer string `toml:"link_layer" json:"link_layer" validate:"oneof=none ethernet"`
	// InstallRule makes keen-dnsset add the NFLOG iptables rule on start and remove it on exit (default: false).
	InstallRule bool `toml:"install_rule" json:"install_rule"`
	// Table is the iptables table for the capture rule (default: mangle).
	Table string `toml:"table" json:"table" validate:"omitempty,iptables_name"`
	// Chain is the iptables chain for the capture rule (default: PREROUTING).
	Chain string `toml:"chain" json:"chain" validate:"omitempty,iptables_name"`
	// Interfaces limits the capture rule to these input interfaces; one rule per interface is installed.
	Interfaces []string `toml:"interfaces" json:"interfaces" validate:"dive,required,iptables_name"`
	// Rule is the iptables rule spec. Available variables: {{group}}, {{interface}}.
	Rule []string `toml:"rule" json:"rule"`
}

type DnstapConfig struct {
	// Enable enables the dnstap socket listener (default: false).
	Enable bool `toml:"enable" json:"enable"`
	// SocketPath is the unix socket the resolver connects to.
	SocketPath string `toml:"socket_path" json:"socket_path" validate:"required_if=Enable true"`
	// SocketMode is the octal file mode applied to the socket (default: "0660").
	SocketMode string `toml:"socket_mode" json:"socket_mode" validate:"socket_mode"`
	// HandshakeTimeoutSec bounds the Frame Streams handshake of a new connection (default: 5).
	HandshakeTimeoutSec int `toml:"handshake_timeout_sec" json:"handshake_timeout_sec" validate:"min=1,max=300"`
	// MaxFrameSize is the largest accepted frame in bytes (default: 131072).
	MaxFrameSize uint32 `toml:"max_frame_size" json:"max_frame_size" validate:"min=512,max=16777216"`
}

type APIConfig struct {
	// Enable enables the HTTP status API (default: false).
	Enable bool `toml:"enable" json:"enable"`
	// ListenAddr is the API listen address in host:port form (default: 127.0.0.1:15380).
	ListenAddr string `toml:"listen_addr" json:"listen_addr" validate:"required_if=Enable true,hostport_or_empty"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		General: &GeneralConfig{
			RulesFile: "rules.conf",
			Executor:  ExecutorNft,
			NftPath:   "nft",
		},
		Capture: &CaptureConfig{
			Enable:    true,
			Group:     0,
			LinkLayer: LinkLayerNone,
			Table:     "mangle",
			Chain:     "PREROUTING",
			Rule:      []string{"-p", "udp", "--sport", "53", "-j", "NFLOG", "--nflog-group", "{{group}}"},
		},
		Dnstap: &DnstapConfig{
			Enable:              false,
			SocketPath:          "/opt/var/run/keen-dnsset/dnstap.sock",
			SocketMode:          "0660",
			HandshakeTimeoutSec: 5,
			MaxFrameSize:        131072,
		},
		API: &APIConfig{
			Enable:     false,
			ListenAddr: "127.0.0.1:15380",
		},
	}
}

func (c *Config) GetConfigDir() string {
	return filepath.Dir(c._absConfigFilePath)
}

// GetConfigFilePath returns the absolute path the configuration was loaded from.
func (c *Config) GetConfigFilePath() string {
	return c._absConfigFilePath
}

// GetAbsRulesFile resolves the rule file path against the config directory.
func (c *Config) GetAbsRulesFile() string {
	return utils.GetAbsolutePath(c.General.RulesFile, c.GetConfigDir())
}

// FileMode parses SocketMode as an octal permission.
func (d *DnstapConfig) FileMode() (fs.FileMode, error) {
	mode, err := strconv.ParseUint(d.SocketMode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid socket mode %q: %v", d.SocketMode, err)
	}
	if mode > 0o777 {
		return 0, fmt.Errorf("invalid socket mode %q: only permission bits are allowed", d.SocketMode)
	}
	return fs.FileMode(mode), nil
}

func (d *DnstapConfig) HandshakeTimeout() time.Duration {
	return time.Duration(d.HandshakeTimeoutSec) * time.Second
}
