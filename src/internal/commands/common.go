package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/maksimkurb/keen-dnsset/src/internal/api"
	"github.com/maksimkurb/keen-dnsset/src/internal/config"
	"github.com/maksimkurb/keen-dnsset/src/internal/log"
	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/rules"
)

type Runner interface {
	Init(args []string, globalArgs *AppContext) error
	Run() error
	Name() string
}

type AppContext struct {
	ConfigPath string
	// ConfigExplicit is set when the config path was given on the command
	// line; a missing file is then an error instead of falling back to defaults.
	ConfigExplicit bool
	Verbose        bool
	Version        api.VersionInfo
	// Stdout receives command output; os.Stdout if nil.
	Stdout io.Writer
}

func (c *AppContext) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

// loadConfigOrFail loads the configuration file, falling back to defaults
// when the default path does not exist.
func loadConfigOrFail(ctx *AppContext) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(ctx.ConfigPath, ctx.ConfigExplicit)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}
	return cfg, nil
}

// overrideRulesFile points the config at a rule file given on the command
// line. Relative paths are resolved against the working directory.
func overrideRulesFile(cfg *config.Config, path string) error {
	if path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve rule file path: %v", err)
	}
	cfg.General.RulesFile = abs
	return nil
}

func validateConfigOrFail(cfg *config.Config) error {
	if err := cfg.ValidateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %v", err)
	}
	return nil
}

func loadRulesOrFail(cfg *config.Config) (*rules.RuleSet, error) {
	rs, err := rules.LoadFile(cfg.GetAbsRulesFile())
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %d rule(s) for %d set(s) from %s", rs.Len(), rs.TargetCount(), rs.Path())
	return rs, nil
}

// newExecutorFactory selects the set update backend configured in [general].
func newExecutorFactory(cfg *config.Config) nft.ExecutorFactory {
	if cfg.General.Executor == config.ExecutorNetlink {
		return nft.NetlinkExecutorFactory()
	}
	return nft.CLIExecutorFactory(cfg.General.NftPath)
}

func describeExecutor(cfg *config.Config) string {
	if cfg.General.Executor == config.ExecutorNetlink {
		return "nftables netlink"
	}
	return fmt.Sprintf("nft command (%s)", cfg.General.NftPath)
}

func describeTarget(t *nft.Target) string {
	s := fmt.Sprintf("%s (%s", t, t.ElemType)
	if t.Timeout != "" {
		s += ", timeout " + t.Timeout
	}
	return s + ")"
}
