package commands

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maksimkurb/keen-dnsset/src/internal/api"
	"github.com/maksimkurb/keen-dnsset/src/internal/capture"
	"github.com/maksimkurb/keen-dnsset/src/internal/config"
	"github.com/maksimkurb/keen-dnsset/src/internal/dnstap"
	"github.com/maksimkurb/keen-dnsset/src/internal/log"
	"github.com/maksimkurb/keen-dnsset/src/internal/metrics"
	"github.com/maksimkurb/keen-dnsset/src/internal/nft"
	"github.com/maksimkurb/keen-dnsset/src/internal/rules"
)

func CreateServiceCommand() *ServiceCommand {
	sc := &ServiceCommand{
		fs: flag.NewFlagSet("service", flag.ContinueOnError),
	}

	sc.fs.StringVar(&sc.rulesFile, "rules", "", "Rule file (overrides general.rules_file)")
	sc.fs.IntVar(&sc.group, "group", -1, "NFLOG group to capture from (overrides capture.group and enables capture)")
	sc.fs.StringVar(&sc.socketPath, "socket", "", "dnstap socket path (overrides dnstap.socket_path and enables dnstap)")

	return sc
}

type ServiceCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
	ctx *AppContext

	rulesFile  string
	group      int
	socketPath string

	rules   *rules.RuleSet
	metrics *metrics.Metrics
	factory nft.ExecutorFactory

	installer *capture.RuleInstaller
	apiServer *api.Server
	apiRunner *RestartableRunner
}

func (s *ServiceCommand) Name() string {
	return s.fs.Name()
}

func (s *ServiceCommand) Init(args []string, ctx *AppContext) error {
	s.ctx = ctx

	if err := s.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfigOrFail(ctx)
	if err != nil {
		return err
	}
	s.cfg = cfg

	if err := s.applyOverrides(); err != nil {
		return err
	}
	if err := validateConfigOrFail(cfg); err != nil {
		return err
	}

	if s.rules, err = loadRulesOrFail(cfg); err != nil {
		return err
	}

	s.metrics = metrics.New()
	s.metrics.RuleSet(s.rules.Len(), s.rules.TargetCount())
	s.factory = newExecutorFactory(cfg)

	if cfg.General.Executor == config.ExecutorNft {
		if err := nft.NewCLIExecutor(cfg.General.NftPath).CheckExecutable(); err != nil {
			log.Warnf("%v", err)
		}
	}

	return nil
}

func (s *ServiceCommand) applyOverrides() error {
	if err := overrideRulesFile(s.cfg, s.rulesFile); err != nil {
		return err
	}
	if s.group >= 0 {
		if s.group > 65535 {
			return fmt.Errorf("invalid NFLOG group %d: must be between 0 and 65535", s.group)
		}
		s.cfg.Capture.Group = uint16(s.group)
		s.cfg.Capture.Enable = true
	}
	if s.socketPath != "" {
		s.cfg.Dnstap.SocketPath = s.socketPath
		s.cfg.Dnstap.Enable = true
	}
	return nil
}

func (s *ServiceCommand) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return s.run(ctx)
}

// run starts the enabled transports and blocks until ctx is cancelled or a
// transport fails. Scoped resources are released before it returns.
func (s *ServiceCommand) run(ctx context.Context) error {
	log.Infof("Starting keen-dnsset service (executor: %s)...", describeExecutor(s.cfg))

	if s.cfg.CaptureEnabled() && s.cfg.Capture.InstallRule {
		if err := s.installCaptureRule(); err != nil {
			return err
		}
	}
	defer s.removeCaptureRule()

	var tap *dnstap.Server
	if s.cfg.DnstapEnabled() {
		mode, err := s.cfg.Dnstap.FileMode()
		if err != nil {
			return err
		}
		tap, err = dnstap.Listen(s.cfg.Dnstap.SocketPath, dnstap.Options{
			Mode:             mode,
			HandshakeTimeout: s.cfg.Dnstap.HandshakeTimeout(),
			MaxFrameSize:     s.cfg.Dnstap.MaxFrameSize,
		}, s.rules, s.factory, s.metrics)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if s.cfg.CaptureEnabled() {
		linkLayer, err := capture.ParseLinkLayer(s.cfg.Capture.LinkLayer)
		if err != nil {
			if tap != nil {
				_ = tap.Close()
			}
			return err
		}
		listener := capture.NewListener(capture.Options{
			Group:     s.cfg.Capture.Group,
			LinkLayer: linkLayer,
		}, s.rules, s.factory, s.metrics)
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}

	if tap != nil {
		g.Go(func() error {
			return tap.Serve(gctx)
		})
	}

	if s.cfg.APIEnabled() {
		if err := s.startAPIServer(gctx); err != nil {
			log.Errorf("Failed to start API server: %v", err)
		}
	}

	log.Infof("Service started successfully")

	err := g.Wait()
	s.shutdown()
	if err != nil {
		return err
	}
	log.Infof("Service stopped successfully")
	return nil
}

func (s *ServiceCommand) installCaptureRule() error {
	if err := capture.CheckInterfaces(s.cfg.Capture.Interfaces); err != nil {
		return err
	}

	installer, err := capture.NewRuleInstaller(s.captureRuleOptions())
	if err != nil {
		return err
	}
	if err := installer.Install(); err != nil {
		return err
	}
	s.installer = installer
	return nil
}

func (s *ServiceCommand) captureRuleOptions() capture.RuleOptions {
	return capture.RuleOptions{
		Table:      s.cfg.Capture.Table,
		Chain:      s.cfg.Capture.Chain,
		Rule:       s.cfg.Capture.Rule,
		Interfaces: s.cfg.Capture.Interfaces,
		Group:      s.cfg.Capture.Group,
	}
}

func (s *ServiceCommand) removeCaptureRule() {
	if s.installer == nil {
		return
	}
	if err := s.installer.Remove(); err != nil {
		log.Errorf("Failed to remove capture rule: %v", err)
	}
	s.installer = nil
}

// startAPIServer runs the status API under a RestartableRunner so a crash
// there never takes the transports down.
func (s *ServiceCommand) startAPIServer(ctx context.Context) error {
	handler := api.NewHandler(api.Options{
		Rules:      s.rules,
		Version:    s.ctx.Version,
		Executor:   describeExecutor(s.cfg),
		Transports: s.transports(),
	})
	s.apiServer = api.NewServer(s.cfg.API.ListenAddr, api.NewRouter(handler, s.metrics.Registry()))

	s.apiRunner = NewRestartableRunner(RunnerConfig{
		Name:           "API server",
		RestartBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
	}, func(runCtx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- s.apiServer.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-runCtx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.apiServer.Stop(stopCtx); err != nil {
				log.Errorf("Error during API server shutdown: %v", err)
			}
			return <-errCh
		}
	})

	return s.apiRunner.Start(ctx)
}

func (s *ServiceCommand) transports() []api.TransportInfo {
	transports := []api.TransportInfo{
		{Name: metrics.TransportCapture, Enabled: s.cfg.CaptureEnabled()},
		{Name: metrics.TransportDnstap, Enabled: s.cfg.DnstapEnabled()},
	}
	if s.cfg.CaptureEnabled() {
		transports[0].Source = fmt.Sprintf("group %d", s.cfg.Capture.Group)
	}
	if s.cfg.DnstapEnabled() {
		transports[1].Source = s.cfg.Dnstap.SocketPath
	}
	return transports
}

func (s *ServiceCommand) shutdown() {
	log.Infof("Shutting down keen-dnsset service...")

	if s.apiRunner != nil {
		if err := s.apiRunner.Stop(); err != nil {
			log.Errorf("Failed to stop API server: %v", err)
		}
	}

	s.removeCaptureRule()
}
