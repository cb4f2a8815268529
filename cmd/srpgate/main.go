// srpgate is a password authentication service built on SRP-6a. The server
// stores only verifiers; passwords never leave the client.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/fzdarsky/srpgate/internal/api"
	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/config"
	"github.com/fzdarsky/srpgate/internal/lifecycle"
	"github.com/fzdarsky/srpgate/internal/logging"
	tlspkg "github.com/fzdarsky/srpgate/internal/tls"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

var (
	// version is set by build flags
	version = "dev"
	// commit is set by build flags
	commit = "none"
)

func main() {
	configPath := flag.String("config", "/etc/srpgate/config.yaml", "path to configuration file")
	initOnly := flag.Bool("init", false, "generate the TLS certificate if missing, then exit")
	flag.Parse()

	// Initialize logger with default settings (will be updated from config)
	logger := logging.New(logging.LevelInfo, logging.FormatJSON)

	var err error
	if *initOnly {
		err = runInit(*configPath, logger)
	} else {
		err = run(*configPath, logger)
	}
	if err != nil {
		logger.Error("service failed", map[string]any{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(level, format), nil
}

func run(configPath string, logger *logging.Logger) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger.Info("srpgate starting", map[string]any{
		"version":        version,
		"commit":         commit,
		"log_level":      cfg.Logging.Level,
		"log_format":     cfg.Logging.Format,
		"listen_address": cfg.Addr(),
		"insecure":       cfg.Transports.HTTP.Insecure,
		"storage":        cfg.Storage.Driver,
		"group":          cfg.Auth.Group,
		"hash":           cfg.Auth.Hash,
	})

	sm := lifecycle.NewShutdownManager()
	defer sm.Stop()
	ctx := sm.Start(context.Background())

	svc, err := buildService(ctx, cfg, logger, sm)
	if err != nil {
		_ = sm.RunHooks(context.Background())
		return err
	}

	if !cfg.Transports.HTTP.Insecure {
		if err := ensureTLSCertificate(cfg, logger); err != nil {
			_ = sm.RunHooks(context.Background())
			return err
		}
	}

	server, err := api.New(cfg, logger, api.NewRouter(svc.deps))
	if err != nil {
		_ = sm.RunHooks(context.Background())
		return fmt.Errorf("failed to create server: %w", err)
	}

	go svc.sweeper.Run(ctx)

	logger.Info("server ready to accept connections")
	notifySystemd("READY=1")

	serveErr := server.Start(ctx)

	notifySystemd("STOPPING=1")
	logger.Info("srpgate stopping", map[string]any{"reason": sm.Reason()})

	timeout, _ := cfg.GetShutdownTimeout()
	if err := lifecycle.GracefulShutdown(context.Background(), sm.RunHooks, timeout); err != nil {
		logger.Error("cleanup failed", map[string]any{"error": err.Error()})
	}

	if serveErr != nil {
		return fmt.Errorf("server failed: %w", serveErr)
	}
	logger.Info("srpgate stopped")
	return nil
}

// runInit prepares the TLS certificate. It is idempotent.
func runInit(configPath string, logger *logging.Logger) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Transports.HTTP.Insecure {
		logger.Info("transport is insecure, no certificate needed")
		return nil
	}
	return ensureTLSCertificate(cfg, logger)
}

// service holds the wired authentication core.
type service struct {
	deps    api.Deps
	sweeper *lifecycle.Sweeper
}

// buildService wires stores, tokens, MFA and the authenticator. Every
// resource it opens registers a shutdown hook on sm.
func buildService(ctx context.Context, cfg *config.Config, logger *logging.Logger, sm *lifecycle.ShutdownManager) (*service, error) {
	group, err := srp.LookupGroup(cfg.Auth.Group, cfg.Auth.Hash)
	if err != nil {
		return nil, err
	}
	challengeTTL, err := cfg.GetChallengeTTL()
	if err != nil {
		return nil, err
	}
	sessionTTL, err := cfg.GetSessionTTL()
	if err != nil {
		return nil, err
	}
	codeTTL, err := cfg.GetCodeTTL()
	if err != nil {
		return nil, err
	}
	sweepInterval, err := cfg.GetSweepInterval()
	if err != nil {
		return nil, err
	}

	sweeper, err := lifecycle.NewSweeper(sweepInterval, func(r lifecycle.SweepResult) {
		switch {
		case r.Err != nil:
			logger.Warn("sweep failed", map[string]any{"store": r.Name, "error": r.Err.Error()})
		case r.Removed > 0:
			logger.Debug("swept expired entries", map[string]any{"store": r.Name, "removed": r.Removed})
		}
	})
	if err != nil {
		return nil, err
	}

	st, err := openStores(ctx, cfg, challengeTTL, logger)
	if err != nil {
		return nil, err
	}
	sm.OnShutdown("storage", st.close)
	sweeper.Add("verifiers", st.verifierSweep)
	sweeper.Add("challenges", st.challengeSweep)

	secret, err := loadTokenSecret(cfg.Auth.TokenSecretFile)
	if err != nil {
		return nil, err
	}
	if cfg.Auth.TokenSecretFile == "" {
		logger.Warn("no token_secret_file configured, sessions will not survive a restart")
	}
	tokens := auth.NewJWTIssuer(secret, cfg.Service.Issuer, sessionTTL, st.revocations)
	sweeper.Add("revocations", st.revocations.Sweep)

	otp := auth.NewEmailOTPGate(&auth.LogMailer{Logger: logger}, st.otp, codeTTL, cfg.MFA.Email.MaxAttempts)
	sweeper.Add("mfa", otp.Sweep)

	opts := auth.Options{
		Group:               group,
		ChallengeTTL:        challengeTTL,
		MaxEphemeralRetries: cfg.Auth.MaxEphemeralRetries,
	}
	if cfg.Auth.DecoyAttributes {
		opts.DecoySecret = deriveDecoySecret(secret)
	}
	authn, err := auth.NewAuthenticator(opts, st.verifiers, st.challenges, tokens, otp)
	if err != nil {
		return nil, err
	}

	limiter := auth.NewRateLimiter(auth.DefaultRateLimitPolicy)
	sm.OnShutdown("ratelimiter", func(context.Context) error {
		limiter.Stop()
		return nil
	})

	return &service{
		deps: api.Deps{
			Authenticator:     authn,
			Tokens:            tokens,
			Limiter:           limiter,
			Logger:            logger,
			Shutdown:          sm,
			OpenRegistration:  cfg.Auth.OpenRegistration,
			TrustProxyHeaders: cfg.Transports.HTTP.TrustProxyHeaders,
		},
		sweeper: sweeper,
	}, nil
}

func ensureTLSCertificate(cfg *config.Config, logger *logging.Logger) error {
	hosts := []string{"localhost", "127.0.0.1", "::1"}
	if addr := cfg.Transports.HTTP.Address; addr != "" && !net.ParseIP(addr).IsUnspecified() {
		hosts = append(hosts, addr)
	}
	if hn, err := os.Hostname(); err == nil && hn != "" {
		hosts = append(hosts, hn)
	}

	created, err := tlspkg.EnsureCertificate(cfg.Transports.HTTP.TLSCert, cfg.Transports.HTTP.TLSKey, hosts)
	if err != nil {
		return fmt.Errorf("TLS certificate generation failed: %w", err)
	}
	if created {
		logger.Info("generated self-signed TLS certificate", map[string]any{
			"cert":  cfg.Transports.HTTP.TLSCert,
			"hosts": hosts,
			"valid": tlspkg.DefaultValidity.String(),
		})
	}
	return nil
}

// notifySystemd sends a notification to systemd if NOTIFY_SOCKET is set.
func notifySystemd(state string) {
	notifySocket := os.Getenv("NOTIFY_SOCKET")
	if notifySocket == "" {
		return
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: notifySocket, Net: "unixgram"})
	if err != nil {
		// systemd notification is optional
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	_, _ = conn.Write([]byte(state))
}
