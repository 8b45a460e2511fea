// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/z5labs/hearth"
	"github.com/z5labs/hearth/lifecycle"
	"github.com/z5labs/hearth/pkg/logging"
	"github.com/z5labs/hearth/pkg/slogfield"
	"github.com/z5labs/hearth/pkg/telemetry"
	"github.com/z5labs/hearth/security"
	"github.com/z5labs/hearth/server"
	"github.com/z5labs/hearth/socket"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve until SIGINT or SIGTERM, reloading the certificate on SIGHUP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfig(opts.configPath, opts.envFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg Config) error {
	logHandler, err := logging.NewHandler(os.Stderr, cfg.Logging)
	if err != nil {
		return err
	}
	log := slog.New(logHandler)

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTel)
	if err != nil {
		return err
	}
	lc := &lifecycle.Context{}
	lc.OnPostRun(lifecycle.HookFunc(shutdownTracing))

	app := newApp(cfg, logHandler)
	if hearth.DefaultTransport().Secure() {
		sc, err := newSecurityContext(ctx, cfg, logHandler)
		if err != nil {
			return err
		}
		app.SetSecurityContext(sc)
	}
	app.DebugPrint(ctx)

	rt := hearth.Recover(
		hearth.WithLifecycleHooks(
			hearth.WithSignalNotifications(
				hearth.Concurrently(app, reloadOnSignal(app, syscall.SIGHUP)),
				os.Interrupt,
				syscall.SIGTERM,
			),
			lc,
		),
	)
	err = rt.Run(ctx)
	if err != nil {
		log.ErrorContext(ctx, "hearthd stopped", slogfield.Error(err))
		return err
	}
	return nil
}

func newApp(cfg Config, logHandler slog.Handler) *hearth.App {
	opts := []hearth.Option{
		hearth.LogHandler(logHandler),
		hearth.WithSocketProvider(socket.NewProvider(
			socket.LogHandler(logHandler),
			socket.Address(cfg.HTTP.Address),
			socket.Port(cfg.HTTP.Port),
		)),
		hearth.ServerOptions(
			server.ReadTimeout(cfg.HTTP.ReadTimeout),
			server.ReadHeaderTimeout(cfg.HTTP.ReadHeaderTimeout),
			server.WriteTimeout(cfg.HTTP.WriteTimeout),
			server.IdleTimeout(cfg.HTTP.IdleTimeout),
			server.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		),
	}
	if cfg.Health.Prefix != "" {
		opts = append(opts, hearth.HealthEndpoints(cfg.Health.Prefix))
	}

	app := hearth.New(opts...)
	registerRoutes(app, slog.New(logHandler))
	return app
}

// newSecurityContext serves the configured certificate files or, when
// none are configured, a self-signed certificate kept in tls.persistDir.
func newSecurityContext(ctx context.Context, cfg Config, logHandler slog.Handler) (*security.Context, error) {
	var src security.Source = security.SelfSignedSource{
		Dir: cfg.TLS.PersistDir,
		Request: security.CertificateRequest{
			Organization: "hearth",
			CommonName:   "localhost",
		},
	}
	if cfg.TLS.CertFile != "" {
		src = security.FileSource{CertFile: cfg.TLS.CertFile, KeyFile: cfg.TLS.KeyFile}
	}

	clientAuth, err := security.ParseClientAuth(cfg.TLS.ClientAuth)
	if err != nil {
		return nil, err
	}
	opts := []security.Option{
		security.LogHandler(logHandler),
		security.WithProfile(cfg.TLS.Profile),
		security.ClientAuth(clientAuth),
	}
	if len(cfg.TLS.ClientCAFiles) > 0 {
		pool, err := security.LoadCertPool(cfg.TLS.ClientCAFiles...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, security.ClientCAs(pool))
	}

	sc := security.NewContext(src, opts...)
	err = sc.Load(ctx)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// reloadOnSignal reloads the certificate of app every time sig is received.
func reloadOnSignal(app *hearth.App, sig os.Signal) hearth.Runtime {
	return hearth.RuntimeFunc(func(ctx context.Context) error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, sig)
		defer signal.Stop(sigs)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-sigs:
				app.LoadCertificate(ctx)
			}
		}
	})
}
