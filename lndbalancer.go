package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/litch/lndbalancer/balancer"
	"github.com/litch/lndbalancer/config"
	"github.com/litch/lndbalancer/lndc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	version string
	// Stores the date of this build. This should be set using -ldflags during compilation.
	date string
)

// lndbalancerMain is the true entry point for lndbalancer. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func lndbalancerMain() error {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	opts, err := loadOptions(os.Args[1:])
	if err != nil {
		return err
	}

	if opts.ShowVersion {
		fmt.Printf("version=%s commit=%s date=%s\n", version, commit, date)
		return nil
	}

	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if opts.Trace {
		log.SetLevel(log.TraceLevel)
	}

	log.Debug("Starting lndbalancer...")

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", version, commit)
	log.Infof("Built on %s", date)

	cfg, err := config.Load(opts.Args.ConfigPath)
	if err != nil {
		return err
	}
	config.MakeCurrent(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	b, err := balancer.NewBalancer(&balancer.Config{
		Logger:  log.StandardLogger(),
		Connect: connectLnd,
		Store:   config.DefaultStore(),
		Metrics: balancer.NewMetrics(registry),
	})
	if err != nil {
		return err
	}

	server := newHTTPServer(&httpServerConfig{
		port:               cfg.ApplicationPort,
		reports:            b,
		gatherer:           registry,
		corsAllowedOrigins: cfg.CorsAllowedOrigins,
		version:            version,
		commit:             commit,
	})

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server stopped")
		}
	}()

	go watchReload(ctx, opts.Args.ConfigPath)

	err = b.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Could not shut down HTTP server")
	}

	return err
}

func connectLnd(ctx context.Context, source *config.Source) (balancer.Node, error) {
	client, err := lndc.Dial(ctx, &lndc.Config{
		RpcServer:    source.Endpoint,
		TlsCertPath:  source.Cert,
		MacaroonPath: source.Macaroon,
	})
	if err != nil {
		return nil, err
	}

	return client, nil
}

// watchReload reloads the config file on SIGHUP. The listening port isn't
// rebound on reload.
func watchReload(ctx context.Context, path string) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			_ = reloadConfig(path, config.DefaultStore())
		}
	}
}

func reloadConfig(path string, store *config.Store) error {
	cfg, err := config.Load(path)
	if err != nil {
		log.WithError(err).Error("Could not reload config, keeping the current one")
		return err
	}

	store.MakeCurrent(cfg)
	log.WithField("path", path).Info("Reloaded config")

	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := lndbalancerMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			log.WithError(err).Println("Failed running lndbalancer.")
		}
		os.Exit(1)
	}
}
