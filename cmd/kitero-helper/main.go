// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command kitero-helper runs the RPC daemon that owns the router:
// it loads the interface/QoS catalog from a YAML document, restores
// any persisted client bindings, and then serves bind/unbind/stats
// requests over the line-delimited JSON RPC protocol until it
// receives a shutdown signal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kitero.dev/kitero/internal/binder"
	"kitero.dev/kitero/internal/config"
	"kitero.dev/kitero/internal/kitrouter"
	"kitero.dev/kitero/internal/logging"
	"kitero.dev/kitero/internal/metrics"
	"kitero.dev/kitero/internal/netmon"
	"kitero.dev/kitero/internal/persist"
	"kitero.dev/kitero/internal/rpcserver"
)

const usage = "usage: kitero-helper [-d[d]] [-l FILE] [-s] config.yaml"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliArgs struct {
	debugCount int
	logFile    string
	syslog     bool
	configPath string
}

// parseArgs parses the helper's CLI surface by hand: the stdlib flag
// package has no clean way to express "-d" and "-dd" as a counted
// debug level, so args are walked directly instead.
func parseArgs(args []string) (cliArgs, error) {
	var out cliArgs

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-d":
			out.debugCount++
		case "-dd":
			out.debugCount += 2
		case "-s":
			out.syslog = true
		case "-l":
			i++
			if i >= len(args) {
				return cliArgs{}, fmt.Errorf("helper: -l requires a file argument\n%s", usage)
			}
			out.logFile = args[i]
		default:
			if len(arg) > 0 && arg[0] == '-' {
				return cliArgs{}, fmt.Errorf("helper: unknown flag %q\n%s", arg, usage)
			}
			if out.configPath != "" {
				return cliArgs{}, fmt.Errorf("helper: unexpected extra argument %q\n%s", arg, usage)
			}
			out.configPath = arg
		}
	}

	if out.configPath == "" {
		return cliArgs{}, errors.New(usage)
	}
	return out, nil
}

func run(rawArgs []string) error {
	args, err := parseArgs(rawArgs)
	if err != nil {
		return err
	}

	log, closeLog, err := buildLogger(args)
	if err != nil {
		return err
	}
	defer closeLog()

	log.Info("reading configuration file", "path", args.configPath)
	doc, err := config.Load(args.configPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		return err
	}

	router, err := kitrouter.Load(doc.Router)
	if err != nil {
		log.Error("failed to build router", "error", err)
		return err
	}

	// The network binder is registered first so a failed bind never
	// reaches the persistence observer: Router.Bind aborts at the
	// first observer error, and PersistentBinder never rejects, so
	// placing it last keeps the on-disk snapshot limited to bindings
	// the network binder actually accepted.
	netBinder := binder.NewLinuxBinder(binder.DefaultConfig(), netmon.NewLinkChecker())
	router.Register(netBinder)

	statePath := filepath.Join(doc.Helper.StateDir, "bindings.json")
	persistentBinder := persist.New(statePath)
	router.Register(persistentBinder)

	if err := persist.Restore(statePath, router); err != nil {
		log.Error("failed to restore persisted bindings", "path", statePath, "error", err)
		return err
	}

	collector, registry := metrics.NewCollector()

	srv := rpcserver.New(router)
	srv.SetStatsObserver(collector)
	srv.SetPasswordAuditor(persistentBinder)

	addr := fmt.Sprintf("%s:%d", doc.Helper.Listen, doc.Helper.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("failed to bind rpc listener", "addr", addr, "error", err)
		return err
	}

	var metricsServer *http.Server
	if doc.Helper.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: doc.Helper.MetricsListen, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped unexpectedly", "error", err)
			}
		}()
		log.Info("serving metrics", "addr", doc.Helper.MetricsListen)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("helper ready", "addr", addr)
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("rpc server exited unexpectedly", "error", err)
			return err
		}
	}

	if err := srv.Close(); err != nil {
		log.Warn("error closing rpc listener", "error", err)
	}
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Warn("error shutting down metrics server", "error", err)
		}
	}

	log.Info("helper exiting cleanly")
	return nil
}

// buildLogger assembles the logger per the CLI's -d/-dd/-l/-s flags.
// The returned closer flushes and releases any opened log file.
func buildLogger(args cliArgs) (*logging.Logger, func(), error) {
	level := logging.LevelWarn
	if args.debugCount == 1 {
		level = logging.LevelInfo
	} else if args.debugCount >= 2 {
		level = logging.LevelDebug
	}

	var writers []io.Writer
	var fileToClose *os.File

	if args.logFile != "" {
		f, err := os.OpenFile(args.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("helper: opening log file %q: %w", args.logFile, err)
		}
		writers = append(writers, f)
		fileToClose = f
	}

	if args.syslog {
		cfg := logging.DefaultSyslogConfig()
		cfg.Enabled = true
		cfg.Host = "localhost"
		w, err := logging.NewSyslogWriter(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("helper: connecting to syslog: %w", err)
		}
		writers = append(writers, w)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	var output io.Writer = writers[0]
	if len(writers) > 1 {
		output = io.MultiWriter(writers...)
	}

	log := logging.New(logging.Config{Output: output, Level: level, JSON: args.logFile != "" || args.syslog}).WithComponent("helper")

	closer := func() {
		if fileToClose != nil {
			fileToClose.Close()
		}
	}
	return log, closer, nil
}
