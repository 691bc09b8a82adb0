// Command blockproxyd is the reverse proxy's process entry point: it
// loads the YAML configuration, binds the listen port, and runs the
// accept loop until an interrupt or terminate signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockproxy/blockproxy/internal/config"
	"github.com/blockproxy/blockproxy/internal/metrics"
	"github.com/blockproxy/blockproxy/internal/supervisor"
)

var version = config.ProxyVersion

func main() {
	fs := flag.NewFlagSet("blockproxyd", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "blockproxyd — reverse proxy for a block-building game's client-server protocol\n\nUsage:\n  blockproxyd [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	metricsAddr := fs.String("metrics", "", "listen address for the metrics HTTP endpoint (empty disables it)")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("blockproxyd %s\n", version)
		return
	}

	if err := run(*configPath, *metricsAddr); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	listenAddr := fmt.Sprintf("0.0.0.0:%d", cfg.Settings.Listen)
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listenAddr, err)
	}

	reg := &metrics.Registry{}
	if metricsAddr != "" {
		mux := netHTTPMux(reg)
		go func() {
			log.Printf("metrics listening on %s", metricsAddr)
			if err := serveMetrics(ctx, metricsAddr, mux); err != nil {
				log.Printf("metrics serve: %v", err)
			}
		}()
	}

	sv := supervisor.New(cfg, reg)

	log.Printf("blockproxyd version %s, protocol version %s (%d)", version, config.ProtocolName, config.ProtocolVersion)
	log.Printf("startup took %s; listening on %s", time.Since(start), listenAddr)

	return sv.Serve(ctx, ln)
}
