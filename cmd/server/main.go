package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/LaTsa99/LaTsaServer/pkg/console"
	"github.com/LaTsa99/LaTsaServer/pkg/datastore"
	"github.com/LaTsa99/LaTsaServer/pkg/logging"
	"github.com/LaTsa99/LaTsaServer/pkg/server"
	"github.com/LaTsa99/LaTsaServer/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	configFile := flag.String("config", "", "YAML config file (flags override its values)")
	addr := flag.String("addr", "", "TCP bind address")
	dbPath := flag.String("db", "", "SQLite database file path")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for Prometheus /metrics (empty to disable)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if err := logging.Setup(logging.Options{Level: *logLevel, Format: *logFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	if *configFile != "" {
		loaded, err := server.LoadConfig(*configFile)
		if err != nil {
			slog.Error("load config", "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	slog.Info("starting server", "version", version.String())

	st, err := datastore.New(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}

	srv := server.New(cfg, st)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}

	// Shutdown on SIGINT/SIGTERM or the stop_server console command,
	// whichever comes first.
	stop := make(chan struct{})
	var once sync.Once
	requestStop := func() { once.Do(func() { close(stop) }) }

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		requestStop()
	}()
	go runConsole(srv, requestStop)

	<-stop
	srv.Shutdown()
}

// runConsole reads admin commands from stdin until stop_server or EOF.
func runConsole(srv *server.Server, requestStop func()) {
	dispatcher := console.NewDispatcher(srv)
	history := console.NewHistory()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch line {
		case "stop_server":
			requestStop()
			return
		case "!!":
			// Recall and re-run the previous command.
			prev, ok := history.Prev()
			if !ok {
				continue
			}
			fmt.Println(prev)
			line = prev
		}
		history.Put(line)
		if out := dispatcher.Dispatch(line); out != "" {
			fmt.Println(out)
		}
	}
	requestStop()
}
