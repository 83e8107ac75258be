// Command ascs-sim runs an Audio Stream Control Service server against
// simulated GATT links.
//
// Simulated clients connect by address, subscribe to the service
// characteristics and write raw Control Point operations. An automatic
// application answers every indication, so a full stream setup can be
// driven from the prompt.
//
// Usage:
//
//	ascs-sim [flags]
//
// Flags:
//
//	-config string  Configuration file path (YAML)
//	-log string     File path for protocol event logging (CBOR format)
//	-debug          Enable debug logging
//
// Examples:
//
//	# Start with the default limits
//	ascs-sim
//
//	# Restore bonded clients and capture protocol events
//	ascs-sim -config sim.yaml -log capture.alog
//
// Captured events are viewed with ascs-log.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mash-protocol/ascs-go/pkg/ascs"
	"github.com/mash-protocol/ascs-go/pkg/bleadapter"
	"github.com/mash-protocol/ascs-go/pkg/config"
	ascslog "github.com/mash-protocol/ascs-go/pkg/log"
)

var (
	configFile  = flag.String("config", "", "Configuration file path (YAML)")
	protocolLog = flag.String("log", "", "File path for protocol event logging (CBOR format)")
	debug       = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *protocolLog != "" {
		cfg.Log.File = *protocolLog
	}
	if *debug {
		cfg.Log.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sh, err := newShell()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Log.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(sh.rl.Stderr(), &slog.HandlerOptions{Level: level}))

	engine := cfg.ServerConfig()
	engine.Logger = logger

	var loggers []ascslog.Logger
	var fileLogger *ascslog.FileLogger
	if cfg.Log.File != "" {
		fileLogger, err = ascslog.NewFileLogger(cfg.Log.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create protocol logger: %v\n", err)
			os.Exit(1)
		}
		defer fileLogger.Close()
		loggers = append(loggers, fileLogger)
		logger.Info("protocol logging", "file", cfg.Log.File)
	}
	if cfg.Log.Debug {
		loggers = append(loggers, ascslog.NewSlogAdapter(logger))
	}
	engine.ProtocolLogger = ascslog.Tee(loggers...)

	info, err := cfg.CodecInfo()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	app := newAutoApp(info)

	adapter, err := bleadapter.New(engine, app, staticDefaults{info: info})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, c := range cfg.Connections {
		cc := cfg.ClientConfig(c)
		if c.Address != "" {
			err = adapter.Restore(c.Address, c.CID, cc)
		} else {
			adapter.Do(func(srv *ascs.Server) { err = srv.AddConfig(c.CID, cc) })
		}
		if err != nil {
			logger.Warn("bonded client not restored", "cid", c.CID, "error", err)
		}
	}

	sh.attach(adapter, app, engine, info)
	sh.Run()
}
