package main

import (
	"flag"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Version is injected via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	headless := flag.Bool("headless", false, "Run delivery browsers headless")
	debug := flag.Bool("debug", false, "Enable detailed debug logging")
	flag.Parse()

	config, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	if *addr != "" {
		config.ListenAddr = *addr
	}
	if *headless {
		config.Headless = true
	}
	if *debug {
		config.DebugMode = true
	}

	log := newLogger(config.DebugMode)
	defer log.Sync()

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                  dmpilot - DM campaign engine             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Control panel: http://localhost%s/\n", config.ListenAddr)
	fmt.Printf("Data directory: %s\n", config.DataDir)
	if config.DebugMode {
		fmt.Println("🔍 DEBUG MODE - Detailed logging enabled")
	}
	if config.Headless {
		fmt.Println("👻 HEADLESS MODE - Delivery browsers run invisibly")
	}
	fmt.Println()

	registerMetrics()

	store := NewSessionStore(config.sessionPath())
	ledger := NewLedger(config.historyPath())
	pacer := NewPacer(config)
	engine := NewEngine(config, store, pacer, log)
	dispatcher := NewDispatcher(config, ledger, store, pacer, log, engine.SendDM)
	server := NewServer(config, dispatcher, store, log)

	log.Info("dmpilot starting",
		zap.String("version", Version),
		zap.String("addr", config.ListenAddr))

	if err := http.ListenAndServe(config.ListenAddr, server.Routes()); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
