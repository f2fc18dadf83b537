// CloudSign - group game relay for chat bots
// License: MIT
//
// Copyright (c) 2026 CloudSign contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/monarchdos/cloudsign/pkg/bus"
	"github.com/monarchdos/cloudsign/pkg/channels"
	"github.com/monarchdos/cloudsign/pkg/cloudsign"
	"github.com/monarchdos/cloudsign/pkg/config"
	"github.com/monarchdos/cloudsign/pkg/logger"
	"github.com/monarchdos/cloudsign/pkg/relay"
)

const version = "0.1.0"
const logo = "☁"

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	if err := loadDotEnv(".env"); err != nil {
		fmt.Printf("Error loading .env: %v\n", err)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "onboard":
		onboard()
	case "gateway":
		gatewayCmd()
	case "console":
		consoleCmd()
	case "status":
		statusCmd()
	case "version", "--version", "-v":
		fmt.Printf("%s cloudsign v%s (protocol %s)\n", logo, version, cloudsign.ProtocolVersion)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Printf("%s cloudsign - group game relay v%s\n\n", logo, version)
	fmt.Println("Usage: cloudsign <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  onboard     Write a default configuration")
	fmt.Println("  gateway     Connect to chat channels and relay game commands")
	fmt.Println("  console     Try commands from the terminal")
	fmt.Println("  status      Show cloudsign status")
	fmt.Println("  version     Show version information")
}

// loadEnvFile loads KEY=VALUE pairs from path. Variables already set in the
// process environment win.
func loadEnvFile(path string) error {
	return godotenv.Load(path)
}

// loadDotEnv is loadEnvFile that tolerates a missing file.
func loadDotEnv(path string) error {
	err := loadEnvFile(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func onboard() {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s cloudsign is ready!\n", logo)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set cloudsign.key and cloudsign.master in", configPath)
	fmt.Println("  2. Enable channels.onebot and point ws_url at your OneBot implementation")
	fmt.Println("  3. Try it: cloudsign console -m \"签到\"")
}

func gatewayCmd() {
	debug := false
	for _, arg := range os.Args[2:] {
		if arg == "--debug" || arg == "-d" {
			debug = true
			break
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := setupLogging(cfg, debug); err != nil {
		fmt.Printf("Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.DisableFileLogging()

	msgBus := bus.NewMessageBus()

	channelManager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		logger.FatalCF("gateway", "Error creating channel manager", map[string]interface{}{
			"error": err.Error(),
		})
	}

	enabledChannels := channelManager.GetEnabledChannels()
	if len(enabledChannels) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", strings.Join(enabledChannels, ", "))
	} else {
		fmt.Println("⚠ Warning: No channels enabled")
	}

	opts := cfg.Options()
	loop := relay.NewLoop(msgBus, opts, cloudsign.NewClient(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := channelManager.StartAll(ctx); err != nil {
		fmt.Printf("Error starting channels: %v\n", err)
	}
	logger.InfoCF("gateway", "Channel status", channelManager.GetStatus())

	go loop.Run(ctx)

	fmt.Printf("✓ Relay started (reply mode: %s)\n", opts.ReplyMode)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	loop.Wait()
	channelManager.StopAll(context.Background())
	msgBus.Close()
	fmt.Println("✓ Gateway stopped")
}

func setupLogging(cfg *config.Config, debug bool) error {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if debug {
		level = logger.DEBUG
		fmt.Println("🔍 Debug mode enabled")
	}
	logger.SetLevel(level)

	if path := cfg.LogFilePath(); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := logger.EnableFileLogging(path); err != nil {
			return err
		}
	}
	return nil
}

func statusCmd() {
	configPath := getConfigPath()

	fmt.Printf("%s cloudsign Status\n\n", logo)

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "✓")
	} else {
		fmt.Println("Config:", configPath, "✗ (defaults in use)")
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return
	}

	opts := cfg.Options()
	set := func(v string) string {
		if v == "" || v == "null" {
			return "not set"
		}
		return "✓"
	}
	fmt.Println("Key:", set(opts.Key))
	if opts.Master != "" {
		fmt.Println("Master:", opts.Master)
	} else {
		fmt.Println("Master: not set")
	}
	fmt.Println("Reply mode:", opts.ReplyMode)

	ob := cfg.Channels.OneBot
	if ob.Enabled {
		fmt.Printf("OneBot: ✓ %s\n", ob.WSUrl)
	} else {
		fmt.Println("OneBot: disabled")
	}
	if len(ob.AllowGroups) > 0 {
		fmt.Println("Allowed groups:", strings.Join(ob.AllowGroups, ", "))
	}
	if ob.SendRatePerSecond > 0 {
		fmt.Printf("Send rate: %.2f/s (burst %d)\n", ob.SendRatePerSecond, ob.SendBurst)
	}
	fmt.Println("Log level:", cfg.Log.Level)
}

func getConfigPath() string {
	if p := os.Getenv("CLOUDSIGN_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cloudsign", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}
