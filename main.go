// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dverbeek/panocast/internal/app"
	"github.com/dverbeek/panocast/internal/config"
	"github.com/dverbeek/panocast/internal/proto"
	"github.com/dverbeek/panocast/internal/util"
)

var (
	showHelp    = flag.Bool("h", false, "Show help")
	version     = flag.Bool("version", false, "Show version")
	openBrowser = flag.Bool("open", false, "Open the console in the default browser")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Panocast v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	if len(args) < 2 {
		showUsage()
		os.Exit(1)
	}

	var role proto.Role
	switch args[0] {
	case "admin":
		role = proto.RoleAdmin
	case "viewer":
		role = proto.RoleViewer
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n\n", args[0])
		showUsage()
		os.Exit(1)
	}

	runDevice(role, args[1])
}

func runDevice(role proto.Role, dirArg string) {
	dirArg, err := util.ValidateDeviceDir(dirArg)
	if err != nil {
		log.Fatalf("Invalid device directory: %v", err)
	}
	absDir, err := filepath.Abs(dirArg)
	if err != nil {
		log.Fatalf("Invalid device directory: %v", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		log.Fatalf("Create device directory: %v", err)
	}

	cfgPath := filepath.Join(absDir, "panocast.json")
	cfg, created, err := config.Ensure(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if created {
		log.Printf("Created default config: %s", cfgPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := app.Run(ctx, app.Options{
		DeviceDir:   absDir,
		CfgPath:     cfgPath,
		Cfg:         cfg,
		Role:        role,
		OpenBrowser: *openBrowser,
	}); err != nil {
		log.Fatalf("Device failed: %v", err)
	}
}

func showUsage() {
	fmt.Println("Panocast - synchronized media playback over LAN and beyond")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  panocast admin <directory>    Run the admin console device")
	fmt.Println("  panocast viewer <directory>   Run a playback viewer device")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  admin <directory>")
	fmt.Println("        Run the controlling device. Playback commands issued here")
	fmt.Println("        replicate to every connected viewer.")
	fmt.Println()
	fmt.Println("  viewer <directory>")
	fmt.Println("        Run a playback device. It follows the admin's state and")
	fmt.Println("        serves its screen at the local console URL.")
	fmt.Println()
	fmt.Println("        The directory holds this device's identity, config, and")
	fmt.Println("        cache. It is created with defaults on first run.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h          Show this help message")
	fmt.Println("  -version    Show version")
	fmt.Println("  -open       Open the console in the default browser")
}
