// Package main implements the nesmap executable: an overworld viewer that
// streams NES tile maps and scrolls between screens.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nesmap/internal/app"
	"nesmap/internal/version"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to configuration file")
		worldFile  = flag.String("world", "", "Path to a world pack (.bin, .gz, .zip or .7z); empty generates one")
		chrFile    = flag.String("chr", "", "Path to an iNES image supplying the pattern tables")
		seed       = flag.Int64("seed", 0, "Seed for the generated world")
		style      = flag.String("style", "", "Screen change style: scroll or fade")
		nogui      = flag.Bool("nogui", false, "Run without GUI (headless snapshots)")
		frames     = flag.Int("frames", -1, "Frames to run in headless mode (0 runs until interrupted)")
		script     = flag.String("script", "", "Headless input script, e.g. right:120,down:60")
		debug      = flag.Bool("debug", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}

	if *showVer {
		version.PrintBuildInfo(os.Stdout)
		os.Exit(0)
	}

	configPath := *configFile
	if configPath == "" {
		configPath = app.GetDefaultConfigPath()
	}

	config := app.NewConfig()
	if err := config.LoadFromFile(configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override the file for this run only
	if *worldFile != "" {
		config.World.Path = *worldFile
	}
	if *chrFile != "" {
		config.Display.CHRPath = *chrFile
	}
	if *seed != 0 {
		config.World.Seed = *seed
	}
	if *style != "" {
		config.Transition.Style = *style
	}
	if *frames >= 0 {
		config.Headless.Frames = *frames
	}
	if *script != "" {
		config.Headless.Script = *script
	}
	if *debug {
		config.Debug.EnableLogging = true
		config.Debug.RenderDebugging = true
		config.Debug.InputDebugging = true
	}

	application, err := app.NewApplicationWithConfig(config, *nogui)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			log.Printf("Application cleanup error: %v", err)
		}
	}()

	setupGracefulShutdown(application)

	fmt.Println("🗺️  nesmap starting...")
	printStartup(config, *nogui)

	if err := application.Run(); err != nil {
		log.Printf("Run failed: %v", err)
		return
	}

	fmt.Printf("📊 Session Statistics:\n")
	fmt.Printf("   Frames rendered: %d\n", application.GetFrameCount())
	fmt.Printf("   Session time: %v\n", application.GetUptime())
	if fps := application.GetFPS(); fps > 0 {
		fmt.Printf("   Average FPS: %.1f\n", fps)
	}
	fmt.Printf("   Final position: %s\n", application.Game().Status())
}

func printStartup(config *app.Config, headless bool) {
	world := config.World.Path
	if world == "" {
		world = fmt.Sprintf("generated (seed %d)", config.World.Seed)
	}
	fmt.Printf("   World: %s, start screen %d\n", world, config.World.StartScreen)
	fmt.Printf("   Transitions: %s, %d px per step\n", config.Transition.Style, config.Transition.Increment)

	if headless || config.Video.Backend == "headless" {
		fmt.Printf("   Headless: %d frames, snapshots to %s\n", config.Headless.Frames, config.Paths.Snapshots)
		return
	}
	width, height := config.GetWindowResolution()
	fmt.Printf("   Window: %dx%d (Scale: %dx), backend %s\n", width, height, config.Window.Scale, config.Video.Backend)
}

// setupGracefulShutdown stops the application on the first interrupt and
// exits on the second
func setupGracefulShutdown(application *app.Application) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Println("\n🛑 Interrupt received, shutting down gracefully...")
		application.Stop()
		<-c
		os.Exit(1)
	}()
}

func printUsage() {
	fmt.Println("nesmap - NES overworld map streaming")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Walks an 8x8 overworld of NES screens. Each screen is streamed into")
	fmt.Println("  video memory through vblank update lists and changes either with a")
	fmt.Println("  split-scroll slide under a fixed HUD or with a fade through black.")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  nesmap [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  nesmap                                  # Generated world in a window")
	fmt.Println("  nesmap -world worlds/island.bin.gz      # Load a world pack")
	fmt.Println("  nesmap -style fade                      # Fade between screens")
	fmt.Println("  nesmap -nogui -frames 600               # Scripted run writing PNG snapshots")
	fmt.Println()
	fmt.Println("CONTROLS:")
	fmt.Println("  Arrow Keys / WASD - Walk")
	fmt.Println("  Enter             - Pause")
	fmt.Println("  F1                - Save to slot 0")
	fmt.Println("  F12               - Load slot 0")
	fmt.Println("  Escape            - Quit")
	fmt.Println()
	fmt.Println("CONFIGURATION:")
	fmt.Printf("  Config file: %s\n", app.GetDefaultConfigPath())
	fmt.Println("  Save States: ./states/")
	fmt.Println("  Snapshots:   ./snapshots/")
}
