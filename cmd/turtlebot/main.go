// TurtleBot3 automation suite - lifecycle manager, health monitor,
// navigation, voice control, and dashboard in one binary.
//
// Runs against a rosbridge endpoint, or fully offline with -sim.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/asadbey/turtlebot3-automation/internal/config"
	"github.com/asadbey/turtlebot3-automation/internal/log"
	"github.com/asadbey/turtlebot3-automation/pkg/turtlebot"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to the YAML configuration file")
		sim         = flag.Bool("sim", false, "Force simulation mode (no robot required)")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		port        = flag.Int("port", 0, "Dashboard port (overrides the config file)")
		interactive = flag.Bool("interactive", false, "Read commands from stdin")
	)
	flag.Parse()

	log.Init(*logLevel)
	logger := log.L()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("configuration file rejected, using defaults", "error", err)
	}
	if *sim {
		cfg.Simulation.Enabled = true
	}
	if *port > 0 {
		cfg.Dashboard.Port = *port
	}

	app := turtlebot.New(cfg, logger)
	ctx := context.Background()
	if err := app.Init(ctx); err != nil {
		logger.Error("some modules failed to initialize", "error", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Shutdown(sctx); err != nil {
			logger.Error("shutdown incomplete", "error", err)
		}
	}()

	caps := app.Capabilities()
	fmt.Println("🤖 TurtleBot3 automation suite")
	fmt.Printf("   middleware=%v perception=%v speech=%v\n",
		caps.Middleware, caps.Perception, caps.Speech)
	if cfg.Dashboard.Enabled {
		fmt.Printf("   dashboard: http://localhost:%d\n", cfg.Dashboard.Port)
	}
	fmt.Println("   (Ctrl+C to exit)")

	if *interactive {
		go console(ctx, app)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// console reads commands from stdin and prints their outcomes. "status"
// and "quit" are console builtins; everything else goes through the
// command interpreter.
func console(ctx context.Context, app *turtlebot.App) {
	fmt.Println(`Type a command ("go to the kitchen", "status", "quit"):`)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "quit", "exit":
			// Hand control to the signal path so shutdown runs once.
			syscall.Kill(os.Getpid(), syscall.SIGINT)
			return
		case "status":
			for _, ms := range app.Manager().Status() {
				line := fmt.Sprintf("  %-12s %s", ms.Name, ms.Status)
				if ms.Error != "" {
					line += " (" + ms.Error + ")"
				}
				fmt.Println(line)
			}
			continue
		}

		res := app.Execute(ctx, text)
		if res.Err != nil {
			fmt.Printf("❌ %s\n", res.Response)
			continue
		}
		fmt.Printf("✅ %s\n", res.Response)
	}
}
