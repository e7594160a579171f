// Bridge probe - dials a rosbridge server, subscribes to a topic, and
// prints whatever arrives. Useful for checking connectivity and topic
// names before running the full suite.
//
// Usage:
//
//	bridge-probe -url ws://192.168.68.40:9090 -topic /battery_state
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/asadbey/turtlebot3-automation/internal/config"
	"github.com/asadbey/turtlebot3-automation/internal/log"
	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:9090", "rosbridge WebSocket URL")
		topic    = flag.String("topic", bridge.TopicBattery, "Topic to subscribe to")
		duration = flag.Duration("duration", 0, "How long to listen (0 = until Ctrl+C)")
		raw      = flag.Bool("raw", false, "Print raw payloads instead of re-indented JSON")
	)
	flag.Parse()

	log.Init("warn")

	cfg := bridge.DefaultConfig()
	cfg.URL = config.BridgeURL(*url)

	client, err := bridge.New(cfg, log.L())
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	fmt.Printf("🔌 Connecting to %s... ", cfg.URL)
	dialCtx, dialCancel := context.WithTimeout(ctx, cfg.DialTimeout)
	err = client.Connect(dialCtx)
	dialCancel()
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅")
	defer client.Close()

	var count atomic.Int64
	err = client.Subscribe(*topic, func(data []byte) {
		n := count.Add(1)
		stamp := time.Now().Format("15:04:05.000")
		if *raw {
			fmt.Printf("[%s] #%d %s\n", stamp, n, data)
			return
		}
		var pretty json.RawMessage = data
		out, jerr := json.MarshalIndent(pretty, "", "  ")
		if jerr != nil {
			out = data
		}
		fmt.Printf("[%s] #%d\n%s\n", stamp, n, out)
	})
	if err != nil {
		fmt.Printf("❌ subscribe: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("👂 Listening on %s (Ctrl+C to stop)\n\n", *topic)
	<-ctx.Done()

	stats := client.Stats()
	fmt.Printf("\n📊 %d message(s) on %s, %d sent / %d received total\n",
		count.Load(), *topic, stats.MessagesSent, stats.MessagesReceived)
}
