package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	server "ricochet/server"
)

// A headless client for load and smoke testing: connects to the server,
// nudges its player with random move impulses, fires at random points, and
// reports the snapshots it receives.
func main() {
	var url string
	var interval time.Duration
	flag.StringVar(&url, "url", "ws://localhost:1111/ws", "websocket endpoint")
	flag.DurationVar(&interval, "interval", 500*time.Millisecond, "delay between commands")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()

	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				log.Printf("read: %v", err)
				cancel()
				return
			}
			var env server.Envelope[string]
			if err := json.Unmarshal(payload, &env); err != nil {
				log.Printf("malformed frame: %v", err)
				continue
			}
			log.Printf("received %s (%d bytes)", env.Kind, len(env.Data))
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cmd := server.ClientCommand{
				Kind: server.KindMove,
				Data: []float64{rand.Float64()*20 - 10, rand.Float64()*20 - 10},
			}
			if rand.Intn(4) == 0 {
				cmd = server.ClientCommand{
					Kind: server.KindFire,
					Data: []float64{rand.Float64() * 800, rand.Float64() * 600},
				}
			}
			if err := conn.WriteJSON(cmd); err != nil {
				log.Printf("write: %v", err)
				return
			}
		}
	}
}
