// sn-bridge is a diagnostic tool for the bridge side of the controller:
// it subscribes to the published subjects and prints everything, and can
// queue a block command for the controller to pick up on its next
// monitoring cycle.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
)

func main() {
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL.")
	prefix := flag.String("prefix", "sentinet", "Bridge subject prefix.")
	blockTarget := flag.String("block", "", "Queue a block command for this MAC/host and exit after dispatch.")
	blockDuration := flag.Int("duration", 60, "Block duration in seconds for -block.")
	flag.Parse()

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Close()
	log.Printf("Connected to NATS server at %s", *natsURL)

	if *blockTarget != "" {
		runCommandResponder(nc, *prefix, *blockTarget, *blockDuration)
		return
	}

	runSubscriber(nc, *prefix)
}

// runSubscriber prints every message the controller publishes.
func runSubscriber(nc *nats.Conn, prefix string) {
	for _, suffix := range []string{"topology", "stats", "alerts"} {
		subject := fmt.Sprintf("%s.%s", prefix, suffix)
		if _, err := nc.Subscribe(subject, func(msg *nats.Msg) {
			var pretty map[string]interface{}
			if err := json.Unmarshal(msg.Data, &pretty); err != nil {
				log.Printf("[%s] %s", msg.Subject, string(msg.Data))
				return
			}
			out, _ := json.MarshalIndent(pretty, "", "  ")
			log.Printf("[%s]\n%s", msg.Subject, string(out))
		}); err != nil {
			log.Fatalf("Failed to subscribe to %s: %v", subject, err)
		}
		log.Printf("Subscribed to '%s'", subject)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
}

// runCommandResponder answers the controller's next command poll with a
// single block command, then exits.
func runCommandResponder(nc *nats.Conn, prefix, target string, durationSec int) {
	payload, err := json.Marshal(map[string]interface{}{
		"command":      "block",
		"target":       target,
		"duration_sec": durationSec,
	})
	if err != nil {
		log.Fatalf("Failed to marshal command: %v", err)
	}

	var once sync.Once
	done := make(chan struct{})
	sub, err := nc.Subscribe(prefix+".commands", func(msg *nats.Msg) {
		if err := msg.Respond(payload); err != nil {
			log.Printf("Failed to respond: %v", err)
			return
		}
		once.Do(func() { close(done) })
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	log.Printf("Waiting for controller poll to dispatch block of %s (%ds)...", target, durationSec)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-done:
		log.Println("Command dispatched to controller.")
	case <-sigChan:
		log.Println("Interrupted before dispatch.")
	}
}
