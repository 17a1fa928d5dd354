package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/annel0/mmo-gates/internal/config"
	"github.com/annel0/mmo-gates/internal/eventbus"
)

const (
	defaultNatsURL = "nats://127.0.0.1:4222"
	timeFormat     = "15:04:05"
)

func main() {
	var (
		natsURL    = flag.String("nats", defaultNatsURL, "NATS server URL")
		stream     = flag.String("stream", config.DefaultStream, "JetStream stream")
		command    = flag.String("cmd", "tail", "Command: tail, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		limit      = flag.Int("limit", 0, "Stop after N events (0 = follow until Ctrl+C)")
	)
	flag.Parse()

	switch *command {
	case "types":
		showTypes(os.Stdout)
	case "tail":
		types := parseStringList(*eventTypes)
		if err := validateTypes(types); err != nil {
			log.Fatalf("❌ %v", err)
		}
		if err := tailEvents(*natsURL, *stream, types, *limit); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, types")
		os.Exit(1)
	}
}

// tailEvents печатает события врат из стрима, начиная с самых старых
func tailEvents(url, stream string, types []string, limit int) error {
	bus, err := eventbus.NewJetStreamBus(url, stream, 0)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan *eventbus.Envelope, 64)
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	fmt.Printf("🎬 Tailing gate events from %s (stream %s, limit %d)\n", url, stream, limit)
	count := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n📊 Total events: %d\n", count)
			return nil
		case ev := <-events:
			printEvent(os.Stdout, ev)
			count++
			if limit > 0 && count >= limit {
				fmt.Printf("\n📊 Total events: %d\n", count)
				return nil
			}
		}
	}
}

func showTypes(w io.Writer) {
	fmt.Fprintln(w, "📋 Gate event types")
	for _, t := range eventbus.GateEventTypes {
		fmt.Fprintf(w, "  %s (subject %s)\n", t, eventbus.Subject(t))
	}
}

func validateTypes(types []string) error {
	for _, t := range types {
		known := false
		for _, g := range eventbus.GateEventTypes {
			if t == g {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown event type %q", t)
		}
	}
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(w io.Writer, ev *eventbus.Envelope) {
	fmt.Fprintf(w, "[%s] %s/%s [%s] %s\n",
		ev.Timestamp.Format(timeFormat), ev.Source, ev.EventType, priorityLabel(ev.Priority), ev.ID)

	var payload eventbus.GateEvent
	if err := ev.Decode(&payload); err != nil {
		fmt.Fprintf(w, "  ⚠️ payload: %v\n", err)
		return
	}
	fmt.Fprintf(w, "  Gate: %s Format: %s Origin: %s Facing: %s Mirrored: %v Open: %v\n",
		payload.GateID, payload.Format, payload.Origin, payload.Facing, payload.Mirrored, payload.Open)
	if payload.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", payload.Reason)
	}
}

func priorityLabel(p int) string {
	if p >= 5 {
		return "high"
	}
	return "low"
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
