package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/mkarlsen/world-engine/internal/services/queue"
)

func main() {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	client, err := queue.NewClient(redisURL, logger)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer client.Close()

	ctx := context.Background()
	events := queue.NewTurnEventQueue(client, logger)

	fmt.Println("Connected to Redis successfully!")

	sessionID := uuid.MustParse("00000000-0000-0000-0000-000000000001") // Test session ID

	// Publish a sample of each mutating turn kind
	samples := []queue.TurnEvent{
		{
			Kind:    queue.TurnAction,
			Summary: "Player rested at the tavern",
		},
		{
			Kind:      queue.TurnModification,
			Summary:   "Renamed iron_sword to 'Rust-Kissed Blade'",
			ChangeIDs: []string{uuid.New().String()},
		},
		{
			Kind:    queue.TurnConversation,
			Summary: "Asked the barkeep about the cellar",
		},
	}

	for _, event := range samples {
		if err := events.Enqueue(ctx, sessionID, event); err != nil {
			log.Fatal("Failed to enqueue event:", err)
		}
		fmt.Printf("✅ Enqueued %s event: %s\n", event.Kind, event.Summary)
	}

	// Check feed depth
	depth, err := events.Len(ctx, sessionID)
	if err != nil {
		log.Fatal("Failed to get feed depth:", err)
	}

	fmt.Printf("\n📊 Feed depth: %d events\n", depth)
	fmt.Println("\n💡 Now start the worker to see it archive these events!")
	fmt.Println("   Run: go run cmd/worker/main.go")
}
