package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"timeintern/internal/attendance"
	"timeintern/internal/config"
	"timeintern/internal/queue"
	"timeintern/internal/store"
)

// Worker drains scan events off the queue and persists the audit trail,
// keeping the API's scan path free of extra writes.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	repo := attendance.NewRepository(db.Client)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema setup failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "timeintern:scans")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for scan events...")
	for msg := range messages {
		if msg.Type != "scan" {
			continue
		}

		var evt attendance.ScanEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("scan event decode failed: %v", err)
			continue
		}

		saved, err := repo.InsertScanEvent(ctx, evt)
		if err != nil {
			log.Printf("scan event insert failed (user %s): %v", evt.UserID, err)
			continue
		}
		log.Printf("scan event %s recorded: user=%s outcome=%s action=%s", saved.ID, saved.UserID, saved.Outcome, saved.Action)
	}

	log.Println("worker stopped")
}
