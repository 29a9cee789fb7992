package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timeintern/internal/config"
	"timeintern/internal/scanclient"
	"timeintern/internal/scanner"
	"timeintern/internal/token"
)

// Scanner is the intern-side device loop. Camera capture and QR frame
// decoding happen outside this process; each decoded payload arrives as
// one line on stdin, which matches the one-frame-at-a-time cadence of a
// camera callback.
func main() {
	cfg := config.Load()

	apiURL := os.Getenv("SCANNER_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:" + cfg.HTTPPort
	}
	apiToken := os.Getenv("SCANNER_API_TOKEN")
	if apiToken == "" {
		log.Fatal("SCANNER_API_TOKEN required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	session := scanner.NewSession(scanclient.New(apiURL, apiToken), cfg.QRTTL)
	defer session.Close()

	log.Println("scanner ready, reading decoded frames from stdin")
	lines := bufio.NewScanner(os.Stdin)
	for lines.Scan() {
		if ctx.Err() != nil {
			break
		}
		raw := lines.Text()
		if raw == "" {
			continue
		}

		res := session.Scan(ctx, raw, time.Now())
		switch {
		case res.Err == nil:
			log.Printf("%s: user %s at %s", res.Action, res.Scan.UserID, res.Record.TimeIn.Format(time.RFC3339))
		case errors.Is(res.Err, token.ErrMalformedCode):
			log.Println("invalid QR code")
		case errors.Is(res.Err, token.ErrDuplicateScan):
			log.Println("wait for a new code before scanning again")
		case errors.Is(res.Err, token.ErrExpired):
			log.Println("code expired, scan the next one")
		default:
			// Transient transport failure; not retried, the next
			// rotation produces a fresh attempt.
			log.Printf("scan not recorded: %v", res.Err)
		}
	}
	if err := lines.Err(); err != nil {
		log.Printf("stdin read failed: %v", err)
	}
	log.Println("scanner stopped")
}
