package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/metadiscourse/metaworkshop/go/clients"
	"github.com/metadiscourse/metaworkshop/go/internal/models"
)

// Drives a full session against a running server: card submissions
// (including a deliberate duplicate), a reveal, a bonk burst dense enough
// to fire a combo, and a summary readback.
func main() {
	baseURL := envOr("SERVER_URL", "http://localhost:8080")
	sessionCode := envOr("SESSION_CODE", "SIM1")
	token := os.Getenv("SESSION_AUTHORITY_TOKEN")
	if token == "" {
		fmt.Fprintln(os.Stderr, "SESSION_AUTHORITY_TOKEN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client := clients.NewSessionClient(baseURL, sessionCode).WithAuthority(token)

	cards := []string{
		"Shared vocabulary builds faster than shared tooling",
		"Nobody reads the onboarding doc twice",
		"Retros without actions are theater",
		"retros without actions are theater!", // normalizes to a duplicate
		"Small batches beat big launches",
		"Pairing spreads context, reviews spread blame",
	}

	var accepted, rejected int
	for i, text := range cards {
		playerID := fmt.Sprintf("sim-player-%d", i%3)
		ok, err := client.SubmitCard(ctx, text, playerID, models.CardPhasePre)
		if err != nil {
			fmt.Fprintf(os.Stderr, "submit card: %v\n", err)
			os.Exit(1)
		}
		if ok {
			accepted++
		} else {
			rejected++
		}
	}
	fmt.Printf("submitted %d cards: %d accepted, %d duplicates\n", len(cards), accepted, rejected)

	if err := client.TriggerReveal(ctx, "sim-coordinator"); err != nil {
		fmt.Fprintf(os.Stderr, "trigger reveal: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("reveal started, waiting for waves to land")
	time.Sleep(3 * time.Second)

	revealed, err := client.ListCards(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list cards: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("session holds %d cards\n", len(revealed))

	// Two bonks on the same cluster inside the detection window
	clusterID := "cluster-1"
	for _, playerID := range []string{"sim-player-0", "sim-player-1"} {
		result, err := client.BonkCard(ctx, clusterID, playerID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bonk: %v\n", err)
			os.Exit(1)
		}
		if result.Detected {
			fmt.Printf("combo on %s with %d bonks\n", result.ClusterID, result.ComboCount)
		}
	}

	summary, err := client.Summary(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "summary: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("summary: %d cards, %d bonks, %d combos\n",
		summary.NumCards, summary.NumBonks, len(summary.Combos))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
