package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/recallhq/recall/internal/graph"
)

// memstat inspects the memory database from the command line
func main() {
	godotenv.Load()

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}

	cmd := "summary"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	store, err := graph.Open(statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch cmd {
	case "summary":
		handleSummary(store)
	case "entities":
		handleEntities(store, os.Args[2:])
	case "search":
		handleSearch(store, os.Args[2:])
	case "stale":
		handleStale(store, os.Args[2:])
	case "cost":
		handleCost(store, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`memstat - Inspect the memory database

Usage: memstat <command> [options]

Commands:
  summary              Overview of the knowledge graph (default)
  entities [n]         Top n entities by importance (default 20)
  search <query>       Search entities and facts
  stale [n]            Top n stalest summary nodes (default 10)
  cost [days]          Cost report for the last n days (default 7)

Environment:
  STATE_PATH           State directory (default: "state")`)
}

func handleSummary(store graph.Store) {
	entities, err := store.FindEntities(graph.EntityQuery{Limit: 10_000})
	if err != nil {
		fail(err)
	}
	facts, err := store.FindFacts(graph.FactQuery{Limit: 10_000})
	if err != nil {
		fail(err)
	}
	summaries, err := store.GetStalestSummaries(10_000)
	if err != nil {
		fail(err)
	}
	today, err := store.GetTotalCostToday()
	if err != nil {
		fail(err)
	}

	byType := make(map[graph.EntityType]int)
	for _, e := range entities {
		byType[e.EntityType]++
	}

	fmt.Println("Memory Summary")
	fmt.Println("==============")
	fmt.Printf("Entities:   %d\n", len(entities))
	for _, t := range []graph.EntityType{graph.EntityPerson, graph.EntityOrganization,
		graph.EntityTool, graph.EntityProject, graph.EntityConcept} {
		if byType[t] > 0 {
			fmt.Printf("  %-10s %d\n", string(t)+":", byType[t])
		}
	}
	fmt.Printf("Facts:      %d\n", len(facts))
	fmt.Printf("Summaries:  %d\n", len(summaries))
	fmt.Printf("Cost today: $%.4f\n", today)
}

func handleEntities(store graph.Store, args []string) {
	limit := 20
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}

	entities, err := store.FindEntities(graph.EntityQuery{Limit: limit})
	if err != nil {
		fail(err)
	}
	for _, e := range entities {
		fmt.Printf("%.2f  %-30s %-12s %s\n", e.Importance, e.Name, e.EntityType, e.Description)
	}
}

func handleSearch(store graph.Store, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: memstat search <query>")
		os.Exit(1)
	}
	query := args[0]

	entities, err := store.SearchEntities(query, 10)
	if err != nil {
		fail(err)
	}
	if len(entities) > 0 {
		fmt.Println("Entities:")
		for _, e := range entities {
			fmt.Printf("  %s (%s) importance=%.2f accesses=%d\n",
				e.Name, e.EntityType, e.Importance, e.AccessCount)
		}
	}

	facts, err := store.SearchFacts(query, 10)
	if err != nil {
		fail(err)
	}
	if len(facts) > 0 {
		fmt.Println("Facts:")
		for _, f := range facts {
			fmt.Printf("  %s %s %s (%.2f)\n", f.Subject, f.Predicate, f.Object, f.Confidence)
		}
	}

	if len(entities) == 0 && len(facts) == 0 {
		fmt.Println("No matches")
	}
}

func handleStale(store graph.Store, args []string) {
	limit := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}

	summaries, err := store.GetStalestSummaries(limit)
	if err != nil {
		fail(err)
	}
	fmt.Printf("%-8s %-8s %-20s %s\n", "score", "events", "key", "last refreshed")
	for _, s := range summaries {
		refreshed := "never"
		if !s.LastRefreshedAt.IsZero() {
			refreshed = s.LastRefreshedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-8.1f %-8d %-20s %s\n", s.StalenessScore, s.EventsSinceRefresh, s.NodeKey, refreshed)
	}
}

func handleCost(store graph.Store, args []string) {
	days := 7
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			days = n
		}
	}

	to := time.Now()
	from := to.AddDate(0, 0, -days)
	report, err := store.GetCostReport(from, to)
	if err != nil {
		fail(err)
	}

	fmt.Printf("Cost report, last %d days\n", days)
	fmt.Printf("Calls:  %d\n", report.Calls)
	fmt.Printf("Tokens: %d in, %d out\n", report.InputTokens, report.OutputTokens)
	fmt.Printf("Total:  $%.4f\n", report.TotalCost)
	for model, cost := range report.ByModel {
		fmt.Printf("  %-28s $%.4f\n", model, cost)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
