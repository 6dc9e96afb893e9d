package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ironlady-io/bridge/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "health":
		cmdHealth()
	case "chat":
		cmdChat(os.Args[2:])
	case "tickets":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: bridgectl tickets <list|show|reply|resolve|escalate>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "list":
			cmdTicketsList()
		case "show":
			cmdTicketsShow(arg(3, "bridgectl tickets show <id>"))
		case "reply":
			id := arg(3, "bridgectl tickets reply <id> <text>")
			cmdTicketsReply(id, arg(4, "bridgectl tickets reply <id> <text>"))
		case "resolve":
			cmdTicketsAction(arg(3, "bridgectl tickets resolve <id>"), "resolve")
		case "escalate":
			cmdTicketsAction(arg(3, "bridgectl tickets escalate <id>"), "escalate")
		default:
			fmt.Fprintf(os.Stderr, "unknown tickets subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "stats":
		cmdStats()
	case "logs":
		cmdLogs()
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: bridgectl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func arg(i int, usage string) string {
	if len(os.Args) <= i {
		fmt.Fprintln(os.Stderr, "usage: "+usage)
		os.Exit(1)
	}
	return os.Args[i]
}

// cmdChat drives a visitor session interactively, rendering choices as a
// numbered menu. Useful for exercising the flow without a browser.
func cmdChat(args []string) {
	sessionID := "ctl"
	if len(args) > 0 {
		sessionID = args[0]
	}

	snap := getSnapshot(sessionID)
	printNewTurns(snap, 0)
	seen := countMessages(snap)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" {
			return
		}
		if input == "/reset" {
			snap = postSnapshot(sessionID, "/reset", nil)
			printNewTurns(snap, 0)
			seen = countMessages(snap)
			continue
		}

		choices := snapChoices(snap)
		var n int
		if _, err := fmt.Sscanf(input, "%d", &n); err == nil && n >= 1 && n <= len(choices) {
			snap = postSnapshot(sessionID, "/choices", choices[n-1])
		} else {
			snap = postSnapshot(sessionID, "/messages", map[string]string{"text": input})
		}
		printNewTurns(snap, seen)
		seen = countMessages(snap)
	}
}

func getSnapshot(sessionID string) map[string]any {
	body, err := apiGet("/api/sessions/" + sessionID)
	if err != nil {
		fatal(err)
	}
	var snap map[string]any
	json.Unmarshal(body, &snap)
	return snap
}

func postSnapshot(sessionID, action string, payload any) map[string]any {
	body, err := apiPost("/api/sessions/"+sessionID+action, payload)
	if err != nil {
		fatal(err)
	}
	var snap map[string]any
	json.Unmarshal(body, &snap)
	return snap
}

func snapChoices(snap map[string]any) []map[string]any {
	raw, _ := snap["choices"].([]any)
	choices := make([]map[string]any, 0, len(raw))
	for _, c := range raw {
		if m, ok := c.(map[string]any); ok {
			choices = append(choices, m)
		}
	}
	return choices
}

func countMessages(snap map[string]any) int {
	msgs, _ := snap["messages"].([]any)
	return len(msgs)
}

func printNewTurns(snap map[string]any, seen int) {
	msgs, _ := snap["messages"].([]any)
	for i := seen; i < len(msgs); i++ {
		m, ok := msgs[i].(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		text, _ := m["text"].(string)
		if role == "user" {
			continue
		}
		fmt.Printf("[%s] %s\n", role, text)
	}
	for i, c := range snapChoices(snap) {
		fmt.Printf("  %d) %v\n", i+1, c["label"])
	}
}

func cmdHealth() {
	body, err := apiGet("/api/health")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(body))
}

func cmdTicketsList() {
	body, err := apiGet("/api/tickets")
	if err != nil {
		fatal(err)
	}
	var tickets []map[string]any
	json.Unmarshal(body, &tickets)
	for _, t := range tickets {
		fmt.Printf("%-16s %-10s %-8s %s\n", t["id"], t["status"], t["priority"], t["learnerName"])
	}
}

func cmdTicketsShow(id string) {
	body, err := apiGet("/api/tickets/" + id)
	if err != nil {
		fatal(err)
	}
	fmt.Println(prettyJSON(body))
}

func cmdTicketsReply(id, text string) {
	body, err := apiPost("/api/tickets/"+id+"/reply", map[string]string{"text": text})
	if err != nil {
		fatal(err)
	}
	fmt.Println(prettyJSON(body))
}

func cmdTicketsAction(id, action string) {
	body, err := apiPost("/api/tickets/"+id+"/"+action, nil)
	if err != nil {
		fatal(err)
	}
	fmt.Println(prettyJSON(body))
}

func cmdStats() {
	body, err := apiGet("/api/stats")
	if err != nil {
		fatal(err)
	}
	fmt.Println(prettyJSON(body))
}

func cmdLogs() {
	body, err := apiGet("/api/logs?limit=100")
	if err != nil {
		fatal(err)
	}
	var records []map[string]any
	json.Unmarshal(body, &records)
	for _, r := range records {
		fmt.Printf("%-6s %s\n", r["level"], r["message"])
	}
}

func cmdConfigValidate(path string) {
	if _, err := config.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func apiGet(path string) ([]byte, error) {
	return apiDo("GET", path, nil)
}

func apiPost(path string, payload any) ([]byte, error) {
	return apiDo("POST", path, payload)
}

func apiDo(method, path string, payload any) ([]byte, error) {
	base := envOr("BRIDGE_API_URL", "http://localhost:8080")

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, base+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := os.Getenv("BRIDGE_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println("bridgectl - ticketing bridge CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  chat [session]          Interactive visitor chat against the daemon")
	fmt.Println("  health                  Check daemon health")
	fmt.Println("  tickets list            List tickets")
	fmt.Println("  tickets show <id>       Show ticket thread")
	fmt.Println("  tickets reply <id> <t>  Send an agent reply")
	fmt.Println("  tickets resolve <id>    Resolve a ticket")
	fmt.Println("  tickets escalate <id>   Escalate a ticket")
	fmt.Println("  stats                   Ticket counts by status")
	fmt.Println("  logs                    Recent daemon logs")
	fmt.Println("  config validate <p>     Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  BRIDGE_API_URL          Daemon URL (default: http://localhost:8080)")
}
