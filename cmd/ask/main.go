package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type client struct {
	server  string
	session string
	http    *http.Client
	last    []step
}

type step struct {
	Action      string `json:"action"`
	ActionInput string `json:"action_input"`
	Log         string `json:"log"`
	Observation string `json:"observation"`
	Invalid     bool   `json:"invalid"`
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Pitchside server URL")
	competition := flag.Int("competition", 0, "Competition id of the match")
	season := flag.Int("season", 0, "Season id of the match")
	matchID := flag.Int("match", 0, "Match id to analyse")
	flag.Parse()

	c := &client{
		server: strings.TrimRight(*server, "/"),
		http:   &http.Client{Timeout: 180 * time.Second},
	}

	fmt.Println("Pitchside CLI")
	fmt.Printf("Server: %s\n", c.server)
	fmt.Println("Type 'exit' or 'quit' to leave. Anything else is asked to the analyst.")
	fmt.Println("Commands: /match <competition> <season> <match>, /overview, /players, /narrate [style], /steps")
	fmt.Println("---")

	if err := c.open(); err != nil {
		printError("Failed to open session: %v", err)
		os.Exit(1)
	}
	defer c.close()

	if *matchID != 0 {
		c.selectMatch(*competition, *season, *matchID)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if strings.HasPrefix(input, "/") {
			c.command(input)
			continue
		}
		c.ask(input)
	}
}

func (c *client) command(input string) {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/match":
		if len(fields) != 4 {
			printError("usage: /match <competition> <season> <match>")
			return
		}
		ids := make([]int, 3)
		for i, f := range fields[1:] {
			n, err := strconv.Atoi(f)
			if err != nil {
				printError("invalid id %q", f)
				return
			}
			ids[i] = n
		}
		c.selectMatch(ids[0], ids[1], ids[2])
	case "/overview":
		var ov overview
		if err := c.do(http.MethodGet, "/overview", nil, &ov); err != nil {
			printError("%v", err)
			return
		}
		ov.print()
	case "/players":
		var resp struct {
			Teams []struct {
				Team    string   `json:"team"`
				Players []string `json:"players"`
			} `json:"teams"`
		}
		if err := c.do(http.MethodGet, "/players", nil, &resp); err != nil {
			printError("%v", err)
			return
		}
		for _, t := range resp.Teams {
			fmt.Printf("\033[36m%s\033[0m\n", t.Team)
			for _, p := range t.Players {
				fmt.Printf("  %s\n", p)
			}
		}
	case "/narrate":
		style := ""
		if len(fields) > 1 {
			style = fields[1]
		}
		var resp struct {
			Style   string `json:"style"`
			Content string `json:"content"`
		}
		if err := c.do(http.MethodPost, "/narration", map[string]string{"style": style}, &resp); err != nil {
			printError("%v", err)
			return
		}
		fmt.Printf("\033[36m[%s]\033[0m %s\n", resp.Style, resp.Content)
	case "/steps":
		if len(c.last) == 0 {
			fmt.Println("No reasoning steps recorded yet.")
			return
		}
		for i, s := range c.last {
			marker := ""
			if s.Invalid {
				marker = " (invalid)"
			}
			fmt.Printf("%d. %s%s\n   %s\n", i+1, s.Action, marker, strings.ReplaceAll(strings.TrimSpace(s.Log), "\n", "\n   "))
		}
	default:
		printError("unknown command %s", fields[0])
	}
}

type overview struct {
	Result  string `json:"result"`
	Context string `json:"context"`
}

func (o overview) print() {
	fmt.Printf("\033[1m%s\033[0m\n%s\n", o.Result, o.Context)
}

func (c *client) open() error {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.request(http.MethodPost, c.server+"/api/sessions", nil, &resp); err != nil {
		return err
	}
	c.session = resp.SessionID
	return nil
}

func (c *client) close() {
	_ = c.request(http.MethodDelete, c.server+"/api/sessions/"+c.session, nil, nil)
}

func (c *client) selectMatch(competition, season, matchID int) {
	body := map[string]int{
		"competition_id": competition,
		"season_id":      season,
		"match_id":       matchID,
	}
	fmt.Println("Loading match data...")
	var ov overview
	if err := c.do(http.MethodPut, "/match", body, &ov); err != nil {
		printError("Failed to select match: %v", err)
		return
	}
	c.last = nil
	ov.print()
}

func (c *client) ask(question string) {
	var result struct {
		Output  string `json:"output"`
		Outcome string `json:"outcome"`
		Steps   []step `json:"intermediate_steps"`
	}
	if err := c.do(http.MethodPost, "/ask", map[string]string{"question": question}, &result); err != nil {
		printError("%v", err)
		return
	}
	c.last = result.Steps
	if result.Outcome != "final_answer" {
		fmt.Printf("\033[33m[%s]\033[0m ", result.Outcome)
	}
	fmt.Println(result.Output)
}

func (c *client) do(method, path string, body, out interface{}) error {
	return c.request(method, c.server+"/api/sessions/"+c.session+path, body, out)
}

func (c *client) request(method, url string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
