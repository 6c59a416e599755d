package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	cmd := "status"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "status":
		runStatus()
	case "alerts":
		runAlerts()
	case "history":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: cli history <addr>")
			os.Exit(2)
		}
		runHistory(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want status, alerts or history)\n", cmd)
		os.Exit(2)
	}
}

func apiGet(path string, out any) error {
	base := os.Getenv("API_BASE")
	if base == "" {
		base = "http://localhost:8080"
	}
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return err
	}
	if key := os.Getenv("API_KEY"); key != "" {
		req.Header.Set("X-API-Key", key)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func die(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

type statusRow struct {
	Name             string    `json:"name"`
	Addr             string    `json:"addr"`
	State            string    `json:"state"`
	LatencyMS        *float64  `json:"latency_ms"`
	LastChangeAt     time.Time `json:"last_change_at"`
	ConsecutiveFails int       `json:"consecutive_fails"`
}

func runStatus() {
	var rows []statusRow
	if err := apiGet("/api/status", &rows); err != nil {
		die(err)
	}
	fmt.Printf("%-20s %-16s %-12s %9s %6s  %s\n",
		"NAME", "ADDR", "STATE", "LATENCY", "FAILS", "SINCE")
	for _, r := range rows {
		lat := "-"
		if r.LatencyMS != nil {
			lat = fmt.Sprintf("%.1fms", *r.LatencyMS)
		}
		since := "-"
		if !r.LastChangeAt.IsZero() {
			since = r.LastChangeAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-20s %-16s %-12s %9s %6d  %s\n",
			r.Name, r.Addr, r.State, lat, r.ConsecutiveFails, since)
	}
}

func runAlerts() {
	var out struct {
		Threshold string `json:"threshold"`
		Count     int    `json:"count"`
		Alerts    []struct {
			Name    string    `json:"name"`
			Addr    string    `json:"addr"`
			Since   time.Time `json:"since"`
			DownFor string    `json:"down_for"`
		} `json:"alerts"`
	}
	if err := apiGet("/api/alerts", &out); err != nil {
		die(err)
	}
	if out.Count == 0 {
		fmt.Printf("no targets down longer than %s\n", out.Threshold)
		return
	}
	fmt.Printf("%d target(s) down longer than %s\n", out.Count, out.Threshold)
	for _, a := range out.Alerts {
		fmt.Printf("  %-20s %-16s down %s (since %s)\n",
			a.Name, a.Addr, a.DownFor, a.Since.Local().Format("2006-01-02 15:04:05"))
	}
}

func runHistory(addr string) {
	var out struct {
		Addr    string `json:"addr"`
		Count   int    `json:"count"`
		History []struct {
			State     string    `json:"state"`
			LatencyMS *float64  `json:"latency_ms"`
			At        time.Time `json:"at"`
		} `json:"history"`
	}
	if err := apiGet("/api/targets/"+url.PathEscape(addr)+"/history", &out); err != nil {
		die(err)
	}
	if out.Count == 0 {
		fmt.Printf("no recorded transitions for %s\n", addr)
		return
	}
	fmt.Printf("last %d transition(s) for %s\n", out.Count, out.Addr)
	for _, h := range out.History {
		lat := ""
		if h.LatencyMS != nil {
			lat = fmt.Sprintf(" (%.1fms)", *h.LatencyMS)
		}
		fmt.Printf("  %s  %s%s\n", h.At.Local().Format("2006-01-02 15:04:05"), h.State, lat)
	}
}
