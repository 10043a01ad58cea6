package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type adminState struct {
	GameID  string          `json:"game_id"`
	Seq     uint64          `json:"seq"`
	Digest  string          `json:"digest"`
	Admins  []string        `json:"admins"`
	Metrics json.RawMessage `json:"metrics"`
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url (admin endpoints are loopback-only)")
	raw := fs.Bool("raw", false, "print the response body as is")
	_ = fs.Parse(args)

	body, err := adminCall(http.MethodGet, *baseURL, "/admin/v1/state", 5*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *raw {
		fmt.Println(string(body))
		return
	}
	var st adminState
	if err := json.Unmarshal(body, &st); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	fmt.Printf("game=%s seq=%d digest=%s admins=%d\n", st.GameID, st.Seq, st.Digest, len(st.Admins))
	fmt.Println(string(st.Metrics))
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url (admin endpoints are loopback-only)")
	_ = fs.Parse(args)

	body, err := adminCall(http.MethodPost, *baseURL, "/admin/v1/snapshot", 10*time.Second)
	fmt.Println(strings.TrimSpace(string(body)))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// adminCall returns the body even on a non-2xx status so callers can show it.
func adminCall(method, baseURL, path string, timeout time.Duration) ([]byte, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return nil, err
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return b, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return b, nil
}
