// Package main drives a running bridge through one partner conversation:
// configure the flow, send a few inbound messages, pause and close the
// session, then print the stats.
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 FLOW_URL=https://engine.example FLOW_NAME=my-flow \
//	  ADMIN_JWT_SECRET=... go run ./scripts/smoke
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/flowbridge/internal/http/middleware"
)

const remoteJID = "15005550002@sms"

type step struct {
	name   string
	method string
	path   string
	body   any
	want   int
}

func main() {
	apiBase := strings.TrimRight(envOr("API_BASE_URL", "http://localhost:8080"), "/")
	flowURL := os.Getenv("FLOW_URL")
	flowName := os.Getenv("FLOW_NAME")
	if flowURL == "" || flowName == "" {
		fmt.Fprintln(os.Stderr, "FLOW_URL and FLOW_NAME are required")
		os.Exit(2)
	}

	token := ""
	if secret := os.Getenv("ADMIN_JWT_SECRET"); secret != "" {
		var err error
		token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "smoke",
			Audience:  jwt.ClaimStrings{middleware.AdminAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
		}).SignedString([]byte(secret))
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
			os.Exit(1)
		}
	}

	message := func(text string) map[string]any {
		return map[string]any{
			"key":      map[string]any{"id": fmt.Sprintf("smoke-%d", time.Now().UnixNano()), "remoteJid": remoteJID, "fromMe": false},
			"pushName": "Smoke",
			"message":  map[string]any{"conversation": text},
		}
	}

	steps := []step{
		{"configure flow", http.MethodPut, "/bridge/config", map[string]any{
			"enabled": true, "url": flowURL, "flow": flowName,
			"expire": 5, "keyword_finish": "#sair", "delay_message": 500,
			"unknown_message": "Sorry, I did not understand.", "sessions": []any{},
		}, http.StatusOK},
		{"first message opens a session", http.MethodPost, "/bridge/messages", message("hi"), http.StatusAccepted},
		{"second message resumes", http.MethodPost, "/bridge/messages", message("hello again"), http.StatusAccepted},
		{"pause session", http.MethodPost, "/bridge/status", map[string]any{"remoteJid": remoteJID, "status": "paused"}, http.StatusOK},
		{"paused session ignores input", http.MethodPost, "/bridge/messages", message("anyone?"), http.StatusAccepted},
		{"close session", http.MethodPost, "/bridge/status", map[string]any{"remoteJid": remoteJID, "status": "closed"}, http.StatusOK},
		{"stored config", http.MethodGet, "/bridge/config", nil, http.StatusOK},
		{"stats", http.MethodGet, "/bridge/stats", nil, http.StatusOK},
	}

	client := &http.Client{Timeout: 30 * time.Second}
	failed := 0
	for _, s := range steps {
		status, body, err := call(client, apiBase, token, s)
		switch {
		case err != nil:
			failed++
			fmt.Printf("FAIL %s: %v\n", s.name, err)
		case status != s.want:
			failed++
			fmt.Printf("FAIL %s: status %d, want %d: %s\n", s.name, status, s.want, body)
		default:
			fmt.Printf("PASS %s: %s\n", s.name, body)
		}
	}
	if failed > 0 {
		fmt.Printf("%d of %d steps failed\n", failed, len(steps))
		os.Exit(1)
	}
	fmt.Println("all steps passed")
}

func call(client *http.Client, base, token string, s step) (int, string, error) {
	var body io.Reader
	if s.body != nil {
		data, err := json.Marshal(s.body)
		if err != nil {
			return 0, "", err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(s.method, base+s.path, body)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, strings.TrimSpace(string(data)), nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
