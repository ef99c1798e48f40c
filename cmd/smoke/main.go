// Smoke exercises a running merita-api end to end: issue a dev token,
// send a value token, accept it as the recipient, and verify the
// recipient's cumulative total moved by exactly the sent amount.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

type tokenResponse struct {
	Token string `json:"token"`
}

type valueToken struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

type snapshot struct {
	Pending    int64 `json:"pending"`
	Cumulative int64 `json:"cumulative"`
}

func main() {
	base := os.Getenv("MERITA_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}

	sender := bearerFor(client, base, map[string]any{
		"user_id": "smoke-sender", "first_name": "Smoke", "last_name": "Sender",
	})
	recipient := bearerFor(client, base, map[string]any{
		"user_id": "smoke-recipient", "email": "smoke-recipient@example.com", "first_name": "Kim",
	})

	const amount = int64(30_000)
	var created valueToken
	do(client, http.MethodPost, base+"/v1/tokens", sender, map[string]any{
		"batch_id":       1,
		"to_user_id":     "smoke-recipient",
		"receiver_name":  "Kim",
		"receiver_email": "smoke-recipient@example.com",
		"amount":         amount,
		"category":       "smoke",
		"message":        "smoke test",
	}, http.StatusCreated, &created)
	if created.Status != "pending" {
		log.Fatalf("expected pending token, got %q", created.Status)
	}

	var before snapshot
	do(client, http.MethodGet, base+"/v1/stats?batch_id=1", recipient, nil, http.StatusOK, &before)
	if before.Pending < amount {
		log.Fatalf("pending %d does not include sent amount %d", before.Pending, amount)
	}

	var accepted valueToken
	do(client, http.MethodPost, fmt.Sprintf("%s/v1/tokens/%d/accept", base, created.ID), recipient, nil, http.StatusOK, &accepted)
	if accepted.Status != "accepted" {
		log.Fatalf("expected accepted token, got %q", accepted.Status)
	}

	var after snapshot
	do(client, http.MethodGet, base+"/v1/stats?batch_id=1", recipient, nil, http.StatusOK, &after)
	if after.Cumulative != before.Cumulative+amount {
		log.Fatalf("cumulative moved %d -> %d, want +%d", before.Cumulative, after.Cumulative, amount)
	}

	fmt.Printf("✅ merita smoke test passed: token=%d\n", created.ID)
}

func bearerFor(client *http.Client, base string, identity map[string]any) string {
	var resp tokenResponse
	do(client, http.MethodPost, base+"/v1/auth/token", "", identity, http.StatusOK, &resp)
	return resp.Token
}

func do(client *http.Client, method, url, bearer string, body any, wantStatus int, out any) {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			log.Fatalf("marshal %s %s: %v", method, url, err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		log.Fatalf("new request %s %s: %v", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", method, url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
}
