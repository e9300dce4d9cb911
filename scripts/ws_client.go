// Package main runs a demo WebSocket client against a local betlive server:
// it subscribes to a bet, then pushes a pool update through the ingest API
// and prints what arrives on the socket. Run the server with AUTH_MODE=dev.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	betID := "bet_demo"

	// Connect as a regular user.
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/ws/realtime",
		RawQuery: "token=u_demo:user"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m map[string]any
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			out, _ := json.Marshal(m)
			log.Printf("WS <- %s", out)
		}
	}()

	if err := c.WriteJSON(map[string]any{"type": "subscribe_bet", "betId": betID}); err != nil {
		log.Fatal(err)
	}

	// Push a pool update as the settlement service.
	time.Sleep(500 * time.Millisecond)
	body := []byte(`{"type":"pool_update","data":{"poolTotal":500}}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/bets/"+betID+"/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer settlement:service")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("ingest -> %s", resp.Status)

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
