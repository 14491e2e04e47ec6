package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	gws "github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"doc-sync/infrastructure/websocket"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"SYNC_SERVER_ADDR,default=localhost:8080"`
	DocumentID    string `env:"SYNC_DOCUMENT_ID,required=true"`
	Token         string `env:"SYNC_TOKEN,required=true"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

// run handles the WebSocket client lifecycle: connect, join the document,
// print everything the server pushes, and send each stdin line as a full
// content update.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Establish the authenticated WebSocket connection.
	header := http.Header{}
	header.Set("Authorization", "Bearer "+config.Token)
	url := fmt.Sprintf("ws://%s/ws", config.ServerAddress)
	conn, _, err := gws.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	// 4. Join the document.
	if err := send(conn, websocket.TypeJoinDocument, websocket.JoinDocumentPayload{
		DocumentID: config.DocumentID,
	}); err != nil {
		return exitRuntime, err
	}

	color.Green.Printf(">>> Connected to %s, document %s (Ctrl+C to quit)\n",
		config.ServerAddress, config.DocumentID)

	// 5. Reception loop: print states, broadcasts and errors as they arrive.
	go func() {
		for {
			var envelope websocket.Envelope
			if err := conn.ReadJSON(&envelope); err != nil {
				if ctx.Err() == nil {
					log.Error("Connection lost", "error", err)
				}
				stop()
				return
			}
			printEnvelope(envelope)
		}
	}()

	// 6. Each stdin line replaces the whole document content.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if err := send(conn, websocket.TypeDocumentUpdated, websocket.DocumentUpdatedPayload{
				ID:      config.DocumentID,
				Content: line,
			}); err != nil {
				return exitRuntime, err
			}
		}
	}
}

func send(conn *gws.Conn, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(websocket.Envelope{Type: eventType, Payload: data})
}

func printEnvelope(envelope websocket.Envelope) {
	switch envelope.Type {
	case websocket.TypeDocumentState:
		var state websocket.DocumentStatePayload
		_ = json.Unmarshal(envelope.Payload, &state)
		color.Cyan.Printf("[state] %s\n", state.Content)
	case websocket.TypeDocumentBroadcast:
		var broadcast websocket.DocumentBroadcastPayload
		_ = json.Unmarshal(envelope.Payload, &broadcast)
		color.Yellow.Printf("[%s] %s\n", broadcast.UserID, broadcast.Content)
	case websocket.TypeError:
		color.Red.Printf("[error] %s\n", string(envelope.Payload))
	default:
		fmt.Printf("[%s] %s\n", envelope.Type, string(envelope.Payload))
	}
}
