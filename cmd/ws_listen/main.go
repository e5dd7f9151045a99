package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// envelope mirrors the daemon's websocket frame: {type, ts, data}.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type axisData struct {
	Axis  string `json:"axis"`
	Value uint32 `json:"value"`
}

type buttonData struct {
	Button     string `json:"button"`
	Multiplier int16  `json:"multiplier"`
}

type snapshotData struct {
	Configured bool `json:"configured"`
	Buttons    []struct {
		Name          string `json:"name"`
		Down          bool   `json:"down"`
		RepeatEnabled bool   `json:"repeat_enabled"`
	} `json:"buttons"`
	Axes []struct {
		Name  string `json:"name"`
		Value uint32 `json:"value"`
		Min   uint32 `json:"min"`
		Max   uint32 `json:"max"`
	} `json:"axes"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3002/ws/state", "keymatrixd state websocket URL")
		raw   = flag.Bool("raw", false, "Print frames as received")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	// The daemon pings every 20s; answer with pongs (default handler) and
	// treat 60s of silence as a dead connection.
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			switch messageType {
			case websocket.TextMessage:
				if *raw {
					fmt.Println(string(message))
				} else {
					fmt.Println(formatMessage(message))
				}
			case websocket.BinaryMessage:
				fmt.Printf("[BINARY] %d bytes\n", len(message))
			}
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// formatMessage renders one state frame as a single human-readable block.
func formatMessage(message []byte) string {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return "[TEXT] " + string(message)
	}

	switch env.Type {
	case "axis_changed":
		var a axisData
		if err := json.Unmarshal(env.Data, &a); err == nil {
			return fmt.Sprintf("[AXIS] %s = %d", a.Axis, a.Value)
		}

	case "button_pressed", "button_released", "button_repeat":
		var b buttonData
		if err := json.Unmarshal(env.Data, &b); err == nil {
			action := strings.TrimPrefix(env.Type, "button_")
			if env.Type == "button_repeat" {
				return fmt.Sprintf("[BUTTON] %s repeat x%d", b.Button, b.Multiplier)
			}
			return fmt.Sprintf("[BUTTON] %s %s", b.Button, action)
		}

	case "state_init":
		var s snapshotData
		if err := json.Unmarshal(env.Data, &s); err == nil {
			return formatSnapshot(s)
		}
	}

	return fmt.Sprintf("[%s] %s", strings.ToUpper(env.Type), string(env.Data))
}

func formatSnapshot(s snapshotData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[STATE] configured=%v", s.Configured)

	var down []string
	for _, btn := range s.Buttons {
		if btn.Down {
			down = append(down, btn.Name)
		}
	}
	sort.Strings(down)
	fmt.Fprintf(&b, " buttons=%d down=[%s]", len(s.Buttons), strings.Join(down, ","))

	for _, a := range s.Axes {
		fmt.Fprintf(&b, "\n  %s = %d (%d..%d)", a.Name, a.Value, a.Min, a.Max)
	}
	return b.String()
}
