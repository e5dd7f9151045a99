package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// matrixctl - Command-line IPC Client
// ============================================================================
// Sends commands to the keymatrixd daemon via its Unix domain socket.
//
// Usage:
//   matrixctl press select
//   matrixctl tap up
//   matrixctl repeat down off
//   matrixctl set value 250
//   matrixctl state
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/keymatrixd.sock)
// ============================================================================

const defaultSocketPath = "/tmp/keymatrixd.sock"

// tapHold must exceed the daemon's debounce window so a tap registers.
const tapHold = 80 * time.Millisecond

// CommandEnvelope wraps commands for JSON (duplicated from the daemon for a standalone binary)
type CommandEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

var errUsage = errors.New("usage")

func main() {
	socketPath := defaultSocketPath

	args := os.Args[1:]
	if len(args) >= 1 && (args[0] == "-socket" || args[0] == "--socket") {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return
	}

	cmds, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			printUsage()
		}
		os.Exit(1)
	}

	printed := false
	for i, cmd := range cmds {
		if i > 0 {
			time.Sleep(tapHold)
		}
		data, err := send(socketPath, cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(data) > 0 {
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, data, "", "  "); err != nil {
				fmt.Println(string(data))
			} else {
				fmt.Println(pretty.String())
			}
			printed = true
		}
	}

	if !printed {
		fmt.Println("ok")
	}
}

// parseCommand maps command-line arguments to the envelopes to send, in
// order.
func parseCommand(args []string) ([]CommandEnvelope, error) {
	need := func(n int, what string) error {
		if len(args) < n+1 {
			return fmt.Errorf("%w: %s requires %s", errUsage, args[0], what)
		}
		return nil
	}

	switch args[0] {
	case "press":
		if err := need(1, "a button name"); err != nil {
			return nil, err
		}
		return []CommandEnvelope{simCommand("sim_press", args[1])}, nil

	case "release":
		if err := need(1, "a button name"); err != nil {
			return nil, err
		}
		return []CommandEnvelope{simCommand("sim_release", args[1])}, nil

	case "tap":
		if err := need(1, "a button name"); err != nil {
			return nil, err
		}
		return []CommandEnvelope{
			simCommand("sim_press", args[1]),
			simCommand("sim_release", args[1]),
		}, nil

	case "repeat":
		if err := need(2, "a button name and on|off"); err != nil {
			return nil, err
		}
		var enabled bool
		switch args[2] {
		case "on", "true", "1":
			enabled = true
		case "off", "false", "0":
		default:
			return nil, fmt.Errorf("invalid repeat state %q (want on or off)", args[2])
		}
		return []CommandEnvelope{{
			Type: "set_repeat",
			Data: map[string]any{"button": args[1], "enabled": enabled},
		}}, nil

	case "set":
		if err := need(2, "an axis name and a value"); err != nil {
			return nil, err
		}
		v, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid axis value: %w", err)
		}
		return []CommandEnvelope{{
			Type: "set_axis",
			Data: map[string]any{"axis": args[1], "value": uint32(v)},
		}}, nil

	case "state":
		return []CommandEnvelope{{Type: "get_state"}}, nil

	default:
		return nil, fmt.Errorf("%w: unknown command: %s", errUsage, args[0])
	}
}

func simCommand(typ, button string) CommandEnvelope {
	return CommandEnvelope{Type: typ, Data: map[string]string{"button": button}}
}

func send(socketPath string, cmd CommandEnvelope) (json.RawMessage, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}

	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if response.Status == "error" {
		return nil, fmt.Errorf("daemon error: %s", response.Error)
	}
	return response.Data, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `matrixctl - Control the keymatrixd daemon via IPC

Usage:
  matrixctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: %s)

Commands:
  press <button>              Close a switch (sim backend only)
  release <button>            Open a switch (sim backend only)
  tap <button>                Press, hold briefly, release (sim backend only)
  repeat <button> on|off      Enable or disable auto-repeat for a button
  set <axis> <value>          Set an axis value
  state                       Print buttons and axes
  help, -h, --help            Show this help message

Examples:
  matrixctl tap up
  matrixctl set value 250
  matrixctl -socket /run/keymatrixd.sock state
`, defaultSocketPath)
}
