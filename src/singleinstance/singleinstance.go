package singleinstance

// This file defines the API for single-instance ownership and delegation to the resident app.

import (
	"context"
	"fmt"
	"strings"
)

// Action is what a client asks the resident app to do.
type Action string

const (
	// ActionCapture lets the user select a region, then extracts and saves it.
	ActionCapture Action = "CAPTURE"
	// ActionQuick re-captures the last selected region and saves it.
	ActionQuick Action = "QUICK"
	// ActionRemoveLast drops the last saved row.
	ActionRemoveLast Action = "REMOVE_LAST"
)

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case ActionCapture, ActionQuick, ActionRemoveLast:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Server owns the TCP endpoint and answers delegated requests.
type Server interface {
	// Start listens on the first port of the range. A taken port means another resident owns it.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondSuccess sends success followed by text (may be empty).
	RespondSuccess(text string) error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// Request represents a single delegated request.
type Request struct {
	Action Action
	// OutputToStdout asks for the saved rows as JSON instead of a status line.
	OutputToStdout bool
}

func (r Request) line() string {
	if r.OutputToStdout {
		return string(r.Action) + " STDOUT\n"
	}
	return string(r.Action) + "\n"
}

func parseRequest(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || len(fields) > 2 {
		return Request{}, fmt.Errorf("malformed request %q", strings.TrimSpace(line))
	}
	action, err := ParseAction(fields[0])
	if err != nil {
		return Request{}, err
	}
	req := Request{Action: action}
	if len(fields) == 2 {
		if fields[1] != "STDOUT" {
			return Request{}, fmt.Errorf("malformed request %q", strings.TrimSpace(line))
		}
		req.OutputToStdout = true
	}
	return req, nil
}

// Client attempts to delegate a request to a resident server.
type Client interface {
	// Delegate scans the port range, performs the PING handshake, and hands req to the resident.
	// If no resident is found, returns delegated=false, err=nil.
	Delegate(ctx context.Context, req Request) (delegated bool, text string, err error)
}

// NewServer returns TCP implementation.
func NewServer(ports PortRange) Server { return newTcpServer(ports) }

// NewClient returns TCP implementation.
func NewClient(ports PortRange) Client { return newTcpClient(ports) }
