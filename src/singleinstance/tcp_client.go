package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct {
	ports PortRange
}

func newTcpClient(ports PortRange) Client { return &tcpClient{ports: ports.normalize()} }

func (c *tcpClient) Delegate(ctx context.Context, req Request) (bool, string, error) {
	if _, err := ParseAction(string(req.Action)); err != nil {
		return false, "", err
	}
	port, ok := DetectResidentPort(ctx, c.ports)
	if !ok {
		return false, "", nil
	}

	addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, "", nil
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	// Unblock the read below when ctx is cancelled without a deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(req.line()); err != nil {
		return true, "", err
	}
	if err := w.Flush(); err != nil {
		return true, "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		if ctx.Err() != nil {
			return true, "", ctx.Err()
		}
		return true, "", fmt.Errorf("resident closed the connection: %w", err)
	}
	body, _ := io.ReadAll(br)
	switch status {
	case statusSuccess:
		return true, string(body), nil
	case statusError:
		return true, "", errors.New(string(body))
	}
	return true, "", fmt.Errorf("unexpected resident response %q", status)
}
