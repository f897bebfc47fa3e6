package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture-extractor/src/singleinstance"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{}))
	assert.Equal(t, 50, opts.n)
	assert.Equal(t, "remove-last", opts.action)
	assert.Equal(t, 5*time.Second, opts.deadline)
	assert.Equal(t, singleinstance.DefaultPorts().Start, opts.portStart)
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--n", "3", "--concurrency", "2", "--progress", "--action", "quick", "--stdout", "--deadline", "7s", "--port-start", "9000", "--port-end", "9001"}))
	assert.Equal(t, stressOptions{n: 3, concurrency: 2, progress: true, action: "quick", stdout: true, deadline: 7 * time.Second, portStart: 9000, portEnd: 9001}, *opts)
}

func TestCountsRecord(t *testing.T) {
	var c counts
	c.record(false, nil)
	c.record(true, nil)
	c.record(true, errors.New("busy, please retry"))
	c.record(true, context.DeadlineExceeded)
	c.record(true, errors.New("boom"))
	assert.Equal(t, counts{ok: 1, busy: 1, missing: 1, failed: 2}, c)
}

func TestRunWithoutResident(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	var out, bar bytes.Buffer
	err = runWithOptions(context.Background(), &out, &bar, stressOptions{n: 3, concurrency: 1, action: "capture", deadline: time.Second, portStart: port, portEnd: port})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "launched=3 ok=0 busy=0 no_resident=3 err=0")

	err = runWithOptions(context.Background(), &out, nil, stressOptions{n: 1, action: "explode"})
	assert.Error(t, err)
}
