package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Conn sends requests over exactly one TCP connection and never redials.
// net/http's Transport silently retries idempotent requests on a fresh
// connection when a reused one turns out to be closed, which would hide the
// very close the budget probe is looking for.
type Conn struct {
	host    string
	conn    net.Conn
	br      *bufio.Reader
	timeout time.Duration
	broken  error
}

// Dial opens a connection to addr (host:port, an http:// prefix is allowed).
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Conn, error) {
	addr = strings.TrimSuffix(strings.TrimPrefix(addr, "http://"), "/")

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Conn{
		host:    addr,
		conn:    nc,
		br:      bufio.NewReader(nc),
		timeout: timeout,
	}, nil
}

// Put sends one PUT and reads its response. Once a request fails the
// connection is considered dead and every later call fails immediately.
func (c *Conn) Put(remote string, data []byte) (int, error) {
	if c.broken != nil {
		return 0, c.broken
	}
	status, err := c.put(remote, data)
	if err != nil {
		c.broken = fmt.Errorf("connection unusable: %w", err)
	}
	return status, err
}

func (c *Conn) put(remote string, data []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}

	req, err := http.NewRequest(http.MethodPut, "http://"+c.host+"/"+strings.TrimLeft(remote, "/"), bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.ContentLength = int64(len(data))
	if err := req.Write(c.conn); err != nil {
		return 0, fmt.Errorf("write request: %w", err)
	}

	resp, err := http.ReadResponse(c.br, req)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, nil
}

// Upload reads item.Local and PUTs it on this connection.
func (c *Conn) Upload(item Item) Result {
	data, err := readLocal(item)
	if err != nil {
		return Result{Item: item, Err: err}
	}
	status, err := c.Put(item.Remote, data)
	return Result{Item: item, Status: status, Err: err}
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
