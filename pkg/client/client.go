package client

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client talks to the beamd daemon over its unix socket.
type Client struct {
	socketPath string
	httpClient *http.Client
}

// NewClient returns a client bound to the given unix socket path.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
					conn, err := net.Dial("unix", socketPath)
					if err != nil {
						// A missing socket and a stale one read the same
						// to the caller: no daemon.
						if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
							return nil, ErrDaemonNotRunning
						}
						if errors.Is(err, os.ErrPermission) {
							return nil, ErrPermissionDenied
						}
						logrus.Errorf("failed to connect to unix socket: %v", err)
						return nil, err
					}
					return conn, err
				},
			},
		},
	}
}

// Send issues one request against the daemon. Bodies travel as raw strings;
// the typed helpers live in apis.go.
func (c *Client) Send(method string, path string, data string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"data":   data,
		"unix":   c.socketPath,
	}).Debug("sending request")

	url := "http://unix" + path

	req, err := http.NewRequest(method, url, strings.NewReader(data))
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to create request")
	}
	if data != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to send request")
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to read response body")
	}
	body := strings.TrimSpace(string(b))

	if resp.StatusCode == http.StatusNotFound {
		return "", pkgerrors.Wrap(ErrNotFound, body)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", pkgerrors.Errorf("got %d: %s", resp.StatusCode, body)
	}

	return body, nil
}

// Get sends a GET request to the daemon.
func (c *Client) Get(path string) (string, error) {
	return c.Send("GET", path, "")
}

// Put sends a PUT request with a JSON body.
func (c *Client) Put(path string, data string) (string, error) {
	return c.Send("PUT", path, data)
}

// Post sends a POST request with an optional JSON body.
func (c *Client) Post(path string, data string) (string, error) {
	return c.Send("POST", path, data)
}

// Delete sends a DELETE request to the daemon.
func (c *Client) Delete(path string) (string, error) {
	return c.Send("DELETE", path, "")
}
