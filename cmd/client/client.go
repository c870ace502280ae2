// Package client is the HTTP client shared by the invd subcommands that talk
// to a running server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/paularlott/cli"
)

// DefaultServer is used when neither --server nor INVD_SERVER_URL is set
const DefaultServer = "http://localhost:8080"

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client calls the invd REST API
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for serverURL. token may be empty.
func New(serverURL, token string) *Client {
	if serverURL == "" {
		serverURL = DefaultServer
	}
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Flags returns the global flags that select the server
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:         "server",
			Usage:        "invd server URL",
			DefaultValue: DefaultServer,
			EnvVars:      []string{"INVD_SERVER_URL"},
			Global:       true,
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "API bearer token",
			EnvVars: []string{"INVD_API_TOKEN"},
			Global:  true,
		},
	}
}

// FromCommand builds a client from the global flags
func FromCommand(cmd *cli.Command) *Client {
	return New(cmd.GetString("server"), cmd.GetString("token"))
}

// Get decodes the answer to GET path into out
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post sends in as JSON and decodes the answer into out
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

// Put sends in as JSON and decodes the answer into out
func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPut, path, in, out)
}

// Delete issues DELETE path
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do performs a request. in, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded body of a successful answer.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// NewTable returns a table that renders to stdout
func NewTable(headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = text.FgHiCyan.Sprint(h)
	}
	t.AppendHeader(row)
	return t
}

// Empty prints the message shown instead of an empty table
func Empty(what string) {
	fmt.Println(text.FgYellow.Sprintf("No %s found", what))
}

// ParseAttributes turns "k=v,k2=v2" into a map. An empty value is kept, it
// removes the attribute on update.
func ParseAttributes(s string) (map[string]string, error) {
	attrs := map[string]string{}
	if strings.TrimSpace(s) == "" {
		return attrs, nil
	}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q, expected key=value", pair)
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs, nil
}
