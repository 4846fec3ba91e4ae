// Package telephony drives a duplex PCM audio channel to the caller through
// an Asterisk-style REST interface: HTTP for channel control, websockets for
// events and external media.
package telephony

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voialabs/callcore/core/audio"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultApplication = "callcore"
	defaultReadTimeout = 30 * time.Second
)

var ErrNotConnected = fmt.Errorf("not connected to telephony control interface")

// Client talks to one PBX control interface. A Client instance is
// call-scoped: the orchestrator connects, answers, streams, and disconnects
// around a single channel.
type Client struct {
	baseURL     string
	username    string
	password    string
	application string

	encoding      audio.EncodingInfo
	chunkDuration time.Duration
	readTimeout   time.Duration

	// silenceStop, when positive, ends the inbound stream after that many
	// consecutive silent chunks. This is a stream-shortening optimization
	// only; conversational silence policy belongs to the orchestrator.
	silenceStop int
	detector    audio.Detector

	httpClient *http.Client
	dialer     *websocket.Dialer

	mu         sync.Mutex
	eventsConn *websocket.Conn
	mediaConns map[string]*websocket.Conn
}

type Option func(*Client)

// WithApplication sets the ARI application name used when registering for
// events and media.
func WithApplication(name string) Option {
	return func(c *Client) {
		c.application = name
	}
}

func WithEncodingInfo(encoding audio.EncodingInfo) Option {
	return func(c *Client) {
		c.encoding = encoding
	}
}

// WithChunkDuration sets the nominal duration of inbound and outbound
// chunks. Default is audio.DefaultChunkDuration.
func WithChunkDuration(duration time.Duration) Option {
	return func(c *Client) {
		c.chunkDuration = duration
	}
}

// WithReadTimeout bounds how long StreamInbound waits for the next media
// frame before treating the stream as dead.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.readTimeout = timeout
	}
}

// WithSilenceStop enables transport-level early stop after chunks
// consecutive silent chunks, classified at the given RMS threshold. Off by
// default.
func WithSilenceStop(chunks int, threshold float64) Option {
	return func(c *Client) {
		c.silenceStop = chunks
		c.detector = audio.Detector{Threshold: threshold}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

func NewClient(baseURL, username, password string, opts ...Option) *Client {
	client := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		username:      username,
		password:      password,
		application:   defaultApplication,
		encoding:      audio.GetDefaultEncodingInfo(),
		chunkDuration: audio.DefaultChunkDuration,
		readTimeout:   defaultReadTimeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		dialer:     websocket.DefaultDialer,
		mediaConns: map[string]*websocket.Conn{},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// ChunkBytes returns the byte size of one nominal-duration chunk.
func (c *Client) ChunkBytes() int {
	return c.encoding.ChunkBytes(c.chunkDuration)
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encoding
}

// wsURL rewrites the control base URL to its websocket equivalent.
func (c *Client) wsURL(path string, query url.Values) string {
	wsBase := strings.Replace(strings.Replace(c.baseURL, "https://", "wss://", 1), "http://", "ws://", 1)
	query.Set("app", c.application)
	query.Set("api_key", c.username+":"+c.password)
	return wsBase + path + "?" + query.Encode()
}

// Connect establishes the events websocket. Calling Connect on an already
// connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eventsConn != nil {
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL("/ari/events", url.Values{}), nil)
	if err != nil {
		return fmt.Errorf("failed to open events websocket: %w", err)
	}

	c.eventsConn = conn
	go drainEvents(conn)

	logger.InfoContext(ctx, "connected to telephony control interface", "url", c.baseURL)
	return nil
}

// drainEvents keeps the events connection serviced. Control events are not
// consumed by the conversation loop; the stream only has to stay readable so
// pings are answered.
func drainEvents(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Disconnect tears the control session down. Best-effort: close failures are
// logged, never surfaced, and a second Disconnect is a no-op.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for channelID, conn := range c.mediaConns {
		if err := conn.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close media websocket", "channel_id", channelID, "error", err)
		}
	}
	c.mediaConns = map[string]*websocket.Conn{}

	if c.eventsConn != nil {
		if err := c.eventsConn.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close events websocket", "error", err)
		}
		c.eventsConn = nil
	}

	return nil
}

func (c *Client) controlRequest(ctx context.Context, method, path string, query url.Values) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	return nil
}

// Answer accepts the inbound call and opens the external-media stream for
// it. It must be called before any media operation on the channel.
func (c *Client) Answer(ctx context.Context, channelID string) error {
	ctx, span := tracer.Start(ctx, "answer call")
	defer span.End()

	c.mu.Lock()
	connected := c.eventsConn != nil
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	if err := c.controlRequest(ctx, http.MethodPost, "/ari/channels/"+channelID+"/answer", nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to answer channel %s: %w", channelID, err)
	}

	query := url.Values{}
	query.Set("format", "slin")
	if err := c.controlRequest(ctx, http.MethodPost, "/ari/channels/"+channelID+"/externalMedia", query); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set up external media for channel %s: %w", channelID, err)
	}

	mediaConn, _, err := c.dialer.DialContext(ctx, c.wsURL("/ari/channels/"+channelID+"/media", url.Values{}), nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to open media websocket for channel %s: %w", channelID, err)
	}

	c.mu.Lock()
	c.mediaConns[channelID] = mediaConn
	c.mu.Unlock()

	logger.InfoContext(ctx, "call answered", "channel_id", channelID)
	return nil
}

// Hangup terminates the channel. Always best-effort: failures are logged and
// swallowed, since once the call should end there is nothing useful to do
// with a hangup error.
func (c *Client) Hangup(ctx context.Context, channelID string) error {
	c.mu.Lock()
	if conn, ok := c.mediaConns[channelID]; ok {
		if err := conn.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close media websocket", "channel_id", channelID, "error", err)
		}
		delete(c.mediaConns, channelID)
	}
	c.mu.Unlock()

	if err := c.controlRequest(ctx, http.MethodDelete, "/ari/channels/"+channelID, nil); err != nil {
		logger.WarnContext(ctx, "hangup failed", "channel_id", channelID, "error", err)
	}

	return nil
}

func (c *Client) mediaConn(channelID string) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.mediaConns[channelID]
	if !ok {
		return nil, fmt.Errorf("no media stream for channel %s (was the call answered?)", channelID)
	}
	return conn, nil
}
