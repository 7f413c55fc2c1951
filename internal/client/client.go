package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceHub/internal/domain"
	"github.com/dkeye/VoiceHub/internal/protocol"
)

var ErrNoServers = errors.New("no servers configured")

type Config struct {
	// Servers are tried in order, wrapping around, until MaxAttempts dials
	// have failed. Each entry is a ws:// or wss:// URL of the signal
	// endpoint.
	Servers     []string
	MaxAttempts int
	RetryDelay  time.Duration
	Header      http.Header

	UserName string
	Password string
	Device   domain.DeviceInfo
	Identity domain.Identity
	Policy   Policy

	// OnMessage receives every frame the arbiter does not consume.
	OnMessage func(protocol.Message)
	OnNotice  func(Notice)
	// OnPrompt is handed prompt decisions. Without it, prompts resolve to
	// keep-both.
	OnPrompt func(*PendingChoice)
}

type Client struct {
	cfg     Config
	conn    *websocket.Conn
	server  string
	arbiter *Arbiter

	writeMu sync.Mutex
	mu      sync.Mutex
	sid     domain.SessionID
	closed  bool
	done    chan struct{}
}

// Dial connects to the first reachable server. Reconnecting is the
// caller's business: a new Client is a new session that must join and
// register again.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = len(cfg.Servers)
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		server := cfg.Servers[attempt%len(cfg.Servers)]
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, server, cfg.Header)
		if err == nil {
			c := &Client{cfg: cfg, conn: conn, server: server, done: make(chan struct{})}
			c.arbiter = NewArbiter(c, cfg.Policy)
			log.Info().Str("module", "client").Str("server", server).Int("attempt", attempt+1).Msg("connected")
			return c, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("module", "client").Str("server", server).Int("attempt", attempt+1).Msg("dial failed")

		if attempt+1 < cfg.MaxAttempts && cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryDelay):
			}
		}
	}
	return nil, fmt.Errorf("dial after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

func (c *Client) Server() string { return c.server }

func (c *Client) Arbiter() *Arbiter { return c.arbiter }

func (c *Client) SessionID() domain.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Send(m protocol.Message) error {
	b, err := protocol.Marshal(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Register announces this device under the configured identity.
func (c *Client) Register() error {
	return c.Send(protocol.RegisterSession{Identity: c.cfg.Identity, Device: c.cfg.Device})
}

func (c *Client) JoinRoom(roomID domain.RoomID) error {
	return c.Send(protocol.JoinRoom{RoomID: roomID, UserName: c.cfg.UserName, Password: c.cfg.Password})
}

func (c *Client) LeaveRoom() error {
	return c.Send(protocol.LeaveRoom{})
}

func (c *Client) SendCommand(target domain.DeviceID, action domain.DeviceAction) error {
	return c.Send(protocol.MultiDeviceCommand{TargetDeviceID: target, Action: action})
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) Notify(n Notice) {
	if c.cfg.OnNotice != nil {
		c.cfg.OnNotice(n)
	}
}

// Run reads frames until the connection closes or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.done)
	stop := context.AfterFunc(ctx, func() { _ = c.Disconnect() })
	defer stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad frame")
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Connected:
		c.mu.Lock()
		c.sid = m.UserID
		c.mu.Unlock()
	case protocol.MultiDeviceLogin:
		res, err := c.arbiter.HandleLogin(m)
		if err != nil {
			log.Error().Err(err).Str("module", "client").Msg("multi-device policy")
			return
		}
		if res.Pending != nil {
			c.prompt(res.Pending)
		}
		return
	case protocol.MultiDeviceCommand:
		if err := c.arbiter.HandleCommand(m); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("multi-device command")
		}
		return
	}
	if c.cfg.OnMessage != nil {
		c.cfg.OnMessage(msg)
	}
}

// prompt runs off the read loop so frames keep flowing while the user
// decides.
func (c *Client) prompt(p *PendingChoice) {
	if c.cfg.OnPrompt == nil {
		if _, err := p.Resolve(ChoiceKeepBoth); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("resolve prompt")
		}
		return
	}
	go c.cfg.OnPrompt(p)
}
