package http

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VoiceHub/internal/app"
	"github.com/dkeye/VoiceHub/internal/app/orch"
	"github.com/dkeye/VoiceHub/internal/client"
	"github.com/dkeye/VoiceHub/internal/clock"
	"github.com/dkeye/VoiceHub/internal/config"
	"github.com/dkeye/VoiceHub/internal/domain"
	"github.com/dkeye/VoiceHub/internal/protocol"
	transport "github.com/dkeye/VoiceHub/internal/transport/http"
)

func newTestServer(t *testing.T) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Mode:       "test",
		Secret:     "test-secret",
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		SendBuffer: 32,
		Rooms: config.RoomsConfig{
			WarningLead:     time.Minute,
			GuestDuration:   30 * time.Minute,
			MaxUsersLimit:   10,
			DefaultMaxUsers: 4,
		},
	}
	clk := clock.Real()
	rooms := app.NewRoomManager(clk, app.RoomOptions{WarningLead: cfg.Rooms.WarningLead, MaxUsersLimit: cfg.Rooms.MaxUsersLimit})
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    rooms,
		Devices:  app.NewDeviceRegistry(clk),
		Policy:   app.SimplePolicy{},
	}
	rooms.SetListener(o)

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(SetupRouter(ctx, cfg, o))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, o
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
}

func postJSON(t *testing.T, c *http.Client, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := c.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createRoom(t *testing.T, srv *httptest.Server, body any) transport.CreateRoomResponse {
	t.Helper()
	resp := postJSON(t, srv.Client(), srv.URL+"/api/rooms", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out transport.CreateRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type wsPeer struct {
	t    *testing.T
	conn *websocket.Conn
	sid  domain.SessionID
}

func dialPeer(t *testing.T, srv *httptest.Server, dialer *websocket.Dialer) *wsPeer {
	t.Helper()
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	p := &wsPeer{t: t, conn: conn}
	p.sid = p.expect(protocol.TypeConnected).(protocol.Connected).UserID
	return p
}

func (p *wsPeer) send(m protocol.Message) {
	p.t.Helper()
	b, err := protocol.Marshal(m)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, b))
}

// expect reads until a frame of type typ arrives, skipping others.
func (p *wsPeer) expect(typ protocol.Type) protocol.Message {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := p.conn.ReadMessage()
		require.NoError(p.t, err, "waiting for %s", typ)
		m, err := protocol.Decode(data)
		require.NoError(p.t, err)
		if m.MessageType() == typ {
			return m
		}
	}
}

func TestRoomsAPI(t *testing.T) {
	srv, _ := newTestServer(t)

	created := createRoom(t, srv, map[string]any{"name": "Lobby"})
	assert.NotEmpty(t, created.RoomID)
	assert.Equal(t, 4, created.Room.MaxUsers, "default capacity")
	assert.NotNil(t, created.Room.ExpiresAt, "guest rooms get a duration")

	permanent := createRoom(t, srv, map[string]any{"id": "perm", "name": "Perm", "maxUsers": 2, "password": "pw"})
	assert.Equal(t, domain.RoomID("perm"), permanent.RoomID)

	resp := postJSON(t, srv.Client(), srv.URL+"/api/rooms", map[string]any{"name": "Bad", "maxUsers": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = postJSON(t, srv.Client(), srv.URL+"/api/rooms", map[string]any{"id": "perm", "name": "Dup"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	listResp, err := srv.Client().Get(srv.URL + "/api/rooms")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var list struct {
		Rooms []domain.RoomInfo `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	require.Len(t, list.Rooms, 2)
	assert.True(t, list.Rooms[1].HasPassword)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/rooms/perm", nil)
	delResp, err := srv.Client().Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	getResp, err := srv.Client().Get(srv.URL + "/api/rooms/perm")
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestRoomsAPI_DurationOutOfRange(t *testing.T) {
	srv, o := newTestServer(t)

	for _, ms := range []int64{0, -5, 18446744073710, math.MaxInt64} {
		resp := postJSON(t, srv.Client(), srv.URL+"/api/rooms", map[string]any{"name": "Century", "maxUsers": 2, "durationMs": ms})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "durationMs=%d", ms)
	}
	assert.Zero(t, o.Rooms.Count())

	created := createRoom(t, srv, map[string]any{"name": "Year", "maxUsers": 2, "durationMs": int64(365 * 24 * time.Hour / time.Millisecond)})
	require.NotNil(t, created.Room.ExpiresAt)
	assert.True(t, created.Room.ExpiresAt.After(created.Room.CreatedAt.Add(364*24*time.Hour)))
}

func TestSignal_JoinAndRelay(t *testing.T) {
	srv, _ := newTestServer(t)
	room := createRoom(t, srv, map[string]any{"name": "Lobby", "maxUsers": 2})

	a := dialPeer(t, srv, nil)
	b := dialPeer(t, srv, nil)

	a.send(protocol.JoinRoom{RoomID: room.RoomID, UserName: "A"})
	a.expect(protocol.TypeJoinedRoom)
	b.send(protocol.JoinRoom{RoomID: room.RoomID, UserName: "B"})
	joined := b.expect(protocol.TypeJoinedRoom).(protocol.JoinedRoom)
	assert.Len(t, joined.Room.Participants, 2)
	assert.Equal(t, b.sid, a.expect(protocol.TypeUserJoined).(protocol.UserJoined).User.ConnectionID)

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	a.send(protocol.Signal{Kind: protocol.TypeWebRTCOffer, TargetUserID: b.sid, Payload: payload})
	sig := b.expect(protocol.TypeWebRTCOffer).(protocol.Signal)
	assert.Equal(t, a.sid, sig.FromUserID)
	assert.JSONEq(t, string(payload), string(sig.Payload))

	c := dialPeer(t, srv, nil)
	c.send(protocol.JoinRoom{RoomID: room.RoomID, UserName: "C"})
	assert.Equal(t, "Room is full", c.expect(protocol.TypeError).(protocol.Error).Message)

	require.NoError(t, b.conn.Close())
	assert.Equal(t, b.sid, a.expect(protocol.TypeUserLeft).(protocol.UserLeft).UserID)
}

func TestSignal_IdentityFromHTTPSession(t *testing.T) {
	srv, _ := newTestServer(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	httpClient := &http.Client{Jar: jar}

	resp := postJSON(t, httpClient, srv.URL+"/api/session", map[string]any{"id": "dana", "name": "Dana"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == "VoiceSessions" {
			session = ck
		}
	}
	require.NotNil(t, session)
	assert.False(t, session.Secure, "outside release mode the cookie must travel over plain http")
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)

	roomResp := postJSON(t, httpClient, srv.URL+"/api/rooms", map[string]any{"name": "Dana's"})
	require.Equal(t, http.StatusCreated, roomResp.StatusCode)
	var created transport.CreateRoomResponse
	require.NoError(t, json.NewDecoder(roomResp.Body).Decode(&created))
	assert.Nil(t, created.Room.ExpiresAt, "signed-in creators get no guest duration")

	p := dialPeer(t, srv, &websocket.Dialer{Jar: jar, HandshakeTimeout: 3 * time.Second})
	p.send(protocol.RegisterSession{Device: domain.DeviceInfo{DeviceName: "browser"}})
	reg := p.expect(protocol.TypeSessionRegistered).(protocol.SessionRegistered)
	assert.Equal(t, domain.IdentityID("dana"), reg.Identity.ID)
	assert.Equal(t, "Dana", reg.Identity.Name)
	assert.NotEmpty(t, reg.Device.DeviceID, "client token cookie becomes the device id")
}

func TestMultiDevice_DisconnectOtherEndToEnd(t *testing.T) {
	srv, o := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	registered := make(chan struct{}, 1)
	notices := make(chan client.Notice, 4)
	older, err := client.Dial(ctx, client.Config{
		Servers:  []string{"ws://127.0.0.1:1/unreachable", wsURL(srv)},
		Identity: domain.Identity{ID: "erin"},
		Device:   domain.DeviceInfo{DeviceID: "A", DeviceName: "laptop"},
		Policy:   client.Policy{Behavior: client.BehaviorDisconnectOther},
		OnNotice: func(n client.Notice) { notices <- n },
		OnMessage: func(m protocol.Message) {
			if m.MessageType() == protocol.TypeSessionRegistered {
				registered <- struct{}{}
			}
		},
	})
	require.NoError(t, err, "falls back to the second server")
	go func() { _ = older.Run(ctx) }()
	require.NoError(t, older.Register())
	select {
	case <-registered:
	case <-ctx.Done():
		t.Fatal("older device never registered")
	}

	newer, err := client.Dial(ctx, client.Config{
		Servers:  []string{wsURL(srv)},
		Identity: domain.Identity{ID: "erin"},
		Device:   domain.DeviceInfo{DeviceID: "B", DeviceName: "phone"},
		Policy:   client.Policy{Behavior: client.BehaviorKeep},
	})
	require.NoError(t, err)
	go func() { _ = newer.Run(ctx) }()
	require.NoError(t, newer.Register())

	select {
	case <-newer.Done():
	case <-ctx.Done():
		t.Fatal("newer device was not disconnected")
	}

	n := <-notices
	assert.Equal(t, client.NoticeCommandSent, n.Kind)
	assert.Equal(t, domain.DeviceID("B"), n.Device.DeviceID)

	assert.Eventually(t, func() bool {
		return len(o.Devices.Devices("erin")) == 1
	}, 3*time.Second, 20*time.Millisecond, "disconnect removes the newer device entry")
	select {
	case <-older.Done():
		t.Fatal("older device must stay connected")
	default:
	}
}
