package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/VoiceHub/internal/domain"
)

func TestMarshal_TypeFieldFirst(t *testing.T) {
	b, err := Marshal(UserLeft{UserID: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user-left","userId":"abc"}`, string(b))
	assert.Equal(t, `{"type":"user-left",`, string(b[:20]))
}

func TestMarshal_EmptyBody(t *testing.T) {
	b, err := Marshal(Pong{})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"pong"}`, string(b))
}

func TestDecode_JoinRoom(t *testing.T) {
	m, err := Decode([]byte(`{"type":"join-room","roomId":"r1","userName":"U1","password":"pw"}`))
	require.NoError(t, err)

	join, ok := m.(JoinRoom)
	require.True(t, ok, "got %T", m)
	assert.Equal(t, domain.RoomID("r1"), join.RoomID)
	assert.Equal(t, "U1", join.UserName)
	assert.Equal(t, "pw", join.Password)
}

func TestDecode_SignalKeepsPayloadBytes(t *testing.T) {
	raw := `{"type":"webrtc-offer","targetUserId":"b","payload":{"sdp":"v=0\r\n","type":"offer"}}`

	m, err := Decode([]byte(raw))
	require.NoError(t, err)

	sig, ok := m.(Signal)
	require.True(t, ok)
	assert.Equal(t, TypeWebRTCOffer, sig.MessageType())
	assert.Equal(t, domain.SessionID("b"), sig.TargetUserID)
	assert.Equal(t, `{"sdp":"v=0\r\n","type":"offer"}`, string(sig.Payload))

	out, err := Marshal(Signal{Kind: sig.Kind, FromUserID: "a", Payload: sig.Payload})
	require.NoError(t, err)
	var back map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, string(sig.Payload), string(back["payload"]))
	assert.Equal(t, `"webrtc-offer"`, string(back["type"]))
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrBadFrame))

	_, err = Decode([]byte(`{"type":"teleport"}`))
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = Decode([]byte(`{"type":"join-room","roomId":42}`))
	assert.True(t, errors.Is(err, ErrBadFrame))
}

func TestDecode_MultiDeviceLogin(t *testing.T) {
	in := MultiDeviceLogin{
		NewDevice: domain.DeviceRegistration{DeviceID: "B", ConnectionID: "c2"},
		Devices: []domain.DeviceRegistration{
			{DeviceID: "A", ConnectionID: "c1"},
			{DeviceID: "B", ConnectionID: "c2"},
		},
	}
	b, err := Marshal(in)
	require.NoError(t, err)

	m, err := Decode(b)
	require.NoError(t, err)
	got, ok := m.(MultiDeviceLogin)
	require.True(t, ok)
	assert.Equal(t, domain.DeviceID("B"), got.NewDevice.DeviceID)
	assert.Len(t, got.Devices, 2)
}
