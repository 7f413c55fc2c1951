package client

import "github.com/dkeye/VoiceHub/internal/domain"

//go:generate mockgen -source=session.go -destination=session_mock_test.go -package=client

// Session is what the arbiter acts on: the local connection and whatever
// surface shows notices to the user.
type Session interface {
	SendCommand(target domain.DeviceID, action domain.DeviceAction) error
	JoinRoom(roomID domain.RoomID) error
	LeaveRoom() error
	Disconnect() error
	Notify(n Notice)
}

type NoticeKind int

const (
	// NoticeOtherDevice: another device of this identity came online.
	NoticeOtherDevice NoticeKind = iota
	// NoticeAutoQuit: this session is closing because auto-quit is on.
	NoticeAutoQuit
	NoticeCommandSent
	// NoticeOffline: another device told this one to disconnect.
	NoticeOffline
	// NoticeFeedbackWarning: another device is close enough for audio
	// feedback.
	NoticeFeedbackWarning
	NoticeNoRoomToJoin
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeOtherDevice:
		return "other-device"
	case NoticeAutoQuit:
		return "auto-quit"
	case NoticeCommandSent:
		return "command-sent"
	case NoticeOffline:
		return "offline"
	case NoticeFeedbackWarning:
		return "feedback-warning"
	case NoticeNoRoomToJoin:
		return "no-room-to-join"
	}
	return "unknown"
}

type Notice struct {
	Kind   NoticeKind
	Device domain.DeviceRegistration
	Action domain.DeviceAction
}
