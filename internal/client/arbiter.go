// Package client is the device side of the coordinator: a WebSocket client
// and the executor of the local multi-device policy.
package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceHub/internal/domain"
	"github.com/dkeye/VoiceHub/internal/protocol"
)

var (
	ErrChoiceResolved    = errors.New("choice already resolved")
	ErrChoiceUnavailable = errors.New("choice not offered")
	ErrUnknownAction     = errors.New("unknown device action")
)

type Outcome int

const (
	OutcomeNotified Outcome = iota
	OutcomeJoinedOther
	OutcomeCommandSent
	OutcomeDisconnected
	OutcomeAwaitingChoice
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotified:
		return "notified"
	case OutcomeJoinedOther:
		return "joined-other"
	case OutcomeCommandSent:
		return "command-sent"
	case OutcomeDisconnected:
		return "disconnected"
	case OutcomeAwaitingChoice:
		return "awaiting-choice"
	}
	return "unknown"
}

// Result describes what the arbiter did about one multi-device-login.
// Pending is set only for OutcomeAwaitingChoice.
type Result struct {
	Outcome Outcome
	Action  domain.DeviceAction
	Target  domain.DeviceID
	Pending *PendingChoice
}

type Choice int

const (
	ChoiceJoin Choice = iota
	ChoiceAskLeave
	ChoiceKeepBoth
)

func (c Choice) String() string {
	switch c {
	case ChoiceJoin:
		return "join the other device's room"
	case ChoiceAskLeave:
		return "ask the other device to leave"
	case ChoiceKeepBoth:
		return "keep both"
	}
	return "unknown"
}

// Arbiter runs the local policy against multi-device notifications and
// executes commands received from other devices of the same identity.
type Arbiter struct {
	mu      sync.Mutex
	policy  Policy
	session Session
}

func NewArbiter(s Session, p Policy) *Arbiter {
	p.Behavior = ParseBehavior(string(p.Behavior))
	return &Arbiter{session: s, policy: p}
}

func (a *Arbiter) Policy() Policy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.policy
}

func (a *Arbiter) SetPolicy(p Policy) {
	p.Behavior = ParseBehavior(string(p.Behavior))
	a.mu.Lock()
	a.policy = p
	a.mu.Unlock()
}

// HandleLogin is called on the older device when a newer one registers.
// With the prompt behavior nothing is executed yet; the returned
// PendingChoice carries the decision to whoever can ask the user.
func (a *Arbiter) HandleLogin(msg protocol.MultiDeviceLogin) (Result, error) {
	p := a.Policy()
	other := msg.NewDevice
	log.Info().
		Str("module", "client.arbiter").
		Str("device_id", string(other.DeviceID)).
		Str("behavior", string(p.Behavior)).
		Bool("auto_quit", p.AutoQuit).
		Msg("another device logged in")

	if p.AutoQuit {
		a.session.Notify(Notice{Kind: NoticeAutoQuit, Device: other})
		if err := a.session.Disconnect(); err != nil {
			return Result{}, fmt.Errorf("auto-quit: %w", err)
		}
		return Result{Outcome: OutcomeDisconnected}, nil
	}

	switch p.Behavior {
	case BehaviorKeep:
		return a.keep(other), nil
	case BehaviorJoinOtherRoom:
		return a.joinOther(other)
	case BehaviorLeaveOtherRoom:
		return a.command(other, domain.ActionLeaveRoom)
	case BehaviorDisconnectOther:
		return a.command(other, domain.ActionDisconnect)
	case BehaviorWarnOther:
		return a.command(other, domain.ActionWarnFeedback)
	}

	a.session.Notify(Notice{Kind: NoticeOtherDevice, Device: other})
	return Result{
		Outcome: OutcomeAwaitingChoice,
		Pending: &PendingChoice{arbiter: a, login: msg},
	}, nil
}

func (a *Arbiter) keep(other domain.DeviceRegistration) Result {
	a.session.Notify(Notice{Kind: NoticeOtherDevice, Device: other})
	return Result{Outcome: OutcomeNotified}
}

func (a *Arbiter) joinOther(other domain.DeviceRegistration) (Result, error) {
	if other.CurrentRoomID == "" {
		a.session.Notify(Notice{Kind: NoticeNoRoomToJoin, Device: other})
		return Result{Outcome: OutcomeNotified}, nil
	}
	if err := a.session.JoinRoom(other.CurrentRoomID); err != nil {
		return Result{}, fmt.Errorf("join %s: %w", other.CurrentRoomID, err)
	}
	return Result{Outcome: OutcomeJoinedOther}, nil
}

func (a *Arbiter) command(other domain.DeviceRegistration, action domain.DeviceAction) (Result, error) {
	if err := a.session.SendCommand(other.DeviceID, action); err != nil {
		return Result{}, fmt.Errorf("send %s: %w", action, err)
	}
	a.session.Notify(Notice{Kind: NoticeCommandSent, Device: other, Action: action})
	return Result{Outcome: OutcomeCommandSent, Action: action, Target: other.DeviceID}, nil
}

// HandleCommand executes a multi-device-command addressed to this device.
func (a *Arbiter) HandleCommand(cmd protocol.MultiDeviceCommand) error {
	log.Info().
		Str("module", "client.arbiter").
		Str("from", string(cmd.FromDeviceID)).
		Str("action", string(cmd.Action)).
		Msg("command received")

	from := domain.DeviceRegistration{DeviceID: cmd.FromDeviceID, DeviceName: cmd.FromDeviceName}
	switch cmd.Action {
	case domain.ActionLeaveRoom:
		return a.session.LeaveRoom()
	case domain.ActionDisconnect:
		err := a.session.Disconnect()
		a.session.Notify(Notice{Kind: NoticeOffline, Device: from, Action: cmd.Action})
		return err
	case domain.ActionWarnFeedback:
		a.session.Notify(Notice{Kind: NoticeFeedbackWarning, Device: from, Action: cmd.Action})
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
}

// PendingChoice is an unresolved prompt. It can be resolved once.
type PendingChoice struct {
	arbiter *Arbiter
	login   protocol.MultiDeviceLogin

	mu       sync.Mutex
	resolved bool
}

func (p *PendingChoice) Device() domain.DeviceRegistration { return p.login.NewDevice }

func (p *PendingChoice) Devices() []domain.DeviceRegistration { return p.login.Devices }

// Options lists the offered choices; joining is only offered when the
// other device is in a room.
func (p *PendingChoice) Options() []Choice {
	if p.login.NewDevice.CurrentRoomID == "" {
		return []Choice{ChoiceAskLeave, ChoiceKeepBoth}
	}
	return []Choice{ChoiceJoin, ChoiceAskLeave, ChoiceKeepBoth}
}

func (p *PendingChoice) Resolve(c Choice) (Result, error) {
	p.mu.Lock()
	if p.resolved {
		p.mu.Unlock()
		return Result{}, ErrChoiceResolved
	}
	offered := false
	for _, o := range p.Options() {
		offered = offered || o == c
	}
	if !offered {
		p.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrChoiceUnavailable, c)
	}
	p.resolved = true
	p.mu.Unlock()

	other := p.login.NewDevice
	switch c {
	case ChoiceJoin:
		return p.arbiter.joinOther(other)
	case ChoiceAskLeave:
		return p.arbiter.command(other, domain.ActionLeaveRoom)
	}
	return p.arbiter.keep(other), nil
}
