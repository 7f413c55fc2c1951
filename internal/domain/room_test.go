package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestRoomSpec_Validate(t *testing.T) {
	cases := []struct {
		name string
		spec RoomSpec
		want error
	}{
		{"ok", RoomSpec{Name: "Lobby", MaxUsers: 2}, nil},
		{"zero users", RoomSpec{Name: "Lobby", MaxUsers: 0}, ErrInvalidSpec},
		{"empty name", RoomSpec{Name: "  ", MaxUsers: 2}, ErrInvalidSpec},
		{"above limit", RoomSpec{Name: "Lobby", MaxUsers: 100}, ErrInvalidSpec},
		{"negative duration", RoomSpec{Name: "Lobby", MaxUsers: 2, Duration: ptr(-time.Second)}, ErrInvalidSpec},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate(50)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRoom_Admit_WrongPasswordLeavesRoomUntouched(t *testing.T) {
	room := NewRoom("r1", RoomSpec{Name: "Lobby", Password: "s3cret", MaxUsers: 2}, time.Now())

	err := room.Admit(Participant{ConnectionID: "a"}, "nope")

	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if len(room.Participants) != 0 {
		t.Errorf("participants must not change, got %d", len(room.Participants))
	}
}

func TestRoom_Admit_CapacityAndOrder(t *testing.T) {
	room := NewRoom("r1", RoomSpec{Name: "Lobby", MaxUsers: 2}, time.Now())

	if err := room.Admit(Participant{ConnectionID: "a"}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := room.Admit(Participant{ConnectionID: "b"}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := room.Admit(Participant{ConnectionID: "c"}, ""); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	if room.Participants[0].ConnectionID != "a" || room.Participants[1].ConnectionID != "b" {
		t.Errorf("join order not kept: %+v", room.Participants)
	}

	if _, ok := room.Remove("a"); !ok {
		t.Fatal("expected a to be removed")
	}
	if _, ok := room.Remove("a"); ok {
		t.Error("second remove must report absence")
	}
	if err := room.Admit(Participant{ConnectionID: "c"}, ""); err != nil {
		t.Fatalf("unexpected error after leave: %v", err)
	}
}

func TestRoom_SnapshotIsCopy(t *testing.T) {
	room := NewRoom("r1", RoomSpec{Name: "Lobby", Password: "x", MaxUsers: 3}, time.Now())
	_ = room.Admit(Participant{ConnectionID: "a"}, "x")

	snap := room.Snapshot()
	snap.Participants[0].DisplayName = "mutated"

	if room.Participants[0].DisplayName == "mutated" {
		t.Error("snapshot must not alias room participants")
	}
	if !snap.HasPassword {
		t.Error("expected HasPassword true")
	}
}

func TestAudioState_Merge(t *testing.T) {
	base := DefaultAudioState()
	base.OutputDeviceID = "speakers"

	got, err := base.Merge(AudioSettings{Muted: ptr(true), Volume: ptr(5.0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Muted || got.Volume != MaxVolume || got.OutputDeviceID != "speakers" {
		t.Errorf("unexpected merge result: %+v", got)
	}

	if _, err := base.Merge(AudioSettings{Position: &Position{X: math.Inf(1)}}); !errors.Is(err, ErrInvalidAudio) {
		t.Errorf("expected ErrInvalidAudio, got %v", err)
	}
}
