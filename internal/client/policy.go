package client

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Behavior is the automatic response to another device of the same
// identity coming online.
type Behavior string

const (
	BehaviorPrompt          Behavior = "prompt"
	BehaviorKeep            Behavior = "keep"
	BehaviorJoinOtherRoom   Behavior = "join_other_room"
	BehaviorLeaveOtherRoom  Behavior = "leave_other_room"
	BehaviorDisconnectOther Behavior = "disconnect_other"
	BehaviorWarnOther       Behavior = "warn_other"
)

// ParseBehavior falls back to BehaviorPrompt for anything unknown.
func ParseBehavior(s string) Behavior {
	switch b := Behavior(strings.ToLower(strings.TrimSpace(s))); b {
	case BehaviorPrompt, BehaviorKeep, BehaviorJoinOtherRoom, BehaviorLeaveOtherRoom,
		BehaviorDisconnectOther, BehaviorWarnOther:
		return b
	}
	return BehaviorPrompt
}

// Policy is stored on the device. AutoQuit overrides Behavior.
type Policy struct {
	Behavior Behavior `mapstructure:"behavior"`
	AutoQuit bool     `mapstructure:"auto_quit"`
}

func DefaultPolicy() Policy {
	return Policy{Behavior: BehaviorPrompt}
}

// LoadPolicy reads the policy section of a YAML file. A missing file yields
// the default policy.
func LoadPolicy(path string) (Policy, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetDefault("policy.behavior", string(BehaviorPrompt))
	v.SetDefault("policy.auto_quit", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Policy{}, fmt.Errorf("read policy %s: %w", path, err)
		}
	}
	return Policy{
		Behavior: ParseBehavior(v.GetString("policy.behavior")),
		AutoQuit: v.GetBool("policy.auto_quit"),
	}, nil
}

// SavePolicy stores p in the file at path, keeping its other keys.
func SavePolicy(path string, p Policy) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read policy %s: %w", path, err)
	}
	v.Set("policy.behavior", string(ParseBehavior(string(p.Behavior))))
	v.Set("policy.auto_quit", p.AutoQuit)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write policy %s: %w", path, err)
	}
	return nil
}
