// Command voicectl is a terminal client for the coordinator. It joins a
// room, registers the device under an identity and applies the local
// multi-device policy.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dkeye/VoiceHub/internal/client"
	"github.com/dkeye/VoiceHub/internal/domain"
	"github.com/dkeye/VoiceHub/internal/protocol"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	fs := pflag.NewFlagSet("voicectl", pflag.ExitOnError)
	configFile := fs.String("config", "voicectl.yaml", "client config file")
	room := fs.String("room", "", "room id to join")
	fs.String("user", "", "display name")
	fs.String("password", "", "room password")
	fs.String("identity", "", "identity id for multi-device registration")
	fs.String("behavior", "", "multi-device behavior (prompt, keep, join_other_room, leave_other_room, disconnect_other, warn_other)")
	fs.Bool("auto-quit", false, "disconnect this device when another one logs in")
	fs.Bool("save-policy", false, "store --behavior/--auto-quit in the config file")
	verbose := fs.BoolP("verbose", "v", false, "debug logging")
	_ = fs.Parse(os.Args[1:])

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(*configFile)
	v.SetDefault("servers", []string{"ws://localhost:8080/api/ws/signal", "ws://127.0.0.1:8080/api/ws/signal"})
	v.SetDefault("max_attempts", 5)
	v.SetDefault("retry_delay", "2s")
	v.SetDefault("device_name", hostname())
	v.SetDefault("user", "guest")
	v.SetDefault("policy.behavior", string(client.BehaviorPrompt))
	_ = v.BindPFlag("user", fs.Lookup("user"))
	_ = v.BindPFlag("password", fs.Lookup("password"))
	_ = v.BindPFlag("identity", fs.Lookup("identity"))
	_ = v.BindPFlag("policy.behavior", fs.Lookup("behavior"))
	_ = v.BindPFlag("policy.auto_quit", fs.Lookup("auto-quit"))
	if err := v.ReadInConfig(); err != nil {
		log.Debug().Err(err).Str("file", *configFile).Msg("no client config, using defaults")
	}

	deviceID := v.GetString("device_id")
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	policy := client.Policy{
		Behavior: client.ParseBehavior(v.GetString("policy.behavior")),
		AutoQuit: v.GetBool("policy.auto_quit"),
	}
	if save, _ := fs.GetBool("save-policy"); save {
		if err := client.SavePolicy(*configFile, policy); err != nil {
			log.Error().Err(err).Msg("save policy")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	in := bufio.NewScanner(os.Stdin)
	c, err := client.Dial(ctx, client.Config{
		Servers:     v.GetStringSlice("servers"),
		MaxAttempts: v.GetInt("max_attempts"),
		RetryDelay:  v.GetDuration("retry_delay"),
		UserName:    v.GetString("user"),
		Password:    v.GetString("password"),
		Identity:    domain.Identity{ID: domain.IdentityID(v.GetString("identity"))},
		Device: domain.DeviceInfo{
			DeviceID:     domain.DeviceID(deviceID),
			DeviceName:   v.GetString("device_name"),
			LocationHint: v.GetString("location_hint"),
		},
		Policy:    policy,
		OnMessage: printMessage,
		OnNotice:  printNotice,
		OnPrompt:  func(p *client.PendingChoice) { prompt(in, p) },
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	fmt.Printf("connected to %s as device %s (%s)\n", c.Server(), deviceID, policy.Behavior)

	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	if v.GetString("identity") != "" {
		if err := c.Register(); err != nil {
			log.Error().Err(err).Msg("register-session")
		}
	}
	if *room != "" {
		if err := c.JoinRoom(domain.RoomID(*room)); err != nil {
			log.Error().Err(err).Msg("join-room")
		}
	}

	if err := <-errc; err != nil {
		fmt.Fprintln(os.Stderr, "connection lost:", err)
		os.Exit(1)
	}
	fmt.Println("offline")
}

func prompt(in *bufio.Scanner, p *client.PendingChoice) {
	d := p.Device()
	fmt.Printf("\nYou are now also signed in on %q", d.DeviceName)
	if d.CurrentRoomName != "" {
		fmt.Printf(" (in room %q)", d.CurrentRoomName)
	}
	fmt.Println(". What should happen?")
	opts := p.Options()
	for i, o := range opts {
		fmt.Printf("  %d) %s\n", i+1, o)
	}
	for {
		fmt.Print("> ")
		if !in.Scan() {
			// stdin closed: keep both sessions
			_, _ = p.Resolve(client.ChoiceKeepBoth)
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(in.Text()))
		if err != nil || n < 1 || n > len(opts) {
			continue
		}
		res, err := p.Resolve(opts[n-1])
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		log.Debug().Str("outcome", res.Outcome.String()).Msg("prompt resolved")
		return
	}
}

func printMessage(m protocol.Message) {
	switch msg := m.(type) {
	case protocol.JoinedRoom:
		fmt.Printf("joined %q (%d/%d)\n", msg.Room.Name, len(msg.Room.Participants), msg.Room.MaxUsers)
	case protocol.UserJoined:
		fmt.Printf("+ %s\n", msg.User.DisplayName)
	case protocol.UserLeft:
		fmt.Printf("- %s\n", msg.UserID)
	case protocol.LeftRoom:
		fmt.Println("left room")
	case protocol.RoomExpiring:
		fmt.Printf("room closes in %s\n", (time.Duration(msg.RemainingMs) * time.Millisecond).Round(time.Second))
	case protocol.ForcedLeave:
		fmt.Printf("removed from room: %s\n", msg.Reason)
	case protocol.MultiDeviceActive:
		fmt.Printf("this identity is active on %d devices\n", len(msg.Devices))
	case protocol.Error:
		fmt.Println("error:", msg.Message)
	default:
		log.Debug().Str("type", string(m.MessageType())).Msg("message")
	}
}

func printNotice(n client.Notice) {
	name := n.Device.DeviceName
	if name == "" {
		name = string(n.Device.DeviceID)
	}
	switch n.Kind {
	case client.NoticeOtherDevice:
		fmt.Printf("signed in on another device: %s\n", name)
	case client.NoticeAutoQuit:
		fmt.Printf("signed in on %s, quitting here\n", name)
	case client.NoticeCommandSent:
		fmt.Printf("sent %s to %s\n", n.Action, name)
	case client.NoticeOffline:
		fmt.Printf("disconnected by %s\n", name)
	case client.NoticeFeedbackWarning:
		fmt.Printf("warning from %s: possible audio feedback, mute one device\n", name)
	case client.NoticeNoRoomToJoin:
		fmt.Printf("%s is not in a room\n", name)
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "voicectl"
	}
	return h
}
