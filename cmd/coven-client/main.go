// ABOUTME: Entry point for the coven-client terminal front-end
// ABOUTME: Wires config, connection, session core, and collaborators together

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/2389/coven-client/internal/auth"
	"github.com/2389/coven-client/internal/collab"
	"github.com/2389/coven-client/internal/config"
	"github.com/2389/coven-client/internal/conn"
	"github.com/2389/coven-client/internal/permission"
	"github.com/2389/coven-client/internal/session"
	"github.com/2389/coven-client/internal/voice"
)

// version is overridden via -ldflags at release build time.
var version = "dev"

const banner = "coven-client"

// defaultConfigPath returns the path to the client config file.
// Priority: COVEN_CLIENT_CONFIG env var > XDG_CONFIG_HOME/coven/client.yaml > ~/.config/coven/client.yaml
func defaultConfigPath() string {
	if envPath := os.Getenv("COVEN_CLIENT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "client.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "client.yaml")
}

func main() {
	app := &cli.App{
		Name:    "coven-client",
		Usage:   "chat client for a coven gateway over one multiplexed WebSocket",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to client config file",
				Value:   defaultConfigPath(),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "connect to the gateway and run the session core",
				Action: runAction,
			},
			{
				Name:  "version",
				Usage: "print the client version",
				Action: func(c *cli.Context) error {
					fmt.Println(version)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	logger, err := setupLogging(cfg.Logging)
	if err != nil {
		return err
	}

	creds := auth.Credentials{Token: cfg.Auth.Token, PIN: cfg.Auth.PIN}
	token, err := creds.HandshakeToken(cfg.Gateway.Endpoint)
	if err != nil {
		return fmt.Errorf("resolving credentials: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.Cyan("%s %s", banner, version)
	color.White("connecting to %s", cfg.Gateway.Endpoint)

	notifier := session.NewNotifier(logger)
	defer notifier.Close()

	// The registry needs the connection for sending and the connection
	// needs the registry for reinit; the hook closure breaks the cycle.
	var registry *session.Registry
	manager := conn.NewManager(conn.Config{
		Endpoint: cfg.Gateway.Endpoint,
		Token:    token,
		Logger:   logger,
		OnConnected: func() {
			if registry != nil {
				registry.Reinit()
			}
		},
		OnStatus: func(s conn.Status) {
			notifier.Publish(session.Event{Kind: session.EventConnection, Text: string(s)})
		},
	})

	registry = session.NewRegistry(manager, notifier, logger)

	permOpts := []permission.Option{
		permission.WithStatusFunc(func(agentID, requestID, status string) {
			registry.UpdatePermissionStatus(agentID, requestID, status)
			notifier.Publish(session.Event{Kind: session.EventPermission, AgentID: agentID, Text: status})
		}),
	}
	if cfg.Permission.Window > 0 {
		permOpts = append(permOpts, permission.WithWindow(cfg.Permission.Window))
	}
	tracker := permission.NewTracker(manager, logger, permOpts...)

	if cfg.Permission.AutoApprove {
		for _, snap := range registry.Agents() {
			_ = registry.SetAutoApprove(snap.ID, true)
		}
	}

	voiceCfg := voiceConfig(cfg.Voice)
	pipeline := voice.NewPipeline(voiceCfg, nil, manager, logger)
	pipeline.OnTranscription = func(agentID, text string) {
		if err := registry.SendUserMessage(agentID, text); err != nil {
			logger.Warn("voice auto-send failed", "agent_id", agentID, "error", err)
		}
	}
	pipeline.OnState = func(s voice.State) {
		notifier.Publish(session.Event{Kind: session.EventVoice, Text: string(s)})
	}
	defer pipeline.Deactivate()

	var history session.HistoryService
	var browser *collab.Browser
	var playback session.Speaker
	if cfg.Collab.BaseURL != "" {
		client := collab.NewClient(cfg.Collab.BaseURL, token, logger)
		history = collab.NewHistory(client)
		browser = collab.NewBrowser(client)

		if cfg.Voice.AutoPlayback {
			if player := audioPlayer(); player != nil {
				speech := collab.NewSpeech(client)
				playback = collab.NewTTSSpeaker(speech, player, cfg.Voice.VoiceID)
			} else {
				logger.Warn("voice.auto_playback set but no audio player available")
			}
		}
	}

	telemetry := session.NewTelemetry()
	dispatcher := session.NewDispatcher(session.DispatcherConfig{
		Registry:    registry,
		Permissions: tracker,
		Voice:       pipeline,
		Telemetry:   telemetry,
		Notifier:    notifier,
		History:     history,
		Playback:    playback,
		Logger:      logger,
	})

	go dispatcher.Run(ctx, manager.Frames())
	go printEvents(ctx, notifier, registry)

	loop := &repl{
		registry:  registry,
		tracker:   tracker,
		pipeline:  pipeline,
		telemetry: telemetry,
		browser:   browser,
		sender:    manager,
	}
	go loop.run(ctx, os.Stdin)

	err = manager.Run(ctx)
	if ctx.Err() != nil {
		color.White("shutting down")
		return nil
	}
	return err
}

// printEvents renders session events to the terminal until ctx ends.
// Message events print only messages not yet shown; a streaming message
// prints once finalized rather than per delta.
func printEvents(ctx context.Context, notifier *session.Notifier, registry *session.Registry) {
	events, _ := notifier.Subscribe(ctx)
	printed := make(map[string]int)

	for ev := range events {
		switch ev.Kind {
		case session.EventMessages:
			if ev.AgentID != registry.ActiveID() {
				continue
			}
			snap, ok := registry.Agent(ev.AgentID)
			if !ok {
				continue
			}
			// A history load swaps the message list wholesale; start over.
			if printed[ev.AgentID] > len(snap.Messages) {
				printed[ev.AgentID] = 0
			}
			for i := printed[ev.AgentID]; i < len(snap.Messages); i++ {
				m := snap.Messages[i]
				if m.Streaming {
					break
				}
				printMessage(m)
				printed[ev.AgentID] = i + 1
			}
		case session.EventConnection:
			color.Yellow("[conn] %s", ev.Text)
		case session.EventStatusLine:
			color.White("[status] %s", ev.Text)
		case session.EventNotification:
			color.Red("[notice] %s", ev.Text)
		case session.EventPermission:
			color.Magenta("[permission] %s: %s", ev.AgentID, ev.Text)
		case session.EventVoice:
			color.Green("[voice] %s", ev.Text)
		}
	}
}

func printMessage(m session.Message) {
	switch m.Kind {
	case session.KindUser:
		color.Cyan("> %s", m.Text)
	case session.KindAssistant:
		color.White("%s", m.Text)
	case session.KindSystem:
		color.Yellow("-- %s", m.Text)
	case session.KindToolUse:
		color.Blue("[tool] %s %s", m.Tool, string(m.ToolInput))
	case session.KindToolResult:
		if m.IsError {
			color.Red("[tool] %s", m.Content)
		} else {
			color.Blue("[tool] %s", m.Content)
		}
	case session.KindPermission:
		color.Magenta("[permission] %s wants %s (%s) - /approve %s or /deny %s",
			m.Tool, string(m.ToolInput), m.RiskLevel, m.RequestID, m.RequestID)
	case session.KindSubagentEvent:
		color.Green("[subagent] %s %s (%s)", m.SubagentName, m.EventKind, m.SubStatus)
	case session.KindScreenshot:
		color.Blue("[screen] iteration %d", m.Iteration)
	case session.KindComputerAction:
		color.Blue("[action] %s %s", m.Action, string(m.ToolInput))
	}
}

// audioPlayer returns the platform audio sink for synthesized speech.
// The terminal build has no audio output; embedding hosts swap this for
// a real sink the same way they supply a voice capture device.
func audioPlayer() collab.Player {
	return nil
}

func voiceConfig(vc config.VoiceConfig) voice.Config {
	cfg := voice.DefaultConfig()
	if vc.Mode != "" {
		cfg.Mode = vc.Mode
	}
	if vc.SampleRate > 0 {
		cfg.SampleRate = vc.SampleRate
	}
	if vc.ChunkSamples > 0 {
		cfg.ChunkSamples = vc.ChunkSamples
	}
	if vc.VadSensitivity > 0 {
		cfg.VadSensitivity = vc.VadSensitivity
	}
	if vc.SilenceTimeout > 0 {
		cfg.SilenceMS = vc.SilenceTimeout.Milliseconds()
	}
	return cfg
}

func setupLogging(lc config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", lc.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch lc.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", lc.Format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
