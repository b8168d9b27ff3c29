// ABOUTME: Routes inbound frames to handlers in fixed precedence order
// ABOUTME: tool, permission, computer-use, sub-agent, voice, then the core type switch

package session

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/2389/coven-client/internal/permission"
	"github.com/2389/coven-client/internal/protocol"
	"github.com/2389/coven-client/internal/voice"
)

// HistoryService is the external history collaborator, consumed through
// this interface only; the HTTP implementation lives in internal/collab.
type HistoryService interface {
	Load(ctx context.Context, agentID, cwd string) ([]Message, error)
	Save(ctx context.Context, agentID, cwd string, msgs []Message) error
}

// Speaker plays synthesized speech for an assistant message, used for
// optional voice auto-playback after a result.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// DispatcherConfig carries the dispatcher's collaborators. Registry,
// Permissions, Voice, Telemetry and Notifier are required; History and
// Playback are optional.
type DispatcherConfig struct {
	Registry    *Registry
	Permissions *permission.Tracker
	Voice       *voice.Pipeline
	Telemetry   *Telemetry
	Notifier    *Notifier
	History     HistoryService
	Playback    Speaker
	Logger      *slog.Logger
}

// Dispatcher consumes the inbound frame stream and mutates session state.
// Exactly one goroutine runs Handle, so frames for an agent apply in
// arrival order and handlers never overlap.
type Dispatcher struct {
	reg       *Registry
	perms     *permission.Tracker
	voice     *voice.Pipeline
	telemetry *Telemetry
	notifier  *Notifier
	history   HistoryService
	playback  Speaker
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		reg:       cfg.Registry,
		perms:     cfg.Permissions,
		voice:     cfg.Voice,
		telemetry: cfg.Telemetry,
		notifier:  cfg.Notifier,
		history:   cfg.History,
		playback:  cfg.Playback,
		logger:    logger.With("component", "dispatcher"),
	}
}

// Run consumes frames until the channel closes or ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, frames <-chan *protocol.Inbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			d.Handle(f)
		}
	}
}

// Handle routes one frame. The handler order is a deliberate tie-break:
// type names are currently reserved to one domain each, so order does not
// change behavior today, but it must be preserved in case of future
// overlapping names. Unknown types fall through and are ignored.
func (d *Dispatcher) Handle(f *protocol.Inbound) {
	target := f.AgentID
	if target == "" {
		target = d.reg.ActiveID()
	}

	for _, h := range []func(string, *protocol.Inbound) bool{
		d.handleTool,
		d.handlePermission,
		d.handleComputer,
		d.handleSubagent,
		d.handleVoice,
		d.handleCore,
	} {
		if h(target, f) {
			return
		}
	}
	d.logger.Debug("ignoring unknown frame type", "type", f.Type)
}

func (d *Dispatcher) handleTool(target string, f *protocol.Inbound) bool {
	switch f.Type {
	case protocol.TypeToolUse:
		d.reg.Append(target, Message{
			Kind:      KindToolUse,
			Tool:      f.Tool,
			ToolInput: f.ToolInput,
			ToolUseID: f.ToolUseID,
		})
	case protocol.TypeToolResult:
		d.reg.Append(target, Message{
			Kind:      KindToolResult,
			ToolUseID: f.ToolUseID,
			Content:   f.Content,
			IsError:   f.IsError,
		})
	default:
		return false
	}
	return true
}

func (d *Dispatcher) handlePermission(target string, f *protocol.Inbound) bool {
	if f.Type != protocol.TypePermissionRequest {
		return false
	}

	auto := d.reg.AutoApprove(target)
	if !auto {
		// The conversation entry exists before the tracker fires its
		// status callback, so the pending status lands on it.
		d.reg.Append(target, Message{
			Kind:      KindPermission,
			RequestID: f.RequestID,
			Tool:      f.Tool,
			ToolInput: f.ToolInput,
			RiskLevel: f.RiskLevel,
			Reason:    f.Reason,
		})
	}
	d.perms.Create(f, auto)
	return true
}

func (d *Dispatcher) handleComputer(target string, f *protocol.Inbound) bool {
	switch f.Type {
	case protocol.TypeModeChanged:
		mode := ModeCoding
		if f.Mode == string(ModeComputerUse) {
			mode = ModeComputerUse
		}
		d.reg.SetMode(target, mode, f.Display)
	case protocol.TypeComputerScreenshot:
		d.reg.SetLastScreenshot(target, f.Image)
		d.reg.Append(target, Message{
			Kind:      KindScreenshot,
			Image:     f.Image,
			Iteration: f.Iteration,
		})
	case protocol.TypeComputerAction:
		d.reg.Append(target, Message{
			Kind:      KindComputerAction,
			Tool:      f.Tool,
			Action:    f.Action,
			ToolInput: f.ToolInput,
			Iteration: f.Iteration,
		})
	default:
		return false
	}
	return true
}

func (d *Dispatcher) handleSubagent(target string, f *protocol.Inbound) bool {
	switch f.Type {
	case protocol.TypeSubagentSpawned:
		d.reg.UpsertSubAgent(target, SubAgent{
			ID:     f.SubagentID,
			Name:   f.SubagentName,
			Task:   f.Task,
			Status: SubRunning,
		})
		d.reg.Append(target, Message{
			Kind:         KindSubagentEvent,
			SubagentID:   f.SubagentID,
			SubagentName: f.SubagentName,
			EventKind:    "spawned",
			SubStatus:    SubRunning,
		})
	case protocol.TypeSubagentCompleted:
		status := f.SubagentStatus
		if status == "" {
			status = SubCompleted
		}
		d.reg.UpsertSubAgent(target, SubAgent{ID: f.SubagentID, Status: status})
		d.reg.Append(target, Message{
			Kind:         KindSubagentEvent,
			SubagentID:   f.SubagentID,
			SubagentName: f.SubagentName,
			EventKind:    "completed",
			SubStatus:    status,
		})
	default:
		return false
	}
	return true
}

func (d *Dispatcher) handleVoice(target string, f *protocol.Inbound) bool {
	if d.voice == nil {
		switch f.Type {
		case protocol.TypeVadEvent, protocol.TypeWakeWordDetected,
			protocol.TypeTalkStateChanged, protocol.TypeVoiceTranscription,
			protocol.TypePartialTranscript, protocol.TypeVoiceModeChanged:
			return true
		}
		return false
	}
	return d.voice.HandleFrame(target, f)
}

func (d *Dispatcher) handleCore(target string, f *protocol.Inbound) bool {
	switch f.Type {
	case protocol.TypeStatus:
		d.handleStatus(target, f)
	case protocol.TypeAssistantText:
		d.reg.AppendAssistantDelta(target, f.Text)
	case protocol.TypeResult:
		d.handleResult(target, f)
	case protocol.TypeError:
		d.handleError(target, f)
	case protocol.TypeModelInfo:
		if f.ModelInfo != nil {
			d.telemetry.SetModelInfo(*f.ModelInfo)
			d.notifier.Publish(Event{Kind: EventTelemetry})
		}
	case protocol.TypeRateLimits:
		if f.RateLimits != nil {
			d.telemetry.SetRateLimits(*f.RateLimits)
			d.notifier.Publish(Event{Kind: EventTelemetry})
		}
	case protocol.TypeAgentDestroyed:
		d.reg.Remove(f.AgentID)
	case protocol.TypeAuthOK, protocol.TypeAuthError:
		// Handshake frames are consumed by the connection manager; one
		// arriving here (e.g. a server-side re-auth notice) carries no
		// session state.
	default:
		return false
	}
	return true
}

func (d *Dispatcher) handleStatus(target string, f *protocol.Inbound) {
	if f.AgentID == "" || f.AgentID == d.reg.ActiveID() {
		if f.Status != "" {
			d.telemetry.SetStatusLine(f.Status)
			d.notifier.Publish(Event{Kind: EventStatusLine, Text: f.Status})
		}
	}

	if f.Cwd != "" && d.reg.Has(target) {
		if first := d.reg.LearnCwd(target, f.Cwd, f.SessionID); first {
			d.loadHistory(target, f.Cwd)
		}
	}
}

// loadHistory fetches the stored conversation the first time an agent's
// working directory is learned. Runs off the dispatch goroutine; the
// atomic ReplaceHistory keeps ordering safe.
func (d *Dispatcher) loadHistory(agentID, cwd string) {
	if d.history == nil {
		return
	}
	go func() {
		msgs, err := d.history.Load(context.Background(), agentID, cwd)
		if err != nil {
			d.logger.Warn("history load failed", "agent_id", agentID, "error", err)
			return
		}
		if len(msgs) > 0 {
			d.reg.ReplaceHistory(agentID, msgs)
		}
	}()
}

func (d *Dispatcher) handleResult(target string, f *protocol.Inbound) {
	d.reg.FinishTurn(target, AgentDone, f.SessionID)

	if notice := formatResultNotice(f); notice != "" {
		d.reg.Append(target, Message{Kind: KindSystem, Text: notice})
	}

	d.autoSave(target)
	d.autoPlay(target)
}

func (d *Dispatcher) handleError(target string, f *protocol.Inbound) {
	d.reg.FinishTurn(target, AgentError, "")

	msg := f.Message
	if msg == "" {
		msg = "unknown error"
	}
	d.reg.Append(target, Message{Kind: KindSystem, Text: "Error: " + msg})
	d.notifier.Publish(Event{Kind: EventNotification, AgentID: target, Text: msg})
}

// autoSave pushes the conversation to the history collaborator after each
// completed turn. Fire-and-forget: failures are logged, never surfaced.
func (d *Dispatcher) autoSave(agentID string) {
	if d.history == nil {
		return
	}
	snap, ok := d.reg.Agent(agentID)
	if !ok || snap.Cwd == "" {
		return
	}
	go func() {
		if err := d.history.Save(context.Background(), agentID, snap.Cwd, snap.Messages); err != nil {
			d.logger.Warn("auto-save failed", "agent_id", agentID, "error", err)
		}
	}()
}

// autoPlay speaks the last assistant message when playback is enabled.
func (d *Dispatcher) autoPlay(agentID string) {
	if d.playback == nil {
		return
	}
	text, ok := d.reg.LastAssistantText(agentID)
	if !ok || text == "" {
		return
	}
	go func() {
		if err := d.playback.Speak(context.Background(), text); err != nil {
			d.logger.Warn("auto-playback failed", "agent_id", agentID, "error", err)
		}
	}()
}

// formatResultNotice renders "{duration}s | {turns} turns | ${cost}",
// omitting absent parts. Cost arrives as a structured numeric field on the
// result frame; it is never re-derived from this rendered text.
func formatResultNotice(f *protocol.Inbound) string {
	var parts []string
	if f.DurationMS > 0 {
		parts = append(parts, strconv.FormatFloat(float64(f.DurationMS)/1000, 'f', -1, 64)+"s")
	}
	if f.NumTurns > 0 {
		parts = append(parts, strconv.Itoa(f.NumTurns)+" turns")
	}
	if f.CostUSD > 0 {
		parts = append(parts, "$"+strconv.FormatFloat(f.CostUSD, 'f', -1, 64))
	}
	return strings.Join(parts, " | ")
}
