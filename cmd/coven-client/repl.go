// ABOUTME: Line-oriented command loop for the terminal front-end
// ABOUTME: Plain lines become user messages; slash commands drive session operations

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/coven-client/internal/collab"
	"github.com/2389/coven-client/internal/permission"
	"github.com/2389/coven-client/internal/protocol"
	"github.com/2389/coven-client/internal/session"
	"github.com/2389/coven-client/internal/voice"
)

// repl owns the interactive loop's collaborators.
type repl struct {
	registry  *session.Registry
	tracker   *permission.Tracker
	pipeline  *voice.Pipeline
	telemetry *session.Telemetry
	browser   *collab.Browser
	sender    session.Sender
}

// run reads commands until input ends or ctx is cancelled.
func (r *repl) run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			r.command(ctx, line)
			continue
		}
		if err := r.registry.SendUserMessage(r.registry.ActiveID(), line); err != nil {
			color.Red("send: %v", err)
		}
	}
}

func (r *repl) command(ctx context.Context, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		r.help()
	case "/agents":
		r.listAgents()
	case "/new":
		label := "agent"
		if len(args) > 0 {
			label = strings.Join(args, " ")
		}
		id := r.registry.CreateAgent(label)
		color.White("created %s (%s)", label, shortID(id))
	case "/switch":
		r.withAgentArg(args, func(id string) {
			if err := r.registry.SetActive(id); err != nil {
				color.Red("switch: %v", err)
			}
		})
	case "/destroy":
		r.withAgentArg(args, func(id string) {
			if err := r.registry.DestroyAgent(id); err != nil {
				color.Red("destroy: %v", err)
			}
		})
	case "/cwd":
		if len(args) != 1 {
			color.Red("usage: /cwd <path>")
			return
		}
		if err := r.registry.SetCwd(r.registry.ActiveID(), args[0]); err != nil {
			color.Red("cwd: %v", err)
		}
	case "/browse":
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		r.browse(ctx, path)
	case "/interrupt":
		if err := r.registry.Interrupt(r.registry.ActiveID()); err != nil {
			color.Red("interrupt: %v", err)
		}
	case "/approve":
		if len(args) < 1 {
			color.Red("usage: /approve <request-id> [pin]")
			return
		}
		pin := ""
		if len(args) > 1 {
			pin = args[1]
		}
		r.respond(args[0], true, pin)
	case "/deny":
		if len(args) != 1 {
			color.Red("usage: /deny <request-id>")
			return
		}
		r.respond(args[0], false, "")
	case "/pending":
		r.listPending()
	case "/auto":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			color.Red("usage: /auto on|off")
			return
		}
		if err := r.registry.SetAutoApprove(r.registry.ActiveID(), args[0] == "on"); err != nil {
			color.Red("auto: %v", err)
		}
	case "/apikey":
		if len(args) != 1 {
			color.Red("usage: /apikey <key>")
			return
		}
		if !r.sender.Send(protocol.NewSetAPIKey(args[0])) {
			color.Red("apikey: not connected")
		}
	case "/voice":
		r.voiceCmd(args)
	case "/status":
		r.status()
	default:
		color.Red("unknown command %s (try /help)", cmd)
	}
}

func (r *repl) help() {
	color.White(`commands:
  /agents                 list agents
  /new [label]            create an agent
  /switch <id>            make an agent active
  /destroy <id>           destroy an agent
  /cwd <path>             set the active agent's working directory
  /browse [path]          list a remote directory
  /interrupt              interrupt the active agent's turn
  /pending                list pending permission requests
  /approve <id> [pin]     approve a permission request
  /deny <id>              deny a permission request
  /auto on|off            toggle auto-approve for the active agent
  /apikey <key>           forward a provider api key to the backend
  /voice on|off           toggle the voice session
  /status                 show connection and model telemetry`)
}

func (r *repl) listAgents() {
	active := r.registry.ActiveID()
	for _, a := range r.registry.Agents() {
		marker := " "
		if a.ID == active {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s  %-12s %s", marker, shortID(a.ID), a.Label, a.Status)
		if a.Cwd != "" {
			line += "  " + a.Cwd
		}
		if a.Unread > 0 {
			line += fmt.Sprintf("  (%d unread)", a.Unread)
		}
		color.White("%s", line)
	}
}

func (r *repl) listPending() {
	for _, a := range r.registry.Agents() {
		for _, req := range r.tracker.Pending(a.ID) {
			color.Magenta("%s  %s  %s  %s", req.ID, shortID(a.ID), req.Tool, req.RiskLevel)
		}
	}
}

func (r *repl) respond(requestID string, approve bool, pin string) {
	if err := r.tracker.Respond(requestID, approve, pin); err != nil {
		color.Red("respond: %v", err)
	}
}

func (r *repl) browse(ctx context.Context, path string) {
	if r.browser == nil {
		color.Red("browse: no collaborator configured")
		return
	}
	entries, err := r.browser.Browse(ctx, path)
	if err != nil {
		color.Red("browse: %v", err)
		return
	}
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		color.White("%s", name)
	}
}

func (r *repl) voiceCmd(args []string) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		color.Red("usage: /voice on|off")
		return
	}
	if args[0] == "off" {
		r.pipeline.Deactivate()
		return
	}
	if err := r.pipeline.Activate(r.registry.ActiveID()); err != nil {
		color.Red("voice: %v", err)
	}
}

func (r *repl) status() {
	model, limits, statusLine := r.telemetry.Snapshot()
	if statusLine != "" {
		color.White("status: %s", statusLine)
	}
	if model.Model != "" {
		color.White("model: %s (%d/%d context)", model.Model, model.ContextUsed, model.ContextWindow)
	}
	if limits.RequestsRemaining > 0 || limits.TokensRemaining > 0 {
		color.White("limits: %d requests, %d tokens remaining", limits.RequestsRemaining, limits.TokensRemaining)
	}
}

// withAgentArg resolves an id prefix argument and runs fn on the match.
func (r *repl) withAgentArg(args []string, fn func(id string)) {
	if len(args) != 1 {
		color.Red("expected one agent id")
		return
	}
	id, err := r.resolveAgent(args[0])
	if err != nil {
		color.Red("%v", err)
		return
	}
	fn(id)
}

// resolveAgent matches a full id or unique prefix against known agents.
func (r *repl) resolveAgent(prefix string) (string, error) {
	var match string
	for _, a := range r.registry.Agents() {
		if a.ID == prefix {
			return a.ID, nil
		}
		if strings.HasPrefix(a.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("ambiguous agent id %q", prefix)
			}
			match = a.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no agent matching %q", prefix)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
