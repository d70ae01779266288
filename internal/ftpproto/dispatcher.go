package ftpproto

import (
	"fmt"
	"regexp"
	"strings"
)

var commandNameRe = regexp.MustCompile(`^[A-Za-z]{1,8}$`)

// Dispatcher holds the command table and runs the gate checks of spec.md
// §4.4 before invoking a handler.
type Dispatcher struct {
	commands map[string]*Command
}

// NewDispatcher builds a dispatcher from a command table.
func NewDispatcher(commands []*Command) *Dispatcher {
	d := &Dispatcher{commands: make(map[string]*Command, len(commands))}

	for _, c := range commands {
		d.commands[c.Name] = c
	}

	return d
}

// ParseLine splits a raw control line into an uppercased command name and
// its parameter remainder (spec.md §4.4: command is `[A-Za-z]+`, uppercased,
// bounded at 8 characters).
func ParseLine(line string) (name, param string, ok bool) {
	line = strings.TrimRight(line, "\r\n")

	parts := strings.SplitN(line, " ", 2)
	name = strings.ToUpper(parts[0])

	if len(parts) == 2 {
		param = parts[1]
	}

	return name, param, commandNameRe.MatchString(name)
}

// Dispatch runs the gate checks for name and, if they all pass, invokes its
// handler. It never panics: a handler is expected to return errors as a
// Reply, not via panic, but Dispatch recovers anyway and turns a panic into
// the 421 + close-session reply spec.md §4.4 "Exception policy" mandates.
func (d *Dispatcher) Dispatch(ctx *Context, name, param string) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			reply = replyClosing(StatusServiceNotAvailable, fmt.Sprintf("internal error: %v", r))
		}
	}()

	cmd, ok := d.commands[name]
	if !ok {
		return Replyf(StatusCommandNotImplemented, fmt.Sprintf("Unknown command %q", name))
	}

	if gateReply, failed := d.checkGates(ctx, cmd, param); failed {
		return gateReply
	}

	var groups []string

	if cmd.Gates.ParamRegex != nil {
		m := cmd.Gates.ParamRegex.FindStringSubmatch(param)
		if m == nil {
			return Replyf(StatusSyntaxErrorParameters, "Invalid parameters")
		}

		groups = m
	}

	reply = cmd.Handler(ctx, param, groups)

	ctx.State.SetPrevCmd(name)
	ctx.State.FireAbortIfPending()

	return reply
}

func (d *Dispatcher) checkGates(ctx *Context, cmd *Command, param string) (Reply, bool) {
	g := cmd.Gates

	if g.NeedPrevCmd != "" && ctx.State.PrevCmd() != g.NeedPrevCmd {
		return Replyf(StatusBadCommandSequence, fmt.Sprintf("%s must follow %s", cmd.Name, g.NeedPrevCmd)), true
	}

	if g.MustBeLoggedIn && !ctx.State.IsLoggedIn() {
		return Replyf(StatusNotLoggedIn, "Please login with USER and PASS"), true
	}

	if g.MustNotBeLoggedIn && ctx.State.IsLoggedIn() {
		return Replyf(StatusActionNotTakenNoFile, "You are logged in!"), true
	}

	if g.MustBeInTransfer && ctx.State.Transfer() == 0 {
		return Replyf(StatusActionNotTakenNoFile, "No active file transfer"), true
	}

	if g.MustNotBeInTransfer && ctx.State.Transfer() != 0 {
		return Replyf(StatusActionNotTakenNoFile, "Active file transfer!"), true
	}

	if g.NeedPostOrPasv && ctx.State.Initiation() == 0 {
		return Replyf(StatusBadCommandSequence, fmt.Sprintf("Need PASV or PORT before %s", cmd.Name)), true
	}

	if g.MustHaveEncryption && !ctx.State.ControlEncrypted() {
		return Replyf(StatusTLSRequired, "Operation requires a secure control connection"), true
	}

	return Reply{}, false
}
