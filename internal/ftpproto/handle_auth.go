package ftpproto

import "fmt"

// handleUSER stashes the candidate username, awaiting PASS.
func handleUSER(ctx *Context, param string, _ []string) Reply {
	ctx.State.SetPendingUser(param)

	return Replyf(StatusUserOK, "Password required")
}

// handlePASS authenticates against Driver and, on success, binds the
// session's Client and effective Permissions (spec.md §4.1 "Client").
func handlePASS(ctx *Context, param string, _ []string) Reply {
	client, perms, err := ctx.Driver.Authenticate(ctx.State.PendingUser(), param)
	if err != nil {
		return Replyf(StatusNotLoggedIn, fmt.Sprintf("Authentication problem: %v", err))
	}

	ctx.Sess.Login(client, perms)
	ctx.State.SetLoggedIn(client.Username)

	return Replyf(StatusUserLoggedIn, "Password ok, continue")
}
