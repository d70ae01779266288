package ftpproto

import (
	"fmt"
	"net"

	"github.com/jgaa/wfde/internal/transfer"
)

// handlePORT arms active mode: the client advertises the address it will
// listen on, and the data connection is dialed out from the server
// (spec.md §4.6).
func handlePORT(ctx *Context, param string, _ []string) Reply {
	addr, err := transfer.ParsePortArg(param)
	if err != nil {
		return Replyf(StatusSyntaxErrorParameters, fmt.Sprintf("Invalid PORT argument: %v", err))
	}

	ctx.State.SetActive(addr.String())

	return Replyf(StatusOK, "PORT command successful")
}

// handlePASV arms passive mode: wfde binds a listening socket and reports
// its address, and the data connection is accepted rather than dialed
// (spec.md §4.6). The listener itself is never TLS-wrapped: transfer.Run
// upgrades the accepted data connection to TLS when PROT P is in effect,
// the same single upgrade point active mode's DialActive goes through.
func handlePASV(ctx *Context, _ string, _ []string) Reply {
	localIP := localIPOf(ctx.LocalAddr)

	acceptor, err := transfer.Listen(localIP, ctx.PasvPortRange, nil)
	if err != nil {
		return Replyf(StatusCannotOpenDataConnection, fmt.Sprintf("Could not listen for passive connection: %v", err))
	}

	ctx.State.SetPassive(acceptor)

	return Replyf(StatusEnteringPASV,
		fmt.Sprintf("Entering Passive Mode (%s)", transfer.EncodePASVReply(ctx.PublicIP, acceptor)))
}

// handleABOR signals a pending abort; the dispatcher fires the data
// connection's abort callback (if any) right after this handler returns
// (spec.md §4.5 "Abort protocol").
func handleABOR(ctx *Context, _ string, _ []string) Reply {
	if ctx.State.Transfer() == 0 {
		return Replyf(StatusClosingDataConn, "No transfer to abort")
	}

	ctx.State.SetAbortPending(true)

	return Replyf(StatusClosingDataConn, "ABOR command successful")
}

func localIPOf(addr net.Addr) net.IP {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil
	}

	return tcpAddr.IP
}
