package ftpproto

import (
	"crypto/tls"

	"github.com/jgaa/wfde/internal/session"
	"github.com/jgaa/wfde/internal/transfer"
)

// dataTLSConfig returns ctx.TLSConfig iff PROT P is in effect for this
// session, nil otherwise (spec.md §4.5 step 5).
func (ctx *Context) dataTLSConfig() *tls.Config {
	if ctx.State.EncryptTransfers() {
		return ctx.TLSConfig
	}

	return nil
}

// transferParams builds the common fields of a transfer.Params for a task
// moving data in dir, leaving Data and Vpath for the caller to fill in.
func (ctx *Context) transferParams(dir session.Direction) transfer.Params {
	return transfer.Params{
		Sess:        ctx.Sess,
		State:       ctx.State,
		Reply:       ctx.Reply,
		Direction:   dir,
		LocalAddr:   ctx.LocalAddr,
		TLSConfig:   ctx.dataTLSConfig(),
		DialTimeout: ctx.DialTimeout,
	}
}

// startTransfer arms the transfer direction and hands the task off to the
// session's own worker goroutine (spec.md §5 "Scheduling model"); the
// dispatcher does not write any further reply for the handler that called
// this (transfer.Run writes its own 150/226/4xx replies directly).
func (ctx *Context) startTransfer(p transfer.Params) {
	ctx.State.BeginTransfer(p.Direction)

	data := ctx.Sess.Data()
	if data == nil {
		transfer.Run(p)

		return
	}

	data.StartTransfer(func() { transfer.Run(p) })
}
