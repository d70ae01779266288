package ftpproto

import "regexp"

var mfmtParamRe = regexp.MustCompile(`^(\d{14})\s+(.+)$`)

// Commands returns the full 48-entry command table (spec.md §4.4), each
// entry naming its gates; the dispatcher checks them in its own fixed order,
// whatever order the fields are written in.
func Commands() []*Command {
	return []*Command{
		{Name: "USER", Handler: handleUSER, Gates: Gates{MustNotBeLoggedIn: true}},
		{Name: "PASS", Handler: handlePASS, Gates: Gates{NeedPrevCmd: "USER"}},
		{Name: "QUIT", Handler: handleQUIT},
		{Name: "NOOP", Handler: handleNOOP},
		{Name: "FEAT", Handler: handleFEAT},
		{Name: "OPTS", Handler: handleOPTS},
		{Name: "SYST", Handler: handleSYST},
		{Name: "TYPE", Handler: handleTYPE, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "CLNT", Handler: handleCLNT},
		{Name: "STAT", Handler: handleSTAT, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "SITE", Handler: handleSITE, Gates: Gates{MustBeLoggedIn: true}},

		{Name: "AUTH", Handler: handleAUTH},
		{Name: "PBSZ", Handler: handlePBSZ, Gates: Gates{MustHaveEncryption: true}},
		{Name: "PROT", Handler: handlePROT, Gates: Gates{MustHaveEncryption: true}},

		{Name: "PWD", Handler: handlePWD, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "CWD", Handler: handleCWD, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "CDUP", Handler: handleCDUP, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "MKD", Handler: handleMKD, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "RMD", Handler: handleRMD, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "DELE", Handler: handleDELE, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "RNFR", Handler: handleRNFR, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "RNTO", Handler: handleRNTO, Gates: Gates{MustBeLoggedIn: true, NeedPrevCmd: "RNFR"}},

		{Name: "PORT", Handler: handlePORT, Gates: Gates{MustBeLoggedIn: true, MustNotBeInTransfer: true}},
		{Name: "PASV", Handler: handlePASV, Gates: Gates{MustBeLoggedIn: true, MustNotBeInTransfer: true}},
		{Name: "ABOR", Handler: handleABOR, Gates: Gates{MustBeLoggedIn: true}},

		{Name: "RETR", Handler: handleRETR, Gates: Gates{MustBeLoggedIn: true, NeedPostOrPasv: true, MustNotBeInTransfer: true}},
		{Name: "STOR", Handler: handleSTOR, Gates: Gates{MustBeLoggedIn: true, NeedPostOrPasv: true, MustNotBeInTransfer: true}},
		{Name: "APPE", Handler: handleAPPE, Gates: Gates{MustBeLoggedIn: true, NeedPostOrPasv: true, MustNotBeInTransfer: true}},
		{Name: "STOU", Handler: handleSTOU, Gates: Gates{MustBeLoggedIn: true, NeedPostOrPasv: true, MustNotBeInTransfer: true}},
		{Name: "LIST", Handler: handleLIST, Gates: Gates{MustBeLoggedIn: true, NeedPostOrPasv: true, MustNotBeInTransfer: true}},
		{Name: "NLST", Handler: handleNLST, Gates: Gates{MustBeLoggedIn: true, NeedPostOrPasv: true, MustNotBeInTransfer: true}},
		{Name: "MLSD", Handler: handleMLSD, Gates: Gates{MustBeLoggedIn: true, NeedPostOrPasv: true, MustNotBeInTransfer: true}},
		{Name: "MLST", Handler: handleMLST, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "COMB", Handler: handleCOMB, Gates: Gates{MustBeLoggedIn: true}},

		{Name: "ALLO", Handler: handleALLO, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "REST", Handler: handleREST, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "SIZE", Handler: handleSIZE, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "MDTM", Handler: handleMDTM, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "MFMT", Handler: handleMFMT, Gates: Gates{MustBeLoggedIn: true, ParamRegex: mfmtParamRe}},
		{Name: "AVBL", Handler: handleAVBL, Gates: Gates{MustBeLoggedIn: true}},

		{Name: "HASH", Handler: handleHASH, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "XCRC", Handler: handleXCRC, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "MD5", Handler: handleXMD5, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "XSHA1", Handler: handleXSHA1, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "XSHA256", Handler: handleXSHA256, Gates: Gates{MustBeLoggedIn: true}},
		{Name: "XSHA512", Handler: handleXSHA512, Gates: Gates{MustBeLoggedIn: true}},

		// EPRT/EPSV are registered but intentionally unimplemented
		// (spec.md §5 Non-goals): IPv6 and extended addressing are out of
		// scope for this engine.
		{Name: "EPRT", Handler: handleNotImplemented},
		{Name: "EPSV", Handler: handleNotImplemented},
	}
}

func handleNotImplemented(ctx *Context, _ string, _ []string) Reply {
	return Replyf(StatusCommandNotImplemented, "Command not implemented")
}
