package ftpproto

// Optional driver extensions a Driver may additionally implement; handlers
// type-assert for them and fall back to a 502 reply when absent
// (spec.md §9 supplemented features, grounded on the teacher's
// ClientDriverExtension* pattern in handle_files.go/handle_misc.go).
type (
	// AvailableSpaceExtension backs the AVBL command.
	AvailableSpaceExtension interface {
		AvailableSpace(ppath string) (int64, error)
	}

	// SymlinkExtension backs SITE SYMLINK.
	SymlinkExtension interface {
		Symlink(oldPpath, newPpath string) error
	}

	// ChmodExtension backs SITE CHMOD.
	ChmodExtension interface {
		Chmod(ppath string, mode uint32) error
	}
)
