package drivers

import (
	"errors"
	"os"

	"github.com/spf13/afero"
)

// ErrSymlinkNotImplemented is returned by Symlink when the backing Fs
// doesn't support afero.Linker (e.g. afero.NewMemMapFs).
var ErrSymlinkNotImplemented = errors.New("drivers: symlink not implemented")

// Chmod backs SITE CHMOD (internal/ftpproto.ChmodExtension).
func (d *AferoDriver) Chmod(ppath string, mode uint32) error {
	return d.Fs.Chmod(ppath, os.FileMode(mode))
}

// Symlink backs SITE SYMLINK (internal/ftpproto.SymlinkExtension). Only
// afero.Fs implementations satisfying afero.Linker (afero.OsFs does)
// support it; anything else reports it as unsupported.
func (d *AferoDriver) Symlink(oldPpath, newPpath string) error {
	linker, ok := d.Fs.(afero.Linker)
	if !ok {
		return ErrSymlinkNotImplemented
	}

	return linker.SymlinkIfPossible(oldPpath, newPpath)
}
