package vpath

import "errors"

// Normalization errors. Callers map these onto FTP reply codes per
// spec.md §7 (AccessDenied -> 550, BadPath -> 550/553).
var (
	ErrAccessDenied = errors.New("vpath: access denied")
	ErrBadPath      = errors.New("vpath: malformed path")
)

// Normalize returns the canonical absolute virtual path obtained by
// resolving vpath against currentDir, and rejects path-traversal attacks.
//
// From a security perspective this is the single most important function in
// the package (it is the FTP server's only defense against a client walking
// out of its sandbox via "..") and is modeled closely on
// original_source/src/wfde/WfdePath.cpp Path::NormalizeAndSplit, which
// carries the same warning in its original comment.
//
// The returned path never contains ".", "..", "//", "\" or a trailing "/"
// (except for the root path itself, "/"). Normalize is idempotent:
// Normalize(Normalize(p, c), c) == Normalize(p, c).
func Normalize(vpath, currentDir string) (string, error) {
	parts, err := NormalizeAndSplit(vpath, currentDir)
	if err != nil {
		return "", err
	}

	return join(parts), nil
}

// NormalizeAndSplit is Normalize without the final join, exposed so callers
// (permission lookups, mount resolution) can work on segments directly.
func NormalizeAndSplit(vpath, currentDir string) ([]string, error) {
	if vpath == "" {
		return Split(currentDir), nil
	}

	var parts []string

	if vpath[0] != '/' {
		parts = Split(currentDir)
	}

	i := 0
	n := len(vpath)

	for i < n {
		if vpath[i] == '/' {
			i++
			continue
		}

		if vpath[i] == '.' {
			// "." alone, or "./" -- strip.
			if i+1 == n {
				i++
				continue
			}

			if vpath[i+1] == '/' {
				i += 2
				continue
			}

			if vpath[i+1] == '.' {
				// ".." -- must be exactly ".." or "../", nothing else.
				if i+2 == n || vpath[i+2] == '/' {
					if len(parts) == 0 {
						return nil, errAccessDenied(vpath)
					}

					parts = parts[:len(parts)-1]
					i += 2

					if i < n {
						i++ // skip the separating '/'
					}

					continue
				}

				return nil, errBadPath(vpath)
			}
		}

		// Ordinary segment: scan to the next '/', rejecting backslashes. A
		// '.' past the first character that is followed by '.' or '/' ends
		// the segment early, and the dot run is read as the next segment:
		// "a.b" stays whole, "a./" reads as "a" then ".", "a../" as "a" then
		// "..", and "a..b" as "a" then "..b", which is rejected.
		start := i
		for i < n && vpath[i] != '/' {
			if vpath[i] == '\\' {
				return nil, errBadPath(vpath)
			}

			if vpath[i] == '.' && i > start && i+1 < n && (vpath[i+1] == '.' || vpath[i+1] == '/') {
				break
			}

			i++
		}

		if i > start {
			seg := vpath[start:i]
			if isDotsOnly(seg) {
				return nil, errBadPath(vpath)
			}

			parts = append(parts, seg)

			continue
		}

		return nil, errBadPath(vpath)
	}

	return parts, nil
}

func isDotsOnly(seg string) bool {
	for _, c := range seg {
		if c != '.' {
			return false
		}
	}

	return len(seg) >= 3
}

func join(parts []string) string {
	if len(parts) == 0 {
		return "/"
	}

	out := make([]byte, 0, 64)

	for _, p := range parts {
		out = append(out, '/')
		out = append(out, p...)
	}

	return string(out)
}

func errAccessDenied(vpath string) error {
	return &pathError{op: "normalize", path: vpath, err: ErrAccessDenied}
}

func errBadPath(vpath string) error {
	return &pathError{op: "normalize", path: vpath, err: ErrBadPath}
}

type pathError struct {
	op   string
	path string
	err  error
}

func (e *pathError) Error() string {
	return "vpath: " + e.op + " " + e.path + ": " + e.err.Error()
}

func (e *pathError) Unwrap() error { return e.err }
