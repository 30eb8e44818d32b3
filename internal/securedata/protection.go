package securedata

import (
	"strings"

	kerrors "krypton.module/internal/errors"
)

// Protection is the access state the MMU enforces on a buffer's region.
type Protection int

const (
	ReadWrite Protection = iota
	ReadOnly
	NoAccess
)

func (p Protection) String() string {
	switch p {
	case ReadWrite:
		return "ReadWrite"
	case ReadOnly:
		return "ReadOnly"
	case NoAccess:
		return "NoAccess"
	default:
		return "Protection(?)"
	}
}

// ParseProtection accepts "readwrite", "readonly" and "noaccess" in any case,
// with or without separators.
func ParseProtection(s string) (Protection, error) {
	normalized := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	switch normalized {
	case "readwrite", "rw":
		return ReadWrite, nil
	case "readonly", "ro":
		return ReadOnly, nil
	case "noaccess", "none":
		return NoAccess, nil
	}
	return 0, kerrors.NewInvalidInputError(s, "protection must be one of readwrite, readonly, noaccess")
}
