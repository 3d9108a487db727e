package descriptor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	uerrors "github.com/pushchain/push-wallet-signer/walletClient/errors"
)

// MaxHandleSize bounds a handle accepted from the caller.
const MaxHandleSize = 1 << 20

// Handle is the engine-owned artifact for this device's key share.
// Its contents are never interpreted here.
type Handle string

// String returns the handle text.
func (h Handle) String() string { return string(h) }

// GoString hides the handle from %#v so it does not end up in logs.
func (h Handle) GoString() string { return fmt.Sprintf("descriptor.Handle(len=%d)", len(h)) }

// ParseHandle checks the handle envelope: non-empty, valid UTF-8, no
// surrounding whitespace and within MaxHandleSize.
func ParseHandle(data []byte) (Handle, error) {
	const op = "descriptor.ParseHandle"

	switch {
	case len(data) == 0:
		return "", uerrors.NewParseError(op, "handle is empty", nil)
	case len(data) > MaxHandleSize:
		return "", uerrors.NewParseError(op, fmt.Sprintf("handle exceeds %d bytes", MaxHandleSize), nil)
	case !utf8.Valid(data):
		return "", uerrors.NewParseError(op, "handle is not valid UTF-8", nil)
	}

	s := string(data)
	if strings.TrimSpace(s) != s {
		return "", uerrors.NewParseError(op, "handle has leading or trailing whitespace", nil)
	}
	return Handle(s), nil
}

// ParseHandleString is ParseHandle for string input.
func ParseHandleString(s string) (Handle, error) {
	return ParseHandle([]byte(s))
}
