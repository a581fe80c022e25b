package session

import "errors"

// ErrNotAuthority rejects an operation invoked by a caller that does not
// hold the session's coordinator role. Entry points drop these silently
// after logging; nothing is stored and nothing is broadcast.
var ErrNotAuthority = errors.New("caller is not the session authority")
