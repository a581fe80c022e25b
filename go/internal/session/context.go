package session

// Context carries the caller identity for one coordinator operation. The
// authority decision is made externally (lobby/transport layer); the
// engine only consumes the resulting flag, per operation, instead of
// reaching for a process-global "current session" reference.
type Context struct {
	SessionCode string
	PlayerID    string
	IsAuthority bool
}
