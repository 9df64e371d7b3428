package session

import "errors"

var (
	// errTransportClosed is pushed onto a frameConn's errs channel when the
	// peer closes the connection cleanly (scanner reaches EOF with no
	// error).
	errTransportClosed = errors.New("session: transport closed")

	// ErrRegistrationRejected is returned by the handshake when the
	// coordinator responds with an explicit error frame.
	ErrRegistrationRejected = errors.New("session: registration rejected by coordinator")
)
