package remote

import (
	"fmt"

	"github.com/rs/zerolog"
)

// SQLState class boundaries as the remote engine reports them; class 100
// is end of data, classes at or above 200 concern the connection itself.
const (
	SQLStateSuccess  = "00000"
	SQLStateNotFound = "02000"
)

// ConnectivityError occurs when a session cannot be established or is
// lost mid-use. The owning cache entry is evicted and never retried
// automatically.
type ConnectivityError struct {
	error
	server string
}

// Server is the remote server identifier the session belonged to.
func (err ConnectivityError) Server() string { return err.server }

// MarshalZerologObject implements zerolog object marshalling.
func (err ConnectivityError) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("server", err.server)
}

// NewConnectivityErr constructs a new connectivity error.
func NewConnectivityErr(server string, cause error) error {
	return ConnectivityError{
		error:  fmt.Errorf("remote server %q: %w", server, cause),
		server: server,
	}
}

// ProtocolError occurs on a malformed or unexpected remote response. The
// connection is marked dead by the caller.
type ProtocolError struct {
	error
	sqlstate string
}

// SQLState is the five-character state code, when the engine supplied
// one.
func (err ProtocolError) SQLState() string { return err.sqlstate }

// MarshalZerologObject implements zerolog object marshalling.
func (err ProtocolError) MarshalZerologObject(e *zerolog.Event) {
	e.Err(err.error).Str("sqlstate", err.sqlstate)
}

// NewProtocolErr constructs a new protocol error.
func NewProtocolErr(sqlstate, format string, args ...any) error {
	return ProtocolError{
		error:    fmt.Errorf(format, args...),
		sqlstate: sqlstate,
	}
}
