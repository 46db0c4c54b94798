// Package remote defines the session protocol the bridge speaks to the
// remote engine: a flat (non-nested) transaction model with dynamic
// statements and server-side cursors, modelled after ESQL/C.
package remote

import (
	"context"
	"fmt"

	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

// ConnParams carries everything needed to establish one physical session.
// Credential resolution happens in the excluded catalog layer; the bridge
// receives the finished parameter set.
type ConnParams struct {
	ServerName string
	Username   string
	Password   string
	Database   string
	Locale     ifxtype.Locale

	// TxEnabled is false for remote databases created without logging;
	// such sessions silently accept but ignore transaction verbs.
	TxEnabled bool
}

// FetchDirection selects how a FETCH moves the cursor.
type FetchDirection int

const (
	FetchNext FetchDirection = iota
	FetchPrior
	FetchFirst
	FetchLast
	FetchAbsolute
	FetchRelative
	FetchCurrent
)

var directionNames = map[FetchDirection]string{
	FetchNext:     "next",
	FetchPrior:    "prior",
	FetchFirst:    "first",
	FetchLast:     "last",
	FetchAbsolute: "absolute",
	FetchRelative: "relative",
	FetchCurrent:  "current",
}

func (d FetchDirection) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Driver establishes sessions against one remote engine implementation.
type Driver interface {
	Connect(ctx context.Context, params ConnParams) (Session, error)
}

// Session is one physical connection to the remote engine. Every call is
// synchronous and blocking, executes in issue order, and must not be
// invoked concurrently: the remote protocol multiplexes statements over a
// single wire and callers serialize access. The protocol offers no
// mid-call cancel; timeouts belong to the transport below this interface.
type Session interface {
	// Begin, Commit and Rollback drive the single-level remote
	// transaction. Nesting is not representable here by design.
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Prepare registers a dynamic statement under a caller-chosen name.
	Prepare(ctx context.Context, stmtName, query string) error

	// Describe returns the result shape of a prepared statement.
	Describe(ctx context.Context, stmtName string) ([]ifxtype.ColumnDescriptor, error)

	// Declare binds a cursor to a prepared statement. A hold cursor
	// survives Commit; no cursor survives Rollback.
	Declare(ctx context.Context, cursorName, stmtName string, scroll, hold bool) error

	// Open executes the cursor's statement with the given arguments.
	Open(ctx context.Context, cursorName string, args []ifxtype.Datum) error

	// Fetch moves the cursor and returns one row, or (nil, nil) at end of
	// data. Forward-only cursors accept FetchNext and FetchCurrent only.
	Fetch(ctx context.Context, cursorName string, dir FetchDirection, pos int) ([]ifxtype.Datum, error)

	// CloseCursor releases the remote cursor resource.
	CloseCursor(ctx context.Context, cursorName string) error

	// Free releases a prepared statement or descriptor by name.
	Free(ctx context.Context, name string) error

	// Exec runs a standalone parameterized statement and returns the
	// affected row count.
	Exec(ctx context.Context, query string, args []ifxtype.Datum) (int64, error)

	// AtomicStatements reports whether the engine guarantees statement
	// level atomicity for multi-row DML. The bridge never claims
	// atomicity the engine does not provide.
	AtomicStatements() bool

	Close(ctx context.Context) error
}
