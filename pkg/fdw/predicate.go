package fdw

import (
	"fmt"

	"github.com/credativ/informix-fdw-sub001/pkg/ifxtype"
)

// Operator is a predicate comparison operator the planner may hand down.
type Operator int

const (
	OpEq Operator = iota
	OpNotEq
	OpLt
	OpLtOrEq
	OpGt
	OpGtOrEq
	OpIn
)

var operatorNames = map[Operator]string{
	OpEq:     "=",
	OpNotEq:  "<>",
	OpLt:     "<",
	OpLtOrEq: "<=",
	OpGt:     ">",
	OpGtOrEq: ">=",
	OpIn:     "in",
}

func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Clause is one conjunct of a scan predicate. For OpIn the Members list
// holds the candidate values; otherwise Value holds the comparand.
type Clause struct {
	Column  string
	Op      Operator
	Value   ifxtype.Value
	Members []ifxtype.Value
}

// Matches evaluates the clause against a decoded value, applying the
// local engine's NULL semantics: a NULL comparand matches nothing.
func (c Clause) Matches(v ifxtype.Value) bool {
	if v.IsNull() {
		return false
	}
	switch c.Op {
	case OpEq:
		return v.Equal(c.Value)
	case OpNotEq:
		if c.Value.IsNull() {
			return false
		}
		return !v.Equal(c.Value)
	case OpIn:
		for _, m := range c.Members {
			if v.Equal(m) {
				return true
			}
		}
		return false
	default:
		cmp, ok := v.Compare(c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpLt:
			return cmp < 0
		case OpLtOrEq:
			return cmp <= 0
		case OpGt:
			return cmp > 0
		case OpGtOrEq:
			return cmp >= 0
		}
		return false
	}
}

// Predicate is the conjunction of clauses decided by the planner.
type Predicate []Clause

// Matches evaluates the whole conjunction against one decoded row.
func (p Predicate) Matches(binding TableBinding, values []ifxtype.Value) bool {
	for _, c := range p {
		idx := -1
		for i, col := range binding.Columns {
			if col.Name == c.Column {
				idx = i
				break
			}
		}
		if idx < 0 || idx >= len(values) {
			return false
		}
		if !c.Matches(values[idx]) {
			return false
		}
	}
	return true
}
