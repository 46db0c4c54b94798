package fdw

import "github.com/credativ/informix-fdw-sub001/pkg/ifxtype"

// Strategy selects how a modification reaches the remote engine.
type Strategy int

const (
	// StrategyDirect sends standalone parameterized statements targeted
	// by a stable row identity. Default.
	StrategyDirect Strategy = iota

	// StrategyCursor positions the modification through the cursor that
	// produced the tuple being changed.
	StrategyCursor
)

func (s Strategy) String() string {
	if s == StrategyCursor {
		return "cursor"
	}
	return "direct"
}

// ModifyPlan describes the shape of the local execution plan feeding a
// modification, as decided by the excluded planner layer.
type ModifyPlan struct {
	Strategy Strategy

	// PreMaterialized is set when the plan materializes the remote side
	// before matching (e.g. a hash join); the cursor position no longer
	// tracks the tuple being changed.
	PreMaterialized bool

	// Reordering is set when the plan may re-order or re-fetch rows
	// relative to the cursor's advance order.
	Reordering bool
}

// CursorStrategyUsable is the capability probe the planner must consult
// before choosing the cursor strategy for a plan shape.
func CursorStrategyUsable(plan ModifyPlan) bool {
	return !plan.PreMaterialized && !plan.Reordering
}

// Row is one tuple exchanged through the scan and modify interfaces.
// RowID carries the remote row position token when the binding exposes
// one.
type Row struct {
	Values   []ifxtype.Value
	RowID    int64
	HasRowID bool
}
