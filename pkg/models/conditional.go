package models

// ExpressionType discriminates the three condition kinds.
type ExpressionType string

const (
	ExpressionTypeSimple   ExpressionType = "simple"
	ExpressionTypeCompound ExpressionType = "compound"
	ExpressionTypeScript   ExpressionType = "script"
)

// Operator is the fixed comparison set for simple expressions.
type Operator string

const (
	OperatorEquals     Operator = "equals"
	OperatorNotEquals  Operator = "not-equals"
	OperatorGreater    Operator = "greater"
	OperatorLess       Operator = "less"
	OperatorContains   Operator = "contains"
	OperatorStartsWith Operator = "starts-with"
	OperatorEndsWith   Operator = "ends-with"
	OperatorRegex      Operator = "regex"
)

// CompoundLogic combines child expressions.
type CompoundLogic string

const (
	LogicAnd CompoundLogic = "and"
	LogicOr  CompoundLogic = "or"
	LogicNot CompoundLogic = "not" // Negates children[0] only; extra children are ignored
)

// ConditionalExpression is a simple comparison, a compound of children, or an
// inline script body, per its Type.
type ConditionalExpression struct {
	ID       string                  `json:"id,omitempty"`
	Type     ExpressionType          `json:"type" validate:"required,oneof=simple compound script"`
	Operator Operator                `json:"operator,omitempty"`
	Left     string                  `json:"left,omitempty"`
	Right    string                  `json:"right,omitempty"`
	Logic    CompoundLogic           `json:"logic,omitempty"`
	Children []ConditionalExpression `json:"children,omitempty"`
	Script   string                  `json:"script,omitempty"`
}

// LoopType discriminates the four loop kinds.
type LoopType string

const (
	LoopTypeForEach LoopType = "for-each"
	LoopTypeWhile   LoopType = "while"
	LoopTypeFor     LoopType = "for"
	LoopTypeDoWhile LoopType = "do-while"
)

// LoopConfig drives iteration for a loop node. MaxIterations is an
// unconditional ceiling across all loop kinds.
type LoopConfig struct {
	Type               LoopType                `json:"type" validate:"required,oneof=for-each while for do-while"`
	Condition          *ConditionalExpression  `json:"condition,omitempty"`  // Continuation predicate for while/do-while
	Collection         string                  `json:"collection,omitempty"` // Variable reference for for-each
	StartIndex         int                     `json:"start_index,omitempty"`
	EndIndex           int                     `json:"end_index,omitempty"`
	Step               int                     `json:"step,omitempty"`
	MaxIterations      int                     `json:"max_iterations,omitempty"`
	BreakConditions    []ConditionalExpression `json:"break_conditions,omitempty"`
	ContinueConditions []ConditionalExpression `json:"continue_conditions,omitempty"`
}

// BranchPath is one selectable path out of a condition node: the guard on its
// connection plus the reachable subgraph up to the next condition node.
type BranchPath struct {
	ConnectionID string   `json:"connection_id"`
	Condition    string   `json:"condition,omitempty"`
	Priority     int      `json:"priority"`
	IsDefault    bool     `json:"is_default"`
	NodeIDs      []string `json:"node_ids"`
	Connections  []string `json:"connections"`
}
