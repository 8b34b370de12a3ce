package ir

import (
	"encoding/json"
	"fmt"
)

// JSON encoding for the expression and statement trees, used by the
// tshadec CLI's kernel fixture files. Each node is an object with a
// "kind" discriminator; expressions additionally carry their "type".
// The tag names follow the node names in lower_snake_case.

type typeJSON struct {
	Code  string `json:"code"`
	Bits  uint8  `json:"bits"`
	Lanes uint8  `json:"lanes"`
}

var codeNames = map[Code]string{
	Int: "int", Uint: "uint", Float: "float", Bool: "bool", HandleCode: "handle",
}

// MarshalJSON encodes a Type as {"code","bits","lanes"} with a symbolic
// code name.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(typeJSON{Code: codeNames[t.Code], Bits: t.Bits, Lanes: t.Lanes})
}

// UnmarshalJSON decodes the form MarshalJSON produces.
func (t *Type) UnmarshalJSON(data []byte) error {
	var raw typeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for code, name := range codeNames {
		if name == raw.Code {
			*t = Type{Code: code, Bits: raw.Bits, Lanes: raw.Lanes}
			return nil
		}
	}
	return fmt.Errorf("ir: unknown type code %q", raw.Code)
}

type exprJSON struct {
	Kind string          `json:"kind"`
	Type json.RawMessage `json:"type,omitempty"`

	Int    *int64   `json:"int,omitempty"`
	Uint   *uint64  `json:"uint,omitempty"`
	Float  *float64 `json:"float,omitempty"`
	Str    *string  `json:"str,omitempty"`
	Bool   *bool    `json:"bool,omitempty"`
	Name   string   `json:"name,omitempty"`
	Op     string   `json:"op,omitempty"`
	Lanes  int      `json:"lanes,omitempty"`
	Stride *Expr    `json:"stride,omitempty"`
	Base   *Expr    `json:"base,omitempty"`

	X    *Expr   `json:"x,omitempty"`
	Y    *Expr   `json:"y,omitempty"`
	Cond *Expr   `json:"cond,omitempty"`
	T    *Expr   `json:"t,omitempty"`
	F    *Expr   `json:"f,omitempty"`
	Args []*Expr `json:"args,omitempty"`

	Index     *Expr   `json:"index,omitempty"`
	Predicate *Expr   `json:"predicate,omitempty"`
	Value     *Expr   `json:"value,omitempty"`
	Body      *Expr   `json:"body,omitempty"`
	Vectors   []*Expr `json:"vectors,omitempty"`
	Indices   []int   `json:"indices,omitempty"`
}

var opByName = func() map[string]IntrinsicOp {
	m := make(map[string]IntrinsicOp, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

type binaryCtor func(x, y *Expr) ExprKind

var binaryKinds = map[string]binaryCtor{
	"add": func(x, y *Expr) ExprKind { return Add{X: x, Y: y} },
	"sub": func(x, y *Expr) ExprKind { return Sub{X: x, Y: y} },
	"mul": func(x, y *Expr) ExprKind { return Mul{X: x, Y: y} },
	"div": func(x, y *Expr) ExprKind { return Div{X: x, Y: y} },
	"mod": func(x, y *Expr) ExprKind { return Mod{X: x, Y: y} },
	"min": func(x, y *Expr) ExprKind { return Min{X: x, Y: y} },
	"max": func(x, y *Expr) ExprKind { return Max{X: x, Y: y} },
	"eq":  func(x, y *Expr) ExprKind { return EQ{X: x, Y: y} },
	"ne":  func(x, y *Expr) ExprKind { return NE{X: x, Y: y} },
	"lt":  func(x, y *Expr) ExprKind { return LT{X: x, Y: y} },
	"le":  func(x, y *Expr) ExprKind { return LE{X: x, Y: y} },
	"gt":  func(x, y *Expr) ExprKind { return GT{X: x, Y: y} },
	"ge":  func(x, y *Expr) ExprKind { return GE{X: x, Y: y} },
	"and": func(x, y *Expr) ExprKind { return And{X: x, Y: y} },
	"or":  func(x, y *Expr) ExprKind { return Or{X: x, Y: y} },
}

// UnmarshalJSON decodes an expression node from its tagged-object form.
func (e *Expr) UnmarshalJSON(data []byte) error {
	var raw exprJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Type) > 0 {
		if err := e.Type.UnmarshalJSON(raw.Type); err != nil {
			return err
		}
	}
	if ctor, ok := binaryKinds[raw.Kind]; ok {
		if raw.X == nil || raw.Y == nil {
			return fmt.Errorf("ir: %s node needs x and y", raw.Kind)
		}
		e.Kind = ctor(raw.X, raw.Y)
		return nil
	}
	switch raw.Kind {
	case "imm_int":
		if raw.Int == nil {
			return fmt.Errorf("ir: imm_int needs an int field")
		}
		e.Kind = ImmInt{Value: *raw.Int}
	case "imm_uint":
		if raw.Uint == nil {
			return fmt.Errorf("ir: imm_uint needs a uint field")
		}
		e.Kind = ImmUint{Value: *raw.Uint}
	case "imm_float":
		if raw.Float == nil {
			return fmt.Errorf("ir: imm_float needs a float field")
		}
		e.Kind = ImmFloat{Value: *raw.Float}
	case "imm_str":
		if raw.Str == nil {
			return fmt.Errorf("ir: imm_str needs a str field")
		}
		e.Kind = ImmStr{Value: *raw.Str}
	case "imm_bool":
		if raw.Bool == nil {
			return fmt.Errorf("ir: imm_bool needs a bool field")
		}
		e.Kind = ImmBool{Value: *raw.Bool}
	case "var":
		e.Kind = Var{Name: raw.Name}
	case "cast":
		e.Kind = Cast{X: raw.X}
	case "reinterpret":
		e.Kind = Reinterpret{X: raw.X}
	case "not":
		e.Kind = Not{X: raw.X}
	case "select":
		e.Kind = Select{Cond: raw.Cond, T: raw.T, F: raw.F}
	case "load":
		e.Kind = Load{Name: raw.Name, Index: raw.Index, Predicate: raw.Predicate}
	case "ramp":
		e.Kind = Ramp{Base: raw.Base, Stride: raw.Stride, Lanes: raw.Lanes}
	case "broadcast":
		e.Kind = Broadcast{Value: raw.Value, Lanes: raw.Lanes}
	case "shuffle":
		e.Kind = Shuffle{Vectors: raw.Vectors, Indices: raw.Indices}
	case "call":
		op := OpNone
		if raw.Op != "" && raw.Op != "none" {
			var ok bool
			if op, ok = opByName[raw.Op]; !ok {
				return fmt.Errorf("ir: unknown intrinsic op %q", raw.Op)
			}
		}
		name := raw.Name
		if name == "" && op != OpNone {
			name = op.String()
		}
		e.Kind = Call{Name: name, Op: op, Args: raw.Args}
	case "let":
		e.Kind = Let{Name: raw.Name, Value: raw.Value, Body: raw.Body}
	default:
		return fmt.Errorf("ir: unknown expression kind %q", raw.Kind)
	}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (e *Expr) MarshalJSON() ([]byte, error) {
	raw := exprJSON{}
	typeJSONBytes, err := e.Type.MarshalJSON()
	if err != nil {
		return nil, err
	}
	raw.Type = typeJSONBytes

	switch k := e.Kind.(type) {
	case ImmInt:
		raw.Kind, raw.Int = "imm_int", &k.Value
	case ImmUint:
		raw.Kind, raw.Uint = "imm_uint", &k.Value
	case ImmFloat:
		raw.Kind, raw.Float = "imm_float", &k.Value
	case ImmStr:
		raw.Kind, raw.Str = "imm_str", &k.Value
	case ImmBool:
		raw.Kind, raw.Bool = "imm_bool", &k.Value
	case Var:
		raw.Kind, raw.Name = "var", k.Name
	case Cast:
		raw.Kind, raw.X = "cast", k.X
	case Reinterpret:
		raw.Kind, raw.X = "reinterpret", k.X
	case Add:
		raw.Kind, raw.X, raw.Y = "add", k.X, k.Y
	case Sub:
		raw.Kind, raw.X, raw.Y = "sub", k.X, k.Y
	case Mul:
		raw.Kind, raw.X, raw.Y = "mul", k.X, k.Y
	case Div:
		raw.Kind, raw.X, raw.Y = "div", k.X, k.Y
	case Mod:
		raw.Kind, raw.X, raw.Y = "mod", k.X, k.Y
	case Min:
		raw.Kind, raw.X, raw.Y = "min", k.X, k.Y
	case Max:
		raw.Kind, raw.X, raw.Y = "max", k.X, k.Y
	case EQ:
		raw.Kind, raw.X, raw.Y = "eq", k.X, k.Y
	case NE:
		raw.Kind, raw.X, raw.Y = "ne", k.X, k.Y
	case LT:
		raw.Kind, raw.X, raw.Y = "lt", k.X, k.Y
	case LE:
		raw.Kind, raw.X, raw.Y = "le", k.X, k.Y
	case GT:
		raw.Kind, raw.X, raw.Y = "gt", k.X, k.Y
	case GE:
		raw.Kind, raw.X, raw.Y = "ge", k.X, k.Y
	case And:
		raw.Kind, raw.X, raw.Y = "and", k.X, k.Y
	case Or:
		raw.Kind, raw.X, raw.Y = "or", k.X, k.Y
	case Not:
		raw.Kind, raw.X = "not", k.X
	case Select:
		raw.Kind, raw.Cond, raw.T, raw.F = "select", k.Cond, k.T, k.F
	case Load:
		raw.Kind, raw.Name, raw.Index, raw.Predicate = "load", k.Name, k.Index, k.Predicate
	case Ramp:
		raw.Kind, raw.Base, raw.Stride, raw.Lanes = "ramp", k.Base, k.Stride, k.Lanes
	case Broadcast:
		raw.Kind, raw.Value, raw.Lanes = "broadcast", k.Value, k.Lanes
	case Shuffle:
		raw.Kind, raw.Vectors, raw.Indices = "shuffle", k.Vectors, k.Indices
	case Call:
		raw.Kind, raw.Name, raw.Args = "call", k.Name, k.Args
		if k.Op != OpNone {
			raw.Op = k.Op.String()
		}
	case Let:
		raw.Kind, raw.Name, raw.Value, raw.Body = "let", k.Name, k.Value, k.Body
	default:
		return nil, fmt.Errorf("ir: MarshalJSON: unhandled ExprKind %T", e.Kind)
	}
	return json.Marshal(raw)
}

type stmtJSON struct {
	Kind string `json:"kind"`

	Stmts     []*Stmt `json:"stmts,omitempty"`
	Name      string  `json:"name,omitempty"`
	Index     *Expr   `json:"index,omitempty"`
	Value     *Expr   `json:"value,omitempty"`
	Predicate *Expr   `json:"predicate,omitempty"`
	Body      *Stmt   `json:"body,omitempty"`

	Min     *Expr  `json:"min,omitempty"`
	Extent  *Expr  `json:"extent,omitempty"`
	ForType string `json:"for_type,omitempty"`
	Dim     string `json:"dim,omitempty"`

	Cond *Expr `json:"cond,omitempty"`
	Then *Stmt `json:"then,omitempty"`
	Else *Stmt `json:"else,omitempty"`

	Type      json.RawMessage `json:"type,omitempty"`
	Extents   []*Expr         `json:"extents,omitempty"`
	Condition *Expr           `json:"condition,omitempty"`
	Message   *Expr           `json:"message,omitempty"`
}

var forTypeNames = map[ForType]string{
	ForSerial: "serial", ForGPUThread: "gpu_thread", ForGPUBlock: "gpu_block",
}

var dimNames = map[GPUDim]string{DimX: "x", DimY: "y", DimZ: "z"}

// UnmarshalJSON decodes a statement node from its tagged-object form.
func (s *Stmt) UnmarshalJSON(data []byte) error {
	var raw stmtJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "block":
		s.Kind = Block{Stmts: raw.Stmts}
	case "store":
		s.Kind = Store{Name: raw.Name, Index: raw.Index, Value: raw.Value, Predicate: raw.Predicate}
	case "let":
		s.Kind = LetStmt{Name: raw.Name, Value: raw.Value, Body: raw.Body}
	case "for":
		ft := ForSerial
		found := raw.ForType == "" // empty means serial
		for v, name := range forTypeNames {
			if name == raw.ForType {
				ft, found = v, true
			}
		}
		if !found {
			return fmt.Errorf("ir: unknown for_type %q", raw.ForType)
		}
		dim := DimX
		if raw.Dim != "" {
			ok := false
			for v, name := range dimNames {
				if name == raw.Dim {
					dim, ok = v, true
				}
			}
			if !ok {
				return fmt.Errorf("ir: unknown dim %q", raw.Dim)
			}
		}
		s.Kind = For{Name: raw.Name, Min: raw.Min, Extent: raw.Extent, ForType: ft, Dim: dim, Body: raw.Body}
	case "if":
		s.Kind = IfThenElse{Cond: raw.Cond, Then: raw.Then, Else: raw.Else}
	case "allocate":
		var t Type
		if len(raw.Type) > 0 {
			if err := t.UnmarshalJSON(raw.Type); err != nil {
				return err
			}
		}
		s.Kind = Allocate{Name: raw.Name, Type: t, Extents: raw.Extents, Body: raw.Body}
	case "free":
		s.Kind = Free{Name: raw.Name}
	case "evaluate":
		s.Kind = Evaluate{Value: raw.Value}
	case "assert":
		s.Kind = AssertStmt{Condition: raw.Condition, Message: raw.Message}
	default:
		return fmt.Errorf("ir: unknown statement kind %q", raw.Kind)
	}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (s *Stmt) MarshalJSON() ([]byte, error) {
	raw := stmtJSON{}
	switch k := s.Kind.(type) {
	case Block:
		raw.Kind, raw.Stmts = "block", k.Stmts
	case Store:
		raw.Kind, raw.Name, raw.Index, raw.Value, raw.Predicate = "store", k.Name, k.Index, k.Value, k.Predicate
	case LetStmt:
		raw.Kind, raw.Name, raw.Value, raw.Body = "let", k.Name, k.Value, k.Body
	case For:
		raw.Kind, raw.Name, raw.Min, raw.Extent, raw.Body = "for", k.Name, k.Min, k.Extent, k.Body
		raw.ForType = forTypeNames[k.ForType]
		raw.Dim = dimNames[k.Dim]
	case IfThenElse:
		raw.Kind, raw.Cond, raw.Then, raw.Else = "if", k.Cond, k.Then, k.Else
	case Allocate:
		typeBytes, err := k.Type.MarshalJSON()
		if err != nil {
			return nil, err
		}
		raw.Kind, raw.Name, raw.Type, raw.Extents, raw.Body = "allocate", k.Name, typeBytes, k.Extents, k.Body
	case Free:
		raw.Kind, raw.Name = "free", k.Name
	case Evaluate:
		raw.Kind, raw.Value = "evaluate", k.Value
	case AssertStmt:
		raw.Kind, raw.Condition, raw.Message = "assert", k.Condition, k.Message
	default:
		return nil, fmt.Errorf("ir: MarshalJSON: unhandled StmtKind %T", s.Kind)
	}
	return json.Marshal(raw)
}
