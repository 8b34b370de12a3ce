package intrin

import "github.com/gogpu/tensorshade/ir"

// RecognizeStmt runs Recognize over every expression reachable from s,
// bottom-up through the statement tree, completing the B step of the
// IR → recognizer → emitter pipeline for whole kernel
// bodies rather than single expressions. With opts.DisableIntrinsics it
// returns s unchanged, same as Recognize.
func RecognizeStmt(s *ir.Stmt, opts Options) *ir.Stmt {
	if s == nil || opts.DisableIntrinsics {
		return s
	}
	return rewriteStmt(s, opts)
}

func rewriteStmt(s *ir.Stmt, opts Options) *ir.Stmt {
	if s == nil {
		return nil
	}
	switch k := s.Kind.(type) {
	case ir.Block:
		stmts := make([]*ir.Stmt, len(k.Stmts))
		for i, c := range k.Stmts {
			stmts[i] = rewriteStmt(c, opts)
		}
		return &ir.Stmt{Kind: ir.Block{Stmts: stmts}}
	case ir.Store:
		return &ir.Stmt{Kind: ir.Store{
			Name:      k.Name,
			Index:     Recognize(k.Index, opts),
			Value:     Recognize(k.Value, opts),
			Predicate: Recognize(k.Predicate, opts),
		}}
	case ir.LetStmt:
		return &ir.Stmt{Kind: ir.LetStmt{
			Name:  k.Name,
			Value: Recognize(k.Value, opts),
			Body:  rewriteStmt(k.Body, opts),
		}}
	case ir.For:
		return &ir.Stmt{Kind: ir.For{
			Name:    k.Name,
			Min:     Recognize(k.Min, opts),
			Extent:  Recognize(k.Extent, opts),
			ForType: k.ForType,
			Dim:     k.Dim,
			Body:    rewriteStmt(k.Body, opts),
		}}
	case ir.IfThenElse:
		return &ir.Stmt{Kind: ir.IfThenElse{
			Cond: Recognize(k.Cond, opts),
			Then: rewriteStmt(k.Then, opts),
			Else: rewriteStmt(k.Else, opts),
		}}
	case ir.Allocate:
		extents := make([]*ir.Expr, len(k.Extents))
		for i, e := range k.Extents {
			extents[i] = Recognize(e, opts)
		}
		return &ir.Stmt{Kind: ir.Allocate{
			Name:    k.Name,
			Type:    k.Type,
			Extents: extents,
			Body:    rewriteStmt(k.Body, opts),
		}}
	case ir.Free:
		return s
	case ir.Evaluate:
		return &ir.Stmt{Kind: ir.Evaluate{Value: Recognize(k.Value, opts)}}
	case ir.AssertStmt:
		return &ir.Stmt{Kind: ir.AssertStmt{
			Condition: Recognize(k.Condition, opts),
			Message:   Recognize(k.Message, opts),
		}}
	default:
		panic("intrin: rewriteStmt: unhandled StmtKind")
	}
}
