package predicate

import "fmt"

// Rewrite translates a predicate over A into the equivalent predicate over
// B. Member accesses are re-resolved by name on B; a member that B lacks or
// declares with an incompatible type fails the rewrite with a *RewriteError.
// A nil predicate rewrites to nil.
func Rewrite[A, B any](p *Predicate[A]) (*Predicate[B], error) {
	if p == nil {
		return nil, nil
	}
	if same, ok := any(p).(*Predicate[B]); ok {
		return same, nil
	}
	target, err := SchemaOf[B]()
	if err != nil {
		return nil, err
	}
	l, err := RewriteLambda(p.lambda, Signature{
		Params: []Type{EntityType(target)},
		Result: p.lambda.Body.Type(),
	})
	if err != nil {
		return nil, err
	}
	return &Predicate[B]{lambda: l}, nil
}

// RewriteSelector translates a key selector over A into one over B. The
// key type is kept.
func RewriteSelector[A, B any](s *Selector[A]) (*Selector[B], error) {
	if s == nil {
		return nil, nil
	}
	if same, ok := any(s).(*Selector[B]); ok {
		return same, nil
	}
	target, err := SchemaOf[B]()
	if err != nil {
		return nil, err
	}
	l, err := RewriteLambda(s.lambda, Signature{
		Params: []Type{EntityType(target)},
		Result: s.lambda.Body.Type(),
	})
	if err != nil {
		return nil, err
	}
	return &Selector[B]{lambda: l}, nil
}

// RewriteOrdering rewrites both keys of o, keeping their directions.
func RewriteOrdering[A, B any](o *Ordering[A]) (*Ordering[B], error) {
	if o == nil {
		return nil, nil
	}
	if same, ok := any(o).(*Ordering[B]); ok {
		return same, nil
	}
	by, err := RewriteSelector[A, B](o.By)
	if err != nil {
		return nil, err
	}
	then, err := RewriteSelector[A, B](o.ThenBy)
	if err != nil {
		return nil, err
	}
	return &Ordering[B]{By: by, Desc: o.Desc, ThenBy: then, ThenDesc: o.ThenDesc}, nil
}

// RewriteLambda rewrites l to the target signature. Positions where the
// source and target types differ form a substitution map; parameters whose
// type is substituted are replaced by fresh parameters, the rest are kept.
// Member accesses whose receiver type changed are resolved again by name.
func RewriteLambda(l *Lambda, target Signature) (*Lambda, error) {
	src := l.Signature()
	if len(src.Params) != len(target.Params) {
		return nil, &RewriteError{
			From: signatureString(src),
			To:   signatureString(target),
			Err: &ConfigurationError{
				Reason: fmt.Sprintf("lambda takes %d parameters, target signature %d", len(src.Params), len(target.Params)),
			},
		}
	}

	subst := make(map[Type]Type)
	add := func(from, to Type) error {
		if from == to {
			return nil
		}
		if prev, ok := subst[from]; ok && prev != to {
			return &RewriteError{
				From: from.String(),
				To:   to.String(),
				Err: &ConfigurationError{
					Reason: fmt.Sprintf("%s maps to both %s and %s", from, prev, to),
				},
			}
		}
		subst[from] = to
		return nil
	}
	for i := range src.Params {
		if err := add(src.Params[i], target.Params[i]); err != nil {
			return nil, err
		}
	}
	if err := add(src.Result, target.Result); err != nil {
		return nil, err
	}
	if len(subst) == 0 {
		return l, nil
	}

	r := &typeRewriter{params: make(map[*Param]*Param)}
	params := make([]*Param, len(l.Params))
	for i, p := range l.Params {
		params[i] = p
		if to, ok := subst[p.Of]; ok {
			fresh := &Param{Name: p.Name, Of: to}
			r.params[p] = fresh
			params[i] = fresh
		}
	}

	body, err := r.Visit(l.Body)
	if err != nil {
		return nil, err
	}
	return &Lambda{Params: params, Body: body}, nil
}

type typeRewriter struct {
	params map[*Param]*Param
}

func (r *typeRewriter) Visit(e Expr) (Expr, error) {
	switch n := e.(type) {
	case *Param:
		if fresh, ok := r.params[n]; ok {
			return fresh, nil
		}
		return n, nil

	case *Member:
		x, err := r.Visit(n.X)
		if err != nil {
			return nil, err
		}
		oldRecv, newRecv := n.X.Type(), x.Type()
		if oldRecv == newRecv {
			if x == n.X {
				return n, nil
			}
			return &Member{X: x, Name: n.Name, field: n.field, resolved: n.resolved}, nil
		}
		if newRecv.Kind != KindEntity || newRecv.Entity == nil {
			return nil, &RewriteError{Member: n.Name, From: oldRecv.String(), To: newRecv.String(), Err: ErrTypeMismatch}
		}
		f, ok := newRecv.Entity.Field(n.Name)
		if !ok {
			return nil, &RewriteError{Member: n.Name, From: oldRecv.String(), To: newRecv.String(), Err: ErrUnknownMember}
		}
		if !convertible(n.field.Type, f.Type) {
			return nil, &RewriteError{
				Member: n.Name,
				From:   oldRecv.String(),
				To:     newRecv.String(),
				Err:    fmt.Errorf("%w: %s is %s on %s but %s on %s", ErrTypeMismatch, n.Name, n.field.Type, oldRecv, f.Type, newRecv),
			}
		}
		return &Member{X: x, Name: n.Name, field: f, resolved: true}, nil
	}
	return Rebuild(e, r)
}

func signatureString(s Signature) string {
	out := "("
	for i, p := range s.Params {
		if i > 0 {
			out += ", "
		}
		out += p.String()
	}
	return out + ") " + s.Result.String()
}
