package predicate

import (
	"fmt"
	"reflect"
	"strings"
)

// Lambda is an expression over an ordered list of parameters.
type Lambda struct {
	Params []*Param
	Body   Expr
}

// Signature is the static shape of a lambda.
type Signature struct {
	Params []Type
	Result Type
}

// NewLambda binds body over params: members are resolved and operand types
// checked. Every parameter referenced by body must be listed in params.
func NewLambda(body Expr, params ...*Param) (*Lambda, error) {
	bound, err := bind(body, params)
	if err != nil {
		return nil, err
	}
	return &Lambda{Params: params, Body: bound}, nil
}

func (l *Lambda) Signature() Signature {
	sig := Signature{Params: make([]Type, len(l.Params)), Result: l.Body.Type()}
	for i, p := range l.Params {
		sig.Params[i] = p.Of
	}
	return sig
}

// Eval evaluates the body with args bound positionally to the parameters.
// Entity arguments may be structs or pointers to structs.
func (l *Lambda) Eval(args ...any) (any, error) {
	if len(args) != len(l.Params) {
		return nil, fmt.Errorf("%w: lambda takes %d arguments, got %d", ErrEvaluation, len(l.Params), len(args))
	}
	env := make(map[*Param]any, len(args))
	for i, p := range l.Params {
		if p.Of.Kind == KindEntity {
			env[p] = reflect.ValueOf(args[i])
			continue
		}
		env[p] = normalize(args[i])
	}
	return evaluate(l.Body, env)
}

func (l *Lambda) String() string {
	names := make([]string, len(l.Params))
	for i, p := range l.Params {
		names[i] = p.Name
	}
	params := strings.Join(names, ", ")
	if len(names) != 1 {
		params = "(" + params + ")"
	}
	return params + " => " + l.Body.String()
}

// entityLambda builds a one-parameter lambda over T.
func entityLambda[T any](build func(x *Param) Expr) (*Lambda, error) {
	s, err := SchemaOf[T]()
	if err != nil {
		return nil, err
	}
	x := &Param{Name: paramName(s), Of: EntityType(s)}
	body := build(x)
	if body == nil {
		return nil, fmt.Errorf("%w: empty expression over %s", ErrTypeMismatch, s.Name)
	}
	return NewLambda(body, x)
}

// checkEntityLambda validates that l takes exactly one T.
func checkEntityLambda[T any](l *Lambda) error {
	s, err := SchemaOf[T]()
	if err != nil {
		return err
	}
	if len(l.Params) != 1 || l.Params[0].Of != EntityType(s) {
		return &ConfigurationError{Entity: s.Name, Reason: fmt.Sprintf("lambda %s does not take a single %s", l, s.Name)}
	}
	return nil
}

func paramName(s *Schema) string {
	if s.Name == "" {
		return "x"
	}
	return strings.ToLower(s.Name[:1])
}
