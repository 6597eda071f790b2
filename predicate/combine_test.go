package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matching(t *testing.T, p *Predicate[Widget], data []Widget) []string {
	t.Helper()
	var ids []string
	for i := range data {
		ok, err := p.Match(&data[i])
		require.NoError(t, err)
		if ok {
			ids = append(ids, data[i].ID)
		}
	}
	return ids
}

func TestOrAnd(t *testing.T) {
	cheap := Must(New[Widget](func(w *Param) Expr { return Lt(price(w), Value(10)) }))
	pricey := Must(New[Widget](func(w *Param) Expr { return Gt(price(w), Value(25)) }))
	named := Must(New[Widget](func(w *Param) Expr { return In(name(w), "A", "B") }))

	data := widgets()
	assert.Equal(t, []string{"1", "4"}, matching(t, Or(cheap, pricey), data))
	assert.Equal(t, []string{"1"}, matching(t, And(cheap, named), data))
	assert.Nil(t, matching(t, And(cheap, pricey), data))
}

func TestCombinedParameterIdentity(t *testing.T) {
	a := Must(New[Widget](func(w *Param) Expr { return Gt(price(w), Value(10)) }))
	b := Must(New[Widget](func(w *Param) Expr { return Eq(name(w), Value("D")) }))

	c := Or(a, b)
	assert.Same(t, a.Param(), c.Param())

	// Every parameter reference in the combined body is the first
	// predicate's parameter.
	Inspect(c.Body(), func(e Expr) bool {
		if p, ok := e.(*Param); ok {
			assert.Same(t, a.Param(), p)
		}
		return true
	})

	// b is untouched.
	bm := b.Body().(*Binary).L.(*Member)
	assert.Same(t, b.Param(), bm.X)
}

func TestCombineSkipsNil(t *testing.T) {
	a := Must(New[Widget](func(w *Param) Expr { return Gt(price(w), Value(10)) }))

	assert.Nil(t, CombineOr[Widget]())
	assert.Nil(t, CombineAnd[Widget](nil, nil))
	assert.Same(t, a, CombineOr(nil, a, nil))
	assert.Same(t, a, Or(nil, a))
	assert.Same(t, a, And(a, nil))
}

func TestCombineFoldsLeft(t *testing.T) {
	a := Must(New[Widget](func(w *Param) Expr { return Eq(name(w), Value("A")) }))
	b := Must(New[Widget](func(w *Param) Expr { return Eq(name(w), Value("B")) }))
	c := Must(New[Widget](func(w *Param) Expr { return Eq(name(w), Value("C")) }))

	got := CombineOr(a, b, c)
	assert.Equal(t, `w => (((w.Name == "A") || (w.Name == "B")) || (w.Name == "C"))`, got.String())
}

func TestCombineAssociativity(t *testing.T) {
	gt10 := Must(New[Widget](func(w *Param) Expr { return Gt(price(w), Value(10)) }))
	lt25 := Must(New[Widget](func(w *Param) Expr { return Lt(price(w), Value(25)) }))
	notB := Must(New[Widget](func(w *Param) Expr { return Ne(name(w), Value("B")) }))

	data := widgets()
	assert.Equal(t,
		matching(t, CombineOr(gt10, lt25, notB), data),
		matching(t, Or(gt10, Or(lt25, notB)), data))
	assert.Equal(t,
		matching(t, CombineAnd(gt10, lt25, notB), data),
		matching(t, And(gt10, And(lt25, notB)), data))
	assert.Equal(t, []string{"3"}, matching(t, CombineAnd(gt10, lt25, notB), data))
}

func TestComposeIncompatible(t *testing.T) {
	ws := mustSchema[Widget](t)
	rs := mustSchema[WidgetRecord](t)
	w := &Param{Name: "w", Of: EntityType(ws)}
	r := &Param{Name: "r", Of: EntityType(rs)}

	lw, err := NewLambda(Gt(Field(w, "Price"), Value(1)), w)
	require.NoError(t, err)
	lr, err := NewLambda(Gt(Field(r, "Price"), Value(1)), r)
	require.NoError(t, err)

	_, err = Compose(lw, lr, func(l, r Expr) Expr { return AllOf(l, r) })
	assert.ErrorIs(t, err, ErrConfiguration)
}
