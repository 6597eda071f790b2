package sietch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seb7887/gofw/predicate"
	"github.com/seb7887/gofw/sietch/internal/testutils"
)

func TestFilterBuilder(t *testing.T) {
	t.Run("NewFilter creates empty builder", func(t *testing.T) {
		builder := NewFilter()
		if len(builder.conditions) != 0 {
			t.Errorf("Expected empty conditions, got %d", len(builder.conditions))
		}
	})

	t.Run("Where adds condition", func(t *testing.T) {
		builder := NewFilter().Where("balance", OpGreaterThan, 100)
		if len(builder.conditions) != 1 {
			t.Fatalf("Expected 1 condition, got %d", len(builder.conditions))
		}
		c := builder.conditions[0]
		if c.Field != "balance" || c.Operator != OpGreaterThan || c.Value != 100 {
			t.Errorf("Unexpected condition %+v", c)
		}
	})

	t.Run("Build creates Filter", func(t *testing.T) {
		filter := NewFilter().
			Where("balance", OpGreaterThan, 100).
			OrderBy("balance", SortDesc).
			Limit(10).
			Offset(20).
			Build()

		if len(filter.Conditions) != 1 {
			t.Errorf("Expected 1 condition, got %d", len(filter.Conditions))
		}
		if len(filter.Sort) != 1 || filter.Sort[0].Direction != SortDesc {
			t.Errorf("Unexpected sort %+v", filter.Sort)
		}
		if filter.Limit == nil || *filter.Limit != 10 {
			t.Error("Expected limit 10")
		}
		if filter.Offset == nil || *filter.Offset != 20 {
			t.Error("Expected offset 20")
		}
	})

	t.Run("Or and Not add composites", func(t *testing.T) {
		builder := NewFilter().
			Or(Condition{Field: "a", Operator: OpEqual, Value: 1}, Condition{Field: "b", Operator: OpEqual, Value: 2}).
			Not(Condition{Field: "c", Operator: OpEqual, Value: 3})

		if builder.conditions[0].LogicalOp != LogicalOR || !builder.conditions[0].IsComposite() {
			t.Errorf("Expected OR composite, got %+v", builder.conditions[0])
		}
		if builder.conditions[1].LogicalOp != LogicalNOT || builder.conditions[1].IsLeaf() {
			t.Errorf("Expected NOT composite, got %+v", builder.conditions[1])
		}
	})
}

func TestComparisonOperators(t *testing.T) {
	tests := []struct {
		operator ComparisonOperator
		expected string
	}{
		{OpEqual, "="},
		{OpNotEqual, "!="},
		{OpGreaterThan, ">"},
		{OpLessThan, "<"},
		{OpGreaterThanOrEqual, ">="},
		{OpLessThanOrEqual, "<="},
		{OpIn, "IN"},
		{OpNotIn, "NOT IN"},
		{OpLike, "LIKE"},
		{OpILike, "ILIKE"},
		{OpIsNull, "IS NULL"},
		{OpIsNotNull, "IS NOT NULL"},
		{OpBetween, "BETWEEN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if string(tt.operator) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.operator))
			}
		})
	}
}

func TestCompileFilter(t *testing.T) {
	ctx := context.Background()
	repo := newAccountStore(t,
		testutils.Account{ID: 1, Balance: 50},
		testutils.Account{ID: 2, Balance: 150},
		testutils.Account{ID: 3, Balance: 250},
		testutils.Account{ID: 4, Balance: 350},
		testutils.Account{ID: 5, Balance: 450},
	)

	tests := []struct {
		name   string
		filter *Filter
		ids    []int64
	}{
		{
			name:   "nil filter matches everything",
			filter: nil,
			ids:    []int64{1, 2, 3, 4, 5},
		},
		{
			name:   "leaf conditions are ANDed",
			filter: NewFilter().Where("balance", OpGreaterThan, 100).Where("balance", OpLessThanOrEqual, 250).Build(),
			ids:    []int64{2, 3},
		},
		{
			name: "OR with two leaf conditions",
			filter: NewFilter().Or(
				Condition{Field: "balance", Operator: OpEqual, Value: 50},
				Condition{Field: "balance", Operator: OpEqual, Value: 350},
			).Build(),
			ids: []int64{1, 4},
		},
		{
			name: "OR combined with NOT",
			filter: NewFilter().
				Or(
					Condition{Field: "balance", Operator: OpLessThan, Value: 100},
					Condition{Field: "balance", Operator: OpGreaterThan, Value: 400},
				).
				Not(Condition{Field: "balance", Operator: OpEqual, Value: 50}).
				Build(),
			ids: []int64{5},
		},
		{
			name: "AND inside OR",
			filter: NewFilter().Or(
				Condition{
					LogicalOp: LogicalAND,
					Conditions: []Condition{
						{Field: "balance", Operator: OpGreaterThan, Value: 100},
						{Field: "balance", Operator: OpLessThan, Value: 200},
					},
				},
				Condition{Field: "balance", Operator: OpGreaterThan, Value: 400},
			).Build(),
			ids: []int64{2, 5},
		},
		{
			name:   "IN",
			filter: NewFilter().Where("id", OpIn, []int64{2, 4, 9}).Build(),
			ids:    []int64{2, 4},
		},
		{
			name:   "NOT IN from text",
			filter: NewFilter().Where("ID", OpNotIn, "1, 2,3").Build(),
			ids:    []int64{4, 5},
		},
		{
			name:   "BETWEEN is inclusive",
			filter: NewFilter().Where("balance", OpBetween, []int{150, 350}).Build(),
			ids:    []int64{2, 3, 4},
		},
		{
			name:   "text values are parsed to the field type",
			filter: NewFilter().Where("Balance", OpGreaterThanOrEqual, "350").Build(),
			ids:    []int64{4, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := FilterQuery[testutils.Account](tt.filter)
			require.NoError(t, err)

			results, err := repo.Query(ctx, q)
			require.NoError(t, err)

			ids := make([]int64, len(results))
			for i, r := range results {
				ids[i] = r.ID
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestCompileFilter_Text(t *testing.T) {
	type Contact struct {
		ID    int64   `db:"id"`
		Email string  `db:"email"`
		Nick  *string `db:"nick"`
	}
	items := []Contact{
		{ID: 1, Email: "user@example.com", Nick: testutils.StrPtr("u")},
		{ID: 2, Email: "ADMIN@example.com"},
		{ID: 3, Email: "test@other.com"},
		{ID: 4, Email: "user_1@other.org"},
	}

	tests := []struct {
		name   string
		filter *Filter
		ids    []int64
	}{
		{"LIKE suffix", NewFilter().Where("email", OpLike, "%@example.com").Build(), []int64{1, 2}},
		{"LIKE is case sensitive", NewFilter().Where("email", OpLike, "admin%").Build(), []int64{}},
		{"ILIKE ignores case", NewFilter().Where("email", OpILike, "admin%").Build(), []int64{2}},
		{"LIKE single char", NewFilter().Where("email", OpLike, "user_1@%").Build(), []int64{4}},
		{"LIKE escaped underscore", NewFilter().Where("email", OpLike, `user\_%`).Build(), []int64{4}},
		{"IS NULL", NewFilter().Where("nick", OpIsNull, nil).Build(), []int64{2, 3, 4}},
		{"IS NOT NULL", NewFilter().Where("nick", OpIsNotNull, nil).Build(), []int64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := FilterQuery[Contact](tt.filter)
			require.NoError(t, err)

			results, err := ApplyQuery(items, q)
			require.NoError(t, err)

			ids := make([]int64, 0, len(results))
			for _, r := range results {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestFilterQuery_SortAndPage(t *testing.T) {
	widgets := testutils.Widgets()

	q, err := FilterQuery[testutils.Widget](NewFilter().
		Where("price", OpGreaterThan, 10).
		OrderBy("name", SortAsc).
		Offset(1).
		Limit(2).
		Build())
	require.NoError(t, err)

	results, err := ApplyQuery(widgets, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, testutils.Names(results))

	q, err = FilterQuery[testutils.Widget](NewFilter().OrderBy("price", SortDesc).OrderBy("name", SortAsc).Build())
	require.NoError(t, err)
	assert.True(t, q.OrderBy.HasSecondary())
	assert.True(t, q.OrderBy.Desc)
}

func TestFilterQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		target error
	}{
		{"unknown field", NewFilter().Where("colour", OpEqual, "red").Build(), predicate.ErrUnknownMember},
		{"unparsable number", NewFilter().Where("price", OpEqual, "cheap").Build(), ErrInvalidQuery},
		{"BETWEEN arity", NewFilter().Where("price", OpBetween, []int{1}).Build(), ErrInvalidQuery},
		{"IN without list", NewFilter().Where("price", OpIn, 3).Build(), ErrInvalidQuery},
		{"LIKE without pattern", NewFilter().Where("name", OpLike, 3).Build(), ErrInvalidQuery},
		{"unknown operator", NewFilter().Where("name", ComparisonOperator("~"), "x").Build(), ErrInvalidQuery},
		{"three sort fields", NewFilter().OrderBy("name", SortAsc).OrderBy("price", SortAsc).OrderBy("id", SortAsc).Build(), ErrInvalidQuery},
		{"unknown sort field", NewFilter().OrderBy("colour", SortAsc).Build(), predicate.ErrUnknownMember},
		{"negative offset", NewFilter().Offset(-1).Build(), ErrInvalidQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FilterQuery[testutils.Widget](tt.filter)
			if !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}
}
