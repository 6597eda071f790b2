package sietch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seb7887/gofw/predicate"
	"github.com/seb7887/gofw/sietch/internal/testutils"
)

func widgetRecords() []testutils.WidgetRecord {
	var records []testutils.WidgetRecord
	for _, w := range testutils.Widgets() {
		records = append(records, testutils.WidgetRecord{ID: w.ID, Name: w.Name, Price: w.Price})
	}
	return records
}

func recordNames(records []testutils.WidgetRecord) []string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	return names
}

func recordWhere(t *testing.T, build func(x *predicate.Param) predicate.Expr) *predicate.Predicate[testutils.WidgetRecord] {
	t.Helper()
	p, err := predicate.New[testutils.WidgetRecord](build)
	require.NoError(t, err)
	return p
}

// runAdapterContract checks the behaviour every StorageAdapter shares. The
// adapter must be empty. Keys are inserted in ascending order so insertion
// order and key order agree.
func runAdapterContract(t *testing.T, adapter StorageAdapter[testutils.WidgetRecord, string]) {
	ctx := context.Background()
	records := widgetRecords()
	for i := range records {
		require.NoError(t, adapter.Insert(ctx, &records[i]))
	}

	expensive := recordWhere(t, func(x *predicate.Param) predicate.Expr {
		return predicate.Gt(predicate.Field(x, "Price"), predicate.Value(10))
	})

	t.Run("insert rejects duplicates", func(t *testing.T) {
		dup := records[0]
		assert.ErrorIs(t, adapter.Insert(ctx, &dup), ErrItemAlreadyExists)
	})

	t.Run("find by key", func(t *testing.T) {
		r, err := adapter.FindByKey(ctx, "w2")
		require.NoError(t, err)
		assert.Equal(t, "B", r.Name)
		assert.Equal(t, 20.0, r.Price)

		_, err = adapter.FindByKey(ctx, "missing")
		assert.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("natural order", func(t *testing.T) {
		all, err := adapter.Query(ctx, Query[testutils.WidgetRecord]{})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C", "D"}, recordNames(all))
	})

	t.Run("filter order skip take", func(t *testing.T) {
		q := NewQuery[testutils.WidgetRecord]().Where(expensive).OrderByField("Name", SortAsc).Skip(1).Take(2).MustBuild()
		page, err := adapter.Query(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "D"}, recordNames(page))
	})

	t.Run("descending", func(t *testing.T) {
		q := NewQuery[testutils.WidgetRecord]().OrderByField("Price", SortDesc).MustBuild()
		all, err := adapter.Query(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"D", "B", "C", "A"}, recordNames(all))
	})

	t.Run("ties keep natural order", func(t *testing.T) {
		q := NewQuery[testutils.WidgetRecord]().OrderByField("Deleted", SortDesc).MustBuild()
		all, err := adapter.Query(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C", "D"}, recordNames(all))
	})

	t.Run("count", func(t *testing.T) {
		n, err := adapter.Count(ctx, Query[testutils.WidgetRecord]{Where: expensive})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = adapter.Count(ctx, NewQuery[testutils.WidgetRecord]().Where(expensive).Skip(2).Take(5).MustBuild())
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("nullable fields", func(t *testing.T) {
		labelled := testutils.WidgetRecord{ID: "w5", Name: "E", Price: 1, Label: testutils.StrPtr("new")}
		require.NoError(t, adapter.Insert(ctx, &labelled))

		q := Query[testutils.WidgetRecord]{Where: recordWhere(t, func(x *predicate.Param) predicate.Expr {
			return predicate.Ne(predicate.Field(x, "Label"), predicate.Value(nil))
		})}
		found, err := adapter.Query(ctx, q)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "new", *found[0].Label)

		all, err := adapter.Query(ctx, Query[testutils.WidgetRecord]{})
		require.NoError(t, err)

		label := func(x *predicate.Param) predicate.Expr { return predicate.Field(x, "Label") }
		absent := []struct {
			name  string
			build func(x *predicate.Param) predicate.Expr
		}{
			{"not equal", func(x *predicate.Param) predicate.Expr {
				return predicate.Ne(label(x), predicate.Value("new"))
			}},
			{"negated equal", func(x *predicate.Param) predicate.Expr {
				return predicate.Not(predicate.Eq(label(x), predicate.Value("new")))
			}},
			{"negated ordering", func(x *predicate.Param) predicate.Expr {
				return predicate.Not(predicate.Gt(label(x), predicate.Value("m")))
			}},
			{"negated match", func(x *predicate.Param) predicate.Expr {
				return predicate.Not(predicate.Contains(predicate.Lower(label(x)), "ne"))
			}},
		}
		for _, tt := range absent {
			where := recordWhere(t, tt.build)
			var want []string
			for i := range all {
				ok, err := where.Match(&all[i])
				require.NoError(t, err)
				if ok {
					want = append(want, all[i].Name)
				}
			}
			assert.Equal(t, []string{"A", "B", "C", "D"}, want, tt.name)

			got, err := adapter.Query(ctx, Query[testutils.WidgetRecord]{Where: where})
			require.NoError(t, err, tt.name)
			assert.Equal(t, want, recordNames(got), "%s: a missing label takes part as in memory", tt.name)
		}

		require.NoError(t, adapter.Delete(ctx, &labelled))
	})

	t.Run("update", func(t *testing.T) {
		changed := records[0]
		changed.Price = 50
		changed.Version = 2
		require.NoError(t, adapter.Update(ctx, &changed))

		r, err := adapter.FindByKey(ctx, "w1")
		require.NoError(t, err)
		assert.Equal(t, 50.0, r.Price)
		assert.Equal(t, 2, r.Version)

		missing := testutils.WidgetRecord{ID: "missing"}
		assert.ErrorIs(t, adapter.Update(ctx, &missing), ErrNoUpdateItem)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, adapter.Delete(ctx, &records[0]))
		assert.ErrorIs(t, adapter.Delete(ctx, &records[0]), ErrNoDeleteItem)

		_, err := adapter.FindByKey(ctx, "w1")
		assert.ErrorIs(t, err, ErrItemNotFound)

		n, err := adapter.Count(ctx, Query[testutils.WidgetRecord]{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestInMemoryConnector_Contract(t *testing.T) {
	adapter, err := NewInMemoryConnector[testutils.WidgetRecord, string]()
	require.NoError(t, err)
	runAdapterContract(t, adapter)
}

func TestCapabilitiesOf(t *testing.T) {
	adapter, err := NewInMemoryConnector[testutils.WidgetRecord, string]()
	require.NoError(t, err)
	assert.Equal(t, FullOrdering, capabilitiesOf(adapter))

	type plain struct{ StorageAdapter[testutils.WidgetRecord, string] }
	assert.Equal(t, Capabilities{}, capabilitiesOf(plain{adapter}))
}
