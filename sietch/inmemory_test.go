package sietch

import (
	"context"
	"errors"
	"testing"

	"github.com/seb7887/gofw/predicate"
	"github.com/seb7887/gofw/sietch/internal/testutils"
)

func newAccountStore(t *testing.T, accounts ...testutils.Account) *InMemoryConnector[testutils.Account, int64] {
	t.Helper()
	repo, err := NewInMemoryConnector[testutils.Account, int64]()
	if err != nil {
		t.Fatalf("NewInMemoryConnector failed: %v", err)
	}
	for i := range accounts {
		if err := repo.Insert(context.Background(), &accounts[i]); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	return repo
}

func TestInMemoryConnector_InsertFindByKey(t *testing.T) {
	ctx := context.Background()
	repo := newAccountStore(t)

	account := testutils.Account{ID: 1, Balance: 100}
	if err := repo.Insert(ctx, &account); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	acc, err := repo.FindByKey(ctx, 1)
	if err != nil {
		t.Fatalf("FindByKey failed: %v", err)
	}
	if acc.Balance != 100 {
		t.Errorf("Expected balance 100, got %d", acc.Balance)
	}

	acc.Balance = 999
	again, _ := repo.FindByKey(ctx, 1)
	if again.Balance != 100 {
		t.Errorf("Returned record shares memory with the store")
	}

	if _, err := repo.FindByKey(ctx, 2); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}

	if err := repo.Insert(ctx, &account); !errors.Is(err, ErrItemAlreadyExists) {
		t.Errorf("Expected ErrItemAlreadyExists, got %v", err)
	}

	if err := repo.Insert(ctx, nil); err == nil {
		t.Error("Expected error inserting nil")
	}
}

func TestInMemoryConnector_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := newAccountStore(t,
		testutils.Account{ID: 1, Balance: 100},
		testutils.Account{ID: 2, Balance: 200},
	)

	if err := repo.Update(ctx, &testutils.Account{ID: 1, Balance: 150}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	acc, _ := repo.FindByKey(ctx, 1)
	if acc.Balance != 150 {
		t.Errorf("Expected balance 150, got %d", acc.Balance)
	}

	if err := repo.Update(ctx, &testutils.Account{ID: 9}); !errors.Is(err, ErrNoUpdateItem) {
		t.Errorf("Expected ErrNoUpdateItem, got %v", err)
	}

	if err := repo.Delete(ctx, &testutils.Account{ID: 1}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.FindByKey(ctx, 1); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, &testutils.Account{ID: 1}); !errors.Is(err, ErrNoDeleteItem) {
		t.Errorf("Expected ErrNoDeleteItem, got %v", err)
	}
	if repo.Len() != 1 {
		t.Errorf("Expected 1 record, got %d", repo.Len())
	}
}

func TestInMemoryConnector_NaturalOrder(t *testing.T) {
	ctx := context.Background()
	repo := newAccountStore(t,
		testutils.Account{ID: 3, Balance: 300},
		testutils.Account{ID: 1, Balance: 100},
		testutils.Account{ID: 2, Balance: 200},
	)

	results, err := repo.Query(ctx, Query[testutils.Account]{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := []int64{3, 1, 2}
	for i, acc := range results {
		if acc.ID != want[i] {
			t.Fatalf("Expected insertion order %v, got %v", want, results)
		}
	}

	// Updates keep the position, deletes close the gap.
	_ = repo.Update(ctx, &testutils.Account{ID: 3, Balance: 301})
	_ = repo.Delete(ctx, &testutils.Account{ID: 1})
	_ = repo.Insert(ctx, &testutils.Account{ID: 1, Balance: 101})

	results, _ = repo.Query(ctx, Query[testutils.Account]{})
	want = []int64{3, 2, 1}
	for i, acc := range results {
		if acc.ID != want[i] {
			t.Fatalf("Expected order %v, got %v", want, results)
		}
	}
}

func TestInMemoryConnector_QueryAndCount(t *testing.T) {
	ctx := context.Background()
	repo := newAccountStore(t,
		testutils.Account{ID: 1, Balance: 100},
		testutils.Account{ID: 2, Balance: 200},
		testutils.Account{ID: 3, Balance: 300},
		testutils.Account{ID: 4, Balance: 400},
	)

	rich := predicate.Must(predicate.New[testutils.Account](func(x *predicate.Param) predicate.Expr {
		return predicate.Gt(predicate.Field(x, "Balance"), predicate.Value(150))
	}))

	tests := []struct {
		name  string
		query Query[testutils.Account]
		ids   []int64
		count int64
	}{
		{"all", NewQuery[testutils.Account]().MustBuild(), []int64{1, 2, 3, 4}, 4},
		{"filtered", NewQuery[testutils.Account]().Where(rich).MustBuild(), []int64{2, 3, 4}, 3},
		{"descending", NewQuery[testutils.Account]().OrderByField("Balance", SortDesc).MustBuild(), []int64{4, 3, 2, 1}, 4},
		{"paged", NewQuery[testutils.Account]().Where(rich).Skip(1).Take(1).MustBuild(), []int64{3}, 1},
		{"skip past end", NewQuery[testutils.Account]().Skip(10).MustBuild(), []int64{}, 0},
		{"take zero", NewQuery[testutils.Account]().Take(0).MustBuild(), []int64{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := repo.Query(ctx, tt.query)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(results) != len(tt.ids) {
				t.Fatalf("Expected %d results, got %d", len(tt.ids), len(results))
			}
			for i, acc := range results {
				if acc.ID != tt.ids[i] {
					t.Errorf("Expected id %d at %d, got %d", tt.ids[i], i, acc.ID)
				}
			}

			n, err := repo.Count(ctx, tt.query)
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if n != tt.count {
				t.Errorf("Expected count %d, got %d", tt.count, n)
			}
		})
	}
}

func TestInMemoryConnector_KeyTypeMismatch(t *testing.T) {
	_, err := NewInMemoryConnector[testutils.Account, string]()
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}
