package testutils

import "time"

type Account struct {
	ID      int64 `db:"id"`
	Balance int   `db:"balance"`
}

// Widget is the model fixture. It supports soft delete.
type Widget struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Price     float64    `json:"price" db:"price"`
	Label     *string    `json:"label,omitempty" db:"label"`
	Deleted   bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (w *Widget) IsDeleted() bool                   { return w.Deleted }
func (w *Widget) SetDeleted(deleted bool)            { w.Deleted = deleted }
func (w *Widget) GetDeletedAt() *time.Time           { return w.DeletedAt }
func (w *Widget) SetDeletedAt(deletedAt *time.Time) { w.DeletedAt = deletedAt }

// WidgetRecord is the storage shape of Widget.
type WidgetRecord struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Price     float64    `json:"price" db:"price"`
	Label     *string    `json:"label,omitempty" db:"label"`
	Deleted   bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	Version   int        `json:"version" db:"version"`
}

// Widgets returns A(5), B(20), C(15), D(30), keyed w1..w4 in that order.
func Widgets() []Widget {
	return []Widget{
		{ID: "w1", Name: "A", Price: 5},
		{ID: "w2", Name: "B", Price: 20},
		{ID: "w3", Name: "C", Price: 15},
		{ID: "w4", Name: "D", Price: 30},
	}
}

// Names returns the names of widgets, in order.
func Names(widgets []Widget) []string {
	names := make([]string, len(widgets))
	for i, w := range widgets {
		names[i] = w.Name
	}
	return names
}

func StrPtr(s string) *string { return &s }
