package main

// Widget is the resource served under /widgets.
type Widget struct {
	ID    string  `json:"id"`
	Name  string  `json:"name" binding:"required"`
	Price float64 `json:"price"`
	Label *string `json:"label,omitempty"`
}

// widgetRow is how a Widget is stored.
type widgetRow struct {
	ID    string  `json:"id" db:"id" gorm:"primaryKey"`
	Name  string  `json:"name" db:"name"`
	Price float64 `json:"price" db:"price"`
	Label *string `json:"label,omitempty" db:"label"`
}

func (widgetRow) TableName() string {
	return "widgets"
}
