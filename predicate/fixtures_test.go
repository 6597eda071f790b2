package predicate

type Person struct {
	ID   string
	Name string
}

type PersonRecord struct {
	ID    string
	Name  string
	Email string
}

type Widget struct {
	ID    string
	Name  string
	Price float32
	Tags  []string
	Label *string
	Owner *Person
}

// WidgetRecord is the storage shape of Widget: same names, wider numeric
// type, extra columns and a different owner type.
type WidgetRecord struct {
	ID      string
	Name    string
	Price   float64
	Label   *string
	Owner   *PersonRecord
	Version int
}

// Gadget declares Name with an incompatible type.
type Gadget struct {
	ID    string
	Name  int
	Price float64
}

// Stub lacks Price.
type Stub struct {
	ID   string
	Name string
}

func widgets() []Widget {
	return []Widget{
		{ID: "1", Name: "A", Price: 5},
		{ID: "2", Name: "B", Price: 20},
		{ID: "3", Name: "C", Price: 15},
		{ID: "4", Name: "D", Price: 30},
	}
}

func price(x *Param) Expr { return Field(x, "Price") }

func name(x *Param) Expr { return Field(x, "Name") }

func strPtr(s string) *string { return &s }
