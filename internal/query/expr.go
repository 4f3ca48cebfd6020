package query

// Expr computes a value from a document. The boolean result is false when the value is absent,
// in which case projections omit the field.
type Expr interface {
	Eval(doc Document) (any, bool)
}

// Field names an output field and the expression producing it.
type Field struct {
	Name string
	Expr Expr
}

// Include projects each named field unchanged.
func Include(names ...string) []Field {
	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i] = Field{Name: name, Expr: Ref(name)}
	}
	return fields
}

// Rename projects the value at path under a new name.
func Rename(name, path string) Field {
	return Field{Name: name, Expr: Ref(path)}
}

// Ref reads the value at a dotted path.
type Ref string

// Eval implements Expr.
func (r Ref) Eval(doc Document) (any, bool) {
	return doc.Get(string(r))
}

// Literal always yields its value.
type Literal struct {
	Value any
}

// Eval implements Expr.
func (l Literal) Eval(Document) (any, bool) {
	return l.Value, true
}

// Size yields the length of the list at a path; missing lists have size zero.
type Size string

// Eval implements Expr.
func (s Size) Eval(doc Document) (any, bool) {
	v, _ := doc.Get(string(s))
	list, ok := asList(v)
	if !ok {
		return int64(0), true
	}
	return int64(len(list)), true
}

// IfPresent yields Then when the path holds a non-null value and Else otherwise.
type IfPresent struct {
	Path string
	Then any
	Else any
}

// Eval implements Expr.
func (c IfPresent) Eval(doc Document) (any, bool) {
	if v, ok := doc.Get(c.Path); ok && v != nil {
		return c.Then, true
	}
	return c.Else, true
}

// SumOf adds the numeric field Path of every document in the list at List.
type SumOf struct {
	List string
	Path string
}

// Eval implements Expr.
func (s SumOf) Eval(doc Document) (any, bool) {
	v, _ := doc.Get(s.List)
	list, _ := asList(v)
	var total any = int64(0)
	for _, item := range list {
		elem, ok := item.(Document)
		if !ok {
			continue
		}
		n, ok := elem.Get(s.Path)
		if !ok {
			continue
		}
		if _, numeric := toFloat(n); numeric {
			total = addNumbers(total, n)
		}
	}
	return total, true
}

// Add sums the numeric results of its operands; absent or non-numeric operands count as zero.
type Add []Expr

// Eval implements Expr.
func (a Add) Eval(doc Document) (any, bool) {
	var total any = int64(0)
	for _, operand := range a {
		v, ok := operand.Eval(doc)
		if !ok {
			continue
		}
		if _, numeric := toFloat(v); numeric {
			total = addNumbers(total, v)
		}
	}
	return total, true
}
