package query

import "strings"

// Predicate is a filter over documents. Sources may translate predicates into their native
// query language; every predicate can also be evaluated in memory.
type Predicate interface {
	Eval(doc Document) bool
}

// Eq matches documents whose field equals Value.
type Eq struct {
	Field string
	Value any
}

// Eval implements Predicate.
func (p Eq) Eval(doc Document) bool {
	v, ok := doc.Get(p.Field)
	if !ok {
		return p.Value == nil
	}
	return equalValues(v, p.Value)
}

// In matches documents whose field equals any of Values.
type In struct {
	Field  string
	Values []any
}

// Eval implements Predicate.
func (p In) Eval(doc Document) bool {
	v, ok := doc.Get(p.Field)
	if !ok {
		return false
	}
	for _, candidate := range p.Values {
		if equalValues(v, candidate) {
			return true
		}
	}
	return false
}

// Exists matches documents where the field is present and non-null.
type Exists struct {
	Field string
}

// Eval implements Predicate.
func (p Exists) Eval(doc Document) bool {
	v, ok := doc.Get(p.Field)
	return ok && v != nil
}

// ContainsFold matches documents whose string field contains Substr, ignoring case.
type ContainsFold struct {
	Field  string
	Substr string
}

// Eval implements Predicate.
func (p ContainsFold) Eval(doc Document) bool {
	v, ok := doc.Get(p.Field)
	if !ok {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(p.Substr))
}

// Or matches when any child matches. An empty Or matches nothing.
type Or []Predicate

// Eval implements Predicate.
func (p Or) Eval(doc Document) bool {
	for _, child := range p {
		if child.Eval(doc) {
			return true
		}
	}
	return false
}

// And matches when every child matches. An empty And matches everything.
type And []Predicate

// Eval implements Predicate.
func (p And) Eval(doc Document) bool {
	for _, child := range p {
		if !child.Eval(doc) {
			return false
		}
	}
	return true
}

// all folds predicates into a single conjunction, returning nil when there is nothing to filter.
func all(preds ...Predicate) Predicate {
	var flat And
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
		case And:
			flat = append(flat, v...)
		default:
			flat = append(flat, v)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return flat
	}
}
