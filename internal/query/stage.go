package query

import (
	"context"
	"fmt"
	"sort"
)

// Stage is one step of a Pipeline.
type Stage interface {
	apply(ctx context.Context, x *Executor, docs []Document) ([]Document, error)
	name() string
}

// Pipeline is an ordered list of stages applied to the documents of one collection.
type Pipeline []Stage

// Match keeps documents satisfying Where. Leading matches are pushed down to the Source.
type Match struct {
	Where Predicate
}

func (Match) name() string { return "match" }

func (s Match) apply(_ context.Context, _ *Executor, docs []Document) ([]Document, error) {
	if s.Where == nil {
		return docs, nil
	}
	out := docs[:0:0]
	for _, doc := range docs {
		if s.Where.Eval(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Lookup joins documents from another collection whose ForeignField equals the document's
// LocalField, attaching them as a list under As. When LocalField holds a list, joined documents
// follow the order of that list. Pipeline, when set, is applied to the joined documents first.
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
	Pipeline     Pipeline
}

func (Lookup) name() string { return "lookup" }

func (s Lookup) apply(ctx context.Context, x *Executor, docs []Document) ([]Document, error) {
	return x.lookup(ctx, s, docs)
}

// First replaces a list field with its first element. An empty list leaves the field absent.
type First struct {
	Field string
}

func (First) name() string { return "first" }

func (s First) apply(_ context.Context, _ *Executor, docs []Document) ([]Document, error) {
	for _, doc := range docs {
		v, _ := doc.Get(s.Field)
		list, ok := asList(v)
		if !ok {
			continue
		}
		if len(list) == 0 {
			doc.Delete(s.Field)
			continue
		}
		doc.Set(s.Field, list[0])
	}
	return docs, nil
}

// DropEmpty removes documents whose list field is missing or empty, such as joins against
// deleted records.
type DropEmpty struct {
	Field string
}

func (DropEmpty) name() string { return "dropEmpty" }

func (s DropEmpty) apply(_ context.Context, _ *Executor, docs []Document) ([]Document, error) {
	out := docs[:0:0]
	for _, doc := range docs {
		v, _ := doc.Get(s.Field)
		if list, ok := asList(v); ok && len(list) > 0 {
			out = append(out, doc)
		}
	}
	return out, nil
}

// AddFields sets computed fields on each document, keeping the others.
type AddFields struct {
	Fields []Field
}

func (AddFields) name() string { return "addFields" }

func (s AddFields) apply(_ context.Context, _ *Executor, docs []Document) ([]Document, error) {
	for _, doc := range docs {
		for _, f := range s.Fields {
			if v, ok := f.Expr.Eval(doc); ok {
				doc.Set(f.Name, v)
			} else {
				doc.Delete(f.Name)
			}
		}
	}
	return docs, nil
}

// Project replaces each document with the listed fields only.
type Project struct {
	Fields []Field
}

func (Project) name() string { return "project" }

func (s Project) apply(_ context.Context, _ *Executor, docs []Document) ([]Document, error) {
	out := make([]Document, len(docs))
	for i, doc := range docs {
		projected := make(Document, len(s.Fields))
		for _, f := range s.Fields {
			if v, ok := f.Expr.Eval(doc); ok {
				projected.Set(f.Name, v)
			}
		}
		out[i] = projected
	}
	return out, nil
}

// Sort orders documents by one field. Ties are broken by id so pages are stable.
type Sort struct {
	Field      string
	Descending bool
}

func (Sort) name() string { return "sort" }

func (s Sort) apply(_ context.Context, _ *Executor, docs []Document) ([]Document, error) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := docs[i].Get(s.Field)
		b, _ := docs[j].Get(s.Field)
		c := compareValues(a, b)
		if c == 0 {
			ai, _ := docs[i].Get("id")
			bi, _ := docs[j].Get("id")
			c = compareValues(ai, bi)
		}
		if s.Descending {
			return c > 0
		}
		return c < 0
	})
	return docs, nil
}

// Unwind emits one document per element of a list field. With PreserveEmpty, documents with
// an empty or missing list are kept once with the field removed.
type Unwind struct {
	Field         string
	PreserveEmpty bool
}

func (Unwind) name() string { return "unwind" }

func (s Unwind) apply(_ context.Context, _ *Executor, docs []Document) ([]Document, error) {
	var out []Document
	for _, doc := range docs {
		v, _ := doc.Get(s.Field)
		list, ok := asList(v)
		if !ok {
			return nil, fmt.Errorf("unwind %s: field is not a list", s.Field)
		}
		if len(list) == 0 {
			if s.PreserveEmpty {
				kept := doc.Clone()
				kept.Delete(s.Field)
				out = append(out, kept)
			}
			continue
		}
		for _, item := range list {
			expanded := doc.Clone()
			expanded.Set(s.Field, cloneValue(item))
			out = append(out, expanded)
		}
	}
	return out, nil
}

// AccumulatorOp selects how a Group folds values.
type AccumulatorOp int

const (
	// AccSum adds numeric values; absent values count as zero.
	AccSum AccumulatorOp = iota
	// AccFirst keeps the value from the first document of the group.
	AccFirst
)

// Accumulator is one output field of a Group.
type Accumulator struct {
	Name string
	Op   AccumulatorOp
	Expr Expr
}

// Sum builds a summing accumulator.
func Sum(name string, expr Expr) Accumulator {
	return Accumulator{Name: name, Op: AccSum, Expr: expr}
}

// FirstOf builds an accumulator keeping the first value seen.
func FirstOf(name string, expr Expr) Accumulator {
	return Accumulator{Name: name, Op: AccFirst, Expr: expr}
}

// Group folds documents sharing the value at By into one document with id set to that value.
// Groups are emitted in order of first appearance.
type Group struct {
	By     string
	Fields []Accumulator
}

func (Group) name() string { return "group" }

func (s Group) apply(_ context.Context, _ *Executor, docs []Document) ([]Document, error) {
	var order []string
	groups := make(map[string]Document)
	for _, doc := range docs {
		keyVal, _ := doc.Get(s.By)
		key := fmt.Sprint(keyVal)
		group, seen := groups[key]
		if !seen {
			group = Document{"id": keyVal}
			for _, acc := range s.Fields {
				if acc.Op == AccSum {
					group[acc.Name] = int64(0)
				}
			}
			groups[key] = group
			order = append(order, key)
		}
		for _, acc := range s.Fields {
			v, ok := acc.Expr.Eval(doc)
			switch acc.Op {
			case AccSum:
				if ok {
					if _, numeric := toFloat(v); numeric {
						group[acc.Name] = addNumbers(group[acc.Name], v)
					}
				}
			case AccFirst:
				if !seen && ok {
					group[acc.Name] = v
				}
			}
		}
	}
	out := make([]Document, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out, nil
}
