package queryir

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/notitia/internal/ir"
)

// QueryDoc is the YAML form of a QuerySpec, used by scenario files and the
// CLI.
//
//	table: users
//	select: [id, name]
//	where:
//	  all:
//	    - {column: age, op: ">=", value: 18}
//	    - {column: name, op: in, value: [ada, bob]}
//	order: [name, -age]
//	fetch: many
//	limit: 10
//
// A leading "-" in an order entry sorts that column descending. fetch is
// one of all (default), one, first or many; many requires limit.
type QueryDoc struct {
	Table  string        `yaml:"table"`
	Select []string      `yaml:"select"`
	Where  *PredicateDoc `yaml:"where,omitempty"`
	Order  []string      `yaml:"order,omitempty"`
	Fetch  string        `yaml:"fetch,omitempty"`
	Limit  int           `yaml:"limit,omitempty"`
}

// Spec converts the document to a QuerySpec. The result is not validated
// against a schema.
func (d QueryDoc) Spec() (QuerySpec, error) {
	if d.Table == "" {
		return QuerySpec{}, errors.New("table is required")
	}
	filter, err := d.Where.Predicate()
	if err != nil {
		return QuerySpec{}, fmt.Errorf("where: %w", err)
	}

	q := QuerySpec{
		Table:   d.Table,
		Columns: append([]string(nil), d.Select...),
		Filter:  filter,
	}
	for _, o := range d.Order {
		if col, ok := strings.CutPrefix(o, "-"); ok {
			q.Order = append(q.Order, OrderBy{Column: col, Desc: true})
			continue
		}
		q.Order = append(q.Order, OrderBy{Column: o})
	}

	switch d.Fetch {
	case "", "all":
		q.Mode = All()
	case "one":
		q.Mode = One()
	case "first":
		q.Mode = First()
	case "many":
		if d.Limit < 1 {
			return QuerySpec{}, fmt.Errorf("fetch many requires limit >= 1, got %d", d.Limit)
		}
		q.Mode = Many(d.Limit)
	default:
		return QuerySpec{}, fmt.Errorf("unknown fetch mode %q", d.Fetch)
	}
	if d.Limit != 0 && d.Fetch != "many" {
		return QuerySpec{}, fmt.Errorf("limit is only valid with fetch many")
	}
	return q, nil
}

// PredicateDoc is the YAML form of a Predicate. Exactly one shape is set:
// a comparison (column, op, value), all, any or not. An empty document
// matches every row. The "in" operator takes a list value.
type PredicateDoc struct {
	Column string         `yaml:"column,omitempty"`
	Op     string         `yaml:"op,omitempty"`
	Value  any            `yaml:"value,omitempty"`
	All    []PredicateDoc `yaml:"all,omitempty"`
	Any    []PredicateDoc `yaml:"any,omitempty"`
	Not    *PredicateDoc  `yaml:"not,omitempty"`
}

// Predicate converts the document. A nil document yields Always.
func (d *PredicateDoc) Predicate() (Predicate, error) {
	if d == nil {
		return Always{}, nil
	}

	shapes := 0
	if d.Column != "" || d.Op != "" {
		shapes++
	}
	if d.All != nil {
		shapes++
	}
	if d.Any != nil {
		shapes++
	}
	if d.Not != nil {
		shapes++
	}
	if shapes > 1 {
		return nil, errors.New("predicate must set exactly one of column/op, all, any, not")
	}

	switch {
	case d.All != nil:
		preds, err := predicates(d.All)
		if err != nil {
			return nil, fmt.Errorf("all: %w", err)
		}
		return AllOf(preds...), nil
	case d.Any != nil:
		preds, err := predicates(d.Any)
		if err != nil {
			return nil, fmt.Errorf("any: %w", err)
		}
		return AnyOf(preds...), nil
	case d.Not != nil:
		inner, err := d.Not.Predicate()
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Not{Inner: inner}, nil
	case shapes == 0:
		return Always{}, nil
	}

	if d.Column == "" {
		return nil, errors.New("column is required")
	}
	if d.Op == "in" {
		list, ok := d.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("column %q: op in requires a list value", d.Column)
		}
		values := make([]ir.Value, len(list))
		for i, raw := range list {
			v, err := ir.ValueOf(raw)
			if err != nil {
				return nil, fmt.Errorf("column %q: value[%d]: %w", d.Column, i, err)
			}
			values[i] = v
		}
		return In{Column: d.Column, Values: values}, nil
	}

	op, err := ParseOp(d.Op)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", d.Column, err)
	}
	v, err := ir.ValueOf(d.Value)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", d.Column, err)
	}
	return Compare{Column: d.Column, Op: op, Value: v}, nil
}

func predicates(docs []PredicateDoc) ([]Predicate, error) {
	out := make([]Predicate, len(docs))
	for i := range docs {
		p, err := docs[i].Predicate()
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// MutationDoc is the YAML form of a MutationSpec. Exactly one of insert,
// update or delete names the table.
//
//	insert: users
//	values: {id: 1, name: ada, email: ada@example.com}
//
//	update: users
//	set:
//	  age: 37
//	  name: {concat: [{column: name}, " (admin)"]}
//	where: {column: id, op: "=", value: 1}
//
//	delete: users
//	where: {column: age, op: "<", value: 18}
//
// Mapping order is preserved for values and set.
type MutationDoc struct {
	Insert string        `yaml:"insert,omitempty"`
	Update string        `yaml:"update,omitempty"`
	Delete string        `yaml:"delete,omitempty"`
	Values RowDoc        `yaml:"values,omitempty"`
	Set    AssignmentDoc `yaml:"set,omitempty"`
	Where  *PredicateDoc `yaml:"where,omitempty"`
}

// Spec converts the document to a MutationSpec. The result is not
// validated against a schema.
func (d MutationDoc) Spec() (MutationSpec, error) {
	filter, err := d.Where.Predicate()
	if err != nil {
		return MutationSpec{}, fmt.Errorf("where: %w", err)
	}
	if _, ok := filter.(Always); ok {
		filter = nil
	}

	switch {
	case d.Insert != "" && d.Update == "" && d.Delete == "":
		if d.Set != nil || d.Where != nil {
			return MutationSpec{}, errors.New("insert takes values only")
		}
		return Insert(d.Insert, ir.Row(d.Values)), nil
	case d.Update != "" && d.Insert == "" && d.Delete == "":
		if d.Values != nil {
			return MutationSpec{}, errors.New("update takes set and where, not values")
		}
		b := Update(d.Update)
		for _, a := range d.Set {
			b.SetExpr(a.Column, a.Expr)
		}
		if filter != nil {
			b.Where(filter)
		}
		return b.Build(), nil
	case d.Delete != "" && d.Insert == "" && d.Update == "":
		if d.Values != nil || d.Set != nil {
			return MutationSpec{}, errors.New("delete takes where only")
		}
		return Delete(d.Delete, filter), nil
	default:
		return MutationSpec{}, errors.New("exactly one of insert, update, delete is required")
	}
}

// RowDoc is an ordered YAML mapping of column to scalar value.
type RowDoc ir.Row

// UnmarshalYAML keeps the mapping's key order.
func (r *RowDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: values must be a mapping", node.Line)
	}
	row := make(RowDoc, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		col := node.Content[i].Value
		var raw any
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return fmt.Errorf("column %q: %w", col, err)
		}
		v, err := ir.ValueOf(raw)
		if err != nil {
			return fmt.Errorf("line %d: column %q: %w", node.Content[i+1].Line, col, err)
		}
		row = append(row, ir.Field{Column: col, Value: v})
	}
	*r = row
	return nil
}

// AssignmentDoc is an ordered YAML mapping of column to expression.
type AssignmentDoc []Assignment

// UnmarshalYAML keeps the mapping's key order.
func (a *AssignmentDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: set must be a mapping", node.Line)
	}
	out := make(AssignmentDoc, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		col := node.Content[i].Value
		e, err := decodeExpr(node.Content[i+1])
		if err != nil {
			return fmt.Errorf("set %q: %w", col, err)
		}
		out = append(out, Assignment{Column: col, Expr: e})
	}
	*a = out
	return nil
}

// decodeExpr reads a scalar literal, {column: c} or {concat: [l, r]}.
// Longer concat lists fold left.
func decodeExpr(node *yaml.Node) (Expr, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var raw any
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
		v, err := ir.ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return Literal{Value: v}, nil
	case yaml.MappingNode:
		var m struct {
			Column string      `yaml:"column"`
			Concat []yaml.Node `yaml:"concat"`
		}
		if err := node.Decode(&m); err != nil {
			return nil, err
		}
		switch {
		case m.Column != "" && m.Concat == nil:
			return Field{Column: m.Column}, nil
		case m.Concat != nil && m.Column == "":
			if len(m.Concat) < 2 {
				return nil, fmt.Errorf("line %d: concat needs at least two operands", node.Line)
			}
			var acc Expr
			for i := range m.Concat {
				e, err := decodeExpr(&m.Concat[i])
				if err != nil {
					return nil, err
				}
				if acc == nil {
					acc = e
					continue
				}
				acc = Concat{Left: acc, Right: e}
			}
			return acc, nil
		}
		return nil, fmt.Errorf("line %d: expression must set exactly one of column, concat", node.Line)
	default:
		return nil, fmt.Errorf("line %d: unsupported expression", node.Line)
	}
}

// DecodeQuery parses one QueryDoc, rejecting unknown fields.
func DecodeQuery(r io.Reader) (QuerySpec, error) {
	var doc QueryDoc
	if err := decodeStrict(r, &doc); err != nil {
		return QuerySpec{}, err
	}
	return doc.Spec()
}

// DecodeMutation parses one MutationDoc, rejecting unknown fields.
func DecodeMutation(r io.Reader) (MutationSpec, error) {
	var doc MutationDoc
	if err := decodeStrict(r, &doc); err != nil {
		return MutationSpec{}, err
	}
	return doc.Spec()
}

// ParseQuery is DecodeQuery over a byte slice.
func ParseQuery(data []byte) (QuerySpec, error) {
	return DecodeQuery(bytes.NewReader(data))
}

// ParseMutation is DecodeMutation over a byte slice.
func ParseMutation(data []byte) (MutationSpec, error) {
	return DecodeMutation(bytes.NewReader(data))
}

func decodeStrict(r io.Reader, out any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}
