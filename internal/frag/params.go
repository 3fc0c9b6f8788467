package frag

import (
	"fmt"
	"strings"
)

// Param is one bound value.
type Param struct {
	Name  string
	Value any
}

// Params is the ordered parameter table of a compiled statement.
// Names are unique and follow the order of first appearance in the text.
type Params struct {
	list  []Param
	index map[string]int
}

func (p *Params) add(name string, v any) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	p.index[name] = len(p.list)
	p.list = append(p.list, Param{Name: name, Value: v})
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.list)
}

// List returns the parameters in order.
func (p *Params) List() []Param {
	if p == nil {
		return nil
	}
	out := make([]Param, len(p.list))
	copy(out, p.list)
	return out
}

// Get returns the value bound under name.
func (p *Params) Get(name string) (any, bool) {
	if p == nil {
		return nil, false
	}
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.list[i].Value, true
}

// Values returns the bound values in order, for positional drivers.
func (p *Params) Values() []any {
	if p == nil {
		return nil
	}
	out := make([]any, len(p.list))
	for i, e := range p.list {
		out[i] = e.Value
	}
	return out
}

// Map returns the parameters keyed by name.
func (p *Params) Map() map[string]any {
	out := make(map[string]any, p.Len())
	if p == nil {
		return out
	}
	for _, e := range p.list {
		out[e.Name] = e.Value
	}
	return out
}

func (p *Params) String() string {
	if p.Len() == 0 {
		return ""
	}
	parts := make([]string, len(p.list))
	for i, e := range p.list {
		parts[i] = fmt.Sprintf("[%s, %v]", e.Name, e.Value)
	}
	return strings.Join(parts, ", ")
}
