package model

import "strings"

// Program is a purchasable catalog entry. Paying for it entitles the buyer to Role.
type Program struct {
	Name       string
	Title      string
	Role       string
	PriceCents int64
}

// Catalog is the configured set of programs keyed by name.
type Catalog struct {
	byName map[string]Program
	order  []string
}

func NewCatalog(programs []Program) *Catalog {
	c := &Catalog{byName: make(map[string]Program, len(programs))}
	for _, p := range programs {
		name := normProgram(p.Name)
		if name == "" {
			continue
		}
		p.Name = name
		if _, dup := c.byName[name]; !dup {
			c.order = append(c.order, name)
		}
		c.byName[name] = p
	}
	return c
}

func (c *Catalog) Lookup(name string) (Program, bool) {
	if c == nil {
		return Program{}, false
	}
	p, ok := c.byName[normProgram(name)]
	return p, ok
}

func (c *Catalog) List() []Program {
	if c == nil {
		return nil
	}
	out := make([]Program, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.byName[n])
	}
	return out
}

func normProgram(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
