package rig

import "fmt"

// Element is an abstract, order-stable address for one skeleton joint.
// Elements are authored once per skeleton topology and reused across all
// skeleton instances built from the same rig.
type Element struct {
	// Name is the joint's identifier, unique within the rig.
	Name string `yaml:"name"`

	// Index is the element's position in the depth-ordered element list.
	Index int `yaml:"index"`

	// Depth is the joint's distance from the hierarchy root (root = 0).
	Depth int `yaml:"depth"`
}

// Chain is a named ordered list of rig elements, referenced by name.
type Chain struct {
	// Name is the chain's identifier, unique within the rig.
	Name string `yaml:"name"`

	// Elements lists the member element names in chain order.
	Elements []string `yaml:"elements"`
}

// Rig is the authored description of one skeleton topology: the depth-ordered
// element list, named chains over those elements, and the set of external
// parameter names layers built against this rig may read. A Rig is immutable
// once validated and is shared by every skeleton instance of its topology.
//
// Parent relationships are implicit in the depth ordering: an element's
// parent is the nearest preceding element whose depth is exactly one less.
type Rig struct {
	// Elements is the full depth-ordered element list.
	Elements []Element `yaml:"elements"`

	// Chains are the named element chains.
	Chains []Chain `yaml:"chains"`

	// Parameters declares the external parameter names referenced by layers.
	Parameters []string `yaml:"parameters"`
}

// Validate checks structural integrity of the rig: contiguous indices,
// a rooted depth ordering where every non-root element has a resolvable
// parent, unique element and chain names, and chains that reference only
// existing elements.
//
// Returns:
//   - error: the first violation found, or nil if the rig is well-formed
func (r *Rig) Validate() error {
	if len(r.Elements) == 0 {
		return fmt.Errorf("rig has no elements")
	}

	names := make(map[string]int, len(r.Elements))
	for i, e := range r.Elements {
		if e.Name == "" {
			return fmt.Errorf("element %d has an empty name", i)
		}
		if prev, ok := names[e.Name]; ok {
			return fmt.Errorf("duplicate element name %q (indices %d and %d)", e.Name, prev, i)
		}
		names[e.Name] = i
		if e.Index != i {
			return fmt.Errorf("element %q: index %d does not match list position %d", e.Name, e.Index, i)
		}
		if e.Depth < 0 {
			return fmt.Errorf("element %q: negative depth %d", e.Name, e.Depth)
		}
		if e.Depth > 0 && parentIndexAt(r.Elements, i) < 0 {
			return fmt.Errorf("element %q: no preceding element at depth %d to parent to", e.Name, e.Depth-1)
		}
	}

	chainNames := make(map[string]bool, len(r.Chains))
	for _, c := range r.Chains {
		if c.Name == "" {
			return fmt.Errorf("chain with empty name")
		}
		if chainNames[c.Name] {
			return fmt.Errorf("duplicate chain name %q", c.Name)
		}
		chainNames[c.Name] = true
		if len(c.Elements) == 0 {
			return fmt.Errorf("chain %q has no elements", c.Name)
		}
		for _, en := range c.Elements {
			if _, ok := names[en]; !ok {
				return fmt.Errorf("chain %q references unknown element %q", c.Name, en)
			}
		}
	}

	return nil
}

// Element looks up an element by name.
//
// Parameters:
//   - name: the element name to find
//
// Returns:
//   - Element: the matching element (zero value if absent)
//   - bool: true if the element exists
func (r *Rig) Element(name string) (Element, bool) {
	for _, e := range r.Elements {
		if e.Name == name {
			return e, true
		}
	}
	return Element{}, false
}

// Chain looks up a chain by name.
//
// Parameters:
//   - name: the chain name to find
//
// Returns:
//   - Chain: the matching chain (zero value if absent)
//   - bool: true if the chain exists
func (r *Rig) Chain(name string) (Chain, bool) {
	for _, c := range r.Chains {
		if c.Name == name {
			return c, true
		}
	}
	return Chain{}, false
}

// HasParameter reports whether the rig declares the given external parameter name.
//
// Parameters:
//   - name: the parameter name to check
//
// Returns:
//   - bool: true if declared
func (r *Rig) HasParameter(name string) bool {
	for _, p := range r.Parameters {
		if p == name {
			return true
		}
	}
	return false
}

// parentIndexAt resolves the implicit parent of the element at position i:
// the nearest preceding element with depth exactly one less. Returns -1 for
// roots and unresolvable parents.
func parentIndexAt(elements []Element, i int) int {
	d := elements[i].Depth
	if d == 0 {
		return -1
	}
	for j := i - 1; j >= 0; j-- {
		if elements[j].Depth == d-1 {
			return j
		}
	}
	return -1
}
