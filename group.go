package fixengine

import "github.com/abquickfix/fixengine/tag"

// Group is a repeating group: a count tag, the fixed delimiter tag that
// opens every instance, and the ordered list of instances (spec §3).
type Group struct {
	CountTag  tag.Tag
	Delimiter tag.Tag
	Instances []*FieldMap
}

// NewGroup creates an empty group. Instances are appended with AddInstance;
// the count tag's on-wire value is always derived from len(Instances) at
// render time, never tracked separately, so callers cannot desynchronise it.
func NewGroup(countTag, delimiter tag.Tag) *Group {
	return &Group{CountTag: countTag, Delimiter: delimiter}
}

// AddInstance appends and returns a new, empty instance FieldMap.
func (g *Group) AddInstance() *FieldMap {
	inst := newFieldMap(nil, nil)
	g.Instances = append(g.Instances, inst)
	return inst
}

// Len returns the current instance count.
func (g *Group) Len() int { return len(g.Instances) }
