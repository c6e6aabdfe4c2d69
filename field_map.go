package fixengine

import (
	"bytes"
	"strconv"

	"github.com/abquickfix/fixengine/tag"
)

// FieldMap is an ordered container of fields keyed by tag (spec §3). A
// FieldMap carries at most one occurrence of each tag; a count tag's
// repeated data lives in its companion Group instead. Header and trailer
// instances are constructed with a fixed prefix/suffix order (8,9,35,... and
// ...,10); the body and every group instance use pure insertion order.
type FieldMap struct {
	order  []tag.Tag
	values map[tag.Tag][]byte
	groups map[tag.Tag]*Group

	prefix []tag.Tag
	suffix []tag.Tag
}

// Well-known fixed orderings (spec §3, §6): the header must begin with
// BeginString, BodyLength, MsgType; the trailer must end with CheckSum.
var (
	headerFieldOrder  = []tag.Tag{tag.BeginString, tag.BodyLength, tag.MsgType}
	trailerFieldOrder = []tag.Tag{tag.CheckSum}
)

// NewFieldMap builds a plain, insertion-ordered field map, suitable for a
// message body or a single group instance.
func NewFieldMap() *FieldMap { return newFieldMap(nil, nil) }

// NewHeaderFieldMap builds a field map that always renders BeginString,
// BodyLength, MsgType first, in that order.
func NewHeaderFieldMap() *FieldMap { return newFieldMap(headerFieldOrder, nil) }

// NewTrailerFieldMap builds a field map that always renders CheckSum last.
func NewTrailerFieldMap() *FieldMap { return newFieldMap(nil, trailerFieldOrder) }

func newFieldMap(prefix, suffix []tag.Tag) *FieldMap {
	return &FieldMap{
		values: map[tag.Tag][]byte{},
		groups: map[tag.Tag]*Group{},
		prefix: prefix,
		suffix: suffix,
	}
}

// Set stores t=value, preserving the first-insertion position for
// iteration. Re-setting an existing tag updates its value in place.
func (m *FieldMap) Set(t tag.Tag, value string) { m.SetBytes(t, []byte(value)) }

// SetBytes is Set for callers that already hold the raw wire bytes (e.g.
// the parser), avoiding a string round-trip for values that never need to
// be inspected as text (Data/XmlData fields).
func (m *FieldMap) SetBytes(t tag.Tag, value []byte) {
	if _, ok := m.values[t]; !ok {
		m.order = append(m.order, t)
	}
	m.values[t] = value
}

// Get returns the raw wire bytes stored for t.
func (m *FieldMap) Get(t tag.Tag) ([]byte, bool) {
	v, ok := m.values[t]
	return v, ok
}

// GetString is Get decoded as a string.
func (m *FieldMap) GetString(t tag.Tag) (string, bool) {
	v, ok := m.values[t]
	if !ok {
		return "", false
	}
	return string(v), true
}

// Has reports whether t is present.
func (m *FieldMap) Has(t tag.Tag) bool {
	_, ok := m.values[t]
	return ok
}

// Len returns the number of distinct tags set directly on this map (group
// instances are not counted individually; the group's count tag is).
func (m *FieldMap) Len() int { return len(m.order) }

// SetField stamps t using a typed FieldValue's wire representation.
func (m *FieldMap) SetField(t tag.Tag, v FieldValue) { m.Set(t, v.writeString()) }

// GetField decodes the raw bytes stored for t into v. It returns a
// RequiredTagMissing reject if t is absent and an
// IncorrectDataFormatForValue reject if the value does not parse.
func (m *FieldMap) GetField(t tag.Tag, v FieldValue) error {
	raw, ok := m.GetString(t)
	if !ok {
		return requiredTagMissing(int(t))
	}
	if err := v.readString(raw); err != nil {
		return incorrectDataFormat(int(t), err)
	}
	return nil
}

// SetGroup registers a new, empty group for countTag and returns it so the
// caller can append instances.
func (m *FieldMap) SetGroup(countTag, delimiter tag.Tag) *Group {
	g := NewGroup(countTag, delimiter)
	m.groups[countTag] = g
	if _, ok := m.values[countTag]; !ok {
		m.order = append(m.order, countTag)
	}
	m.values[countTag] = nil // overwritten with len(Instances) at render time
	return g
}

// GetGroup returns the group registered for countTag.
func (m *FieldMap) GetGroup(countTag tag.Tag) (*Group, bool) {
	g, ok := m.groups[countTag]
	return g, ok
}

// Iter produces the flat, ordered field sequence that is the sole
// authoritative source for rendering (spec §4.3): group instances are
// inlined immediately after their count tag, each instance's fields in
// their own recorded order.
func (m *FieldMap) Iter() []Field {
	out := make([]Field, 0, len(m.order))
	emitted := make(map[tag.Tag]bool, len(m.order))

	suffixSet := make(map[tag.Tag]bool, len(m.suffix))
	for _, t := range m.suffix {
		suffixSet[t] = true
	}

	emit := func(t tag.Tag) {
		if emitted[t] {
			return
		}
		emitted[t] = true
		if g, ok := m.groups[t]; ok {
			out = append(out, Field{Tag: t, Value: []byte(strconv.Itoa(g.Len()))})
			for _, inst := range g.Instances {
				out = append(out, inst.Iter()...)
			}
			return
		}
		out = append(out, Field{Tag: t, Value: m.values[t]})
	}

	for _, t := range m.prefix {
		if m.Has(t) {
			emit(t)
		}
	}
	for _, t := range m.order {
		if suffixSet[t] {
			continue
		}
		emit(t)
	}
	for _, t := range m.suffix {
		if m.Has(t) {
			emit(t)
		}
	}
	return out
}

// write renders every field as "tag=value\x01" in Iter order.
func (m *FieldMap) write(b *bytes.Buffer) {
	for _, f := range m.Iter() {
		b.WriteString(strconv.Itoa(int(f.Tag)))
		b.WriteByte('=')
		b.Write(f.Value)
		b.WriteByte(SOH)
	}
}

// length is the byte length this map would contribute to BodyLength.
func (m *FieldMap) length() int {
	n := 0
	for _, f := range m.Iter() {
		n += len(strconv.Itoa(int(f.Tag))) + 1 + len(f.Value) + 1
	}
	return n
}

// checksum is the byte-sum this map would contribute to CheckSum.
func (m *FieldMap) checksum() int {
	sum := 0
	var b bytes.Buffer
	m.write(&b)
	for _, c := range b.Bytes() {
		sum += int(c)
	}
	return sum
}

// String renders the map on its own (header/trailer/body in isolation);
// Message.render is the authoritative full-message renderer.
func (m *FieldMap) String() string {
	var b bytes.Buffer
	m.write(&b)
	return b.String()
}
