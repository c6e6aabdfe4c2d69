// Package datadictionary loads a FIX XML data dictionary (fields, header,
// trailer, components, messages, repeating groups) into an immutable,
// fast-lookup structure used by the parser and serialiser (spec §3, §4.2).
package datadictionary

import (
	"sort"

	"github.com/abquickfix/fixengine/enum"
	"github.com/abquickfix/fixengine/tag"
)

// FieldDef describes one field declaration from the <fields> section.
type FieldDef struct {
	Tag    tag.Tag
	Name   string
	Type   enum.FieldType
	Values map[string]string // enum value -> description, nil if field has no enumerated domain
}

// HasEnum reports whether the field declares an enumerated value domain.
func (f *FieldDef) HasEnum() bool { return len(f.Values) > 0 }

// GroupInfo is the per-message, per-count-tag description of a repeating
// group: its delimiter tag and the inner dictionary scoped to one instance.
type GroupInfo struct {
	Delimiter tag.Tag
	Inner     *MessageDef
}

// MessageDef is the field/required/group surface for one msg_type (or for
// the synthetic "header"/"trailer" msg_types), or for one repeating group
// instance (an "inner dictionary", spec §3).
type MessageDef struct {
	MsgType  string
	Name     string
	Category string

	Fields   map[tag.Tag]bool
	Required map[tag.Tag]bool
	Groups   map[tag.Tag]*GroupInfo

	// FieldsOrder is populated only for inner (group) dictionaries: the
	// on-wire declaration order of fields within one group instance,
	// consulted by the parser to detect RepeatingGroupsOutOfOrder.
	FieldsOrder []tag.Tag
}

func newMessageDef(msgType string) *MessageDef {
	return &MessageDef{
		MsgType:  msgType,
		Fields:   map[tag.Tag]bool{},
		Required: map[tag.Tag]bool{},
		Groups:   map[tag.Tag]*GroupInfo{},
	}
}

// IsGroup reports whether t is the count tag of a repeating group declared
// directly on this message/group.
func (m *MessageDef) IsGroup(t tag.Tag) bool {
	_, ok := m.Groups[t]
	return ok
}

// OffsetOf returns the position of t within FieldsOrder, or -1, used by the
// parser to detect RepeatingGroupsOutOfOrder within one group instance.
func (m *MessageDef) OffsetOf(t tag.Tag) int {
	for i, ft := range m.FieldsOrder {
		if ft == t {
			return i
		}
	}
	return -1
}

// DataDictionary is the immutable, loaded representation of one FIX
// version's XML specification.
type DataDictionary struct {
	BeginString string

	fieldByTag  map[tag.Tag]*FieldDef
	fieldByName map[string]*FieldDef

	messageNameByType map[string]string
	messageTypeByName map[string]string

	// messages holds every msg_type including the reserved "header" and
	// "trailer" pseudo-messages.
	messages map[string]*MessageDef
}

// FieldType returns the declared type of t, or false if t is unknown.
func (d *DataDictionary) FieldType(t tag.Tag) (enum.FieldType, bool) {
	f, ok := d.fieldByTag[t]
	if !ok {
		return "", false
	}
	return f.Type, true
}

// FieldByTag returns the field declaration for t.
func (d *DataDictionary) FieldByTag(t tag.Tag) (*FieldDef, bool) {
	f, ok := d.fieldByTag[t]
	return f, ok
}

// FieldByName returns the field declaration named name.
func (d *DataDictionary) FieldByName(name string) (*FieldDef, bool) {
	f, ok := d.fieldByName[name]
	return f, ok
}

// EnumValues returns the enumerated value domain declared for t, if any.
func (d *DataDictionary) EnumValues(t tag.Tag) (map[string]string, bool) {
	f, ok := d.fieldByTag[t]
	if !ok || !f.HasEnum() {
		return nil, false
	}
	return f.Values, true
}

// IsHeaderField reports whether t is declared in the <header> section.
func (d *DataDictionary) IsHeaderField(t tag.Tag) bool {
	return d.messages[tag.HeaderMsgType].Fields[t]
}

// IsTrailerField reports whether t is declared in the <trailer> section.
func (d *DataDictionary) IsTrailerField(t tag.Tag) bool {
	return d.messages[tag.TrailerMsgType].Fields[t]
}

// IsMsgField reports whether t is a legal field (directly, via a component,
// or as a group count tag) of msgType.
func (d *DataDictionary) IsMsgField(msgType string, t tag.Tag) bool {
	m, ok := d.messages[msgType]
	if !ok {
		return false
	}
	return m.Fields[t]
}

// IsRequired reports whether t is required for msgType under the
// required-required AND composition rule (spec §4.2, §8).
func (d *DataDictionary) IsRequired(msgType string, t tag.Tag) bool {
	m, ok := d.messages[msgType]
	if !ok {
		return false
	}
	return m.Required[t]
}

// IsGroup reports whether t is a repeating-group count tag of msgType.
func (d *DataDictionary) IsGroup(msgType string, t tag.Tag) bool {
	m, ok := d.messages[msgType]
	if !ok {
		return false
	}
	return m.IsGroup(t)
}

// GroupInfo returns the delimiter and inner dictionary for the group
// introduced by count tag t within msgType.
func (d *DataDictionary) GroupInfo(msgType string, t tag.Tag) (*GroupInfo, bool) {
	m, ok := d.messages[msgType]
	if !ok {
		return nil, false
	}
	gi, ok := m.Groups[t]
	return gi, ok
}

// Message returns the MessageDef for msgType, including the reserved
// "header"/"trailer" pseudo-messages.
func (d *DataDictionary) Message(msgType string) (*MessageDef, bool) {
	m, ok := d.messages[msgType]
	return m, ok
}

// MessageName returns the declared <message name="..."> for msgType.
func (d *DataDictionary) MessageName(msgType string) (string, bool) {
	n, ok := d.messageNameByType[msgType]
	return n, ok
}

// MessageType returns the msgtype for a declared message name.
func (d *DataDictionary) MessageType(name string) (string, bool) {
	t, ok := d.messageTypeByName[name]
	return t, ok
}

// OrderedFields returns every declared field tag in ascending numeric
// order, for diagnostics and dictionary introspection tooling.
func (d *DataDictionary) OrderedFields() []tag.Tag {
	out := make([]tag.Tag, 0, len(d.fieldByTag))
	for t := range d.fieldByTag {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
