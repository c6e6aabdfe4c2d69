package datadictionary

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/abquickfix/fixengine/enum"
	"github.com/abquickfix/fixengine/tag"
)

// xmlNode is a generic, order-preserving XML tree. encoding/xml's
// struct-tag unmarshalling cannot preserve the interleaved ordering of
// <field>/<component>/<group> children that the group-delimiter and
// required-required rules depend on, so the dictionary is parsed as a
// generic tree first and walked by hand afterwards.
type xmlNode struct {
	Name     string
	Attrs    map[string]string
	Children []*xmlNode
}

func (n *xmlNode) attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

func (n *xmlNode) decode(d *xml.Decoder, start xml.StartElement) error {
	n.Name = start.Name.Local
	n.Attrs = make(map[string]string, len(start.Attr))
	for _, a := range start.Attr {
		n.Attrs[a.Name.Local] = a.Value
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child := &xmlNode{}
			if err := child.decode(d, t); err != nil {
				return err
			}
			n.Children = append(n.Children, child)
		case xml.EndElement:
			return nil
		}
	}
}

func parseDocument(r io.Reader) (*xmlNode, error) {
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return nil, &LoadError{Kind: DocumentNotParsed, Context: "no root element"}
			}
			return nil, &LoadError{Kind: DocumentNotParsed, Context: err.Error()}
		}
		if start, ok := tok.(xml.StartElement); ok {
			root := &xmlNode{}
			if err := root.decode(d, start); err != nil {
				return nil, &LoadError{Kind: DocumentNotParsed, Context: err.Error()}
			}
			return root, nil
		}
	}
}

func childNamed(n *xmlNode, name string) *xmlNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Load reads a FIX XML data dictionary from path and builds an immutable
// DataDictionary (spec §4.2). Any failure is fatal and returned as a
// *LoadError.
func Load(path string) (*DataDictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "datadictionary: open")
	}
	defer f.Close()
	return Parse(f)
}

// Parse builds a DataDictionary from an XML document read from r. Load is
// the usual entry point; Parse is exposed directly for tests and for
// embedding a dictionary XML payload rather than a file path.
func Parse(r io.Reader) (*DataDictionary, error) {
	root, err := parseDocument(r)
	if err != nil {
		return nil, err
	}

	major, _ := root.attr("major")
	minor, _ := root.attr("minor")
	typ, hasType := root.attr("type")
	if !hasType {
		typ = "FIX"
	}

	b := &builder{
		dd: &DataDictionary{
			BeginString:       fmt.Sprintf("%s.%s.%s", typ, major, minor),
			fieldByTag:        map[tag.Tag]*FieldDef{},
			fieldByName:       map[string]*FieldDef{},
			messageNameByType: map[string]string{},
			messageTypeByName: map[string]string{},
			messages:          map[string]*MessageDef{},
		},
		componentsByName: map[string]*xmlNode{},
	}

	fieldsNode := childNamed(root, "fields")
	if fieldsNode == nil {
		return nil, errNodeNotFound("fields")
	}
	if err := b.loadFields(fieldsNode); err != nil {
		return nil, err
	}

	if componentsNode := childNamed(root, "components"); componentsNode != nil {
		for _, c := range componentsNode.Children {
			if c.Name != "component" {
				return nil, errUnknownXmlTag(c.Name)
			}
			name, ok := c.attr("name")
			if !ok {
				return nil, errAttributeNotFound("component", "name")
			}
			b.componentsByName[name] = c
		}
	}

	if headerNode := childNamed(root, "header"); headerNode != nil {
		def := newMessageDef(tag.HeaderMsgType)
		if err := b.expandMembers(headerNode.Children, true, tag.HeaderMsgType, def, nil, nil, nil); err != nil {
			return nil, err
		}
		b.dd.messages[tag.HeaderMsgType] = def
	}

	if trailerNode := childNamed(root, "trailer"); trailerNode != nil {
		def := newMessageDef(tag.TrailerMsgType)
		if err := b.expandMembers(trailerNode.Children, true, tag.TrailerMsgType, def, nil, nil, nil); err != nil {
			return nil, err
		}
		b.dd.messages[tag.TrailerMsgType] = def
	}

	messagesNode := childNamed(root, "messages")
	if messagesNode == nil {
		return nil, errNodeNotFound("messages")
	}
	for _, m := range messagesNode.Children {
		if m.Name != "message" {
			return nil, errUnknownXmlTag(m.Name)
		}
		name, ok := m.attr("name")
		if !ok {
			return nil, errAttributeNotFound("message", "name")
		}
		msgType, ok := m.attr("msgtype")
		if !ok {
			return nil, errAttributeNotFound("message", "msgtype")
		}
		if _, dup := b.dd.messages[msgType]; dup {
			return nil, errDuplicateMessage(msgType)
		}
		def := newMessageDef(msgType)
		def.Name = name
		def.Category, _ = m.attr("msgcat")

		if err := b.expandMembers(m.Children, true, msgType, def, nil, nil, nil); err != nil {
			return nil, err
		}

		b.dd.messages[msgType] = def
		b.dd.messageNameByType[msgType] = name
		b.dd.messageTypeByName[name] = msgType
	}

	return b.dd, nil
}

type builder struct {
	dd               *DataDictionary
	componentsByName map[string]*xmlNode
}

func (b *builder) loadFields(fieldsNode *xmlNode) error {
	for _, fnode := range fieldsNode.Children {
		if fnode.Name != "field" {
			return errUnknownXmlTag(fnode.Name)
		}
		numberStr, ok := fnode.attr("number")
		if !ok {
			return errAttributeNotFound("field", "number")
		}
		number, err := strconv.Atoi(numberStr)
		if err != nil {
			return errFieldNotParsed(numberStr)
		}
		name, ok := fnode.attr("name")
		if !ok {
			return errAttributeNotFound("field", "name")
		}
		typeStr, ok := fnode.attr("type")
		if !ok {
			return errAttributeNotFound("field", "type")
		}

		t := tag.Tag(number)
		if _, dup := b.dd.fieldByTag[t]; dup {
			return errDuplicateField(fmt.Sprintf("tag %d", t))
		}
		if _, dup := b.dd.fieldByName[name]; dup {
			return errDuplicateField(name)
		}

		fd := &FieldDef{Tag: t, Name: name, Type: enum.FieldType(typeStr)}

		for _, vnode := range fnode.Children {
			if vnode.Name != "value" {
				return errUnknownXmlTag(vnode.Name)
			}
			ev, ok := vnode.attr("enum")
			if !ok {
				return errAttributeNotFound("value", "enum")
			}
			if fd.Values == nil {
				fd.Values = map[string]string{}
			}
			if _, dup := fd.Values[ev]; dup {
				return errDuplicateField(fmt.Sprintf("%s enum %s", name, ev))
			}
			desc, _ := vnode.attr("description")
			fd.Values[ev] = desc
		}

		b.dd.fieldByTag[t] = fd
		b.dd.fieldByName[name] = fd
	}
	return nil
}

// expandMembers recursively walks a <message>/<component>/<group> member
// list, folding fields into target under the required-required AND rule
// (spec §4.2, §8). order/delim/delimSet are non-nil only while expanding
// the body of a group, where on-wire declaration order and the delimiter
// tag must be tracked.
func (b *builder) expandMembers(
	children []*xmlNode,
	enclosingRequired bool,
	msgType string,
	target *MessageDef,
	order *[]tag.Tag,
	delim *tag.Tag,
	delimSet *bool,
) error {
	for _, node := range children {
		required := attrIsY(node, "required")

		switch node.Name {
		case "field":
			name, ok := node.attr("name")
			if !ok {
				return errAttributeNotFound("field", "name")
			}
			fd, ok := b.dd.fieldByName[name]
			if !ok {
				return errFieldNotParsed(name)
			}
			target.Fields[fd.Tag] = true
			if enclosingRequired && required {
				target.Required[fd.Tag] = true
			}
			markOrderAndDelimiter(fd.Tag, order, delim, delimSet)

		case "component":
			name, ok := node.attr("name")
			if !ok {
				return errAttributeNotFound("component", "name")
			}
			compNode, ok := b.componentsByName[name]
			if !ok {
				return errNodeNotFound("component:" + name)
			}
			if err := b.expandMembers(compNode.Children, enclosingRequired && required, msgType, target, order, delim, delimSet); err != nil {
				return err
			}

		case "group":
			name, ok := node.attr("name")
			if !ok {
				return errAttributeNotFound("group", "name")
			}
			fd, ok := b.dd.fieldByName[name]
			if !ok {
				return errFieldNotParsed(name)
			}
			target.Fields[fd.Tag] = true
			if enclosingRequired && required {
				target.Required[fd.Tag] = true
			}
			markOrderAndDelimiter(fd.Tag, order, delim, delimSet)

			inner := newMessageDef(msgType)
			var innerOrder []tag.Tag
			var innerDelim tag.Tag
			innerDelimSet := false
			// The inner dictionary's own required-required composition
			// starts fresh from this group's own required attribute: a
			// field nested in a group is required iff the group itself
			// is required AND the field is required, independent of
			// whatever enclosing component/group this group sits under.
			if err := b.expandMembers(node.Children, required, msgType, inner, &innerOrder, &innerDelim, &innerDelimSet); err != nil {
				return err
			}
			inner.FieldsOrder = innerOrder
			target.Groups[fd.Tag] = &GroupInfo{Delimiter: innerDelim, Inner: inner}

		default:
			return errUnknownXmlTag(node.Name)
		}
	}
	return nil
}

func markOrderAndDelimiter(t tag.Tag, order *[]tag.Tag, delim *tag.Tag, delimSet *bool) {
	if order != nil {
		*order = append(*order, t)
	}
	if delimSet != nil && !*delimSet {
		*delim = t
		*delimSet = true
	}
}

func attrIsY(n *xmlNode, name string) bool {
	v, _ := n.attr(name)
	return v == "Y"
}
