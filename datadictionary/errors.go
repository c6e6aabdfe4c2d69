package datadictionary

import "fmt"

// LoadErrorKind is the closed taxonomy of fatal, startup-time data
// dictionary load errors (spec §7).
type LoadErrorKind int

const (
	DocumentNotParsed LoadErrorKind = iota
	XmlNodeNotFound
	FieldNotParsed
	DuplicateField
	DuplicateMessage
	AttributeNotFound
	UnknownXmlTag
)

func (k LoadErrorKind) String() string {
	switch k {
	case DocumentNotParsed:
		return "DocumentNotParsed"
	case XmlNodeNotFound:
		return "XmlNodeNotFound"
	case FieldNotParsed:
		return "FieldNotParsed"
	case DuplicateField:
		return "DuplicateField"
	case DuplicateMessage:
		return "DuplicateMessage"
	case AttributeNotFound:
		return "AttributeNotFound"
	case UnknownXmlTag:
		return "UnknownXmlTag"
	default:
		return "LoadErrorKind(?)"
	}
}

// LoadError is returned by Load when the XML dictionary cannot be turned
// into a usable DataDictionary. Every LoadError is fatal: the caller should
// abort startup rather than run with a partially built dictionary.
type LoadError struct {
	Kind    LoadErrorKind
	Context string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func errNodeNotFound(name string) error {
	return &LoadError{Kind: XmlNodeNotFound, Context: name}
}

func errAttributeNotFound(element, attr string) error {
	return &LoadError{Kind: AttributeNotFound, Context: element + "@" + attr}
}

func errUnknownXmlTag(name string) error {
	return &LoadError{Kind: UnknownXmlTag, Context: name}
}

func errFieldNotParsed(name string) error {
	return &LoadError{Kind: FieldNotParsed, Context: name}
}

func errDuplicateField(context string) error {
	return &LoadError{Kind: DuplicateField, Context: context}
}

func errDuplicateMessage(msgType string) error {
	return &LoadError{Kind: DuplicateMessage, Context: msgType}
}
