// Package fix42 keeps one hand-written, FIX 4.2 MassQuote accessor as an
// example of the typed-field pattern applications build on top of the
// engine's generic FieldMap, in the shape of the teacher's own generated
// per-message-type accessor packages.
package fix42

import (
	"github.com/abquickfix/fixengine"
	"github.com/abquickfix/fixengine/tag"
)

// MassQuote wraps a parsed MassQuote message body with typed field
// accessors.
type MassQuote struct {
	*fixengine.Message
}

func (m *MassQuote) QuoteReqID() (fixengine.StringValue, error) {
	var v fixengine.StringValue
	err := m.Body.GetField(tag.QuoteReqID, &v)
	return v, err
}

func (m *MassQuote) QuoteID() (fixengine.StringValue, error) {
	var v fixengine.StringValue
	err := m.Body.GetField(tag.QuoteID, &v)
	return v, err
}

func (m *MassQuote) QuoteResponseLevel() (fixengine.IntValue, error) {
	var v fixengine.IntValue
	err := m.Body.GetField(tag.QuoteResponseLevel, &v)
	return v, err
}

func (m *MassQuote) DefBidSize() (fixengine.DecimalValue, error) {
	var v fixengine.DecimalValue
	err := m.Body.GetField(tag.DefBidSize, &v)
	return v, err
}

func (m *MassQuote) DefOfferSize() (fixengine.DecimalValue, error) {
	var v fixengine.DecimalValue
	err := m.Body.GetField(tag.DefOfferSize, &v)
	return v, err
}

// QuoteSets returns the NoQuoteSets repeating group, if present.
func (m *MassQuote) QuoteSets() (*fixengine.Group, bool) {
	return m.Body.GetGroup(tag.NoQuoteSets)
}
