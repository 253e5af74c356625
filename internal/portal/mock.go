package portal

import (
	"context"
	"fmt"
)

// Mock is a fixture-backed Adapter for development and tests. It never
// touches the network.
type Mock struct {
	Purchases_ map[string][]RawDocument // keyed by period
	Sales_     map[string][]RawDocument
	Forms_     map[string][]RawDocument // keyed by templateCode+":"+period
	loggedIn   bool
	closed     bool
}

// NewMock returns an empty Mock ready to have fixtures assigned.
func NewMock() *Mock {
	return &Mock{
		Purchases_: map[string][]RawDocument{},
		Sales_:     map[string][]RawDocument{},
		Forms_:     map[string][]RawDocument{},
	}
}

func (m *Mock) Login(ctx context.Context, username, password string) error {
	m.loggedIn = true
	return nil
}

// SummaryPurchasesSales groups each period's fixtures by their actual
// tipoDoc value, so a caller that seeds a mixed-type period (e.g.
// purchases=[{33,2},{61,1}]) sees that shape back rather than a single
// hardcoded type code.
func (m *Mock) SummaryPurchasesSales(ctx context.Context, period string) ([]DocumentSummary, []DocumentSummary, error) {
	return summarizeByTypeCode(m.Purchases_[period]), summarizeByTypeCode(m.Sales_[period]), nil
}

func (m *Mock) Purchases(ctx context.Context, period, typeCode string) ([]RawDocument, error) {
	return filterByTypeCode(m.Purchases_[period], typeCode), nil
}

func (m *Mock) Sales(ctx context.Context, period, typeCode string) ([]RawDocument, error) {
	return filterByTypeCode(m.Sales_[period], typeCode), nil
}

// typeCodeOf returns doc's tipoDoc value when it is purely numeric (an
// already-resolved SII type code), else "33" — the same default the mapper
// falls back to for a free-text label it cannot resolve.
func typeCodeOf(doc RawDocument) string {
	v, ok := doc["tipoDoc"]
	if !ok {
		return "33"
	}
	s := fmt.Sprintf("%v", v)
	if s == "" {
		return "33"
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "33"
		}
	}
	return s
}

func filterByTypeCode(docs []RawDocument, typeCode string) []RawDocument {
	if typeCode == "" {
		return docs
	}
	out := make([]RawDocument, 0, len(docs))
	for _, d := range docs {
		if typeCodeOf(d) == typeCode {
			out = append(out, d)
		}
	}
	return out
}

func summarizeByTypeCode(docs []RawDocument) []DocumentSummary {
	if len(docs) == 0 {
		return nil
	}
	counts := map[string]int{}
	var order []string
	for _, d := range docs {
		code := typeCodeOf(d)
		if _, seen := counts[code]; !seen {
			order = append(order, code)
		}
		counts[code]++
	}
	out := make([]DocumentSummary, 0, len(order))
	for _, code := range order {
		out = append(out, DocumentSummary{TypeCode: code, TypeName: fmt.Sprintf("Tipo %s", code), Count: counts[code]})
	}
	return out
}

func (m *Mock) Forms(ctx context.Context, templateCode, period string) ([]RawDocument, error) {
	return m.Forms_[fmt.Sprintf("%s:%s", templateCode, period)], nil
}

func (m *Mock) FormDetail(ctx context.Context, templateCode, folio string) (RawDocument, error) {
	for _, docs := range m.Forms_ {
		for _, d := range docs {
			if fmt.Sprintf("%v", d["folio"]) == folio {
				return d, nil
			}
		}
	}
	return RawDocument{}, nil
}

func (m *Mock) Close() error {
	m.closed = true
	return nil
}
