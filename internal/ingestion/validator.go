/*
Package ingestion - Document validator (C4)

Raw portal documents arrive in one of two shapes:
  - PortalShape: the legacy RPA/scrape shape, discriminated by the presence
    of "folio".
  - CanonicalShape: the newer API shape, discriminated by the presence of
    "detNroDoc".

Validate only checks that the required fields for the document's shape are
present; it does not reject unparseable amounts or dates (the mapper reads
an unparseable amount as zero and an unparseable date as the mapping time),
and it does not validate business rules beyond the amount-coherence warning
below.
*/
package ingestion

import (
	"fmt"

	"github.com/shopspring/decimal"

	fizkoerrors "fizko/internal/errors"
	"fizko/internal/portal"
)

// Shape identifies which of the two raw document layouts a RawDocument uses.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapePortal
	ShapeCanonical
)

// DetectShape inspects doc's keys to decide its Shape.
func DetectShape(doc portal.RawDocument) Shape {
	if _, ok := doc["detNroDoc"]; ok {
		return ShapeCanonical
	}
	if _, ok := doc["folio"]; ok {
		return ShapePortal
	}
	return ShapeUnknown
}

// ValidationWarning is a non-fatal issue surfaced alongside a successfully
// validated document (e.g. amount coherence).
type ValidationWarning struct {
	Field   string
	Message string
}

// Validated is the result of validating one raw document.
type Validated struct {
	Doc      portal.RawDocument
	Shape    Shape
	Warnings []ValidationWarning
}

// Validate checks a raw document for the minimum required fields for its
// shape and flags (without rejecting) amount incoherence.
func Validate(doc portal.RawDocument) (Validated, error) {
	shape := DetectShape(doc)
	if shape == ShapeUnknown {
		return Validated{}, fizkoerrors.ErrValidation.WithMessage("document matches neither portal nor canonical shape")
	}

	required := requiredFields(shape)
	for _, f := range required {
		if v, ok := doc[f]; !ok || v == nil || v == "" {
			return Validated{}, fizkoerrors.ErrValidation.WithMessage(fmt.Sprintf("missing required field %q", f))
		}
	}

	v := Validated{Doc: doc, Shape: shape}

	net, tax, total, err := amountsFor(doc, shape)
	if err == nil {
		diff := total.Sub(net.Add(tax)).Abs()
		if diff.GreaterThan(decimal.NewFromInt(1)) {
			v.Warnings = append(v.Warnings, ValidationWarning{
				Field:   "total",
				Message: fmt.Sprintf("total %s does not match net+tax %s (diff %s)", total, net.Add(tax), diff),
			})
		}
	}

	return v, nil
}

func requiredFields(shape Shape) []string {
	switch shape {
	case ShapePortal:
		return []string{"folio", "fechaEmis", "rutEmisor"}
	case ShapeCanonical:
		return []string{"detNroDoc", "detFchDoc", "detRutDoc"}
	default:
		return nil
	}
}

// amountsFor extracts net/tax/total using each shape's own field names,
// tolerating missing amount fields (treated as zero) so the coherence
// check degrades gracefully instead of failing validation outright.
func amountsFor(doc portal.RawDocument, shape Shape) (net, tax, total decimal.Decimal, err error) {
	var netField, taxField, totalField string
	switch shape {
	case ShapePortal:
		netField, taxField, totalField = "montoNeto", "montoIVA", "montoTotal"
	case ShapeCanonical:
		netField, taxField, totalField = "detMntNeto", "detMntIVA", "detMntTotal"
	default:
		return decimal.Zero, decimal.Zero, decimal.Zero, fmt.Errorf("unknown shape")
	}

	net = ParseChileanAmount(fmt.Sprintf("%v", doc[netField]))
	tax = ParseChileanAmount(fmt.Sprintf("%v", doc[taxField]))
	total = ParseChileanAmount(fmt.Sprintf("%v", doc[totalField]))
	return net, tax, total, nil
}
