/*
Package ingestion - Document mapper (C5)

Maps a Validated raw document into a models.Document, resolving direction,
document type, dates and amounts from whichever shape the document arrived
in.
*/
package ingestion

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fizko/internal/models"
	"fizko/internal/portal"
)

// dateLayouts is tried in order; the first layout that parses wins. The
// four-digit-year layouts reject a two-digit year, so a date like
// "01/02/03" falls through to the trailing DD/MM/YY layout and is read as
// day/month/year.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"02/01/06",
	"02-01-06",
}

// ParseChileanDate tries each of dateLayouts in order and returns the first
// successful parse.
func ParseChileanDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", raw)
}

// ParseChileanAmount parses a peso amount formatted with a leading "$",
// "." thousand separators, and "," as the decimal point (e.g. "$1.234.567,89"
// or plain "1234567"). Unparseable input returns zero rather than erroring,
// matching the source system's tolerant behavior for optional amount
// fields.
func ParseChileanAmount(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "$")
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "<nil>" {
		return decimal.Zero
	}

	hasComma := strings.Contains(raw, ",")
	raw = strings.ReplaceAll(raw, ".", "")
	if hasComma {
		raw = strings.ReplaceAll(raw, ",", ".")
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// documentTypeCodes maps a human/portal document-type label substring to
// its SII numeric code, checked in order (first substring match wins).
var documentTypeCodes = []struct {
	Substring string
	Code      string
}{
	{"factura electronica", "33"},
	{"factura electrónica", "33"},
	{"factura exenta", "34"},
	{"boleta electronica", "39"},
	{"boleta electrónica", "39"},
	{"guia de despacho", "52"},
	{"guía de despacho", "52"},
	{"nota de credito", "61"},
	{"nota de crédito", "61"},
	{"nota de debito", "56"},
	{"nota de débito", "56"},
	{"factura de compra", "46"},
}

// DocumentTypeCodeFromLabel resolves a free-text document type label to an
// SII type code, falling back to "33" (factura electrónica) when nothing
// matches — the overwhelmingly common case in practice.
func DocumentTypeCodeFromLabel(label string) string {
	lower := strings.ToLower(label)
	for _, entry := range documentTypeCodes {
		if strings.Contains(lower, entry.Substring) {
			return entry.Code
		}
	}
	return "33"
}

// DocumentTypeCode resolves a raw tipoDoc/detTipoDoc value — as it arrives
// from either portal shape, before any stringification — to an SII numeric
// type code. Three cases, tried in order: a raw integer type is used
// directly; a string label is routed through the substring table; anything
// else falls back to the first run of digits in its string form, or "33" if
// it has none.
func DocumentTypeCode(raw any) string {
	switch v := raw.(type) {
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.Itoa(int(v))
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.Itoa(int(v))
	case string:
		return DocumentTypeCodeFromLabel(v)
	default:
		if code := firstIntSubstring(fmt.Sprintf("%v", raw)); code != "" {
			return code
		}
		return "33"
	}
}

// firstIntSubstring returns the first contiguous run of digits in s, or ""
// if s has none.
func firstIntSubstring(s string) string {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			return s[start:i]
		}
	}
	if start != -1 {
		return s[start:]
	}
	return ""
}

// Direction resolves a raw document's direction from its tipo_operacion
// field, defaulting to purchase ("recibidos") when absent — ingestion
// always annotates tipo_operacion itself, so this default only matters for
// documents synthesized in tests.
func Direction(doc portal.RawDocument) models.DocumentDirection {
	v, _ := doc["tipo_operacion"].(string)
	if v == "emitidos" {
		return models.DirectionSale
	}
	return models.DirectionPurchase
}

// SiiTrackID builds the synthetic tracking id used when the portal does not
// provide one: "TRK" + unix seconds of mapping time + the folio, or "NA" if
// no folio is present.
func SiiTrackID(now time.Time, folio string) string {
	if folio == "" {
		folio = "NA"
	}
	return fmt.Sprintf("TRK%d%s", now.Unix(), folio)
}

// Map converts a Validated raw document into a models.Document plus the
// resolved SII document-type code (the caller looks up the corresponding
// DocumentType row to fill in DocumentTypeID). now is passed in explicitly
// (rather than calling time.Now internally) so mapping is deterministic and
// testable.
func Map(v Validated, now time.Time) (models.Document, string, error) {
	doc := v.Doc
	direction := Direction(doc)

	var folio, counterpartyTaxID, counterpartyName, dateField string
	var netField, taxField, totalField string
	var typeRaw any

	switch v.Shape {
	case ShapePortal:
		folio = fmt.Sprintf("%v", doc["folio"])
		dateField = fmt.Sprintf("%v", doc["fechaEmis"])
		typeRaw = doc["tipoDoc"]
		netField, taxField, totalField = "montoNeto", "montoIVA", "montoTotal"
		if direction == models.DirectionPurchase {
			counterpartyTaxID = fmt.Sprintf("%v", doc["rutEmisor"])
			counterpartyName = fmt.Sprintf("%v", doc["rznSocEmisor"])
		} else {
			counterpartyTaxID = fmt.Sprintf("%v", doc["rutReceptor"])
			counterpartyName = fmt.Sprintf("%v", doc["rznSocReceptor"])
		}
	case ShapeCanonical:
		folio = fmt.Sprintf("%v", doc["detNroDoc"])
		dateField = fmt.Sprintf("%v", doc["detFchDoc"])
		typeRaw = doc["detTipoDoc"]
		netField, taxField, totalField = "detMntNeto", "detMntIVA", "detMntTotal"
		counterpartyTaxID = fmt.Sprintf("%v", doc["detRutDoc"])
		counterpartyName = fmt.Sprintf("%v", doc["detRznSoc"])
	default:
		return models.Document{}, "", fmt.Errorf("cannot map document of unknown shape")
	}

	issueDate, err := ParseChileanDate(dateField)
	if err != nil {
		issueDate = now
	}

	period := fmt.Sprintf("%v", doc["periodo_tributario"])
	if period == "" || period == "<nil>" {
		period = issueDate.Format("200601")
	}

	return models.Document{
		Direction:         direction,
		Period:            period,
		Folio:             folio,
		CounterpartyTaxID: counterpartyTaxID,
		CounterpartyName:  counterpartyName,
		IssueDate:         issueDate,
		NetAmount:         ParseChileanAmount(fmt.Sprintf("%v", doc[netField])),
		TaxAmount:         ParseChileanAmount(fmt.Sprintf("%v", doc[taxField])),
		TotalAmount:       ParseChileanAmount(fmt.Sprintf("%v", doc[totalField])),
		SiiTrackID:        siiTrackIDOrProvided(doc, now, folio),
	}, DocumentTypeCode(typeRaw), nil
}

func siiTrackIDOrProvided(doc portal.RawDocument, now time.Time, folio string) string {
	if v, ok := doc["sii_track_id"].(string); ok && v != "" {
		return v
	}
	return SiiTrackID(now, folio)
}
