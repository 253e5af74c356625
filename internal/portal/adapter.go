/*
Package portal - SII portal session adapter (C2)

==============================================================================
FILE: internal/portal/adapter.go
==============================================================================

DESCRIPTION:
    Adapter abstracts an authenticated SII portal session. An Adapter is
    single-owner: exactly one goroutine (the ingestion coordinator or the
    form sync service) may call it at a time for the lifetime of one job,
    and Close must always be called, including on error paths, to release
    the portal-side session.

    Real talks to the live portal over HTTP; Mock returns canned fixtures
    for development and tests. Both are selected by config.Config.PortalMode.

==============================================================================
*/
package portal

import (
	"context"
	"time"
)

// RawDocument is an opaque portal-shaped record, handed to the ingestion
// validator/mapper (C4/C5) without interpretation at this layer.
type RawDocument map[string]any

// DocumentSummary is the per-type-code summary returned by the resumen
// endpoint, used to decide which document-type codes to pull in full.
type DocumentSummary struct {
	TypeCode string
	TypeName string
	Count    int
}

// Adapter is the portal session contract every ingestion/forms component
// depends on. Implementations must honor ctx cancellation/deadline on every
// call.
type Adapter interface {
	// Login establishes the authenticated session. Must be called once,
	// before any other method.
	Login(ctx context.Context, username, password string) error

	// SummaryPurchasesSales returns the compras/ventas document-type
	// summary for period (format YYYYMM).
	SummaryPurchasesSales(ctx context.Context, period string) (purchases, sales []DocumentSummary, err error)

	// Purchases returns purchase (recibidos) documents of the given
	// SII document-type code for period. typeCode may be empty to request
	// the portal's default type.
	Purchases(ctx context.Context, period, typeCode string) ([]RawDocument, error)

	// Sales returns sale (emitidos) documents of the given SII
	// document-type code for period. typeCode may be empty to request the
	// portal's default type.
	Sales(ctx context.Context, period, typeCode string) ([]RawDocument, error)

	// Forms returns the filed/pending forms of templateCode for period
	// (format "YYYY-MM").
	Forms(ctx context.Context, templateCode, period string) ([]RawDocument, error)

	// FormDetail returns the full detail payload for one form instance.
	FormDetail(ctx context.Context, templateCode, folio string) (RawDocument, error)

	// Close releases the session. Safe to call multiple times.
	Close() error
}

// DefaultTimeout is used when config does not override PORTAL_TIMEOUT_SECONDS.
const DefaultTimeout = 30 * time.Second

// FallbackPurchaseTypeCodes is tried, in order, when the portal's resumen
// endpoint does not identify any document types with data for a period.
var FallbackPurchaseTypeCodes = []string{"33", "34", "46", "56", "61"}

// FallbackSaleTypeCodes is tried, in order, when the portal's resumen
// endpoint does not identify any document types with data for a period.
var FallbackSaleTypeCodes = []string{"33", "34", "39", "41", "52", "56", "61"}
