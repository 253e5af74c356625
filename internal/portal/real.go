/*
Package portal - live SII portal session implementation.

Real drives the portal over HTTP using a retrying client
(hashicorp/go-retryablehttp), so transient 5xx/network failures are retried
by the HTTP layer before ever reaching the ingestion coordinator's own
PortalTransient backoff — the coordinator's backoff handles recoverable
failures that survive the transport-level retries (e.g. rate limiting);
authentication failures are not recoverable and are not retried.
*/
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"

	fizkoerrors "fizko/internal/errors"
)

// Real is an Adapter backed by the live SII portal.
type Real struct {
	baseURL  string
	loginURL string
	client   *retryablehttp.Client
	cookies  []*http.Cookie
}

// NewReal constructs a Real adapter. The session is not authenticated until
// Login succeeds.
func NewReal(baseURL, loginURL string) *Real {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	return &Real{baseURL: baseURL, loginURL: loginURL, client: client}
}

func (r *Real) Login(ctx context.Context, username, password string) error {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.loginURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return fizkoerrors.Wrap(err, fizkoerrors.ErrAuth)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fizkoerrors.ErrAuth
	}
	if resp.StatusCode >= 300 {
		return fizkoerrors.ErrPortalTransient.WithMessage(fmt.Sprintf("login failed with status %d", resp.StatusCode))
	}
	r.cookies = resp.Cookies()
	return nil
}

func (r *Real) SummaryPurchasesSales(ctx context.Context, period string) ([]DocumentSummary, []DocumentSummary, error) {
	var body struct {
		Status  string `json:"status"`
		Compras struct {
			Data []map[string]any `json:"data"`
		} `json:"compras"`
		Ventas struct {
			Data []map[string]any `json:"data"`
		} `json:"ventas"`
	}
	if err := r.getJSON(ctx, fmt.Sprintf("/resumen?periodo=%s", period), &body); err != nil {
		return nil, nil, err
	}

	summarize := func(rows []map[string]any) []DocumentSummary {
		var out []DocumentSummary
		for _, row := range rows {
			code := fmt.Sprintf("%v", row["rsmnTipoDocInteger"])
			count := asInt(row["rsmnTotDoc"])
			if code == "" || code == "<nil>" || count <= 0 {
				continue
			}
			name := fmt.Sprintf("%v", row["dcvNombreTipoDoc"])
			out = append(out, DocumentSummary{TypeCode: code, TypeName: name, Count: count})
		}
		return out
	}
	return summarize(body.Compras.Data), summarize(body.Ventas.Data), nil
}

func (r *Real) Purchases(ctx context.Context, period, typeCode string) ([]RawDocument, error) {
	path := fmt.Sprintf("/compras?periodo=%s", period)
	if typeCode != "" {
		path += "&cod_tipo_doc=" + typeCode
	}
	return r.getDocs(ctx, path)
}

func (r *Real) Sales(ctx context.Context, period, typeCode string) ([]RawDocument, error) {
	path := fmt.Sprintf("/ventas?periodo=%s", period)
	if typeCode != "" {
		path += "&cod_tipo_doc=" + typeCode
	}
	return r.getDocs(ctx, path)
}

func (r *Real) Forms(ctx context.Context, templateCode, period string) ([]RawDocument, error) {
	return r.getDocs(ctx, fmt.Sprintf("/formularios/%s?periodo=%s", templateCode, period))
}

func (r *Real) FormDetail(ctx context.Context, templateCode, folio string) (RawDocument, error) {
	var doc RawDocument
	if err := r.getJSON(ctx, fmt.Sprintf("/formularios/%s/%s", templateCode, folio), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *Real) Close() error {
	r.cookies = nil
	return nil
}

func (r *Real) getDocs(ctx context.Context, path string) ([]RawDocument, error) {
	var body struct {
		Status string           `json:"status"`
		Data   []RawDocument    `json:"data"`
	}
	if err := r.getJSON(ctx, path, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

func (r *Real) getJSON(ctx context.Context, path string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return fizkoerrors.Wrap(err, fizkoerrors.ErrPortalTransient)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fizkoerrors.ErrAuth
	}
	if resp.StatusCode >= 500 {
		return fizkoerrors.ErrPortalTransient.WithMessage(fmt.Sprintf("portal returned status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return fizkoerrors.ErrPortalTransient.WithMessage(fmt.Sprintf("portal returned status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fizkoerrors.Wrap(err, fizkoerrors.ErrPortalTransient)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fizkoerrors.Wrap(err, fizkoerrors.ErrMapping)
	}
	return nil
}

// classifyTransportError wraps a transport-level failure (timeout, refused
// connection, exhausted retries) as PortalTimeout — retryablehttp has
// already exhausted its own retries by the time this is called.
func classifyTransportError(err error) error {
	return fizkoerrors.Wrap(err, fizkoerrors.ErrPortalTimeout)
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}
