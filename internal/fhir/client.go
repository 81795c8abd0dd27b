// Package fhir reads the consent history feed and individual consent versions
// from a tenant's FHIR server.
package fhir

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"consentsync/internal/platform/httpclient"
	"consentsync/internal/secrets"
	dErrors "consentsync/pkg/domain-errors"
)

const applicationsPath = "/applications/v4"

// Client is the FHIR read side used by the pipeline.
type Client struct {
	http    *httpclient.Client
	secrets secrets.Provider
	tokens  *TokenSource
	logger  *slog.Logger
}

// NewClient wires the HTTP client, tenant secrets and token source.
func NewClient(client *httpclient.Client, provider secrets.Provider, tokens *TokenSource, logger *slog.Logger) *Client {
	return &Client{http: client, secrets: provider, tokens: tokens, logger: logger}
}

// History fetches one page of the tenant's change history. hasCursor false
// means the page starts at the beginning of history.
func (c *Client) History(ctx context.Context, tenantID string, cursor int64, hasCursor bool, pageSize int) (HistoryPage, error) {
	q := url.Values{}
	q.Set(countParam, strconv.Itoa(pageSize))
	if hasCursor {
		q.Set(markerParam, strconv.FormatInt(cursor, 10))
	}
	resp, err := c.get(ctx, tenantID, "fetch FHIR history", func(conn secrets.Connection) string {
		return strings.TrimRight(conn.FHIRURL, "/") + applicationsPath + "/_history?" + q.Encode()
	})
	if err != nil {
		return HistoryPage{}, err
	}
	page, err := ParseHistory(resp.Body)
	if err != nil {
		return HistoryPage{}, dErrors.Wrap(err, dErrors.CodeInvalidData, "malformed FHIR history page")
	}
	c.logger.DebugContext(ctx, "fetched FHIR history page",
		"tenant_id", tenantID,
		"entries", len(page.Entries),
		"next_cursor", page.NextCursor,
	)
	return page, nil
}

// Consent fetches one version of a consent resource.
func (c *Client) Consent(ctx context.Context, tenantID, resourceID, version string) (json.RawMessage, error) {
	resp, err := c.get(ctx, tenantID, "fetch FHIR consent "+resourceID+"/"+version, func(conn secrets.Connection) string {
		return strings.TrimRight(conn.FHIRURL, "/") + applicationsPath + "/" + resourceType + "/" +
			url.PathEscape(resourceID) + "/_history/" + url.PathEscape(version)
	})
	if err != nil {
		return nil, err
	}
	if !json.Valid(resp.Body) {
		return nil, dErrors.New(dErrors.CodeInvalidData, "FHIR consent "+resourceID+"/"+version+" is not valid JSON")
	}
	return json.RawMessage(resp.Body), nil
}

// get performs an authorized read. A 401 evicts the cached token and the call
// is repeated once with a freshly exchanged one.
func (c *Client) get(ctx context.Context, tenantID, op string, endpoint func(secrets.Connection) string) (*httpclient.Response, error) {
	for attempt := 0; ; attempt++ {
		conn, header, err := c.authorize(ctx, tenantID, AccessRead)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: endpoint(conn), Header: header})
		if err == nil {
			return resp, nil
		}
		var httpErr *httpclient.HTTPError
		if attempt == 0 && errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			c.logger.WarnContext(ctx, "FHIR server rejected bearer token, exchanging a new one", "tenant_id", tenantID)
			c.tokens.Invalidate(ctx, tenantID, AccessRead)
			continue
		}
		return nil, httpclient.ToDomainError(err, op)
	}
}

func (c *Client) authorize(ctx context.Context, tenantID string, access Access) (secrets.Connection, http.Header, error) {
	conn, err := c.secrets.FHIRConnection(ctx, tenantID)
	if err != nil {
		return secrets.Connection{}, nil, err
	}
	token, err := c.tokens.Token(ctx, tenantID, conn, access)
	if err != nil {
		return secrets.Connection{}, nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set(HeaderIntrospect, c.tokens.IntrospectHeader(conn, access))
	header.Set("Accept", "application/fhir+json, application/json")
	return conn, header, nil
}
