// Package consentmanager submits canonical consent records to the downstream
// consent management service.
package consentmanager

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"consentsync/internal/platform/config"
	"consentsync/internal/platform/httpclient"
	"consentsync/internal/transform"
	dErrors "consentsync/pkg/domain-errors"
)

// HeaderTenantID identifies the tenant a record belongs to.
const HeaderTenantID = "x-cm-tenantid"

const healthUp = "UP"

// statusBody is the {status, message} body the service answers with. Status
// is kept raw since some deployments send it as a number and others omit it.
type statusBody struct {
	Status  json.RawMessage `json:"status"`
	Message string          `json:"message"`
}

// Client talks to the consent management service.
type Client struct {
	http      *httpclient.Client
	url       string
	healthURL string
	logger    *slog.Logger
}

// New builds a Client for the configured endpoints.
func New(client *httpclient.Client, cfg config.ConsentManager, logger *slog.Logger) *Client {
	return &Client{http: client, url: cfg.URL, healthURL: cfg.HealthURL, logger: logger}
}

// Register submits rec. It succeeds only when the service confirms the
// record with status 200 or 201; a body without a status field counts as
// confirmed when the HTTP status was 2xx.
func (c *Client) Register(ctx context.Context, rec transform.Record) error {
	header := http.Header{}
	header.Set(HeaderTenantID, rec.TenantID)

	var body statusBody
	resp, err := c.http.PostJSON(ctx, c.url, header, rec, &body)
	if err != nil {
		if resp != nil {
			return dErrors.Wrap(err, dErrors.CodeBadGateway, "consent manager returned an unreadable response")
		}
		return httpclient.ToDomainError(err, "register consent")
	}

	status, ok := bodyStatus(body.Status)
	if !ok {
		status = resp.StatusCode
	}
	if status == http.StatusOK || status == http.StatusCreated {
		return nil
	}

	msg := body.Message
	if msg == "" {
		msg = "consent manager did not confirm registration"
	}
	c.logger.WarnContext(ctx, "consent registration rejected",
		"tenant_id", rec.TenantID,
		"resource_id", rec.FHIRResourceID,
		"status", status,
		"message", msg,
	)
	reported := status
	if reported < http.StatusBadRequest {
		reported = http.StatusBadGateway
	}
	return dErrors.WithStatus(reported, codeFor(status), msg, nil)
}

// Health reports whether the service answers its health endpoint with UP.
func (c *Client) Health(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.http.GetJSON(ctx, c.healthURL, nil, &body); err != nil {
		return httpclient.ToDomainError(err, "consent manager health")
	}
	if !strings.EqualFold(body.Status, healthUp) {
		return dErrors.New(dErrors.CodeUnavailable, "consent manager reports status "+body.Status)
	}
	return nil
}

func bodyStatus(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n int
	if json.Unmarshal(raw, &n) == nil {
		return n, true
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "" {
			return 0, false
		}
		var parsed int
		if json.Unmarshal([]byte(s), &parsed) == nil {
			return parsed, true
		}
	}
	// A status that is neither a number nor a numeric string cannot confirm.
	return http.StatusBadGateway, true
}

func codeFor(status int) dErrors.Code {
	switch {
	case status >= 500:
		return dErrors.CodeUnavailable
	case status == http.StatusNotFound:
		return dErrors.CodeNotFound
	case status >= 400:
		return dErrors.CodeBadRequest
	default:
		return dErrors.CodeBadGateway
	}
}
