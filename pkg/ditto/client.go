// pkg/ditto/client.go
package ditto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aleka07/twinsync/pkg/model"
)

// MaxTimeout bounds every call against the twin service.
const MaxTimeout = 10 * time.Second

const maxBodyBytes = 1 << 20

// Config holds what the client needs to reach the twin service.
type Config struct {
	BaseURL      string        // e.g. "http://nginx:80"
	Username     string        // HTTP Basic credentials, forwarded as-is
	Password     string
	ReadTimeout  time.Duration // GETs; defaults to 5s
	WriteTimeout time.Duration // PUTs; defaults to 10s
	HTTPClient   *http.Client  // optional, mainly for tests
	Logger       logrus.FieldLogger
}

// Client performs typed operations against the Ditto HTTP API (v2).
// It is safe for concurrent use.
type Client struct {
	base         string
	username     string
	password     string
	readTimeout  time.Duration
	writeTimeout time.Duration
	http         *http.Client
	log          logrus.FieldLogger
}

// New validates cfg and returns a ready client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ditto: invalid base url %q", cfg.BaseURL)
	}
	c := &Client{
		base:         strings.TrimRight(cfg.BaseURL, "/"),
		username:     cfg.Username,
		password:     cfg.Password,
		readTimeout:  clampTimeout(cfg.ReadTimeout, 5*time.Second),
		writeTimeout: clampTimeout(cfg.WriteTimeout, MaxTimeout),
		http:         cfg.HTTPClient,
		log:          cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c, nil
}

func clampTimeout(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

// WithCredentials returns a client sharing the transport but authenticating
// as a different user, e.g. a devops account for policy writes.
func (c *Client) WithCredentials(username, password string) *Client {
	cp := *c
	cp.username = username
	cp.password = password
	return &cp
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string { return c.base }

func thingPath(id model.ThingID) string {
	return "/api/2/things/" + url.PathEscape(id.String())
}

func propertiesPath(id model.ThingID, feature string) string {
	return thingPath(id) + "/features/" + url.PathEscape(feature) + "/properties"
}

// GetThing fetches the full thing.
func (c *Client) GetThing(ctx context.Context, id model.ThingID) (model.Thing, error) {
	var t model.Thing
	err := c.get(ctx, "GetThing", thingPath(id), true, &t)
	return t, err
}

// GetProperties fetches the properties of one feature as a reading.
func (c *Client) GetProperties(ctx context.Context, id model.ThingID, feature string) (model.Reading, error) {
	var r model.Reading
	err := c.get(ctx, "GetProperties", propertiesPath(id, feature), true, &r)
	return r, err
}

// PutThing creates the thing. It never overwrites: an existing thing
// yields AlreadyExists.
func (c *Client) PutThing(ctx context.Context, id model.ThingID, body any) (Outcome, error) {
	return c.put(ctx, "PutThing", thingPath(id), body, true)
}

// PutPolicy creates the policy, AlreadyExists if it is there.
func (c *Client) PutPolicy(ctx context.Context, id string, body any) (Outcome, error) {
	return c.put(ctx, "PutPolicy", "/api/2/policies/"+url.PathEscape(id), body, true)
}

// PutProperties replaces the properties of one feature with the reading.
func (c *Client) PutProperties(ctx context.Context, id model.ThingID, feature string, r model.Reading) (Outcome, error) {
	return c.put(ctx, "PutProperties", propertiesPath(id, feature), r, false)
}

// CheckHealth reports whether GET /health answers 200. The endpoint is
// probed without credentials.
func (c *Client) CheckHealth(ctx context.Context) bool {
	status, _, err := c.do(ctx, "CheckHealth", http.MethodGet, "/health", nil, c.readTimeout, false, nil)
	if err != nil {
		c.log.WithError(err).Debug("twin service health probe failed")
		return false
	}
	return status == http.StatusOK
}

func (c *Client) get(ctx context.Context, op, path string, auth bool, out any) error {
	status, body, err := c.do(ctx, op, http.MethodGet, path, nil, c.readTimeout, auth, nil)
	if err == nil && status != http.StatusOK && status != http.StatusNoContent {
		err = statusErr(op, status, body)
	}
	if err == nil && len(bytes.TrimSpace(body)) == 0 {
		// 204 or an empty 200: decode as an empty object so defaults apply.
		body = []byte("{}")
	}
	if err == nil {
		if decErr := json.Unmarshal(body, out); decErr != nil {
			err = &StatusError{Op: op, Code: status, Body: "undecodable body: " + decErr.Error()}
		}
	}
	c.observe(op, path, status, err)
	return err
}

func (c *Client) put(ctx context.Context, op, path string, body any, create bool) (Outcome, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("%s: marshal body: %w", op, err)
	}
	var hdr http.Header
	if create {
		// Conditional create: the service answers 412 instead of overwriting.
		hdr = http.Header{"If-None-Match": []string{"*"}}
	}
	status, respBody, err := c.do(ctx, op, http.MethodPut, path, payload, c.writeTimeout, true, hdr)

	var out Outcome
	if err == nil {
		switch status {
		case http.StatusCreated:
			out = Created
		case http.StatusOK, http.StatusNoContent:
			out = Updated
		case http.StatusConflict, http.StatusPreconditionFailed:
			out = AlreadyExists
		default:
			err = statusErr(op, status, respBody)
		}
	}
	if err == nil {
		remoteRequests.WithLabelValues(op, out.String()).Inc()
		c.log.WithFields(logrus.Fields{"op": op, "path": path, "status": status, "outcome": out}).Debug("write accepted")
		return out, nil
	}
	c.observe(op, path, status, err)
	return 0, err
}

// observe records metrics and logs auth failures at error level.
func (c *Client) observe(op, path string, status int, err error) {
	remoteRequests.WithLabelValues(op, resultLabel(err)).Inc()
	if err == nil {
		return
	}
	entry := c.log.WithFields(logrus.Fields{"op": op, "path": path, "status": status}).WithError(err)
	switch {
	case errors.Is(err, ErrUnauthorized):
		entry.Error("twin service rejected credentials")
	case errors.Is(err, ErrForbidden):
		entry.Error("twin service denied access")
	default:
		entry.Debug("twin service call failed")
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte, timeout time.Duration, auth bool, hdr http.Header) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "ditto."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("ditto.path", path),
		))
	defer span.End()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return 0, nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return resp.StatusCode, nil, &TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusConflict && resp.StatusCode != http.StatusPreconditionFailed {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp.StatusCode, respBody, nil
}
