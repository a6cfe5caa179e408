// Package shopify is a client for the subset of the Shopify Storefront
// GraphQL API the storefront uses: catalog reads, shipping quotes and
// checkout creation.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/suivie/storefront/pkg/errors"
	"github.com/suivie/storefront/pkg/httpclient"
	"github.com/suivie/storefront/pkg/tracing"
)

const (
	// DefaultAPIVersion is the Storefront API version queried.
	DefaultAPIVersion = "2024-07"

	tokenHeader = "X-Shopify-Storefront-Access-Token"
	serviceName = "shopify"
)

// Config identifies the shop.
type Config struct {
	// Domain is the shop domain; a scheme or path is stripped.
	Domain     string
	Token      string
	APIVersion string
	// BaseURL replaces "https://<domain>" when set.
	BaseURL string
}

// Client calls the Storefront API.
type Client struct {
	http     httpclient.Doer
	endpoint string
	token    string
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewClient creates a client. A client without a domain or token is valid;
// every call then fails with a service-unavailable error.
func NewClient(cfg Config, doer httpclient.Doer, logger *slog.Logger) *Client {
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	var endpoint string
	switch {
	case cfg.BaseURL != "":
		endpoint = strings.TrimRight(cfg.BaseURL, "/") + "/api/" + version + "/graphql.json"
	case SanitizeDomain(cfg.Domain) != "":
		endpoint = "https://" + SanitizeDomain(cfg.Domain) + "/api/" + version + "/graphql.json"
	}

	return &Client{
		http:     doer,
		endpoint: endpoint,
		token:    cfg.Token,
		logger:   logger,
		tracer:   tracing.Tracer("github.com/suivie/storefront/internal/shopify"),
	}
}

// Configured reports whether the client has a shop and a token.
func (c *Client) Configured() bool {
	return c.endpoint != "" && c.token != ""
}

// Endpoint returns the GraphQL endpoint URL.
func (c *Client) Endpoint() string { return c.endpoint }

// SanitizeDomain strips a leading http(s) scheme and anything after the
// first slash.
func SanitizeDomain(input string) string {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// query posts one GraphQL operation and decodes its data into out.
func (c *Client) query(ctx context.Context, operation, query string, vars map[string]any, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "shopify."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("graphql.operation.name", operation)),
	)
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		requestsTotal.WithLabelValues(operation, outcome).Inc()
		requestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		span.End()
	}()

	if !c.Configured() {
		return apperrors.ServiceUnavailable("shopify storefront is not configured")
	}
	if vars == nil {
		vars = map[string]any{}
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(tokenHeader, c.token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return httpclient.ToAppError(err, serviceName)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := httpclient.ParseResponseError(resp, serviceName)
		c.logger.WarnContext(ctx, "shopify request failed",
			slog.String("operation", operation),
			slog.Int("status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		return err
	}

	var env graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apperrors.Upstream(serviceName, fmt.Sprintf("decode %s response: %v", operation, err))
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		// Partial data is still usable; a null payload is not.
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return apperrors.Upstream(serviceName, strings.Join(msgs, "; "))
		}
		c.logger.WarnContext(ctx, "shopify returned partial data",
			slog.String("operation", operation),
			slog.String("errors", strings.Join(msgs, "; ")),
		)
	}
	if len(env.Data) == 0 {
		return apperrors.Upstream(serviceName, operation+" returned no data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperrors.Upstream(serviceName, fmt.Sprintf("decode %s data: %v", operation, err))
	}
	return nil
}
