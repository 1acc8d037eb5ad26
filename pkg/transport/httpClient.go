package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/go-opqueue/pkg/config"
	"github.com/zoff-tech/go-opqueue/pkg/store"
)

type HTTPClientCreator func(settings *config.APISettings) (Client, error)

// NewHTTPClient builds the direct controller-API client. The entry's
// endpoint is joined onto the configured base URL; method and payload are
// sent as-is.
var NewHTTPClient HTTPClientCreator = func(settings *config.APISettings) (Client, error) {
	if settings.BaseURL == "" {
		return nil, errors.New("base_url must be set for the http client")
	}
	return &httpClient{
		base: strings.TrimRight(settings.BaseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type httpClient struct {
	base   string
	client *http.Client
}

func (c *httpClient) Dispatch(ctx context.Context, entry *store.QueueEntry) (*Result, error) {
	tracer := otel.Tracer("go-opqueue")
	ctx, span := tracer.Start(ctx, "Dispatch",
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(entry.Method),
			semconv.HTTPURLKey.String(c.base+entry.Endpoint),
			attribute.String("entry.id", entry.ID),
			attribute.String("entry.operation", string(entry.Operation)),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, entry.Method, c.base+entry.Endpoint, bytes.NewReader(entry.Payload))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// No response reached us; the queue records this verbatim and retries.
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// Connection dropped mid-flight; same class as a failed dial.
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		semconv.HTTPStatusCodeKey.Int(resp.StatusCode),
		attribute.Int("http.response_payload_size_bytes", len(body)),
	)

	return &Result{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}, nil
}

func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
