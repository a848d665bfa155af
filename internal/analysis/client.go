// Package analysis talks to the remote PDF analysis service and turns its
// answers into displayable text.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/codewave/panel/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// DefaultEndpoint is where the analysis service listens unless configured otherwise.
const DefaultEndpoint = "http://localhost:5000/upload"

// FormField is the multipart field carrying the PDF.
const FormField = "pdf"

const tracerName = "github.com/codewave/panel/internal/analysis"

var errNotObject = errors.New("analysis response is not a JSON object")

// Response is a successful analysis service answer.
type Response struct {
	Filename string
	Result   interface{}
	Raw      map[string]any
}

// Client posts PDFs to the analysis service. It never retries and sets no
// timeout of its own.
type Client struct {
	endpoint   string
	httpClient *http.Client
	tracer     oteltrace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTracerProvider sets the provider used for request spans.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// NewClient creates a client for endpoint. An empty endpoint means DefaultEndpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured service URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Analyze uploads one file and waits for the analysis. Failures are
// *models.LifecycleError values whose Message is fit for display: kind
// FormatError when a body could not be understood, TransportError otherwise.
func (c *Client) Analyze(ctx context.Context, filename, contentType string, r io.Reader) (resp *Response, err error) {
	ctx, span := c.tracer.Start(ctx, "analysis.upload", oteltrace.WithSpanKind(oteltrace.SpanKindClient))
	span.SetAttributes(
		attribute.String("analysis.filename", filename),
		attribute.String("analysis.endpoint", c.endpoint),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, formType, size, err := buildForm(filename, contentType, r)
	if err != nil {
		return nil, transportError(err)
	}
	span.SetAttributes(attribute.Int64("analysis.size", size))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, transportError(err)
	}
	req.Header.Set("Content-Type", formType)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer httpResp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))

	// The body is decoded before the status is checked: an unreadable error
	// page surfaces its decode error.
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		le := transportError(fmt.Errorf("reading response: %w", err))
		le.StatusCode = httpResp.StatusCode
		return nil, le
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, formatError(httpResp.StatusCode, err.Error(), fmt.Errorf("decoding response: %w", err))
	}
	data, isObject := decoded.(map[string]any)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		msg := models.MsgProcessFailed
		if isObject {
			msg = serviceError(data)
		}
		le := models.NewLifecycleError(models.TransportError, msg,
			fmt.Errorf("analysis service returned %d", httpResp.StatusCode))
		le.StatusCode = httpResp.StatusCode
		return nil, le
	}

	if !isObject {
		return nil, formatError(httpResp.StatusCode, errNotObject.Error(), errNotObject)
	}

	filenameOut, _ := data["filename"].(string)
	return &Response{
		Filename: filenameOut,
		Result:   data["result"],
		Raw:      data,
	}, nil
}

func buildForm(filename, contentType string, r io.Reader) (*bytes.Buffer, string, int64, error) {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FormField, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", 0, fmt.Errorf("creating file part: %w", err)
	}
	size, err := io.Copy(part, r)
	if err != nil {
		return nil, "", 0, fmt.Errorf("copying file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", 0, fmt.Errorf("closing multipart writer: %w", err)
	}
	return &buffer, writer.FormDataContentType(), size, nil
}

// serviceError picks the message of a failed response.
func serviceError(data map[string]any) string {
	v, ok := data["error"]
	if !ok || !truthy(v) {
		return models.MsgProcessFailed
	}
	if s, ok := v.(string); ok {
		return s
	}
	return toText(v)
}

func formatError(status int, msg string, cause error) *models.LifecycleError {
	le := models.NewLifecycleError(models.FormatError, messageOr(msg, models.MsgProcessingError), cause)
	le.StatusCode = status
	return le
}

func transportError(err error) *models.LifecycleError {
	return models.NewLifecycleError(models.TransportError, messageOr(err.Error(), models.MsgProcessingError), err)
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
