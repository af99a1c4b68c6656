// Package workflow talks to the remote workflow service: it starts workflows
// and streams their progress events, and it sends approval decisions for
// paused workflows.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/koscakluka/ema-workflow/core/events"
	"github.com/koscakluka/ema-workflow/core/sse"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultBaseURL     = "http://127.0.0.1:8000"
	DefaultIdleTimeout = 60 * time.Second

	streamPath  = "/workflow/execute/stream"
	approvePath = "/workflow/approve/"
)

// StartRequest is the payload of a start workflow call.
type StartRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Instruction    string `json:"initial_message"`
	AutoApprove    bool   `json:"auto_approve"`
	UserName       string `json:"user_name,omitempty"`
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ApprovalAck is the service's answer to an approval decision.
type ApprovalAck struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	WorkflowID string `json:"workflow_id"`
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	idleTimeout time.Duration
	framing     sse.Framing
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the instrumented default client. The client must
// not set a total request timeout, streams can run for minutes.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithIdleTimeout bounds how long a stream may go without receiving bytes.
// Zero disables the bound.
func WithIdleTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.idleTimeout = timeout
	}
}

func WithFraming(framing sse.Framing) ClientOption {
	return func(c *Client) {
		c.framing = framing
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
		idleTimeout: DefaultIdleTimeout,
		framing:     sse.FramingEvent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartWorkflow prepares a workflow run. Nothing is sent until the returned
// stream's events are ranged over.
func (c *Client) StartWorkflow(_ context.Context, req StartRequest) *Stream {
	req.AutoApprove = false
	return &Stream{client: c, request: req}
}

// StreamWorkflow starts a workflow and returns its events.
func (c *Client) StreamWorkflow(ctx context.Context, req StartRequest) iter.Seq2[events.Event, error] {
	return c.StartWorkflow(ctx, req).Events(ctx)
}

// ApproveWorkflow sends a decision for a workflow paused on approval.
func (c *Client) ApproveWorkflow(ctx context.Context, workflowRef string, decision Decision) (*ApprovalAck, error) {
	ctx, span := tracer.Start(ctx, "approve workflow")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.ref", workflowRef),
		attribute.String("workflow.decision", string(decision)),
	)

	if workflowRef == "" {
		span.RecordError(ErrMissingRef)
		return nil, ErrMissingRef
	}

	body, err := json.Marshal(map[string]string{"action": string(decision)})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+approvePath+url.PathEscape(workflowRef), bytes.NewReader(body))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := newStatusError(resp)
		span.RecordError(err)
		return nil, err
	}

	var ack ApprovalAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		err = fmt.Errorf("error unmarshalling JSON: %w", err)
		span.RecordError(err)
		return nil, err
	}
	if !ack.Success {
		span.RecordError(ErrApprovalDeclined)
		return &ack, fmt.Errorf("%w: %s", ErrApprovalDeclined, ack.Message)
	}
	return &ack, nil
}
