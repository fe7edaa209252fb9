// Package diva is the client for the Marqeta DiVA reporting API. It
// builds validated query parameters, enforces the API rate limit, and
// classifies transport outcomes into a typed error taxonomy. It never
// retries: every remote failure is surfaced to the caller.
package diva

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zvika-finally/marqeta-diva-mcp/internal/ratelimit"
)

// DefaultBaseURL is the production DiVA endpoint.
const DefaultBaseURL = "https://diva-api.marqeta.com/data/v2"

const requestTimeout = 30 * time.Second

// ViewResponse is the DiVA response envelope for view queries. IsMore
// reports that the source holds further matches beyond this page; there
// is no pagination parameter, so retrieving them requires narrower
// filters.
type ViewResponse struct {
	Records []map[string]any `json:"records"`
	IsMore  bool             `json:"is_more"`
	Count   int              `json:"count"`
}

// Client talks to the DiVA API with static credentials attached to every
// call. It is safe for use by a single caller at a time; the schema
// cache is the only shared mutable state and is mutex-guarded.
type Client struct {
	baseURL    string
	appToken   string
	accessToken string
	program    string
	httpClient *http.Client
	limiter    *ratelimit.SlidingWindow
	logger     *slog.Logger

	// ValidateFilterFields enables pre-flight filter validation against
	// the cached view schema. Off by default: the API reports invalid
	// fields itself, and a stale schema would reject valid queries.
	ValidateFilterFields bool

	schemaMu    sync.Mutex
	schemaCache map[string][]SchemaField
}

// Options configures a Client beyond its credentials.
type Options struct {
	// BaseURL overrides DefaultBaseURL (used by tests).
	BaseURL string
	// RateLimit and RateWindow configure the sliding-window limiter;
	// zero values use the DiVA defaults of 300 requests per 5 minutes.
	RateLimit  int
	RateWindow time.Duration
	// ValidateFilterFields enables pre-flight filter validation.
	ValidateFilterFields bool
}

// NewClient creates a DiVA API client. program is the default program
// for requests that do not override it.
func NewClient(appToken, accessToken, program string, opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rateLimit := opts.RateLimit
	if rateLimit <= 0 {
		rateLimit = 300
	}
	rateWindow := opts.RateWindow
	if rateWindow <= 0 {
		rateWindow = 300 * time.Second
	}

	return &Client{
		baseURL:              baseURL,
		appToken:             appToken,
		accessToken:          accessToken,
		program:              program,
		httpClient:           &http.Client{Timeout: requestTimeout},
		limiter:              ratelimit.New(rateLimit, rateWindow),
		logger:               slog.Default(),
		ValidateFilterFields: opts.ValidateFilterFields,
		schemaCache:          make(map[string][]SchemaField),
	}
}

// GetView fetches one bounded page from /views/{view}/{aggregation}.
func (c *Client) GetView(ctx context.Context, viewName, aggregation string, opts QueryOptions) (*ViewResponse, error) {
	if c.ValidateFilterFields {
		if err := c.ValidateFilters(ctx, viewName, aggregation, opts.Filters); err != nil {
			return nil, err
		}
	}

	count := opts.Count
	if count <= 0 || count > maxRecordCount {
		count = maxRecordCount
	}
	if _, warning := EstimateResponseSize(viewName, count, opts.Fields); warning != "" {
		c.logger.WarnContext(ctx, "large response expected", "view", viewName, "warning", warning)
	}

	endpoint := fmt.Sprintf("/views/%s/%s", viewName, aggregation)
	body, err := c.get(ctx, endpoint, c.BuildQueryParams(opts))
	if err != nil {
		return nil, err
	}

	var resp ViewResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode view response: %w", err)
	}
	return &resp, nil
}

// GetViewsList returns the available views with their metadata.
func (c *Client) GetViewsList(ctx context.Context) (map[string]any, error) {
	body, err := c.get(ctx, "/views", nil)
	if err != nil {
		return nil, err
	}

	var resp map[string]any
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode views list: %w", err)
	}
	return resp, nil
}

// get performs a rate-limited GET and maps the outcome onto the error
// taxonomy. It returns the raw body on 200.
func (c *Client) get(ctx context.Context, endpoint string, params interface{ Encode() string }) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := c.baseURL + endpoint
	if params != nil {
		if encoded := params.Encode(); encoded != "" {
			url += "?" + encoded
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.appToken, c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Message: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	return nil, c.classifyError(resp.StatusCode, body)
}

// classifyError maps DiVA error responses onto APIError values.
func (c *Client) classifyError(statusCode int, body []byte) *APIError {
	var errData map[string]any
	if len(body) > 0 {
		_ = json.Unmarshal(body, &errData)
	}
	errCode, _ := errData["error_code"].(string)
	errMessage, _ := errData["message"].(string)

	switch statusCode {
	case http.StatusBadRequest:
		message := "Bad Request - malformed query or filter parameters"
		if strings.Contains(errMessage, "does not have a column") {
			message += "; an invalid field name is being used in 'filters'. " +
				"Parameters like 'count', 'sort_by' and 'program' do not belong in 'filters', only data field names do. " +
				"For date filtering, use the actual date field name with an operator, e.g. 'transaction_timestamp': '>=2023-10-20'."
		}
		return &APIError{Kind: KindHTTP, StatusCode: statusCode, Code: errCode, Message: message, Response: errData}
	case http.StatusForbidden:
		var message string
		switch errCode {
		case "403001":
			message = "Forbidden - field access denied"
		case "403002":
			message = "Forbidden - filter not allowed"
		case "403003":
			message = "Forbidden - program access denied"
		default:
			message = "Forbidden - unauthorized access"
		}
		return &APIError{Kind: KindHTTP, StatusCode: statusCode, Code: errCode, Message: message, Response: errData}
	case http.StatusNotFound:
		return &APIError{Kind: KindHTTP, StatusCode: statusCode, Message: "Not Found - malformed URL or endpoint does not exist"}
	case http.StatusTooManyRequests:
		return &APIError{Kind: KindHTTP, StatusCode: statusCode, Message: "rate limit exceeded - maximum 300 requests per 5 minutes"}
	default:
		return &APIError{
			Kind:       KindHTTP,
			StatusCode: statusCode,
			Code:       errCode,
			Message:    fmt.Sprintf("unexpected error: %s", string(body)),
			Response:   errData,
		}
	}
}
