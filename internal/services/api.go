package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/shared"
)

// DefaultBaseURL is used when no API base URL is configured.
const DefaultBaseURL = "http://localhost/api/v1"

// RequestIDHeader carries a per-request id for correlating client and server logs.
const RequestIDHeader = "X-Request-ID"

// APIService performs raw and JSON requests against the catalog API.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the catalog backend.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// BaseURL returns the API base URL without a trailing slash.
func (a *APIService) BaseURL() string { return a.baseURL }

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// APIError is a failed API call.
//
// StatusCode is 0 when the request never produced a response (network failure, cancellation).
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%v: %s", shared.ErrAPIRequest, msg)
	}
	if e.Code != "" {
		return fmt.Sprintf("%v (status %d, %s): %s", shared.ErrAPIRequest, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%v (status %d): %s", shared.ErrAPIRequest, e.StatusCode, msg)
}

// Unwrap exposes both [shared.ErrAPIRequest] and the underlying cause to [errors.Is].
func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{shared.ErrAPIRequest, e.Err}
	}
	return []error{shared.ErrAPIRequest}
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an [APIError].
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

// Delete performs a DELETE request and returns the raw response.
func (a *APIService) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodDelete, path, nil)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, shared.GenerateID())
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// DoJSON sends in as a JSON body (nil for none), checks the status, unwraps the response
// envelope and decodes its data into out (nil to discard).
func (a *APIService) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var data []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		data = encoded
	}

	resp, err := a.do(ctx, method, path, data)
	if err != nil {
		return err
	}
	return Decode(resp, out)
}

// Decode turns resp into either out or an [APIError].
//
// Bodies shaped {success, data} are unwrapped to data; success=false is an error even on 2xx.
func Decode(resp *APIResponse, out any) error {
	payload := resp.Body

	if env, ok := envelope(resp); ok {
		if !env.Success {
			return envelopeError(resp.StatusCode, env)
		}
		payload = env.Data
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 || string(payload) == "null" {
		return nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func envelope(resp *APIResponse) (*models.Envelope, bool) {
	obj, ok := resp.JSONData.(map[string]any)
	if !ok {
		return nil, false
	}
	if _, has := obj["success"]; !has {
		return nil, false
	}

	var env models.Envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, false
	}
	return &env, true
}

func envelopeError(status int, env *models.Envelope) *APIError {
	if status >= 200 && status < 300 {
		status = http.StatusUnprocessableEntity
	}

	apiErr := &APIError{StatusCode: status, Message: env.Message}
	if env.Error != nil {
		apiErr.Code = env.Error.Code
		if env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = "API response indicates failure"
	}
	return apiErr
}

func statusError(resp *APIResponse) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if resp.IsJSON && json.Unmarshal(resp.Body, &body) == nil {
		switch {
		case body.Message != "":
			apiErr.Message = body.Message
		case body.Error != "":
			apiErr.Message = body.Error
		}
	}
	return apiErr
}
