// Package voiceprovider is a small JSON client for the hosted voice platform
// that runs the assistants and phone numbers.
package voiceprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 20 * time.Second
	assistantPath   = "/assistant"
	callPath        = "/call"
	phoneNumberPath = "/phone-number"

	callPageSize = 100
	maxCallPages = 200
)

// ErrNotFound is returned when the provider answers 404.
var ErrNotFound = errors.New("voice provider resource not found")

// APIError is any other non-2xx answer.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voice provider error (status %d): %s", e.StatusCode, e.Message)
}

// API is the surface of the provider used by the services.
type API interface {
	CreateAssistant(ctx context.Context, spec AssistantSpec) (*Assistant, error)
	UpdateAssistant(ctx context.Context, id string, spec AssistantSpec) (*Assistant, error)
	GetAssistant(ctx context.Context, id string) (*Assistant, error)
	DeleteAssistant(ctx context.Context, id string) error
	ListCallsSince(ctx context.Context, assistantID string, since *time.Time) ([]Call, error)
	CreatePhoneNumber(ctx context.Context, spec PhoneNumberSpec) (*PhoneNumber, error)
	UpdatePhoneNumber(ctx context.Context, id string, assistantID *string) (*PhoneNumber, error)
	DeletePhoneNumber(ctx context.Context, id string) error
}

// Client handles communication with the voice provider API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

// Ensure Client implements API
var _ API = (*Client)(nil)

// NewClient creates a client. rps <= 0 disables throttling.
func NewClient(baseURL, apiKey string, rps float64) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    limiter,
	}
}

type assistantBody struct {
	Name         string           `json:"name,omitempty"`
	FirstMessage string           `json:"firstMessage,omitempty"`
	Model        *ModelSpec       `json:"model,omitempty"`
	Voice        *VoiceSpec       `json:"voice,omitempty"`
	Transcriber  *TranscriberSpec `json:"transcriber,omitempty"`
}

func assistantBodyFrom(spec AssistantSpec) assistantBody {
	body := assistantBody{Name: spec.Name, FirstMessage: spec.FirstMessage}
	if spec.Model != "" || spec.SystemPrompt != "" || spec.Temperature != 0 {
		m := &ModelSpec{Provider: spec.ModelVendor, Model: spec.Model}
		if spec.Temperature != 0 {
			t := spec.Temperature
			m.Temperature = &t
		}
		if spec.SystemPrompt != "" {
			m.Messages = []Message{{Role: "system", Content: spec.SystemPrompt}}
		}
		body.Model = m
	}
	if spec.Voice != "" {
		body.Voice = &VoiceSpec{Provider: spec.VoiceVendor, VoiceID: spec.Voice}
	}
	if spec.Language != "" {
		body.Transcriber = &TranscriberSpec{Provider: "deepgram", Language: spec.Language}
	}
	return body
}

func (c *Client) CreateAssistant(ctx context.Context, spec AssistantSpec) (*Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodPost, assistantPath, assistantBodyFrom(spec), &out); err != nil {
		return nil, fmt.Errorf("create assistant: %w", err)
	}
	return &out, nil
}

func (c *Client) UpdateAssistant(ctx context.Context, id string, spec AssistantSpec) (*Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodPatch, assistantPath+"/"+url.PathEscape(id), assistantBodyFrom(spec), &out); err != nil {
		return nil, fmt.Errorf("update assistant %s: %w", id, err)
	}
	return &out, nil
}

func (c *Client) GetAssistant(ctx context.Context, id string) (*Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodGet, assistantPath+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get assistant %s: %w", id, err)
	}
	return &out, nil
}

func (c *Client) DeleteAssistant(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, assistantPath+"/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete assistant %s: %w", id, err)
	}
	return nil
}

// CallQuery filters one page of the call list. The provider returns the
// page newest first.
type CallQuery struct {
	AssistantID   string
	CreatedAfter  *time.Time // exclusive
	CreatedBefore *time.Time // inclusive
	Limit         int
}

// ListCalls fetches a single page of calls.
func (c *Client) ListCalls(ctx context.Context, query CallQuery) ([]Call, error) {
	q := url.Values{}
	q.Set("assistantId", query.AssistantID)
	if query.CreatedAfter != nil {
		q.Set("createdAtGt", query.CreatedAfter.UTC().Format(time.RFC3339Nano))
	}
	if query.CreatedBefore != nil {
		q.Set("createdAtLe", query.CreatedBefore.UTC().Format(time.RFC3339Nano))
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	var out []Call
	if err := c.do(ctx, http.MethodGet, callPath+"?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("list calls for assistant %s: %w", query.AssistantID, err)
	}
	return out, nil
}

// ListCallsSince walks every page of calls created after since (all calls
// when since is nil) and returns them oldest first.
func (c *Client) ListCallsSince(ctx context.Context, assistantID string, since *time.Time) ([]Call, error) {
	seen := make(map[string]struct{})
	var all []Call
	var before *time.Time
	for page := 0; ; page++ {
		if page == maxCallPages {
			return nil, fmt.Errorf("list calls for assistant %s: more than %d pages", assistantID, maxCallPages)
		}
		batch, err := c.ListCalls(ctx, CallQuery{
			AssistantID:   assistantID,
			CreatedAfter:  since,
			CreatedBefore: before,
			Limit:         callPageSize,
		})
		if err != nil {
			return nil, err
		}

		added := 0
		var oldest time.Time
		for _, call := range batch {
			if oldest.IsZero() || call.CreatedAt.Before(oldest) {
				oldest = call.CreatedAt
			}
			if _, dup := seen[call.ID]; dup {
				continue
			}
			seen[call.ID] = struct{}{}
			all = append(all, call)
			added++
		}
		// createdAtLe is inclusive, so the next page repeats the boundary
		// calls. A page with nothing new means the cursor cannot move.
		if len(batch) < callPageSize || added == 0 {
			break
		}
		before = &oldest
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all, nil
}

func (c *Client) CreatePhoneNumber(ctx context.Context, spec PhoneNumberSpec) (*PhoneNumber, error) {
	var out PhoneNumber
	if err := c.do(ctx, http.MethodPost, phoneNumberPath, spec, &out); err != nil {
		return nil, fmt.Errorf("create phone number: %w", err)
	}
	return &out, nil
}

// UpdatePhoneNumber points the number at assistantID, or detaches it when nil.
func (c *Client) UpdatePhoneNumber(ctx context.Context, id string, assistantID *string) (*PhoneNumber, error) {
	body := map[string]any{"assistantId": nil}
	if assistantID != nil {
		body["assistantId"] = *assistantID
	}
	var out PhoneNumber
	if err := c.do(ctx, http.MethodPatch, phoneNumberPath+"/"+url.PathEscape(id), body, &out); err != nil {
		return nil, fmt.Errorf("update phone number %s: %w", id, err)
	}
	return &out, nil
}

func (c *Client) DeletePhoneNumber(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, phoneNumberPath+"/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete phone number %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// errorMessage extracts "message" from an error body. The provider sends it
// either as a string or as a list of validation messages.
func errorMessage(raw []byte) string {
	var e struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil {
		var s string
		if json.Unmarshal(e.Message, &s) == nil && s != "" {
			return s
		}
		var list []string
		if json.Unmarshal(e.Message, &list) == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
