package alarms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oshokin/alarm-agent/internal/config"
	domain "github.com/oshokin/alarm-agent/internal/domain/alarm"
)

const (
	// alarmsPath is the PostgREST resource of the alarms table.
	alarmsPath = "/rest/v1/alarms"
	// apiKeyHeader carries the project key next to the bearer token.
	apiKeyHeader = "apikey"
)

var (
	// errURLRequired is returned when the endpoint URL is missing.
	errURLRequired = errors.New("source url must be provided")
	// errUnexpectedResponse wraps non-2xx answers.
	errUnexpectedResponse = errors.New("unexpected response")
)

// RESTSource reads alarms through a PostgREST endpoint.
type RESTSource struct {
	// http is the configured resty client.
	http *resty.Client
	// callTimeout bounds every request.
	callTimeout time.Duration
}

// RESTOption configures a RESTSource.
type RESTOption func(*RESTSource)

// WithCallTimeout sets the timeout of individual requests.
func WithCallTimeout(timeout time.Duration) RESTOption {
	return func(s *RESTSource) {
		if timeout > 0 {
			s.callTimeout = timeout
		}
	}
}

// NewRESTSource creates a source for the endpoint at baseURL authenticated with apiKey.
func NewRESTSource(baseURL, apiKey string, opts ...RESTOption) (*RESTSource, error) {
	if baseURL == "" {
		return nil, errURLRequired
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	if apiKey != "" {
		client.SetHeader(apiKeyHeader, apiKey).SetAuthToken(apiKey)
	}

	s := &RESTSource{
		http:        client,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// FetchAlarms implements Source.
func (s *RESTSource) FetchAlarms(ctx context.Context, ownerID string) ([]*domain.Alarm, error) {
	records, err := s.query(ctx, map[string]string{
		"child_id": "eq." + ownerID,
		"order":    "alarm_time.asc",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch alarms: %w", err)
	}

	return toAlarms(ctx, records), nil
}

// GetAlarm implements Source.
func (s *RESTSource) GetAlarm(ctx context.Context, id, ownerID string) (*domain.Alarm, error) {
	records, err := s.query(ctx, map[string]string{
		"id":       "eq." + id,
		"child_id": "eq." + ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("get alarm %s: %w", id, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("get alarm %s: %w", id, ErrNotFound)
	}

	return records[0].ToAlarm(ctx), nil
}

// FetchPending implements Source.
func (s *RESTSource) FetchPending(ctx context.Context, ownerID string) ([]*domain.Alarm, error) {
	records, err := s.query(ctx, map[string]string{
		"child_id": "eq." + ownerID,
		"status":   "eq." + string(domain.StatusPending),
		"order":    "created_at.desc",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending alarms: %w", err)
	}

	return toAlarms(ctx, records), nil
}

// SetStatus implements Source.
func (s *RESTSource) SetStatus(ctx context.Context, id, ownerID string, status domain.Status) error {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	var updated []Record

	resp, err := s.http.R().
		SetContext(callCtx).
		SetQueryParams(map[string]string{
			"id":       "eq." + id,
			"child_id": "eq." + ownerID,
		}).
		SetHeader("Prefer", "return=representation").
		SetBody(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).
		SetResult(&updated).
		Patch(alarmsPath)
	if err != nil {
		return fmt.Errorf("set status of alarm %s: %w", id, err)
	}

	if resp.IsError() {
		return fmt.Errorf("set status of alarm %s: %w: %s %s",
			id, errUnexpectedResponse, resp.Status(), resp.String())
	}

	if len(updated) == 0 {
		return fmt.Errorf("set status of alarm %s: %w", id, ErrNotFound)
	}

	return nil
}

// query selects alarm rows matching the PostgREST filters in params.
func (s *RESTSource) query(ctx context.Context, params map[string]string) ([]Record, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	var records []Record

	resp, err := s.http.R().
		SetContext(callCtx).
		SetQueryParam("select", "*").
		SetQueryParams(params).
		SetResult(&records).
		Get(alarmsPath)
	if err != nil {
		return nil, err
	}

	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s %s", errUnexpectedResponse, resp.Status(), resp.String())
	}

	return records, nil
}

// callContext returns a context bounded by the source's call timeout.
func (s *RESTSource) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.callTimeout)
}
