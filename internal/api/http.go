package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/voyago/tripsync/internal/logging"
	"github.com/voyago/tripsync/internal/models"
)

// HeaderBaseUpdatedAt carries the optimistic-concurrency precondition: the
// client's last-known server timestamp for the record being updated.
const HeaderBaseUpdatedAt = "X-Base-Updated-At"

// TokenSource returns the current session token.
type TokenSource func(ctx context.Context) (string, error)

// HTTPClient implements Client against the REST API.
type HTTPClient struct {
	base  *url.URL
	http  *http.Client
	token TokenSource
	log   logging.Logger
}

func NewHTTPClient(baseURL string, token TokenSource, log logging.Logger) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	return &HTTPClient{
		base:  u,
		http:  &http.Client{Timeout: 15 * time.Second},
		token: token,
		log:   log,
	}, nil
}

// conflictBody is the machine-readable 409 shape: a marker plus the server's
// current version of the record.
type conflictBody struct {
	Error  string          `json:"error"`
	Server json.RawMessage `json:"server"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any, base *time.Time) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	pathOnly, query, _ := strings.Cut(path, "?")
	u := c.base.JoinPath(pathOnly)
	u.RawQuery = query
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if base != nil {
		req.Header.Set(HeaderBaseUpdatedAt, base.UTC().Format(time.RFC3339Nano))
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		var cb conflictBody
		if err := json.Unmarshal(raw, &cb); err != nil || cb.Server == nil {
			// a 409 without the conflict shape is a generic failure
			return statusError(resp.StatusCode, string(raw))
		}
		return &ConflictError{Server: cb.Server}
	case resp.StatusCode >= 400:
		return statusError(resp.StatusCode, string(raw))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// authorize attaches the bearer token, rejecting locally when the token is
// already expired so an offline write fails fast as unauthorized instead of
// being misread as a network outage.
func (c *HTTPClient) authorize(ctx context.Context, req *http.Request) error {
	if c.token == nil {
		return nil
	}
	tok, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if tok == "" {
		return fmt.Errorf("%w: no session token", ErrUnauthorized)
	}
	if claims, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{}); err == nil {
		if exp, err := claims.Claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(time.Now()) {
			return fmt.Errorf("%w: session token expired", ErrUnauthorized)
		}
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil, nil, nil)
}

func (c *HTTPClient) ListPlans(ctx context.Context) ([]models.Plan, error) {
	var out []models.Plan
	if err := c.do(ctx, http.MethodGet, "/plans", nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetPlan(ctx context.Context, id int64) (*PlanDetail, error) {
	var out PlanDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/plans/%d", id), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	var out models.Plan
	if err := c.do(ctx, http.MethodPost, "/plans", p, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdatePlan(ctx context.Context, id int64, patch Patch, base *time.Time) (*models.Plan, error) {
	var out models.Plan
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/plans/%d", id), patch, &out, base); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeletePlan(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/plans/%d", id), nil, nil, nil)
}

func (c *HTTPClient) ListSchedules(ctx context.Context, planID int64) ([]models.Schedule, error) {
	var out []models.Schedule
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/schedules?plan_id=%d", planID), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateSchedule(ctx context.Context, s models.Schedule) (*models.Schedule, error) {
	var out models.Schedule
	if err := c.do(ctx, http.MethodPost, "/schedules", s, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateSchedule(ctx context.Context, id int64, patch Patch, base *time.Time) (*models.Schedule, error) {
	var out models.Schedule
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/schedules/%d", id), patch, &out, base); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteSchedule(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/schedules/%d", id), nil, nil, nil)
}

func (c *HTTPClient) ListMoments(ctx context.Context, scheduleID int64) ([]models.Moment, error) {
	var out []models.Moment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/schedules/%d/moments", scheduleID), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateMoment(ctx context.Context, m models.Moment) (*models.Moment, error) {
	var out models.Moment
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/schedules/%d/moments", m.ScheduleID), m, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateMoment(ctx context.Context, id int64, patch Patch, base *time.Time) (*models.Moment, error) {
	var out models.Moment
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/moments/%d", id), patch, &out, base); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteMoment(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/moments/%d", id), nil, nil, nil)
}

func (c *HTTPClient) ListMemos(ctx context.Context, planID int64) ([]models.Memo, error) {
	var out []models.Memo
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/plans/%d/memos", planID), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateMemo(ctx context.Context, m models.Memo) (*models.Memo, error) {
	var out models.Memo
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/plans/%d/memos", m.PlanID), m, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateMemo(ctx context.Context, planID, id int64, patch Patch, base *time.Time) (*models.Memo, error) {
	var out models.Memo
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/plans/%d/memos/%d", planID, id), patch, &out, base); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteMemo(ctx context.Context, planID, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/plans/%d/memos/%d", planID, id), nil, nil, nil)
}

func (c *HTTPClient) ListComments(ctx context.Context, momentID int64) ([]models.Comment, error) {
	var out []models.Comment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/moments/%d/comments", momentID), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateComment(ctx context.Context, cm models.Comment) (*models.Comment, error) {
	var out models.Comment
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/moments/%d/comments", cm.MomentID), cm, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateComment(ctx context.Context, id int64, patch Patch, base *time.Time) (*models.Comment, error) {
	var out models.Comment
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/comments/%d", id), patch, &out, base); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteComment(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/comments/%d", id), nil, nil, nil)
}

func (c *HTTPClient) ListMembers(ctx context.Context, planID int64) ([]models.Member, error) {
	var out []models.Member
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/plans/%d/members", planID), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) AddMember(ctx context.Context, planID, userID int64, role string) (*models.Member, error) {
	var out models.Member
	in := map[string]any{"user_id": userID, "role": role}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/plans/%d/members", planID), in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RemoveMember(ctx context.Context, planID, userID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/plans/%d/members/%d", planID, userID), nil, nil, nil)
}

func (c *HTTPClient) CreateUpload(ctx context.Context, contentType string) (*Upload, error) {
	var out Upload
	in := map[string]any{"content_type": contentType}
	if err := c.do(ctx, http.MethodPost, "/uploads", in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutUpload sends raw bytes to a presigned URL. The URL is opaque and
// already authorized, so no bearer token is attached.
func (c *HTTPClient) PutUpload(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload failed: %s", resp.Status)
	}
	return nil
}
