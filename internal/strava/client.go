// Package strava is a client for the Strava activities API. It authenticates
// with a static bearer token; refreshing that token is someone else's job.
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://www.strava.com/api/v3"
	defaultPageSize = 100
	maxPages        = 20
)

var (
	ErrUnauthorized = errors.New("strava rejected the access token")
	ErrRateLimited  = errors.New("strava rate limit exceeded")
)

// SummaryActivity is the subset of Strava's activity summary we read.
type SummaryActivity struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	SportType          string   `json:"sport_type"`
	StartDate          string   `json:"start_date"`
	StartDateLocal     string   `json:"start_date_local"`
	Distance           float64  `json:"distance"`    // metres
	MovingTime         float64  `json:"moving_time"` // seconds
	TotalElevationGain float64  `json:"total_elevation_gain"`
	AverageHeartrate   *float64 `json:"average_heartrate"`
	MaxHeartrate       *float64 `json:"max_heartrate"`
	Calories           *float64 `json:"calories"`
}

// IsRun reports whether the activity is some kind of run.
func (a SummaryActivity) IsRun() bool {
	switch {
	case a.Type == "Run", a.SportType == "Run", a.SportType == "TrailRun", a.SportType == "VirtualRun":
		return true
	}
	return false
}

// LocalDate is the athlete-local calendar date of the start, YYYY-MM-DD.
func (a SummaryActivity) LocalDate() string {
	s := a.StartDateLocal
	if s == "" {
		s = a.StartDate
	}
	if len(s) >= 10 {
		return s[:10]
	}
	return ""
}

// Athlete is the authenticated account behind the token.
type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// NewActivity is a manual activity to create. Strava has no planned-workout
// API, so planned sessions are pushed as private activities of type Workout.
type NewActivity struct {
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	StartDateLocal string  `json:"start_date_local"` // 2006-01-02T15:04:05, no zone
	ElapsedTime    int     `json:"elapsed_time"`     // seconds
	Description    string  `json:"description,omitempty"`
	Distance       float64 `json:"distance,omitempty"` // metres
	Private        bool    `json:"private"`
}

// StartTime parses the UTC start timestamp.
func (a SummaryActivity) StartTime() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, a.StartDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
}

type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLimiter overrides the request pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= 200 {
			c.pageSize = n
		}
	}
}

// NewClient builds a client that sends accessToken as a bearer token.
func NewClient(accessToken string, timeout time.Duration, opts ...Option) *Client {
	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = timeout

	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: httpClient,
		// Strava allows 100 requests per 15 minutes; stay well below for bursts.
		limiter:  rate.NewLimiter(rate.Every(time.Second), 5),
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListRuns pages through the athlete's activities started after `after` and
// keeps only runs.
func (c *Client) ListRuns(ctx context.Context, after time.Time) ([]SummaryActivity, error) {
	var runs []SummaryActivity
	for page := 1; page <= maxPages; page++ {
		batch, err := c.listPage(ctx, after, page)
		if err != nil {
			return nil, err
		}
		for _, a := range batch {
			if a.IsRun() {
				runs = append(runs, a)
			}
		}
		if len(batch) < c.pageSize {
			return runs, nil
		}
	}
	logrus.WithField("pages", maxPages).Warn("strava: stopped paging at the page limit")
	return runs, nil
}

func (c *Client) listPage(ctx context.Context, after time.Time, page int) ([]SummaryActivity, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.pageSize))
	q.Set("page", strconv.Itoa(page))
	if !after.IsZero() {
		q.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	var out []SummaryActivity
	if err := c.do(ctx, http.MethodGet, "/athlete/activities?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Athlete fetches the account the token belongs to. It doubles as a check
// that the token is still accepted.
func (c *Client) Athlete(ctx context.Context) (*Athlete, error) {
	var out Athlete
	if err := c.do(ctx, http.MethodGet, "/athlete", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateActivity creates a manual activity and returns its id. The token
// needs the activity:write scope.
func (c *Client) CreateActivity(ctx context.Context, a NewActivity) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/activities", a, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("strava: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("strava request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("strava: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("strava: decode %s: %w", path, err)
	}
	return nil
}
