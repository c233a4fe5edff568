package simulate

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
)

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("versus api: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is a StatusError carrying code.
func IsCode(err error, code string) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Profile is the profile shape returned by the API.
type Profile struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Title          string  `json:"title,omitempty"`
	Company        string  `json:"company,omitempty"`
	Major          string  `json:"major,omitempty"`
	GraduationYear int     `json:"graduation_year,omitempty"`
	IsStudent      bool    `json:"is_student,omitempty"`
	Location       string  `json:"location,omitempty"`
	LinkedInURL    string  `json:"linkedin_url,omitempty"`
	Rating         float64 `json:"rating,omitempty"`
}

// Pair is the response of GET /pair.
type Pair struct {
	SessionID string   `json:"session_id"`
	Left      Profile  `json:"left"`
	Right     Profile  `json:"right"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// Vote is the body of POST /votes.
type Vote struct {
	SessionID string `json:"session_id"`
	LeftID    string `json:"left_id"`
	RightID   string `json:"right_id"`
	Outcome   string `json:"outcome"`
	VoteID    string `json:"vote_id,omitempty"`
}

// VoteResult is the response of POST /votes.
type VoteResult struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Entry is a leaderboard or rank row.
type Entry struct {
	Rank      int     `json:"rank"`
	ProfileID string  `json:"profile_id"`
	Name      string  `json:"name"`
	Rating    float64 `json:"rating"`
}

// Client talks to a running versus API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks that the metrics endpoint answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// CreateProfile posts a profile. Ratings are assigned by the server.
func (c *Client) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	p.Rating = 0
	var out Profile
	err := c.do(ctx, http.MethodPost, "/profiles", p, &out)
	return out, err
}

// NextPair asks for the next pair of sessionID. An empty id starts a session.
func (c *Client) NextPair(ctx context.Context, sessionID string) (Pair, error) {
	path := "/pair"
	if sessionID != "" {
		path += "?session_id=" + url.QueryEscape(sessionID)
	}
	var out Pair
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Vote submits a vote.
func (c *Client) Vote(ctx context.Context, v Vote) (VoteResult, error) {
	var out VoteResult
	err := c.do(ctx, http.MethodPost, "/votes", v, &out)
	return out, err
}

// Leaderboard returns the top limit entries.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	err := c.do(ctx, http.MethodGet, "/leaderboard?limit="+strconv.Itoa(limit), nil, &out)
	return out, err
}

// Rank returns the rank entry of one profile.
func (c *Client) Rank(ctx context.Context, profileID string) (Entry, error) {
	var out Entry
	err := c.do(ctx, http.MethodGet, "/rank/"+url.PathEscape(profileID), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			se.Code, se.Message = payload.Code, payload.Message
		}
		return se
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
