package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teamlens/teamlens/internal/config"
	"github.com/teamlens/teamlens/internal/filter"
)

// PageQuery carries the conversation browser's pagination and sort substate.
type PageQuery struct {
	Limit          int
	Skip           int
	OrderBy        string
	OrderDirection string
}

// RequestRecorder observes one completed upstream request for metrics.
type RequestRecorder func(endpoint string, status int, duration time.Duration)

// Client speaks to the analytics backend. Every query-bearing method takes a
// filter.Effective: raw filter state never reaches the wire.
type Client struct {
	base          string
	token         string
	http          *http.Client
	exportTimeout time.Duration
	record        RequestRecorder
}

func NewClient(cfg config.UpstreamConfig) *Client {
	return &Client{
		base:          strings.TrimRight(cfg.BaseURL, "/"),
		token:         cfg.APIToken,
		http:          &http.Client{Timeout: cfg.Timeout},
		exportTimeout: cfg.ExportTimeout,
	}
}

// SetRecorder wires request metrics in after construction.
func (c *Client) SetRecorder(record RequestRecorder) {
	c.record = record
}

// Usage fetches the aggregate usage report for the effective filter.
func (c *Client) Usage(ctx context.Context, eff filter.Effective) (*UsageReport, error) {
	var report UsageReport
	if err := c.getJSON(ctx, "/usage", eff.Query(), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Conversations fetches one page of conversation summaries.
func (c *Client) Conversations(ctx context.Context, eff filter.Effective, page PageQuery) (*ConversationList, error) {
	values := eff.Query()
	values.Set("limit", strconv.Itoa(page.Limit))
	values.Set("skip", strconv.Itoa(page.Skip))
	if page.OrderBy != "" {
		values.Set("order_by", page.OrderBy)
		values.Set("order_direction", page.OrderDirection)
	}
	var list ConversationList
	if err := c.getJSON(ctx, "/conversations", values, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Conversation fetches a full transcript.
func (c *Client) Conversation(ctx context.Context, id string) (*ConversationDetail, error) {
	var detail ConversationDetail
	if err := c.getJSON(ctx, "/conversations/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Storage fetches the storage breakdown for the effective filter.
func (c *Client) Storage(ctx context.Context, eff filter.Effective, datasetID, view string) (*StorageReport, error) {
	values := url.Values{}
	if eff.UserID != "" {
		values.Set("user_id", eff.UserID)
	}
	for _, teamID := range eff.TeamIDs {
		values.Add("team_id", teamID)
	}
	if datasetID != "" {
		values.Set("dataset_id", datasetID)
	}
	if view != "" {
		values.Set("view", view)
	}
	var report StorageReport
	if err := c.getJSON(ctx, "/storage", values, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Filters fetches the unfiltered reference lists, optionally scoped to the
// resources reachable by one team.
func (c *Client) Filters(ctx context.Context, teamID string) (*ReferenceLists, error) {
	values := url.Values{}
	if teamID != "" && teamID != filter.TeamAll {
		values.Set("team_id", teamID)
	}
	var lists ReferenceLists
	if err := c.getJSON(ctx, "/filters", values, &lists); err != nil {
		return nil, err
	}
	return &lists, nil
}

// Ping probes upstream reachability using the cheapest read endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Filters(ctx, "")
	return err
}

// ObservableMembers fetches the consenting member list for one concrete
// team. Callers with a wider scope iterate their teams; the sentinel never
// reaches this method.
func (c *Client) ObservableMembers(ctx context.Context, teamID string) ([]ObservableMember, error) {
	if teamID == "" || teamID == filter.TeamAll {
		return nil, fmt.Errorf("observable members need a concrete team id, got %q", teamID)
	}
	var payload struct {
		Members []ObservableMember `json:"members"`
	}
	path := "/teams/" + url.PathEscape(teamID) + "/observable-members"
	if err := c.getJSON(ctx, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Members, nil
}

// AllObservableMembers fetches the platform-wide consenting member list.
// Only unrestricted (admin) callers may be routed here.
func (c *Client) AllObservableMembers(ctx context.Context) ([]ObservableMember, error) {
	var payload struct {
		Members []ObservableMember `json:"members"`
	}
	if err := c.getJSON(ctx, "/teams/observable-members", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Members, nil
}

// Export requests a file-producing export and buffers the result. The
// filename comes from Content-Disposition when present, otherwise a
// timestamped default.
func (c *Client) Export(ctx context.Context, values url.Values) (*ExportResult, error) {
	req, err := c.newRequest(ctx, "/export", values)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: c.exportTimeout}
	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		c.observe("/export", 0, started)
		return nil, fmt.Errorf("export request: %w", err)
	}
	defer resp.Body.Close()
	c.observe("/export", resp.StatusCode, started)
	if resp.StatusCode/100 != 2 {
		return nil, statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export body: %w", err)
	}
	return &ExportResult{
		Filename:    exportFilename(resp, values.Get("format")),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func exportFilename(resp *http.Response, format string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return name
			}
		}
	}
	if format == "" {
		format = "csv"
	}
	return "export-" + time.Now().UTC().Format("20060102-150405") + "." + format
}

func (c *Client) newRequest(ctx context.Context, path string, values url.Values) (*http.Request, error) {
	endpoint := c.base + path
	if len(values) > 0 {
		endpoint += "?" + values.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	req, err := c.newRequest(ctx, path, values)
	if err != nil {
		return err
	}
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(path, 0, started)
		return fmt.Errorf("upstream request %s: %w", path, err)
	}
	defer resp.Body.Close()
	c.observe(path, resp.StatusCode, started)
	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// observe reports the request to the metrics recorder under a low-cardinality
// endpoint label (the first path segment, so transcript ids never become
// label values).
func (c *Client) observe(path string, status int, started time.Time) {
	if c.record == nil {
		return
	}
	endpoint := path
	if idx := strings.Index(endpoint[1:], "/"); idx >= 0 {
		endpoint = endpoint[:idx+1]
	}
	c.record(endpoint, status, time.Since(started))
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
