package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ScheduleResponse — запись расписания из API.
type ScheduleResponse struct {
	ID              string `json:"id"`
	ContentType     string `json:"content_type"`
	ContentID       int64  `json:"content_id"`
	ActionParameter string `json:"action_parameter,omitempty"`
	ScheduledTime   string `json:"scheduled_time"`
	Status          string `json:"status"`
	Attempts        int    `json:"attempts"`
	CreatedBy       int64  `json:"created_by"`
	CreatedAt       string `json:"created_at"`
	ExecutedAt      string `json:"executed_at,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	LastError       string `json:"last_error,omitempty"`
}

// GrantResponse — выданный купон из API.
type GrantResponse struct {
	ID               string `json:"id"`
	MemberID         int64  `json:"member_id"`
	CouponID         int64  `json:"coupon_id"`
	Status           string `json:"status"`
	AssignedAt       string `json:"assigned_at"`
	VerificationCode string `json:"verification_code"`
}

// --- Request types ---

// CreateScheduleRequest — планирование действия.
type CreateScheduleRequest struct {
	ContentType     string    `json:"content_type"`
	ContentID       int64     `json:"content_id"`
	ScheduledTime   time.Time `json:"scheduled_time"`
	CreatedBy       int64     `json:"created_by"`
	ActionParameter string    `json:"action_parameter,omitempty"`
}

// RescheduleRequest — перенос записи.
type RescheduleRequest struct {
	ScheduledTime time.Time `json:"scheduled_time"`
	By            int64     `json:"by"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Courier API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Schedules ---

// ListSchedules возвращает записи. Если contentType не пустой — фильтрует.
func (c *Client) ListSchedules(contentType string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if contentType != "" {
		params.Set("content_type", contentType)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule планирует действие.
func (c *Client) CreateSchedule(req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает запись по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+url.PathEscape(id), &schedule)
	return &schedule, err
}

// CancelSchedule отменяет pending-запись. false — запись уже не pending.
func (c *Client) CancelSchedule(id string) (bool, error) {
	var resp struct {
		Cancelled bool `json:"cancelled"`
	}
	err := c.post("/api/v1/schedules/"+url.PathEscape(id)+"/cancel", nil, &resp)
	return resp.Cancelled, err
}

// RescheduleSchedule переносит запись; возвращает новую.
func (c *Client) RescheduleSchedule(id string, req RescheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/schedules/"+url.PathEscape(id)+"/reschedule", req, &schedule)
	return &schedule, err
}

// --- Coupons ---

// ListGrants возвращает grants купона.
func (c *Client) ListGrants(couponID int64) ([]GrantResponse, error) {
	var grants []GrantResponse
	err := c.list(fmt.Sprintf("/api/v1/coupons/%d/grants", couponID), nil, &grants)
	return grants, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
