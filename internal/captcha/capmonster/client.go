// Package capmonster implements bid.Recognizer on top of the CapMonster Cloud API.
package capmonster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public CapMonster Cloud endpoint.
const DefaultBaseURL = "https://api.capmonster.cloud"

const (
	statusReady      = "ready"
	statusProcessing = "processing"
)

// Config controls the CapMonster client.
type Config struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client creates ImageToText tasks and polls for their result.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *zap.Logger
}

// APIError is returned when CapMonster answers with a non-zero errorId.
type APIError struct {
	ID          int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("capmonster error %d %s: %s", e.ID, e.Code, e.Description)
}

type createTaskRequest struct {
	ClientKey string          `json:"clientKey"`
	Task      imageToTextTask `json:"task"`
}

type imageToTextTask struct {
	Type string `json:"type"`
	Body string `json:"body"`
}

type createTaskResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           int64  `json:"taskId"`
}

type taskResultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int64  `json:"taskId"`
}

type taskResultResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	Status           string `json:"status"`
	Solution         struct {
		Text string `json:"text"`
	} `json:"solution"`
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("capmonster api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	return &Client{cfg: cfg, http: client, logger: logger}, nil
}

// Recognize submits a base64 image and waits for its text.
func (c *Client) Recognize(ctx context.Context, base64Image string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	taskID, err := c.createTask(ctx, base64Image)
	if err != nil {
		return "", err
	}
	c.logger.Debug("captcha task created", zap.Int64("task_id", taskID))
	return c.waitResult(ctx, taskID)
}

func (c *Client) createTask(ctx context.Context, body string) (int64, error) {
	var out createTaskResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(createTaskRequest{
			ClientKey: c.cfg.APIKey,
			Task:      imageToTextTask{Type: "ImageToTextTask", Body: body},
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Post("/createTask")
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	if res.IsError() {
		return 0, fmt.Errorf("create task: unexpected status %d", res.StatusCode())
	}
	if out.ErrorID != 0 {
		return 0, &APIError{ID: out.ErrorID, Code: out.ErrorCode, Description: out.ErrorDescription}
	}
	return out.TaskID, nil
}

func (c *Client) waitResult(ctx context.Context, taskID int64) (string, error) {
	limiter := rate.NewLimiter(rate.Every(c.cfg.PollInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait task %d: %w", taskID, err)
		}
		var out taskResultResponse
		res, err := c.http.R().
			SetContext(ctx).
			SetBody(taskResultRequest{ClientKey: c.cfg.APIKey, TaskID: taskID}).
			SetResult(&out).
			ForceContentType("application/json").
			Post("/getTaskResult")
		if err != nil {
			return "", fmt.Errorf("get task result: %w", err)
		}
		if res.IsError() {
			return "", fmt.Errorf("get task result: unexpected status %d", res.StatusCode())
		}
		if out.ErrorID != 0 {
			return "", &APIError{ID: out.ErrorID, Code: out.ErrorCode, Description: out.ErrorDescription}
		}
		switch out.Status {
		case statusReady:
			return out.Solution.Text, nil
		case statusProcessing, "":
			continue
		default:
			return "", fmt.Errorf("get task result: unknown status %q", out.Status)
		}
	}
}
