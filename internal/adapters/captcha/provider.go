package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	createTaskPath = "/createTask"
	getResultPath  = "/getTaskResult"
)

type Option func(*taskAPI)

// WithBaseURL points a provider at another endpoint.
func WithBaseURL(u string) Option {
	return func(a *taskAPI) {
		if u != "" {
			a.client.SetBaseURL(strings.TrimRight(u, "/"))
		}
	}
}

// taskAPI is the createTask/getTaskResult protocol shared by CapSolver
// and 2Captcha. Providers differ in endpoint and task type names.
type taskAPI struct {
	name      string
	apiKey    string
	taskTypes map[Kind]string
	client    *resty.Client
}

func newTaskAPI(name, baseURL, apiKey string, taskTypes map[Kind]string, opts []Option) *taskAPI {
	a := &taskAPI{
		name:      name,
		apiKey:    strings.TrimSpace(apiKey),
		taskTypes: taskTypes,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *taskAPI) Name() string { return a.name }

type createTaskRequest struct {
	ClientKey string      `json:"clientKey"`
	Task      interface{} `json:"task"`
}

type taskPayload struct {
	Type        string `json:"type"`
	WebsiteURL  string `json:"websiteURL"`
	WebsiteKey  string `json:"websiteKey"`
	IsInvisible bool   `json:"isInvisible,omitempty"`
}

type apiError struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

func (e apiError) err(op, name string) error {
	if e.ErrorID == 0 && e.ErrorCode == "" {
		return nil
	}
	if strings.EqualFold(e.ErrorCode, errZeroBalanceCode) {
		return ErrZeroBalance
	}
	if e.ErrorDescription != "" {
		return fmt.Errorf("%s %s error: %s - %s", name, op, e.ErrorCode, e.ErrorDescription)
	}
	return fmt.Errorf("%s %s error: %s", name, op, e.ErrorCode)
}

type createTaskResponse struct {
	apiError
	// 2Captcha answers with a number, CapSolver with a string.
	TaskID json.RawMessage `json:"taskId"`
}

type resultRequest struct {
	ClientKey string      `json:"clientKey"`
	TaskID    interface{} `json:"taskId"`
}

type resultResponse struct {
	apiError
	Status   string `json:"status"`
	Solution struct {
		Token              string `json:"token"`
		GRecaptchaResponse string `json:"gRecaptchaResponse"`
	} `json:"solution"`
}

func (a *taskAPI) CreateTask(ctx context.Context, task Task) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("%s api key not provided", a.name)
	}
	if strings.TrimSpace(task.SiteKey) == "" {
		return "", fmt.Errorf("%s site key required", a.name)
	}
	if strings.TrimSpace(task.PageURL) == "" {
		return "", fmt.Errorf("%s page url required", a.name)
	}
	taskType, ok := a.taskTypes[task.Kind]
	if !ok {
		return "", fmt.Errorf("%s does not support challenge kind %q", a.name, task.Kind)
	}

	var out createTaskResponse
	err := a.post(ctx, createTaskPath, createTaskRequest{
		ClientKey: a.apiKey,
		Task: taskPayload{
			Type:        taskType,
			WebsiteURL:  task.PageURL,
			WebsiteKey:  task.SiteKey,
			IsInvisible: task.Invisible,
		},
	}, &out)
	if err != nil {
		return "", err
	}
	if err := out.err("createTask", a.name); err != nil {
		return "", err
	}

	id := strings.Trim(strings.TrimSpace(string(out.TaskID)), `"`)
	if id == "" || id == "null" || id == "0" {
		return "", fmt.Errorf("%s returned empty task id", a.name)
	}
	return id, nil
}

func (a *taskAPI) TaskResult(ctx context.Context, taskID string) (TaskResult, error) {
	var id interface{} = taskID
	if n, err := json.Number(taskID).Int64(); err == nil {
		id = n
	}

	var out resultResponse
	if err := a.post(ctx, getResultPath, resultRequest{ClientKey: a.apiKey, TaskID: id}, &out); err != nil {
		return TaskResult{}, err
	}
	if err := out.err("getTaskResult", a.name); err != nil {
		if errors.Is(err, ErrZeroBalance) {
			return TaskResult{}, err
		}
		return TaskResult{Status: StatusFailed, Reason: err.Error()}, nil
	}

	switch strings.ToLower(strings.TrimSpace(out.Status)) {
	case "", "idle", "queued", "processing":
		return TaskResult{Status: StatusProcessing}, nil
	case "ready", "completed":
		token := out.Solution.GRecaptchaResponse
		if token == "" {
			token = out.Solution.Token
		}
		if token == "" {
			return TaskResult{Status: StatusFailed, Reason: a.name + " returned empty token"}, nil
		}
		return TaskResult{Status: StatusReady, Token: token}, nil
	default:
		return TaskResult{Status: StatusFailed, Reason: "unexpected status " + out.Status}, nil
	}
}

func (a *taskAPI) post(ctx context.Context, path string, payload, out interface{}) error {
	res, err := a.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(path)
	if err != nil {
		return fmt.Errorf("%s http error: %w", a.name, err)
	}
	if res.IsError() {
		return fmt.Errorf("%s status %s body=%s", a.name, res.Status(), strings.TrimSpace(res.String()))
	}
	if err := json.Unmarshal(res.Body(), out); err != nil {
		return fmt.Errorf("%s decode error: %w", a.name, err)
	}
	return nil
}
