// Package push delivers reminder notifications to mobile devices through an
// FCM v1 style HTTP endpoint.
package push

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"

	logx "remindbot/pkg/logx"
)

type Config struct {
	Enabled  bool
	Endpoint string // base URL, e.g. https://fcm.googleapis.com/v1/projects/<id>
	Token    string // bearer token
	Timeout  time.Duration
}

// TokenStore lists and prunes device tokens. storage.Store implements it.
type TokenStore interface {
	DeviceTokens(ctx context.Context, userID int64) ([]string, error)
	DeleteDeviceToken(ctx context.Context, token string) error
}

type Client struct {
	http   *resty.Client
	tokens TokenStore
	log    logx.Logger
}

func New(cfg Config, tokens TokenStore, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("push endpoint is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := resty.New()
	hc.SetBaseURL(strings.TrimRight(cfg.Endpoint, "/"))
	hc.SetHeader("Content-Type", "application/json")
	hc.SetTimeout(timeout)
	if cfg.Token != "" {
		hc.SetHeader("Authorization", "Bearer "+cfg.Token)
	}
	return &Client{http: hc, tokens: tokens, log: log.With(logx.String("comp", "push"))}, nil
}

func (c *Client) Close() error {
	return c.http.Close()
}

type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sendResponse struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// deadToken reports whether the gateway rejected the token for good.
func (e *errorResponse) deadToken() bool {
	if e == nil {
		return false
	}
	codes := []string{e.Error.Status}
	for _, d := range e.Error.Details {
		codes = append(codes, d.ErrorCode)
	}
	for _, s := range codes {
		switch s {
		case "UNREGISTERED", "INVALID_ARGUMENT", "NOT_FOUND":
			return true
		}
	}
	return false
}

// SendToUser pushes to every device of userID. Tokens the gateway reports as
// unregistered or invalid are deleted. It returns the number of devices
// reached.
func (c *Client) SendToUser(ctx context.Context, userID int64, title, body string, data map[string]string) (int, error) {
	tokens, err := c.tokens.DeviceTokens(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	var (
		sent int
		errs []error
	)
	for _, tok := range tokens {
		err := c.send(ctx, tok, title, body, data)
		if err == nil {
			sent++
			continue
		}
		var rej *rejectedError
		if errors.As(err, &rej) && rej.dead {
			if derr := c.tokens.DeleteDeviceToken(ctx, tok); derr != nil {
				c.log.Warn("dead push token not deleted", logx.Int64("user", userID), logx.Err(derr))
			} else {
				c.log.Info("dead push token removed", logx.Int64("user", userID), logx.String("status", rej.status))
			}
			continue
		}
		errs = append(errs, err)
	}
	return sent, errors.Join(errs...)
}

type rejectedError struct {
	code   int
	status string
	dead   bool
	body   string
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("push rejected %d %s: %s", e.code, e.status, e.body)
}

func (c *Client) send(ctx context.Context, token, title, body string, data map[string]string) error {
	req := sendRequest{Message: message{
		Token:        token,
		Notification: notification{Title: title, Body: body},
		Data:         data,
	}}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&sendResponse{}).
		SetError(&errorResponse{}).
		Post("/messages:send")
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	if resp.IsError() {
		e, _ := resp.Error().(*errorResponse)
		rej := &rejectedError{code: resp.StatusCode(), body: resp.String()}
		if e != nil {
			rej.status = e.Error.Status
			rej.dead = e.deadToken()
		}
		return rej
	}
	return nil
}
