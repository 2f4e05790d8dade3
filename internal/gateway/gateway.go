// Package gateway 远程管理网关客户端：/admin/login 与 /admin/update。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseSize = 1 << 20

// ErrUnavailable 网关无法访问或返回了非预期内容
var ErrUnavailable = errors.New("管理网关不可用")

// RejectedError 网关明确拒绝（success=false），Message 为网关给出的原因
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "管理网关拒绝了请求"
	}
	return e.Message
}

// Client 远程管理网关客户端
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient 创建网关客户端；baseURL 形如 https://host，不含 /admin
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type updateRequest struct {
	Token string          `json:"token"`
	Data  json.RawMessage `json:"data"`
}

// reply 网关响应
type reply struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Login 用户名密码换取令牌
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var r reply
	if err := c.post(ctx, "/admin/login", loginRequest{Username: username, Password: password}, &r); err != nil {
		return "", err
	}
	if !r.Success {
		return "", &RejectedError{Message: r.Error}
	}
	if r.Token == "" {
		return "", fmt.Errorf("%w: 登录成功但未返回 token", ErrUnavailable)
	}
	return r.Token, nil
}

// Update 以令牌提交整份课表
func (c *Client) Update(ctx context.Context, token string, data json.RawMessage) (string, error) {
	var r reply
	if err := c.post(ctx, "/admin/update", updateRequest{Token: token, Data: data}, &r); err != nil {
		return "", err
	}
	if !r.Success {
		return "", &RejectedError{Message: r.Error}
	}
	return r.Message, nil
}

// post 发送 JSON 请求；网关在 4xx 时同样返回 {success:false,error}，因此不按状态码直接判错
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("请求管理网关失败", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("管理网关响应无法解析",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
