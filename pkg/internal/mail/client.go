package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/errs"
)

// Attachment 附件，Content 为 base64.
type Attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Message 邮件 API 请求体.
type Message struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SendError 单封邮件发送失败；StatusCode 为 0 表示没有收到响应.
type SendError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
	case errors.Is(e.Err, ErrTimeout):
		return e.Err.Error()
	case e.Err != nil:
		return fmt.Sprintf("%T: %v", e.Err, e.Err)
	default:
		return "send failed"
	}
}

func (e *SendError) Unwrap() error { return e.Err }

// Sender 单封邮件的传输.
type Sender interface {
	Send(ctx context.Context, msg *Message) (messageID string, err error)
}

// APIClient 通过 HTTPS JSON API 发送邮件（Bearer 鉴权）.
type APIClient struct {
	url     string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

// NewAPIClient 由配置创建客户端.
func NewAPIClient(cfg configs.MailConfig) *APIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = configs.DefaultMailTimeout
	}

	return &APIClient{
		url:     cfg.APIURL,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

const maxErrorBody = 2048

// Send 发送一封邮件；2xx 视为成功并返回消息 id，其余返回 *SendError.
func (c *APIClient) Send(ctx context.Context, msg *Message) (string, error) {
	body, err := sonic.Marshal(msg)
	if err != nil {
		return "", errs.Wrap(err, errs.KindInternal, "encode message")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &SendError{Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &SendError{Err: classify(err)}
	}

	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &SendError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out struct {
		ID string `json:"id"`
	}

	_ = sonic.Unmarshal(raw, &out)

	return out.ID, nil
}

// ErrTimeout 请求超时.
var ErrTimeout = errors.New("mail api timeout")

func classify(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return err
}
