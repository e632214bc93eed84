package chatapi

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

	"github.com/cupogo/andvari/utils/zlog"
	auth "github.com/liut/simpauth"
	"github.com/spf13/cast"

	"github.com/liut/parley/pkg/models/convo"
)

const (
	dftTimeout   = time.Second * 60
	maxErrorBody = 4096
)

func logger() zlog.Logger {
	return zlog.Get()
}

// Client talks to the remote chat service with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{
				Timeout:   d,
				Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
			}
		}
	}
}

// New returns a client for the service rooted at baseURL
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("chatapi: base url must not be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("chatapi: invalid base url: %w", err)
	}
	if token == "" {
		return nil, ErrEmptyToken
	}
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout:   dftTimeout,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// VerifyToken checks the token and returns the user it belongs to
func (c *Client) VerifyToken(ctx context.Context) (*auth.User, error) {
	var res verifyResult
	if err := c.do(ctx, http.MethodGet, "/api/verify-token", nil, &res); err != nil {
		return nil, err
	}
	if !res.Valid || res.User == nil {
		return nil, &StatusError{StatusCode: http.StatusUnauthorized, URL: c.baseURL + "/api/verify-token", Message: "invalid token"}
	}
	user := &auth.User{
		UID:  cast.ToString(res.User.ID),
		Name: res.User.Nickname,
	}
	if user.Name == "" {
		user.Name = res.User.Username
	}
	return user, nil
}

// ListConversations returns the summaries of the user's conversations
func (c *Client) ListConversations(ctx context.Context) ([]*convo.Conversation, error) {
	var res listResult
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &res); err != nil {
		return nil, err
	}
	out := make([]*convo.Conversation, 0, len(res.Conversations))
	for _, cv := range res.Conversations {
		if cv != nil && cv.ID != "" {
			out = append(out, cv)
		}
	}
	return out, nil
}

// GetConversation returns one conversation with its full history
func (c *Client) GetConversation(ctx context.Context, id string) (*convo.Conversation, error) {
	var res detailResult
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	if res.Conversation == nil || res.Conversation.ID == "" {
		return nil, ErrEmptyResult
	}
	return res.Conversation, nil
}

func (c *Client) CreateConversation(ctx context.Context, title string) (*convo.Conversation, error) {
	var res createResult
	if err := c.do(ctx, http.MethodPost, "/api/conversations/new", &createParam{Title: title}, &res); err != nil {
		return nil, err
	}
	if !res.Success || res.Conversation == nil || res.Conversation.ID == "" {
		return nil, ErrEmptyResult
	}
	return res.Conversation, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var res ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", &req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Recommendations asks for follow-up prompts, topic may be empty
func (c *Client) Recommendations(ctx context.Context, topic string, count int) (convo.Recommendations, error) {
	q := url.Values{}
	if topic != "" {
		q.Set("topic", topic)
	}
	if count > 0 {
		q.Set("count", strconv.Itoa(count))
	}
	path := "/api/recommendations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var res recommendResult
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Recommendations, nil
}

// Transcribe submits base64 encoded audio
func (c *Client) Transcribe(ctx context.Context, audio string) (*SpeechResult, error) {
	var res SpeechResult
	if err := c.do(ctx, http.MethodPost, "/api/speech", &speechParam{Audio: audio}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SubmitFeedback(ctx context.Context, req FeedbackRequest) error {
	return c.do(ctx, http.MethodPost, "/api/feedback", &req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("chatapi: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	uri := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return fmt.Errorf("chatapi: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &StatusError{StatusCode: resp.StatusCode, URL: uri, Body: strings.TrimSpace(string(raw))}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			se.Message = eb.Error
			if se.Message == "" {
				se.Message = eb.Message
			}
		}
		logger().Debugw("chat service fail", "method", method, "path", path, "status", resp.StatusCode)
		return se
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("chatapi: read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return ErrEmptyResult
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("chatapi: decode response: %w", err)
	}
	return nil
}
