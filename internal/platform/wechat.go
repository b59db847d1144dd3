package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

const (
	DefaultBaseURL = "https://api.weixin.qq.com"

	// tokenRefreshMargin is how long before expiry a cached token is refetched.
	tokenRefreshMargin = 300 * time.Second

	OperationFetchToken    = "fetch_token"
	OperationUploadCover   = "upload_cover_media"
	OperationUploadContent = "upload_content_media"
	OperationCreateDraft   = "create_draft"
)

var (
	ErrCredentialsRequired = errors.New("platform: app id and app secret are required")
	ErrEmptyUpload         = errors.New("platform: upload payload is empty")
)

// WeChatConfig configures the Official Account client.
type WeChatConfig struct {
	BaseURL    string
	AppID      string
	AppSecret  string
	Timeout    time.Duration
	Classifier *Classifier
	Logger     interfaces.Logger
	Now        func() time.Time
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// WeChatClient talks to the Official Account HTTP API. It is safe for
// concurrent use; the access token is shared across calls.
type WeChatClient struct {
	http       *resty.Client
	appID      string
	appSecret  string
	classifier *Classifier
	logger     interfaces.Logger
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

var _ interfaces.PlatformClient = (*WeChatClient)(nil)

func NewWeChatClient(cfg WeChatConfig) (*WeChatClient, error) {
	if strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.AppSecret) == "" {
		return nil, ErrCredentialsRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.Classifier == nil {
		cfg.Classifier = DefaultClassifier()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOp()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &WeChatClient{
		http:       client,
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		classifier: cfg.Classifier,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}, nil
}

type envelope struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type tokenResponse struct {
	envelope
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type materialResponse struct {
	envelope
	MediaID string `json:"media_id"`
	URL     string `json:"url"`
}

type draftArticle struct {
	Title              string `json:"title"`
	Author             string `json:"author"`
	Digest             string `json:"digest"`
	Content            string `json:"content"`
	ContentSourceURL   string `json:"content_source_url"`
	ThumbMediaID       string `json:"thumb_media_id"`
	NeedOpenComment    int    `json:"need_open_comment"`
	OnlyFansCanComment int    `json:"only_fans_can_comment"`
}

type draftRequest struct {
	Articles []draftArticle `json:"articles"`
}

// UploadCoverMedia stores a permanent thumb material for use as a draft cover.
func (c *WeChatClient) UploadCoverMedia(ctx context.Context, upload interfaces.MediaUpload) (interfaces.UploadedMedia, error) {
	var out materialResponse
	err := c.upload(ctx, OperationUploadCover, "/cgi-bin/material/add_material", map[string]string{"type": "thumb"}, upload, &out)
	if err != nil {
		return interfaces.UploadedMedia{}, err
	}
	if out.MediaID == "" {
		return interfaces.UploadedMedia{}, &ResponseError{Operation: OperationUploadCover, Field: "media_id"}
	}
	return interfaces.UploadedMedia{MediaID: out.MediaID, URL: out.URL}, nil
}

// UploadContentMedia stores an inline image and returns its hosted URL.
func (c *WeChatClient) UploadContentMedia(ctx context.Context, upload interfaces.MediaUpload) (interfaces.UploadedMedia, error) {
	var out materialResponse
	if err := c.upload(ctx, OperationUploadContent, "/cgi-bin/media/uploadimg", nil, upload, &out); err != nil {
		return interfaces.UploadedMedia{}, err
	}
	if out.URL == "" {
		return interfaces.UploadedMedia{}, &ResponseError{Operation: OperationUploadContent, Field: "url"}
	}
	return interfaces.UploadedMedia{MediaID: out.URL, URL: out.URL}, nil
}

// CreateDraft submits a single-article draft and returns the draft media id.
func (c *WeChatClient) CreateDraft(ctx context.Context, article interfaces.DraftArticle) (string, error) {
	payload := draftRequest{Articles: []draftArticle{{
		Title:              article.Title,
		Author:             article.Author,
		Digest:             article.Digest,
		Content:            article.Content,
		ContentSourceURL:   article.ContentSourceURL,
		ThumbMediaID:       article.ThumbMediaID,
		NeedOpenComment:    flag(article.NeedOpenComment),
		OnlyFansCanComment: flag(article.OnlyFansCanComment),
	}}}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return "", fmt.Errorf("platform: encode draft: %w", err)
	}

	var out materialResponse
	err := c.execute(ctx, OperationCreateDraft, &out, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetHeader("Content-Type", "application/json; charset=utf-8").
			SetBody(buf.Bytes()).
			Post("/cgi-bin/draft/add")
	})
	if err != nil {
		return "", err
	}
	if out.MediaID == "" {
		return "", &ResponseError{Operation: OperationCreateDraft, Field: "media_id"}
	}
	c.logger.WithContext(ctx).Info("platform.draft.created", "media_id", out.MediaID)
	return out.MediaID, nil
}

func (c *WeChatClient) upload(ctx context.Context, operation, path string, query map[string]string, upload interfaces.MediaUpload, out any) error {
	if len(upload.Data) == 0 {
		return ErrEmptyUpload
	}
	filename := upload.Filename
	if filename == "" {
		filename = "media"
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	err := c.execute(ctx, operation, out, func(req *resty.Request) (*resty.Response, error) {
		if len(query) > 0 {
			req.SetQueryParams(query)
		}
		return req.
			SetMultipartField("media", filename, contentType, bytes.NewReader(upload.Data)).
			Post(path)
	})
	if err == nil {
		c.logger.WithContext(ctx).Debug("platform.media.uploaded",
			"operation", operation,
			"filename", filename,
			"bytes", len(upload.Data),
		)
	}
	return err
}

// execute runs an authenticated request, decoding into out and dropping the
// cached token when the platform rejects it.
func (c *WeChatClient) execute(ctx context.Context, operation string, out any, send func(*resty.Request) (*resty.Response, error)) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	resp, err := send(c.http.R().SetContext(ctx).SetQueryParam("access_token", token))
	if err != nil {
		return fmt.Errorf("platform: %s: %w", operation, err)
	}
	if err := decode(operation, resp, out); err != nil {
		if c.classifier.IsTokenError(err) {
			c.invalidateToken(token)
			c.logger.WithContext(ctx).Warn("platform.token.rejected", "operation", operation, "error", err)
		}
		return err
	}
	return nil
}

func (c *WeChatClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenRefreshMargin).Before(c.expiresAt) {
		return c.token, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type": "client_credential",
			"appid":      c.appID,
			"secret":     c.appSecret,
		}).
		Get("/cgi-bin/token")
	if err != nil {
		return "", fmt.Errorf("platform: %s: %w", OperationFetchToken, err)
	}

	var out tokenResponse
	if err := decode(OperationFetchToken, resp, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &ResponseError{Operation: OperationFetchToken, Field: "access_token"}
	}

	c.token = out.AccessToken
	c.expiresAt = c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	c.logger.WithContext(ctx).Info("platform.token.refreshed", "expires_in", out.ExpiresIn)
	return c.token, nil
}

func (c *WeChatClient) invalidateToken(token string) {
	c.mu.Lock()
	if c.token == token {
		c.token = ""
		c.expiresAt = time.Time{}
	}
	c.mu.Unlock()
}

func decode(operation string, resp *resty.Response, out any) error {
	body := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return &HTTPError{Operation: operation, Status: resp.StatusCode(), Body: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("platform: %s: decode response: %w", operation, err)
	}
	if env.ErrCode != 0 {
		return &Error{Operation: operation, Code: env.ErrCode, Message: env.ErrMsg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("platform: %s: decode response: %w", operation, err)
	}
	return nil
}

func flag(v bool) int {
	if v {
		return 1
	}
	return 0
}
