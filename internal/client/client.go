// Package client is a typed HTTP client for the studynotes API. The CLI
// subcommands are built on it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/starford/studynotes/internal/api"
	"github.com/starford/studynotes/internal/models"
	"github.com/starford/studynotes/internal/notequery"
)

// StatusError is returned for any response with a 4xx or 5xx status.
type StatusError struct {
	Status  int
	Message string
	Details string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}

// Client talks to one studynotes server. It is safe for concurrent use once
// the token is set.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New creates a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) { c.token = token }

// BaseURL returns the server the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	se := &StatusError{Status: resp.StatusCode}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		se.Message, se.Details = body.Error, body.Details
	} else {
		se.Message = strings.TrimSpace(string(raw))
		if se.Message == "" {
			se.Message = http.StatusText(resp.StatusCode)
		}
	}
	return se
}

// SignIn exchanges credentials for a session and starts using its token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*api.SignInResponse, error) {
	var out api.SignInResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/signin", api.SignInRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if out.Session == nil {
		return nil, errors.New("client: signin response has no session")
	}
	c.token = out.Session.AccessToken
	return &out, nil
}

// SignUp registers a new account.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*models.User, error) {
	var out api.SignUpResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/signup", api.SignUpRequest{Email: email, Password: password, Name: name}, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// SignOut revokes the current token.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodPost, "/auth/signout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Me resolves the identity behind the current token.
func (c *Client) Me(ctx context.Context) (*models.Identity, error) {
	var out api.MeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Search runs a filtered search over the caller's notes.
func (c *Client) Search(ctx context.Context, p notequery.Params) ([]models.Note, error) {
	path := "/notes/search"
	if q := searchQuery(p).Encode(); q != "" {
		path += "?" + q
	}
	var out api.SearchResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func searchQuery(p notequery.Params) url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("title", p.Title)
	set("tag", p.Tag)
	set("dateRange[from]", p.From)
	set("dateRange[to]", p.To)
	set("sortField", p.SortField)
	set("sortOrder", p.SortOrder)
	for _, ft := range p.FileTypes {
		v.Add("fileTypes[]", ft)
	}
	return v
}

// Suggestions returns up to limit titles matching partial.
func (c *Client) Suggestions(ctx context.Context, partial string, limit int) ([]string, error) {
	v := url.Values{"query": {partial}}
	if limit > 0 {
		v.Set("limit", fmt.Sprint(limit))
	}
	var out api.SuggestionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/notes/suggestions?"+v.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

// Upload describes a file to upload.
type Upload struct {
	Title       string
	Description string
	Tags        []string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Upload sends a note as multipart/form-data.
func (c *Client) Upload(ctx context.Context, u Upload) (*models.Note, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", u.Title)
	if u.Description != "" {
		_ = mw.WriteField("description", u.Description)
	}
	if len(u.Tags) > 0 {
		_ = mw.WriteField("tags", strings.Join(u.Tags, ","))
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(u.FileName)))
	ct := u.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("client: create file part: %w", err)
	}
	if _, err := io.Copy(part, u.Body); err != nil {
		return nil, fmt.Errorf("client: read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("client: close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/notes/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out api.UploadResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Delete removes one of the caller's notes.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil)
}
