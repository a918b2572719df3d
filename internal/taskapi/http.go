package taskapi

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

	"github.com/google/uuid"

	appLog "github.com/sandeepkv93/taskcal/internal/log"
	"github.com/sandeepkv93/taskcal/internal/model"
)

const maxErrorBody = 64 << 10

// Routes are paths relative to the base URL; "{id}" is replaced with the
// escaped task id.
type Routes struct {
	List      string `yaml:"list"`
	Create    string `yaml:"create"`
	Edit      string `yaml:"edit"`
	Move      string `yaml:"move"`
	Resize    string `yaml:"resize"`
	Duplicate string `yaml:"duplicate"`
	Delete    string `yaml:"delete"`
}

func DefaultRoutes() Routes {
	return Routes{
		List:      "/tasks",
		Create:    "/tasks",
		Edit:      "/tasks/{id}/edit",
		Move:      "/tasks/{id}/move",
		Resize:    "/tasks/{id}/resize",
		Duplicate: "/tasks/{id}/duplicate",
		Delete:    "/tasks/{id}/delete",
	}
}

// withDefaults fills empty routes from DefaultRoutes.
func (r Routes) withDefaults() Routes {
	def := DefaultRoutes()
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return v
	}
	return Routes{
		List:      pick(r.List, def.List),
		Create:    pick(r.Create, def.Create),
		Edit:      pick(r.Edit, def.Edit),
		Move:      pick(r.Move, def.Move),
		Resize:    pick(r.Resize, def.Resize),
		Duplicate: pick(r.Duplicate, def.Duplicate),
		Delete:    pick(r.Delete, def.Delete),
	}
}

type Options struct {
	BaseURL string
	Routes  Routes
	// CSRFHeader and CSRFToken form the anti-forgery header sent on every
	// mutating call. A nil token func sends no header.
	CSRFHeader string
	CSRFToken  func() string
	Timeout    time.Duration
	// Location interprets timestamps that carry no zone.
	Location   *time.Location
	HTTPClient *http.Client
}

type HTTPClient struct {
	base       *url.URL
	routes     Routes
	csrfHeader string
	csrfToken  func() string
	loc        *time.Location
	client     *http.Client
}

func NewHTTPClient(opts Options) (*HTTPClient, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("taskapi: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("taskapi: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("taskapi: unsupported scheme %q", base.Scheme)
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	header := strings.TrimSpace(opts.CSRFHeader)
	if header == "" {
		header = "X-CSRFToken"
	}
	return &HTTPClient{
		base:       base,
		routes:     opts.Routes.withDefaults(),
		csrfHeader: header,
		csrfToken:  opts.CSRFToken,
		loc:        loc,
		client:     client,
	}, nil
}

type taskBody struct {
	Content     string  `json:"content"`
	Description string  `json:"description"`
	Start       string  `json:"start"`
	End         *string `json:"end"`
	Complete    int     `json:"complete"`
}

type boundsBody struct {
	Start string  `json:"start"`
	End   *string `json:"end"`
}

func draftBody(d model.Draft) taskBody {
	body := taskBody{
		Content:     d.Content,
		Description: d.Description,
		Start:       model.FormatTime(d.Start),
		Complete:    int(d.Complete),
	}
	if d.End != nil {
		end := model.FormatTime(*d.End)
		body.End = &end
	}
	return body
}

func (c *HTTPClient) List(ctx context.Context) ([]Record, error) {
	raw, err := c.do(ctx, OpList, http.MethodGet, c.routes.List, "", nil)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &TransportError{Op: OpList, Err: fmt.Errorf("malformed response: %w", err)}
	}
	out := make([]Record, 0, len(items))
	for i, item := range items {
		rec, err := decodeRecord(item, c.loc)
		if err != nil {
			return nil, &TransportError{Op: OpList, Err: fmt.Errorf("malformed record %d: %w", i, err)}
		}
		if rec.ID == "" {
			return nil, &TransportError{Op: OpList, Err: fmt.Errorf("malformed record %d: missing id", i)}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *HTTPClient) Create(ctx context.Context, draft model.Draft) (Record, error) {
	return c.recordCall(ctx, OpCreate, c.routes.Create, "", draftBody(draft))
}

func (c *HTTPClient) Edit(ctx context.Context, id string, draft model.Draft) (Record, error) {
	return c.recordCall(ctx, OpEdit, c.routes.Edit, id, draftBody(draft))
}

func (c *HTTPClient) Move(ctx context.Context, id string, start time.Time, end *time.Time) error {
	_, err := c.do(ctx, OpMove, http.MethodPost, c.routes.Move, id, boundsPayload(start, end))
	return err
}

func (c *HTTPClient) Resize(ctx context.Context, id string, start time.Time, end *time.Time) error {
	_, err := c.do(ctx, OpResize, http.MethodPost, c.routes.Resize, id, boundsPayload(start, end))
	return err
}

func (c *HTTPClient) Duplicate(ctx context.Context, id string) (Record, error) {
	return c.recordCall(ctx, OpDuplicate, c.routes.Duplicate, id, nil)
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, OpDelete, http.MethodPost, c.routes.Delete, id, nil)
	return err
}

func boundsPayload(start time.Time, end *time.Time) boundsBody {
	body := boundsBody{Start: model.FormatTime(start)}
	if end != nil {
		e := model.FormatTime(*end)
		body.End = &e
	}
	return body
}

// recordCall posts body and decodes a task-shaped answer. An empty object
// is a valid answer; a missing id is left for the caller to judge.
func (c *HTTPClient) recordCall(ctx context.Context, op, route, id string, body any) (Record, error) {
	raw, err := c.do(ctx, op, http.MethodPost, route, id, body)
	if err != nil {
		return Record{}, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Record{}, nil
	}
	rec, err := decodeRecord(raw, c.loc)
	if err != nil {
		return Record{}, &TransportError{Op: op, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return rec, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, route, id string, body any) ([]byte, error) {
	target := c.resolve(route, id)
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(payload)
	} else if method == http.MethodPost {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && c.csrfToken != nil {
		if token := c.csrfToken(); token != "" {
			req.Header.Set(c.csrfHeader, token)
		}
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		appLog.Error("remote call failed", err, "op", op, "id", id, "request_id", requestID)
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorDetail(resp)
		appLog.Info("remote call rejected", "op", op, "id", id, "status", resp.StatusCode, "detail", detail, "request_id", requestID)
		return nil, &RemoteError{Op: op, Status: resp.StatusCode, Detail: detail}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	appLog.Debug("remote call ok", "op", op, "id", id, "status", resp.StatusCode, "elapsed", time.Since(started), "request_id", requestID)
	return raw, nil
}

func (c *HTTPClient) resolve(route, id string) string {
	path := strings.ReplaceAll(route, "{id}", url.PathEscape(id))
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base.String() + path
}

func errorDetail(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 200 {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// decodeRecord reads a task object, tracking which fields were present.
func decodeRecord(raw []byte, loc *time.Location) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Record{}, err
	}
	var out Record
	if v, ok := fields["id"]; ok {
		id, err := decodeID(v)
		if err != nil {
			return Record{}, fmt.Errorf("id: %w", err)
		}
		out.ID = id
	}
	var err error
	if out.Title, err = optionalString(fields, "title"); err != nil {
		return Record{}, err
	}
	if out.Content, err = optionalString(fields, "content"); err != nil {
		return Record{}, err
	}
	if out.Description, err = optionalString(fields, "description"); err != nil {
		return Record{}, err
	}
	if out.Description == nil {
		if props, ok := fields["extendedProps"]; ok && !isNull(props) {
			var ext struct {
				Description *string `json:"description"`
			}
			if err := json.Unmarshal(props, &ext); err != nil {
				return Record{}, fmt.Errorf("extendedProps: %w", err)
			}
			out.Description = ext.Description
		}
	}
	if v, ok := fields["start"]; ok && !isNull(v) {
		start, err := decodeTime(v, loc)
		if err != nil {
			return Record{}, fmt.Errorf("start: %w", err)
		}
		out.Start = &start
	}
	if v, ok := fields["end"]; ok {
		out.EndSet = true
		if !isNull(v) {
			end, err := decodeTime(v, loc)
			if err != nil {
				return Record{}, fmt.Errorf("end: %w", err)
			}
			out.End = &end
		}
	}
	if v, ok := fields["complete"]; ok && !isNull(v) {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return Record{}, fmt.Errorf("complete: %w", err)
		}
		c := model.Completion(n)
		if !c.IsValid() {
			return Record{}, fmt.Errorf("%w: %d", model.ErrInvalidCompletion, n)
		}
		out.Complete = &c
	}
	return out, nil
}

func decodeID(v json.RawMessage) (string, error) {
	if isNull(v) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return "", fmt.Errorf("non-integer id %s", n.String())
	}
	return n.String(), nil
}

func optionalString(fields map[string]json.RawMessage, key string) (*string, error) {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &s, nil
}

func decodeTime(v json.RawMessage, loc *time.Location) (time.Time, error) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return time.Time{}, err
	}
	return model.ParseTime(s, loc)
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}
