// Copyright 2024-2026 Aiku AI

package flowdock

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// restSession implements Session against the Flowdock REST API and the
// separate streaming host. Authentication is HTTP basic with the API
// token as username, on every request.
type restSession struct {
	apiURL    string
	streamURL string
	token     string

	client *http.Client
	// streamClient has no overall timeout: stream responses are
	// long-lived by design.
	streamClient *http.Client

	log zerolog.Logger
}

var _ Session = (*restSession)(nil)

func newRESTSession(cfg Config, log zerolog.Logger) *restSession {
	return &restSession{
		apiURL:       strings.TrimSuffix(cfg.APIURL, "/"),
		streamURL:    strings.TrimSuffix(cfg.StreamURL, "/"),
		token:        cfg.Token,
		client:       &http.Client{Timeout: 30 * time.Second},
		streamClient: &http.Client{},
		log:          log.With().Str("component", "rest").Logger(),
	}
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flowdock: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// do performs one JSON request. The response body is decoded into out
// when non-nil. Returns the response headers so callers can read
// backend metadata such as the authenticated user id.
func (s *restSession) do(ctx context.Context, method, path string, query url.Values, body, out any) (http.Header, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	reqURL := s.apiURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.token, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(errBody)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.Header, nil
}

func (s *restSession) Flows(ctx context.Context) (string, []Flow, error) {
	var flows []Flow
	header, err := s.do(ctx, http.MethodGet, "/flows", url.Values{"users": {"1"}}, nil, &flows)
	if err != nil {
		return "", nil, err
	}
	return header.Get("Flowdock-User"), flows, nil
}

// messagePayload is the request body for all message sends. The uuid is
// client-generated so the backend can deduplicate retried requests.
type messagePayload struct {
	Flow     string   `json:"flow,omitempty"`
	ThreadID string   `json:"thread_id,omitempty"`
	Event    string   `json:"event"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags,omitempty"`
	UUID     string   `json:"uuid"`
}

func (s *restSession) SendMessage(ctx context.Context, flowID, text string, tags []string) (*RawMessage, error) {
	var msg RawMessage
	payload := messagePayload{
		Flow:    flowID,
		Event:   "message",
		Content: text,
		Tags:    tags,
		UUID:    uuid.NewString(),
	}
	if _, err := s.do(ctx, http.MethodPost, "/messages", nil, payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *restSession) SendThreadMessage(ctx context.Context, flowID, threadID, text string, tags []string) (*RawMessage, error) {
	var msg RawMessage
	payload := messagePayload{
		Flow:     flowID,
		ThreadID: threadID,
		Event:    "message",
		Content:  text,
		Tags:     tags,
		UUID:     uuid.NewString(),
	}
	if _, err := s.do(ctx, http.MethodPost, "/messages", nil, payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *restSession) SendPrivateMessage(ctx context.Context, userID, text string, tags []string) (*RawMessage, error) {
	var msg RawMessage
	payload := messagePayload{
		Event:   "message",
		Content: text,
		Tags:    tags,
		UUID:    uuid.NewString(),
	}
	path := "/private/" + url.PathEscape(userID) + "/messages"
	if _, err := s.do(ctx, http.MethodPost, path, nil, payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func flowMessagePath(org, flow, messageID string) string {
	return "/flows/" + url.PathEscape(org) + "/" + url.PathEscape(flow) +
		"/messages/" + url.PathEscape(messageID)
}

func (s *restSession) EditMessage(ctx context.Context, org, flow, messageID string, edit MessageEdit) error {
	_, err := s.do(ctx, http.MethodPut, flowMessagePath(org, flow, messageID), nil, edit, nil)
	return err
}

func (s *restSession) EditPrivateMessage(ctx context.Context, userID, messageID string, edit MessageEdit) error {
	path := "/private/" + url.PathEscape(userID) + "/messages/" + url.PathEscape(messageID)
	_, err := s.do(ctx, http.MethodPut, path, nil, edit, nil)
	return err
}

func (s *restSession) GetMessage(ctx context.Context, org, flow, messageID string) (*RawMessage, error) {
	var msg RawMessage
	if _, err := s.do(ctx, http.MethodGet, flowMessagePath(org, flow, messageID), nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *restSession) Call(ctx context.Context, method, path string, body, out any) error {
	_, err := s.do(ctx, method, path, nil, body, out)
	return err
}

// maxStreamLine caps a single stream event's encoded size.
const maxStreamLine = 1 << 20

func (s *restSession) Stream(ctx context.Context, flowIDs []string, options map[string]string) (EventStream, error) {
	query := url.Values{}
	query.Set("filter", strings.Join(flowIDs, ","))
	for key, value := range options {
		query.Set(key, value)
	}

	// The stream outlives the reload that opened it; only Close ends it.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, s.streamURL+"/flows?"+query.Encode(), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.SetBasicAuth(s.token, "")
	req.Header.Set("Accept", "application/json")

	resp, err := s.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodGet,
			Path:       "/flows (stream)",
			Body:       strings.TrimSpace(string(errBody)),
		}
	}

	stream := &restStream{
		cancel: cancel,
		done:   streamCtx.Done(),
		body:   resp.Body,
		events: make(chan *RawMessage),
		errs:   make(chan error, 1),
		log:    s.log.With().Str("component", "stream").Logger(),
	}
	go stream.read()
	return stream, nil
}

// restStream reads newline-delimited JSON events from a long-lived HTTP
// response.
type restStream struct {
	cancel    context.CancelFunc
	done      <-chan struct{}
	body      io.ReadCloser
	events    chan *RawMessage
	errs      chan error
	closeOnce sync.Once
	log       zerolog.Logger
}

func (st *restStream) Events() <-chan *RawMessage {
	return st.events
}

func (st *restStream) Errors() <-chan error {
	return st.errs
}

func (st *restStream) Close() {
	st.closeOnce.Do(func() {
		st.cancel()
		st.body.Close()
	})
}

func (st *restStream) read() {
	defer close(st.events)

	scanner := bufio.NewScanner(st.body)
	scanner.Buffer(make([]byte, 64*1024), maxStreamLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			// keepalive newline
			continue
		}
		var evt RawMessage
		if err := json.Unmarshal(line, &evt); err != nil {
			st.log.Warn().Err(err).Msg("Dropping undecodable stream event")
			continue
		}
		select {
		case st.events <- &evt:
		case <-st.done:
			return
		}
	}

	select {
	case <-st.done:
		// closed deliberately, not an error
	default:
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		st.errs <- err
	}
}
