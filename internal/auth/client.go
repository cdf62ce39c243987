package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client is a GoTrue-compatible auth client. It owns the persisted session
// and tells listeners about every change to it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	store      Persister
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(Event)
}

func NewClient(platformURL, anonKey string, store Persister, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(platformURL, "/") + "/auth/v1",
		anonKey:    anonKey,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

type userPayload struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u userPayload) identity() Identity {
	id := Identity{ID: u.ID, Email: u.Email}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		id.DisplayName = name
	}
	return id
}

type tokenPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         *userPayload `json:"user"`
}

func (t tokenPayload) session(now time.Time) *Session {
	s := &Session{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	if t.User != nil {
		s.Identity = t.User.identity()
	}
	return s
}

// signUpPayload covers both reply shapes: a session when email
// confirmation is off, a bare user when it is on.
type signUpPayload struct {
	tokenPayload
	userPayload
}

// SignUp registers email/password. The identity is returned even when the
// platform withholds a session pending email confirmation; session is nil then.
func (c *Client) SignUp(ctx context.Context, email, password, fullName, redirectTo string) (*Identity, *Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}
	q := url.Values{}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}

	var out signUpPayload
	if err := c.post(ctx, "/signup", q, "", body, &out); err != nil {
		return nil, nil, err
	}

	if out.AccessToken != "" && out.User != nil {
		s := out.tokenPayload.session(c.now())
		if err := c.persist(EventSignedIn, s); err != nil {
			return nil, nil, err
		}
		id := s.Identity
		return &id, s, nil
	}
	if out.userPayload.ID == "" {
		return nil, nil, errors.New("auth: sign-up reply carried no user")
	}
	id := out.userPayload.identity()
	return &id, nil, nil
}

// SignInWithPassword exchanges credentials for a session and persists it.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	q := url.Values{"grant_type": {"password"}}
	var out tokenPayload
	if err := c.post(ctx, "/token", q, "", map[string]string{"email": email, "password": password}, &out); err != nil {
		return nil, err
	}
	s := out.session(c.now())
	if err := c.persist(EventSignedIn, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SignOut revokes the session on the platform and forgets it locally. The
// local session is dropped even when the platform call fails.
func (c *Client) SignOut(ctx context.Context) error {
	s, err := c.store.Load()
	if err != nil {
		return err
	}
	var remoteErr error
	if s != nil && s.AccessToken != "" {
		remoteErr = c.post(ctx, "/logout", nil, s.AccessToken, nil, nil)
	}
	if err := c.store.Clear(); err != nil {
		return err
	}
	c.emit(Event{Kind: EventSignedOut})
	return remoteErr
}

// GetSession returns the persisted session, refreshing it first when the
// access token has expired. It returns nil when nobody is signed in or the
// refresh token was rejected.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	s, err := c.store.Load()
	if err != nil || s == nil {
		return nil, err
	}
	if !s.Expired(c.now()) {
		return s, nil
	}
	if s.RefreshToken == "" {
		return nil, c.forget()
	}

	refreshed, err := c.refresh(ctx, s.RefreshToken)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		c.logger.Info("refresh token rejected, dropping session", zap.Int("status", apiErr.Status))
		return nil, c.forget()
	}
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

func (c *Client) refresh(ctx context.Context, token string) (*Session, error) {
	q := url.Values{"grant_type": {"refresh_token"}}
	var out tokenPayload
	if err := c.post(ctx, "/token", q, "", map[string]string{"refresh_token": token}, &out); err != nil {
		return nil, err
	}
	s := out.session(c.now())
	if err := c.persist(EventTokenRefreshed, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) forget() error {
	if err := c.store.Clear(); err != nil {
		return err
	}
	c.emit(Event{Kind: EventSignedOut})
	return nil
}

func (c *Client) persist(kind EventKind, s *Session) error {
	if err := c.store.Save(s); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	c.emit(Event{Kind: kind, Session: s})
	return nil
}

// OnAuthStateChange registers fn for every later auth-state change. Listeners
// run synchronously in registration order. The returned func unregisters fn.
func (c *Client) OnAuthStateChange(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Client) emit(ev Event) {
	c.mu.Lock()
	ls := make([]listener, len(c.listeners))
	copy(ls, c.listeners)
	c.mu.Unlock()

	for _, l := range ls {
		l.fn(ev)
	}
}

func (c *Client) post(ctx context.Context, path string, q url.Values, bearer string, in, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeAPIError reads whichever of the platform's error shapes came back.
func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	e := &APIError{Status: resp.StatusCode, Code: body.ErrorCode}
	if e.Code == "" {
		e.Code = body.Error
	}
	for _, m := range []string{body.ErrorDescription, body.Msg, body.Message, body.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
