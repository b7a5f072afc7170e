// Package apiclient is the HTTP client the wizard runs against the
// prank-studio service.  It implements every collaborator interface the
// wizard package defines (identity provider, balance querier, photo
// storage, record store, generation invoker) on top of the /v1 API, and
// classifies transport failures as network errors and 401s as auth
// errors so the pipeline can surface them distinctly.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prankroom/prank-studio/internal/wizard"
)

// expirySkew treats an access token as expired slightly early so a
// request never leaves with a token about to lapse in flight.
const expirySkew = 30 * time.Second

type Client struct {
	baseURL string
	hc      *http.Client
	log     *slog.Logger

	mu            sync.Mutex
	session       *wizard.Session
	accessExpires time.Time
	refreshToken  string
	subs          map[int]func(wizard.SessionChange)
	nextSub       int
}

// Interface conformance for the wizard collaborators.
var (
	_ wizard.Identity          = (*Client)(nil)
	_ wizard.BalanceQuerier    = (*Client)(nil)
	_ wizard.PhotoStorage      = (*Client)(nil)
	_ wizard.RecordStore       = (*Client)(nil)
	_ wizard.GenerationInvoker = (*Client)(nil)
)

func New(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		log:     log,
		subs:    map[int]func(wizard.SessionChange){},
	}
}

// ----- auth API payloads, mirroring the server DTOs -----

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// SignUp registers a new account and adopts the returned session.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	var resp authResp
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/register",
		map[string]string{"email": email, "password": password}, &resp, false); err != nil {
		return err
	}
	c.adopt(resp)
	return nil
}

// SignIn authenticates an existing account and adopts the session.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	var resp authResp
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login",
		map[string]string{"email": email, "password": password}, &resp, false); err != nil {
		return err
	}
	c.adopt(resp)
	return nil
}

// SignOut revokes the session server-side and clears local state.  A
// transport failure leaves the session in place and is reported so the
// caller can retry.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		return nil
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/logout",
		map[string]string{"refresh_token": refresh}, nil, false); err != nil {
		// A rejected refresh token means the session is already dead
		// server-side; only transport failures keep the local state.
		if !wizard.IsKind(err, wizard.KindAuth) {
			return err
		}
	}
	c.clearSession()
	return nil
}

// CurrentSession returns the active session, refreshing the access
// token transparently when it is expired.  (nil, nil) means signed out.
func (c *Client) CurrentSession(ctx context.Context) (*wizard.Session, error) {
	c.mu.Lock()
	sess := c.session
	expires := c.accessExpires
	refresh := c.refreshToken
	c.mu.Unlock()

	if sess == nil {
		return nil, nil
	}
	if time.Until(expires) > expirySkew {
		s := *sess
		return &s, nil
	}
	if refresh == "" {
		c.clearSession()
		return nil, nil
	}

	var resp authResp
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh",
		map[string]string{"refresh_token": refresh}, &resp, false)
	if err != nil {
		if wizard.IsKind(err, wizard.KindAuth) {
			// Refresh token revoked or expired: the session is over.
			c.clearSession()
			return nil, nil
		}
		return nil, err
	}
	c.mu.Lock()
	c.session = &wizard.Session{UserID: resp.User.ID, Email: resp.User.Email, AccessToken: resp.Access.Token}
	c.accessExpires = resp.Access.Expires
	c.refreshToken = resp.Refresh.Token
	s := *c.session
	c.mu.Unlock()
	return &s, nil
}

// SubscribeSessionChanges registers fn for sign-in/sign-out events and
// returns its unsubscribe function.
func (c *Client) SubscribeSessionChanges(fn func(wizard.SessionChange)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// TokenBalance queries the authoritative balance for the signed-in user.
func (c *Client) TokenBalance(ctx context.Context) (int, error) {
	var resp struct {
		Balance int `json:"balance"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tokens/balance", nil, &resp, true); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// Purchase buys a token package and returns the new balance.
func (c *Client) Purchase(ctx context.Context, packageID string) (int, error) {
	var resp struct {
		Balance int `json:"balance"`
		Granted int `json:"granted"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tokens/purchase",
		map[string]string{"package_id": packageID}, &resp, true); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// UploadRoomPhoto streams the raw photo to the service, which stores it
// under a user-scoped unique key and returns the storage path.
func (c *Client) UploadRoomPhoto(ctx context.Context, photo wizard.Photo) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/room-photos/upload", bytes.NewReader(photo.Data))
	if err != nil {
		return "", err
	}
	ct := photo.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	req.Header.Set("Content-Type", ct)
	if err := c.authorize(req); err != nil {
		return "", err
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return "", c.netError("photo upload", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return "", c.statusError("photo upload", res)
	}

	var resp struct {
		StoragePath string `json:"storage_path"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return resp.StoragePath, nil
}

// InsertRoomPhoto creates the durable room-photo record for an uploaded
// path and returns its id.
func (c *Client) InsertRoomPhoto(ctx context.Context, storagePath string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/room-photos",
		map[string]string{"src_storage_path": storagePath}, &resp, true); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// StartGeneration runs the server's atomic insert-and-debit operation
// and returns the generation id.
func (c *Client) StartGeneration(ctx context.Context, params wizard.StartGenerationParams) (string, error) {
	body := map[string]any{
		"room_photo_id":  params.RoomPhotoID,
		"character_slug": params.CharacterSlug,
		"action_slug":    params.ActionSlug,
		"custom_prompt":  params.CustomPrompt,
		"realism_filter": params.RealismFilter,
	}
	var resp struct {
		GenerationID string `json:"generation_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/generations", body, &resp, true); err != nil {
		return "", err
	}
	return resp.GenerationID, nil
}

// InvokeGeneration triggers the model call for an existing request.
// The access token is passed explicitly: the pipeline hands over the
// credential it checked in its auth stage.
func (c *Client) InvokeGeneration(ctx context.Context, generationID, accessToken string) (*wizard.InvokeResult, error) {
	payload, err := json.Marshal(map[string]string{"generation_id": generationID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/generate-image", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, c.netError("generation invoke", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, c.statusError("generation invoke", res)
	}

	var resp struct {
		OK           bool    `json:"ok"`
		GenerationID string  `json:"generation_id"`
		PreviewURL   *string `json:"preview_url"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode invoke response: %w", err)
	}
	return &wizard.InvokeResult{GenerationID: resp.GenerationID, PreviewURL: resp.PreviewURL}, nil
}

// Characters lists the selectable character slugs.
func (c *Client) Characters(ctx context.Context) ([]string, error) {
	var resp struct {
		Characters []string `json:"characters"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/catalog/characters", nil, &resp, false); err != nil {
		return nil, err
	}
	return resp.Characters, nil
}

// Actions lists the selectable action slugs.
func (c *Client) Actions(ctx context.Context) ([]string, error) {
	var resp struct {
		Actions []string `json:"actions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/catalog/actions", nil, &resp, false); err != nil {
		return nil, err
	}
	return resp.Actions, nil
}

// ----- internals -----

// adopt installs a fresh token pair and notifies subscribers.
func (c *Client) adopt(resp authResp) {
	sess := &wizard.Session{UserID: resp.User.ID, Email: resp.User.Email, AccessToken: resp.Access.Token}
	c.mu.Lock()
	c.session = sess
	c.accessExpires = resp.Access.Expires
	c.refreshToken = resp.Refresh.Token
	c.mu.Unlock()
	s := *sess
	c.notify(wizard.SessionChange{Event: wizard.EventSignedIn, Session: &s})
}

func (c *Client) clearSession() {
	c.mu.Lock()
	wasSignedIn := c.session != nil
	c.session = nil
	c.accessExpires = time.Time{}
	c.refreshToken = ""
	c.mu.Unlock()
	if wasSignedIn {
		c.notify(wizard.SessionChange{Event: wizard.EventSignedOut})
	}
}

func (c *Client) notify(ch wizard.SessionChange) {
	c.mu.Lock()
	fns := make([]func(wizard.SessionChange), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ch)
	}
}

// authorize attaches the current access token; a missing session is an
// auth error, not a transport one.
func (c *Client) authorize(req *http.Request) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return &wizard.PipelineError{Kind: wizard.KindAuth, Message: "not signed in"}
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	return nil
}

func (c *Client) netError(op string, err error) error {
	return &wizard.PipelineError{Kind: wizard.KindNetwork, Message: op + " failed", Err: err}
}

// statusError turns a non-2xx response into an error, consuming the
// body for the server's message.  401 becomes an auth error.
func (c *Client) statusError(op string, res *http.Response) error {
	msg := op + " failed"
	var body struct {
		Error string `json:"error"`
	}
	if raw, err := io.ReadAll(io.LimitReader(res.Body, 4096)); err == nil {
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			msg = body.Error
		}
	}
	if res.StatusCode == http.StatusUnauthorized {
		return &wizard.PipelineError{Kind: wizard.KindAuth, Message: msg}
	}
	return fmt.Errorf("%s (status %d)", msg, res.StatusCode)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, authed bool) error {
	var rd io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if err := c.authorize(req); err != nil {
			return err
		}
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return c.netError(method+" "+path, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return c.statusError(method+" "+path, res)
	}
	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
