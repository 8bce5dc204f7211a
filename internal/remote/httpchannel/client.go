// Package httpchannel implements remote.Channel against the FairSplit
// backend: websocket streams for snapshot subscriptions, plain HTTP JSON
// for batch upserts and arbitrated operations.
package httpchannel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/silkfinik/fairsplit/internal/auth"
	"github.com/silkfinik/fairsplit/internal/remote"
)

// Ensure Client implements remote.Channel
var _ remote.Channel = (*Client)(nil)

// Client talks to one backend instance. Safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
	session *auth.Session
	logger  *slog.Logger
}

// New creates a Client for the backend at baseURL (scheme + host, no
// trailing slash). The session provides the bearer token on every call.
func New(baseURL string, session *auth.Session, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		session: session,
		logger:  logger,
	}
}

// batchRequest is the wire form of a remote.Batch: expenses are grouped by
// their owning group ID because the group is part of the document path.
type batchRequest struct {
	Groups   []remote.GroupDoc              `json:"groups,omitempty"`
	Expenses map[string][]remote.ExpenseDoc `json:"expenses,omitempty"`
}

// PushBatch posts the batch to /v1/batch. The backend applies it
// atomically; any non-2xx response means nothing was written.
func (c *Client) PushBatch(ctx context.Context, batch remote.Batch) error {
	if batch.Empty() {
		return nil
	}

	req := batchRequest{Groups: batch.Groups}
	for _, doc := range batch.Expenses {
		if req.Expenses == nil {
			req.Expenses = make(map[string][]remote.ExpenseDoc)
		}
		req.Expenses[doc.GroupID] = append(req.Expenses[doc.GroupID], doc)
	}

	if err := c.post(ctx, "/v1/batch", req, nil); err != nil {
		return err
	}
	c.logger.Debug("batch pushed", "groups", len(batch.Groups), "expenses", len(batch.Expenses))
	return nil
}

// ClaimGhost invokes the claimGhost arbitrated operation.
func (c *Client) ClaimGhost(ctx context.Context, groupID, ghostID string) error {
	payload := map[string]string{"groupId": groupID, "ghostId": ghostID}
	return c.callOp(ctx, "claimGhost", payload, nil)
}

// JoinByInviteCode redeems an invite code and returns the joined group ID.
func (c *Client) JoinByInviteCode(ctx context.Context, code string) (string, error) {
	var result struct {
		GroupID string `json:"groupId"`
	}
	if err := c.callOp(ctx, "joinByInviteCode", map[string]string{"code": code}, &result); err != nil {
		return "", err
	}
	if result.GroupID == "" {
		return "", fmt.Errorf("joinByInviteCode: server returned no group id")
	}
	return result.GroupID, nil
}

// CreateInviteCode issues a fresh invite code for the group.
func (c *Client) CreateInviteCode(ctx context.Context, groupID string) (string, error) {
	var result struct {
		Code string `json:"code"`
	}
	if err := c.callOp(ctx, "createInviteCode", map[string]string{"groupId": groupID}, &result); err != nil {
		return "", err
	}
	if result.Code == "" {
		return "", fmt.Errorf("createInviteCode: server returned no code")
	}
	return result.Code, nil
}

// opEnvelope is the single result schema for arbitrated operations,
// validated here at the boundary rather than re-inferred per call site.
type opEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// callOp posts an arbitrated operation to /v1/ops/{name} and decodes its
// typed envelope into out (which may be nil for void operations).
func (c *Client) callOp(ctx context.Context, name string, payload, out any) error {
	var envelope opEnvelope
	if err := c.post(ctx, "/v1/ops/"+name, payload, &envelope); err != nil {
		return err
	}
	if !envelope.OK {
		code, message := "unknown", "operation failed"
		if envelope.Error != nil {
			code, message = envelope.Error.Code, envelope.Error.Message
		}
		return &remote.ArbitrationError{Op: name, Code: code, Message: message}
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("%s: failed to decode result: %w", name, err)
		}
	}
	return nil
}

// post sends a JSON request and decodes the JSON response into out (nil to
// discard). Network failures and 5xx responses are transient; 401 means the
// session is missing or stale.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return remote.Transient(path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return remote.ErrAuthMissing
	case resp.StatusCode >= 500:
		return remote.Transient(path, fmt.Errorf("server returned %s", resp.Status))
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", path, err)
	}
	return nil
}
