package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds Odoo connection settings.
type Config struct {
	// URL is the instance base URL, e.g. https://erp.example.com.
	URL string
	// Database is the Odoo database name.
	Database string
	// Username is the login of the integration user.
	Username string
	// APIKey is the user's API key (or password on older instances).
	APIKey string
	// Timeout bounds a single RPC round trip. Defaults to 10s.
	Timeout time.Duration
}

// JSONRPCClient talks to Odoo's /jsonrpc endpoint using execute_kw.
// Authentication is lazy: the uid is resolved on first use and reused until
// the server rejects it.
type JSONRPCClient struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	authMu sync.Mutex
	uid    atomic.Int64

	seq atomic.Int64
}

var _ Client = (*JSONRPCClient)(nil)

// NewJSONRPCClient creates a client. It performs no I/O.
func NewJSONRPCClient(cfg Config, logger *slog.Logger) *JSONRPCClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &JSONRPCClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcFault       `json:"error"`
}

type rpcFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	} `json:"data"`
}

func (c *JSONRPCClient) call(ctx context.Context, service, method string, args []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.seq.Add(1),
	})
	if err != nil {
		return fmt.Errorf("encoding rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling odoo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("odoo returned HTTP %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decoding rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		msg := rpcResp.Error.Data.Message
		if msg == "" {
			msg = rpcResp.Error.Message
		}
		return &RPCError{
			Method:  method,
			Code:    rpcResp.Error.Code,
			Message: msg,
			Data:    rpcResp.Error.Data.Name,
		}
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decoding rpc result: %w", err)
		}
	}
	return nil
}

// authenticate resolves and caches the uid. Odoo returns false (not an
// error) for bad credentials, which json-decodes to uid 0.
func (c *JSONRPCClient) authenticate(ctx context.Context) (int64, error) {
	if uid := c.uid.Load(); uid > 0 {
		return uid, nil
	}

	c.authMu.Lock()
	defer c.authMu.Unlock()
	if uid := c.uid.Load(); uid > 0 {
		return uid, nil
	}

	var raw json.RawMessage
	err := c.call(ctx, "common", "authenticate", []any{
		c.cfg.Database, c.cfg.Username, c.cfg.APIKey, map[string]any{},
	}, &raw)
	if err != nil {
		return 0, err
	}

	var uid int64
	if jerr := json.Unmarshal(raw, &uid); jerr != nil || uid <= 0 {
		return 0, ErrAuth
	}

	c.uid.Store(uid)
	c.logger.Debug("authenticated against odoo", slog.Int64("uid", uid))
	return uid, nil
}

func (c *JSONRPCClient) executeKw(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	uid, err := c.authenticate(ctx)
	if err != nil {
		return err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	err = c.call(ctx, "object", "execute_kw", []any{
		c.cfg.Database, uid, c.cfg.APIKey, model, method, args, kwargs,
	}, out)
	if err != nil {
		var rpcErr *RPCError
		if asRPC(err, &rpcErr) {
			rpcErr.Model = model
			if IsAuthError(err) {
				// Session invalidated server-side; force re-auth next call.
				c.uid.Store(0)
			}
		}
		return err
	}
	return nil
}

func asRPC(err error, target **RPCError) bool {
	e, ok := err.(*RPCError)
	if ok {
		*target = e
	}
	return ok
}

// SearchRead implements Client.
func (c *JSONRPCClient) SearchRead(ctx context.Context, model string, domain Domain, opts SearchReadOptions) ([]Record, error) {
	kwargs := map[string]any{}
	if len(opts.Fields) > 0 {
		kwargs["fields"] = opts.Fields
	}
	if opts.Limit > 0 {
		kwargs["limit"] = opts.Limit
	}
	if opts.Offset > 0 {
		kwargs["offset"] = opts.Offset
	}
	if opts.Order != "" {
		kwargs["order"] = opts.Order
	}
	if domain == nil {
		domain = Domain{}
	}

	var records []Record
	if err := c.executeKw(ctx, model, "search_read", []any{domain}, kwargs, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SearchCount implements Client.
func (c *JSONRPCClient) SearchCount(ctx context.Context, model string, domain Domain) (int, error) {
	if domain == nil {
		domain = Domain{}
	}
	var count int
	if err := c.executeKw(ctx, model, "search_count", []any{domain}, nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// Create implements Client.
func (c *JSONRPCClient) Create(ctx context.Context, model string, values map[string]any) (int64, error) {
	var id int64
	if err := c.executeKw(ctx, model, "create", []any{values}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Ping implements Client. It authenticates, which exercises both network
// reachability and credentials.
func (c *JSONRPCClient) Ping(ctx context.Context) error {
	_, err := c.authenticate(ctx)
	return err
}
