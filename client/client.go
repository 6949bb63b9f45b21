// Package client implements the synchronization engine:
// it reconciles local containers with a remote dataset server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/bobg/zdc"
	"github.com/bobg/zdc/zdcfile"
)

const defaultCacheSize = 64

// Client talks to a dataset server.
// Its calls are single-shot:
// they complete, fail, or block up to the configured timeout.
// Failed uploads are never retried automatically —
// a multi-step retry needs a fresh modification time,
// which is the caller's decision.
type Client struct {
	endpoint string
	key      string
	hc       *http.Client
	cache    *lru.Cache // uuid -> archive bytes, static datasets only
	logger   *log.Logger
	contOpts []zdc.Option
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. The default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLogger logs each request and its outcome, in the manner of an access log.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithContainerOptions sets the options applied to downloaded containers,
// such as zdc.WithRegistry.
func WithContainerOptions(opts ...zdc.Option) Option {
	return func(c *Client) { c.contOpts = opts }
}

// New produces a Client for the server at endpoint,
// authenticating with the given opaque credential.
func New(endpoint, key string, opts ...Option) (*Client, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, err
	}
	c := &Client{
		endpoint: endpoint,
		key:      key,
		hc:       &http.Client{Timeout: 30 * time.Second},
		cache:    cache,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Upload sends a container to the server, sealing it.
//
// A static container first looks for an identical remote dataset
// by container-type name and content hash;
// when one exists the local container silently adopts its full state
// and nothing is uploaded.
// Otherwise the container is created under its identifier,
// or — while the remote copy is not complete —
// replaces it, gated on a strictly increasing modification time
// (zdc.ErrStaleWrite on violation).
// Replacing a complete remote dataset fails with zdc.ErrImmutableRemote;
// superseding one requires the replaces link and creator ownership
// (zdc.ErrNotOwner on violation).
func (c *Client) Upload(ctx context.Context, cont *zdc.Container) error {
	content := cont.Content()

	if content.Static {
		hash, err := cont.VerifyHash()
		if err != nil {
			return err
		}
		remote, raw, err := c.findStatic(ctx, content.ContainerType.Name, hash)
		if err != nil && !errors.Is(err, zdc.ErrNotFound) {
			return err
		}
		if err == nil {
			c.logf("upload %s: adopting identical static dataset %s", content.UUID, remote.UUID())
			if err = cont.Adopt(remote); err != nil {
				return err
			}
			c.cache.Add(remote.UUID(), raw)
			return nil
		}
	}

	b, err := zdcfile.Encode(cont)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPut, "/api/datasets/"+content.UUID, bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = respErr(resp)
		c.logf("upload %s: %s", content.UUID, err)
		return err
	}
	c.logf("upload %s: ok", content.UUID)
	return nil
}

// Download fetches a dataset by identifier.
// The identifier is first resolved against the server:
// if it has been superseded,
// the newest entry of its replaces-chain is fetched instead.
// Archive bytes of static datasets are served from an in-memory cache;
// they are immutable by hash, so a cached archive is never stale —
// the replaces-chain, which is not, is always consulted remotely.
func (c *Client) Download(ctx context.Context, id string) (*zdc.Container, error) {
	rid, err := c.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if cached, ok := c.cache.Get(rid); ok {
		c.logf("download %s: cache hit", rid)
		return zdcfile.Decode(cached.([]byte), c.contOpts...)
	}

	resp, err := c.do(ctx, http.MethodGet, "/api/datasets/"+rid, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = respErr(resp)
		c.logf("download %s: %s", id, err)
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}
	cont, err := zdcfile.Decode(raw, c.contOpts...)
	if err != nil {
		return nil, err
	}
	if content := cont.Content(); content.Static {
		c.cache.Add(content.UUID, raw)
	}
	c.logf("download %s: ok", id)
	return cont, nil
}

// resolve maps an identifier to the newest entry of its replaces-chain.
func (c *Client) resolve(ctx context.Context, id string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/resolve/"+id, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", respErr(resp)
	}
	var r struct {
		UUID string `json:"uuid"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", errors.Wrap(err, "decoding resolution")
	}
	return r.UUID, nil
}

// List produces the identifiers of all datasets on the server.
func (c *Client) List(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/datasets", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, respErr(resp)
	}
	var uuids []string
	err = json.NewDecoder(resp.Body).Decode(&uuids)
	return uuids, errors.Wrap(err, "decoding dataset list")
}

// findStatic queries the server for a static dataset
// with the given container-type name and content hash.
func (c *Client) findStatic(ctx context.Context, name, hash string) (*zdc.Container, []byte, error) {
	q := url.Values{"name": {name}, "hash": {hash}}
	resp, err := c.do(ctx, http.MethodGet, "/api/static?"+q.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, respErr(resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading response body")
	}
	cont, err := zdcfile.Decode(raw, c.contOpts...)
	return cont, raw, err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s %s request", method, path)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/zip")
	}
	resp, err := c.hc.Do(req)
	return resp, errors.Wrapf(err, "%s %s", method, path)
}

// respErr maps a server error response to the container error taxonomy.
func respErr(resp *http.Response) error {
	var e struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&e)

	switch e.Code {
	case "not_found":
		return errors.Wrap(zdc.ErrNotFound, e.Error)
	case "stale":
		return errors.Wrap(zdc.ErrStaleWrite, e.Error)
	case "immutable":
		return errors.Wrap(zdc.ErrImmutableRemote, e.Error)
	case "not_owner":
		return errors.Wrap(zdc.ErrNotOwner, e.Error)
	}
	return errors.Errorf("server error (%d): %s", resp.StatusCode, e.Error)
}
