// Package gcs stores price photos in a Cloud Storage bucket through the JSON
// API, authenticating with a service account or the metadata server.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/radarprecios/radarprecios-backend/pkg/config"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
)

const (
	storageAPI     = "https://storage.googleapis.com"
	requestTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	maxAttempts  = 3
	retryBackoff = 200 * time.Millisecond
)

var errUninitialized = errors.New("gcs client not initialized")

type Client struct {
	http       *http.Client
	tokens     *tokenSource
	bucket     string
	apiBase    string
	publicBase string
	backoff    time.Duration
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	hc := &http.Client{Timeout: requestTimeout}
	tokens, err := newTokenSource(hc, gcp)
	if err != nil {
		return nil, err
	}

	public := strings.TrimRight(cfg.PublicBaseURL, "/")
	if public == "" {
		public = storageAPI
	}
	c := &Client{
		http:       hc,
		tokens:     tokens,
		bucket:     cfg.BucketName,
		apiBase:    storageAPI,
		publicBase: public,
		backoff:    retryBackoff,
	}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", c.bucket), "gcs.ready")
	}
	return c, nil
}

func (c *Client) Close() error { return nil }

// Ping lists at most one object, which needs the same grant as an upload.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokens == nil || c.bucket == "" {
		return errUninitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.call(ctx, "list", http.MethodGet, c.bucketURL("/o")+"?maxResults=1", "", nil, http.StatusOK)
}

// Save uploads body under name and returns the object's public URL.
func (c *Client) Save(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	if c == nil || c.tokens == nil {
		return "", errUninitialized
	}
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return "", errors.New("object name is required")
	}
	// buffered so a retried upload can resend the same bytes
	payload, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	target := c.apiBase + "/upload/storage/v1/b/" + url.PathEscape(c.bucket) +
		"/o?uploadType=media&name=" + url.QueryEscape(name)
	if err := c.call(ctx, "upload", http.MethodPost, target, contentType, payload, http.StatusOK); err != nil {
		return "", err
	}
	return c.publicBase + "/" + c.bucket + "/" + name, nil
}

// Delete removes the object behind a URL returned by Save. A missing object
// counts as deleted.
func (c *Client) Delete(ctx context.Context, ref string) error {
	if c == nil || c.tokens == nil {
		return errUninitialized
	}
	name, ok := strings.CutPrefix(ref, c.publicBase+"/"+c.bucket+"/")
	if !ok || name == "" {
		return fmt.Errorf("reference %q does not belong to bucket %s", ref, c.bucket)
	}
	return c.call(ctx, "delete", http.MethodDelete, c.bucketURL("/o/"+url.PathEscape(name)), "", nil,
		http.StatusNoContent, http.StatusOK, http.StatusNotFound)
}

func (c *Client) bucketURL(suffix string) string {
	return c.apiBase + "/storage/v1/b/" + url.PathEscape(c.bucket) + suffix
}

// call sends one authorized request, retrying throttling and server errors.
func (c *Client) call(ctx context.Context, op, method, target, contentType string, payload []byte, accept ...int) error {
	policy := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(c.backoff))
	return retry.Do(ctx, policy, func(ctx context.Context) error {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("gcs %s: %w", op, err))
		}
		defer func() { _ = resp.Body.Close() }()

		if slices.Contains(accept, resp.StatusCode) {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		failure := statusError(op, resp)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(failure)
		}
		return failure
	})
}

func statusError(op string, resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(detail)); msg != "" {
		return fmt.Errorf("gcs %s failed: %s: %s", op, resp.Status, msg)
	}
	return fmt.Errorf("gcs %s failed: %s", op, resp.Status)
}
