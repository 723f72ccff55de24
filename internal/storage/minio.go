package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/singleflight"
)

// uploadURLTTL bounds the lifetime of the presigned credential minted for
// each upload attempt.
const uploadURLTTL = 15 * time.Minute

// sessionInitTimeout bounds the shared session setup. It runs detached from
// the caller that triggered it so one cancelled request cannot fail the
// others waiting on the same initialisation.
const sessionInitTimeout = 30 * time.Second

// retryableStatus lists the transient server-side statuses worth retrying.
var retryableStatus = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// objectClient is the subset of *minio.Client the store relies on.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Options configures a MinioStore.
type Options struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PublicBase string

	// MaxAttempts caps upload attempts; the delay before attempt n+1 is n*BaseDelay.
	MaxAttempts int
	BaseDelay   time.Duration
}

// MinioStore implements Store on top of minio-go.
//
// The client session is created lazily on first use and re-created after an
// authentication failure. Concurrent callers that find no session share a
// single initialisation.
type MinioStore struct {
	bucket      string
	publicBase  string
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger

	httpClient *http.Client
	newClient  func() (objectClient, error)
	sleep      func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	client objectClient
	group  singleflight.Group
}

// NewMinioStore returns a store that connects on first use. Call Connect to
// fail fast at startup.
func NewMinioStore(opts Options, logger *slog.Logger) *MinioStore {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}

	s := &MinioStore{
		bucket:      opts.Bucket,
		publicBase:  strings.TrimRight(opts.PublicBase, "/"),
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		logger:      logger.With("component", "storage"),
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		sleep:       sleepContext,
	}
	s.newClient = func() (objectClient, error) {
		client, err := minio.New(opts.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
			Secure: opts.UseSSL,
			Region: opts.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		return client, nil
	}
	return s
}

// Connect establishes the session eagerly.
func (s *MinioStore) Connect(ctx context.Context) error {
	_, err := s.session(ctx)
	return err
}

// Upload writes data under key and returns the public URL. Each attempt mints
// a fresh presigned upload URL. Transient statuses (500/502/503/504) and
// transport errors are retried with a linearly growing delay; anything else
// aborts immediately.
func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		client, err := s.session(ctx)
		if err != nil {
			return "", err
		}

		aerr := s.put(ctx, client, key, data, contentType)
		if aerr == nil {
			s.logger.Debug("object uploaded", "key", key, "bytes", len(data), "attempt", attempt)
			return s.PublicURL(key), nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("upload %s: %w", key, ctx.Err())
		}
		if !aerr.transient {
			if aerr.status == http.StatusUnauthorized || aerr.status == http.StatusForbidden {
				s.invalidate()
			}
			return "", fmt.Errorf("%w: upload %s: %v", ErrNonRetryable, key, aerr)
		}

		lastErr = aerr
		if attempt == s.maxAttempts {
			break
		}
		delay := time.Duration(attempt) * s.baseDelay
		s.logger.Warn("transient storage failure, retrying",
			"key", key, "attempt", attempt, "status", aerr.status, "delay", delay, "error", aerr.err)
		if err := s.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("upload %s: %w", key, err)
		}
	}
	return "", fmt.Errorf("%w: upload %s after %d attempts: %v", ErrRetriesExhausted, key, s.maxAttempts, lastErr)
}

// DeleteByFileID removes every version of every object stored for fileID.
func (s *MinioStore) DeleteByFileID(ctx context.Context, fileID string) (bool, error) {
	if fileID == "" {
		return false, errors.New("delete objects: empty file id")
	}
	client, err := s.session(ctx)
	if err != nil {
		return false, err
	}

	ok := true
	removed := 0
	for _, ns := range Namespaces {
		opts := minio.ListObjectsOptions{Prefix: ns + fileID, Recursive: true, WithVersions: true}
		for obj := range client.ListObjects(ctx, s.bucket, opts) {
			if obj.Err != nil {
				s.logger.Error("list objects failed", "prefix", opts.Prefix, "error", obj.Err)
				ok = false
				continue
			}
			err := client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{VersionID: obj.VersionID})
			if err != nil {
				s.logger.Error("remove object failed", "key", obj.Key, "version", obj.VersionID, "error", err)
				ok = false
				continue
			}
			removed++
		}
	}

	s.logger.Info("objects deleted", "file_id", fileID, "removed", removed, "complete", ok)
	return ok, nil
}

// PublicURL returns the browser-accessible URL for the given key.
func (s *MinioStore) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

// session returns the live client, creating it if needed.
func (s *MinioStore) session(ctx context.Context) (objectClient, error) {
	s.mu.RLock()
	c := s.client
	s.mu.RUnlock()
	if c != nil {
		return c, nil
	}

	v, err, _ := s.group.Do("session", func() (interface{}, error) {
		s.mu.RLock()
		existing := s.client
		s.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionInitTimeout)
		defer cancel()

		client, err := s.newClient()
		if err != nil {
			return nil, err
		}
		if err := ensureBucket(initCtx, client, s.bucket, s.logger); err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.client = client
		s.mu.Unlock()
		s.logger.Info("storage session established", "bucket", s.bucket)
		return client, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return v.(objectClient), nil
}

// invalidate drops the session so the next call re-authenticates.
func (s *MinioStore) invalidate() {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
}

// attemptError describes one failed upload attempt.
type attemptError struct {
	status    int
	transient bool
	err       error
}

func (e *attemptError) Error() string { return e.err.Error() }

func (s *MinioStore) put(ctx context.Context, client objectClient, key string, data []byte, contentType string) *attemptError {
	u, err := client.PresignedPutObject(ctx, s.bucket, key, uploadURLTTL)
	if err != nil {
		return &attemptError{err: fmt.Errorf("presign upload url: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), bytes.NewReader(data))
	if err != nil {
		return &attemptError{err: fmt.Errorf("build upload request: %w", err)}
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &attemptError{transient: true, err: fmt.Errorf("put object: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &attemptError{
		status:    resp.StatusCode,
		transient: retryableStatus[resp.StatusCode],
		err:       fmt.Errorf("put object: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
	}
}

// ensureBucket creates the bucket if needed and applies a public-read policy.
func ensureBucket(ctx context.Context, client objectClient, bucket string, logger *slog.Logger) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		logger.Info("created bucket", "bucket", bucket)
	}

	if err := client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}
	return nil
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
