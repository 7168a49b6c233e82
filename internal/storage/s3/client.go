package s3

import (
	"bytes"
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/pkg/errors"
)

// Config holds configuration for the S3 object store
type Config struct {
	Region          string        `json:"region"`
	Bucket          string        `json:"bucket"`
	AccessKeyID     string        `json:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key"`
	SessionToken    string        `json:"session_token,omitempty"`
	Endpoint        string        `json:"endpoint,omitempty"`
	ForcePathStyle  bool          `json:"force_path_style"`
	DisableSSL      bool          `json:"disable_ssl"`
	Prefix          string        `json:"prefix"`
	Timeout         time.Duration `json:"timeout"`
	MaxRetries      int           `json:"max_retries"`
}

// Store implements storage.ObjectStore for AWS S3
type Store struct {
	config     *Config
	s3Client   *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	logger     *logrus.Logger
	mu         sync.RWMutex
	metrics    *storeMetrics
	closed     bool
}

type storeMetrics struct {
	readOps    int64
	writeOps   int64
	deleteOps  int64
	errorCount int64
	mu         sync.Mutex
}

// NewStore creates a new S3 object store instance
func NewStore(config *Config, logger *logrus.Logger) (*Store, error) {
	if config == nil {
		return nil, errors.NewStorageError(errors.CodeStorageError, "S3 config cannot be nil")
	}

	if config.Bucket == "" {
		return nil, errors.NewStorageError(errors.CodeStorageError, "S3 bucket is required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &Store{
		config:  config,
		logger:  logger,
		metrics: &storeMetrics{},
	}, nil
}

// Connect establishes the S3 session and verifies bucket access
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.s3Client != nil {
		return nil // Already connected
	}

	awsConfig := &aws.Config{
		Region:     aws.String(s.config.Region),
		MaxRetries: aws.Int(s.config.MaxRetries),
	}

	if s.config.AccessKeyID != "" && s.config.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			s.config.AccessKeyID,
			s.config.SecretAccessKey,
			s.config.SessionToken,
		)
	}

	// Custom endpoint for S3-compatible services
	if s.config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s.config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(s.config.ForcePathStyle)
	}

	if s.config.DisableSSL {
		awsConfig.DisableSSL = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "failed to create AWS session")
	}

	s.s3Client = s3.New(sess)
	s.uploader = s3manager.NewUploader(sess)
	s.downloader = s3manager.NewDownloader(sess)

	_, err = s.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			"failed to access bucket '"+s.config.Bucket+"'")
	}

	s.logger.WithFields(logrus.Fields{
		"region": s.config.Region,
		"bucket": s.config.Bucket,
	}).Info("Connected to S3")

	return nil
}

// Close releases the S3 session
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.s3Client = nil
	s.uploader = nil
	s.downloader = nil
	s.closed = true

	s.logger.Info("S3 connection closed")
	return nil
}

// Ping tests the S3 connection
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return errors.WrapError(errors.ErrStorageConnectionFailed, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "S3 not connected")
	}

	_, err := s.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	})
	if err != nil {
		s.incrementErrorCount()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "S3 ping failed")
	}

	return nil
}

// Get downloads an object. An absent key returns (nil, false, nil); only
// non-404 failures surface as errors.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return nil, false, errors.WrapError(errors.ErrStorageConnectionFailed, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "S3 not connected")
	}

	start := time.Now()
	defer func() {
		s.incrementReadOps()
		s.logger.WithField("duration", time.Since(start)).Debug("Get operation completed")
	}()

	buf := aws.NewWriteAtBuffer([]byte{})
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			s.logger.WithField("key", key).Debug("Object does not exist")
			return nil, false, nil
		}
		s.incrementErrorCount()
		return nil, false, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to download from S3")
	}

	return buf.Bytes(), true, nil
}

// Put uploads an object, overwriting any existing value whole-file
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return errors.WrapError(errors.ErrStorageConnectionFailed, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "S3 not connected")
	}

	start := time.Now()
	defer func() {
		s.incrementWriteOps()
		s.logger.WithFields(logrus.Fields{
			"key":      key,
			"bytes":    len(data),
			"duration": time.Since(start),
		}).Debug("Put operation completed")
	}()

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		s.incrementErrorCount()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to upload to S3")
	}

	return nil
}

// Exists checks whether an object is present without downloading it
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return false, errors.WrapError(errors.ErrStorageConnectionFailed, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "S3 not connected")
	}

	_, err := s.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		s.incrementErrorCount()
		return false, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to head object in S3")
	}

	return true, nil
}

// Delete removes an object. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return errors.WrapError(errors.ErrStorageConnectionFailed, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "S3 not connected")
	}

	start := time.Now()
	defer func() {
		s.incrementDeleteOps()
		s.logger.WithField("duration", time.Since(start)).Debug("Delete operation completed")
	}()

	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			s.logger.WithField("key", key).Warn("Delete requested for absent object")
			return nil
		}
		s.incrementErrorCount()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeDeleteFailed, "failed to delete from S3")
	}

	return nil
}

// Helper methods

func (s *Store) objectKey(key string) string {
	prefix := s.config.Prefix
	if prefix == "" {
		return key
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return path.Join(prefix, key)
}

// isNotFound classifies key-absent responses only. A missing bucket also
// answers 404 but means the store itself is gone, so it must surface as an
// error instead of an empty read.
func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		case s3.ErrCodeNoSuchBucket:
			return false
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "NoSuchBucket") {
		return false
	}
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "status code: 404")
}

func (s *Store) incrementReadOps() {
	s.metrics.mu.Lock()
	s.metrics.readOps++
	s.metrics.mu.Unlock()
}

func (s *Store) incrementWriteOps() {
	s.metrics.mu.Lock()
	s.metrics.writeOps++
	s.metrics.mu.Unlock()
}

func (s *Store) incrementDeleteOps() {
	s.metrics.mu.Lock()
	s.metrics.deleteOps++
	s.metrics.mu.Unlock()
}

func (s *Store) incrementErrorCount() {
	s.metrics.mu.Lock()
	s.metrics.errorCount++
	s.metrics.mu.Unlock()
}
