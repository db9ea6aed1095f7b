package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

// MinPartSize is the smallest part S3 accepts for all but the last part.
const MinPartSize = 5 << 20

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

// s3API is the part of *s3.Client the engine uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type getPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options configures an S3Engine.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicBaseURL prefixes public object URLs. When empty the URL is
	// Endpoint/Bucket/key.
	PublicBaseURL string
	PartSize      int64
	Timeout       time.Duration
}

// S3Engine stores objects in an S3-compatible bucket. Bodies up to one part
// go up in a single PutObject; larger bodies use a multipart upload.
type S3Engine struct {
	api       s3API
	presigner getPresigner
	opts      S3Options
	publicURL string
	logger    logging.Logger
}

// NewS3Engine builds an SDK client from static credentials. The client is
// shared by all concurrent uploads.
func NewS3Engine(ctx context.Context, opts S3Options, logger logging.Logger) (*S3Engine, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %w", common.ErrStorageUnavailable, err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return newS3Engine(client, newS3PresignClient(client), opts, logger), nil
}

func newS3Engine(api s3API, presigner getPresigner, opts S3Options, logger logging.Logger) *S3Engine {
	if opts.PartSize < MinPartSize {
		opts.PartSize = MinPartSize
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}

	base := strings.TrimRight(opts.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	}

	return &S3Engine{
		api:       api,
		presigner: presigner,
		opts:      opts,
		publicURL: base,
		logger:    logger.With("engine", "s3", "bucket", opts.Bucket),
	}
}

func (e *S3Engine) Name() string { return "s3" }

func (e *S3Engine) URL(key string) string {
	return e.publicURL + "/" + key
}

func (e *S3Engine) Store(ctx context.Context, req StoreRequest) (*Descriptor, error) {
	opCtx, cancel := withTimeout(ctx, e.opts.Timeout)
	defer cancel()

	key, ext := NewKey(req.DeclaredName)
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	tracker := NewProgressTracker(opCtx, req.Body, req.OnProgress)
	buf := make([]byte, e.opts.PartSize)

	n, err := io.ReadFull(tracker, buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		err = e.putSingle(opCtx, key, contentType, buf[:n])
		if err != nil {
			e.deleteQuietly(ctx, key)
		}
	case err != nil:
	default:
		err = e.putMultipart(ctx, opCtx, key, contentType, buf, tracker)
	}
	if err != nil {
		return nil, classify(ctx, tracker, err)
	}

	return &Descriptor{
		Key:       key,
		PublicURL: e.URL(key),
		Extension: ext,
		Size:      tracker.Peak(),
	}, nil
}

func (e *S3Engine) putSingle(ctx context.Context, key, contentType string, body []byte) error {
	_, err := e.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(e.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	return err
}

// putMultipart uploads first (already filled) and then the rest of tracker
// part by part. Any failure aborts the upload so no parts linger.
func (e *S3Engine) putMultipart(ctx, opCtx context.Context, key, contentType string, first []byte, tracker *ProgressTracker) error {
	created, err := e.api.CreateMultipartUpload(opCtx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(e.opts.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return err
	}
	uploadID := created.UploadId

	abort := func(cause error) error {
		cctx, cancel := cleanupContext(ctx, e.opts.Timeout)
		defer cancel()
		_, abortErr := e.api.AbortMultipartUpload(cctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(e.opts.Bucket),
			Key:      aws.String(key),
			UploadId: uploadID,
		})
		if abortErr != nil {
			e.logger.Warn(ctx, "multipart abort failed", "key", key, "error", abortErr)
		}
		return cause
	}

	var parts []types.CompletedPart
	chunk := first
	for partNumber := int32(1); ; partNumber++ {
		out, err := e.api.UploadPart(opCtx, &s3.UploadPartInput{
			Bucket:        aws.String(e.opts.Bucket),
			Key:           aws.String(key),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(partNumber),
			Body:          bytes.NewReader(chunk),
			ContentLength: aws.Int64(int64(len(chunk))),
		})
		if err != nil {
			return abort(err)
		}
		parts = append(parts, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(partNumber)})

		if len(chunk) < len(first) {
			break
		}

		n, err := io.ReadFull(tracker, first)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return abort(err)
		}
		chunk = first[:n]
	}

	_, err = e.api.CompleteMultipartUpload(opCtx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(e.opts.Bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return abort(err)
	}
	return nil
}

func (e *S3Engine) deleteQuietly(ctx context.Context, key string) {
	cctx, cancel := cleanupContext(ctx, e.opts.Timeout)
	defer cancel()
	if err := e.Remove(cctx, key); err != nil {
		e.logger.Warn(ctx, "cleanup of failed put failed", "key", key, "error", err)
	}
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func (e *S3Engine) Remove(ctx context.Context, key string) error {
	opCtx, cancel := withTimeout(ctx, e.opts.Timeout)
	defer cancel()

	_, err := e.api.DeleteObject(opCtx, &s3.DeleteObjectInput{
		Bucket: aws.String(e.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return classify(ctx, nil, err)
	}
	return nil
}

func (e *S3Engine) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	opCtx, cancel := withTimeout(ctx, e.opts.Timeout)
	defer cancel()

	out, err := e.api.HeadObject(opCtx, &s3.HeadObjectInput{
		Bucket: aws.String(e.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrNotFound
		}
		return nil, classify(ctx, nil, err)
	}
	return &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// cancelOnClose releases the operation context once the caller is done
// with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

func (e *S3Engine) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	opCtx, cancel := withTimeout(ctx, e.opts.Timeout)

	out, err := e.api.GetObject(opCtx, &s3.GetObjectInput{
		Bucket: aws.String(e.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		cancel()
		if isNotFound(err) {
			return nil, common.ErrNotFound
		}
		return nil, classify(ctx, nil, err)
	}
	return &cancelOnClose{ReadCloser: out.Body, cancel: cancel}, nil
}

func (e *S3Engine) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	opCtx, cancel := withTimeout(ctx, e.opts.Timeout)
	defer cancel()

	in := &s3.ListObjectsV2Input{Bucket: aws.String(e.opts.Bucket)}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}

	var result []ObjectInfo
	p := s3.NewListObjectsV2Paginator(e.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(opCtx)
		if err != nil {
			return nil, classify(ctx, nil, err)
		}
		for _, obj := range page.Contents {
			result = append(result, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return result, nil
}

// SignedURL presigns a GET for key valid for ttl.
func (e *S3Engine) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := e.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.opts.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	return req.URL, nil
}
