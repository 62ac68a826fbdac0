package sinks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/pdfebc/pdfebc-web/internal/engine"
)

const S3SinkKind = "s3"

// S3Uploader is the subset of manager.Uploader used by S3Sink.
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// S3Sink uploads artifacts to S3-compatible object storage under <prefix>/<key>.
type S3Sink struct {
	bucket   string
	prefix   string
	uploader S3Uploader
}

func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(newS3HTTPClient()),
	}

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// R2, MinIO and friends
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewS3SinkWithUploader(cfg.Bucket, cfg.Prefix, manager.NewUploader(client)), nil
}

// newS3HTTPClient applies cleanhttp's pooled transport settings to the SDK's buildable
// client. The TLS config is left to the SDK so AWS_CA_BUNDLE keeps working.
func newS3HTTPClient() *awshttp.BuildableClient {
	return awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
		pooled := cleanhttp.DefaultPooledTransport()
		tr.Proxy = pooled.Proxy
		tr.DialContext = pooled.DialContext
		tr.ForceAttemptHTTP2 = pooled.ForceAttemptHTTP2
		tr.MaxIdleConns = pooled.MaxIdleConns
		tr.MaxIdleConnsPerHost = pooled.MaxIdleConnsPerHost
		tr.IdleConnTimeout = pooled.IdleConnTimeout
		tr.TLSHandshakeTimeout = pooled.TLSHandshakeTimeout
		tr.ExpectContinueTimeout = pooled.ExpectContinueTimeout
	})
}

func NewS3SinkWithUploader(bucket, prefix string, uploader S3Uploader) *S3Sink {
	return &S3Sink{
		bucket:   bucket,
		prefix:   prefix,
		uploader: uploader,
	}
}

func (s *S3Sink) Name() string {
	if s.prefix != "" {
		return fmt.Sprintf("s3(%s/%s)", s.bucket, s.prefix)
	}
	return fmt.Sprintf("s3(%s)", s.bucket)
}

func (s *S3Sink) Kind() string {
	return S3SinkKind
}

func (s *S3Sink) Write(ctx context.Context, objectPath string, data io.Reader) error {
	key := objectPath
	if s.prefix != "" {
		key = path.Join(s.prefix, objectPath)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if contentType := contentTypeFromPath(objectPath); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return &DeliveryError{Sink: s.Name(), Err: fmt.Errorf("failed to upload to s3://%s/%s: %w", s.bucket, key, err)}
	}

	return nil
}

func (s *S3Sink) Close(ctx context.Context) error {
	return nil
}

// contentTypeFromPath maps the artifact suffixes produced here to a Content-Type.
func contentTypeFromPath(p string) string {
	switch path.Ext(p) {
	case ".pdf":
		return "application/pdf"
	case ".tgz", ".gz":
		return "application/gzip"
	case ".zst":
		return "application/zstd"
	case ".tar":
		return "application/x-tar"
	case ".txt":
		return "text/plain"
	default:
		return ""
	}
}

var _ engine.Sink = (*S3Sink)(nil)
