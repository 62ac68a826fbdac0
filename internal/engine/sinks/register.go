package sinks

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	v1 "github.com/pdfebc/pdfebc-web/apis/v1"
	"github.com/pdfebc/pdfebc-web/internal/engine"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Register adds the delivery sink factories to the registry. Each factory builds a fresh sink
// for one session.
func Register(registry *engine.Registry) {
	registry.RegisterSink(EmailSinkKind, engine.NewSinkFactory[*v1.EmailDeliverySpec](EmailSinkKind, newEmailSink))
	registry.RegisterSink(S3SinkKind, engine.NewSinkFactory[*v1.S3DeliverySpec](S3SinkKind, newS3Sink))
	registry.RegisterSink(FilesystemSinkKind, engine.NewSinkFactory[*v1.FilesystemDeliverySpec](FilesystemSinkKind, newFilesystemSink))
}

// ResolveDeliverySpec returns the kind and the spec of the single configured sink.
func ResolveDeliverySpec(d *v1.DeliverySpec) (string, any, error) {
	if d == nil {
		return "", nil, fmt.Errorf("no delivery configured")
	}

	var kinds []string
	var kind string
	var spec any
	if d.Email != nil {
		kinds = append(kinds, EmailSinkKind)
		kind, spec = EmailSinkKind, d.Email
	}
	if d.S3 != nil {
		kinds = append(kinds, S3SinkKind)
		kind, spec = S3SinkKind, d.S3
	}
	if d.Filesystem != nil {
		kinds = append(kinds, FilesystemSinkKind)
		kind, spec = FilesystemSinkKind, d.Filesystem
	}

	switch len(kinds) {
	case 0:
		return "", nil, fmt.Errorf("delivery has no sink type specified")
	case 1:
		return kind, spec, nil
	default:
		return "", nil, fmt.Errorf("delivery must configure exactly one sink, got %v", kinds)
	}
}

func newEmailSink(ctx context.Context, logger *zap.Logger, target engine.DeliveryTarget, spec *v1.EmailDeliverySpec) (engine.Sink, error) {
	cfg := EmailConfig{
		Host:     spec.Host,
		Port:     spec.Port,
		Username: spec.Username,
		Password: spec.Password,
		From:     spec.From,
		To:       spec.To,
		Subject:  spec.Subject,
		TLS:      spec.TLS,
	}

	client, err := NewMailClient(cfg)
	if err != nil {
		return nil, err
	}

	sink, err := NewEmailSink(client, cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug("created email sink", zap.String("session_id", target.SessionID), zap.Strings("to", spec.To))
	return sink, nil
}

func newS3Sink(ctx context.Context, logger *zap.Logger, target engine.DeliveryTarget, spec *v1.S3DeliverySpec) (engine.Sink, error) {
	cfg := S3Config{
		Bucket:         spec.Bucket,
		Region:         lo.FromPtr(spec.Region),
		Endpoint:       lo.FromPtr(spec.Endpoint),
		Prefix:         path.Join(lo.FromPtr(spec.Prefix), target.SessionID),
		ForcePathStyle: spec.ForcePathStyle,
	}
	if spec.Credentials != nil {
		cfg.AccessKeyID = spec.Credentials.AccessKeyID
		cfg.SecretAccessKey = spec.Credentials.SecretAccessKey
	}

	sink, err := NewS3Sink(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug("created s3 sink", zap.String("session_id", target.SessionID), zap.String("bucket", cfg.Bucket))
	return sink, nil
}

func newFilesystemSink(ctx context.Context, logger *zap.Logger, target engine.DeliveryTarget, spec *v1.FilesystemDeliverySpec) (engine.Sink, error) {
	dir := filepath.Join(spec.Path, target.SessionID)
	sink, err := NewFilesystemSinkFromPath(dir)
	if err != nil {
		return nil, err
	}

	logger.Debug("created filesystem sink", zap.String("session_id", target.SessionID), zap.String("path", dir))
	return sink, nil
}
