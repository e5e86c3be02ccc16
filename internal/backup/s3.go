package backup

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
)

// S3Options — параметры бакета для копий.
type S3Options struct {
	Bucket string
	Region string
	// Endpoint — адрес S3-совместимого хранилища (MinIO и т.п.). Пусто — AWS.
	Endpoint string
	Prefix   string
	// MaxElapsed — общий лимит повторов. 0 — одна минута.
	MaxElapsed time.Duration
}

// S3Uploader выгружает копии в S3 с экспоненциальными повторами.
type S3Uploader struct {
	uploader   *manager.Uploader
	bucket     string
	prefix     string
	maxElapsed time.Duration
	logger     *slog.Logger
}

// NewS3Uploader читает учётные данные из стандартной цепочки AWS (переменные
// окружения, ~/.aws, роль инстанса).
func NewS3Uploader(ctx context.Context, opts S3Options, logger *slog.Logger) (*S3Uploader, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("не задан бакет S3")
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = time.Minute
	}
	prefix := strings.Trim(opts.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Uploader{
		uploader:   manager.NewUploader(client),
		bucket:     opts.Bucket,
		prefix:     prefix,
		maxElapsed: opts.MaxElapsed,
		logger:     logger.With(slog.String("component", "backup-s3")),
	}, nil
}

// Upload кладёт data под ключом prefix+key.
func (u *S3Uploader) Upload(ctx context.Context, key string, data []byte) error {
	fullKey := u.prefix + key
	op := func() error {
		_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(fullKey),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = u.maxElapsed
	notify := func(err error, d time.Duration) {
		u.logger.Warn("Повтор выгрузки в S3",
			slog.String("key", fullKey),
			slog.Duration("delay", d),
			slog.String("error", err.Error()),
		)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("ошибка выгрузки %s в s3://%s: %w", fullKey, u.bucket, err)
	}
	return nil
}
