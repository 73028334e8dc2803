package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/media"
)

// S3Config holds the bucket source configuration.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // Optional: for S3-compatible endpoints
	AccessKeyID     string // Optional: static credentials
	SecretAccessKey string
	PresignTTL      time.Duration
}

// S3 lists media objects under a bucket prefix and plays them through
// presigned GET URLs. Lists are re-signed before half the TTL elapses.
type S3 struct {
	cfg      S3Config
	lister   s3.ListObjectsV2APIClient
	presign  *s3.PresignClient
	interval time.Duration
	signedAt time.Time
	now      func() time.Time
	log      zerolog.Logger
}

// ParseS3URI splits s3://bucket/prefix.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 uri: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "s3") || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 uri %q: want s3://bucket/prefix", uri)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// NewS3 builds the AWS client from cfg. Static credentials are used when
// both keys are set, the default chain otherwise.
func NewS3(ctx context.Context, cfg S3Config, interval time.Duration) (*S3, error) {
	var configOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		configOpts = append(configOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsCfg, clientOpts...)
	return newS3(cfg, client, s3.NewPresignClient(client), interval), nil
}

func newS3(cfg S3Config, lister s3.ListObjectsV2APIClient, presign *s3.PresignClient, interval time.Duration) *S3 {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = DefaultPresignTTL
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &S3{
		cfg:      cfg,
		lister:   lister,
		presign:  presign,
		interval: interval,
		now:      time.Now,
		log:      logger.Component("source").With().Str("bucket", cfg.Bucket).Str("prefix", cfg.Prefix).Logger(),
	}
}

func (s *S3) String() string { return "s3://" + path.Join(s.cfg.Bucket, s.cfg.Prefix) }

// List returns the media objects under the prefix, sorted by key.
func (s *S3) List(ctx context.Context) ([]media.Item, error) {
	items, _, err := s.fetch(ctx)
	return items, err
}

// Watch polls the bucket until ctx is done.
func (s *S3) Watch(ctx context.Context, fn func([]media.Item)) error {
	return poll(ctx, s.log, s.interval, s.fetch, fn)
}

type object struct {
	key  string
	etag string
}

func (s *S3) objects(ctx context.Context) ([]object, error) {
	var objs []object
	p := s3.NewListObjectsV2Paginator(s.lister, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(s.cfg.Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.cfg.Bucket, s.cfg.Prefix, err)
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			if strings.HasSuffix(key, "/") || !media.IsSupported(key) {
				continue
			}
			objs = append(objs, object{key: key, etag: aws.ToString(o.ETag)})
		}
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].key < objs[j].key })
	return objs, nil
}

// fetch lists and signs. The fingerprint covers keys and ETags plus the
// signing epoch, so URLs are refreshed once they are half way to expiry.
func (s *S3) fetch(ctx context.Context) ([]media.Item, string, error) {
	objs, err := s.objects(ctx)
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	if s.signedAt.IsZero() || now.Sub(s.signedAt) >= s.cfg.PresignTTL/2 {
		s.signedAt = now
	}

	h := sha256.New()
	fmt.Fprintf(h, "%d\n", s.signedAt.UnixNano())
	items := make([]media.Item, 0, len(objs))
	for _, o := range objs {
		req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(o.key),
		}, s3.WithPresignExpires(s.cfg.PresignTTL))
		if err != nil {
			return nil, "", fmt.Errorf("presign %s: %w", o.key, err)
		}
		items = append(items, media.NewItem(req.URL))
		fmt.Fprintf(h, "%s %s\n", o.key, o.etag)
	}
	return items, hex.EncodeToString(h.Sum(nil)), nil
}
