// Package s3 archives each hume as an object in an S3 compatible bucket.
package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/xraph/hume/sink"
)

// Name is the transfer method identity.
const Name = "s3"

var errNoBucket = errors.New("s3: bucket is required")

// Plugin caches one client per region, endpoint and credential set.
type Plugin struct {
	mu      sync.Mutex
	clients map[string]*s3.Client
}

// New creates the s3 plugin.
func New() *Plugin {
	return &Plugin{clients: make(map[string]*s3.Client)}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) DefaultConfig() sink.Config {
	return sink.Config{
		"bucket":            "",
		"prefix":            "humes",
		"region":            "us-east-1",
		"endpoint":          "",
		"path_style":        false,
		"access_key_id":     "",
		"secret_access_key": "",
		"gzip":              false,
		"timeout":           10,
	}
}

func (p *Plugin) client(ctx context.Context, cfg sink.Config) (*s3.Client, error) {
	region := cfg.String("region")
	endpoint := cfg.String("endpoint")
	keyID := cfg.String("access_key_id")
	cacheKey := fmt.Sprintf("%s|%s|%s|%t", region, endpoint, keyID, cfg.Bool("path_style"))

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[cacheKey]; ok {
		return c, nil
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithRetryMaxAttempts(1),
	}
	if keyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, cfg.String("secret_access_key"), ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.Bool("path_style")
	})
	p.clients[cacheKey] = c
	return c, nil
}

// Key returns the object key: <prefix>/YYYY/MM/DD/<hume_id>.json[.gz].
func Key(prefix string, pkt sink.Packet, compressed bool) string {
	t := pkt.ReceivedAt.UTC()
	name := pkt.HumeID + ".json"
	if compressed {
		name += ".gz"
	}
	return path.Join(prefix, fmt.Sprintf("%04d/%02d/%02d", t.Year(), t.Month(), t.Day()), name)
}

// Send uploads the envelope as one JSON line.
func (p *Plugin) Send(ctx context.Context, pkt sink.Packet, cfg sink.Config) error {
	bucket := cfg.String("bucket")
	if bucket == "" {
		return errNoBucket
	}

	body, err := json.Marshal(pkt.Envelope())
	if err != nil {
		return fmt.Errorf("s3: marshal: %w", err)
	}
	body = append(body, '\n')

	compressed := cfg.Bool("gzip")
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(Key(cfg.String("prefix"), pkt, compressed)),
		ContentType: aws.String("application/json"),
	}
	if compressed {
		var buf bytes.Buffer
		gz, _ := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if _, err := gz.Write(body); err != nil {
			return fmt.Errorf("s3: gzip: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("s3: gzip: %w", err)
		}
		body = buf.Bytes()
		input.ContentEncoding = aws.String("gzip")
	}
	input.Body = bytes.NewReader(body)

	if timeout := cfg.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c, err := p.client(ctx, cfg)
	if err != nil {
		return err
	}
	if _, err := c.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3: put object: %w", err)
	}
	return nil
}
