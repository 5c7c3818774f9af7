// Package s3backend replicates segment and manifest files to an S3
// bucket, grounded on storage/persistence-s3.go (which uses the v1 AWS
// SDK's PutObject/GetObject against a configured bucket and prefix) —
// ported here to aws-sdk-go-v2, the version the rest of this module's
// dependency set is pinned to.
package s3backend

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds a Backend. With accessKey/secretKey blank it resolves
// credentials via the default AWS chain (environment, shared config,
// EC2/ECS role); set both to pin static credentials instead, for
// environments where the config file is the only place secrets live.
func New(ctx context.Context, bucket, prefix, accessKey, secretKey string) (*Backend, error) {
	var opts []func(*config.LoadOptions) error
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3backend: load AWS config: %w", err)
	}
	return &Backend{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

func (b *Backend) Name() string { return "s3" }

func (b *Backend) PutFile(ctx context.Context, relKey, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("s3backend: open %s: %w", localPath, err)
	}
	defer f.Close()

	key := path.Join(b.prefix, relKey)
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("s3backend: put %s/%s: %w", b.bucket, key, err)
	}
	return nil
}
