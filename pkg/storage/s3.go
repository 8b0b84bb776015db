package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const filenameMetaKey = "filename"

// objectAPI is the subset of the S3 client the storage uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Storage implements Storage using Amazon S3 or S3-compatible services.
// Objects are keyed as <company>/<file id>/<filename>.
type S3Storage struct {
	bucket string
	client objectAPI
}

// NewS3Storage creates a new S3 storage instance
func NewS3Storage(ctx context.Context, cfg *Config) (*S3Storage, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if cfg.S3Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true // Required for MinIO
		})
	}

	return newS3Storage(cfg.S3Bucket, s3.NewFromConfig(awsCfg, s3Opts...)), nil
}

func newS3Storage(bucket string, client objectAPI) *S3Storage {
	return &S3Storage{bucket: bucket, client: client}
}

// Upload stores a file and returns its metadata
func (s *S3Storage) Upload(ctx context.Context, companyID uuid.UUID, filename string, contentType string, r io.Reader) (*FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	fileID := uuid.New()
	key := path.Join(companyID.String(), fileID.String(), sanitizeFilename(filename))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{filenameMetaKey: filename},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return &FileInfo{
		ID:          fileID,
		CompanyID:   companyID,
		Name:        filename,
		Size:        int64(len(data)),
		ContentType: contentType,
		Path:        key,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// GetReader returns a reader for a stored file
func (s *S3Storage) GetReader(ctx context.Context, companyID uuid.UUID, fileID uuid.UUID) (io.ReadCloser, error) {
	key, err := s.findKey(ctx, companyID, fileID)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete removes a file by its ID
func (s *S3Storage) Delete(ctx context.Context, companyID uuid.UUID, fileID uuid.UUID) error {
	key, err := s.findKey(ctx, companyID, fileID)
	if err != nil {
		return err
	}
	return s.deleteKey(ctx, key)
}

// List returns all files for a company
func (s *S3Storage) List(ctx context.Context, companyID uuid.UUID) ([]*FileInfo, error) {
	keys, err := s.listKeys(ctx, companyID.String()+"/")
	if err != nil {
		return nil, err
	}

	files := make([]*FileInfo, 0, len(keys))
	for _, obj := range keys {
		info, err := s.headInfo(ctx, obj.key)
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	return files, nil
}

// GetInfo returns metadata for a file without reading it
func (s *S3Storage) GetInfo(ctx context.Context, companyID uuid.UUID, fileID uuid.UUID) (*FileInfo, error) {
	key, err := s.findKey(ctx, companyID, fileID)
	if err != nil {
		return nil, err
	}
	return s.headInfo(ctx, key)
}

// Purge removes every object last modified before the cutoff
func (s *S3Storage) Purge(ctx context.Context, before time.Time) (int, error) {
	objects, err := s.listKeys(ctx, "")
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, obj := range objects {
		if !obj.modified.Before(before) {
			continue
		}
		if err := s.deleteKey(ctx, obj.key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

type objectRef struct {
	key      string
	modified time.Time
}

func (s *S3Storage) listKeys(ctx context.Context, prefix string) ([]objectRef, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var refs []objectRef
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			refs = append(refs, objectRef{
				key:      aws.ToString(obj.Key),
				modified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return refs, nil
}

func (s *S3Storage) findKey(ctx context.Context, companyID, fileID uuid.UUID) (string, error) {
	refs, err := s.listKeys(ctx, path.Join(companyID.String(), fileID.String())+"/")
	if err != nil {
		return "", err
	}
	if len(refs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	return refs[0].key, nil
}

func (s *S3Storage) headInfo(ctx context.Context, key string) (*FileInfo, error) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("unexpected object key %q", key)
	}
	companyID, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, fmt.Errorf("unexpected object key %q: %w", key, err)
	}
	fileID, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, fmt.Errorf("unexpected object key %q: %w", key, err)
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to head object %s: %w", key, err)
	}

	name := out.Metadata[filenameMetaKey]
	if name == "" {
		name = parts[2]
	}

	return &FileInfo{
		ID:          fileID,
		CompanyID:   companyID,
		Name:        name,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		Path:        key,
		CreatedAt:   aws.ToTime(out.LastModified),
	}, nil
}

func (s *S3Storage) deleteKey(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
