package memos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/memorelay/internal/common"
	"github.com/dmitrijs2005/memorelay/internal/server/models"
)

const (
	s3KeyPrefix        = "memos/"
	s3ExpiresAtMetaKey = "expires-at"
)

// s3API is the subset of *s3.Client used by S3Repository.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Options configures the connection to an S3-compatible object store.
type S3Options struct {
	User         string
	Password     string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Repository stores each memo as one JSON object under memos/<id>.
//
// Collision detection relies on conditional writes (If-None-Match: *) and
// deletes are conditional on the ETag that was read (If-Match). Take is a
// read followed by a conditional delete; the memo cell locator serializes
// readers of one id within a process.
type S3Repository struct {
	client s3API
	bucket string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Repository builds a client from static credentials, the way a MinIO
// deployment is addressed.
func NewS3Repository(ctx context.Context, o S3Options) (*S3Repository, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.User, o.Password, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(opts *s3.Options) {
		if o.BaseEndpoint != "" {
			opts.BaseEndpoint = aws.String(o.BaseEndpoint)
		}
		opts.UsePathStyle = true
	})

	return newS3Repository(client, o.Bucket), nil
}

func newS3Repository(client s3API, bucket string) *S3Repository {
	return &S3Repository{client: client, bucket: bucket}
}

// s3Memo is the stored object body.
type s3Memo struct {
	Ciphertext []byte          `json:"ciphertext"`
	IV         []byte          `json:"iv"`
	Salt       []byte          `json:"salt"`
	KDF        json.RawMessage `json:"kdf,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	ExpiresAt  time.Time       `json:"expiresAt"`
}

func objectKey(id string) string {
	return s3KeyPrefix + id
}

func (r *S3Repository) Insert(ctx context.Context, m *models.Memo) error {
	err := r.put(ctx, m)
	if !isPreconditionFailed(err) {
		return err
	}

	// An object exists; it only blocks the insert while it is live.
	deleted, err := r.DeleteIfExpired(ctx, m.ID, m.CreatedAt)
	if err != nil {
		return err
	}
	if !deleted {
		return common.ErrCollision
	}

	err = r.put(ctx, m)
	if isPreconditionFailed(err) {
		return common.ErrCollision
	}
	return err
}

func (r *S3Repository) put(ctx context.Context, m *models.Memo) error {
	body, err := json.Marshal(s3Memo{
		Ciphertext: m.Ciphertext,
		IV:         m.IV,
		Salt:       m.Salt,
		KDF:        m.KDF,
		CreatedAt:  m.CreatedAt.UTC(),
		ExpiresAt:  m.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode memo: %w", err)
	}

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(r.bucket),
		Key:          aws.String(objectKey(m.ID)),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String("application/json"),
		IfNoneMatch:  aws.String("*"),
		CacheControl: aws.String("no-store"),
		Metadata: map[string]string{
			s3ExpiresAtMetaKey: m.ExpiresAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return err
		}
		return fmt.Errorf("s3 put: %w", err)
	}
	return nil
}

func (r *S3Repository) Get(ctx context.Context, id string) (*models.Memo, error) {
	m, _, err := r.get(ctx, id)
	return m, err
}

// get returns the memo together with the ETag of the object it was read from.
func (r *S3Repository) get(ctx context.Context, id string) (*models.Memo, string, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(objectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", common.ErrorNotFound
		}
		return nil, "", fmt.Errorf("s3 get: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("s3 read: %w", err)
	}

	var stored s3Memo
	if err := json.Unmarshal(body, &stored); err != nil {
		return nil, "", fmt.Errorf("decode memo: %w", err)
	}

	return &models.Memo{
		ID:         id,
		Ciphertext: stored.Ciphertext,
		IV:         stored.IV,
		Salt:       stored.Salt,
		KDF:        stored.KDF,
		CreatedAt:  stored.CreatedAt,
		ExpiresAt:  stored.ExpiresAt,
	}, aws.ToString(out.ETag), nil
}

// Take reads the memo and deletes exactly the object that was read. If the
// object was replaced in between, the replacement is kept and ErrorNotFound
// is returned.
func (r *S3Repository) Take(ctx context.Context, id string) (*models.Memo, error) {
	m, etag, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	deleted, err := r.delete(ctx, id, etag)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, common.ErrorNotFound
	}
	return m, nil
}

// DeleteIfExpired deletes the object only if it is still the version whose
// expiry was checked, so a memo sealed concurrently under the same id
// survives.
func (r *S3Repository) DeleteIfExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	expiresAt, etag, err := r.expiresAt(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	if now.Before(expiresAt) {
		return false, nil
	}
	return r.delete(ctx, id, etag)
}

func (r *S3Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64

	p := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(s3KeyPrefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return n, fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			id := strings.TrimPrefix(aws.ToString(obj.Key), s3KeyPrefix)
			deleted, err := r.DeleteIfExpired(ctx, id, now)
			if err != nil {
				return n, err
			}
			if deleted {
				n++
			}
		}
	}
	return n, nil
}

func (r *S3Repository) Ping(ctx context.Context) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(r.bucket)})
	if err != nil {
		return fmt.Errorf("s3 head bucket: %w", err)
	}
	return nil
}

func (r *S3Repository) expiresAt(ctx context.Context, id string) (time.Time, string, error) {
	out, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(objectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return time.Time{}, "", common.ErrorNotFound
		}
		return time.Time{}, "", fmt.Errorf("s3 head: %w", err)
	}
	etag := aws.ToString(out.ETag)

	raw, ok := out.Metadata[s3ExpiresAtMetaKey]
	if !ok {
		// Objects written without metadata fall back to the body.
		m, bodyTag, err := r.get(ctx, id)
		if err != nil {
			return time.Time{}, "", err
		}
		return m.ExpiresAt, bodyTag, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("s3 metadata %s: %w", s3ExpiresAtMetaKey, err)
	}
	return t, etag, nil
}

// delete removes the object if its ETag still equals etag. It reports false
// when the object is gone or was replaced.
func (r *S3Repository) delete(ctx context.Context, id, etag string) (bool, error) {
	in := &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(objectKey(id)),
	}
	if etag != "" {
		in.IfMatch = aws.String(etag)
	}
	_, err := r.client.DeleteObject(ctx, in)
	if err != nil {
		if isPreconditionFailed(err) || isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 delete: %w", err)
	}
	return true, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}
