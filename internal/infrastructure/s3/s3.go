package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dropshare-api/config"
	"dropshare-api/internal/application/ports"
	"dropshare-api/internal/domain/container"
)

const (
	presignTTL = 15 * time.Minute

	// S3 rejects non-final parts below 5 MiB.
	minPartSize = 5 << 20

	sniffLen = 3072
)

var errLinkExpired = errors.New("download link validity has already ended")

// API is the subset of *s3.Client the adapter calls.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Client is the blob store. Objects live under "<category>/<storage key>".
type Client struct {
	logger     *zap.Logger
	api        API
	presign    Presigner
	bucket     string
	publicBase string
	threshold  int64
	partSize   int64
	now        func() time.Time
}

func New(
	logger *zap.Logger,
	cfg config.S3,
	up config.Upload,
) (*Client, error) {
	if cfg.BucketUploads == "" {
		return nil, errors.New("s3 bucket is not configured")
	}

	awsCfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Region:      cfg.Region,
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	partSize := up.PartSizeBytes
	if partSize < minPartSize {
		partSize = minPartSize
	}
	threshold := up.LargeThresholdBytes
	if threshold < partSize {
		threshold = partSize
	}

	logger.Info("s3 client initialized",
		zap.String("bucket", cfg.BucketUploads),
		zap.String("endpoint", cfg.Endpoint),
	)

	return &Client{
		logger:     logger,
		api:        client,
		presign:    s3.NewPresignClient(client),
		bucket:     cfg.BucketUploads,
		publicBase: cfg.PublicBaseURL,
		threshold:  threshold,
		partSize:   partSize,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func objectKey(category container.Category, key string) string {
	return string(category) + "/" + key
}

// Put stores one file. Files above the large-file threshold go through a
// multipart upload that is aborted on any error.
func (c *Client) Put(ctx context.Context, in ports.BlobUpload) (ports.StoredBlob, error) {
	body := in.Body
	category, mimeType := container.CategoryRaw, mimeByExt(in.Name)

	if in.Hint != container.CategoryRaw {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(body, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return ports.StoredBlob{}, fmt.Errorf("read: %w", err)
		}
		head = head[:n]
		mt := mimetype.Detect(head)
		category, mimeType = categoryOf(mt.String()), mt.String()
		body = io.MultiReader(bytes.NewReader(head), body)
	}

	now := c.now()
	storageKey := fmt.Sprintf("%04d/%02d/%02d/%s/%s",
		now.Year(), int(now.Month()), now.Day(),
		strings.ReplaceAll(uuid.NewString(), "-", ""),
		in.Name,
	)
	key := objectKey(category, storageKey)

	var err error
	if in.Size > c.threshold {
		err = c.putMultipart(ctx, key, mimeType, body)
	} else {
		err = c.putSingle(ctx, key, mimeType, body)
	}
	if err != nil {
		return ports.StoredBlob{}, err
	}

	return ports.StoredBlob{
		Key:      storageKey,
		URL:      c.publicURL(key),
		Category: category,
		MimeType: mimeType,
	}, nil
}

func (c *Client) putSingle(ctx context.Context, key, mimeType string, body io.Reader) error {
	// bounded by the large-file threshold
	b, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(b),
		ContentLength: aws.Int64(int64(len(b))),
		ContentType:   aws.String(mimeType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	return nil
}

func (c *Client) putMultipart(ctx context.Context, key, mimeType string, body io.Reader) error {
	created, err := c.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return fmt.Errorf("create multipart upload: %w", err)
	}

	abort := func(cause error) error {
		if _, aerr := c.api.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(c.bucket),
			Key:      aws.String(key),
			UploadId: created.UploadId,
		}); aerr != nil {
			c.logger.Warn("abort multipart upload failed", zap.String("key", key), zap.Error(aerr))
		}
		return cause
	}

	var parts []s3types.CompletedPart
	buf := make([]byte, c.partSize)
	for num := int32(1); ; num++ {
		n, rerr := io.ReadFull(body, buf)
		if n > 0 {
			out, err := c.api.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:        aws.String(c.bucket),
				Key:           aws.String(key),
				UploadId:      created.UploadId,
				PartNumber:    aws.Int32(num),
				Body:          bytes.NewReader(buf[:n]),
				ContentLength: aws.Int64(int64(n)),
			})
			if err != nil {
				return abort(fmt.Errorf("upload part %d: %w", num, err))
			}
			parts = append(parts, s3types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(num)})
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return abort(fmt.Errorf("read part %d: %w", num, rerr))
		}
	}

	if _, err = c.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(c.bucket),
		Key:             aws.String(key),
		UploadId:        created.UploadId,
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: parts},
	}); err != nil {
		return abort(fmt.Errorf("complete multipart upload: %w", err))
	}

	return nil
}

// Delete is idempotent: a missing object reports BlobNotFound.
func (c *Client) Delete(ctx context.Context, key string, category container.Category) (ports.BlobOutcome, error) {
	if !isKnown(category) {
		return ports.BlobFailed, fmt.Errorf("unknown category %q", category)
	}
	obj := objectKey(category, key)

	exists, err := c.exists(ctx, obj)
	if err != nil {
		return ports.BlobFailed, err
	}
	if !exists {
		return ports.BlobNotFound, nil
	}

	if _, err = c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(obj),
	}); err != nil {
		return ports.BlobFailed, fmt.Errorf("delete object: %w", err)
	}

	return ports.BlobDeleted, nil
}

// DownloadURL presigns a GET that makes browsers save the object as
// fileName. Records without a category are looked up under each one. The
// signature expires at validUntil when that comes before presignTTL.
func (c *Client) DownloadURL(
	ctx context.Context,
	key string,
	category container.Category,
	fileName string,
	validUntil time.Time,
) (string, error) {
	ttl, err := c.presignExpiry(validUntil)
	if err != nil {
		return "", err
	}

	if !isKnown(category) {
		found := false
		for _, cat := range container.KnownCategories {
			ok, err := c.exists(ctx, objectKey(cat, key))
			if err != nil {
				return "", err
			}
			if ok {
				category, found = cat, true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("object %q not found under any category", key)
		}
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(c.bucket),
		Key:                        aws.String(objectKey(category, key)),
		ResponseContentDisposition: aws.String(contentDisposition(fileName)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}

	return req.URL, nil
}

func (c *Client) presignExpiry(validUntil time.Time) (time.Duration, error) {
	if validUntil.IsZero() {
		return presignTTL, nil
	}
	left := validUntil.Sub(c.now())
	switch {
	case left < 0:
		return 0, errLinkExpired
	case left < time.Second:
		// smallest expiry S3 accepts
		return time.Second, nil
	case left < presignTTL:
		return left.Truncate(time.Second), nil
	}
	return presignTTL, nil
}

func (c *Client) exists(ctx context.Context, obj string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(obj),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head object: %w", err)
}

func (c *Client) publicURL(key string) string {
	if c.publicBase != "" {
		return c.publicBase + "/" + key
	}
	return "s3://" + c.bucket + "/" + key
}

func isNotFound(err error) bool {
	var nf *s3types.NotFound
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}

func isKnown(category container.Category) bool {
	for _, c := range container.KnownCategories {
		if c == category {
			return true
		}
	}
	return false
}

func categoryOf(mimeType string) container.Category {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return container.CategoryImage
	case strings.HasPrefix(mimeType, "video/"), strings.HasPrefix(mimeType, "audio/"):
		return container.CategoryVideo
	default:
		return container.CategoryRaw
	}
}

func mimeByExt(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func contentDisposition(fileName string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": fileName})
}
