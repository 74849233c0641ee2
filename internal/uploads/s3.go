package uploads

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/kgellert/hodatay-groupchat/internal/messages"
)

const (
	PresignExpiry = 15 * time.Minute

	// headerRange is enough for the image decoders to read dimensions.
	headerRange = "bytes=0-65535"
)

type ObjectAPI interface {
	s3.HeadObjectAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type PresignedUpload struct {
	Key       string `json:"key"`
	UploadURL string `json:"upload_url"`
	ExpiresIn int    `json:"expires_in"`
}

// Storage is the S3 backed resolver. Descriptors whose url is a key under
// prefix are checked against the bucket and completed from object metadata.
type Storage struct {
	bucket    string
	prefix    string
	objects   ObjectAPI
	presigner Presigner
}

func NewStorage(bucket, prefix string, objects ObjectAPI, presigner Presigner) *Storage {
	return &Storage{bucket: bucket, prefix: prefix, objects: objects, presigner: presigner}
}

func (s *Storage) Resolve(ctx context.Context, in []messages.AttachmentInput) ([]messages.AttachmentInput, error) {
	const op = "uploads.Storage.Resolve"

	out := make([]messages.AttachmentInput, 0, len(in))
	for _, a := range in {
		a = normalize(a)
		if ValidateKey(s.prefix, a.URL) != nil {
			out = append(out, a)
			continue
		}

		head, err := s.objects.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(a.URL),
		})
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, a.URL)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: head object: %w", op, err)
		}

		if a.Mime == "" && head.ContentType != nil {
			a.Mime = strings.ToLower(*head.ContentType)
		}
		if a.SizeBytes == nil && head.ContentLength != nil {
			size := *head.ContentLength
			a.SizeBytes = &size
		}
		if strings.HasPrefix(a.Mime, "image/") && (a.Width == nil || a.Height == nil) {
			if w, h, ok := s.imageSize(ctx, a.URL); ok {
				a.Width, a.Height = &w, &h
			}
		}

		out = append(out, a)
	}

	return out, nil
}

// imageSize reads the head of the object and decodes its dimensions.
// Formats the decoders do not know are reported as not ok.
func (s *Storage) imageSize(ctx context.Context, key string) (int, int, bool) {
	obj, err := s.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(headerRange),
	})
	if err != nil {
		return 0, 0, false
	}
	defer obj.Body.Close()

	cfg, _, err := image.DecodeConfig(obj.Body)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

func (s *Storage) PresignUpload(ctx context.Context, ownerID, contentType string, filename *string) (PresignedUpload, error) {
	const op = "uploads.Storage.PresignUpload"

	if contentType == "" {
		return PresignedUpload{}, ErrContentTypeIsRequired
	}

	key, err := GenerateKey(s.prefix, ownerID, contentType, filename)
	if err != nil {
		return PresignedUpload{}, err
	}

	req := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if filename != nil {
		req.Metadata = map[string]string{"original-filename": *filename}
	}

	ps, err := s.presigner.PresignPutObject(ctx, req, func(po *s3.PresignOptions) {
		po.Expires = PresignExpiry
	})
	if err != nil {
		return PresignedUpload{}, fmt.Errorf("%s: presign put: %w", op, err)
	}

	return PresignedUpload{Key: key, UploadURL: ps.URL, ExpiresIn: int(PresignExpiry.Seconds())}, nil
}

func (s *Storage) PresignDownload(ctx context.Context, key string) (string, error) {
	const op = "uploads.Storage.PresignDownload"

	if err := ValidateKey(s.prefix, key); err != nil {
		return "", err
	}

	ps, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = PresignExpiry
	})
	if err != nil {
		return "", fmt.Errorf("%s: presign get: %w", op, err)
	}

	return ps.URL, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
