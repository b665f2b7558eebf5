package attachment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Source serves references as object keys in one bucket. References given as
// "s3://bucket/key" or "https://bucket.s3.amazonaws.com/key" URLs are reduced to their key.
type S3Source struct {
	bucket     string
	downloader *s3manager.Downloader
}

func NewS3Source(region, bucket string) (*S3Source, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3Source{bucket: bucket, downloader: s3manager.NewDownloader(sess)}, nil
}

func (s *S3Source) Open(ctx context.Context, ref string) ([]byte, error) {
	key := s.objectKey(ref)
	if key == "" {
		return nil, ErrNotFound
	}

	buf := aws.NewWriteAtBuffer(nil)
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("download s3://%s/%s: %w", s.bucket, key, err)
	}
	return buf.Bytes(), nil
}

func (s *S3Source) objectKey(ref string) string {
	ref = strings.TrimSpace(ref)
	for _, prefix := range []string{
		"s3://" + s.bucket + "/",
		"https://" + s.bucket + ".s3.amazonaws.com/",
	} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix)
		}
	}
	return strings.TrimPrefix(ref, "/")
}
