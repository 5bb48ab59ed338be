package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3ObjectStore keeps objects in a bucket, under an optional key prefix.
type S3ObjectStore struct {
	Client s3iface.S3API
	Bucket string
	Prefix string
}

func (s *S3ObjectStore) key(key string) string {
	if s.Prefix == "" {
		return key
	}
	return path.Join(s.Prefix, key)
}

func (s *S3ObjectStore) Open(key string) (io.ReadCloser, error) {
	rsp, err := s.Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf(
			"getting object from bucket `%s` at key `%s`: %w",
			s.Bucket,
			s.key(key),
			err,
		)
	}
	return rsp.Body, nil
}

// Exists reports whether an object is stored at key.
func (s *S3ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(key)),
	})
	if err == nil {
		return true, nil
	}
	// HEAD responses have no body, so a missing key only shows up as a
	// status code.
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf(
		"checking object in bucket `%s` at key `%s`: %w",
		s.Bucket,
		s.key(key),
		err,
	)
}

func (s *S3ObjectStore) Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(key)),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.Client.PutObjectWithContext(ctx, input); err != nil {
		return fmt.Errorf(
			"putting object in bucket `%s` at key `%s`: %w",
			s.Bucket,
			s.key(key),
			err,
		)
	}
	return nil
}
