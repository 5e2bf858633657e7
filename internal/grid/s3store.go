package grid

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sony/gobreaker/v2"

	"github.com/weathertiles/core/internal/engine/errkind"
)

// s3API is the subset of *s3.Client used here, narrowed for testability.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store is an ObjectStore backed by an S3-compatible bucket, wrapped by
// a circuit breaker so repeated backend failures fail fast instead of
// hammering a down object store (spec.md §4.4's Transient error kind).
type S3Store struct {
	client s3API
	bucket string
	opTimeout time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// errObjectNotFound is the sentinel the Execute closure returns for a
// missing object. It's wired into IsSuccessful below so a 404 never counts
// as a breaker ConsecutiveFailure — a sparse region's absent chunks
// (spec.md §4.4) are expected, not backend distress.
var errObjectNotFound = errors.New("grid: object not found")

// NewS3Store constructs an S3Store. opTimeout bounds every GetObject call
// (object_store_op_timeout_ms, spec.md §6).
func NewS3Store(client *s3.Client, bucket string, opTimeout time.Duration) *S3Store {
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "grid-object-store",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errObjectNotFound)
		},
	})
	return &S3Store{client: client, bucket: bucket, opTimeout: opTimeout, breaker: breaker}
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	data, err := s.breaker.Execute(func() ([]byte, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if isNotFound(err) {
				return nil, errObjectNotFound
			}
			return nil, err
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	})

	if err != nil {
		if errors.Is(err, errObjectNotFound) {
			return nil, false, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, false, errkind.New(errkind.Transient, err)
		}
		return nil, false, errkind.New(errkind.Transient, err)
	}
	return data, true, nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
