package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/seawatch-io/seawatch/internal/pkg/metrics"
	"github.com/seawatch-io/seawatch/pkg/log"
	"github.com/seawatch-io/seawatch/pkg/options"
)

type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// NewMinioClient connects to the object store and makes sure the bucket exists.
func NewMinioClient(ctx context.Context, opts *options.S3Options) (*minio.Client, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		log.Info("Bucket does not exist, creating...", "bucket", opts.BucketName)
		if err := client.MakeBucket(ctx, opts.BucketName, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return client, nil
}

// S3Writer batches records into newline-delimited JSON objects. A batch is
// written when it reaches flushSize records or every flushInterval,
// whichever comes first.
type S3Writer struct {
	client        objectPutter
	bucket        string
	prefix        string
	flushSize     int
	flushInterval time.Duration

	// inputCh decouples Write from object uploads.
	inputCh chan Record
	batch   []Record

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	logger log.Logger
}

// NewS3Writer starts the batching loop and returns the writer.
func NewS3Writer(client objectPutter, bucket, prefix string, flushInterval time.Duration, flushSize int) *S3Writer {
	if flushSize <= 0 {
		flushSize = 1000
	}
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}
	w := &S3Writer{
		client:        client,
		bucket:        bucket,
		prefix:        prefix,
		flushSize:     flushSize,
		flushInterval: flushInterval,
		inputCh:       make(chan Record, flushSize*2),
		batch:         make([]Record, 0, flushSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		logger:        log.WithName("audit").WithValues("backend", "s3", "bucket", bucket),
	}
	go w.run()
	return w
}

func (w *S3Writer) Name() string { return "s3" }

// Write queues r for the next batch. It fails only when the batch buffer is full.
func (w *S3Writer) Write(_ context.Context, r Record) error {
	select {
	case w.inputCh <- r:
		return nil
	default:
		return fmt.Errorf("s3 batch buffer full, record for %s dropped", r.VehicleID)
	}
}

// Close stops the loop and uploads the final partial batch.
func (w *S3Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() { close(w.stop) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *S3Writer) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	w.logger.Info("S3 audit pipeline started", "interval", w.flushInterval, "size", w.flushSize)

	for {
		select {
		case r := <-w.inputCh:
			w.batch = append(w.batch, r)
			if len(w.batch) >= w.flushSize {
				w.flush()
			}

		case <-ticker.C:
			if len(w.batch) > 0 {
				w.flush()
			}

		case <-w.stop:
			for {
				select {
				case r := <-w.inputCh:
					w.batch = append(w.batch, r)
					if len(w.batch) >= w.flushSize {
						w.flush()
					}
				default:
					if len(w.batch) > 0 {
						w.flush()
					}
					return
				}
			}
		}
	}
}

// flush uploads the current batch as one object. A failed upload is
// logged and the batch discarded.
func (w *S3Writer) flush() {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range w.batch {
		if err := enc.Encode(r); err != nil {
			w.logger.Error(err, "Failed to encode audit record", "vehicle", r.VehicleID)
		}
	}
	count := len(w.batch)
	w.batch = w.batch[:0]

	key := w.objectKey(time.Now().UTC())
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := w.client.PutObject(ctx, w.bucket, key, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		metrics.AuditFailures.WithLabelValues(w.Name()).Add(float64(count))
		w.logger.Error(err, "Failed to upload audit batch", "key", key, "records", count)
		return
	}
	w.logger.Debug("Audit batch uploaded", "key", key, "records", count)
}

// objectKey returns {prefix}/YYYY/MM/DD/{unix-nanos}-{uuid}.ndjson.
func (w *S3Writer) objectKey(now time.Time) string {
	name := fmt.Sprintf("%d-%s.ndjson", now.UnixNano(), uuid.NewString()[:8])
	return path.Join(w.prefix, now.Format("2006/01/02"), name)
}
