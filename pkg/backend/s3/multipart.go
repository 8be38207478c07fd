package s3

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/objstream/objstream/pkg/backend"
)

// PutMultipart begins a multipart upload session for key.
func (b *Backend) PutMultipart(ctx context.Context, key string) (backend.MultipartWriter, error) {
	out, err := b.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, b.wrapError("PutMultipart", key, err)
	}

	w := &multipartWriter{
		backend:  b,
		key:      key,
		uploadID: aws.ToString(out.UploadId),
	}
	w.cond = sync.NewCond(&w.mu)
	return w, nil
}

// multipartWriter uploads parts concurrently. Parts are numbered in Write
// order; completion order is unordered and resolved at Finish time by
// sorting the completed-part list.
type multipartWriter struct {
	backend  *Backend
	key      string
	uploadID string

	mu       sync.Mutex
	cond     *sync.Cond
	inflight int
	nextPart int32
	parts    []types.CompletedPart
	err      error

	wg sync.WaitGroup
}

// WaitForCapacity blocks until fewer than n parts are in flight, or a
// queued part has failed, or ctx is done.
func (w *multipartWriter) WaitForCapacity(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}

	stop := context.AfterFunc(ctx, func() {
		w.mu.Lock()
		w.cond.Broadcast()
		w.mu.Unlock()
	})
	defer stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	for w.inflight >= n && w.err == nil && ctx.Err() == nil {
		w.cond.Wait()
	}
	if w.err != nil {
		return w.err
	}
	return ctx.Err()
}

// Write queues p as the next part. The slice is copied; the caller may reuse
// its buffer immediately. Part failures surface on the next WaitForCapacity
// or on Finish.
func (w *multipartWriter) Write(p []byte) {
	data := make([]byte, len(p))
	copy(data, p)

	w.mu.Lock()
	w.nextPart++
	partNumber := w.nextPart
	w.inflight++
	w.mu.Unlock()

	w.wg.Add(1)
	go w.uploadPart(partNumber, data)
}

func (w *multipartWriter) uploadPart(partNumber int32, data []byte) {
	defer w.wg.Done()

	out, err := w.backend.client.UploadPart(context.Background(), &s3.UploadPartInput{
		Bucket:        aws.String(w.backend.bucket),
		Key:           aws.String(w.key),
		UploadId:      aws.String(w.uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	w.inflight--
	if err != nil {
		if w.err == nil {
			w.err = w.backend.wrapError("UploadPart", w.key, err)
		}
	} else {
		w.parts = append(w.parts, types.CompletedPart{
			ETag:       out.ETag,
			PartNumber: aws.Int32(partNumber),
		})
	}
	w.cond.Broadcast()
}

// Finish waits for all queued parts and commits the upload. Any part failure
// aborts the whole upload.
func (w *multipartWriter) Finish(ctx context.Context) error {
	w.wg.Wait()

	w.mu.Lock()
	err := w.err
	parts := w.parts
	w.mu.Unlock()

	if err != nil {
		_ = w.Abort(ctx)
		return err
	}

	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})

	_, err = w.backend.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(w.backend.bucket),
		Key:             aws.String(w.key),
		UploadId:        aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return w.backend.wrapError("CompleteMultipartUpload", w.key, err)
	}
	return nil
}

// Abort cancels the upload. Partially uploaded parts become the backend's
// garbage to collect.
func (w *multipartWriter) Abort(ctx context.Context) error {
	_, err := w.backend.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.backend.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
	if err != nil {
		return w.backend.wrapError("AbortMultipartUpload", w.key, err)
	}
	return nil
}
