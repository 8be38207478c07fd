package transfer

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/objstream/objstream/pkg/backend"
)

// memBackend is an in-memory backend.Backend for engine tests. Hooks allow
// per-range delays and injected failures to exercise ordering and
// error-propagation behavior.
type memBackend struct {
	mu      sync.Mutex
	objects map[string][]byte

	listCalls     atomic.Int64
	getRangeCalls atomic.Int64

	// rangeDelay, when set, returns how long a GetRange for the given
	// start offset should sleep before returning.
	rangeDelay func(start int64) time.Duration

	// rangeErr, when set, can fail specific ranges.
	rangeErr func(start, end int64) error

	// pageSize forces list pagination when > 0.
	pageSize int

	// multipartErr fails part uploads when set.
	multipartErr error
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}}
}

func (m *memBackend) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

func (m *memBackend) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

func (m *memBackend) Put(ctx context.Context, key string, data []byte) error {
	m.put(key, data)
	return nil
}

func (m *memBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.get(key)
	if !ok {
		return nil, m.notFound("Get", key)
	}
	return append([]byte(nil), data...), nil
}

func (m *memBackend) GetRange(ctx context.Context, key string, start, end int64) ([]byte, error) {
	m.getRangeCalls.Add(1)
	if m.rangeDelay != nil {
		time.Sleep(m.rangeDelay(start))
	}
	if m.rangeErr != nil {
		if err := m.rangeErr(start, end); err != nil {
			return nil, err
		}
	}

	data, ok := m.get(key)
	if !ok {
		return nil, m.notFound("GetRange", key)
	}
	if start < 0 || end > int64(len(data)) || start >= end {
		return nil, &backend.BackendError{
			Op: "GetRange", Provider: backend.KindS3, Bucket: "test", Key: key,
			Err: backend.ErrNotFound,
		}
	}
	return append([]byte(nil), data[start:end]...), nil
}

func (m *memBackend) Head(ctx context.Context, key string) (*backend.ObjectMeta, error) {
	data, ok := m.get(key)
	if !ok {
		return nil, m.notFound("Head", key)
	}
	return &backend.ObjectMeta{Key: key, Size: int64(len(data))}, nil
}

func (m *memBackend) ListWithDelimiter(ctx context.Context, opts backend.ListOptions) (*backend.ListPage, error) {
	m.listCalls.Add(1)

	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = "/"
	}

	m.mu.Lock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	sort.Strings(keys)

	var objs []backend.ObjectMeta
	var prefixes []string
	seenPrefix := map[string]bool{}
	for _, k := range keys {
		if !strings.HasPrefix(k, opts.Prefix) {
			continue
		}
		rest := k[len(opts.Prefix):]
		if i := strings.Index(rest, delimiter); i >= 0 {
			child := opts.Prefix + rest[:i+1]
			if !seenPrefix[child] {
				seenPrefix[child] = true
				prefixes = append(prefixes, child)
			}
			continue
		}
		m.mu.Lock()
		size := int64(len(m.objects[k]))
		m.mu.Unlock()
		objs = append(objs, backend.ObjectMeta{Key: k, Size: size})
	}

	// Paginate over objects. Common prefixes ride on the first page.
	start := 0
	if opts.ContinuationToken != "" {
		start, _ = strconv.Atoi(opts.ContinuationToken)
		prefixes = nil
	}
	pageSize := len(objs)
	if m.pageSize > 0 && m.pageSize < pageSize {
		pageSize = m.pageSize
	}
	if opts.MaxKeys > 0 && opts.MaxKeys < pageSize {
		pageSize = opts.MaxKeys
	}
	end := start + pageSize
	if end > len(objs) {
		end = len(objs)
	}

	page := &backend.ListPage{
		Objects:        objs[start:end],
		CommonPrefixes: prefixes,
	}
	if end < len(objs) {
		page.IsTruncated = true
		page.ContinuationToken = strconv.Itoa(end)
	}
	return page, nil
}

func (m *memBackend) PutMultipart(ctx context.Context, key string) (backend.MultipartWriter, error) {
	return &memMultipartWriter{backend: m, key: key}, nil
}

func (m *memBackend) Close() error {
	return nil
}

func (m *memBackend) notFound(op, key string) error {
	return &backend.BackendError{
		Op: op, Provider: backend.KindS3, Bucket: "test", Key: key,
		Err: backend.ErrNotFound,
	}
}

// memMultipartWriter commits parts in write order at Finish time.
type memMultipartWriter struct {
	backend *memBackend
	key     string

	mu      sync.Mutex
	parts   [][]byte
	aborted bool
}

func (w *memMultipartWriter) WaitForCapacity(ctx context.Context, n int) error {
	if w.backend.multipartErr != nil {
		return w.backend.multipartErr
	}
	return ctx.Err()
}

func (w *memMultipartWriter) Write(p []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.parts = append(w.parts, append([]byte(nil), p...))
}

func (w *memMultipartWriter) Finish(ctx context.Context) error {
	if w.backend.multipartErr != nil {
		return w.backend.multipartErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var data []byte
	for _, part := range w.parts {
		data = append(data, part...)
	}
	w.backend.put(w.key, data)
	return nil
}

func (w *memMultipartWriter) Abort(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.aborted = true
	w.parts = nil
	return nil
}
