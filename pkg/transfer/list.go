package transfer

import (
	"context"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/objstream/objstream/pkg/backend"
)

// UnlimitedDepth disables the depth bound on recursive listing.
const UnlimitedDepth = -1

// ListRecursiveOptions configures a recursive listing traversal.
type ListRecursiveOptions struct {
	// Limit caps the number of objects returned. Zero is unlimited.
	Limit int

	// Suffix keeps only objects whose key ends with this value.
	Suffix string

	// Pattern keeps only objects whose key matches this doublestar glob.
	Pattern string

	// MaxDepth bounds how many directory levels below the seed prefixes are
	// expanded. Zero expands nothing beyond the seeds; UnlimitedDepth (or
	// any negative value) removes the bound.
	MaxDepth int

	// MaxConcurrency bounds outstanding directory listings. Zero uses
	// backend.DefaultMaxConcurrency.
	MaxConcurrency int

	// Delimiter groups keys. Empty defaults to "/".
	Delimiter string

	// Logger receives per-operation debug logs. Nil is silent.
	Logger *zap.Logger
}

func (o *ListRecursiveOptions) normalize() {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = backend.DefaultMaxConcurrency
	}
	if o.Delimiter == "" {
		o.Delimiter = "/"
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// ListResult holds the merged outcome of a recursive listing. Objects and
// Directories are each sorted by key and deduplicated within their category.
type ListResult struct {
	Objects     []backend.ObjectMeta
	Directories []backend.ObjectMeta
}

// frontierEntry is one not-yet-expanded prefix in the traversal.
type frontierEntry struct {
	prefix string
	depth  int
}

// listOutcome is one completed single-directory listing.
type listOutcome struct {
	depth    int
	objects  []backend.ObjectMeta
	children []string
	err      error
}

// ListRecursive walks the tree under the seed prefixes breadth-first with a
// bounded window of outstanding delimiter listings.
//
// New work is admitted continuously as slots free up rather than in fixed
// batches. Traversal order carries no guarantee; the final result is sorted
// by key and truncated to the limit. Once the running object count reaches
// the limit no further work is issued, so the traversal does not enumerate
// the whole tree to satisfy a small limit.
func ListRecursive(ctx context.Context, b backend.Backend, prefixes []string, opts ListRecursiveOptions) (*ListResult, error) {
	opts.normalize()

	if len(prefixes) == 0 {
		prefixes = []string{""}
	}
	frontier := make([]frontierEntry, 0, len(prefixes))
	for _, p := range prefixes {
		frontier = append(frontier, frontierEntry{prefix: p, depth: 0})
	}

	results := make(chan listOutcome, opts.MaxConcurrency)
	outstanding := 0

	var objects, directories []backend.ObjectMeta
	seenObjects := make(map[string]bool)
	seenDirs := make(map[string]bool)

	var firstErr error
	stopped := false

	for len(frontier) > 0 || outstanding > 0 {
		for !stopped && outstanding < opts.MaxConcurrency && len(frontier) > 0 {
			entry := frontier[0]
			frontier = frontier[1:]
			outstanding++

			remaining := 0
			if opts.Limit > 0 {
				remaining = opts.Limit - len(objects)
			}
			go func(entry frontierEntry, remaining int) {
				objs, children, err := listOne(ctx, b, entry.prefix, remaining, opts)
				results <- listOutcome{depth: entry.depth, objects: objs, children: children, err: err}
			}(entry, remaining)
		}
		if outstanding == 0 {
			break
		}

		out := <-results
		outstanding--

		if out.err != nil {
			if firstErr == nil {
				firstErr = out.err
				stopped = true
			}
			continue
		}
		if firstErr != nil {
			continue
		}

		for _, obj := range out.objects {
			if seenObjects[obj.Key] {
				continue
			}
			seenObjects[obj.Key] = true
			objects = append(objects, obj)
		}
		for _, child := range out.children {
			if seenDirs[child] {
				continue
			}
			seenDirs[child] = true
			directories = append(directories, backend.ObjectMeta{Key: child})

			// A directory discovered at depth d is only expanded when
			// d < MaxDepth; its own objects were already included above.
			if opts.MaxDepth < 0 || out.depth < opts.MaxDepth {
				frontier = append(frontier, frontierEntry{prefix: child, depth: out.depth + 1})
			}
		}

		if opts.Limit > 0 && len(objects) >= opts.Limit {
			stopped = true
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	sort.Slice(directories, func(i, j int) bool { return directories[i].Key < directories[j].Key })
	if opts.Limit > 0 && len(objects) > opts.Limit {
		objects = objects[:opts.Limit]
	}
	if opts.Limit > 0 && len(directories) > opts.Limit {
		directories = directories[:opts.Limit]
	}

	opts.Logger.Debug("recursive listing complete",
		zap.Int("objects", len(objects)), zap.Int("directories", len(directories)))
	return &ListResult{Objects: objects, Directories: directories}, nil
}

// listOne lists a single directory level, non-recursively, applying the key
// filters and the remaining-limit hint.
func listOne(ctx context.Context, b backend.Backend, prefix string, remaining int, opts ListRecursiveOptions) ([]backend.ObjectMeta, []string, error) {
	var objects []backend.ObjectMeta
	var children []string
	var token string

	for {
		maxKeys := 0
		if remaining > 0 {
			maxKeys = remaining - len(objects)
		}
		page, err := b.ListWithDelimiter(ctx, backend.ListOptions{
			Prefix:            prefix,
			Delimiter:         opts.Delimiter,
			ContinuationToken: token,
			MaxKeys:           maxKeys,
		})
		if err != nil {
			return nil, nil, err
		}

		for _, obj := range page.Objects {
			if !matchKey(obj.Key, opts) {
				continue
			}
			objects = append(objects, obj)
		}
		children = append(children, page.CommonPrefixes...)

		if remaining > 0 && len(objects) >= remaining {
			return objects, children, nil
		}
		if !page.IsTruncated || page.ContinuationToken == "" {
			return objects, children, nil
		}
		token = page.ContinuationToken
	}
}

func matchKey(key string, opts ListRecursiveOptions) bool {
	if opts.Suffix != "" && !strings.HasSuffix(key, opts.Suffix) {
		return false
	}
	if opts.Pattern != "" {
		ok, err := doublestar.Match(opts.Pattern, key)
		if err != nil || !ok {
			return false
		}
	}
	return true
}
