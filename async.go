package blobcache

import "context"

// LoadResult is the outcome of LoadAsync.
type LoadResult struct {
	Data []byte
	Err  error
}

// SaveAsync runs Save in the background. The returned channel receives exactly
// one value and is then closed.
func (c *BlobCache) SaveAsync(ctx context.Context, id string, data []byte) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- c.Save(ctx, id, data)
	}()
	return ch
}

// LoadAsync runs Load in the background. The returned channel receives exactly
// one value and is then closed.
func (c *BlobCache) LoadAsync(ctx context.Context, id string) <-chan LoadResult {
	ch := make(chan LoadResult, 1)
	go func() {
		defer close(ch)
		data, err := c.Load(ctx, id)
		ch <- LoadResult{Data: data, Err: err}
	}()
	return ch
}

// RemoveAsync runs Remove in the background. The returned channel receives
// exactly one value and is then closed.
func (c *BlobCache) RemoveAsync(ctx context.Context, id string) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- c.Remove(ctx, id)
	}()
	return ch
}
