package storage

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Role names a file within a book.
type Role string

const (
	RoleCover Role = "cover"
	RoleEbook Role = "ebook"
)

// PairRequest holds the cover and ebook of one book. A nil entry is skipped,
// which lets a resumed item upload only the file it is missing.
type PairRequest struct {
	Cover *PrepareRequest
	Ebook *PrepareRequest
}

// CompleteFunc receives each finished upload so the caller can persist it
// before the next one lands. Calls never overlap.
type CompleteFunc func(ctx context.Context, role Role, result Result) error

// UploadPair pipelines the two uploads of a book: the cover upload runs in
// the background while the ebook fee is quoted and paid, and the ebook
// upload starts once the cover upload has finished. Prepare steps use ctx
// directly so a paid fee is always confirmed even when the other upload
// fails.
func (c *Coordinator) UploadPair(ctx context.Context, req PairRequest, onComplete CompleteFunc) error {
	group, gctx := errgroup.WithContext(ctx)
	coverDone := make(chan struct{})
	var coverErr error

	if req.Cover != nil {
		outcome, err := c.Prepare(ctx, *req.Cover)
		if err != nil {
			return err
		}
		group.Go(func() error {
			defer close(coverDone)
			coverErr = c.finish(gctx, RoleCover, outcome, onComplete)
			return coverErr
		})
	} else {
		close(coverDone)
	}

	if req.Ebook != nil {
		outcome, err := c.Prepare(ctx, *req.Ebook)
		if err != nil {
			// Let a running cover upload finish and persist first.
			_ = group.Wait()
			return err
		}
		group.Go(func() error {
			select {
			case <-coverDone:
			case <-gctx.Done():
				return gctx.Err()
			}
			if coverErr != nil {
				// Already reported by the cover goroutine.
				return nil
			}
			return c.finish(gctx, RoleEbook, outcome, onComplete)
		})
	}
	return group.Wait()
}

func (c *Coordinator) finish(ctx context.Context, role Role, outcome PrepareOutcome, onComplete CompleteFunc) error {
	result, err := c.resolve(ctx, outcome)
	if err != nil {
		return err
	}
	if onComplete == nil {
		return nil
	}
	return onComplete(ctx, role, result)
}
