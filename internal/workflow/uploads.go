package workflow

import (
	"context"
	"fmt"
	"sync"

	"bookpub/internal/queue"
	"bookpub/internal/stage"
	"bookpub/internal/stageexec"
	"bookpub/internal/storage"
)

const uploadStageName = "uploads"

// uploadStage stores whichever of the cover and ebook the item is still
// missing and persists each result as soon as it lands.
type uploadStage struct {
	uploader  Uploader
	store     stageexec.Store
	pipelined bool
	mu        sync.Mutex
}

func (u *uploadStage) Prepare(_ context.Context, item *queue.Item) error {
	if item.CoverStorageID == "" {
		if err := stage.RequireFile(uploadStageName, "cover image "+item.CoverFilename, item.Cover); err != nil {
			return err
		}
	}
	if item.BookStorageID == "" {
		if err := stage.RequireFile(uploadStageName, "ebook "+item.EbookFilename(), item.Ebook); err != nil {
			return err
		}
	}
	return nil
}

func (u *uploadStage) Execute(ctx context.Context, item *queue.Item) error {
	if u.uploader == nil {
		return fmt.Errorf("uploads: no uploader configured")
	}
	req := u.request(item)
	record := func(ctx context.Context, role storage.Role, result storage.Result) error {
		return u.record(ctx, item, role, result)
	}

	if u.pipelined {
		return u.uploader.UploadPair(ctx, req, record)
	}
	if req.Cover != nil {
		result, err := u.uploader.Upload(ctx, *req.Cover)
		if err != nil {
			return err
		}
		if err := record(ctx, storage.RoleCover, result); err != nil {
			return err
		}
	}
	if req.Ebook != nil {
		result, err := u.uploader.Upload(ctx, *req.Ebook)
		if err != nil {
			return err
		}
		if err := record(ctx, storage.RoleEbook, result); err != nil {
			return err
		}
	}
	return nil
}

func (u *uploadStage) HealthCheck(context.Context) stage.Health {
	if u.uploader == nil {
		return stage.Unhealthy(uploadStageName, "storage client not configured")
	}
	return stage.Healthy(uploadStageName)
}

func (u *uploadStage) request(item *queue.Item) storage.PairRequest {
	var req storage.PairRequest
	if item.CoverStorageID == "" {
		req.Cover = &storage.PrepareRequest{Data: item.Cover.Data, FileType: item.Cover.ContentType}
	}
	if item.BookStorageID == "" {
		req.Ebook = &storage.PrepareRequest{
			Data:     item.Ebook.Data,
			FileType: item.Ebook.ContentType,
			Encrypt:  item.EnableDRM,
		}
	}
	return req
}

func (u *uploadStage) record(ctx context.Context, item *queue.Item, role storage.Role, result storage.Result) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch role {
	case storage.RoleCover:
		item.CoverContentID = result.ContentID
		item.CoverStorageID = result.StorageID
	case storage.RoleEbook:
		item.BookContentID = result.ContentID
		item.BookStorageID = result.StorageID
		item.BookStorageKey = result.Key
		item.BookStorageLink = result.Link
	default:
		return fmt.Errorf("uploads: unknown role %q", role)
	}
	if item.CoverStorageID != "" && item.BookStorageID != "" {
		item.Advance(queue.StageFilesUploaded)
	}
	if u.store == nil {
		return nil
	}
	if err := u.store.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("persist %s upload: %w", role, err)
	}
	return nil
}
