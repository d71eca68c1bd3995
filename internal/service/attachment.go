package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"monogest/backend/internal/domain"
	"monogest/backend/internal/objectstore"
)

// UploadFile is one outbound file as received from the transport layer.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Content     []byte
}

func (f UploadFile) size() int64 {
	if f.Size > 0 {
		return f.Size
	}
	return int64(len(f.Content))
}

// AttachmentGateway validates and uploads outbound files and resolves
// download URLs for stored ones.
type AttachmentGateway struct {
	store objectstore.ObjectStore
	rules domain.FileRules
	log   *zap.Logger
}

// NewAttachmentGateway creates a gateway bound to one rule set. Call sites
// with different ceilings (logos) get their own gateway over the same store.
func NewAttachmentGateway(store objectstore.ObjectStore, rules domain.FileRules, log *zap.Logger) *AttachmentGateway {
	return &AttachmentGateway{store: store, rules: rules, log: log}
}

// Validate is the pure pre-upload check: MIME allow-list and size ceiling,
// no I/O. The returned kind is kept on the attachment row.
func (g *AttachmentGateway) Validate(file UploadFile) domain.FileValidation {
	return g.rules.CheckFile(file.Name, file.ContentType, file.size())
}

// UploadAll validates every file, then uploads them in parallel. All
// uploads must succeed before any message may reference them: on the first
// failure the already-written blobs of this send are deleted and the whole
// send aborts.
func (g *AttachmentGateway) UploadAll(ctx context.Context, ownerContext string, files []UploadFile) ([]*domain.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}

	attachments := make([]*domain.Attachment, len(files))
	base := time.Now().UTC().UnixNano()
	for i, file := range files {
		result := g.Validate(file)
		if !result.Valid {
			return nil, fmt.Errorf("%w: %s: %s", ErrValidation, file.Name, result.Reason)
		}
		attachments[i] = &domain.Attachment{
			ID:             uuid.NewString(),
			Filename:       file.Name,
			ContentType:    file.ContentType,
			Size:           file.size(),
			StorageLocator: buildLocator(ownerContext, "attachment", base+int64(i), file.Name),
			Kind:           result.Kind,
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for i := range files {
		group.Go(func() error {
			att := attachments[i]
			if err := g.store.Put(groupCtx, att.StorageLocator, files[i].Content, att.ContentType); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrUpload, att.Filename, err)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		g.Discard(attachments)
		return nil, err
	}
	return attachments, nil
}

// ResolveDownloadURL resolves a storage locator to a fetchable URL.
func (g *AttachmentGateway) ResolveDownloadURL(locator string) string {
	return g.store.PublicURL(locator)
}

// SweepOrphans deletes blobs under the prefix whose locators no message
// references. Meant for an operator cron, not for request paths: a crash
// between upload and message creation can leave blobs behind.
func (g *AttachmentGateway) SweepOrphans(ctx context.Context, prefix string, referenced map[string]bool) (int, error) {
	locators, err := g.store.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, locator := range locators {
		if referenced[locator] {
			continue
		}
		if err := g.store.Delete(ctx, locator); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Discard best-effort deletes the blobs of an aborted send (the
// compensation step of the two-phase send). Failures are logged only: the
// orphan sweep picks up whatever remains.
func (g *AttachmentGateway) Discard(attachments []*domain.Attachment) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, att := range attachments {
		if err := g.store.Delete(ctx, att.StorageLocator); err != nil {
			g.log.Warn("failed to clean up aborted upload",
				zap.String("locator", att.StorageLocator),
				zap.Error(err))
		}
	}
}

func buildLocator(ownerContext, purpose string, ts int64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%s_%d%s", ownerContext, purpose, ts, ext)
}
