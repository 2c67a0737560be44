package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/voyago/tripsync/internal/api"
	"github.com/voyago/tripsync/internal/models"
)

// Media queues binary attachments (moment photos) for upload. Attachments
// are keyed by a local ref rather than an entity id because the owning
// moment may itself still carry a temp id; the drain resolves it through the
// id map once the moment's create has been replayed.
type Media struct {
	*core
	moments *Moments
}

// Attach queues a local file for upload and returns its ref.
func (s *Media) Attach(ctx context.Context, momentID int64, localPath, contentType string) (string, error) {
	now := time.Now().UTC()
	u := &models.MediaUpload{
		Ref:         uuid.NewString(),
		Kind:        models.KindMoment,
		EntityID:    momentID,
		LocalPath:   localPath,
		ContentType: contentType,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Media.Enqueue(ctx, u); err != nil {
		return "", fmt.Errorf("failed to queue upload: %w", err)
	}
	return u.Ref, nil
}

// Discard drops a queued upload without sending it.
func (s *Media) Discard(ctx context.Context, ref string) error {
	return s.store.Media.Delete(ctx, ref)
}

// Drain uploads every pending attachment. Entries whose owning moment still
// has no server id are left queued for the next run; a failed upload counts
// toward the same retry ceiling as the operation log.
func (s *Media) Drain(ctx context.Context) error {
	pending, err := s.store.Media.Pending(ctx)
	if err != nil {
		return err
	}
	for _, u := range pending {
		serverID, ok, rerr := s.store.IDMap.Resolve(ctx, u.Kind, u.EntityID)
		if rerr != nil {
			return rerr
		}
		if !ok {
			continue // the owning create has not been replayed yet
		}

		if _, serr := s.store.Media.SetStatus(ctx, u.Ref, models.StatusSyncing, ""); serr != nil {
			return serr
		}
		key, uerr := s.uploadOne(ctx, u)
		if uerr != nil {
			st, serr := s.store.Media.SetStatus(ctx, u.Ref, models.StatusFailed, uerr.Error())
			if serr != nil {
				return serr
			}
			s.log.Warn(ctx, "media upload failed", "ref", u.Ref, "status", st, "error", uerr)
			continue
		}

		// A rejected attach (conflict included) keeps the entry queued:
		// dequeuing here would orphan the uploaded blob with no record
		// ever referencing its key.
		if _, perr := s.moments.Update(ctx, serverID, api.Patch{"media_key": key}); perr != nil {
			st, serr := s.store.Media.SetStatus(ctx, u.Ref, models.StatusFailed, perr.Error())
			if serr != nil {
				return serr
			}
			s.log.Warn(ctx, "media key attach failed", "ref", u.Ref, "status", st, "error", perr)
			continue
		}
		if derr := s.store.Media.Delete(ctx, u.Ref); derr != nil {
			return derr
		}
		s.log.Info(ctx, "media uploaded", "ref", u.Ref, "key", key)
	}
	return nil
}

func (s *Media) uploadOne(ctx context.Context, u *models.MediaUpload) (string, error) {
	data, err := os.ReadFile(u.LocalPath)
	if err != nil {
		return "", fmt.Errorf("failed to read media file: %w", err)
	}

	var key string
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		slot, cerr := s.api.CreateUpload(ctx, u.ContentType)
		if cerr != nil {
			return retry.RetryableError(cerr)
		}
		if perr := s.api.PutUpload(ctx, slot.URL, data, u.ContentType); perr != nil {
			return retry.RetryableError(perr)
		}
		key = slot.Key
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}
