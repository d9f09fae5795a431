package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/translation"
)

// dynamicContentTranslationTTL is how long a drained translation stays
// valid in dynamic_content_translations before a re-queue is needed.
const dynamicContentTranslationTTL = 30 * 24 * time.Hour

// TranslationQueueRepository is the subset of the data-access layer
// ProcessTranslationQueue needs.
type TranslationQueueRepository interface {
	TranslationQueueClaim(ctx context.Context, limit int) ([]domain.TranslationQueueItem, error)
	TranslationQueueMarkStatus(ctx context.Context, id uuid.UUID, status domain.QueueItemStatus, attempts int, lastError string) error
	SaveDynamicContentTranslation(ctx context.Context, contentHash, locale, translatedText string, expiresAt time.Time) error
}

// TranslationEngine is the subset of the translation engine
// ProcessTranslationQueue drains requests through.
type TranslationEngine interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (translation.Result, error)
}

// WithTranslation attaches the translation queue repository and engine a
// Worker needs to drain queued dynamic-content translations. A Worker built
// without calling this treats ProcessTranslationQueue as a no-op, so a
// deployment that only sends notifications doesn't need to wire it.
func (w *Worker) WithTranslation(repo TranslationQueueRepository, engine TranslationEngine) *Worker {
	w.translationQueue = repo
	w.translator = engine
	return w
}

// ProcessTranslationQueue drains up to limit pending dynamic-content
// translation requests, running each through the fallback chain and
// persisting the result so the next read of that content in that locale is
// served from dynamic_content_translations instead of translating again.
func (w *Worker) ProcessTranslationQueue(ctx context.Context, limit int) (completed, failed int, err error) {
	if w.translationQueue == nil || w.translator == nil {
		return 0, 0, nil
	}

	items, err := w.translationQueue.TranslationQueueClaim(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	for _, item := range items {
		result, translateErr := w.translator.Translate(ctx, item.SourceText, item.SourceLocale, item.TargetLocale)
		if translateErr != nil {
			failed++
			w.captureError(translateErr, "process_translation_queue")
			if markErr := w.translationQueue.TranslationQueueMarkStatus(ctx, item.ID, domain.QueueItemFailed, item.Attempts+1, translateErr.Error()); markErr != nil {
				w.captureError(markErr, "mark_translation_queue_item_status")
			}
			continue
		}

		hash := contentHash(item.ContentType, item.ContentID, item.FieldName)
		if saveErr := w.translationQueue.SaveDynamicContentTranslation(ctx, hash, item.TargetLocale, result.Text, w.now().Add(dynamicContentTranslationTTL)); saveErr != nil {
			failed++
			w.captureError(saveErr, "save_dynamic_content_translation")
			continue
		}
		if markErr := w.translationQueue.TranslationQueueMarkStatus(ctx, item.ID, domain.QueueItemCompleted, item.Attempts+1, ""); markErr != nil {
			w.captureError(markErr, "mark_translation_queue_item_status")
		}
		completed++
	}
	return completed, failed, nil
}

// contentHash identifies a piece of dynamic content independent of its
// current text, so re-queuing the same field after an edit still resolves
// to the same dynamic_content_translations row.
func contentHash(contentType, contentID, fieldName string) string {
	sum := sha256.Sum256([]byte(contentType + ":" + contentID + ":" + fieldName))
	return hex.EncodeToString(sum[:])
}
