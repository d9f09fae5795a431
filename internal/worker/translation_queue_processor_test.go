package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/translation"
)

type fakeTranslationQueueRepo struct {
	items      []domain.TranslationQueueItem
	claimErr   error
	markedID   uuid.UUID
	markStatus domain.QueueItemStatus
	markErr    error
	saveErr    error
	savedHash  string
	savedLoc   string
}

func (f *fakeTranslationQueueRepo) TranslationQueueClaim(ctx context.Context, limit int) ([]domain.TranslationQueueItem, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return f.items, nil
}

func (f *fakeTranslationQueueRepo) TranslationQueueMarkStatus(ctx context.Context, id uuid.UUID, status domain.QueueItemStatus, attempts int, lastError string) error {
	f.markedID = id
	f.markStatus = status
	return f.markErr
}

func (f *fakeTranslationQueueRepo) SaveDynamicContentTranslation(ctx context.Context, contentHash, locale, translatedText string, expiresAt time.Time) error {
	f.savedHash = contentHash
	f.savedLoc = locale
	return f.saveErr
}

type fakeTranslationEngine struct {
	result translation.Result
	err    error
}

func (f *fakeTranslationEngine) Translate(ctx context.Context, text, sourceLang, targetLang string) (translation.Result, error) {
	return f.result, f.err
}

func TestProcessTranslationQueue_NoopWithoutWiring(t *testing.T) {
	w := newTestWorker(&fakeSender{}, nil, nil)

	completed, failed, err := w.ProcessTranslationQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 0, failed)
}

func TestProcessTranslationQueue_CompletesAndSaves(t *testing.T) {
	item := domain.TranslationQueueItem{
		ID: uuid.New(), ContentType: "listing", ContentID: "42", FieldName: "description",
		SourceText: "hello", SourceLocale: "en", TargetLocale: "es",
	}
	repo := &fakeTranslationQueueRepo{items: []domain.TranslationQueueItem{item}}
	engine := &fakeTranslationEngine{result: translation.Result{Text: "hola", Provider: "deepl", Score: 0.9}}
	w := newTestWorker(&fakeSender{}, nil, nil).WithTranslation(repo, engine)

	completed, failed, err := w.ProcessTranslationQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)
	assert.Equal(t, domain.QueueItemCompleted, repo.markStatus)
	assert.Equal(t, "es", repo.savedLoc)
	assert.NotEmpty(t, repo.savedHash)
}

func TestProcessTranslationQueue_TranslateErrorMarksFailed(t *testing.T) {
	item := domain.TranslationQueueItem{ID: uuid.New(), ContentType: "listing", ContentID: "1", FieldName: "title", TargetLocale: "fr"}
	repo := &fakeTranslationQueueRepo{items: []domain.TranslationQueueItem{item}}
	engine := &fakeTranslationEngine{err: errors.New("all providers down")}
	w := newTestWorker(&fakeSender{}, nil, nil).WithTranslation(repo, engine)

	completed, failed, err := w.ProcessTranslationQueue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, domain.QueueItemFailed, repo.markStatus)
}

func TestProcessTranslationQueue_ClaimErrorPropagates(t *testing.T) {
	repo := &fakeTranslationQueueRepo{claimErr: errors.New("db down")}
	w := newTestWorker(&fakeSender{}, nil, nil).WithTranslation(repo, &fakeTranslationEngine{})

	_, _, err := w.ProcessTranslationQueue(context.Background(), 10)
	assert.Error(t, err)
}
