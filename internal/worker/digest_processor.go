package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/notihub/notihub/internal/domain"
)

// digestTopN caps how many items render per category before the rest are
// collapsed into a single overflow count.
const digestTopN = 5

// DigestQueue is the subset of the Redis digest accumulator ProcessDigest
// drains.
type DigestQueue interface {
	Due(ctx context.Context, frequency domain.Frequency, now time.Time, limit int) ([]domain.DigestBatchEntry, error)
	Flush(ctx context.Context, userID uuid.UUID, frequency domain.Frequency) error
}

// ProcessDigest selects batch entries whose next-flush has passed, renders
// one summary notification per user (grouped by category, top-N items per
// category plus an overflow count), and re-enters the orchestrator as a
// digest-type, email-only send. dryRun renders and reports without flushing
// or delivering, so an operator can preview a batch before it goes out.
func (w *Worker) ProcessDigest(ctx context.Context, frequency domain.Frequency, limit int, dryRun bool) (flushed, failed int, err error) {
	due, err := w.digest.Due(ctx, frequency, w.now(), limit)
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range due {
		if len(entry.Items) == 0 {
			continue
		}
		req := renderDigestRequest(entry)
		if dryRun {
			flushed++
			continue
		}

		result, sendErr := w.engine.Send(ctx, req)
		if sendErr != nil || !result.Success {
			failed++
			w.captureError(sendErr, "process_digest_send")
			continue
		}
		if flushErr := w.digest.Flush(ctx, entry.UserID, frequency); flushErr != nil {
			w.captureError(flushErr, "process_digest_flush")
			continue
		}
		flushed++
	}
	return flushed, failed, nil
}

// renderDigestRequest groups a user's accumulated items by category, keeps
// the newest digestTopN per category, and summarizes the rest as an
// overflow count in the body.
func renderDigestRequest(entry domain.DigestBatchEntry) domain.SendRequest {
	byCategory := make(map[domain.Category][]domain.DigestItem)
	for _, item := range entry.Items {
		byCategory[item.Category] = append(byCategory[item.Category], item)
	}

	categories := make([]domain.Category, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	var body string
	for _, cat := range categories {
		items := byCategory[cat]
		sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

		shown := items
		overflow := 0
		if len(items) > digestTopN {
			shown = items[:digestTopN]
			overflow = len(items) - digestTopN
		}
		body += fmt.Sprintf("%s:\n", cat)
		for _, item := range shown {
			body += fmt.Sprintf("- %s: %s\n", item.Title, item.Body)
		}
		if overflow > 0 {
			body += fmt.Sprintf("- and %d more\n", overflow)
		}
	}

	return domain.SendRequest{
		UserID:   entry.UserID,
		Type:     domain.TypeDigest,
		Title:    fmt.Sprintf("Your %s digest", entry.Frequency),
		Body:     body,
		Priority: domain.PriorityLow,
		Channels: []domain.Channel{domain.ChannelEmail},
	}
}
