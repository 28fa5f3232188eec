package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/study-notes/internal/models"
)

// recompute строит снимок целиком на момент now.
// Все источники ограничены сверху одним и тем же asOf, поэтому поля снимка согласованы между собой.
func (c *Cache) recompute(ctx context.Context, principalID string, now time.Time) (models.Snapshot, error) {
	const op = "aggregate.recompute"
	weekStart := now.Add(-c.opts.WeekWindow)

	events, err := c.sources.EventStats(ctx, principalID, weekStart, now)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	notesTotal, notesWeek, err := c.sources.NoteStats(ctx, principalID, weekStart, now)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	activityTotal, lastActivity, err := c.sources.ActivityStats(ctx, principalID, now)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	snap := models.Snapshot{
		PrincipalID:    principalID,
		CategoryCounts: make(map[models.ToolKind]int, len(models.ToolKinds)),
		WeekCounts:     make(map[models.ToolKind]int, len(models.ToolKinds)),
		NotesTotal:     notesTotal,
		NotesThisWeek:  notesWeek,
		ActivityTotal:  activityTotal,
		TokensTotal:    events.Tokens,
		TokensThisWeek: events.WeekTokens,
		ComputedAt:     now,
	}
	for _, kind := range models.ToolKinds {
		snap.CategoryCounts[kind] = 0
		snap.WeekCounts[kind] = 0
	}

	for category, count := range events.Counts {
		kind, err := models.ParseToolKind(category)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("%s: %w: %w", op, models.ErrComputeInconsistency, err)
		}
		week := events.WeekCounts[category]
		if week > count || count < 0 {
			return models.Snapshot{}, fmt.Errorf("%s: %w: %s week count %d exceeds total %d",
				op, models.ErrComputeInconsistency, category, week, count)
		}
		snap.CategoryCounts[kind] = count
		snap.WeekCounts[kind] = week
	}
	for category := range events.WeekCounts {
		if _, ok := events.Counts[category]; !ok {
			return models.Snapshot{}, fmt.Errorf("%s: %w: %s has week count without total",
				op, models.ErrComputeInconsistency, category)
		}
	}
	if events.Tokens < 0 || events.WeekTokens > events.Tokens {
		return models.Snapshot{}, fmt.Errorf("%s: %w: tokens %d/%d",
			op, models.ErrComputeInconsistency, events.WeekTokens, events.Tokens)
	}
	if notesWeek > notesTotal {
		return models.Snapshot{}, fmt.Errorf("%s: %w: notes %d/%d",
			op, models.ErrComputeInconsistency, notesWeek, notesTotal)
	}

	snap.LastActivityAt = latest(lastActivity, events.LastEventAt)
	refreshed := now
	snap.LastRefreshedAt = &refreshed
	return snap, nil
}

func latest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}
