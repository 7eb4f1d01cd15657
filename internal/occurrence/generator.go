package occurrence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/remindkit/remindkit/internal/domain"
	"github.com/remindkit/remindkit/internal/store"
)

// Generator reconciles a user's repeating task series against a date,
// creating the instances that are missing. Occurrence IDs are
// deterministic per (series, date), so concurrent runs cannot produce
// duplicates: the existence check is advisory, the ID constraint is the
// guarantee.
type Generator struct {
	tasks  store.TaskStore
	logger *slog.Logger
}

// NewGenerator creates a new Generator.
// If logger is nil, a default logger is used.
func NewGenerator(tasks store.TaskStore, logger *slog.Logger) *Generator {
	if tasks == nil {
		panic("task store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "occurrence_generator")),
	}
}

// GenerateMissing creates today's instance for every eligible repeating
// series the owner has, returning the instances that were created so the
// caller can schedule their reminders. A failure on one series is logged
// and does not stop the others; partial success is acceptable and the
// next run reconciles the remainder.
func (g *Generator) GenerateMissing(
	ctx context.Context,
	ownerID uuid.UUID,
	today string,
) ([]*domain.Task, error) {
	if !domain.ValidDate(today) {
		return nil, domain.NewValidationError("today", "must be YYYY-MM-DD", domain.ErrInvalidDate)
	}

	all, err := g.tasks.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	templates := partitionTemplates(all)
	existing := occurrenceSet(all)

	var created []*domain.Task
	for _, template := range templates {
		instance, err := g.generateForTemplate(ctx, template, today, existing)
		if err != nil {
			// Isolated per-template failure; keep going.
			g.logger.Error("failed to generate occurrence",
				"owner_id", ownerID,
				"template_id", template.ID,
				"title", template.Title,
				"error", err)
			continue
		}
		if instance != nil {
			created = append(created, instance)
		}
	}

	if len(created) > 0 {
		g.logger.Info("generated missing occurrences",
			"owner_id", ownerID,
			"today", today,
			"count", len(created))
	}
	return created, nil
}

// generateForTemplate applies the eligibility rules to one series template
// and creates today's instance when all of them pass. Returns the created
// instance, or nil when nothing was created.
func (g *Generator) generateForTemplate(
	ctx context.Context,
	template *domain.Task,
	today string,
	existing map[string]struct{},
) (*domain.Task, error) {
	// Only live repeating series with a complete rule are processed.
	if !template.IsRepeating || template.RepeatFrequency == "" || template.StartDate == "" {
		return nil, nil
	}

	// Series that have not started yet produce nothing.
	// Calendar strings compare lexically.
	if today < template.StartDate {
		return nil, nil
	}

	// End-date eligibility mirrors the rule used when a completed
	// instance spawns its successor: the template's next step must not
	// overshoot the end, and today itself must still be inside it.
	if template.RepeatEndDate != "" {
		next, err := Advance(template.StartDate, template.RepeatFrequency)
		if err != nil {
			return nil, err
		}
		if next > template.RepeatEndDate {
			return nil, nil
		}
		if today > template.RepeatEndDate {
			return nil, nil
		}
	}

	// Dates the owner explicitly removed must never reappear.
	if template.HasDeletedOccurrence(today) {
		return nil, nil
	}

	// Existence check: the in-memory set first, then the store, which
	// defends against an incomplete in-memory snapshot. Best effort: the
	// deterministic ID below closes the remaining race.
	key := occurrenceKey(template.Title, today, template.RepeatFrequency)
	if _, ok := existing[key]; ok {
		return nil, nil
	}
	exists, err := g.tasks.OccurrenceExists(
		ctx,
		template.OwnerID,
		template.Title,
		today,
		template.RepeatFrequency,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing occurrence: %w", err)
	}
	if exists {
		existing[key] = struct{}{}
		return nil, nil
	}

	instance := cloneForDate(template, today)
	created, err := g.tasks.CreateIfAbsent(ctx, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create occurrence: %w", err)
	}
	if !created {
		// A concurrent run won the race; nothing to do.
		g.logger.Debug("occurrence already created concurrently",
			"template_id", template.ID,
			"date", today)
		existing[key] = struct{}{}
		return nil, nil
	}

	existing[key] = struct{}{}
	return instance, nil
}

// SpawnNext eagerly creates the successor instance when a repeating
// instance is completed, instead of waiting for a future generation run.
// Returns the created task, or nil when the series has ended or the
// successor already exists.
func (g *Generator) SpawnNext(
	ctx context.Context,
	completed *domain.Task,
	today string,
) (*domain.Task, error) {
	if !completed.IsRepeating || completed.RepeatFrequency == "" {
		return nil, nil
	}

	next, err := Advance(completed.StartDate, completed.RepeatFrequency)
	if err != nil {
		return nil, fmt.Errorf("failed to compute next occurrence date: %w", err)
	}

	if completed.RepeatEndDate != "" && next > completed.RepeatEndDate {
		return nil, nil
	}
	if next < today {
		return nil, nil
	}

	instance := cloneForDate(completed, next)
	created, err := g.tasks.CreateIfAbsent(ctx, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create successor occurrence: %w", err)
	}
	if !created {
		return nil, nil
	}

	g.logger.Info("spawned successor occurrence",
		"owner_id", completed.OwnerID,
		"series_id", instance.SeriesID,
		"date", next)
	return instance, nil
}

// cloneForDate builds a fresh instance of a series for the given date,
// copying the series content from the source instance.
func cloneForDate(source *domain.Task, date string) *domain.Task {
	seriesID := source.SeriesID
	if seriesID == uuid.Nil {
		// Legacy series without an explicit ID adopt the source instance's
		// ID as the series identity going forward.
		seriesID = source.ID
	}

	now := time.Now().UTC()
	return &domain.Task{
		ID:              domain.OccurrenceID(seriesID, date),
		OwnerID:         source.OwnerID,
		SeriesID:        seriesID,
		Title:           source.Title,
		Description:     source.Description,
		Tags:            append([]string(nil), source.Tags...),
		Priority:        source.Priority,
		StartDate:       date,
		StartTime:       source.StartTime,
		IsRepeating:     true,
		RepeatFrequency: source.RepeatFrequency,
		RepeatEndDate:   source.RepeatEndDate,
		Status:          domain.TaskStatusTodo,
		Completed:       false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// partitionTemplates groups tasks into series and returns each series'
// template: the instance with the minimum start date. Series identity is
// the explicit SeriesID where present, otherwise the derived
// (title, frequency) key for rows predating series IDs.
func partitionTemplates(tasks []*domain.Task) []*domain.Task {
	groups := make(map[string]*domain.Task)
	var order []string
	for _, t := range tasks {
		key := seriesKey(t)
		current, ok := groups[key]
		if !ok {
			groups[key] = t
			order = append(order, key)
			continue
		}
		if t.StartDate < current.StartDate {
			groups[key] = t
		}
	}

	templates := make([]*domain.Task, 0, len(groups))
	for _, key := range order {
		templates = append(templates, groups[key])
	}
	return templates
}

// seriesKey derives the partition key for a task.
func seriesKey(t *domain.Task) string {
	if t.SeriesID != uuid.Nil {
		return t.SeriesID.String()
	}
	return t.Title + "\x00" + string(t.RepeatFrequency)
}

// occurrenceSet indexes the known instances by (title, date, frequency)
// for the in-memory half of the existence check.
func occurrenceSet(tasks []*domain.Task) map[string]struct{} {
	set := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		set[occurrenceKey(t.Title, t.StartDate, t.RepeatFrequency)] = struct{}{}
	}
	return set
}

func occurrenceKey(title, date string, frequency domain.Frequency) string {
	return title + "\x00" + date + "\x00" + string(frequency)
}
