package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/ganot/timecard/internal/domain/timer"
	"github.com/ganot/timecard/internal/duration"
	"github.com/ganot/timecard/internal/repository"
)

// DateLayout is the calendar-date parameter format.
const DateLayout = "2006-01-02"

// ErrInvalidDate indicates a malformed report date parameter.
var ErrInvalidDate = errors.New("invalid report date")

// Service aggregates persisted durations for reporting. Internally all
// timestamps are UTC; the day bucketing here is the one place they are
// converted to the site's local timezone.
type Service struct {
	sessions SessionStore
	tasks    TaskRepository
	terms    TaxonomyLookup
	clock    timer.Clock
	site     *time.Location
	logger   *slog.Logger
}

// NewService creates a report service. site is the site-local timezone used
// for day windows; nil means UTC.
func NewService(
	sessions SessionStore,
	tasks TaskRepository,
	terms TaxonomyLookup,
	clock timer.Clock,
	site *time.Location,
	logger *slog.Logger,
) *Service {
	if clock == nil {
		clock = timer.SystemClock{}
	}
	if site == nil {
		site = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions: sessions,
		tasks:    tasks,
		terms:    terms,
		clock:    clock,
		site:     site,
		logger:   logger,
	}
}

// DailyEntries returns the user's sessions whose start time falls on the
// given calendar date in the site timezone, newest first.
func (s *Service) DailyEntries(ctx context.Context, userID int64, localDate string, filters Filters) ([]Entry, error) {
	dayStart, err := time.ParseInLocation(DateLayout, localDate, s.site)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, localDate)
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	taskIDs, err := s.tasks.TasksForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks for user: %w", err)
	}

	var entries []Entry
	for _, taskID := range taskIDs {
		task, err := s.tasks.Get(ctx, taskID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("loading task %d: %w", taskID, err)
		}
		if !filters.matches(task) {
			continue
		}

		rows, err := s.sessions.GetAll(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("loading sessions for task %d: %w", taskID, err)
		}
		for _, row := range rows {
			if row.StartTime == "" {
				continue
			}
			startAt, err := duration.ParseUTC("start_time", row.StartTime)
			if err != nil {
				s.logger.Warn("skipping session with malformed start time",
					"task", taskID, "index", row.Index, "error", err)
				continue
			}
			local := startAt.In(s.site)
			if local.Before(dayStart) || !local.Before(dayEnd) {
				continue
			}
			entry, err := s.buildEntry(ctx, task, row, startAt)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}

	sortEntriesDesc(entries)
	return entries, nil
}

// MonthlyClientSummary aggregates a client's sessions whose start falls in
// [monthStart, monthEnd], both site-local dates. Manual sessions without
// timestamps fall back to the parent task's creation date, a quirk the
// legacy report depends on.
func (s *Service) MonthlyClientSummary(ctx context.Context, clientID int64, monthStart, monthEnd string) (*ClientSummary, error) {
	from, err := time.ParseInLocation(DateLayout, monthStart, s.site)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, monthStart)
	}
	to, err := time.ParseInLocation(DateLayout, monthEnd, s.site)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, monthEnd)
	}
	to = to.AddDate(0, 0, 1)

	taskIDs, err := s.tasks.TasksForClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks for client: %w", err)
	}

	summary := &ClientSummary{}
	for _, taskID := range taskIDs {
		task, err := s.tasks.Get(ctx, taskID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("loading task %d: %w", taskID, err)
		}
		rows, err := s.sessions.GetAll(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("loading sessions for task %d: %w", taskID, err)
		}

		var taskSeconds int64
		var taskEntries int
		for _, row := range rows {
			inRange, startAt := s.rowInRange(task, row, from, to)
			if !inRange {
				continue
			}
			entry, err := s.buildEntry(ctx, task, row, startAt)
			if err != nil {
				return nil, err
			}
			summary.Entries = append(summary.Entries, entry)
			taskSeconds += entry.Seconds
			taskEntries++
		}
		// A task belongs in the summary when any session fell in range,
		// even one that tracked zero seconds.
		if taskEntries > 0 {
			summary.Tasks = append(summary.Tasks, TaskSummary{
				TaskID:  taskID,
				Title:   task.Title,
				Hours:   task.CalculatedDuration,
				Seconds: taskSeconds,
			})
			summary.Seconds += taskSeconds
		}
	}

	sortEntriesDesc(summary.Entries)
	summary.MonthTotal = duration.FormatClock(summary.Seconds)
	return summary, nil
}

// TotalDuration sums entry durations.
func (s *Service) TotalDuration(entries []Entry) (int64, string) {
	var total int64
	for _, e := range entries {
		total += e.Seconds
	}
	return total, duration.FormatClock(total)
}

func (s *Service) rowInRange(task *timer.Task, row timer.Session, from, to time.Time) (bool, time.Time) {
	if row.StartTime != "" {
		startAt, err := duration.ParseUTC("start_time", row.StartTime)
		if err != nil {
			s.logger.Warn("skipping session with malformed start time",
				"task", task.ID, "index", row.Index, "error", err)
			return false, time.Time{}
		}
		local := startAt.In(s.site)
		return !local.Before(from) && local.Before(to), startAt
	}

	// Timestampless manual entry: bucket by the parent task's creation date.
	if !row.ManualOverride || task.CreatedAt == "" {
		return false, time.Time{}
	}
	createdAt, err := duration.ParseUTC("created_at", task.CreatedAt)
	if err != nil {
		s.logger.Warn("skipping manual session with malformed task creation date",
			"task", task.ID, "index", row.Index, "error", err)
		return false, time.Time{}
	}
	local := createdAt.In(s.site)
	return !local.Before(from) && local.Before(to), createdAt
}

func (s *Service) buildEntry(ctx context.Context, task *timer.Task, row timer.Session, startAt time.Time) (Entry, error) {
	entry := Entry{
		TaskID:       task.ID,
		TaskTitle:    task.Title,
		SessionIndex: row.Index,
		SessionTitle: row.Title,
		Notes:        row.Notes,
		StartTime:    row.StartTime,
		StopTime:     row.StopTime,
	}

	switch {
	case row.ManualOverride:
		hours, err := strconv.ParseFloat(row.ManualDuration, 64)
		if err != nil {
			s.logger.Warn("manual duration unparsable, reporting zero",
				"task", task.ID, "index", row.Index, "value", row.ManualDuration)
			hours = 0
		}
		entry.Seconds = int64(hours * 3600)
	case row.StopTime != "":
		secs, err := duration.ElapsedSeconds(row.StartTime, row.StopTime)
		if err != nil {
			s.logger.Warn("elapsed time unparsable, reporting zero",
				"task", task.ID, "index", row.Index, "error", err)
		}
		entry.Seconds = secs
	default:
		entry.Running = true
		entry.Seconds = int64(s.clock.NowUTC().Sub(startAt).Seconds())
		if entry.Seconds < 0 {
			entry.Seconds = 0
		}
	}

	var err error
	if entry.Status, err = s.termName(ctx, TaxonomyStatus, task.StatusID); err != nil {
		return Entry{}, err
	}
	if entry.Client, err = s.termName(ctx, TaxonomyClient, task.ClientID); err != nil {
		return Entry{}, err
	}
	if entry.Project, err = s.termName(ctx, TaxonomyProject, task.ProjectID); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *Service) termName(ctx context.Context, taxonomy string, id int64) (string, error) {
	if id == 0 || s.terms == nil {
		return "", nil
	}
	name, err := s.terms.TermName(ctx, taxonomy, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("resolving %s term %d: %w", taxonomy, id, err)
	}
	return name, nil
}

func (f Filters) matches(task *timer.Task) bool {
	if f.StatusID != 0 && task.StatusID != f.StatusID {
		return false
	}
	if f.ClientID != 0 && task.ClientID != f.ClientID {
		return false
	}
	if f.ProjectID != 0 && task.ProjectID != f.ProjectID {
		return false
	}
	return true
}

// The persisted layout sorts lexicographically, so string comparison on
// start times is chronological.
func sortEntriesDesc(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartTime > entries[j].StartTime
	})
}
