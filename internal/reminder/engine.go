package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/viveksharma1514/UniVerse/internal/metrics"
	"github.com/viveksharma1514/UniVerse/internal/models"
	"github.com/viveksharma1514/UniVerse/internal/notify"
	"github.com/viveksharma1514/UniVerse/internal/store"
)

// Config tunes the sweep. Zero values fall back to the portal defaults.
type Config struct {
	Interval            time.Duration // tick period
	MeetingWindowStart  time.Duration // meetings starting at least this far out
	MeetingWindowEnd    time.Duration // ...and at most this far out
	AttendanceThreshold float64
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	if c.MeetingWindowStart <= 0 {
		c.MeetingWindowStart = 5 * time.Minute
	}
	if c.MeetingWindowEnd <= 0 {
		c.MeetingWindowEnd = 35 * time.Minute
	}
	if c.AttendanceThreshold <= 0 {
		c.AttendanceThreshold = 75
	}
}

// Engine periodically scans for upcoming meetings, due assignments and
// low-attendance students and synthesizes notifier calls. It carries no
// state of its own: idempotence across overlapping sweep windows comes
// entirely from the notifier's duplicate-suppression window.
type Engine struct {
	store    store.DataStore
	notifier *notify.Service
	log      zerolog.Logger
	cfg      Config
}

// NewEngine creates a reminder engine.
func NewEngine(ds store.DataStore, notifier *notify.Service, log zerolog.Logger, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		store:    ds,
		notifier: notifier,
		log:      log.With().Str("component", "reminder").Logger(),
		cfg:      cfg,
	}
}

// Run ticks at a fixed rate until the context is cancelled. Scheduling is
// wall-clock: a slow sweep does not delay the next tick.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info().Dur("interval", e.cfg.Interval).Msg("reminder engine started")

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("reminder engine stopped")
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep runs the three sub-sweeps. Each is isolated: a failing query in one
// category is logged and the others still run in the same tick.
func (e *Engine) Sweep(ctx context.Context) {
	now := time.Now()

	sweeps := []struct {
		name string
		run  func(context.Context, time.Time) error
	}{
		{"meetings", e.sweepMeetings},
		{"assignments", e.sweepAssignments},
		{"attendance", e.sweepAttendance},
	}
	for _, sw := range sweeps {
		if err := sw.run(ctx, now); err != nil {
			metrics.ReminderSweeps.WithLabelValues(sw.name, "error").Inc()
			e.log.Error().Err(err).Str("sweep", sw.name).Msg("sweep failed")
			continue
		}
		metrics.ReminderSweeps.WithLabelValues(sw.name, "ok").Inc()
	}
}

// sweepMeetings reminds all students about meetings starting inside the
// configured window.
func (e *Engine) sweepMeetings(ctx context.Context, now time.Time) error {
	meetings, err := e.store.ListMeetingsBetween(ctx, now.Add(e.cfg.MeetingWindowStart), now.Add(e.cfg.MeetingWindowEnd))
	if err != nil {
		return fmt.Errorf("list meetings: %w", err)
	}
	if len(meetings) == 0 {
		return nil
	}

	students, err := e.store.ListUserIDsByRole(ctx, models.RoleStudent)
	if err != nil {
		return fmt.Errorf("list students: %w", err)
	}

	for _, m := range meetings {
		teacherID := m.TeacherID
		_, err := e.notifier.NotifyMany(ctx, students, notify.Input{
			SenderID: &teacherID,
			Type:     models.TypeMeetingReminder,
			Title:    fmt.Sprintf("Meeting Reminder: %s", m.Title),
			Message:  fmt.Sprintf("Your meeting %q starts soon at %s.", m.Title, m.StartsAt.Format("15:04")),
			RelatedEntity: &models.RelatedEntity{
				Type: "meeting",
				ID:   m.ID,
			},
		})
		if err != nil {
			return fmt.Errorf("meeting %s: %w", m.ID, err)
		}
	}
	return nil
}

// sweepAssignments reminds all students about assignments due on the next
// calendar day.
func (e *Engine) sweepAssignments(ctx context.Context, now time.Time) error {
	year, month, day := now.Date()
	tomorrow := time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
	dayAfter := tomorrow.AddDate(0, 0, 1)

	assignments, err := e.store.ListAssignmentsDueBetween(ctx, tomorrow, dayAfter)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	if len(assignments) == 0 {
		return nil
	}

	students, err := e.store.ListUserIDsByRole(ctx, models.RoleStudent)
	if err != nil {
		return fmt.Errorf("list students: %w", err)
	}

	for _, a := range assignments {
		teacherID := a.TeacherID
		_, err := e.notifier.NotifyMany(ctx, students, notify.Input{
			SenderID: &teacherID,
			Type:     models.TypeAssignmentReminder,
			Title:    fmt.Sprintf("Assignment Due: %s", a.Title),
			Message:  fmt.Sprintf("Your assignment %q is due tomorrow.", a.Title),
			RelatedEntity: &models.RelatedEntity{
				Type: "assignment",
				ID:   a.ID,
			},
		})
		if err != nil {
			return fmt.Errorf("assignment %s: %w", a.ID, err)
		}
	}
	return nil
}

// sweepAttendance warns students whose attendance dropped below the
// threshold. System-generated: no sender.
func (e *Engine) sweepAttendance(ctx context.Context, now time.Time) error {
	students, err := e.store.ListLowAttendanceStudents(ctx, e.cfg.AttendanceThreshold)
	if err != nil {
		return fmt.Errorf("list low attendance: %w", err)
	}

	for _, s := range students {
		_, err := e.notifier.Notify(ctx, notify.Input{
			RecipientID: s.ID,
			Type:        models.TypeAttendanceAlert,
			Title:       "Low Attendance Warning",
			Message:     fmt.Sprintf("Your attendance dropped below %.0f%%. Please attend upcoming classes.", e.cfg.AttendanceThreshold),
			RelatedEntity: &models.RelatedEntity{
				Type: "attendance",
				ID:   s.ID,
			},
		})
		if err != nil {
			return fmt.Errorf("student %s: %w", s.ID, err)
		}
	}
	return nil
}
