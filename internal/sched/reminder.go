package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sentinelvps/sentinel/internal/billing"
	"github.com/sentinelvps/sentinel/internal/report"
	"github.com/sentinelvps/sentinel/internal/settings"
)

// PaymentSource is the billing surface the reminder sweep reads and
// updates. Satisfied by *billing.Store.
type PaymentSource interface {
	ListUnpaid(ctx context.Context) ([]billing.Payment, error)
	AppendNotifiedOffset(ctx context.Context, p *billing.Payment, offset int) error
}

// Reminder sends payment reminders once daily at a fixed wall-clock
// hour. Each configured day-offset fires at most once per payment; the
// notified set is persisted, so restarts never re-send.
type Reminder struct {
	payments PaymentSource
	sink     Sink
	toggles  Toggles
	groupID  int64
	topicID  int
	offsets  []int
	hour     int
	logger   *zap.Logger

	cron *cron.Cron
	now  func() time.Time
}

// NewReminder creates the daily reminder job.
func NewReminder(payments PaymentSource, sink Sink, toggles Toggles, groupID int64, topicID int, offsets []int, hour int, logger *zap.Logger) *Reminder {
	return &Reminder{
		payments: payments,
		sink:     sink,
		toggles:  toggles,
		groupID:  groupID,
		topicID:  topicID,
		offsets:  offsets,
		hour:     hour,
		logger:   logger,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start schedules the daily sweep.
func (r *Reminder) Start() error {
	spec := fmt.Sprintf("0 %d * * *", r.hour)
	if _, err := r.cron.AddFunc(spec, func() {
		r.Run(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule reminder job: %w", err)
	}
	r.cron.Start()
	r.logger.Info("payment reminder job scheduled", zap.String("cron", spec))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reminder) Stop() {
	<-r.cron.Stop().Done()
}

// Run performs one reminder sweep. Exported so the chat layer can
// trigger it on demand. An offset is recorded as notified only after
// its reminder was delivered; a failed send is retried by the next run.
func (r *Reminder) Run(ctx context.Context) {
	if r.sink == nil || r.groupID == 0 {
		return
	}
	if r.toggles != nil {
		on, err := r.toggles.GetBool(ctx, settings.KeyPaymentNotify, true)
		if err != nil {
			r.logger.Warn("reading payment notification switch failed", zap.Error(err))
		} else if !on {
			return
		}
	}

	payments, err := r.payments.ListUnpaid(ctx)
	if err != nil {
		r.logger.Warn("loading payments for reminder sweep failed", zap.Error(err))
		return
	}

	now := r.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for i := range payments {
		p := &payments[i]
		due, err := p.Due()
		if err != nil {
			r.logger.Warn("payment has malformed due date",
				zap.Int64("payment_id", p.ID),
				zap.String("due_date", p.DueDate),
			)
			continue
		}

		daysLeft := int(due.Sub(today).Hours() / 24)
		if !r.offsetConfigured(daysLeft) || p.HasNotified(daysLeft) {
			continue
		}

		text := report.PaymentReminder(p, daysLeft)
		if err := r.sink.SendMessage(ctx, r.groupID, r.topicID, text); err != nil {
			r.logger.Error("reminder delivery failed",
				zap.Int64("payment_id", p.ID),
				zap.Int("days_left", daysLeft),
				zap.Error(err),
			)
			continue
		}
		remindersSentTotal.Inc()

		if err := r.payments.AppendNotifiedOffset(ctx, p, daysLeft); err != nil {
			r.logger.Error("recording notified offset failed",
				zap.Int64("payment_id", p.ID),
				zap.Int("offset", daysLeft),
				zap.Error(err),
			)
		}
	}
}

func (r *Reminder) offsetConfigured(days int) bool {
	for _, o := range r.offsets {
		if o == days {
			return true
		}
	}
	return false
}
