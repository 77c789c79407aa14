package notify

import (
	"context"
	"log/slog"
	"time"
)

// LogNotifier writes notices to the log instead of delivering them. Used when no
// mail provider is configured.
type LogNotifier struct {
	log *slog.Logger
	now func() time.Time
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log, now: time.Now}
}

func (n *LogNotifier) AppointmentBooked(_ context.Context, notice AppointmentNotice) error {
	n.write("notify.appointment.booked", notice, bookedMessage(notice, n.now()))
	return nil
}

func (n *LogNotifier) AppointmentStatusChanged(_ context.Context, notice AppointmentNotice) error {
	n.write("notify.appointment.status", notice, statusMessage(notice, n.now()))
	return nil
}

func (n *LogNotifier) write(op string, notice AppointmentNotice, msg message) {
	to := ""
	if notice.Recipient != nil {
		to = notice.Recipient.Email
	}
	n.log.Info("notification",
		slog.String("op", op),
		slog.String("appointment_id", notice.Appointment.ID.String()),
		slog.String("to", to),
		slog.String("subject", msg.Subject),
	)
}
