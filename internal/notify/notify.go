// Package notify tells the other party of an appointment about bookings and status
// changes.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
)

type Notifier interface {
	AppointmentBooked(ctx context.Context, n AppointmentNotice) error
	AppointmentStatusChanged(ctx context.Context, n AppointmentNotice) error
}

// AppointmentNotice is sent to Recipient about something Actor did to Appointment.
type AppointmentNotice struct {
	Appointment *domain.Appointment
	Actor       *domain.Profile
	Recipient   *domain.Profile
}

type message struct {
	Subject string
	Text    string
	HTML    string
}

func displayName(p *domain.Profile) string {
	if p == nil {
		return "Someone"
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

func describeSlot(a *domain.Appointment, now time.Time) string {
	kind := strings.ReplaceAll(string(a.Type), "_", " ")
	return fmt.Sprintf("%s session on %s (%s, %s long)",
		kind,
		a.ScheduledStart.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
		humanize.RelTime(a.ScheduledStart, now, "ago", "from now"),
		humanDuration(a.ScheduledEnd.Sub(a.ScheduledStart)),
	)
}

func humanDuration(d time.Duration) string {
	minutes := int64(d / time.Minute)
	if minutes < 60 || minutes%60 != 0 {
		return humanize.Comma(minutes) + " minutes"
	}
	hours := minutes / 60
	if hours == 1 {
		return "1 hour"
	}
	return humanize.Comma(hours) + " hours"
}

func bookedMessage(n AppointmentNotice, now time.Time) message {
	slot := describeSlot(n.Appointment, now)
	text := fmt.Sprintf("Hi %s,\n\n%s booked a %s.\n", displayName(n.Recipient), displayName(n.Actor), slot)
	if n.Appointment.Notes != "" {
		text += "\nNotes: " + n.Appointment.Notes + "\n"
	}
	return message{
		Subject: "New appointment with " + displayName(n.Actor),
		Text:    text,
		HTML:    "<p>" + strings.ReplaceAll(text, "\n", "<br>") + "</p>",
	}
}

func statusMessage(n AppointmentNotice, now time.Time) message {
	slot := describeSlot(n.Appointment, now)
	status := strings.ReplaceAll(string(n.Appointment.Status), "_", " ")
	text := fmt.Sprintf("Hi %s,\n\n%s marked the %s as %s.\n", displayName(n.Recipient), displayName(n.Actor), slot, status)
	return message{
		Subject: "Appointment " + status,
		Text:    text,
		HTML:    "<p>" + strings.ReplaceAll(text, "\n", "<br>") + "</p>",
	}
}
