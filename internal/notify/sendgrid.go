package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/immxrtalbeast/counsel_portal/internal/retry"
	"github.com/immxrtalbeast/counsel_portal/lib/logger/sl"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	DefaultSendGridHost = "https://api.sendgrid.com"
	sendEndpoint        = "/v3/mail/send"
)

var ErrNoRecipient = errors.New("notice has no recipient email")

type SendGridNotifier struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	retry      retry.Policy
	log        *slog.Logger
	now        func() time.Time
}

func NewSendGridNotifier(key, host, appName, fromEmail string, policy retry.Policy, log *slog.Logger) *SendGridNotifier {
	if host == "" {
		host = DefaultSendGridHost
	}
	if log == nil {
		log = slog.Default()
	}
	return &SendGridNotifier{
		key:        key,
		host:       host,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
		retry:      policy,
		log:        log,
		now:        time.Now,
	}
}

func (n *SendGridNotifier) AppointmentBooked(ctx context.Context, notice AppointmentNotice) error {
	return n.send(ctx, notice, bookedMessage(notice, n.now()))
}

func (n *SendGridNotifier) AppointmentStatusChanged(ctx context.Context, notice AppointmentNotice) error {
	return n.send(ctx, notice, statusMessage(notice, n.now()))
}

func (n *SendGridNotifier) prepare(notice AppointmentNotice, msg message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = n.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(displayName(notice.Recipient), notice.Recipient.Email))

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", msg.HTML),
	)
	return m
}

func (n *SendGridNotifier) send(ctx context.Context, notice AppointmentNotice, msg message) error {
	const op = "notify.sendgrid.send"
	log := n.log.With(
		slog.String("op", op),
		slog.String("appointment_id", notice.Appointment.ID.String()),
	)

	if notice.Recipient == nil || notice.Recipient.Email == "" {
		return ErrNoRecipient
	}
	body := sgmail.GetRequestBody(n.prepare(notice, msg))

	err := retry.Do(ctx, n.retry, func(ctx context.Context) error {
		req := sendgrid.GetRequest(n.key, sendEndpoint, n.host)
		req.Method = http.MethodPost
		req.Body = body

		res, err := sendgrid.MakeRequestWithContext(ctx, req)
		if err != nil {
			return retry.Transient(err)
		}
		switch {
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
			return retry.Transient(fmt.Errorf("sendgrid responded %d", res.StatusCode))
		case res.StatusCode >= http.StatusBadRequest:
			return fmt.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
		}
		return nil
	})
	if err != nil {
		log.Warn("failed to send notification", sl.Err(err))
		return err
	}
	log.Debug("notification sent")
	return nil
}
