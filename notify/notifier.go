package notify

import (
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/camden-git/smartguardbackend/metrics"
	"github.com/camden-git/smartguardbackend/repository"
	"github.com/camden-git/smartguardbackend/workers"
)

// EmailSender delivers a single email. The transport is pluggable so tests
// can capture messages instead of hitting an SMTP server.
type EmailSender interface {
	Send(to, subject, body string) error
}

// SMTPConfig holds the outbound mail account.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ShoutrrrSender sends mail through the shoutrrr SMTP service, one sender
// per recipient URL.
type ShoutrrrSender struct {
	cfg     SMTPConfig
	timeout time.Duration
}

func NewShoutrrrSender(cfg SMTPConfig, timeout time.Duration) *ShoutrrrSender {
	return &ShoutrrrSender{cfg: cfg, timeout: timeout}
}

func (s *ShoutrrrSender) serviceURL(to string) string {
	return fmt.Sprintf("smtp://%s:%s@%s:%d/?from=%s&to=%s&useStartTLS=yes",
		url.QueryEscape(s.cfg.Username),
		url.QueryEscape(s.cfg.Password),
		s.cfg.Host,
		s.cfg.Port,
		url.QueryEscape(s.cfg.From),
		url.QueryEscape(to),
	)
}

func (s *ShoutrrrSender) Send(to, subject, body string) error {
	sender, err := shoutrrr.CreateSender(s.serviceURL(to))
	if err != nil {
		return fmt.Errorf("failed to create mail sender for %s: %w", to, err)
	}
	if s.timeout > 0 {
		sender.Timeout = s.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	params := stypes.Params{}
	params.SetTitle(subject)

	for _, sendErr := range sender.Send(body, &params) {
		if sendErr != nil {
			return fmt.Errorf("failed to send mail to %s: %w", to, sendErr)
		}
	}
	return nil
}

// Dispatcher partitions the student roster into present and absent after a
// session commit and emails each side. The work runs as a background job so
// the detection path never waits on SMTP.
type Dispatcher struct {
	identityRepo repository.IdentityRepositoryInterface
	sender       EmailSender
	runner       *workers.Runner
}

func NewDispatcher(identityRepo repository.IdentityRepositoryInterface, sender EmailSender, runner *workers.Runner) *Dispatcher {
	return &Dispatcher{identityRepo: identityRepo, sender: sender, runner: runner}
}

// DispatchAttendance enqueues the notification run for the given present
// set. Enqueue failure is logged; attendance is already committed by then.
func (d *Dispatcher) DispatchAttendance(presentIDs []string) {
	jobID, err := d.runner.Enqueue(workers.JobNotification, "", func() error {
		return d.SendAttendanceEmails(presentIDs)
	})
	if err != nil {
		log.Printf("notify: failed to enqueue notification job: %v", err)
		return
	}
	log.Printf("notify: notification job %s enqueued for %d present", jobID, len(presentIDs))
}

// SendAttendanceEmails emails every student with an address: present
// students get a confirmation themselves, guardians of absent students get
// an alert. A failed send is logged and does not stop the run.
func (d *Dispatcher) SendAttendanceEmails(presentIDs []string) error {
	students, err := d.identityRepo.ListStudents()
	if err != nil {
		return fmt.Errorf("failed to list students for notification: %w", err)
	}

	present := make(map[string]struct{}, len(presentIDs))
	for _, id := range presentIDs {
		present[id] = struct{}{}
	}

	var failures int
	for _, student := range students {
		var to, subject, body string
		if _, ok := present[student.ID]; ok {
			if student.StudentEmail == nil || *student.StudentEmail == "" {
				continue
			}
			to = *student.StudentEmail
			subject = "Attendance Confirmation"
			body = fmt.Sprintf("Hi %s,\n\nYou have been marked PRESENT for today's class.\n\nRegards,\nSmartGuard System", student.Name)
		} else {
			if student.GuardianEmail == nil || *student.GuardianEmail == "" {
				continue
			}
			to = *student.GuardianEmail
			subject = "Absent Alert"
			body = fmt.Sprintf("Dear Parent,\n\nYour ward %s was marked ABSENT for today's class.\n\nPlease contact the administration if this is a mistake.\n\nRegards,\nSmartGuard System", student.Name)
		}

		if err := d.sender.Send(to, subject, body); err != nil {
			failures++
			metrics.NotificationFailuresTotal.Inc()
			log.Printf("notify: failed to send to %s: %v", to, err)
			continue
		}
		metrics.NotificationsSentTotal.Inc()
		log.Printf("notify: email sent to %s (%s)", to, subject)
	}

	if failures > 0 {
		return fmt.Errorf("%d notification(s) failed to send", failures)
	}
	return nil
}
