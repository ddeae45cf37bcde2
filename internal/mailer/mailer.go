// Package mailer sends transactional email through MailerSend. All
// sends are best-effort from the caller's perspective: failures are
// returned for logging but must never roll back the mutation that
// triggered them.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
)

// Mailer wraps a MailerSend client with the sender identity and the
// admin mailbox used for booking notifications.
type Mailer struct {
	client     *mailersend.Mailersend
	fromName   string
	fromEmail  string
	adminEmail string
}

// New constructs a Mailer. An empty apiKey yields a Mailer whose
// sends fail fast with an error, which callers log and ignore; this
// keeps local development working without credentials.
func New(apiKey, fromName, fromEmail, adminEmail string) *Mailer {
	m := &Mailer{
		fromName:   fromName,
		fromEmail:  fromEmail,
		adminEmail: adminEmail,
	}
	if apiKey != "" {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

// BookingEmail carries the resolved booking details an email needs.
type BookingEmail struct {
	Reference       string
	UserName        string
	UserEmail       string
	EventName       string
	EventLocation   string
	EventDate       time.Time
	TicketType      string
	Quantity        uint32
	TotalPriceCents uint64
}

func (m *Mailer) send(ctx context.Context, toName, toEmail, subject, text string) error {
	if m.client == nil {
		return fmt.Errorf("mailer not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(mailersend.From{Name: m.fromName, Email: m.fromEmail})
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	msg.SetText(text)

	if _, err := m.client.Email.Send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// SendBookingConfirmation mails the booking owner their confirmation.
func (m *Mailer) SendBookingConfirmation(ctx context.Context, b BookingEmail) error {
	subject := fmt.Sprintf("Booking confirmed: %s", b.EventName)
	text := fmt.Sprintf(
		"Hi %s,\n\nYour booking %s is confirmed.\n\nEvent: %s\nLocation: %s\nDate: %s\nTickets: %d x %s\nTotal: $%.2f\n\nSee you there!\n",
		b.UserName, b.Reference, b.EventName, b.EventLocation,
		b.EventDate.Format("Mon, 02 Jan 2006 15:04 MST"),
		b.Quantity, b.TicketType, float64(b.TotalPriceCents)/100)
	return m.send(ctx, b.UserName, b.UserEmail, subject, text)
}

// SendAdminBookingNotification mails the admin mailbox about a new booking.
func (m *Mailer) SendAdminBookingNotification(ctx context.Context, b BookingEmail) error {
	subject := fmt.Sprintf("New booking %s: %s", b.Reference, b.EventName)
	text := fmt.Sprintf(
		"New booking received.\n\nReference: %s\nCustomer: %s <%s>\nEvent: %s (%s)\nTickets: %d x %s\nTotal: $%.2f\n",
		b.Reference, b.UserName, b.UserEmail, b.EventName,
		b.EventDate.Format(time.RFC3339), b.Quantity, b.TicketType,
		float64(b.TotalPriceCents)/100)
	return m.send(ctx, "", m.adminEmail, subject, text)
}

// SendWelcome mails a newly registered user.
func (m *Mailer) SendWelcome(ctx context.Context, name, email string) error {
	text := fmt.Sprintf("Hi %s,\n\nWelcome to Pearl Events! Your account is ready.\n", name)
	return m.send(ctx, name, email, "Welcome to Pearl Events", text)
}

// SendContactMessage forwards a contact-us submission to the admin mailbox.
func (m *Mailer) SendContactMessage(ctx context.Context, fromName, fromEmail, subject, message string) error {
	text := fmt.Sprintf("From: %s <%s>\n\n%s\n", fromName, fromEmail, message)
	return m.send(ctx, "", m.adminEmail, "Contact form: "+subject, text)
}
