package notify

import (
	"fmt"

	"github.com/milanotravel/tourbooking/internal/pkg/env"
	"github.com/milanotravel/tourbooking/internal/pkg/mail"
)

func opsEmail() string {
	return env.GetEnv("OPS_EMAIL", "operations@milanotravel.com")
}

func (d *Dispatcher) sendProposalSubmitted(event *Event) error {
	p, err := ProposalEventPayloadFromMap(event.Payload)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("We received your booking request %s", p.Code)
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Thank you for your booking request for <strong>%s</strong> on %s.</p>
<p>Your reference code is <strong>%s</strong>. The estimated total is %.2f %s.</p>
<p>We will confirm availability with our partners and get back to you shortly.</p>
<p>Milano Travel</p>`,
		p.CustomerName, p.TourName, p.TravelDate, p.Code, p.TotalPrice, p.Currency)

	return mail.SendMail(p.CustomerEmail, subject, body)
}

func (d *Dispatcher) sendSupplierConfirmationRequest(event *Event) error {
	p, err := ProposalEventPayloadFromMap(event.Payload)
	if err != nil {
		return err
	}

	to := p.SupplierEmail
	if to == "" {
		to = opsEmail()
	}

	subject := fmt.Sprintf("Availability request %s - %s", p.Code, p.TourName)
	body := fmt.Sprintf(`<p>Hello,</p>
<p>We have a new booking request <strong>%s</strong> for <strong>%s</strong> on %s.</p>
<p>Please confirm or reject within 48 hours. The links below can each be used once:</p>
<p><a href="%s">Confirm availability</a></p>
<p><a href="%s">Reject request</a></p>
<p>Milano Travel Operations</p>`,
		p.Code, p.TourName, p.TravelDate, p.ConfirmURL, p.RejectURL)

	return mail.SendMail(to, subject, body)
}

func (d *Dispatcher) sendProposalConfirmed(event *Event) error {
	p, err := ProposalEventPayloadFromMap(event.Payload)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Your booking %s is confirmed - payment required", p.Code)
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Good news! Your booking request <strong>%s</strong> for <strong>%s</strong> on %s has been confirmed.</p>
<p>The total is %.2f %s. Please complete your payment to secure the booking:</p>
<p><a href="%s">Pay now</a></p>
<p>Milano Travel</p>`,
		p.CustomerName, p.Code, p.TourName, p.TravelDate, p.TotalPrice, p.Currency, p.PaymentLink)

	return mail.SendMail(p.CustomerEmail, subject, body)
}

func (d *Dispatcher) sendProposalRejected(event *Event) error {
	p, err := ProposalEventPayloadFromMap(event.Payload)
	if err != nil {
		return err
	}

	reason := p.Reason
	if reason == "" {
		reason = "the requested date is not available"
	}

	subject := fmt.Sprintf("Update on your booking request %s", p.Code)
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Unfortunately we could not confirm your booking request <strong>%s</strong> for <strong>%s</strong> on %s: %s.</p>
<p>No payment has been taken. We would be happy to help you find an alternative date.</p>
<p>Milano Travel</p>`,
		p.CustomerName, p.Code, p.TourName, p.TravelDate, reason)

	return mail.SendMail(p.CustomerEmail, subject, body)
}

func (d *Dispatcher) sendBookingFinalized(event *Event) error {
	p, err := BookingEventPayloadFromMap(event.Payload)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Booking confirmed - %s", p.Code)
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p>Your payment has been received and your booking is confirmed.</p>
<p>Booking code: <strong>%s</strong><br>
Tour: %s<br>
Travel date: %s<br>
Total paid: %.2f %s</p>
<p>We look forward to welcoming you!</p>
<p>Milano Travel</p>`,
		p.CustomerName, p.Code, p.TourName, p.TravelDate, p.TotalPrice, p.Currency)

	if err := mail.SendMail(p.CustomerEmail, subject, body); err != nil {
		return err
	}

	opsSubject := fmt.Sprintf("Paid booking %s (%s)", p.Code, p.ProposalCode)
	opsBody := fmt.Sprintf(`<p>Booking %s for %s on %s is paid in full (%.2f %s), customer %s.</p>`,
		p.Code, p.TourName, p.TravelDate, p.TotalPrice, p.Currency, p.CustomerName)
	return mail.SendMail(opsEmail(), opsSubject, opsBody)
}
