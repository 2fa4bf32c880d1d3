package mailer

import (
	"fmt"
	"os"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendPaymentFailed(toEmail, planName string, attempt, maxAttempts int) error
	SendSubscriptionDowngraded(toEmail, fromPlan, toPlan string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	frontendURL string
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	frontendURL := os.Getenv("CLIENT_URL")

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		frontendURL: frontendURL,
	}
}

func (s *emailService) SendPaymentFailed(toEmail, planName string, attempt, maxAttempts int) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Payment Failed - Action Required")

	billingLink := fmt.Sprintf("%s/app/billing", s.frontendURL)

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>We couldn't process your payment</h2>
			<p>The renewal payment for your <b>%s</b> plan failed (attempt %d of %d).</p>
			<p>Please update your payment method to keep your subscription active:</p>
			<a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Update Payment Method</a>
			<p>If payment keeps failing, your workspace will be moved to the free plan.</p>
		</div>
	`, planName, attempt, maxAttempts, billingLink)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send payment-failed notice to %s: %v\n", toEmail, err)
		return err
	}

	return nil
}

func (s *emailService) SendSubscriptionDowngraded(toEmail, fromPlan, toPlan string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your subscription has been downgraded")

	billingLink := fmt.Sprintf("%s/app/billing", s.frontendURL)

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Subscription downgraded</h2>
			<p>Your workspace has been moved from <b>%s</b> to <b>%s</b> after repeated failed payments.</p>
			<p>You can resubscribe at any time:</p>
			<a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Manage Billing</a>
		</div>
	`, fromPlan, toPlan, billingLink)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send downgrade notice to %s: %v\n", toEmail, err)
		return err
	}

	return nil
}
