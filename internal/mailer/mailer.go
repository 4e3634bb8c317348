package mailer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"

	"ms-admission/internal/config"
	"ms-admission/internal/logger"
)

const qrContentID = "qr-image"

// Mailer delivers invitation emails with the QR inline (CID reference) and
// attached as a file, which keeps both Gmail and Outlook happy. Delivery
// failures are reported to the caller; they are recorded on the credential
// and never roll anything back.
type Mailer struct {
	cfg    config.EmailConfig
	logger *logger.Logger
}

func New(cfg config.EmailConfig, log *logger.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: log}
}

// Deliver sends the invitation for one reservation.
func (m *Mailer) Deliver(toEmail, guestName, eventName, checkinURL string, qrPNG []byte) error {
	if !m.cfg.Enabled {
		return errors.New("MAIL_DISABLED")
	}
	if m.cfg.SMTPHost == "" || m.cfg.Username == "" || m.cfg.Password == "" || m.cfg.Sender == "" {
		return errors.New("MAIL_CONFIG_MISSING")
	}

	subject := fmt.Sprintf("Your invitation - %s", eventName)
	msg, err := buildMessage(m.cfg.Sender, toEmail, subject, guestName, eventName, checkinURL, qrPNG)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)
	if err := smtp.SendMail(addr, auth, m.cfg.Sender, []string{toEmail}, msg); err != nil {
		m.logger.LogMail(toEmail, fmt.Sprintf("delivery failed: %v", err))
		return err
	}

	m.logger.LogMail(toEmail, "invitation sent")
	return nil
}

// buildMessage assembles multipart/related(multipart/alternative(text, html), inline qr, attached qr).
func buildMessage(from, to, subject, guestName, eventName, checkinURL string, qrPNG []byte) ([]byte, error) {
	var buf bytes.Buffer
	related := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/related; boundary=%q\r\n\r\n", related.Boundary())

	// Alternative part: plain text plus HTML.
	altBuf := &bytes.Buffer{}
	alt := multipart.NewWriter(altBuf)

	textPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(textPart, "Hi %s, your reservation for %s is confirmed.\r\nPresent this link at the door: %s\r\n", guestName, eventName, checkinURL)

	htmlPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprint(htmlPart, invitationHTML(guestName, eventName))
	if err := alt.Close(); err != nil {
		return nil, err
	}

	altHeader := textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary())},
	}
	altPart, err := related.CreatePart(altHeader)
	if err != nil {
		return nil, err
	}
	if _, err := altPart.Write(altBuf.Bytes()); err != nil {
		return nil, err
	}

	// QR inline via CID, then attached as a plain file for clients that
	// block inline images.
	if err := writeImagePart(related, qrPNG, textproto.MIMEHeader{
		"Content-Type":              {"image/png"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-ID":                {"<" + qrContentID + ">"},
		"Content-Disposition":       {`inline; filename="qr.png"`},
	}); err != nil {
		return nil, err
	}
	if err := writeImagePart(related, qrPNG, textproto.MIMEHeader{
		"Content-Type":              {"image/png"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {`attachment; filename="qr.png"`},
	}); err != nil {
		return nil, err
	}

	if err := related.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeImagePart(w *multipart.Writer, png []byte, header textproto.MIMEHeader) error {
	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	enc := base64.StdEncoding.EncodeToString(png)
	// 76-char lines per RFC 2045.
	for len(enc) > 76 {
		if _, err := fmt.Fprintf(part, "%s\r\n", enc[:76]); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err = fmt.Fprintf(part, "%s\r\n", enc)
	return err
}

func invitationHTML(guestName, eventName string) string {
	return fmt.Sprintf(`<div style="background:#0b0b0b;color:#f5f5f5;padding:24px;font-family:sans-serif;">
  <h2 style="color:#ffd400;margin:0 0 12px 0;">Your invitation is ready</h2>
  <p>Hi <b>%s</b>, your reservation for <b>%s</b> was registered.</p>
  <p>Present this QR at the entrance:</p>
  <img src="cid:%s" alt="QR" width="260" height="260"
       style="display:block;background:#ffffff;padding:10px;border-radius:16px;" />
  <p style="font-size:12px;color:#bdbdbd;">The QR is single use. Once scanned it is marked as used.</p>
</div>`, guestName, eventName, qrContentID)
}
