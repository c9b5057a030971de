package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/textproto"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/digicard/backend/google"
	"github.com/digicard/backend/store"
)

// Transport delivers one raw RFC 2822 message. The Gmail implementation
// sends as the authenticated tenant ("me").
type Transport interface {
	Send(ctx context.Context, raw []byte) error
}

type gmailTransport struct {
	svc *gmail.Service
}

func (g *gmailTransport) Send(ctx context.Context, raw []byte) error {
	_, err := g.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	return err
}

// Attachment is one file included with an outgoing message.
type Attachment struct {
	Filename string
	MimeType string
	Content  []byte
}

// Sender composes and sends follow-up emails, loading attachments from the
// tenant's Drive.
type Sender struct {
	transport Transport
	obj       store.Objects
}

// NewSender builds a Gmail-backed sender from the tenant's credentials.
func NewSender(ctx context.Context, ts oauth2.TokenSource, obj store.Objects) (*Sender, error) {
	svc, err := google.NewGmailService(ctx, ts)
	if err != nil {
		return nil, err
	}
	return &Sender{transport: &gmailTransport{svc: svc}, obj: obj}, nil
}

// NewSenderWithTransport wires a custom transport, used by tests and by
// anything that already holds a Gmail service.
func NewSenderWithTransport(t Transport, obj store.Objects) *Sender {
	return &Sender{transport: t, obj: obj}
}

// Send delivers a message with an HTML body. Attachment IDs that fail to
// download are skipped with a warning; losing an attachment beats losing
// the whole follow-up.
func (s *Sender) Send(ctx context.Context, to, subject, htmlBody string, attachmentIDs []string) error {
	var attachments []Attachment
	for _, id := range attachmentIDs {
		content, err := s.obj.Download(ctx, id)
		if err != nil {
			slog.Warn("Failed to load email attachment, sending without it", "file_id", id, "error", err)
			continue
		}
		attachments = append(attachments, Attachment{
			Filename: id,
			MimeType: "application/octet-stream",
			Content:  content,
		})
	}

	raw, err := BuildMessage(to, subject, htmlBody, attachments)
	if err != nil {
		return fmt.Errorf("composing message: %w", err)
	}
	if err := s.transport.Send(ctx, raw); err != nil {
		return fmt.Errorf("sending message to %s: %w", to, err)
	}
	return nil
}

// BuildMessage renders an RFC 2822 message with an HTML body, multipart
// when attachments are present. Gmail fills in the From header for the
// authenticated account.
func BuildMessage(to, subject, htmlBody string, attachments []Attachment) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		buf.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
		buf.WriteString("\r\n")
		buf.WriteString(htmlBody)
		return buf.Bytes(), nil
	}

	w := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", w.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/html; charset=\"utf-8\"")
	part, err := w.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}

	for _, a := range attachments {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", a.MimeType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte(base64.StdEncoding.EncodeToString(a.Content))); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
