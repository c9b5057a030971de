package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/digicard/backend/store"
)

type recordingTransport struct {
	sent [][]byte
	err  error
}

func (r *recordingTransport) Send(ctx context.Context, raw []byte) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, raw)
	return nil
}

func TestBuildMessage_HTMLBody(t *testing.T) {
	raw, err := BuildMessage("jane@acme.test", "Nice meeting you", "Hi Jane!<br>Bye", nil)
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}

	msg := string(raw)
	if !strings.Contains(msg, "To: jane@acme.test\r\n") {
		t.Errorf("missing To header: %q", msg)
	}
	if !strings.Contains(msg, "Subject: Nice meeting you\r\n") {
		t.Errorf("missing Subject header: %q", msg)
	}
	if !strings.Contains(msg, "Content-Type: text/html") {
		t.Errorf("missing content type: %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nHi Jane!<br>Bye") {
		t.Errorf("body not at end of message: %q", msg)
	}
}

func TestBuildMessage_WithAttachment(t *testing.T) {
	atts := []Attachment{{Filename: "brochure.pdf", MimeType: "application/pdf", Content: []byte("pdfdata")}}
	raw, err := BuildMessage("jane@acme.test", "Docs", "See attached.", atts)
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}

	msg := string(raw)
	if !strings.Contains(msg, "Content-Type: multipart/mixed; boundary=") {
		t.Errorf("not multipart: %q", msg)
	}
	if !strings.Contains(msg, "Content-Type: text/html") {
		t.Errorf("body part is not HTML: %q", msg)
	}
	if !strings.Contains(msg, `attachment; filename="brochure.pdf"`) {
		t.Errorf("missing attachment disposition: %q", msg)
	}
	if !strings.Contains(msg, "See attached.") {
		t.Errorf("missing body part: %q", msg)
	}
}

func TestSender_SkipsMissingAttachments(t *testing.T) {
	ctx := context.Background()
	obj := store.NewMemObjects()
	fileID, err := obj.Upload(ctx, "folder", "a.pdf", "application/pdf", []byte("data"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	transport := &recordingTransport{}
	s := NewSenderWithTransport(transport, obj)

	err = s.Send(ctx, "jane@acme.test", "Subject", "Body", []string{fileID, "missing-file"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(transport.sent))
	}

	msg := string(transport.sent[0])
	if !strings.Contains(msg, fileID) {
		t.Errorf("present attachment not included: %q", msg)
	}
	if strings.Contains(msg, "missing-file") {
		t.Errorf("missing attachment should be skipped: %q", msg)
	}
}
