package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"
)

func multipartWith(t *testing.T, fieldName, filename, contentType string, data []byte) *multipart.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("creating part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("writing part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}

	return multipart.NewReader(&buf, w.Boundary())
}

func TestReadImageFromMultipart(t *testing.T) {
	form := multipartWith(t, "file", "card.jpg", "image/jpeg", []byte("jpegdata"))

	upload, err := readImageFromMultipart(form)
	if err != nil {
		t.Fatalf("readImageFromMultipart: %v", err)
	}
	if string(upload.data) != "jpegdata" {
		t.Errorf("data = %q", upload.data)
	}
	if upload.filename != "card.jpg" {
		t.Errorf("filename = %q", upload.filename)
	}
	if upload.mimeType != "image/jpeg" {
		t.Errorf("mimeType = %q", upload.mimeType)
	}
}

func TestReadImageFromMultipart_SniffsMissingContentType(t *testing.T) {
	// Real PNG magic so content sniffing has something to work with
	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...)
	form := multipartWith(t, "file", "card.png", "", png)

	upload, err := readImageFromMultipart(form)
	if err != nil {
		t.Fatalf("readImageFromMultipart: %v", err)
	}
	if upload.mimeType != "image/png" {
		t.Errorf("sniffed mimeType = %q, want image/png", upload.mimeType)
	}
}

func TestReadImageFromMultipart_WrongFieldName(t *testing.T) {
	form := multipartWith(t, "image", "card.jpg", "image/jpeg", []byte("jpegdata"))

	if _, err := readImageFromMultipart(form); err == nil {
		t.Fatal("expected error for missing file field")
	}
}

func TestDecodeTemplatePayload_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantOK  bool
		subject string
	}{
		{"subject and body", `{"subject":"Hi","body":"Nice to meet you"}`, true, "Hi"},
		{"body only", `{"body":"Nice to meet you"}`, true, ""},
		{"empty object", `{}`, false, ""},
		{"garbage", `not json`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := decodePayloadFrom(strings.NewReader(tt.body))
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && p.Subject != tt.subject {
				t.Errorf("subject = %q, want %q", p.Subject, tt.subject)
			}
		})
	}
}

func TestBuildExtractor_UnconfiguredErrors(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	fn := buildExtractor()
	if _, err := fn(context.Background(), []byte("img")); err == nil {
		t.Fatal("expected error from unconfigured extractor")
	}
}
