package storage

import "testing"

func TestNewClientRequiresBucket(t *testing.T) {
	if _, err := NewClient(Config{Endpoint: "localhost:9000", Access: "a", Secret: "b"}); err == nil {
		t.Fatal("expected error for missing bucket")
	}

	c, err := NewClient(Config{Endpoint: "localhost:9000", Access: "a", Secret: "b", Bucket: "photoresize-jobs", MaxObjectBytes: 1 << 20})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.Bucket() != "photoresize-jobs" {
		t.Fatalf("unexpected bucket %q", c.Bucket())
	}
}

func TestAttachmentDisposition(t *testing.T) {
	if got := attachmentDisposition("export-1.jpg"); got != "attachment; filename=export-1.jpg" {
		t.Fatalf("unexpected disposition %q", got)
	}
	if got := attachmentDisposition("my photo.png"); got != `attachment; filename="my photo.png"` {
		t.Fatalf("unexpected quoted disposition %q", got)
	}
}
