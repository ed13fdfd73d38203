package media

import (
	"io"
	"strings"
	"testing"
)

func TestPathPrefixes(t *testing.T) {
	cases := []struct {
		name   string
		build  func() (string, error)
		prefix string
	}{
		{"avatar", func() (string, error) { return AvatarPath("u1", "me.png") }, "avatars/u1/"},
		{"report photo", func() (string, error) { return ReportMediaPath("r1", "photos", "wall.jpg") }, "reports/r1/photos/"},
		{"report video", func() (string, error) { return ReportMediaPath("r1", "videos", "pour.mp4") }, "reports/r1/videos/"},
		{"project doc", func() (string, error) { return ProjectDocumentPath("p1", "plan.pdf") }, "projects/p1/documents/"},
		{"receipt", func() (string, error) { return ReceiptPath("pay1", "receipt.pdf") }, "payments/receipts/pay1/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.build()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if !strings.HasPrefix(got, tc.prefix) {
				t.Fatalf("path %q missing prefix %q", got, tc.prefix)
			}
		})
	}
}

func TestPathsAreUniquePerUpload(t *testing.T) {
	a, err := AvatarPath("u1", "me.png")
	if err != nil {
		t.Fatal(err)
	}
	b, err := AvatarPath("u1", "me.png")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("two uploads produced the same path %q", a)
	}
}

func TestSanitizeRejectsTraversal(t *testing.T) {
	if _, err := AvatarPath("u1", "../../etc/passwd"); err != nil {
		t.Fatalf("base name should survive traversal input: %v", err)
	}
	got, err := AvatarPath("u1", "..\\..\\boot.ini")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(got, "..") {
		t.Fatalf("path %q kept traversal components", got)
	}
	if _, err := AvatarPath("u1", "..."); err == nil {
		t.Fatal("all-dot name should be rejected")
	}
	if _, err := ReportMediaPath("r1", "archives", "x.zip"); err == nil {
		t.Fatal("unknown media kind should be rejected")
	}
}

func TestFSSaveOpenRemove(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	p, err := AvatarPath("u1", "me.png")
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Save(p, strings.NewReader("image-bytes")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rc, err := fs.Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || string(data) != "image-bytes" {
		t.Fatalf("read back %q, %v", data, err)
	}
	if err := fs.Remove(p); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := fs.Open(p); err == nil {
		t.Fatal("Open should fail after Remove")
	}
}
