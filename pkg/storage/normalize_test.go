package storage

import "testing"

func TestNormalizeMediaURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  https://CDN.example.com:443/a.jpg ", "https://cdn.example.com/a.jpg"},
		{"http://Example.com:80/videos/", "http://example.com/videos"},
		{"img.example.org/x.png", "https://img.example.org/x.png"},
		{"/uploads/local.png", "/uploads/local.png"},
	}
	for _, tt := range tests {
		if got := NormalizeMediaURL(tt.in); got != tt.want {
			t.Fatalf("NormalizeMediaURL(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestInferMediaType(t *testing.T) {
	tests := map[string]string{
		"":                            "",
		"https://x.com/a.jpg":         "image",
		"https://x.com/ride.webm?t=3": "video",
		"https://x.com/MOV/clip.MOV":  "video",
		"https://x.com/no-extension":  "image",
	}
	for in, want := range tests {
		if got := InferMediaType(in); got != want {
			t.Fatalf("InferMediaType(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestMediaDomain(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://cdn.img.example.co.uk/a.jpg", "example.co.uk", true},
		{"media.riderpoint.de/x.mp4", "riderpoint.de", true},
		{"localhost/x.png", "", false},
		{"/uploads/a.png", "", false},
	}
	for _, tt := range tests {
		got, ok := MediaDomain(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("MediaDomain(%q): expected %q/%v, got %q/%v", tt.in, tt.want, tt.wantOK, got, ok)
		}
	}
}
