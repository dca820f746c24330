package media

import "testing"

func TestIsPortable(t *testing.T) {
	cases := []struct {
		locator string
		want    bool
	}{
		{"https://example.com/a.mp4", true},
		{"http://192.168.1.20:7900/media/abc", true},
		{"https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4", true},
		{"http://localhost:7900/media/abc", false},
		{"http://127.0.0.1/a.mp4", false},
		{"http://[::1]:8080/a.mp4", false},
		{"file:///home/user/video.mp4", false},
		{"blob:null/6e984735", false},
		{"data:video/mp4;base64,AAAA", false},
		{"/var/media/clip.mp4", false},
		{"", false},
		{"  ", false},
	}
	for _, tc := range cases {
		if got := IsPortable(tc.locator); got != tc.want {
			t.Errorf("IsPortable(%q) = %v, want %v", tc.locator, got, tc.want)
		}
	}
}
