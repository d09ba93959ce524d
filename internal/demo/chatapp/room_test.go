package chatapp

import "testing"

func TestRoomFromWSPath(t *testing.T) {
	cases := map[string]string{
		"/ws/general":  "general",
		"/ws/general/": "general",
		"/ws/":         "",
		"/ws":          "",
	}
	for path, want := range cases {
		if got := roomFromWSPath(path); got != want {
			t.Errorf("roomFromWSPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRoomFromHistoryPath(t *testing.T) {
	cases := map[string]string{
		"/rooms/general/history": "general",
		"/rooms//history":        "",
	}
	for path, want := range cases {
		if got := roomFromHistoryPath(path); got != want {
			t.Errorf("roomFromHistoryPath(%q) = %q, want %q", path, got, want)
		}
	}
}
