package nav

import "testing"

func TestHistory_PushAndBack(t *testing.T) {
	h := NewHistory(RouteFeed)
	h.Push(RoutePost(7))

	if h.Current() != "/posts/7" {
		t.Errorf("Current() = %q, want /posts/7", h.Current())
	}
	if !h.CanGoBack() {
		t.Error("CanGoBack() should be true after Push")
	}

	h.Back()
	if h.Current() != RouteFeed {
		t.Errorf("Current() = %q, want %q", h.Current(), RouteFeed)
	}

	// 最初の画面より前には戻らない
	h.Back()
	if h.Current() != RouteFeed {
		t.Errorf("Current() = %q after extra Back, want %q", h.Current(), RouteFeed)
	}
}

// TestHistory_ReplaceDropsBackStack はReplace後に元の画面へ戻れないことを検証する。
func TestHistory_ReplaceDropsBackStack(t *testing.T) {
	h := NewHistory(RouteFeed)
	h.Push(RouteProfile)
	h.Replace(RouteLogin)

	if h.Current() != RouteLogin {
		t.Errorf("Current() = %q, want %q", h.Current(), RouteLogin)
	}
	if h.CanGoBack() {
		t.Error("CanGoBack() should be false after Replace")
	}
}
