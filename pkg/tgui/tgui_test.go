package tgui

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestDataAndSplitData(t *testing.T) {
	data := Data("calendar", "day", "2025-10-05")
	if data != "calendar:day:2025-10-05" {
		t.Fatalf("Data = %q", data)
	}
	plugin, action, payload, err := SplitData(data)
	if err != nil || plugin != "calendar" || action != "day" || payload != "2025-10-05" {
		t.Fatalf("SplitData = %q %q %q %v", plugin, action, payload, err)
	}

	// Payload may itself contain colons.
	_, _, payload, err = SplitData("calendar:promote:2025-10-05:3")
	if err != nil || payload != "2025-10-05:3" {
		t.Fatalf("colon payload = %q %v", payload, err)
	}

	// Empty payload round-trips without a trailing colon.
	if got := Data("calendar", "noop", ""); got != "calendar:noop" {
		t.Fatalf("empty payload = %q", got)
	}
	_, action, payload, err = SplitData("calendar:noop")
	if err != nil || action != "noop" || payload != "" {
		t.Fatalf("SplitData(noop) = %q %q %v", action, payload, err)
	}

	if _, _, _, err := SplitData("justoneword"); err == nil {
		t.Fatalf("malformed data accepted")
	}
}

func TestDataFitsCallbackLimit(t *testing.T) {
	// The longest real payload shape must stay inside Telegram's cap.
	data := Data("calendar", "promote", "2025-10-05:99")
	if len(data) > MaxCallbackDataLen {
		t.Fatalf("callback data %q exceeds %d bytes", data, MaxCallbackDataLen)
	}
}

func TestTruncRunes(t *testing.T) {
	if got := TruncRunes("hello", 10); got != "hello" {
		t.Fatalf("no-op trunc = %q", got)
	}
	if got := TruncRunes("hello", 4); got != "hell…" {
		t.Fatalf("trunc = %q", got)
	}
	if got := TruncRunes("", 3); got != "" {
		t.Fatalf("empty = %q", got)
	}
	if got := TruncRunes("abc", 0); got != "" {
		t.Fatalf("zero = %q", got)
	}
	// Multi-byte runes are counted as one.
	if got := TruncRunes("🐝🐝🐝🐝", 2); got != "🐝🐝…" {
		t.Fatalf("rune trunc = %q", got)
	}
}

func TestGridColumns(t *testing.T) {
	buttons := make([]tele.Btn, 0, 8)
	for _, s := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		buttons = append(buttons, Btn(s, Data("calendar", "noop", "")))
	}
	rm := Grid(7, buttons)
	if len(rm.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d", len(rm.InlineKeyboard))
	}
	if len(rm.InlineKeyboard[0]) != 7 || len(rm.InlineKeyboard[1]) != 1 {
		t.Fatalf("row widths = %d, %d", len(rm.InlineKeyboard[0]), len(rm.InlineKeyboard[1]))
	}
}

func TestBuilderEscapesHTML(t *testing.T) {
	msg := New().
		Title("🐝", "a <b> title").
		Line("1 < 2 & 3 > 2").
		Build()

	if strings.Contains(msg.Text, "<b> title") {
		t.Fatalf("title not escaped: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "&lt;") || !strings.Contains(msg.Text, "&amp;") {
		t.Fatalf("line not escaped: %q", msg.Text)
	}
	if msg.Opt == nil || msg.Opt.ParseMode != "HTML" || !msg.Opt.DisablePreview {
		t.Fatalf("opts = %+v", msg.Opt)
	}
}

func TestEscAndWrappers(t *testing.T) {
	if Esc("<x>").String() != "&lt;x&gt;" {
		t.Fatalf("Esc broken")
	}
	if B("hi").String() != "<b>hi</b>" {
		t.Fatalf("B broken")
	}
	if Code("a<b").String() != "<code>a&lt;b</code>" {
		t.Fatalf("Code broken")
	}
}
