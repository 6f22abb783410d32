package live

import (
	"encoding/json"
	"testing"
)

func TestSwapWireNames(t *testing.T) {
	tests := []struct {
		swap Swap
		name string
	}{
		{SwapInline, "inline"},
		{SwapOutline, "outline"},
		{SwapAppend, "append"},
		{SwapPrepend, "prepend"},
		{SwapNone, "none"},
	}

	for _, tc := range tests {
		if got := tc.swap.String(); got != tc.name {
			t.Errorf("Swap(%d).String() = %q, want %q", tc.swap, got, tc.name)
		}
		if got := ParseSwap(tc.name); got != tc.swap {
			t.Errorf("ParseSwap(%q) = %v, want %v", tc.name, got, tc.swap)
		}
	}
}

func TestParseSwapUnknownDefaultsToInline(t *testing.T) {
	for _, name := range []string{"", "replace", "INLINE"} {
		if got := ParseSwap(name); got != SwapInline {
			t.Errorf("ParseSwap(%q) = %v, want SwapInline", name, got)
		}
	}
}

func TestPatchJSON(t *testing.T) {
	p := Patch{TargetID: "clock", Swap: SwapOutline, HTML: "<div id=\"clock\">12:00</div>"}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"id":"clock","swap":"outline","html":"<div id=\"clock\">12:00</div>"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back Patch
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != p {
		t.Errorf("round trip = %+v, want %+v", back, p)
	}
}

func TestMessageEnvelope(t *testing.T) {
	data, err := json.Marshal(Message{Type: MessageReload})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"type":"reload"}` {
		t.Errorf("reload envelope = %s", data)
	}

	data, err = json.Marshal(Message{Type: MessagePatch, Patches: []Patch{{TargetID: "a", HTML: "x"}}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"type":"patch","patches":[{"id":"a","swap":"inline","html":"x"}]}` {
		t.Errorf("patch envelope = %s", data)
	}
}
