package live

import (
	"encoding/json"
	"fmt"
)

// Swap selects how a patch is applied to its target DOM node.
type Swap uint8

const (
	// SwapInline replaces the node's contents (innerHTML).
	SwapInline Swap = iota
	// SwapOutline replaces the node itself (outerHTML).
	SwapOutline
	// SwapAppend inserts after the node's existing contents.
	SwapAppend
	// SwapPrepend inserts before the node's existing contents.
	SwapPrepend
	// SwapNone has no DOM effect; the patch is a side-channel signal only.
	SwapNone
)

var swapNames = map[Swap]string{
	SwapInline:  "inline",
	SwapOutline: "outline",
	SwapAppend:  "append",
	SwapPrepend: "prepend",
	SwapNone:    "none",
}

// String returns the wire name of the swap mode.
func (s Swap) String() string {
	if name, ok := swapNames[s]; ok {
		return name
	}
	return "inline"
}

// ParseSwap maps a wire name to a Swap. Unknown or empty names fall back to
// SwapInline, matching how the browser applies patches.
func ParseSwap(name string) Swap {
	for s, n := range swapNames {
		if n == name {
			return s
		}
	}
	return SwapInline
}

// MarshalJSON encodes the swap mode as its wire name.
func (s Swap) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire name into a swap mode.
func (s *Swap) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("live: swap mode: %w", err)
	}
	*s = ParseSwap(name)
	return nil
}

// Patch is one DOM mutation addressed to a server-assigned element id.
// Patches are immutable values: produced once per server-side mutation
// event and copied freely afterwards.
type Patch struct {
	TargetID string `json:"id"`
	Swap     Swap   `json:"swap"`
	HTML     string `json:"html"`
}

// Message envelope types shared by the websocket push and poll payloads.
const (
	MessagePatch  = "patch"
	MessageReload = "reload"
)

// Message is the JSON envelope sent over the websocket.
type Message struct {
	Type    string  `json:"type"`
	Patches []Patch `json:"patches,omitempty"`
}
