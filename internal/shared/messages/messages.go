package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Messages holds the user-facing push notification texts. Bodies may contain
// {count} and {institution} placeholders.
type Messages struct {
	SyncComplete       MessageText `json:"sync_complete"`
	ItemNeedsAttention MessageText `json:"item_needs_attention"`
}

func Default() *Messages {
	return &Messages{
		SyncComplete: MessageText{
			Title: "Transactions updated",
			Body:  "{count} new transactions from {institution}",
		},
		ItemNeedsAttention: MessageText{
			Title: "Bank connection needs attention",
			Body:  "We couldn't sync {institution}. Please reconnect your account.",
		},
	}
}

// Load reads path and overlays it on the defaults. Texts missing from the
// file keep their default value.
func Load(path string) (*Messages, error) {
	m := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("failed to read messages file: %w", err)
	}

	var fromFile Messages
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return m, fmt.Errorf("failed to parse messages file: %w", err)
	}

	overlay(&m.SyncComplete, fromFile.SyncComplete)
	overlay(&m.ItemNeedsAttention, fromFile.ItemNeedsAttention)
	return m, nil
}

func overlay(dst *MessageText, src MessageText) {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Body != "" {
		dst.Body = src.Body
	}
}

// Render substitutes {name} placeholders in t.
func (t MessageText) Render(vars map[string]string) MessageText {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return MessageText{Title: r.Replace(t.Title), Body: r.Replace(t.Body)}
}
