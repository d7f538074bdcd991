package fetch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// chatHistory is the platform's chat payload for one call.
type chatHistory struct {
	AgentName   string        `json:"agentName"`
	CallType    string        `json:"callType"`
	CallStarted string        `json:"callStarted"`
	CallEnded   string        `json:"callEnded"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Summary     string        `json:"summary"`
	Messages    []chatMessage `json:"chat"`
	Duration    float64       `json:"time"`
}

type chatMessage struct {
	Role      string `json:"role"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// formatTranscript renders the chat history as a readable transcript with a
// metadata header, the layout the analyzer's document source consumes.
func formatTranscript(chat *chatHistory, callID string) string {
	var b strings.Builder

	writeField := func(name, value string) {
		if value == "" {
			value = "Unknown"
		}
		fmt.Fprintf(&b, "%s: %s\n", name, value)
	}

	writeField("Call ID", callID)
	writeField("Agent", chat.AgentName)
	writeField("Call Type", chat.CallType)
	writeField("Start Time", chat.CallStarted)
	writeField("End Time", chat.CallEnded)
	fmt.Fprintf(&b, "Duration: %.0f seconds\n", chat.Duration)
	writeField("From", chat.From)
	writeField("To", chat.To)
	if chat.Summary != "" {
		writeField("Summary", chat.Summary)
	}

	divider := strings.Repeat("=", 50)
	fmt.Fprintf(&b, "%s\nTRANSCRIPT:\n%s\n", divider, divider)

	for _, msg := range chat.Messages {
		if isSystemJSON(msg.Message) {
			continue
		}

		var roleName string
		switch msg.Role {
		case "assistant":
			roleName = "AI Agent"
		case "user":
			roleName = "Customer"
		default:
			roleName = capitalize(msg.Role)
		}

		fmt.Fprintf(&b, "\n[%s] %s: %s", msg.Timestamp, roleName, msg.Message)
	}

	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// isSystemJSON reports whether a message body is a machine-directed JSON
// object rather than conversation content.
func isSystemJSON(content string) bool {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "{") || !strings.HasSuffix(content, "}") {
		return false
	}
	return json.Valid([]byte(content))
}
