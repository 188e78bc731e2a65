package tgui

import (
	"errors"
	"strings"
)

// Data formats inline callback data as "plugin:action:payload".
// Payload is kept as-is (no escaping); keep it short, Telegram caps the
// whole callback_data string at MaxCallbackDataLen bytes.
func Data(plugin, action, payload string) string {
	plugin = strings.TrimSpace(plugin)
	action = strings.TrimSpace(action)
	if payload == "" {
		return plugin + ":" + action
	}
	return plugin + ":" + action + ":" + payload
}

// SplitData parses "plugin:action:payload" callback data. The payload part
// is optional and may itself contain colons.
func SplitData(data string) (plugin, action, payload string, err error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 {
		return "", "", "", errors.New("tgui: malformed callback data")
	}
	plugin = parts[0]
	action = parts[1]
	if len(parts) == 3 {
		payload = parts[2]
	}
	return plugin, action, payload, nil
}
