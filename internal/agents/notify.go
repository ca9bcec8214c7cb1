package agents

import (
	"context"
	"fmt"
)

// SendNotification delivers a notification, optionally by placing a
// phone call when type is "call".
func SendNotification(ctx context.Context, env Env, args map[string]any) (string, error) {
	message := argString(args, "message")
	if message == "" {
		return "", fmt.Errorf("notification message is required")
	}
	channel := argString(args, "type")
	if channel == "" {
		channel = "message"
	}

	if env.Notifier == nil {
		return "", fmt.Errorf("notifications are not configured")
	}
	if err := env.Notifier.Notify(ctx, message, channel); err != nil {
		return "", fmt.Errorf("send notification: %w", err)
	}

	if channel == "call" {
		return "Phone call scheduled: " + message, nil
	}
	return "Notification sent: " + message, nil
}

// CurrentTime reports the wall-clock time in the assistant's spoken
// format.
func CurrentTime(ctx context.Context, env Env, args map[string]any) (string, error) {
	now := env.now()
	return "It is " + now.Format("03:04 PM on Monday, January 02, 2006") + ".", nil
}
