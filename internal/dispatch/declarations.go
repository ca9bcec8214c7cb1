package dispatch

import "github.com/matedort/careline/internal/live"

// builtins lists every tool the assistant exposes, with the schemas the
// model sees during session setup.
func builtins() []binding {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "STRING", "description": desc}
	}
	obj := func(props map[string]any, required ...string) map[string]any {
		if required == nil {
			required = []string{}
		}
		return map[string]any{"type": "OBJECT", "properties": props, "required": required}
	}

	return []binding{
		{kind: KindReminder, decl: live.FunctionDeclaration{
			Name:        "manage_reminder",
			Description: "Create, list, delete, or edit reminders. Supports recurring reminders (daily, weekly). Examples: 'remind me to take my pill every day at 3pm', 'what reminders do I have', 'delete my 8am reminder', 'change the 9am reminder to 10am'",
			Parameters: obj(map[string]any{
				"action":    str("Action: create, list, delete, or edit"),
				"title":     str("Reminder description (e.g., 'take my pill'). For edit: can be used to find the reminder or set a new title"),
				"time":      str("When to remind: '3pm', 'tomorrow at 8am', 'every day at 1pm', 'every monday at 2pm'. For edit: new time for the reminder"),
				"old_title": str("For edit: the current title of the reminder to find"),
				"old_time":  str("For edit: the current time of the reminder to find (e.g., '9am', '3pm')"),
				"new_title": str("For edit: the new title for the reminder"),
				"new_time":  str("For edit: the new time for the reminder (e.g., '10am', 'tomorrow at 2pm')"),
			}, "action"),
		}},
		{kind: KindContact, decl: live.FunctionDeclaration{
			Name:        "lookup_contact",
			Description: "Look up, add, edit, or manage family and friends contact information including phone numbers, birthdays, and relationships. Examples: 'what is Helen's phone number', 'add a new contact named Harry', 'edit Harry's phone number'",
			Parameters: obj(map[string]any{
				"action":   str("Action: lookup (find specific contact), list (all contacts), birthday_check (check today's birthdays), add (create new contact), or edit (update existing contact)"),
				"name":     str("Contact name. For lookup/add: the name. For edit: can be used to find the contact or set a new name"),
				"relation": str("Relationship (e.g., 'friend', 'doctor', 'family'). For add/edit"),
				"phone":    str("Phone number. For add/edit"),
				"birthday": str("Birthday in YYYY-MM-DD format (e.g., '2004-08-27'). For add/edit"),
				"notes":    str("Additional notes about the contact. For add/edit"),
				"old_name": str("For edit: the current name of the contact to find"),
				"new_name": str("For edit: the new name for the contact"),
			}, "action"),
		}},
		{kind: KindUserInfo, decl: live.FunctionDeclaration{
			Name:        "lookup_user_info",
			Description: "Get stored information about the user - background, goals, interests, achievements, and so on.",
			Parameters: obj(map[string]any{
				"query": str("What information to look up (e.g., 'background', 'goals', 'interests')"),
			}, "query"),
		}},
		{kind: KindNotification, decl: live.FunctionDeclaration{
			Name:        "send_notification",
			Description: "Send a notification or trigger a phone call",
			Parameters: obj(map[string]any{
				"message": str("Notification message"),
				"type":    str("Type: 'call' (phone call) or 'message' (notification)"),
			}, "message"),
		}},
		{kind: KindClock, decl: live.FunctionDeclaration{
			Name:        "get_current_time",
			Description: "Get the current date and time. Use this whenever you need to know what time it is right now.",
			Parameters:  obj(map[string]any{}),
		}},
	}
}
