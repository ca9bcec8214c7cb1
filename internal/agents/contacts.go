package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matedort/careline/internal/store"
)

// LookupContact handles the lookup, list, birthday_check, add and edit
// actions of the lookup_contact tool.
func LookupContact(ctx context.Context, env Env, args map[string]any) (string, error) {
	action := argString(args, "action")
	if action == "" {
		action = "lookup"
	}

	switch action {
	case "lookup":
		return lookupContact(ctx, env, argString(args, "name"))
	case "list":
		return listContacts(ctx, env)
	case "birthday_check":
		return birthdayCheck(ctx, env)
	case "add":
		return addContact(ctx, env, args)
	case "edit":
		return editContact(ctx, env, args)
	default:
		return "", fmt.Errorf("unknown contact action %q", action)
	}
}

func lookupContact(ctx context.Context, env Env, name string) (string, error) {
	c, err := env.Store.SearchContact(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return "I don't have contact information for " + name, nil
	}
	if err != nil {
		return "", fmt.Errorf("search contact: %w", err)
	}
	return contactCard(c), nil
}

func listContacts(ctx context.Context, env Env) (string, error) {
	contacts, err := env.Store.ListContacts(ctx)
	if err != nil {
		return "", fmt.Errorf("list contacts: %w", err)
	}
	if len(contacts) == 0 {
		return "You have no saved contacts.", nil
	}

	lines := []string{"Your contacts:"}
	for _, c := range contacts {
		lines = append(lines, fmt.Sprintf("- %s (%s)", c.Name, c.Relation))
	}
	return strings.Join(lines, "\n"), nil
}

func birthdayCheck(ctx context.Context, env Env) (string, error) {
	contacts, err := env.Store.ListContacts(ctx)
	if err != nil {
		return "", fmt.Errorf("list contacts: %w", err)
	}

	today := env.now()
	var lines []string
	for _, c := range contacts {
		if c.Birthday == "" {
			continue
		}
		bday, err := time.Parse("2006-01-02", c.Birthday)
		if err != nil {
			continue
		}
		if bday.Month() == today.Month() && bday.Day() == today.Day() {
			lines = append(lines, fmt.Sprintf("Today is %s's birthday!", c.Name))
		}
	}
	if len(lines) == 0 {
		return "No birthdays today.", nil
	}
	return strings.Join(lines, "\n"), nil
}

func addContact(ctx context.Context, env Env, args map[string]any) (string, error) {
	name := argString(args, "name")
	if name == "" {
		return "Please provide a name for the contact.", nil
	}

	if _, err := env.Store.SearchContact(ctx, name); err == nil {
		return fmt.Sprintf("A contact named %s already exists. Use edit to update it.", name), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("search contact: %w", err)
	}

	c, err := env.Store.CreateContact(ctx, store.Contact{
		Name:     name,
		Relation: argString(args, "relation"),
		Phone:    argString(args, "phone"),
		Birthday: argString(args, "birthday"),
		Notes:    argString(args, "notes"),
	})
	if err != nil {
		return "", fmt.Errorf("add contact: %w", err)
	}
	return "Contact added:\n" + contactCard(c), nil
}

func editContact(ctx context.Context, env Env, args map[string]any) (string, error) {
	oldName := argString(args, "old_name")
	if oldName == "" {
		oldName = argString(args, "name")
	}
	if oldName == "" {
		return "I couldn't find that contact.", nil
	}

	c, err := env.Store.SearchContact(ctx, oldName)
	if errors.Is(err, store.ErrNotFound) {
		return "I couldn't find a contact named " + oldName, nil
	}
	if err != nil {
		return "", fmt.Errorf("search contact: %w", err)
	}

	upd := store.ContactUpdate{}
	if newName := argString(args, "new_name"); newName != "" {
		upd.Name = &newName
	} else if name := argString(args, "name"); name != "" && name != oldName {
		upd.Name = &name
	}
	if relation := argString(args, "relation"); relation != "" {
		upd.Relation = &relation
	}
	if phone := argString(args, "phone"); phone != "" {
		upd.Phone = &phone
	}
	if birthday := argString(args, "birthday"); birthday != "" {
		upd.Birthday = &birthday
	}
	if notes := argString(args, "notes"); notes != "" {
		upd.Notes = &notes
	}

	if upd == (store.ContactUpdate{}) {
		return "No changes specified.", nil
	}
	if err := env.Store.UpdateContact(ctx, c.ID, upd); err != nil {
		return "", fmt.Errorf("update contact: %w", err)
	}

	updated, err := env.Store.SearchContact(ctx, valueOr(upd.Name, c.Name))
	if err != nil {
		return "Contact updated: " + oldName, nil
	}
	return "Contact updated:\n" + contactCard(updated), nil
}

func contactCard(c store.Contact) string {
	lines := []string{c.Name}
	if c.Relation != "" {
		lines = append(lines, "Relation: "+c.Relation)
	}
	if c.Phone != "" {
		lines = append(lines, "Phone: "+c.Phone)
	}
	if c.Birthday != "" {
		lines = append(lines, "Birthday: "+formatBirthday(c.Birthday))
	}
	return strings.Join(lines, "\n")
}

func formatBirthday(birthday string) string {
	bday, err := time.Parse("2006-01-02", birthday)
	if err != nil {
		return birthday
	}
	return bday.Format("January 02, 2006")
}

func valueOr(p *string, fallback string) string {
	if p != nil {
		return *p
	}
	return fallback
}
