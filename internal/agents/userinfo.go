package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// maxBioMatches caps how many bio entries one query returns.
const maxBioMatches = 3

// LookupUserInfo searches the stored user bio for entries whose key or
// value contains the query. With no match it falls back to a one-line
// overview so the assistant always has something to say.
func LookupUserInfo(ctx context.Context, env Env, args map[string]any) (string, error) {
	query := strings.ToLower(argString(args, "query"))

	bio, err := env.Store.AllBio(ctx)
	if err != nil {
		return "", fmt.Errorf("load bio: %w", err)
	}

	keys := make([]string, 0, len(bio))
	for k := range bio {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var matches []string
	for _, k := range keys {
		v := bio[k]
		if strings.Contains(strings.ToLower(k), query) || strings.Contains(strings.ToLower(v), query) {
			matches = append(matches, v)
			if len(matches) == maxBioMatches {
				break
			}
		}
	}
	if len(matches) > 0 {
		return strings.Join(matches, "\n"), nil
	}

	name := bio["name"]
	if name == "" {
		name = "User"
	}
	background := bio["background"]
	if background == "" {
		background = "No information available"
	}
	return name + " - " + background, nil
}
