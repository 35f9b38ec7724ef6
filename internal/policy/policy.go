package policy

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/btcops/internal/errors"
)

// CheckActionsAllowed rejects the invocation when any requested action is
// missing from a non-empty allowlist.
func CheckActionsAllowed(allowlist []string, actions []string) error {
	if len(allowlist) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(allowlist))
	for _, a := range allowlist {
		allowed[normalize(a)] = struct{}{}
	}
	for _, action := range actions {
		if _, ok := allowed[normalize(action)]; !ok {
			return clierr.New(clierr.CodeBlocked, fmt.Sprintf("action %q blocked by --enable-actions policy", action))
		}
	}
	return nil
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
