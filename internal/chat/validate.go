// ABOUTME: Structural validation of inbound chat requests
// ABOUTME: Rejects malformed payloads before anything reaches the runtime

package chat

import (
	"fmt"
)

// validRoles is the closed set of accepted message roles.
var validRoles = map[string]bool{
	RoleUser:      true,
	RoleAssistant: true,
	RoleSystem:    true,
}

// ValidateRequest performs structural checks on the chat payload. It fails
// fast on the first violation so no side effects occur on invalid input.
func ValidateRequest(req *Request) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("messages must be a non-empty array")
	}

	for i, m := range req.Messages {
		if m.Role == "" {
			return fmt.Errorf("message %d: role is required", i)
		}
		if !validRoles[m.Role] {
			return fmt.Errorf("message %d: invalid role %q, must be one of user, assistant, system", i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("message %d: content is required", i)
		}
	}

	return nil
}
