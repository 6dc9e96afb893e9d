package store

// Store is a key-addressed, JSON-serialized persistence layer shared by the
// visitor widget and the agent console. Values are whole documents: every
// write replaces the full value under its key, last writer wins, and there
// are no transactions. Concurrent writers to the same key can clobber each
// other, an accepted limitation of the single-operator support desk this
// serves, not something the backends paper over.
type Store interface {
	// Get unmarshals the value under key into v. A missing key or a value
	// that no longer parses as JSON leaves v at its zero value and returns
	// found=false; corruption never surfaces as an error to callers.
	Get(key string, v any) (found bool, err error)
	// Put marshals v and replaces the value under key.
	Put(key string, v any) error
	// Delete removes the value under key. Deleting a missing key is a no-op.
	Delete(key string) error
	// Keys returns all stored keys with the given prefix.
	Keys(prefix string) ([]string, error)
}

// Well-known collection keys. Session-scoped keys are produced by SessionKey.
const (
	KeyTickets   = "db:tickets"
	KeyPrograms  = "db:programs"
	KeyMentors   = "db:mentors"
	KeyCustomers = "db:customers"
	KeyStaff     = "db:staff"
)

// SessionKey scopes a logical key to one visitor session so that two
// sessions never read each other's chat state.
func SessionKey(sessionID, key string) string {
	return "session:" + sessionID + ":" + key
}

// Session-scoped logical keys.
const (
	KeyChatHistory    = "chat-history"
	KeyChatState      = "chat-state"
	KeyUserProfile    = "user-profile"
	KeyActiveTicketID = "active-ticket-id"
)
