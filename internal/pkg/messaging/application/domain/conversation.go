package messaging

import (
	"sort"
	"strings"
	"time"
)

// AddressKind classifies a participant address by shape.
type AddressKind string

const (
	AddressKindPhone AddressKind = "phone"
	AddressKindEmail AddressKind = "email"
)

// AddressKindOf derives the kind from the address shape: anything containing
// an "@" is an email address, everything else is a phone number.
func AddressKindOf(address string) AddressKind {
	if strings.Contains(address, "@") {
		return AddressKindEmail
	}
	return AddressKindPhone
}

// Conversation groups all messages exchanged between one unordered set of
// participant addresses. Identity is immutable once created.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Participant ties an address to exactly one conversation.
// (ConversationID, Address) pairs are unique.
type Participant struct {
	ID             string
	ConversationID string
	Address        string
	Kind           AddressKind
	CreatedAt      time.Time
}

// ParticipantKey builds the canonical lookup key for an unordered participant
// set: trimmed addresses, sorted, joined. resolve({A,B}) and resolve({B,A})
// therefore produce the same key.
func ParticipantKey(addresses []string) string {
	normalized := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = strings.TrimSpace(a)
		if a != "" {
			normalized = append(normalized, a)
		}
	}
	sort.Strings(normalized)
	return strings.Join(normalized, "|")
}
