package server

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Recipient is one addressee of a Mail with its own read and delete flags.
type Recipient struct {
	UUID     uuid.UUID  `json:"uuid"`
	Read     bool       `json:"read,omitempty"`
	Deleted  bool       `json:"deleted,omitempty"`
	OpenedAt *time.Time `json:"opened_at,omitempty"`
}

// Mail is one stored message. Sender is uuid.Nil for the console.
type Mail struct {
	ID         uuid.UUID    `json:"id"`
	Sender     uuid.UUID    `json:"sender"`
	SenderName string       `json:"sender_name"`
	Recipients []*Recipient `json:"recipients"`
	Subject    string       `json:"subject,omitempty"`
	Body       string       `json:"body"`
	SentAt     time.Time    `json:"sent_at"`
	AutoReply  bool         `json:"auto_reply,omitempty"`
}

// Recipient returns the addressee entry for id.
func (m *Mail) Recipient(id uuid.UUID) (*Recipient, bool) {
	for _, r := range m.Recipients {
		if r.UUID == id {
			return r, true
		}
	}
	return nil, false
}

// CanDelete reports whether the mail may be dropped: every recipient
// deleted it, or it is older than retention (when retention > 0).
func (m *Mail) CanDelete(now time.Time, retention time.Duration) bool {
	if retention > 0 && now.Sub(m.SentAt) > retention {
		return true
	}
	if len(m.Recipients) == 0 {
		return false
	}
	for _, r := range m.Recipients {
		if !r.Deleted {
			return false
		}
	}
	return true
}

// Encode returns the JSON document stored for the mail.
func (m *Mail) Encode() ([]byte, error) { return json.Marshal(m) }

// DecodeMail parses a stored or received mail document.
func DecodeMail(b []byte) (*Mail, error) {
	var m Mail
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
