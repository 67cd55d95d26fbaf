package domain

import "time"

// Mailbox providers a user can link for pull sync
const (
	MailProviderGmail = "gmail"
	MailProviderIMAP  = "imap"
)

type User struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-"` // Never return password in JSON
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Linked mailbox
	MailProvider string    `json:"mail_provider,omitempty"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"-"`
	ImapServer   string    `json:"imap_server,omitempty"`
	ImapPort     int       `json:"imap_port,omitempty"`
	ImapUsername string    `json:"imap_username,omitempty"`
	ImapPassword string    `json:"-"` // sealed with pkg/secret
}

// HasMailbox reports whether pull sync has something to read from.
func (u *User) HasMailbox() bool {
	switch u.MailProvider {
	case MailProviderGmail:
		return u.AccessToken != ""
	case MailProviderIMAP:
		return u.ImapServer != "" && u.ImapUsername != ""
	}
	return false
}
