package model

import (
	"time"
)

// MailImportance mirrors the provider's importance levels.
type MailImportance string

const (
	ImportanceLow    MailImportance = "low"
	ImportanceNormal MailImportance = "normal"
	ImportanceHigh   MailImportance = "high"
)

// MailDirection records whether a message was sent or received.
type MailDirection string

const (
	DirectionSent     MailDirection = "sent"
	DirectionReceived MailDirection = "received"
)

// MailMessage is a deduplicated copy of a provider-side message. The
// composite unique index on (account_id, message_id) is the natural key:
// the same upstream message can show up in both a manual query and a delta
// sync, and must only ever produce one row.
type MailMessage struct {
	ID                uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	AccountID         string         `json:"account_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_account_message,priority:1"`
	MessageID         string         `json:"message_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_account_message,priority:2"`
	InternetMessageID string         `json:"internet_message_id" gorm:"type:varchar(512)"`
	Subject           string         `json:"subject" gorm:"type:varchar(1024)"`
	SenderEmail       string         `json:"sender_email" gorm:"type:varchar(255)"`
	SenderName        string         `json:"sender_name" gorm:"type:varchar(255)"`
	Recipients        []string       `json:"recipients" gorm:"serializer:json"`
	CcRecipients      []string       `json:"cc_recipients" gorm:"serializer:json"`
	BccRecipients     []string       `json:"bcc_recipients" gorm:"serializer:json"`
	BodyPreview       string         `json:"body_preview" gorm:"type:text"`
	BodyContent       string         `json:"body_content" gorm:"type:longtext"`
	BodyContentType   string         `json:"body_content_type" gorm:"type:varchar(16);default:html"`
	Importance        MailImportance `json:"importance" gorm:"type:varchar(16);default:normal"`
	IsRead            bool           `json:"is_read"`
	HasAttachments    bool           `json:"has_attachments"`
	ReceivedDateTime  time.Time      `json:"received_datetime"`
	SentDateTime      *time.Time     `json:"sent_datetime"`
	Direction         MailDirection  `json:"direction" gorm:"type:varchar(16);not null;default:received"`
	FolderName        string         `json:"folder_name" gorm:"type:varchar(255)"`
	Categories        []string       `json:"categories" gorm:"serializer:json"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TableName specifies the table name for MailMessage
func (MailMessage) TableName() string {
	return "mail_messages"
}

// DeltaLink is the incremental-sync cursor for one (account, folder) pair.
// Only one row per pair may have is_active=true; the repository deactivates
// the prior link in the same transaction that inserts a new one.
type DeltaLink struct {
	ID         uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	AccountID  string     `json:"account_id" gorm:"type:varchar(36);not null;index:idx_delta_account_folder,priority:1"`
	FolderID   string     `json:"folder_id" gorm:"type:varchar(255);not null;default:Inbox;index:idx_delta_account_folder,priority:2"`
	DeltaToken string     `json:"-" gorm:"type:text;not null"`
	IsActive   bool       `json:"is_active" gorm:"not null;default:true;index:idx_delta_account_folder,priority:3"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// TableName specifies the table name for DeltaLink
func (DeltaLink) TableName() string {
	return "delta_links"
}
