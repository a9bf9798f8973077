package smsdrop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MessageType is how the SMS is encoded and displayed.
type MessageType int

const (
	PlainText    MessageType = 0
	FlashMessage MessageType = 1
	Unicode      MessageType = 2
)

func (m MessageType) String() string {
	switch m {
	case PlainText:
		return "PLAIN_TEXT"
	case FlashMessage:
		return "FLASH_MESSAGE"
	case Unicode:
		return "UNICODE"
	default:
		return fmt.Sprintf("MessageType(%d)", int(m))
	}
}

// Status is the server-reported campaign state. Values the server adds later
// are kept verbatim.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusPending    Status = "PENDING"
	StatusScheduled  Status = "SCHEDULED"
	StatusProcessing Status = "PROCESSING"
	StatusSending    Status = "SENDING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusAborted    Status = "ABORTED"
	StatusCanceled   Status = "CANCELED"
)

// IsTerminal returns true if the campaign will not change state again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusAborted, StatusCanceled:
		return true
	}
	return false
}

// Campaign is a bulk SMS send job.
//
// ID, Status and the counters are owned by the server: they are empty on a
// locally built Campaign and filled in by Client.Launch and Client.Refresh,
// which modify the Campaign in place. Set at most one of DeferUntil and
// DeferBy; with neither the campaign is dispatched as soon as it is launched.
type Campaign struct {
	ID            string
	Title         string
	Message       string
	MessageType   MessageType
	Sender        string
	RecipientList []string

	// DeferUntil schedules dispatch at an absolute instant. It is sent with
	// its UTC offset.
	DeferUntil *time.Time
	// DeferBy postpones dispatch by a relative delay. It must be a whole
	// number of seconds.
	DeferBy time.Duration

	Status             Status
	DeliveryPercentage float64
	MessageCount       int
	SMSCount           int
}

// Launched reports whether the server has assigned the campaign an ID.
func (c *Campaign) Launched() bool {
	return c != nil && c.ID != ""
}

// Profile is the authenticated account.
type Profile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	IsActive   bool   `json:"is_active"`
	IsVerified bool   `json:"is_verified"`
}

// Subscription is the account's SMS credit balance.
type Subscription struct {
	ID        string    `json:"id"`
	NbrSMS    int       `json:"nbr_sms"`
	CreatedAt Timestamp `json:"created_at"`
}

// Acknowledgment confirms that a single message was accepted.
type Acknowledgment struct {
	CampaignID string
	Status     Status
}

// Timestamp decodes API datetimes. Values without a UTC offset are read as UTC.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an RFC 3339 value, or a zone-less one as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("smsdrop: unrecognized timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
