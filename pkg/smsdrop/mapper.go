package smsdrop

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	maxAlphanumericSender = 11
	maxNumericSender      = 18
)

// deferLayout always carries a numeric UTC offset, never a bare "Z".
const deferLayout = "2006-01-02T15:04:05-07:00"

// campaignRequest is the body sent to create a campaign. Unset deferral
// fields are omitted rather than sent as null.
type campaignRequest struct {
	Title         string      `json:"title,omitempty"`
	Message       string      `json:"message"`
	MessageType   MessageType `json:"message_type"`
	Sender        string      `json:"sender"`
	RecipientList []string    `json:"recipient_list"`
	DeferUntil    string      `json:"defer_until,omitempty"`
	DeferBy       int64       `json:"defer_by,omitempty"`
}

// campaignResource is a campaign as returned by the API. Pointers tell absent
// keys apart from zero values.
type campaignResource struct {
	ID                 string       `json:"id"`
	Title              *string      `json:"title"`
	Message            *string      `json:"message"`
	MessageType        *MessageType `json:"message_type"`
	Sender             *string      `json:"sender"`
	RecipientList      []string     `json:"recipient_list"`
	DeferUntil         *Timestamp   `json:"defer_until"`
	DeferBy            *int64       `json:"defer_by"`
	Status             Status       `json:"status"`
	DeliveryPercentage *float64     `json:"delivery_percentage"`
	MessageCount       *int         `json:"message_count"`
	SMSCount           *int         `json:"sms_count"`
}

// Validate checks the campaign locally. Launch calls it before any request.
func (c *Campaign) Validate() error {
	if c == nil {
		return invalid("campaign", "must not be nil")
	}
	if c.DeferUntil != nil && c.DeferBy != 0 {
		return invalid("defer_until", "use either defer_until or defer_by, not both")
	}
	if c.DeferUntil != nil && c.DeferUntil.IsZero() {
		return invalid("defer_until", "must be a concrete instant with a time zone")
	}
	if c.DeferBy < 0 {
		return invalid("defer_by", "must not be negative")
	}
	if c.DeferBy > 0 && c.DeferBy < time.Second {
		return invalid("defer_by", "must be at least one second")
	}
	if c.DeferBy%time.Second != 0 {
		return invalid("defer_by", "must be a whole number of seconds")
	}
	if strings.TrimSpace(c.Message) == "" {
		return invalid("message", "must not be empty")
	}
	if c.MessageType < PlainText || c.MessageType > Unicode {
		return invalid("message_type", "unknown message type "+c.MessageType.String())
	}
	if err := validateSender(c.Sender); err != nil {
		return err
	}
	if len(c.RecipientList) == 0 {
		return invalid("recipient_list", "must contain at least one phone number")
	}
	for i, phone := range c.RecipientList {
		if strings.TrimSpace(phone) == "" {
			return invalid("recipient_list", "entry "+strconv.Itoa(i)+" is blank")
		}
	}
	return nil
}

func validateSender(sender string) error {
	if sender == "" {
		return invalid("sender", "must not be empty")
	}
	digits := strings.TrimPrefix(sender, "+")
	if digits != "" && strings.IndexFunc(digits, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		if len(digits) > maxNumericSender {
			return invalid("sender", "must be <= 18 characters if numeric")
		}
		return nil
	}
	if len([]rune(sender)) > maxAlphanumericSender {
		return invalid("sender", "must be <= 11 characters if alphanumeric")
	}
	return nil
}

// encodeCampaign maps a validated Campaign to its request body.
func encodeCampaign(c *Campaign) campaignRequest {
	req := campaignRequest{
		Title:         c.Title,
		Message:       c.Message,
		MessageType:   c.MessageType,
		Sender:        c.Sender,
		RecipientList: c.RecipientList,
	}
	if c.DeferUntil != nil {
		req.DeferUntil = c.DeferUntil.Format(deferLayout)
	}
	if c.DeferBy > 0 {
		req.DeferBy = int64(c.DeferBy / time.Second)
	}
	return req
}

// applyLaunch copies the server-owned fields of a create response onto c.
// The caller's content (message, sender, recipients) is left untouched.
func (r *campaignResource) applyLaunch(c *Campaign) {
	if r.ID != "" {
		c.ID = r.ID
	}
	if c.Title == "" && r.Title != nil {
		c.Title = *r.Title
	}
	r.applyState(c)
}

// applyRefresh copies every field the server returned onto c.
func (r *campaignResource) applyRefresh(c *Campaign) {
	if r.ID != "" {
		c.ID = r.ID
	}
	if r.Title != nil {
		c.Title = *r.Title
	}
	if r.Message != nil {
		c.Message = *r.Message
	}
	if r.MessageType != nil {
		c.MessageType = *r.MessageType
	}
	if r.Sender != nil {
		c.Sender = *r.Sender
	}
	if r.RecipientList != nil {
		c.RecipientList = append([]string(nil), r.RecipientList...)
	}
	if r.DeferUntil != nil && !r.DeferUntil.IsZero() {
		t := r.DeferUntil.Time
		c.DeferUntil = &t
		c.DeferBy = 0
	} else if r.DeferBy != nil && *r.DeferBy > 0 {
		c.DeferBy = time.Duration(*r.DeferBy) * time.Second
		c.DeferUntil = nil
	}
	r.applyState(c)
}

func (r *campaignResource) applyState(c *Campaign) {
	if r.Status != "" {
		c.Status = r.Status
	}
	if r.DeliveryPercentage != nil {
		c.DeliveryPercentage = *r.DeliveryPercentage
	}
	if r.MessageCount != nil {
		c.MessageCount = *r.MessageCount
	}
	if r.SMSCount != nil {
		c.SMSCount = *r.SMSCount
	}
}

// toCampaign builds a fresh snapshot from a listed resource.
func (r *campaignResource) toCampaign() Campaign {
	var c Campaign
	r.applyRefresh(&c)
	return c
}
