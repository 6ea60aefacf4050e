package services

import (
	"encoding/json"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/stridehq/stride/config"
	"github.com/stridehq/stride/models"
	"github.com/stridehq/stride/utils"
)

// InboundSubmission is the normalized form of a provider callback announcing
// a completion proof.
type InboundSubmission struct {
	ChannelUserID string
	ProjectID     uint
	DayNumber     int
	MediaRefs     []string
	Notes         string
}

// flexID accepts both string and numeric identifiers, which providers mix freely.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type inboundIdentity struct {
	ID flexID `json:"id"`
}

// inboundPayload covers the known callback shapes. The provider has shipped
// three generations of this payload; field precedence is fixed in
// NormalizeSubmission rather than scattered over read sites.
type inboundPayload struct {
	Event      string           `json:"event"`
	Subscriber *inboundIdentity `json:"subscriber"`
	User       *inboundIdentity `json:"user"`
	UserID     flexID           `json:"user_id"`
	ProjectID  uint             `json:"project_id"`
	Day        int              `json:"day"`
	DayNumber  int              `json:"day_number"`
	Media      []string         `json:"media"`
	MediaRef   string           `json:"media_ref"`
	Note       string           `json:"note"`
	Notes      string           `json:"notes"`
}

// NormalizeSubmission converts a raw provider callback into the canonical
// form. Pure: no storage access. Precedence: subscriber.id, then user.id,
// then user_id; day over day_number; media array over single media_ref.
func NormalizeSubmission(raw []byte) (*InboundSubmission, error) {
	var p inboundPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, validationf("malformed webhook payload: %v", err)
	}
	if p.Event != "" && p.Event != "submission" {
		return nil, validationf("unsupported webhook event %q", p.Event)
	}

	var channelID string
	switch {
	case p.Subscriber != nil && p.Subscriber.ID != "":
		channelID = string(p.Subscriber.ID)
	case p.User != nil && p.User.ID != "":
		channelID = string(p.User.ID)
	case p.UserID != "":
		channelID = string(p.UserID)
	default:
		return nil, validationf("webhook payload carries no recipient identity")
	}

	day := p.Day
	if day == 0 {
		day = p.DayNumber
	}
	if day < 1 {
		return nil, validationf("webhook payload carries no valid day number")
	}
	if p.ProjectID == 0 {
		return nil, validationf("webhook payload carries no project id")
	}

	media := p.Media
	if len(media) == 0 && p.MediaRef != "" {
		media = []string{p.MediaRef}
	}

	notes := p.Note
	if notes == "" {
		notes = p.Notes
	}

	return &InboundSubmission{
		ChannelUserID: channelID,
		ProjectID:     p.ProjectID,
		DayNumber:     day,
		MediaRefs:     media,
		Notes:         notes,
	}, nil
}

// WebhookService feeds provider callbacks into the completion ledger.
type WebhookService struct {
	db     *gorm.DB
	ledger *LedgerService
}

// NewWebhookService creates the inbound webhook service.
func NewWebhookService(db *gorm.DB, ledger *LedgerService) *WebhookService {
	return &WebhookService{db: db, ledger: ledger}
}

// HandleSubmission normalizes the callback, resolves the platform user by
// channel identity and submits through the regular ledger path. The legacy
// auto-approve behavior is behind WebhookAutoApprove (default off): new
// submissions land in PENDING_REVIEW like everything else.
func (w *WebhookService) HandleSubmission(raw []byte) (*models.CompletionRecord, error) {
	sub, err := NormalizeSubmission(raw)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := w.db.Where("channel_id = ?", sub.ChannelUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("no user connected as channel identity %q", sub.ChannelUserID)
		}
		return nil, err
	}

	record, err := w.ledger.Submit(user.ID, sub.ProjectID, sub.DayNumber, sub.MediaRefs, sub.Notes)
	if err != nil {
		return nil, err
	}

	if config.Get().WebhookAutoApprove {
		if utils.Sugar != nil {
			utils.Sugar.Warnf("webhook auto-approve enabled, approving record %d without review", record.ID)
		}
		return w.ledger.Evaluate(record.ID, models.CompletionApproved, "")
	}
	return record, nil
}
