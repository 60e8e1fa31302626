// internal/models/dealroom.go
package models

import "time"

type DealRoomSettings struct {
	AllowDownloads     bool `json:"allowDownloads"`
	WatermarkDocuments bool `json:"watermarkDocuments"`
	RequireNDA         bool `json:"requireNda"`
	AutoExpireAccess   bool `json:"autoExpireAccess"`
	ExpiryDays         int  `json:"expiryDays,omitempty"`
}

type DealRoom struct {
	ID            string           `json:"id"`
	MatchID       string           `json:"matchId"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	NDARequired   bool             `json:"ndaRequired"`
	NDATemplateID *string          `json:"ndaTemplateId,omitempty"`
	Settings      DealRoomSettings `json:"settings"`
	CreatedBy     string           `json:"createdBy"`
	CreatedAt     time.Time        `json:"createdAt"`
}

type AccessLevel string

const (
	AccessView    AccessLevel = "view"
	AccessComment AccessLevel = "comment"
	AccessEdit    AccessLevel = "edit"
	AccessAdmin   AccessLevel = "admin"
)

type DealRoomAccess struct {
	DealRoomID    string      `json:"dealRoomId"`
	UserID        string      `json:"userId"`
	Level         AccessLevel `json:"accessLevel"`
	NDASigned     bool        `json:"ndaSigned"`
	NDASignedAt   *time.Time  `json:"ndaSignedAt,omitempty"`
	NDADocumentID *string     `json:"ndaDocumentId,omitempty"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
	GrantedAt     time.Time   `json:"grantedAt"`
}

// DealRoomMembership is a room as one participant sees it: the room plus
// that participant's grant.
type DealRoomMembership struct {
	DealRoom DealRoom       `json:"dealRoom"`
	Access   DealRoomAccess `json:"access"`
}

// Expired reports whether time-boxed access has lapsed at now.
func (a *DealRoomAccess) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

type DocumentCategory string

const (
	DocNDA            DocumentCategory = "nda"
	DocContract       DocumentCategory = "contract"
	DocFinancial      DocumentCategory = "financial"
	DocLegal          DocumentCategory = "legal"
	DocTechnical      DocumentCategory = "technical"
	DocDueDiligence   DocumentCategory = "due_diligence"
	DocPresentation   DocumentCategory = "presentation"
	DocCorrespondence DocumentCategory = "correspondence"
	DocOther          DocumentCategory = "other"
)

type Document struct {
	ID         string           `json:"id"`
	DealRoomID string           `json:"dealRoomId"`
	Name       string           `json:"name"`
	Category   DocumentCategory `json:"category"`
	FileKey    string           `json:"fileKey"`
	FileURL    string           `json:"fileUrl"`
	MimeType   string           `json:"mimeType"`
	SizeBytes  int64            `json:"fileSize"`
	UploadedBy string           `json:"uploadedBy"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type NDATemplate struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Content      string `json:"content"`
	Jurisdiction string `json:"jurisdiction"`
}
