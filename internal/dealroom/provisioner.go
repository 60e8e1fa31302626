// Package dealroom provisions deal rooms for mutually consented matches and
// gates their documents behind NDA signature.
package dealroom

import (
	"context"
	"fmt"
	"time"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/common/metrics"
	"intent-broker/internal/common/observability"
	"intent-broker/internal/models"
	"intent-broker/internal/storage"
	"intent-broker/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const pdfMime = "application/pdf"

type Store interface {
	WithTx(ctx context.Context, fn func(store.Tx) error) error
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	ListDealRoomsForUser(ctx context.Context, userID string) ([]*models.DealRoomMembership, error)
	GetProfiles(ctx context.Context, ids []string) (map[string]*models.Profile, error)
	GetDefaultNDATemplate(ctx context.Context) (*models.NDATemplate, error)
	GetDealRoom(ctx context.Context, roomID string) (*models.DealRoom, error)
	GetAccess(ctx context.Context, roomID, userID string) (*models.DealRoomAccess, error)
	ListDocuments(ctx context.Context, roomID string) ([]*models.Document, error)
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type Config struct {
	ExpiryDays          int
	AllowDownloads      bool
	WatermarkDocuments  bool
	RequireNDA          bool
	DefaultJurisdiction string
}

type CreateResult struct {
	DealRoom      models.DealRoom `json:"dealRoom"`
	Existing      bool            `json:"existing"`
	NDADocumentID *string         `json:"ndaDocumentId,omitempty"`
}

type SignResult struct {
	DealRoomID    string    `json:"dealRoomId"`
	SignedAt      time.Time `json:"signedAt"`
	AlreadySigned bool      `json:"alreadySigned"`
	AllSigned     bool      `json:"allSigned"`
}

type DocumentList struct {
	DealRoomID  string            `json:"dealRoomId"`
	NDARequired bool              `json:"ndaRequired"`
	NDASigned   bool              `json:"ndaSigned"`
	Documents   []models.Document `json:"documents"`
}

type Provisioner struct {
	config   Config
	store    Store
	storage  storage.Storage
	renderer Renderer
	notifier Notifier
	logger   logger.Logger
	now      func() time.Time
}

func NewProvisioner(config Config, st Store, docs storage.Storage, renderer Renderer, notifier Notifier, log logger.Logger) *Provisioner {
	return &Provisioner{
		config:   config,
		store:    st,
		storage:  docs,
		renderer: renderer,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "dealroom"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// renderedNDA is an uploaded NDA waiting to be recorded.
type renderedNDA struct {
	templateID *string
	key        string
	url        string
	size       int64
}

// Create provisions the deal room for a match in mutual_interest. The NDA is
// rendered and uploaded before the match row is locked; the locked transaction
// re-checks the status, so a concurrent or repeated call sees deal_room_created
// and gets the existing room back.
func (p *Provisioner) Create(ctx context.Context, userID, matchID string) (*CreateResult, error) {
	ctx, span := observability.StartSpan(ctx, "dealroom.Create", attribute.String("match.id", matchID))
	defer span.End()

	pre, err := p.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := checkCreatable(pre, userID); err != nil {
		return nil, err
	}

	now := p.now()
	roomID := uuid.New().String()
	var uploaded *renderedNDA
	if pre.Status == models.MatchMutualInterest {
		uploaded = p.renderNDA(ctx, roomID, pre, now)
	}

	var (
		result       *CreateResult
		counterparty string
	)
	err = p.store.WithTx(ctx, func(tx store.Tx) error {
		m, err := tx.LockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if err := checkCreatable(m, userID); err != nil {
			return err
		}
		counterparty = m.OtherUserID(userID)

		if m.Status == models.MatchDealRoomCreated {
			room, err := tx.GetDealRoomByMatch(ctx, matchID)
			if err != nil {
				return err
			}
			docID, err := tx.FindDocumentID(ctx, room.ID, models.DocNDA)
			if err != nil {
				return err
			}
			result = &CreateResult{DealRoom: *room, Existing: true, NDADocumentID: docID}
			return nil
		}

		room := &models.DealRoom{
			ID:          roomID,
			MatchID:     m.ID,
			Name:        fmt.Sprintf("Deal Room - Match #%s", m.ID),
			NDARequired: p.config.RequireNDA,
			Settings: models.DealRoomSettings{
				AllowDownloads:     p.config.AllowDownloads,
				WatermarkDocuments: p.config.WatermarkDocuments,
				RequireNDA:         p.config.RequireNDA,
				AutoExpireAccess:   p.config.ExpiryDays > 0,
				ExpiryDays:         p.config.ExpiryDays,
			},
			CreatedBy: userID,
			CreatedAt: now,
		}
		if uploaded != nil {
			room.NDATemplateID = uploaded.templateID
		}
		if err := tx.InsertDealRoom(ctx, room); err != nil {
			return err
		}

		var ndaID *string
		if uploaded != nil {
			doc := &models.Document{
				DealRoomID: room.ID,
				Name:       "Mutual NDA.pdf",
				Category:   models.DocNDA,
				FileKey:    uploaded.key,
				FileURL:    uploaded.url,
				MimeType:   pdfMime,
				SizeBytes:  uploaded.size,
				UploadedBy: userID,
				CreatedAt:  now,
			}
			if err := tx.InsertDocument(ctx, doc); err != nil {
				return err
			}
			ndaID = &doc.ID
		}

		var expires *time.Time
		if p.config.ExpiryDays > 0 {
			t := now.AddDate(0, 0, p.config.ExpiryDays)
			expires = &t
		}
		for _, participant := range []string{m.User1ID, m.User2ID} {
			err := tx.GrantAccess(ctx, &models.DealRoomAccess{
				DealRoomID: room.ID,
				UserID:     participant,
				Level:      models.AccessEdit,
				ExpiresAt:  expires,
				GrantedAt:  now,
			})
			if err != nil {
				return err
			}
		}

		m.Status = models.MatchDealRoomCreated
		m.DealRoomID = &room.ID
		if err := tx.SaveMatchState(ctx, m); err != nil {
			return err
		}

		result = &CreateResult{DealRoom: *room, NDADocumentID: ndaID}
		return nil
	})
	if uploaded != nil && (err != nil || result.Existing) {
		p.discard(ctx, uploaded.key)
	}
	if err != nil {
		return nil, err
	}

	if result.Existing {
		metrics.DealRoomsProvisioned.WithLabelValues("existing").Inc()
		return result, nil
	}

	metrics.DealRoomsProvisioned.WithLabelValues("created").Inc()
	metrics.ConsentTransitions.WithLabelValues(string(models.MatchMutualInterest), string(models.MatchDealRoomCreated)).Inc()
	p.logger.Info("deal room created", map[string]interface{}{
		"matchId":    matchID,
		"dealRoomId": result.DealRoom.ID,
		"hasNda":     result.NDADocumentID != nil,
	})

	p.notify(ctx, models.Notification{
		UserID:            counterparty,
		Kind:              models.NotifyDealRoomCreated,
		Title:             "Deal Room Created",
		Message:           "A deal room is ready for your match. Sign the NDA to access its documents.",
		RelatedEntityType: "dealRoom",
		RelatedEntityID:   result.DealRoom.ID,
	})
	return result, nil
}

// checkCreatable rejects non-participants and matches that are neither
// mutual nor already provisioned.
func checkCreatable(m *models.Match, userID string) error {
	if !m.HasUser(userID) {
		return apperrors.NewNotFoundError("match", m.ID)
	}
	switch m.Status {
	case models.MatchMutualInterest, models.MatchDealRoomCreated:
		return nil
	default:
		return apperrors.NewPreconditionFailedError("Mutual interest required",
			string(models.MatchMutualInterest), string(m.Status))
	}
}

// renderNDA builds and uploads the NDA for a new room. Failures are logged and
// counted; the room is then created without an NDA document.
func (p *Provisioner) renderNDA(ctx context.Context, roomID string, m *models.Match, now time.Time) *renderedNDA {
	log := p.logger.WithFields(map[string]interface{}{"matchId": m.ID, "dealRoomId": roomID})
	fail := func(stage string, err error) *renderedNDA {
		metrics.NDAGenerationFailures.Inc()
		log.Warn("nda generation failed, creating room without nda", map[string]interface{}{
			"stage": stage,
			"error": err,
		})
		return nil
	}

	tmpl, err := p.store.GetDefaultNDATemplate(ctx)
	if err != nil {
		return fail("template", err)
	}
	profiles, err := p.store.GetProfiles(ctx, []string{m.User1ID, m.User2ID})
	if err != nil {
		return fail("profiles", err)
	}

	var (
		content    string
		templateID *string
		code       string
	)
	if tmpl != nil {
		content = tmpl.Content
		id := tmpl.ID
		templateID = &id
		code = tmpl.Jurisdiction
	}
	text := RenderNDAText(content, NDAParties{
		PartyA:       profiles[m.User1ID].DisplayName(),
		PartyB:       profiles[m.User2ID].DisplayName(),
		Jurisdiction: Jurisdiction(code, p.config.DefaultJurisdiction),
		Date:         now,
	})

	pdf, err := p.renderer.Render("Mutual Non-Disclosure Agreement", text)
	if err != nil {
		return fail("render", err)
	}

	key := roomID + "/nda.pdf"
	url, err := p.storage.Put(ctx, key, pdfMime, pdf)
	if err != nil {
		return fail("upload", err)
	}
	return &renderedNDA{templateID: templateID, key: key, url: url, size: int64(len(pdf))}
}

func (p *Provisioner) discard(ctx context.Context, key string) {
	if err := p.storage.Delete(ctx, key); err != nil {
		p.logger.Warn("failed to delete orphaned nda", map[string]interface{}{"key": key, "error": err})
	}
}

func (p *Provisioner) notify(ctx context.Context, n models.Notification) {
	if p.notifier == nil || n.UserID == "" {
		return
	}
	if err := p.notifier.Notify(ctx, n); err != nil {
		p.logger.Warn("notification failed", map[string]interface{}{
			"type":   n.Kind,
			"userId": n.UserID,
			"error":  err,
		})
	}
}

// SignNda records the caller's NDA signature. Signing twice returns the first
// signature time with AlreadySigned set.
func (p *Provisioner) SignNda(ctx context.Context, userID, roomID string) (*SignResult, error) {
	ctx, span := observability.StartSpan(ctx, "dealroom.SignNda", attribute.String("dealroom.id", roomID))
	defer span.End()

	var (
		result *SignResult
		others []string
	)
	err := p.store.WithTx(ctx, func(tx store.Tx) error {
		grants, err := tx.LockAccess(ctx, roomID)
		if err != nil {
			return err
		}

		var mine *models.DealRoomAccess
		for _, g := range grants {
			if g.UserID == userID {
				mine = g
			}
		}
		if mine == nil {
			return apperrors.NewNotFoundError("dealRoom", roomID)
		}

		now := p.now()
		if mine.Expired(now) {
			return apperrors.NewPreconditionFailedError("Deal room access expired", "active_access", "expired")
		}

		result = &SignResult{DealRoomID: roomID}
		if mine.NDASigned && mine.NDASignedAt != nil {
			result.SignedAt = *mine.NDASignedAt
			result.AlreadySigned = true
		} else {
			docID, err := tx.FindDocumentID(ctx, roomID, models.DocNDA)
			if err != nil {
				return err
			}
			mine.NDASigned = true
			mine.NDASignedAt = &now
			mine.NDADocumentID = docID
			if err := tx.SaveAccess(ctx, mine); err != nil {
				return err
			}
			result.SignedAt = now
		}

		result.AllSigned = true
		for _, g := range grants {
			if !g.NDASigned {
				result.AllSigned = false
			}
			if g.UserID != userID {
				others = append(others, g.UserID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadySigned {
		metrics.NDASignatures.WithLabelValues("already_signed").Inc()
		return result, nil
	}

	metrics.NDASignatures.WithLabelValues("signed").Inc()
	p.logger.Info("nda signed", map[string]interface{}{
		"dealRoomId": roomID,
		"userId":     userID,
		"allSigned":  result.AllSigned,
	})
	for _, other := range others {
		p.notify(ctx, models.Notification{
			UserID:            other,
			Kind:              models.NotifyNDASigned,
			Title:             "NDA Signed",
			Message:           "Your counterparty has signed the deal room NDA.",
			RelatedEntityType: "dealRoom",
			RelatedEntityID:   roomID,
		})
	}
	return result, nil
}

// RoomView is one participant's view of a deal room.
type RoomView struct {
	DealRoom      models.DealRoom       `json:"dealRoom"`
	Access        models.DealRoomAccess `json:"access"`
	AccessExpired bool                  `json:"accessExpired"`
}

// ListMine returns every room the user holds a grant on, newest first.
func (p *Provisioner) ListMine(ctx context.Context, userID string) ([]*models.DealRoomMembership, error) {
	rooms, err := p.store.ListDealRoomsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []*models.DealRoomMembership{}
	}
	return rooms, nil
}

// Get returns a room to one of its participants. Anyone else gets not-found.
// Expired access still sees the room; documents stay gated in ListDocuments.
func (p *Provisioner) Get(ctx context.Context, userID, roomID string) (*RoomView, error) {
	access, err := p.store.GetAccess(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	room, err := p.store.GetDealRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &RoomView{
		DealRoom:      *room,
		Access:        *access,
		AccessExpired: access.Expired(p.now()),
	}, nil
}

// ListDocuments returns the room's documents as the caller may see them.
func (p *Provisioner) ListDocuments(ctx context.Context, userID, roomID string) (*DocumentList, error) {
	access, err := p.store.GetAccess(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if access.Expired(p.now()) {
		return nil, apperrors.NewPreconditionFailedError("Deal room access expired", "active_access", "expired")
	}

	room, err := p.store.GetDealRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	docs, err := p.store.ListDocuments(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return &DocumentList{
		DealRoomID:  roomID,
		NDARequired: room.NDARequired,
		NDASigned:   access.NDASigned,
		Documents:   VisibleDocuments(docs, room.NDARequired, access.NDASigned),
	}, nil
}

// VisibleDocuments filters docs for a participant. Until the NDA of an
// NDA-gated room is signed only the NDA itself is visible.
func VisibleDocuments(docs []*models.Document, ndaRequired, signed bool) []models.Document {
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if ndaRequired && !signed && d.Category != models.DocNDA {
			continue
		}
		out = append(out, *d)
	}
	return out
}
