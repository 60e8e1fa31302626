// Package storetest provides an in-memory store with the same contract as the
// Postgres store, for tests of the domain services.
package storetest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/models"
	"intent-broker/internal/store"

	"github.com/google/uuid"
)

// Memory mirrors the constraints the schema enforces: one match per unordered
// intent pair, score above 70, one deal room per match. Transactions are
// serialized and rolled back on error.
type Memory struct {
	txMu sync.Mutex
	mu   sync.Mutex

	seq       int
	intents   map[string]*models.Intent
	intentSeq map[string]int
	matches   map[string]*models.Match
	matchSeq  map[string]int
	rooms     map[string]*models.DealRoom
	access    map[string]map[string]*models.DealRoomAccess
	docs      []*models.Document
	templates []*models.NDATemplate
	profiles  map[string]*models.Profile
	notes     []*models.Notification
	faults    map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		intents:   make(map[string]*models.Intent),
		intentSeq: make(map[string]int),
		matches:   make(map[string]*models.Match),
		matchSeq:  make(map[string]int),
		rooms:     make(map[string]*models.DealRoom),
		access:    make(map[string]map[string]*models.DealRoomAccess),
		profiles:  make(map[string]*models.Profile),
		faults:    make(map[string]error),
	}
}

// FailOn makes the named operation return err until cleared with a nil err.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

func (m *Memory) fault(op string) error {
	return m.faults[op]
}

// ==========================
// Seeding and inspection
// ==========================

func (m *Memory) AddProfile(p models.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = &p
}

func (m *Memory) SetDefaultTemplate(t models.NDATemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = []*models.NDATemplate{&t}
}

func (m *Memory) Notifications() []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Notification, 0, len(m.notes))
	for _, n := range m.notes {
		out = append(out, *n)
	}
	return out
}

func (m *Memory) Matches() []models.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Match, 0, len(m.matches))
	for _, id := range m.sortedMatchIDs() {
		out = append(out, *m.matches[id])
	}
	return out
}

func (m *Memory) DealRooms() []models.DealRoom {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DealRoom, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, *r)
	}
	return out
}

func (m *Memory) Documents() []models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, *d)
	}
	return out
}

// PutMatch stores a match as-is, bypassing the creation rules.
func (m *Memory) PutMatch(match models.Match) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.matches[match.ID] = &match
	m.matchSeq[match.ID] = m.seq
}

// ==========================
// Transactions
// ==========================

type snapshot struct {
	matches map[string]*models.Match
	rooms   map[string]*models.DealRoom
	access  map[string]map[string]*models.DealRoomAccess
	docs    []*models.Document
}

func (m *Memory) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := snapshot{
		matches: make(map[string]*models.Match, len(m.matches)),
		rooms:   make(map[string]*models.DealRoom, len(m.rooms)),
		access:  make(map[string]map[string]*models.DealRoomAccess, len(m.access)),
		docs:    make([]*models.Document, len(m.docs)),
	}
	for k, v := range m.matches {
		c := *v
		s.matches[k] = &c
	}
	for k, v := range m.rooms {
		c := *v
		s.rooms[k] = &c
	}
	for room, users := range m.access {
		s.access[room] = make(map[string]*models.DealRoomAccess, len(users))
		for u, a := range users {
			c := *a
			s.access[room][u] = &c
		}
	}
	copy(s.docs, m.docs)
	return s
}

func (m *Memory) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches = s.matches
	m.rooms = s.rooms
	m.access = s.access
	m.docs = s.docs
}

func (m *Memory) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := m.fault("WithTx"); err != nil {
		return err
	}

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// ==========================
// Intents
// ==========================

func (m *Memory) CreateIntent(ctx context.Context, in *models.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("CreateIntent"); err != nil {
		return err
	}
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	in.UpdatedAt = in.CreatedAt
	c := *in
	m.seq++
	m.intents[in.ID] = &c
	m.intentSeq[in.ID] = m.seq
	return nil
}

func (m *Memory) UpdateIntent(ctx context.Context, in *models.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("UpdateIntent"); err != nil {
		return err
	}
	cur, ok := m.intents[in.ID]
	if !ok || cur.UserID != in.UserID {
		return apperrors.NewNotFoundError("intent", in.ID)
	}
	in.UpdatedAt = time.Now().UTC()
	if !in.UpdatedAt.After(cur.UpdatedAt) {
		in.UpdatedAt = cur.UpdatedAt.Add(time.Microsecond)
	}
	c := *in
	m.intents[in.ID] = &c
	return nil
}

func (m *Memory) GetIntentForUser(ctx context.Context, userID, intentID string) (*models.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("GetIntentForUser"); err != nil {
		return nil, err
	}
	in, ok := m.intents[intentID]
	if !ok || in.UserID != userID {
		return nil, apperrors.NewNotFoundError("intent", intentID)
	}
	c := *in
	return &c, nil
}

func (m *Memory) sortedIntentIDs() []string {
	ids := make([]string, 0, len(m.intents))
	for id := range m.intents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.intentSeq[ids[i]] > m.intentSeq[ids[j]] })
	return ids
}

func (m *Memory) ListIntentsByUser(ctx context.Context, userID string) ([]*models.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Intent, 0)
	for _, id := range m.sortedIntentIDs() {
		if in := m.intents[id]; in.UserID == userID {
			c := *in
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Memory) ListActiveCandidates(ctx context.Context, excludeUser string, limit int) ([]*models.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("ListActiveCandidates"); err != nil {
		return nil, err
	}
	out := make([]*models.Intent, 0)
	for _, id := range m.sortedIntentIDs() {
		in := m.intents[id]
		if in.UserID == excludeUser || in.Status != models.IntentActive {
			continue
		}
		c := *in
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) GetActiveIntentsByIDs(ctx context.Context, ids []string, excludeUser string) ([]*models.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Intent, 0, len(ids))
	for _, id := range ids {
		in, ok := m.intents[id]
		if !ok || in.UserID == excludeUser || in.Status != models.IntentActive {
			continue
		}
		c := *in
		out = append(out, &c)
	}
	return out, nil
}

// ==========================
// Matches
// ==========================

func (m *Memory) sortedMatchIDs() []string {
	ids := make([]string, 0, len(m.matches))
	for id := range m.matches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return m.matchSeq[ids[i]] > m.matchSeq[ids[j]] })
	return ids
}

func (m *Memory) findPair(a, b string) *models.Match {
	lo, hi := models.PairKey(a, b)
	for _, match := range m.matches {
		mlo, mhi := models.PairKey(match.IntentAID, match.IntentBID)
		if mlo == lo && mhi == hi {
			return match
		}
	}
	return nil
}

func (m *Memory) FindMatchByPair(ctx context.Context, intentA, intentB string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match := m.findPair(intentA, intentB); match != nil {
		c := *match
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) CreateMatchIfAbsent(ctx context.Context, match *models.Match) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("CreateMatchIfAbsent"); err != nil {
		return false, err
	}
	// NUMERIC(5, 2) rounds before the CHECK runs.
	if stored := math.Round(match.Score*100) / 100; stored <= 70 || stored > 100 {
		return false, apperrors.NewDatabaseWriteError("create_match", fmt.Errorf("score %.2f violates check constraint", match.Score))
	}
	if match.IntentAID == match.IntentBID || match.User1ID == match.User2ID {
		return false, apperrors.NewDatabaseWriteError("create_match", fmt.Errorf("self match violates check constraint"))
	}
	if m.findPair(match.IntentAID, match.IntentBID) != nil {
		return false, nil
	}
	if match.ID == "" {
		match.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	match.CreatedAt, match.UpdatedAt = now, now
	if match.Status == "" {
		match.Status = models.MatchPending
	}
	c := *match
	m.seq++
	m.matches[match.ID] = &c
	m.matchSeq[match.ID] = m.seq
	return true, nil
}

func (m *Memory) ListMatchesForUser(ctx context.Context, userID string) ([]*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, id := range m.sortedMatchIDs() {
		if match := m.matches[id]; match.HasUser(userID) {
			c := *match
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Memory) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("GetMatch"); err != nil {
		return nil, err
	}
	match, ok := m.matches[matchID]
	if !ok {
		return nil, apperrors.NewNotFoundError("match", matchID)
	}
	c := *match
	return &c, nil
}

func (m *Memory) LockMatch(ctx context.Context, matchID string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[matchID]
	if !ok {
		return nil, apperrors.NewNotFoundError("match", matchID)
	}
	c := *match
	return &c, nil
}

func (m *Memory) SaveMatchState(ctx context.Context, match *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("SaveMatchState"); err != nil {
		return err
	}
	cur, ok := m.matches[match.ID]
	if !ok {
		return apperrors.NewNotFoundError("match", match.ID)
	}
	match.UpdatedAt = time.Now().UTC()
	cur.Status = match.Status
	cur.User1Consent, cur.User1At = match.User1Consent, match.User1At
	cur.User2Consent, cur.User2At = match.User2Consent, match.User2At
	cur.DealRoomID = match.DealRoomID
	cur.UpdatedAt = match.UpdatedAt
	return nil
}

// ==========================
// Deal rooms
// ==========================

func (m *Memory) GetDealRoom(ctx context.Context, roomID string) (*models.DealRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, apperrors.NewNotFoundError("dealRoom", roomID)
	}
	c := *room
	return &c, nil
}

func (m *Memory) GetDealRoomByMatch(ctx context.Context, matchID string) (*models.DealRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, room := range m.rooms {
		if room.MatchID == matchID {
			c := *room
			return &c, nil
		}
	}
	return nil, apperrors.NewNotFoundError("dealRoom", matchID)
}

func (m *Memory) InsertDealRoom(ctx context.Context, room *models.DealRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("InsertDealRoom"); err != nil {
		return err
	}
	for _, r := range m.rooms {
		if r.MatchID == room.MatchID {
			return apperrors.NewDatabaseWriteError("insert_deal_room", fmt.Errorf("duplicate deal room for match %s", room.MatchID))
		}
	}
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	c := *room
	m.rooms[room.ID] = &c
	return nil
}

func (m *Memory) GrantAccess(ctx context.Context, a *models.DealRoomAccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("GrantAccess"); err != nil {
		return err
	}
	if a.GrantedAt.IsZero() {
		a.GrantedAt = time.Now().UTC()
	}
	if m.access[a.DealRoomID] == nil {
		m.access[a.DealRoomID] = make(map[string]*models.DealRoomAccess)
	}
	c := *a
	m.access[a.DealRoomID][a.UserID] = &c
	return nil
}

func (m *Memory) GetAccess(ctx context.Context, roomID, userID string) (*models.DealRoomAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.access[roomID][userID]
	if !ok {
		return nil, apperrors.NewNotFoundError("dealRoom", roomID)
	}
	c := *a
	return &c, nil
}

func (m *Memory) ListDealRoomsForUser(ctx context.Context, userID string) ([]*models.DealRoomMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("ListDealRoomsForUser"); err != nil {
		return nil, err
	}
	out := make([]*models.DealRoomMembership, 0)
	for roomID, grants := range m.access {
		a, ok := grants[userID]
		if !ok {
			continue
		}
		room, ok := m.rooms[roomID]
		if !ok {
			continue
		}
		out = append(out, &models.DealRoomMembership{DealRoom: *room, Access: *a})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DealRoom.CreatedAt.Equal(out[j].DealRoom.CreatedAt) {
			return out[i].DealRoom.CreatedAt.After(out[j].DealRoom.CreatedAt)
		}
		return out[i].DealRoom.ID < out[j].DealRoom.ID
	})
	return out, nil
}

func (m *Memory) LockAccess(ctx context.Context, roomID string) ([]*models.DealRoomAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.DealRoomAccess, 0, len(m.access[roomID]))
	for _, a := range m.access[roomID] {
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) SaveAccess(ctx context.Context, a *models.DealRoomAccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.access[a.DealRoomID][a.UserID]
	if !ok {
		return apperrors.NewNotFoundError("dealRoom", a.DealRoomID)
	}
	cur.NDASigned = a.NDASigned
	cur.NDASignedAt = a.NDASignedAt
	cur.NDADocumentID = a.NDADocumentID
	return nil
}

func (m *Memory) InsertDocument(ctx context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("InsertDocument"); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	c := *d
	m.docs = append(m.docs, &c)
	return nil
}

func (m *Memory) FindDocumentID(ctx context.Context, roomID string, category models.DocumentCategory) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.docs) - 1; i >= 0; i-- {
		if d := m.docs[i]; d.DealRoomID == roomID && d.Category == category {
			id := d.ID
			return &id, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListDocuments(ctx context.Context, roomID string) ([]*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Document, 0)
	for i := len(m.docs) - 1; i >= 0; i-- {
		if d := m.docs[i]; d.DealRoomID == roomID {
			c := *d
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Memory) GetDefaultNDATemplate(ctx context.Context) (*models.NDATemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("GetDefaultNDATemplate"); err != nil {
		return nil, err
	}
	if len(m.templates) == 0 {
		return nil, nil
	}
	c := *m.templates[0]
	return &c, nil
}

// ==========================
// Profiles and notifications
// ==========================

func (m *Memory) GetProfiles(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*models.Profile, len(ids))
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			c := *p
			out[id] = &c
		}
	}
	return out, nil
}

func (m *Memory) InsertNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("InsertNotification"); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	c := *n
	m.notes = append(m.notes, &c)
	return nil
}

var _ store.Tx = (*Memory)(nil)
