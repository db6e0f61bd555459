package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"supportdesk/models"
	"supportdesk/storage"
)

// MemoryStore is an in-memory storage.Store with the same conditional
// update semantics as the Postgres-backed Store. It exists so service
// behavior can be exercised without a database; a single mutex makes each
// conditional mutation atomic, mirroring row-level optimistic locking.
type MemoryStore struct {
	mu sync.Mutex

	visitors   map[uint]*models.Visitor
	rooms      map[uint]*models.ChatRoom
	messages   map[uint][]models.ChatMessage // by room id, insertion order
	cursors    map[cursorKey]time.Time
	attendants map[uint]*models.Attendant
	users      map[uint]*models.User
	hours      map[uint][]models.BusinessHourRule // by tenant id
	tenants    map[uint]*models.TenantState

	nextVisitorID   uint
	nextRoomID      uint
	nextMessageID   uint
	nextAttendantID uint
	nextUserID      uint
	nextRuleID      uint
}

type cursorKey struct {
	roomID      uint
	attendantID uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		visitors:   make(map[uint]*models.Visitor),
		rooms:      make(map[uint]*models.ChatRoom),
		messages:   make(map[uint][]models.ChatMessage),
		cursors:    make(map[cursorKey]time.Time),
		attendants: make(map[uint]*models.Attendant),
		users:      make(map[uint]*models.User),
		hours:      make(map[uint][]models.BusinessHourRule),
		tenants:    make(map[uint]*models.TenantState),
	}
}

var _ storage.Store = (*MemoryStore)(nil)

// --- visitors ---

func (s *MemoryStore) CreateVisitor(ctx context.Context, v *models.Visitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextVisitorID++
	v.ID = s.nextVisitorID
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	cp := *v
	s.visitors[v.ID] = &cp
	return nil
}

func (s *MemoryStore) GetVisitor(ctx context.Context, tenantID, visitorID uint) (*models.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visitors[visitorID]
	if !ok || v.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *MemoryStore) LinkVisitorContact(ctx context.Context, tenantID, visitorID, contactID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visitors[visitorID]
	if !ok || v.TenantID != tenantID {
		return storage.ErrNotFound
	}
	id := contactID
	v.ContactID = &id
	return nil
}

// --- rooms ---

func (s *MemoryStore) CreateRoom(ctx context.Context, room *models.ChatRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRoomID++
	room.ID = s.nextRoomID
	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now
	cp := *room
	s.rooms[room.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, tenantID, roomID uint) (*models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok || room.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	cp := *room
	return &cp, nil
}

func matches(room *models.ChatRoom, f storage.RoomFilter) bool {
	if f.Status != "" && room.Status != f.Status {
		return false
	}
	if f.Unassigned && room.AttendantID != nil {
		return false
	}
	if f.AttendantID != nil && (room.AttendantID == nil || *room.AttendantID != *f.AttendantID) {
		return false
	}
	if f.IdleBefore != nil && !room.LastActivityAt.Before(*f.IdleBefore) {
		return false
	}
	if f.StartedBefore != nil && !room.StartedAt.Before(*f.StartedBefore) {
		return false
	}
	if f.NotPriority != "" && room.Priority == f.NotPriority {
		return false
	}
	return true
}

func (s *MemoryStore) ListRooms(ctx context.Context, tenantID uint, f storage.RoomFilter) ([]models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rooms []models.ChatRoom
	for _, room := range s.rooms {
		if room.TenantID == tenantID && matches(room, f) {
			rooms = append(rooms, *room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].StartedAt.Equal(rooms[j].StartedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].StartedAt.Before(rooms[j].StartedAt)
	})
	return rooms, nil
}

func (s *MemoryStore) CountRooms(ctx context.Context, tenantID uint, f storage.RoomFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, room := range s.rooms {
		if room.TenantID == tenantID && matches(room, f) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountVisitorOpenRooms(ctx context.Context, tenantID, visitorID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, room := range s.rooms {
		if room.TenantID == tenantID && room.VisitorID == visitorID && room.Status != models.RoomClosed {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListRoomTenants(ctx context.Context) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[uint]struct{})
	for _, room := range s.rooms {
		if room.Status != models.RoomClosed {
			seen[room.TenantID] = struct{}{}
		}
	}
	ids := make([]uint, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) TouchActivity(ctx context.Context, roomID uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok && room.LastActivityAt.Before(at) {
		room.LastActivityAt = at
		room.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) AssignWaiting(ctx context.Context, tenantID, roomID, attendantID uint, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok || room.TenantID != tenantID {
		return 0, nil
	}
	if room.Status != models.RoomWaiting || room.AttendantID != nil {
		return 0, nil
	}
	id := attendantID
	at := now
	room.AttendantID = &id
	room.Status = models.RoomActive
	room.AssignedAt = &at
	room.UpdatedAt = time.Now()
	return 1, nil
}

func (s *MemoryStore) Reassign(ctx context.Context, tenantID, roomID, toAttendantID uint, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok || room.TenantID != tenantID || room.Status == models.RoomClosed {
		return 0, nil
	}
	id := toAttendantID
	at := now
	room.AttendantID = &id
	room.Status = models.RoomActive
	room.AssignedAt = &at
	room.UpdatedAt = time.Now()
	return 1, nil
}

func (s *MemoryStore) Close(ctx context.Context, tenantID, roomID uint, res models.ResolutionStatus, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok || room.TenantID != tenantID || room.Status == models.RoomClosed {
		return 0, nil
	}
	at := now
	room.Status = models.RoomClosed
	room.ResolutionStatus = res
	room.ClosedAt = &at
	room.UpdatedAt = time.Now()
	return 1, nil
}

func (s *MemoryStore) SetCsat(ctx context.Context, tenantID, roomID uint, score int, comment string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok || room.TenantID != tenantID {
		return 0, nil
	}
	if room.Status != models.RoomClosed || room.CsatScore != nil {
		return 0, nil
	}
	sc := score
	room.CsatScore = &sc
	room.CsatComment = comment
	room.UpdatedAt = time.Now()
	return 1, nil
}

func (s *MemoryStore) EscalatePriority(ctx context.Context, tenantID, roomID uint, to models.Priority) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok || room.TenantID != tenantID {
		return 0, nil
	}
	if room.Status != models.RoomWaiting || room.Priority == to {
		return 0, nil
	}
	room.Priority = to
	room.UpdatedAt = time.Now()
	return 1, nil
}

// --- messages ---

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMessageID++
	msg.ID = s.nextMessageID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], *msg)
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, tenantID, roomID uint, includeInternal bool, limit, offset int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var msgs []models.ChatMessage
	for _, m := range s.messages[roomID] {
		if m.TenantID != tenantID {
			continue
		}
		if !includeInternal && m.IsInternal {
			continue
		}
		msgs = append(msgs, m)
	}
	if offset > 0 {
		if offset >= len(msgs) {
			return nil, nil
		}
		msgs = msgs[offset:]
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, roomID uint, after time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages[roomID] {
		if m.SenderType == models.SenderVisitor && !m.IsInternal && m.CreatedAt.After(after) {
			n++
		}
	}
	return n, nil
}

// --- read cursors ---

func (s *MemoryStore) UpsertCursor(ctx context.Context, roomID, attendantID uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cursorKey{roomID: roomID, attendantID: attendantID}
	if existing, ok := s.cursors[key]; ok && !at.After(existing) {
		return nil
	}
	s.cursors[key] = at
	return nil
}

func (s *MemoryStore) GetCursor(ctx context.Context, roomID, attendantID uint) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[cursorKey{roomID: roomID, attendantID: attendantID}], nil
}

// --- attendants ---

func (s *MemoryStore) SaveAttendant(ctx context.Context, a *models.Attendant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.nextAttendantID++
		a.ID = s.nextAttendantID
		a.CreatedAt = time.Now()
	}
	a.UpdatedAt = time.Now()
	cp := *a
	s.attendants[a.ID] = &cp
	return nil
}

func (s *MemoryStore) GetAttendant(ctx context.Context, tenantID, attendantID uint) (*models.Attendant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendants[attendantID]
	if !ok || a.TenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) GetAttendantByUser(ctx context.Context, userID uint) (*models.Attendant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attendants {
		if a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *MemoryStore) ListAttendants(ctx context.Context, tenantID uint) ([]models.Attendant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var attendants []models.Attendant
	for _, a := range s.attendants {
		if a.TenantID == tenantID {
			attendants = append(attendants, *a)
		}
	}
	sort.Slice(attendants, func(i, j int) bool { return attendants[i].ID < attendants[j].ID })
	return attendants, nil
}

func (s *MemoryStore) SetAttendantStatus(ctx context.Context, tenantID, attendantID uint, status models.AttendantStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendants[attendantID]
	if !ok || a.TenantID != tenantID {
		return storage.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}

// --- business hours / tenant state ---

func (s *MemoryStore) SaveBusinessHourRule(ctx context.Context, rule *models.BusinessHourRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == 0 {
		s.nextRuleID++
		rule.ID = s.nextRuleID
	}
	rules := s.hours[rule.TenantID]
	for i := range rules {
		if rules[i].ID == rule.ID {
			rules[i] = *rule
			return nil
		}
	}
	s.hours[rule.TenantID] = append(rules, *rule)
	return nil
}

func (s *MemoryStore) ListBusinessHours(ctx context.Context, tenantID uint) ([]models.BusinessHourRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules := make([]models.BusinessHourRule, len(s.hours[tenantID]))
	copy(rules, s.hours[tenantID])
	return rules, nil
}

func (s *MemoryStore) SaveTenantState(ctx context.Context, state *models.TenantState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.UpdatedAt = time.Now()
	cp := *state
	s.tenants[state.TenantID] = &cp
	return nil
}

func (s *MemoryStore) GetTenantState(ctx context.Context, tenantID uint) (*models.TenantState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.tenants[tenantID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *state
	return &cp, nil
}

func (s *MemoryStore) ListTenantStates(ctx context.Context) ([]models.TenantState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var states []models.TenantState
	for _, state := range s.tenants {
		states = append(states, *state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].TenantID < states[j].TenantID })
	return states, nil
}

func (s *MemoryStore) SetOutsideHours(ctx context.Context, tenantID uint, outside bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.tenants[tenantID]
	if !ok || state.OutsideHours == outside {
		return 0, nil
	}
	state.OutsideHours = outside
	state.UpdatedAt = time.Now()
	return 1, nil
}

// --- users ---

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u.ID = s.nextUserID
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *MemoryStore) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}
