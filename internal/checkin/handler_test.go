package checkin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumina-gala/backend/internal/models"
	"github.com/lumina-gala/backend/pkg/response"
)

type fakeCheckInStore struct {
	mu      sync.Mutex
	records map[string]models.CheckInRecord
}

func newFakeCheckInStore() *fakeCheckInStore {
	return &fakeCheckInStore{records: make(map[string]models.CheckInRecord)}
}

func (s *fakeCheckInStore) Create(ctx context.Context, rec *models.CheckInRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.EmployeeID]; ok {
		return false, nil
	}
	rec.ID = uuid.New()
	rec.CreatedAt = rec.CheckInTime
	s.records[rec.EmployeeID] = *rec
	return true, nil
}

func (s *fakeCheckInStore) List(ctx context.Context, eventID uuid.UUID, limit int) ([]models.CheckInRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.CheckInRecord
	for _, rec := range s.records {
		list = append(list, rec)
	}
	return list, nil
}

func (s *fakeCheckInStore) Stats(ctx context.Context, eventID uuid.UUID) (*models.CheckInStats, error) {
	return &models.CheckInStats{EventID: eventID}, nil
}

func (s *fakeCheckInStore) Clear(ctx context.Context, eventID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]models.CheckInRecord)
	return nil
}

func (s *fakeCheckInStore) get(employeeID string) (models.CheckInRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[employeeID]
	return rec, ok
}

type fakeRosterDirectory struct {
	members map[string]models.RosterMember
}

func (d *fakeRosterDirectory) GetByEmployee(ctx context.Context, eventID uuid.UUID, employeeID string) (*models.RosterMember, error) {
	member, ok := d.members[employeeID]
	if !ok {
		return nil, nil
	}
	return &member, nil
}

type fakeEventDirectory struct {
	event *models.Event
}

func (d *fakeEventDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	if d.event == nil || d.event.ID != id {
		return nil, nil
	}
	return d.event, nil
}

type fakeArrivalQueue struct {
	mu     sync.Mutex
	pushed []models.CheckInRecord
}

func (q *fakeArrivalQueue) Push(ctx context.Context, rec *models.CheckInRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushed = append(q.pushed, *rec)
	return nil
}

func (q *fakeArrivalQueue) StartDrain(eventID uuid.UUID) {}

func newCheckInRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/events/:id/checkins", h.CheckIn)
	return r
}

func postCheckIn(t *testing.T, r *gin.Engine, eventID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events/"+eventID.String()+"/checkins", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerCheckIn(t *testing.T) {
	ctx := context.Background()
	eventID := uuid.New()

	sessions := newFakeSessionStore()
	manager := NewManager(sessions, nil, nil, WithManagerTick(time.Hour))
	defer manager.Shutdown()
	// An open-ended window: the organizer chose no time limit.
	if _, err := manager.Open(ctx, eventID, 0); err != nil {
		t.Fatalf("Open: %v", err)
	}

	store := newFakeCheckInStore()
	rosterDir := &fakeRosterDirectory{members: map[string]models.RosterMember{
		"e42": {EventID: eventID, EmployeeID: "e42", Name: "Wei Chen", Department: "Platform"},
	}}
	eventDir := &fakeEventDirectory{event: &models.Event{ID: eventID, Name: "Annual Gala"}}
	queue := &fakeArrivalQueue{}

	h := NewHandler(store, rosterDir, eventDir, manager, queue, nil)
	r := newCheckInRouter(h)

	w := postCheckIn(t, r, eventID, `{"employee_id":"e42","method":"manual"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("first check-in status = %d, want 201: %s", w.Code, w.Body.String())
	}
	first, ok := store.get("e42")
	if !ok {
		t.Fatal("first check-in not persisted")
	}
	if first.Name != "Wei Chen" || first.Department != "Platform" {
		t.Errorf("stored record = %+v, roster fields not carried over", first)
	}

	// A second scan must be rejected and leave the first record untouched.
	w = postCheckIn(t, r, eventID, `{"employee_id":"e42","method":"qrcode"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate check-in status = %d, want 409: %s", w.Code, w.Body.String())
	}
	var body response.Body
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Success || body.Error != ErrAlreadyCheckedIn.Error() {
		t.Errorf("duplicate response = %+v", body)
	}
	again, _ := store.get("e42")
	if again.ID != first.ID || !again.CheckInTime.Equal(first.CheckInTime) || again.Method != first.Method {
		t.Errorf("duplicate submit altered the stored record: %+v vs %+v", again, first)
	}
	if len(queue.pushed) != 1 {
		t.Errorf("welcome feed received %d records, want 1", len(queue.pushed))
	}

	t.Run("unknown employee", func(t *testing.T) {
		w := postCheckIn(t, r, eventID, `{"employee_id":"ghost"}`)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("closed session", func(t *testing.T) {
		if err := manager.Close(ctx, eventID); err != nil {
			t.Fatalf("Close: %v", err)
		}
		w := postCheckIn(t, r, eventID, `{"employee_id":"e42"}`)
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})
}
