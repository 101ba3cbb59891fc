package attendance

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camden-git/smartguardbackend/catalog"
	"github.com/camden-git/smartguardbackend/models"
)

type fakeIdentityRepo struct {
	identities []models.Identity
}

func (f *fakeIdentityRepo) Create(identity *models.Identity) error { return nil }
func (f *fakeIdentityRepo) GetByID(id string) (*models.Identity, error) {
	for i := range f.identities {
		if f.identities[i].ID == id {
			return &f.identities[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeIdentityRepo) ListAll() ([]models.Identity, error)              { return f.identities, nil }
func (f *fakeIdentityRepo) ListStudents() ([]models.Identity, error)         { return nil, nil }
func (f *fakeIdentityRepo) Delete(id string) error                           { return nil }
func (f *fakeIdentityRepo) SetAvatarPath(id string, avatarPath *string) error { return nil }

type fakeAttendanceRepo struct {
	mu      sync.Mutex
	marked  map[string]bool
	markErr error
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{marked: make(map[string]bool)}
}

func (f *fakeAttendanceRepo) Mark(identityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.marked[identityID] = true
	return nil
}

func (f *fakeAttendanceRepo) IsMarkedOn(identityID, date string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marked[identityID], nil
}

func (f *fakeAttendanceRepo) ListByIdentity(identityID string) ([]models.AttendanceRecord, error) {
	return nil, nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls [][]string
}

func (f *fakeDispatcher) DispatchAttendance(presentIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, presentIDs)
}

type fakeAnnouncer struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeAnnouncer) Announce(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
}

func (f *fakeAnnouncer) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

func roster() *fakeIdentityRepo {
	return &fakeIdentityRepo{identities: []models.Identity{
		{ID: "1", Name: "Alice", Role: models.RoleStudent},
		{ID: "2", Name: "Bob", Role: models.RoleStudent},
		{ID: "9", Name: "Mr. Smith", Role: models.RoleTeacher},
	}}
}

func newTestController(t *testing.T) (*Controller, *fakeAttendanceRepo, *fakeDispatcher, *fakeAnnouncer) {
	t.Helper()
	attRepo := newFakeAttendanceRepo()
	dispatcher := &fakeDispatcher{}
	announcer := &fakeAnnouncer{}
	c := NewController(roster(), attRepo, dispatcher, announcer, 10*time.Second)
	require.NoError(t, c.RefreshRoleIndex())
	return c, attRepo, dispatcher, announcer
}

func studentLabel() catalog.Label { return catalog.Label{IdentityID: "1", DisplayName: "Alice"} }
func teacherLabel() catalog.Label { return catalog.Label{IdentityID: "9", DisplayName: "Mr. Smith"} }

func TestControllerStudentDetection(t *testing.T) {
	t.Run("first detection queues the student", func(t *testing.T) {
		c, attRepo, _, announcer := newTestController(t)
		c.HandleDetection(studentLabel(), true)

		assert.Equal(t, []string{"1"}, c.PendingIDs())
		assert.False(t, attRepo.marked["1"], "queueing must not write attendance")
		assert.Equal(t, "Welcome Alice", announcer.last())
	})

	t.Run("unknown faces are dropped", func(t *testing.T) {
		c, _, _, announcer := newTestController(t)
		c.HandleDetection(catalog.Label{DisplayName: catalog.UnknownName}, false)

		assert.Empty(t, c.PendingIDs())
		assert.Empty(t, announcer.messages)
	})

	t.Run("unenrolled ids are dropped", func(t *testing.T) {
		c, _, _, _ := newTestController(t)
		c.HandleDetection(catalog.Label{IdentityID: "404", DisplayName: "Ghost"}, true)
		assert.Empty(t, c.PendingIDs())
	})

	t.Run("already marked today announces instead of queueing", func(t *testing.T) {
		c, attRepo, _, announcer := newTestController(t)
		attRepo.marked["1"] = true

		c.HandleDetection(studentLabel(), true)
		assert.Empty(t, c.PendingIDs())
		assert.Equal(t, "Alice, you are already marked present.", announcer.last())
	})
}

func TestControllerDebounce(t *testing.T) {
	c, _, _, announcer := newTestController(t)
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	now := base
	c.Now = func() time.Time { return now }

	c.HandleDetection(studentLabel(), true)
	require.Len(t, announcer.messages, 1)

	// inside the cooldown window: dropped entirely
	now = base.Add(5 * time.Second)
	c.HandleDetection(studentLabel(), true)
	assert.Len(t, announcer.messages, 1)

	// past the window: handled again (still pending, so no second announce,
	// but the event reaches the session logic)
	now = base.Add(11 * time.Second)
	c.HandleDetection(studentLabel(), true)
	assert.Equal(t, []string{"1"}, c.PendingIDs())
}

func TestControllerTeacherCommit(t *testing.T) {
	t.Run("commits pending set and dispatches notifications", func(t *testing.T) {
		c, attRepo, dispatcher, announcer := newTestController(t)

		c.HandleDetection(studentLabel(), true)
		c.HandleDetection(catalog.Label{IdentityID: "2", DisplayName: "Bob"}, true)
		require.Len(t, c.PendingIDs(), 2)

		c.HandleDetection(teacherLabel(), true)

		assert.Empty(t, c.PendingIDs())
		assert.True(t, attRepo.marked["1"])
		assert.True(t, attRepo.marked["2"])
		require.Len(t, dispatcher.calls, 1)
		assert.Equal(t, []string{"1", "2"}, dispatcher.calls[0])
		assert.Equal(t, "Hello Mr. Smith. Saving attendance.", announcer.messages[len(announcer.messages)-1])
	})

	t.Run("empty pending set announces and does nothing", func(t *testing.T) {
		c, attRepo, dispatcher, announcer := newTestController(t)

		c.HandleDetection(teacherLabel(), true)

		assert.Empty(t, attRepo.marked)
		assert.Empty(t, dispatcher.calls)
		assert.Equal(t, "Hello Mr. Smith. No pending attendance.", announcer.last())
	})

	t.Run("repeat cycle reports already marked", func(t *testing.T) {
		c, _, _, announcer := newTestController(t)
		base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
		now := base
		c.Now = func() time.Time { return now }

		c.HandleDetection(studentLabel(), true)
		now = now.Add(time.Minute)
		c.HandleDetection(teacherLabel(), true)

		now = now.Add(time.Minute)
		c.HandleDetection(studentLabel(), true)

		assert.Empty(t, c.PendingIDs())
		assert.Equal(t, "Alice, you are already marked present.", announcer.last())
	})
}

func TestControllerRefreshRoleIndex(t *testing.T) {
	repo := roster()
	c := NewController(repo, newFakeAttendanceRepo(), &fakeDispatcher{}, &fakeAnnouncer{}, 10*time.Second)
	require.NoError(t, c.RefreshRoleIndex())

	// detection works before the roster change
	c.HandleDetection(studentLabel(), true)
	require.Equal(t, []string{"1"}, c.PendingIDs())

	// removing the identity and refreshing drops further detections
	repo.identities = repo.identities[1:]
	require.NoError(t, c.RefreshRoleIndex())

	c.HandleDetection(catalog.Label{IdentityID: "1", DisplayName: "Alice"}, true)
	assert.Equal(t, []string{"1"}, c.PendingIDs(), "stale pending entry is untouched, no new one is added")
}
