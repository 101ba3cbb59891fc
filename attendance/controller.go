package attendance

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/camden-git/smartguardbackend/catalog"
	"github.com/camden-git/smartguardbackend/metrics"
	"github.com/camden-git/smartguardbackend/models"
	"github.com/camden-git/smartguardbackend/repository"
)

// Dispatcher hands a finalized present set to the notification subsystem.
// Dispatch must not block the detection path.
type Dispatcher interface {
	DispatchAttendance(presentIDs []string)
}

// sessionState is the transient per-session attendance state. It is owned by
// the Controller and mutated only through its transitions; nothing else
// holds a reference.
type sessionState struct {
	pending     map[string]struct{}
	lastHandled map[string]time.Time
}

func newSessionState() sessionState {
	return sessionState{
		pending:     make(map[string]struct{}),
		lastHandled: make(map[string]time.Time),
	}
}

// Controller turns detection events into committed attendance with a
// teacher-in-the-loop confirmation step. Detection events arrive from the
// camera loop goroutine; the pending list is also read by the HTTP surface,
// so state access is guarded.
type Controller struct {
	identityRepo   repository.IdentityRepositoryInterface
	attendanceRepo repository.AttendanceRepositoryInterface
	dispatcher     Dispatcher
	announcer      Announcer
	cooldown       time.Duration

	// Now is swappable for tests; defaults to time.Now
	Now func() time.Time

	mu      sync.Mutex
	session sessionState
	roles   map[string]models.Role
}

// NewController creates a session controller. Call RefreshRoleIndex before
// feeding it detection events.
func NewController(
	identityRepo repository.IdentityRepositoryInterface,
	attendanceRepo repository.AttendanceRepositoryInterface,
	dispatcher Dispatcher,
	announcer Announcer,
	cooldown time.Duration,
) *Controller {
	if cooldown <= 0 {
		cooldown = 10 * time.Second
	}
	if announcer == nil {
		announcer = LogAnnouncer{}
	}
	return &Controller{
		identityRepo:   identityRepo,
		attendanceRepo: attendanceRepo,
		dispatcher:     dispatcher,
		announcer:      announcer,
		cooldown:       cooldown,
		Now:            time.Now,
		session:        newSessionState(),
		roles:          make(map[string]models.Role),
	}
}

// RefreshRoleIndex rebuilds the in-memory id-to-role index from the store.
// Must be called after every identity mutation so detections resolve roles
// without a table scan per event.
func (c *Controller) RefreshRoleIndex() error {
	identities, err := c.identityRepo.ListAll()
	if err != nil {
		return fmt.Errorf("failed to refresh role index: %w", err)
	}

	roles := make(map[string]models.Role, len(identities))
	for _, identity := range identities {
		roles[identity.ID] = identity.Role
	}

	c.mu.Lock()
	c.roles = roles
	c.mu.Unlock()

	log.Printf("attendance: role index refreshed (%d identities)", len(roles))
	return nil
}

// HandleDetection consumes one detection event. Unknown faces, unenrolled
// ids and events inside the cooldown window are dropped.
func (c *Controller) HandleDetection(label catalog.Label, known bool) {
	if !known {
		return
	}
	metrics.DetectionsTotal.Inc()

	c.mu.Lock()
	now := c.Now()

	if last, ok := c.session.lastHandled[label.IdentityID]; ok && now.Sub(last) < c.cooldown {
		c.mu.Unlock()
		return
	}

	role, enrolled := c.roles[label.IdentityID]
	if !enrolled {
		c.mu.Unlock()
		log.Printf("attendance: dropping detection for unenrolled id %q", label.IdentityID)
		return
	}

	c.session.lastHandled[label.IdentityID] = now
	c.mu.Unlock()

	switch role {
	case models.RoleStudent:
		c.handleStudent(label)
	case models.RoleTeacher:
		c.handleTeacher(label)
	}
}

func (c *Controller) handleStudent(label catalog.Label) {
	c.mu.Lock()
	_, alreadyPending := c.session.pending[label.IdentityID]
	c.mu.Unlock()
	if alreadyPending {
		return
	}

	today := c.Now().Format("2006-01-02")
	marked, err := c.attendanceRepo.IsMarkedOn(label.IdentityID, today)
	if err != nil {
		log.Printf("attendance: failed to check today's record for %s: %v", label.IdentityID, err)
		return
	}
	if marked {
		c.announcer.Announce(fmt.Sprintf("%s, you are already marked present.", label.DisplayName))
		return
	}

	c.mu.Lock()
	c.session.pending[label.IdentityID] = struct{}{}
	c.mu.Unlock()

	c.announcer.Announce(fmt.Sprintf("Welcome %s", label.DisplayName))
}

// handleTeacher commits the pending set, all-or-nothing: every pending id is
// marked, the present set goes to the dispatcher, and the set is cleared.
// Only a teacher detection triggers this; there is no timeout auto-commit.
func (c *Controller) handleTeacher(label catalog.Label) {
	c.mu.Lock()
	if len(c.session.pending) == 0 {
		c.mu.Unlock()
		c.announcer.Announce(fmt.Sprintf("Hello %s. No pending attendance.", label.DisplayName))
		return
	}

	presentIDs := make([]string, 0, len(c.session.pending))
	for id := range c.session.pending {
		presentIDs = append(presentIDs, id)
	}
	sort.Strings(presentIDs)
	c.session.pending = make(map[string]struct{})
	c.mu.Unlock()

	c.announcer.Announce(fmt.Sprintf("Hello %s. Saving attendance.", label.DisplayName))

	for _, id := range presentIDs {
		err := c.attendanceRepo.Mark(id)
		if errors.Is(err, repository.ErrAlreadyMarked) {
			log.Printf("attendance: %s already marked today, skipping", id)
			continue
		}
		if err != nil {
			log.Printf("attendance: failed to mark %s: %v", id, err)
			continue
		}
		metrics.MarkedTotal.Inc()
	}

	metrics.CommitsTotal.Inc()
	log.Printf("attendance: committed %d identities", len(presentIDs))

	if c.dispatcher != nil {
		c.dispatcher.DispatchAttendance(presentIDs)
	}
}

// PendingIDs returns a sorted snapshot of the identities detected but not
// yet committed this session.
func (c *Controller) PendingIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.session.pending))
	for id := range c.session.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
