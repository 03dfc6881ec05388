package services

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"projectnest/internal/db"
	"projectnest/internal/models"
	"projectnest/internal/utils"
)

type recordedMail struct {
	kind     string
	to       string
	project  string
	approved bool
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []recordedMail
}

func (m *fakeMailer) SendApplicationReceived(to, _ string, projectTitle, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, recordedMail{kind: "received", to: to, project: projectTitle})
}

func (m *fakeMailer) SendApplicationDecision(to, projectTitle string, approved bool, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, recordedMail{kind: "decision", to: to, project: projectTitle, approved: approved})
}

func (m *fakeMailer) all() []recordedMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedMail(nil), m.sent...)
}

// testEnv wires every service against a private in-memory database.
type testEnv struct {
	db            *gorm.DB
	cache         *utils.QueryCache
	broker        *Broker
	presence      *Presence
	mailer        *fakeMailer
	notifications *NotificationService
	popularity    *PopularityService
	projects      *ProjectService
	comments      *CommentService
	applications  *ApplicationService
	messages      *MessageService
	bookmarks     *BookmarkService
	auth          *AuthService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	gdb, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb, zap.NewNop()))
	return gdb
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := newTestDB(t)
	log := zap.NewNop()
	cache, err := utils.NewQueryCache(100, time.Minute)
	require.NoError(t, err)

	e := &testEnv{
		db:     gdb,
		cache:  cache,
		broker: NewBroker(log, 32),
		mailer: &fakeMailer{},
	}
	e.presence = NewPresence(e.broker)
	e.notifications = NewNotificationService(gdb, e.broker, log)
	e.popularity = NewPopularityService(gdb, e.cache, log, 10*time.Millisecond)
	e.projects = NewProjectService(gdb, e.cache, e.popularity, log)
	e.comments = NewCommentService(gdb, e.cache, e.notifications, e.popularity, OrphanDrop, log)
	e.applications = NewApplicationService(gdb, e.cache, e.notifications, e.popularity, e.mailer, "http://nest.test/", log)
	e.messages = NewMessageService(gdb, e.cache, e.broker, e.presence, e.notifications, log)
	e.bookmarks = NewBookmarkService(gdb, e.popularity, log)
	e.auth = NewAuthService(gdb, log)
	return e
}

func (e *testEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := models.User{Username: username, Email: username + "@nest.test"}
	require.NoError(t, e.db.Create(&u).Error)
	return &u
}

func (e *testEnv) project(t *testing.T, owner *models.User, title string, tags ...string) *models.Project {
	t.Helper()
	p, err := e.projects.Create(t.Context(), owner, ProjectInput{Title: title, Description: title + " description", Tags: tags})
	require.NoError(t, err)
	return p
}

func (e *testEnv) notificationsOf(userID uint) []models.Notification {
	var out []models.Notification
	e.db.Where("user_id = ?", userID).Order("id ASC").Find(&out)
	return out
}
