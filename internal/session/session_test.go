package session

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nippolabs/nippo/internal/user"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeClock is a controllable time source for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestManager creates a Manager wired to the given fake clock.
func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Options{
		Secret:  testSecret,
		Timeout: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.now = clock.Now
	return m
}

// requestWithCookies builds a GET request carrying the cookies most recently
// written to rec, simulating the client echoing them back.
func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return req
}

func intPtr(v int64) *int64 { return &v }

func testIdentity() Identity {
	return Identity{
		UserID:    10,
		Name:      "営業太郎",
		Email:     "sales1@test.com",
		Role:      user.RoleSales,
		ManagerID: intPtr(2),
	}
}

func TestGetWithoutCookie(t *testing.T) {
	m := newTestManager(t, newFakeClock(time.Now()))

	d := m.Get(httptest.NewRequest(http.MethodGet, "/", nil))
	if d == nil {
		t.Fatal("Get should never return nil")
	}
	if d.IsAuthenticated() {
		t.Error("empty session should not be authenticated")
	}
}

func TestCreateRoundtrip(t *testing.T) {
	clock := newFakeClock(time.Now())
	m := newTestManager(t, clock)

	rec := httptest.NewRecorder()
	if _, err := m.Create(rec, testIdentity()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec2 := httptest.NewRecorder()
	d := m.CurrentUser(rec2, requestWithCookies(rec))
	if d == nil {
		t.Fatal("CurrentUser should return the session just created")
	}
	if d.UserID == nil || *d.UserID != 10 {
		t.Errorf("expected userId 10, got %v", d.UserID)
	}
	if d.Name != "営業太郎" || d.Email != "sales1@test.com" {
		t.Errorf("identity fields not preserved: %+v", d)
	}
	if d.Role != user.RoleSales {
		t.Errorf("expected role sales, got %q", d.Role)
	}
	if d.ManagerID == nil || *d.ManagerID != 2 {
		t.Errorf("expected managerId 2, got %v", d.ManagerID)
	}
	if d.CreatedAt == 0 || d.LastActivity == 0 {
		t.Error("CreatedAt and LastActivity should be set")
	}
}

func TestCreateOverwritesPriorSession(t *testing.T) {
	clock := newFakeClock(time.Now())
	m := newTestManager(t, clock)

	rec := httptest.NewRecorder()
	if _, err := m.Create(rec, testIdentity()); err != nil {
		t.Fatal(err)
	}

	rec2 := httptest.NewRecorder()
	other := Identity{UserID: 99, Name: "管理太郎", Email: "admin@test.com", Role: user.RoleAdmin}
	if _, err := m.Create(rec2, other); err != nil {
		t.Fatal(err)
	}

	rec3 := httptest.NewRecorder()
	d := m.CurrentUser(rec3, requestWithCookies(rec2))
	if d == nil || *d.UserID != 99 {
		t.Fatalf("expected replacement session for user 99, got %+v", d)
	}
	if d.ManagerID != nil {
		t.Errorf("managerId should be nil after overwrite, got %v", d.ManagerID)
	}
}

func TestGetRejectsForgedCookie(t *testing.T) {
	m := newTestManager(t, newFakeClock(time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: m.CookieName(), Value: "forged-garbage-value"})

	d := m.Get(req)
	if d.IsAuthenticated() {
		t.Error("forged cookie must decode to an empty session")
	}
}

func TestGetRejectsTamperedCookie(t *testing.T) {
	m := newTestManager(t, newFakeClock(time.Now()))

	rec := httptest.NewRecorder()
	if _, err := m.Create(rec, testIdentity()); err != nil {
		t.Fatal(err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}
	tampered := []byte(cookies[0].Value)
	tampered[len(tampered)/2] ^= 0x01

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: m.CookieName(), Value: string(tampered)})

	if m.Get(req).IsAuthenticated() {
		t.Error("tampered cookie must decode to an empty session")
	}
}

func TestDestroy(t *testing.T) {
	m := newTestManager(t, newFakeClock(time.Now()))

	rec := httptest.NewRecorder()
	if _, err := m.Create(rec, testIdentity()); err != nil {
		t.Fatal(err)
	}

	rec2 := httptest.NewRecorder()
	m.Destroy(rec2)

	cookies := rec2.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.MaxAge != -1 || c.Value != "" {
		t.Errorf("destroy cookie should be expired and empty, got MaxAge=%d Value=%q", c.MaxAge, c.Value)
	}

	// The client drops the cookie; the next request is unauthenticated.
	rec3 := httptest.NewRecorder()
	if m.CurrentUser(rec3, requestWithCookies(rec2)) != nil {
		t.Error("CurrentUser after destroy should be nil")
	}
}

func TestTimeoutExpiresSession(t *testing.T) {
	clock := newFakeClock(time.Now())
	m := newTestManager(t, clock)

	rec := httptest.NewRecorder()
	if _, err := m.Create(rec, testIdentity()); err != nil {
		t.Fatal(err)
	}

	// One second past the inactivity window.
	clock.Advance(30*time.Minute + time.Second)

	rec2 := httptest.NewRecorder()
	if d := m.CurrentUser(rec2, requestWithCookies(rec)); d != nil {
		t.Fatalf("expired session should yield nil, got %+v", d)
	}

	// Expiry destroys the session as a side effect.
	cookies := rec2.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Error("expected an expired cookie to be written on timeout")
	}
}

func TestTimeoutHookFires(t *testing.T) {
	clock := newFakeClock(time.Now())
	timeouts := 0

	m, err := NewManager(Options{
		Secret:    testSecret,
		Timeout:   30 * time.Minute,
		OnTimeout: func() { timeouts++ },
	})
	if err != nil {
		t.Fatal(err)
	}
	m.now = clock.Now

	rec := httptest.NewRecorder()
	if _, err := m.Create(rec, testIdentity()); err != nil {
		t.Fatal(err)
	}

	// A live session does not fire the hook.
	clock.Advance(time.Minute)
	rec2 := httptest.NewRecorder()
	if d := m.CurrentUser(rec2, requestWithCookies(rec)); d == nil {
		t.Fatal("session should still be live")
	}
	if timeouts != 0 {
		t.Fatalf("hook fired on a live session: %d", timeouts)
	}

	clock.Advance(31 * time.Minute)
	rec3 := httptest.NewRecorder()
	if d := m.CurrentUser(rec3, requestWithCookies(rec2)); d != nil {
		t.Fatal("session should have expired")
	}
	if timeouts != 1 {
		t.Fatalf("expected hook to fire once, got %d", timeouts)
	}
}

func TestTimeoutRefreshesActivity(t *testing.T) {
	clock := newFakeClock(time.Now())
	m := newTestManager(t, clock)

	rec := httptest.NewRecorder()
	if _, err := m.Create(rec, testIdentity()); err != nil {
		t.Fatal(err)
	}

	// The window slides: repeated reads just inside the timeout keep the
	// session alive well past the original deadline.
	prev := rec
	for i := 0; i < 3; i++ {
		clock.Advance(29 * time.Minute)
		next := httptest.NewRecorder()
		d := m.CurrentUser(next, requestWithCookies(prev))
		if d == nil {
			t.Fatalf("session should remain valid on read %d", i+1)
		}
		if d.LastActivity != clock.Now().UnixMilli() {
			t.Errorf("read %d: LastActivity not refreshed", i+1)
		}
		prev = next
	}
}

func TestCheckTimeoutWithoutIdentity(t *testing.T) {
	m := newTestManager(t, newFakeClock(time.Now()))

	rec := httptest.NewRecorder()
	if m.CheckTimeout(rec, &Data{}) {
		t.Error("session without identity should fail the timeout check")
	}
	if m.CheckTimeout(rec, &Data{UserID: intPtr(1)}) {
		t.Error("session without lastActivity should fail the timeout check")
	}
}

func TestCookieAttributes(t *testing.T) {
	m, err := NewManager(Options{
		Secret:  testSecret,
		Timeout: 30 * time.Minute,
		Secure:  true,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	if _, err := m.Create(rec, testIdentity()); err != nil {
		t.Fatal(err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "daily-report-session" {
		t.Errorf("expected cookie name daily-report-session, got %q", c.Name)
	}
	if !c.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}
	if !c.Secure {
		t.Error("cookie must be Secure when configured")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie must be SameSite=Lax, got %v", c.SameSite)
	}
	if c.MaxAge != 1800 {
		t.Errorf("expected MaxAge 1800, got %d", c.MaxAge)
	}
	if c.Path != "/" {
		t.Errorf("expected Path /, got %q", c.Path)
	}
}

func TestRejectsShortSecret(t *testing.T) {
	_, err := NewManager(Options{Secret: "short"})
	if err == nil {
		t.Fatal("expected error for short session secret")
	}
}
