package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"academic-info/config"
	"academic-info/internal/api/handler"
	"academic-info/internal/live"
	"academic-info/internal/repository"
	"academic-info/internal/resolver"
	"academic-info/internal/service"
	"academic-info/internal/source"
	"academic-info/internal/view"
	"academic-info/pkg/jwt"
	"academic-info/pkg/response"
)

const routerTimetable = `[
  {"batch": "E16", "Monday": [{"time": "9:00 - 10:00", "subject": "CN", "room": "LT-1", "teacher": "PK"}]},
  {"batch": "E17", "Monday": [{"time": "9:00 - 10:00", "subject": "Maths", "room": "101", "teacher": "SR"}]}
]`

const routerCalendar = `{"odd_semester": {"examinations": {}, "holidays": [], "events": []}}`

func setupRouter(t *testing.T, mutate func(cfg *config.Config)) *gin.Engine {
	t.Helper()
	dir := t.TempDir()
	ttPath := filepath.Join(dir, "timetable.json")
	calPath := filepath.Join(dir, "calendar.json")
	os.WriteFile(ttPath, []byte(routerTimetable), 0o644)
	os.WriteFile(calPath, []byte(routerCalendar), 0o644)

	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	cfg := &config.Config{
		Server:   config.ServerConfig{Port: 8080, BaseURL: "http://localhost:8080", BodyLimit: 1 << 20},
		App:      config.AppConfig{Timezone: "UTC"},
		Source:   config.SourceConfig{Kind: config.SourceFile, File: ttPath, CacheTTL: time.Minute},
		Calendar: config.CalendarConfig{File: calPath},
		API:      config.APIConfig{Key: "k-123"},
		Auth: config.AuthConfig{
			JWTSecret:         "router-test-secret-key",
			AccessTokenTTL:    time.Hour,
			AdminUsername:     "admin",
			AdminPasswordHash: string(hash),
			LoginRateLimit:    3,
			LoginRateWindow:   time.Minute,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	logger := zap.NewNop()
	repo := repository.NewRepository(nil, nil, logger)
	src, err := source.New(&cfg.Source, repo, logger)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	res := resolver.New(func() time.Time { return now }, time.UTC)
	svc := service.NewService(cfg, repo, src, res, jwt.NewManager(&cfg.Auth), logger)

	hub := live.NewHub(svc.Timetable, cfg.Server.CORS.AllowOrigins, logger)
	t.Cleanup(hub.Close)
	h := handler.NewHandler(svc, hub, view.NewPanelStore(time.Minute), logger)

	r, err := Setup(cfg, h, svc.Admin, nil, logger)
	if err != nil {
		t.Fatalf("Setup 失败: %v", err)
	}
	return r
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r := setupRouter(t, nil)
	w := do(r, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("应带有 X-Request-ID")
	}
	if !strings.Contains(w.Header().Get("Content-Security-Policy"), "connect-src") {
		t.Error("缺少 CSP 头")
	}
}

func TestRouter_APIKey(t *testing.T) {
	r := setupRouter(t, nil)

	w := do(r, httptest.NewRequest("GET", "/api/timetable", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("无 key 期望 401，实际 %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/timetable", nil)
	req.Header.Set("x-api-key", "k-123")
	w = do(r, req)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), `[{"batch":"E16"`) {
		t.Errorf("带 key 应返回原始数组: %d %s", w.Code, w.Body.String())
	}

	// v1 查询接口不受 key 限制
	w = do(r, httptest.NewRequest("GET", "/api/v1/batches", nil))
	if w.Code != http.StatusOK {
		t.Errorf("v1 列表期望 200，实际 %d", w.Code)
	}
}

func TestRouter_BearerProtectedEdit(t *testing.T) {
	r := setupRouter(t, nil)

	login := httptest.NewRequest("POST", "/admin/login", strings.NewReader(`{"username":"admin","password":"pw"}`))
	login.Header.Set("Content-Type", "application/json")
	w := do(r, login)
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Token == "" {
		t.Fatalf("登录失败: %s", w.Body.String())
	}

	edit := func(auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("PUT", "/api/v1/batches/E17/days/monday/sessions/0", strings.NewReader(`{"teacher":"NK"}`))
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		return do(r, req)
	}

	if w := edit(""); w.Code != http.StatusUnauthorized {
		t.Errorf("无 token 期望 401，实际 %d", w.Code)
	}
	if w := edit("Bearer " + resp.Token); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"teacher":"NK"`) {
		t.Errorf("编辑失败: %d %s", w.Code, w.Body.String())
	}
}

func TestRouter_LoginRateLimit(t *testing.T) {
	r := setupRouter(t, nil)

	var last int
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest("POST", "/admin/login", strings.NewReader(`{"username":"admin","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		last = do(r, req).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("第 4 次登录期望 429，实际 %d", last)
	}
}

func TestRouter_BodyLimit(t *testing.T) {
	r := setupRouter(t, func(cfg *config.Config) { cfg.Server.BodyLimit = 16 })

	req := httptest.NewRequest("POST", "/admin/update", strings.NewReader(`{"token":"x","data":[{"batch":"E1"}]}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(r, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("期望 413，实际 %d", w.Code)
	}
}

func TestRouter_PageFlowWithCookie(t *testing.T) {
	r := setupRouter(t, nil)

	w := do(r, httptest.NewRequest("GET", "/?do=select_batch&v=E17", nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("期望 303，实际 %d", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 || cookies[0].Name != "client_id" || !cookies[0].HttpOnly {
		t.Fatalf("应下发 HttpOnly 的 client_id cookie: %+v", cookies)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookies[0])
	w = do(r, req)
	if !strings.Contains(w.Body.String(), "E17 · Monday") || !strings.Contains(w.Body.String(), "Maths") {
		t.Errorf("应记住所选班级 E17")
	}

	// 新访客回到默认班级
	w = do(r, httptest.NewRequest("GET", "/", nil))
	if !strings.Contains(w.Body.String(), "E16 · Monday") {
		t.Errorf("新访客应看到第一个班级")
	}
}

func TestRouter_PanelLoginAndUpdate(t *testing.T) {
	r := setupRouter(t, nil)

	w := do(r, httptest.NewRequest("POST", "/admin/panel/show", nil))
	cookie := w.Result().Cookies()[0]

	post := func(path string, form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(cookie)
		return do(r, req)
	}
	get := func(path string) string {
		req := httptest.NewRequest("GET", path, nil)
		req.AddCookie(cookie)
		return do(r, req).Body.String()
	}

	if w := post("/admin/panel/login", url.Values{"username": {"admin"}, "password": {"pw"}}); w.Code != http.StatusSeeOther {
		t.Fatalf("期望 303，实际 %d", w.Code)
	}
	if page := get("/admin"); !strings.Contains(page, "textarea") {
		t.Fatalf("登录后应显示编辑框: %s", page)
	}

	data := `[{"batch": "N1", "Monday": [{"time": "8:00 - 9:00", "subject": "Physics", "room": "1", "teacher": "T"}]}]`
	post("/admin/panel/update", url.Values{"data": {data}})
	if page := get("/admin"); !strings.Contains(page, "Timetable updated successfully!") {
		t.Errorf("应显示更新成功提示")
	}

	req := httptest.NewRequest("GET", "/api/v1/batches/N1", nil)
	if w := do(r, req); w.Code != http.StatusOK {
		t.Errorf("更新后 N1 应可查询，实际 %d", w.Code)
	}
}
