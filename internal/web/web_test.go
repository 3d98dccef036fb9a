package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedview/internal/config"
	"schedview/internal/model"
	"schedview/internal/render"
	"schedview/internal/schedule"
)

type fixedState struct{ st schedule.State }

func (f fixedState) State() schedule.State { return f.st }

func testDoc() *model.Document {
	nine := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return model.NewDocument(
		[]model.Room{{ID: "1", Name: "Hall West"}, {ID: "2", Name: "Hall East"}},
		[]model.Speaker{{ID: "a", FullName: "Ada Lovelace"}},
		[]model.Session{
			{ID: "1", Title: "Opening", StartsAt: nine, EndsAt: nine.Add(30 * time.Minute), Day: "2024-05-01", RoomID: "1", IsPlenum: true},
			{ID: "2", Title: "Same slot A", StartsAt: nine.Add(time.Hour), EndsAt: nine.Add(2 * time.Hour), Day: "2024-05-01", RoomID: "1"},
			{ID: "3", Title: "Same slot B", Description: "Rust in production", StartsAt: nine.Add(time.Hour), EndsAt: nine.Add(2 * time.Hour), Day: "2024-05-01", RoomID: "2", SpeakerIDs: []model.ID{"a"}},
			{ID: "4", Title: "Lost room", StartsAt: nine.AddDate(0, 0, 1), EndsAt: nine.AddDate(0, 0, 1).Add(time.Hour), Day: "2024-05-02", RoomID: "77"},
		},
	)
}

func newTestServer(t *testing.T, st schedule.State) (*httptest.Server, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Title = "DevConf"
	cfg.PreviewPath = filepath.Join(t.TempDir(), "preview.png")

	s, err := NewServer(cfg, fixedState{st: st})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, cfg
}

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIndexFullSchedule(t *testing.T) {
	ts, _ := newTestServer(t, schedule.State{Doc: testDoc()})

	resp, body := get(t, ts, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	assert.Contains(t, body, "Opening")
	assert.Contains(t, body, "Lost room")
	assert.Contains(t, body, `data-theme="light"`)

	// Both 10:00 sessions share a slot, in document order.
	a, b := strings.Index(body, "Same slot A"), strings.Index(body, "Same slot B")
	assert.True(t, a > 0 && a < b)
}

func TestIndexEmptyRoomFilter(t *testing.T) {
	ts, _ := newTestServer(t, schedule.State{Doc: testDoc()})

	resp, body := get(t, ts, "/?room=99")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `id="schedule"`)
	assert.Contains(t, body, "No sessions match")
	assert.NotContains(t, body, "session-card")
	assert.NotContains(t, body, render.LoadErrorMessage)
}

func TestIndexFilters(t *testing.T) {
	ts, _ := newTestServer(t, schedule.State{Doc: testDoc()})

	_, body := get(t, ts, "/?q=RUST")
	assert.Contains(t, body, "Same slot B")
	assert.NotContains(t, body, "Same slot A")

	// Numeric room IDs compare loosely.
	_, body = get(t, ts, "/?room=01&type=talk&panel=hidden")
	assert.Contains(t, body, "Same slot A")
	assert.NotContains(t, body, "Opening")
	assert.Contains(t, body, `id="filters" class="filters">`)

	resp, _ := get(t, ts, "/?day=May+1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, ts, "/?type=panel")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoadFailure(t *testing.T) {
	ts, _ := newTestServer(t, schedule.State{Err: errors.New("HTTP status 500")})

	resp, body := get(t, ts, "/")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, render.LoadErrorMessage)
	assert.NotContains(t, body, `id="schedule"`)

	resp, body = get(t, ts, "/api/schedule")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, render.LoadErrorMessage)
	assert.Contains(t, body, `"days": []`)
	assert.NotContains(t, body, "null")

	resp, _ = get(t, ts, "/schedule.ics")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAPISchedule(t *testing.T) {
	ts, _ := newTestServer(t, schedule.State{Doc: testDoc()})

	resp, body := get(t, ts, "/api/schedule?day=2024-05-02")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page render.Page
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	assert.True(t, page.Applied)
	assert.Equal(t, 1, page.Count)
	card := page.Days[0].Slots[0].Lanes[0].Cards[0]
	assert.Equal(t, "Lost room", card.Title)
	assert.Empty(t, card.Room)

	resp, body = get(t, ts, "/api/schedule?day=nope")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `"error"`)
}

func TestICSExport(t *testing.T) {
	ts, _ := newTestServer(t, schedule.State{Doc: testDoc()})

	resp, body := get(t, ts, "/schedule.ics?type=keynote")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/calendar; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, 1, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "SUMMARY:Opening")
	assert.Contains(t, body, "X-WR-CALNAME:DevConf")
}

func TestThemeToggle(t *testing.T) {
	ts, _ := newTestServer(t, schedule.State{Doc: testDoc()})
	client := noRedirectClient()

	resp, err := client.PostForm(ts.URL+"/theme", url.Values{"return": {"/?day=2024-05-01"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?day=2024-05-01", resp.Header.Get("Location"))

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "dark", cookies[0].Value)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/theme", strings.NewReader("return=//evil.example"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookies[0])
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, "light", resp.Cookies()[0].Value)

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: ThemeCookieName, Value: "dark"})
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `data-theme="dark"`)
}

func TestThemeFromRequestDefaults(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "light", themeFromRequest(r, "light"))

	r.AddCookie(&http.Cookie{Name: ThemeCookieName, Value: "sepia"})
	assert.Equal(t, "dark", themeFromRequest(r, "dark"))
}

func TestStaticHealthPreview(t *testing.T) {
	ts, cfg := newTestServer(t, schedule.State{Doc: testDoc()})

	resp, body := get(t, ts, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)

	resp, body = get(t, ts, "/static/style.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, ".session-card")

	resp, _ = get(t, ts, "/preview.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, os.WriteFile(cfg.PreviewPath, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	resp, _ = get(t, ts, "/preview.png")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, ts, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
