package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/huhai586/translator/internal/app/translator"
	"github.com/huhai586/translator/internal/config"
	"github.com/huhai586/translator/internal/gesture"
	"github.com/huhai586/translator/internal/settings"
	"github.com/huhai586/translator/internal/storage"
	"github.com/huhai586/translator/internal/translate"
)

type fakeApp struct {
	mu        sync.Mutex
	err       error
	speakErr  error
	translate []string
	spoken    []string
	swaps     int
	store     *settings.Store
}

func (a *fakeApp) Translate(_ context.Context, text string) (translate.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.translate = append(a.translate, text)
	if a.err != nil {
		return translate.Result{}, a.err
	}
	return translate.Result{Text: "hello", Provider: translate.ProviderGemini, ResponseTime: 120 * time.Millisecond}, nil
}

func (a *fakeApp) SwapLanguages(context.Context) (settings.Settings, error) {
	a.mu.Lock()
	a.swaps++
	a.mu.Unlock()
	err := a.store.Update(func(s *settings.Settings) {
		s.SourceLanguage, s.TargetLanguage = s.TargetLanguage, s.SourceLanguage
	})
	return a.store.Get(), err
}

func (a *fakeApp) Speak(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.spoken = append(a.spoken, text)
	return a.speakErr
}

func (a *fakeApp) Last() *translator.Last {
	return &translator.Last{SourceText: "你好", TranslatedText: "hello", Provider: translate.ProviderGemini}
}

type fakeDetector struct {
	mu       sync.Mutex
	triggers int
}

func (d *fakeDetector) Snapshot() gesture.State {
	return gesture.State{Count: 2, Window: 1200 * time.Millisecond, Enabled: true, LastText: "secret"}
}

func (d *fakeDetector) Trigger() {
	d.mu.Lock()
	d.triggers++
	d.mu.Unlock()
}

func (d *fakeDetector) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.triggers
}

type fakeProviders struct{}

func (fakeProviders) AvailableProviders() []string { return []string{"openai", "gemini"} }

func (fakeProviders) AverageLatencies() map[string]time.Duration {
	return map[string]time.Duration{"openai": 900 * time.Millisecond}
}

type fixture struct {
	srv      *Server
	base     string
	app      *fakeApp
	detector *fakeDetector
	store    *settings.Store
	db       *storage.DB
}

func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := settings.Open(filepath.Join(dir, "settings.toml"))
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	f := &fixture{app: &fakeApp{store: store}, detector: &fakeDetector{}, store: store}
	deps := Deps{App: f.app, Detector: f.detector, Settings: store, Providers: fakeProviders{}}
	if withHistory {
		db, err := storage.Open(dir)
		if err != nil {
			t.Fatalf("storage.Open: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		f.db = db
		deps.History = db
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.srv = NewServer(config.ServerConfig{Enabled: true, BindAddr: "127.0.0.1:0"}, deps, zaptest.NewLogger(t).Sugar())
	if err := f.srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = f.srv.Stop(context.Background())
	})
	f.base = "http://" + f.srv.Addr()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.base+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestStatus(t *testing.T) {
	f := newFixture(t, false)

	resp := f.do(t, http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[statusResponse](t, resp)
	if !got.Gesture.Enabled || got.Gesture.Count != 2 || got.Gesture.WindowMs != 1200 {
		t.Fatalf("unexpected gesture status: %+v", got.Gesture)
	}
	if len(got.Providers) != 2 || got.Latencies["openai"] != 900 {
		t.Fatalf("unexpected providers: %v %v", got.Providers, got.Latencies)
	}
	if got.Last == nil || got.Last.TranslatedText != "hello" {
		t.Fatalf("unexpected last: %+v", got.Last)
	}
}

func TestSettingsHideKeys(t *testing.T) {
	f := newFixture(t, false)
	if err := f.store.Update(func(s *settings.Settings) { s.OpenAIAPIKey = "sk-secret" }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	resp := f.do(t, http.MethodGet, "/api/settings", nil)
	raw := new(bytes.Buffer)
	raw.ReadFrom(resp.Body)
	if strings.Contains(raw.String(), "sk-secret") {
		t.Fatalf("api key leaked: %s", raw.String())
	}
	var view map[string]any
	if err := json.Unmarshal(raw.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view["hasOpenAIKey"] != true || view["hasGeminiKey"] != false {
		t.Fatalf("unexpected key flags: %v", view)
	}
	if view["tripleCopyDelay"] != float64(settings.DefaultTripleCopyDelayMs) {
		t.Fatalf("tripleCopyDelay = %v", view["tripleCopyDelay"])
	}
}

func TestPutSettingsAppliesPatch(t *testing.T) {
	f := newFixture(t, false)

	resp := f.do(t, http.MethodPut, "/api/settings", map[string]any{
		"tripleCopyEnabled": false,
		"tripleCopyDelay":   800,
		"geminiApiKey":      "  g-key  ",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := f.store.Get()
	if got.TripleCopyEnabled || got.TripleCopyDelayMs != 800 || got.GeminiAPIKey != "g-key" {
		t.Fatalf("settings not applied: %+v", got)
	}
	if got.TargetLanguage != settings.DefaultTargetLanguage {
		t.Fatalf("untouched field changed: %q", got.TargetLanguage)
	}
}

func TestPutSettingsRejectsInvalid(t *testing.T) {
	f := newFixture(t, false)

	cases := []map[string]any{
		{"overrideHotkey": "q"},
		{"overrideHotkey": "ctrl+nope"},
		{"targetLanguage": "auto"},
	}
	for _, body := range cases {
		resp := f.do(t, http.MethodPut, "/api/settings", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%v: status = %d, want 400", body, resp.StatusCode)
		}
	}
	if got := f.store.Get(); got.OverrideHotkey != settings.DefaultOverrideHotkey {
		t.Fatalf("hotkey changed to %q", got.OverrideHotkey)
	}
}

func TestTranslateErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{translator.ErrInvalidText, http.StatusBadRequest},
		{translate.ErrNoProviders, http.StatusPreconditionFailed},
		{fmt.Errorf("translation failed with all providers: %w", errors.New("boom")), http.StatusBadGateway},
	}
	for _, tc := range cases {
		f := newFixture(t, false)
		f.app.mu.Lock()
		f.app.err = tc.err
		f.app.mu.Unlock()
		resp := f.do(t, http.MethodPost, "/api/translate", textRequest{Text: "你好"})
		if resp.StatusCode != tc.want {
			t.Fatalf("err %v: status = %d, want %d", tc.err, resp.StatusCode, tc.want)
		}
	}
}

func TestTranslateReturnsResult(t *testing.T) {
	f := newFixture(t, false)

	resp := f.do(t, http.MethodPost, "/api/translate", textRequest{Text: "你好"})
	got := decode[map[string]any](t, resp)
	if got["translatedText"] != "hello" {
		t.Fatalf("unexpected result: %v", got)
	}
	f.app.mu.Lock()
	defer f.app.mu.Unlock()
	if len(f.app.translate) != 1 || f.app.translate[0] != "你好" {
		t.Fatalf("app received %v", f.app.translate)
	}
}

func TestSwapReturnsNewLanguages(t *testing.T) {
	f := newFixture(t, false)

	resp := f.do(t, http.MethodPost, "/api/swap", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[map[string]any](t, resp)
	if got["sourceLanguage"] != settings.DefaultTargetLanguage || got["targetLanguage"] != settings.DefaultSourceLanguage {
		t.Fatalf("languages not swapped: %v", got)
	}
}

func TestActivateTriggersDetector(t *testing.T) {
	f := newFixture(t, false)

	resp := f.do(t, http.MethodPost, "/api/activate", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if n := f.detector.count(); n != 1 {
		t.Fatalf("triggers = %d", n)
	}
}

func TestSpeakErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusNoContent},
		{translator.ErrSpeechDisabled, http.StatusServiceUnavailable},
		{translator.ErrNothingToSpeak, http.StatusBadRequest},
		{errors.New("tts down"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		f := newFixture(t, false)
		f.app.mu.Lock()
		f.app.speakErr = tc.err
		f.app.mu.Unlock()
		resp := f.do(t, http.MethodPost, "/api/speak", nil)
		if resp.StatusCode != tc.want {
			t.Fatalf("err %v: status = %d, want %d", tc.err, resp.StatusCode, tc.want)
		}
	}
}

func TestHistoryListAndDelete(t *testing.T) {
	f := newFixture(t, true)
	for i := 0; i < 3; i++ {
		rec := &storage.Translation{
			CreatedAt:      time.Now().Add(time.Duration(i) * time.Second),
			SourceText:     fmt.Sprintf("text %d", i),
			TranslatedText: "t",
			Provider:       translate.ProviderOpenAI,
			Origin:         translator.OriginGesture,
		}
		if err := f.db.SaveTranslation(rec); err != nil {
			t.Fatalf("SaveTranslation: %v", err)
		}
	}

	got := decode[historyResponse](t, f.do(t, http.MethodGet, "/api/history?limit=2", nil))
	if got.Total != 3 || len(got.Items) != 2 {
		t.Fatalf("total=%d items=%d", got.Total, len(got.Items))
	}
	if got.Items[0].SourceText != "text 2" {
		t.Fatalf("newest first expected, got %q", got.Items[0].SourceText)
	}

	id := got.Items[0].ID
	if resp := f.do(t, http.MethodDelete, fmt.Sprintf("/api/history/%d", id), nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, fmt.Sprintf("/api/history/%d", id), nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, "/api/history/abc", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, true)
	rec := &storage.Translation{SourceText: "abcd", TranslatedText: "x", Provider: translate.ProviderGemini, ResponseTimeMs: 300}
	if err := f.db.SaveTranslation(rec); err != nil {
		t.Fatalf("SaveTranslation: %v", err)
	}

	got := decode[[]storage.ProviderStats](t, f.do(t, http.MethodGet, "/api/stats?days=1", nil))
	if len(got) != 1 || got[0].Provider != translate.ProviderGemini || got[0].TotalTranslations != 1 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestHistoryDisabled(t *testing.T) {
	f := newFixture(t, false)

	got := decode[historyResponse](t, f.do(t, http.MethodGet, "/api/history", nil))
	if got.Total != 0 || got.Items == nil || len(got.Items) != 0 {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, false)

	if resp := f.do(t, http.MethodGet, "/api/translate", nil); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestWebSocketReceivesEvents(t *testing.T) {
	f := newFixture(t, false)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+f.srv.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.srv.Hub().Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	f.srv.Hub().Broadcast(translator.Event{Type: translator.EventTranslation, Data: map[string]string{"text": "hello"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.Type != translator.EventTranslation || ev.Data["text"] != "hello" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	if err := f.srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := f.srv.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
