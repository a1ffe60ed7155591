package translator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/huhai586/translator/internal/settings"
	"github.com/huhai586/translator/internal/storage"
	"github.com/huhai586/translator/internal/translate"
)

type fakeTranslator struct {
	mu       sync.Mutex
	can      bool
	err      error
	texts    []string
	settings *settings.Store
}

func (f *fakeTranslator) CanTranslate() bool { return f.can }

func (f *fakeTranslator) Translate(_ context.Context, text string) (translate.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return translate.Result{}, f.err
	}
	cfg := f.settings.Get()
	return translate.Result{
		Text:         "[" + cfg.SourceLanguage + ">" + cfg.TargetLanguage + "] " + text,
		Provider:     translate.ProviderOpenAI,
		ResponseTime: 250 * time.Millisecond,
	}, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeEvents) Broadcast(e Event) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func (f *fakeEvents) find(typ string) (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.Type == typ {
			return e, true
		}
	}
	return Event{}, false
}

type fakeHistory struct{ saved []storage.Translation }

func (f *fakeHistory) SaveTranslation(t *storage.Translation) error {
	f.saved = append(f.saved, *t)
	return nil
}

type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) ReadText() (string, error) { return f.text, f.err }

type fakeSpeaker struct {
	text, lang string
}

func (f *fakeSpeaker) Speak(_ context.Context, text, lang string) error {
	f.text, f.lang = text, lang
	return nil
}

type fixture struct {
	app      *App
	tr       *fakeTranslator
	events   *fakeEvents
	history  *fakeHistory
	clip     *fakeClipboard
	settings *settings.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.toml"))
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	f := &fixture{
		tr:       &fakeTranslator{can: true, settings: store},
		events:   &fakeEvents{},
		history:  &fakeHistory{},
		clip:     &fakeClipboard{},
		settings: store,
	}
	f.app = New(Deps{
		Translator: f.tr,
		Settings:   store,
		Clipboard:  f.clip,
		Events:     f.events,
		History:    f.history,
	}, zaptest.NewLogger(t).Sugar())
	return f
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestActivateTranslatesCleanText(t *testing.T) {
	f := newFixture(t)

	res, err := f.app.Activate(context.Background(), "  line one\nline one\nline two  ")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !equal(f.tr.texts, []string{"line one\nline two"}) {
		t.Fatalf("translated %q", f.tr.texts)
	}
	if res.Text != "[zh>en] line one\nline two" {
		t.Fatalf("result %q", res.Text)
	}
	want := []string{EventSource, EventTranslating, EventTranslation}
	if got := f.events.types(); !equal(got, want) {
		t.Fatalf("events %v, want %v", got, want)
	}

	if len(f.history.saved) != 1 {
		t.Fatalf("history saved %d records", len(f.history.saved))
	}
	rec := f.history.saved[0]
	if rec.Origin != OriginGesture || rec.Provider != translate.ProviderOpenAI || rec.ResponseTimeMs != 250 || rec.SourceLanguage != "zh" || rec.TargetLanguage != "en" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if last := f.app.Last(); last == nil || last.TranslatedText != res.Text {
		t.Fatalf("last = %+v", last)
	}
}

func TestActivateFallsBackToClipboard(t *testing.T) {
	f := newFixture(t)
	f.clip.text = "fresh clipboard text"

	if _, err := f.app.Activate(context.Background(), ""); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !equal(f.tr.texts, []string{"fresh clipboard text"}) {
		t.Fatalf("translated %q", f.tr.texts)
	}
}

func TestActivateWithNoValidTextReportsError(t *testing.T) {
	f := newFixture(t)
	f.clip.text = "123e4567-e89b-12d3-a456-426614174000"

	_, err := f.app.Activate(context.Background(), "x")
	if !errors.Is(err, ErrInvalidText) {
		t.Fatalf("err = %v", err)
	}
	if len(f.tr.texts) != 0 {
		t.Fatal("nothing should be translated")
	}
	if got := f.events.types(); !equal(got, []string{EventError}) {
		t.Fatalf("events %v", got)
	}
}

func TestActivateWithoutKeysWarns(t *testing.T) {
	f := newFixture(t)
	f.tr.can = false

	_, err := f.app.Activate(context.Background(), "some text")
	if !errors.Is(err, translate.ErrNoProviders) {
		t.Fatalf("err = %v", err)
	}
	ev, ok := f.events.find(EventWarning)
	if !ok {
		t.Fatalf("no warning, events %v", f.events.types())
	}
	if data := ev.Data.(map[string]string); data["code"] != "no_api_keys" {
		t.Fatalf("warning data %v", data)
	}
	if len(f.history.saved) != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestTranslationFailureIsBroadcast(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("both down")
	f.tr.err = boom

	if _, err := f.app.Translate(context.Background(), "hello"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := f.events.find(EventError); !ok {
		t.Fatalf("no error event, events %v", f.events.types())
	}
	if f.app.Last() != nil {
		t.Fatal("failed translation should not become last")
	}
}

func TestManualTranslateRejectsEmpty(t *testing.T) {
	f := newFixture(t)
	if _, err := f.app.Translate(context.Background(), "   "); !errors.Is(err, ErrInvalidText) {
		t.Fatalf("err = %v", err)
	}
}

func TestSwapLanguagesRetranslatesLast(t *testing.T) {
	f := newFixture(t)
	if _, err := f.app.Translate(context.Background(), "你好"); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	next, err := f.app.SwapLanguages(context.Background())
	if err != nil {
		t.Fatalf("SwapLanguages: %v", err)
	}
	if next.SourceLanguage != "en" || next.TargetLanguage != "zh" {
		t.Fatalf("languages %s>%s", next.SourceLanguage, next.TargetLanguage)
	}
	if got := f.settings.Get(); got.SourceLanguage != "en" || got.TargetLanguage != "zh" {
		t.Fatalf("settings not updated: %+v", got)
	}
	want := []string{"你好", "[zh>en] 你好"}
	if !equal(f.tr.texts, want) {
		t.Fatalf("translated %q, want %q", f.tr.texts, want)
	}
	if f.history.saved[1].Origin != OriginSwap {
		t.Fatalf("origin %q", f.history.saved[1].Origin)
	}
}

func TestSwapLanguagesWithoutLastOnlySwaps(t *testing.T) {
	f := newFixture(t)
	if _, err := f.app.SwapLanguages(context.Background()); err != nil {
		t.Fatalf("SwapLanguages: %v", err)
	}
	if len(f.tr.texts) != 0 {
		t.Fatal("nothing to retranslate")
	}
	if _, ok := f.events.find(EventLanguages); !ok {
		t.Fatal("languages event missing")
	}
}

func TestSwapLanguagesNoopForAuto(t *testing.T) {
	f := newFixture(t)
	if err := f.settings.Update(func(s *settings.Settings) { s.SourceLanguage = settings.AutoLanguage }); err != nil {
		t.Fatal(err)
	}
	next, err := f.app.SwapLanguages(context.Background())
	if err != nil {
		t.Fatalf("SwapLanguages: %v", err)
	}
	if next.SourceLanguage != settings.AutoLanguage || next.TargetLanguage != "en" {
		t.Fatalf("languages changed: %+v", next)
	}
	if len(f.events.types()) != 0 {
		t.Fatalf("unexpected events %v", f.events.types())
	}
}

func TestSpeakUsesLastTranslation(t *testing.T) {
	f := newFixture(t)
	if err := f.app.Speak(context.Background(), ""); !errors.Is(err, ErrSpeechDisabled) {
		t.Fatalf("err = %v", err)
	}

	sp := &fakeSpeaker{}
	f.app.deps.Speaker = sp
	if err := f.app.Speak(context.Background(), ""); !errors.Is(err, ErrNothingToSpeak) {
		t.Fatalf("err = %v", err)
	}

	if _, err := f.app.Translate(context.Background(), "你好"); err != nil {
		t.Fatal(err)
	}
	if err := f.app.Speak(context.Background(), ""); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if sp.text != "[zh>en] 你好" || sp.lang != "en" {
		t.Fatalf("spoke %q in %q", sp.text, sp.lang)
	}
}

func TestSinkRunsActivation(t *testing.T) {
	f := newFixture(t)
	f.app.Sink(context.Background()).OnActivate("text from gesture")
	if !equal(f.tr.texts, []string{"text from gesture"}) {
		t.Fatalf("translated %q", f.tr.texts)
	}
}
