package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/huhai586/translator/internal/app/translator"
	"github.com/huhai586/translator/internal/platform"
	"github.com/huhai586/translator/internal/settings"
	"github.com/huhai586/translator/internal/storage"
	"github.com/huhai586/translator/internal/translate"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	defaultStatsDays    = 7
	maxBodyBytes        = 1 << 20
)

type statusResponse struct {
	Gesture   gestureStatus    `json:"gesture"`
	Providers []string         `json:"providers"`
	Latencies map[string]int64 `json:"latenciesMs"`
	Last      *translator.Last `json:"last,omitempty"`
	Clients   int              `json:"clients"`
}

type gestureStatus struct {
	Enabled    bool   `json:"enabled"`
	Count      int    `json:"count"`
	WindowMs   int64  `json:"windowMs"`
	LastCopyAt string `json:"lastCopyAt,omitempty"`
}

// settingsView настройки без ключей API.
type settingsView struct {
	settings.Settings
	HasOpenAIKey bool `json:"hasOpenAIKey"`
	HasGeminiKey bool `json:"hasGeminiKey"`
}

// settingsPatch частичное обновление; nil означает «не менять».
type settingsPatch struct {
	TripleCopyEnabled *bool   `json:"tripleCopyEnabled"`
	TripleCopyDelayMs *int    `json:"tripleCopyDelay"`
	OpenAIAPIKey      *string `json:"openaiApiKey"`
	GeminiAPIKey      *string `json:"geminiApiKey"`
	PreferredModel    *string `json:"preferredModel"`
	SourceLanguage    *string `json:"sourceLanguage"`
	TargetLanguage    *string `json:"targetLanguage"`
	DarkMode          *bool   `json:"darkMode"`
	OverrideHotkey    *string `json:"overrideHotkey"`
}

type textRequest struct {
	Text string `json:"text"`
}

type historyResponse struct {
	Items []storage.Translation `json:"items"`
	Total int                   `json:"total"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Providers: []string{},
		Latencies: map[string]int64{},
		Clients:   s.hub.Clients(),
	}
	if s.deps.Detector != nil {
		st := s.deps.Detector.Snapshot()
		resp.Gesture = gestureStatus{
			Enabled:  st.Enabled,
			Count:    st.Count,
			WindowMs: st.Window.Milliseconds(),
		}
		if !st.LastCopyAt.IsZero() {
			resp.Gesture.LastCopyAt = st.LastCopyAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
		}
	}
	if s.deps.Providers != nil {
		resp.Providers = append(resp.Providers, s.deps.Providers.AvailableProviders()...)
		for name, d := range s.deps.Providers.AverageLatencies() {
			resp.Latencies[name] = d.Milliseconds()
		}
	}
	if s.deps.App != nil {
		resp.Last = s.deps.App.Last()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(s.deps.Settings.Get()))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.OverrideHotkey != nil {
		if _, err := platform.ParseHotkey(*patch.OverrideHotkey); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if patch.TargetLanguage != nil && strings.EqualFold(strings.TrimSpace(*patch.TargetLanguage), settings.AutoLanguage) {
		writeError(w, http.StatusBadRequest, "target language cannot be auto")
		return
	}

	err := s.deps.Settings.Update(func(cur *settings.Settings) {
		patch.apply(cur)
	})
	if err != nil {
		s.logger.Errorw("Failed to update settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s.deps.Settings.Get()))
}

func (p settingsPatch) apply(cur *settings.Settings) {
	if p.TripleCopyEnabled != nil {
		cur.TripleCopyEnabled = *p.TripleCopyEnabled
	}
	if p.TripleCopyDelayMs != nil {
		cur.TripleCopyDelayMs = *p.TripleCopyDelayMs
	}
	if p.OpenAIAPIKey != nil {
		cur.OpenAIAPIKey = *p.OpenAIAPIKey
	}
	if p.GeminiAPIKey != nil {
		cur.GeminiAPIKey = *p.GeminiAPIKey
	}
	if p.PreferredModel != nil {
		cur.PreferredModel = *p.PreferredModel
	}
	if p.SourceLanguage != nil {
		cur.SourceLanguage = *p.SourceLanguage
	}
	if p.TargetLanguage != nil {
		cur.TargetLanguage = *p.TargetLanguage
	}
	if p.DarkMode != nil {
		cur.DarkMode = *p.DarkMode
	}
	if p.OverrideHotkey != nil {
		cur.OverrideHotkey = *p.OverrideHotkey
	}
}

func viewOf(s settings.Settings) settingsView {
	return settingsView{
		Settings:     s,
		HasOpenAIKey: s.OpenAIAPIKey != "",
		HasGeminiKey: s.GeminiAPIKey != "",
	}
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.deps.App.Translate(r.Context(), req.Text)
	if err != nil {
		writeError(w, translateStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func translateStatus(err error) int {
	switch {
	case errors.Is(err, translator.ErrInvalidText):
		return http.StatusBadRequest
	case errors.Is(err, translate.ErrNoProviders):
		return http.StatusPreconditionFailed
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.App.SwapLanguages(r.Context()); err != nil && !errors.Is(err, translate.ErrNoProviders) {
		// ошибку повторного перевода клиенты уже получили событием
		s.logger.Warnw("Swap languages finished with error", "error", err)
	}
	writeJSON(w, http.StatusOK, viewOf(s.deps.Settings.Get()))
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	s.deps.Detector.Trigger()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	err := s.deps.App.Speak(r.Context(), req.Text)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, translator.ErrSpeechDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, translator.ErrNothingToSpeak):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Warnw("Speech failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, historyResponse{Items: []storage.Translation{}})
		return
	}
	limit := queryInt(r, "limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	items, err := s.deps.History.Translations(limit, offset)
	if err != nil {
		s.logger.Errorw("Failed to list history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	total, err := s.deps.History.TranslationCount()
	if err != nil {
		s.logger.Errorw("Failed to count history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if items == nil {
		items = []storage.Translation{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Items: items, Total: total})
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	switch err := s.deps.History.DeleteTranslation(id); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "translation not found")
	default:
		s.logger.Errorw("Failed to delete translation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete translation")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, []storage.ProviderStats{})
		return
	}
	days := queryInt(r, "days", defaultStatsDays)
	if days <= 0 {
		days = defaultStatsDays
	}
	stats, err := s.deps.History.ProviderStats(days)
	if err != nil {
		s.logger.Errorw("Failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	if stats == nil {
		stats = []storage.ProviderStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
