// Package speech озвучивает перевод через Google Cloud Text-to-Speech.
package speech

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	gctts "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"go.uber.org/zap"

	"github.com/huhai586/translator/internal/service/player"
)

// ErrEmptyText нечего озвучивать.
var ErrEmptyText = errors.New("speech: empty text")

type Config struct {
	Voice        string  // пусто: голос по умолчанию для языка
	SpeakingRate float64 // 0: скорость по умолчанию
}

type synthesizeFunc func(ctx context.Context, req *ttspb.SynthesizeSpeechRequest) (*ttspb.SynthesizeSpeechResponse, error)

// Speaker синтезирует MP3 и проигрывает его.
type Speaker struct {
	cfg    Config
	player player.Player
	logger *zap.SugaredLogger

	mu         sync.Mutex
	client     *gctts.Client
	synthesize synthesizeFunc
}

func New(cfg Config, p player.Player, logger *zap.SugaredLogger) *Speaker {
	if p == nil {
		p = player.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Speaker{cfg: cfg, player: p, logger: logger}
	s.synthesize = s.cloudSynthesize
	return s
}

// Speak озвучивает text на языке lang (код вида "en" или "en-US").
func (s *Speaker) Speak(ctx context.Context, text, lang string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	voice := &ttspb.VoiceSelectionParams{
		LanguageCode: LanguageCode(lang),
		Name:         s.cfg.Voice,
	}
	// Только MP3
	audio := &ttspb.AudioConfig{
		AudioEncoding: ttspb.AudioEncoding_MP3,
		SpeakingRate:  s.cfg.SpeakingRate,
	}
	req := &ttspb.SynthesizeSpeechRequest{
		Input:       &ttspb.SynthesisInput{InputSource: &ttspb.SynthesisInput_Text{Text: text}},
		Voice:       voice,
		AudioConfig: audio,
	}

	started := time.Now()
	resp, err := s.synthesize(ctx, req)
	if err != nil {
		return err
	}
	s.logger.Infow("Google TTS synthesize completed", "language", voice.LanguageCode, "took", time.Since(started).String())

	return s.player.Play(ctx, "mp3", io.NopCloser(bytes.NewReader(resp.GetAudioContent())))
}

func (s *Speaker) cloudSynthesize(ctx context.Context, req *ttspb.SynthesizeSpeechRequest) (*ttspb.SynthesizeSpeechResponse, error) {
	s.mu.Lock()
	if s.client == nil {
		c, err := gctts.NewClient(context.WithoutCancel(ctx))
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.client = c
	}
	c := s.client
	s.mu.Unlock()
	return c.SynthesizeSpeech(ctx, req)
}

func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

var languageCodes = map[string]string{
	"en": "en-US",
	"zh": "cmn-CN",
	"ja": "ja-JP",
	"ko": "ko-KR",
	"ru": "ru-RU",
	"de": "de-DE",
	"fr": "fr-FR",
	"es": "es-ES",
	"it": "it-IT",
	"pt": "pt-BR",
}

// LanguageCode переводит короткий код языка в BCP-47, который ожидает Cloud TTS.
func LanguageCode(lang string) string {
	lang = strings.TrimSpace(lang)
	if code, ok := languageCodes[strings.ToLower(lang)]; ok {
		return code
	}
	if lang == "" || lang == "auto" {
		return "en-US"
	}
	return lang
}
