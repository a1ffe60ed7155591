package storage

import (
	"fmt"
	"time"
)

// Translation одна запись истории.
type Translation struct {
	ID             int64     `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	SourceText     string    `json:"sourceText"`
	TranslatedText string    `json:"translatedText"`
	SourceLanguage string    `json:"sourceLanguage"`
	TargetLanguage string    `json:"targetLanguage"`
	Origin         string    `json:"origin"`
	Provider       string    `json:"provider"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
}

// ProviderStats статистика провайдера за период.
type ProviderStats struct {
	Provider          string  `json:"provider"`
	TotalTranslations int     `json:"totalTranslations"`
	TotalCharacters   int     `json:"totalCharacters"`
	AvgResponseMs     float64 `json:"avgResponseMs"`
}

// SaveTranslation сохраняет запись и проставляет ей ID. Пустой CreatedAt заменяется текущим временем.
func (db *DB) SaveTranslation(t *Translation) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = t.CreatedAt.UTC()

	result, err := db.conn.Exec(`
		INSERT INTO translations (
			created_at, source_text, translated_text, source_language, target_language,
			origin, provider, response_time_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.CreatedAt, t.SourceText, t.TranslatedText, t.SourceLanguage, t.TargetLanguage,
		t.Origin, t.Provider, t.ResponseTimeMs,
	)
	if err != nil {
		return fmt.Errorf("failed to save translation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	t.ID = id
	return nil
}

// Translations история от новых к старым.
func (db *DB) Translations(limit, offset int) ([]Translation, error) {
	rows, err := db.conn.Query(`
		SELECT
			id, created_at, source_text, translated_text, source_language, target_language,
			origin, provider, response_time_ms
		FROM translations
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query translations: %w", err)
	}
	defer rows.Close()

	var out []Translation
	for rows.Next() {
		var t Translation
		err := rows.Scan(
			&t.ID, &t.CreatedAt, &t.SourceText, &t.TranslatedText, &t.SourceLanguage, &t.TargetLanguage,
			&t.Origin, &t.Provider, &t.ResponseTimeMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *DB) TranslationCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM translations").Scan(&count)
	return count, err
}

func (db *DB) DeleteTranslation(id int64) error {
	result, err := db.conn.Exec(`DELETE FROM translations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete translation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ProviderStats статистика по провайдерам за последние days дней.
func (db *DB) ProviderStats(days int) ([]ProviderStats, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := db.conn.Query(`
		SELECT
			provider,
			COUNT(*) AS total_translations,
			COALESCE(SUM(LENGTH(source_text)), 0) AS total_characters,
			COALESCE(AVG(response_time_ms), 0) AS avg_response_ms
		FROM translations
		WHERE created_at >= ?
		GROUP BY provider
		ORDER BY total_translations DESC, provider
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider stats: %w", err)
	}
	defer rows.Close()

	var stats []ProviderStats
	for rows.Next() {
		var s ProviderStats
		if err := rows.Scan(&s.Provider, &s.TotalTranslations, &s.TotalCharacters, &s.AvgResponseMs); err != nil {
			return nil, fmt.Errorf("failed to scan provider stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// RecentLatencies последние n времён ответа провайдера, от старых к новым.
func (db *DB) RecentLatencies(provider string, n int) ([]time.Duration, error) {
	rows, err := db.conn.Query(`
		SELECT response_time_ms FROM translations
		WHERE provider = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, provider, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query latencies: %w", err)
	}
	defer rows.Close()

	var out []time.Duration
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("failed to scan latency: %w", err)
		}
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
