// Package localization provides the user-facing system strings (bot
// greeting, match notices) in the supported languages. Built-in defaults can
// be overridden from a directory of per-language JSON files.
package localization

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var defaults = map[string]map[string]string{
	"ko": {
		"bot.greeting": "안녕하세요! 혼밥 도우미예요. 오늘 뭐 드실 거예요?",
		"match.found": "상대를 찾았어요! 수락을 기다리는 중…",
		"match.declined": "상대가 거절했어요. 다시 시도해 주세요.",
		"match.timeout": "응답이 없어요. 큐에 다시 들어가 주세요.",
		"start.declined": "시작 투표가 부결됐어요.",
		"quota.exceeded": "저장소 사용량이 초과됐어요. 잠시 후 다시 시도해 주세요.",
	},
	"en": {
		"bot.greeting": "Hi! I'm the honbap bot. What are you eating today?",
		"match.found": "Found someone! Waiting for them to accept…",
		"match.declined": "They declined. Please try again.",
		"match.timeout": "No response. Please re-enter the queue.",
		"start.declined": "The start vote did not pass.",
		"quota.exceeded": "Store quota exceeded. Please try again later.",
	},
}

// Localizer resolves message keys per language, falling back to Korean (the
// product default) and finally to the key itself.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

func NewLocalizer() *Localizer {
	t := make(map[string]map[string]string, len(defaults))
	for lang, m := range defaults {
		copied := make(map[string]string, len(m))
		for k, v := range m {
			copied[k] = v
		}
		t[lang] = copied
	}
	return &Localizer{translations: t}
}

// LoadDir overlays translations from <lang>.json files in dir.
func (l *Localizer) LoadDir(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read localization directory: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}
		var overlay map[string]string
		if err := json.Unmarshal(data, &overlay); err != nil {
			return fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}
		if l.translations[lang] == nil {
			l.translations[lang] = make(map[string]string)
		}
		for k, v := range overlay {
			l.translations[lang][k] = v
		}
	}
	return nil
}

// GetString returns the localized string for key, falling back to "ko" and
// then to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.translations[lang]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if lang != "ko" {
		if v, ok := l.translations["ko"][key]; ok {
			return v
		}
	}
	return key
}
