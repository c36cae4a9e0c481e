package i18n

import "sync"

// Translator retrieves localized headlines for problem codes.
// data provides optional metadata to embed in the message (for example,
// "tag" or "schema").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	switch t.lang {
	case "ja":
		switch code {
		case "unknown_tag":
			return "未知のタグです" + suffix(data, "tag")
		case "unsupported_version":
			return "サポートされていないバージョンです" + suffix(data, "tag")
		case "duplicate_binding":
			return "バインディングが重複しています"
		case "schema_not_found":
			return "スキーマが見つかりません" + suffix(data, "schema")
		case "schema_cycle":
			return "スキーマ参照が循環しています"
		case "validation":
			return "スキーマに適合しません"
		case "malformed_node":
			return "ノードの内容が不正です"
		case "migration_failed":
			return "バージョン移行に失敗しました"
		case "internal":
			return "内部エラー"
		}
	default: // "en"
		switch code {
		case "unknown_tag":
			return "unknown tag" + suffix(data, "tag")
		case "unsupported_version":
			return "unsupported version" + suffix(data, "tag")
		case "duplicate_binding":
			return "duplicate binding"
		case "schema_not_found":
			return "schema not found" + suffix(data, "schema")
		case "schema_cycle":
			return "schema reference cycle"
		case "validation":
			return "schema violation"
		case "malformed_node":
			return "malformed node"
		case "migration_failed":
			return "migration failed"
		case "internal":
			return "internal error"
		}
	}
	return code
}

func suffix(data map[string]string, key string) string {
	if v := data[key]; v != "" {
		return " (" + v + ")"
	}
	return ""
}

var (
	mu                sync.RWMutex
	currentTranslator Translator = dictTranslator{lang: "en"}
)

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	SetTranslator(dictTranslator{lang: lang})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version). It is safe to call while T is in use.
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	mu.Lock()
	currentTranslator = tr
	mu.Unlock()
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	mu.RLock()
	tr := currentTranslator
	mu.RUnlock()
	return tr.Message(code, data)
}
