package i18n

import (
	"sync"
	"testing"
)

func TestTranslator_DefaultAndJapanese(t *testing.T) {
	// default is en
	if msg := T("malformed_node", nil); msg != "malformed node" {
		t.Fatalf("expected a human message, got %q", msg)
	}
	if msg := T("unknown_tag", map[string]string{"tag": "x:y-1.0.0"}); msg != "unknown tag (x:y-1.0.0)" {
		t.Fatalf("expected the tag in the message, got %q", msg)
	}

	SetLanguage("ja")
	if msg := T("malformed_node", nil); msg == "malformed node" || msg == "malformed_node" {
		t.Fatalf("expected japanese message, got %q", msg)
	}

	// reset to en
	SetLanguage("en")
}

func TestTranslator_UnknownCodeFallsBack(t *testing.T) {
	if msg := T("no_such_code", nil); msg != "no_such_code" {
		t.Fatalf("expected the code itself, got %q", msg)
	}
}

type upper struct{}

func (upper) Message(code string, _ map[string]string) string { return "[" + code + "]" }

func TestSetTranslator(t *testing.T) {
	SetTranslator(upper{})
	defer SetTranslator(nil)
	if msg := T("validation", nil); msg != "[validation]" {
		t.Fatalf("custom translator not used, got %q", msg)
	}
}

func TestTranslator_ConcurrentSwitch(t *testing.T) {
	defer SetLanguage("en")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (i+j)%2 == 0 {
					SetLanguage("ja")
				} else {
					SetLanguage("en")
				}
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if msg := T("internal", nil); msg != "internal error" && msg != "内部エラー" {
					t.Errorf("unexpected message %q", msg)
					return
				}
			}
		}()
	}
	wg.Wait()
}
