package voicecmd

import "strings"

// Control tokens a trigger may map to instead of a key name.
const (
	ActionStartRecording  = "START_RECORDING"
	ActionStopRecording   = "STOP_RECORDING"
	ActionPauseRecording  = "PAUSE_RECORDING"
	ActionResumeRecording = "RESUME_RECORDING"
	ActionClear           = "CLEAR"
)

// IsControlAction reports whether an action token is a control directive
// rather than a key name.
func IsControlAction(action string) bool {
	switch action {
	case ActionStartRecording, ActionStopRecording, ActionPauseRecording,
		ActionResumeRecording, ActionClear:
		return true
	default:
		return false
	}
}

// builtinTriggers lists the default spoken phrases in registration order.
// Order matters: segmentation resolves equally-early matches by scanning
// this table first-registered-wins.
var builtinTriggers = []struct {
	phrase string
	action string
}{
	{"enter", "Enter"},
	{"press enter", "Enter"},
	{"hit enter", "Enter"},
	{"return", "Enter"},
	{"new line", "Enter"},
	{"tab", "Tab"},
	{"press tab", "Tab"},
	{"backspace", "Backspace"},
	{"delete", "Delete"},
	{"escape", "Escape"},
	{"press escape", "Escape"},

	{"up arrow", "Up"},
	{"down arrow", "Down"},
	{"left arrow", "Left"},
	{"right arrow", "Right"},
	{"page up", "PageUp"},
	{"page down", "PageDown"},
	{"home", "Home"},
	{"end", "End"},

	{"control c", "Ctrl+C"},
	{"control d", "Ctrl+D"},
	{"control z", "Ctrl+Z"},
	{"break", "Ctrl+C"},
	{"exit", "Ctrl+D"},
	{"stop", "Ctrl+C"},

	{"start recording", ActionStartRecording},
	{"stop recording", ActionStopRecording},
	{"pause recording", ActionPauseRecording},
	{"resume recording", ActionResumeRecording},
	{"clear terminal", ActionClear},
	{"clear screen", ActionClear},
}

// TriggerTable layers runtime custom entries over the built-in set. Built-in
// phrases are never deleted, only shadowed by a custom entry sharing the
// same normalized phrase, so customization is always reversible.
type TriggerTable struct {
	order   []string // normalized phrases: built-ins first, then novel customs in add order
	builtin map[string]string
	custom  map[string]string
}

func NewTriggerTable() *TriggerTable {
	t := &TriggerTable{
		order:   make([]string, 0, len(builtinTriggers)),
		builtin: make(map[string]string, len(builtinTriggers)),
		custom:  make(map[string]string),
	}
	for _, bt := range builtinTriggers {
		t.order = append(t.order, bt.phrase)
		t.builtin[bt.phrase] = bt.action
	}
	return t
}

func normalizePhrase(phrase string) string {
	return strings.ToLower(strings.TrimSpace(phrase))
}

// Lookup resolves a normalized phrase, custom entries shadowing built-ins.
func (t *TriggerTable) Lookup(phrase string) (string, bool) {
	p := normalizePhrase(phrase)
	if action, ok := t.custom[p]; ok {
		return action, true
	}
	action, ok := t.builtin[p]
	return action, ok
}

// Add registers or replaces a custom trigger.
func (t *TriggerTable) Add(phrase, action string) {
	p := normalizePhrase(phrase)
	if p == "" {
		return
	}
	if _, isBuiltin := t.builtin[p]; !isBuiltin {
		if _, exists := t.custom[p]; !exists {
			t.order = append(t.order, p)
		}
	}
	t.custom[p] = action
}

// Remove drops a custom trigger. Built-in phrases revert to their default
// action; they cannot be removed.
func (t *TriggerTable) Remove(phrase string) {
	p := normalizePhrase(phrase)
	if _, ok := t.custom[p]; !ok {
		return
	}
	delete(t.custom, p)
	if _, isBuiltin := t.builtin[p]; !isBuiltin {
		for i, q := range t.order {
			if q == p {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
}

// Customs returns the custom overlay for persistence.
func (t *TriggerTable) Customs() map[string]string {
	out := make(map[string]string, len(t.custom))
	for p, a := range t.custom {
		out[p] = a
	}
	return out
}

// each yields (phrase, action) pairs in registration order.
func (t *TriggerTable) each(fn func(phrase, action string) bool) {
	for _, p := range t.order {
		action, ok := t.Lookup(p)
		if !ok {
			continue
		}
		if !fn(p, action) {
			return
		}
	}
}
