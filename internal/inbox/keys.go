package inbox

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-triage/pkg/logger"
)

// Shortcut is a single-key binding with its metadata and handler.
type Shortcut struct {
	Keys        []string // key names, e.g. "j", "down", "enter"
	Description string
	Category    string
	// WhileTyping lets the shortcut fire while a text input has focus.
	WhileTyping bool
	Handler     func(ctx context.Context) error
	Condition   func() bool // optional extra guard
}

// Categories for grouping shortcuts in help output.
const (
	CategoryNavigation = "Navigation"
	CategoryActions    = "Actions"
	CategoryCompose    = "Compose (when focused)"
)

// Scope is a set of shortcuts owned by one controller.
type Scope struct {
	Name      string
	Shortcuts []Shortcut
	// Typing reports whether a text input in this scope has focus.
	Typing func() bool
}

type registration struct {
	id    uint64
	scope Scope
}

// Dispatcher routes key presses to the most recently registered live scope.
type Dispatcher struct {
	mu     sync.Mutex
	scopes []registration
	nextID uint64
	logger *logger.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Global()
	}
	return &Dispatcher{logger: log.Named("keys")}
}

// Register makes scope the active one until release is called. Releasing
// is idempotent and re-activates whatever was registered before.
func (d *Dispatcher) Register(scope Scope) (release func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.scopes = append(d.scopes, registration{id: id, scope: scope})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i := range d.scopes {
				if d.scopes[i].id == id {
					d.scopes = append(d.scopes[:i], d.scopes[i+1:]...)
					return
				}
			}
		})
	}
}

// Active returns the name of the scope receiving keys, or "".
func (d *Dispatcher) Active() string {
	if s, ok := d.top(); ok {
		return s.Name
	}
	return ""
}

// Dispatch runs the active scope's shortcut for key. It reports whether a
// shortcut handled the key. Modified keys (ctrl, meta, alt) are never
// handled here.
func (d *Dispatcher) Dispatch(ctx context.Context, key string) (bool, error) {
	key = NormalizeKey(key)
	if key == "" || hasModifier(key) {
		return false, nil
	}

	scope, ok := d.top()
	if !ok {
		return false, nil
	}

	typing := scope.Typing != nil && scope.Typing()
	for _, s := range scope.Shortcuts {
		if !s.matches(key) {
			continue
		}
		if typing && !s.WhileTyping {
			continue
		}
		if s.Condition != nil && !s.Condition() {
			continue
		}
		d.logger.Debug("shortcut", zap.String("scope", scope.Name), zap.String("key", key))
		return true, s.Handler(ctx)
	}
	return false, nil
}

// Shortcuts lists the shortcuts currently applicable in the active scope.
func (d *Dispatcher) Shortcuts() []Shortcut {
	scope, ok := d.top()
	if !ok {
		return nil
	}

	typing := scope.Typing != nil && scope.Typing()
	out := make([]Shortcut, 0, len(scope.Shortcuts))
	for _, s := range scope.Shortcuts {
		if typing && !s.WhileTyping {
			continue
		}
		if s.Condition != nil && !s.Condition() {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (d *Dispatcher) top() (Scope, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.scopes) == 0 {
		return Scope{}, false
	}
	return d.scopes[len(d.scopes)-1].scope, true
}

func (s Shortcut) matches(key string) bool {
	for _, k := range s.Keys {
		if k == key {
			return true
		}
	}
	return false
}

var keyAliases = map[string]string{
	"arrowup":    "up",
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",
	"escape":     "esc",
	"return":     "enter",
}

// NormalizeKey lower-cases a key name and maps browser-style names
// ("ArrowDown", "Escape") to the short form.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if alias, ok := keyAliases[key]; ok {
		return alias
	}
	return key
}

func hasModifier(key string) bool {
	for _, m := range []string{"ctrl+", "meta+", "alt+", "cmd+"} {
		if strings.HasPrefix(key, m) {
			return true
		}
	}
	return false
}
