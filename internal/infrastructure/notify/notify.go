// Package notify turns storefront events into localized toast notifications.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/biyariq/storefront/internal/infrastructure/logger"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Level is the severity of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is one toast
type Notification struct {
	Level   Level     `json:"level"`
	Key     string    `json:"key"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Localized is an argument with a rendering per language, such as a
// bilingual product name. lang is a base language code ("ar", "en").
type Localized interface {
	In(lang string) string
}

// Notifier receives notifications from the storefront engines
type Notifier interface {
	Notify(ctx context.Context, level Level, key string, args ...any)
}

// Inbox is a bounded per-session notification buffer. When full, the
// oldest notification is dropped.
type Inbox struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
	lang     language.Tag
	cat      catalog.Catalog
	logger   *zap.Logger
	now      func() time.Time
}

// NewInbox creates an inbox rendering messages from cat in lang
func NewInbox(cat catalog.Catalog, lang language.Tag, capacity int, logger *zap.Logger) *Inbox {
	if capacity <= 0 {
		capacity = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{
		capacity: capacity,
		lang:     lang,
		cat:      cat,
		logger:   logger,
		now:      time.Now,
	}
}

// Notify implements Notifier
func (in *Inbox) Notify(ctx context.Context, level Level, key string, args ...any) {
	in.mu.Lock()
	defer in.mu.Unlock()

	n := Notification{
		Level:   level,
		Key:     key,
		Message: message.NewPrinter(in.lang, message.Catalog(in.cat)).Sprintf(key, localize(in.lang, args)...),
		At:      in.now(),
	}
	if len(in.items) >= in.capacity {
		in.items = append(in.items[:0], in.items[1:]...)
	}
	in.items = append(in.items, n)

	logger.Enrich(ctx, in.logger).Debug("Notification",
		zap.String("level", string(level)),
		zap.String("key", key),
		zap.String("message", n.Message),
	)
}

func localize(lang language.Tag, args []any) []any {
	base, _ := lang.Base()
	out := make([]any, len(args))
	for i, a := range args {
		if l, ok := a.(Localized); ok {
			out[i] = l.In(base.String())
			continue
		}
		out[i] = a
	}
	return out
}

// SetLanguage changes the language of subsequent notifications
func (in *Inbox) SetLanguage(lang language.Tag) {
	in.mu.Lock()
	in.lang = lang
	in.mu.Unlock()
}

// Language returns the current language
func (in *Inbox) Language() language.Tag {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.lang
}

// Drain returns pending notifications oldest first and empties the inbox
func (in *Inbox) Drain() []Notification {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := in.items
	in.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Len returns the number of pending notifications
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.items)
}

// Discard is a Notifier that drops everything
type Discard struct{}

// Notify implements Notifier
func (Discard) Notify(context.Context, Level, string, ...any) {}
