package deeplink

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/outclash/outclash-go/internal/events"
	"github.com/outclash/outclash-go/internal/logs"
	"github.com/outclash/outclash-go/internal/profiles"
	"github.com/outclash/outclash-go/internal/storage"
)

// ProfileStore builds and persists profile items.
type ProfileStore interface {
	BuildItemFromURL(ctx context.Context, rawURL, name string) (*profiles.Item, error)
	AppendItem(item *profiles.Item) error
}

// Notifier emits user-visible notices.
type Notifier interface {
	Notice(status, message string)
}

// History records import outcomes. It is optional.
type History interface {
	RecordImport(rec *storage.ImportRecord) error
}

// Activation is a parsed activation string.
type Activation struct {
	Scheme string
	// Recognized is false for schemes this application does not handle.
	Recognized bool
	// URL is the decoded subscription url, empty if absent.
	URL  string
	Name string
}

// Parse unwraps and parses raw. A list-wrapped input such as `["..."]` loses
// two characters at each end first.
func Parse(raw string) (*Activation, error) {
	param := raw
	if strings.HasPrefix(param, "[") {
		if len(param) <= 4 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedInput, raw)
		}
		param = param[2 : len(param)-2]
	}

	u, err := url.Parse(param)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("%w: %q has no scheme", ErrInvalidURL, param)
	}

	act := &Activation{Scheme: u.Scheme, Recognized: IsRecognizedScheme(u.Scheme)}
	if !act.Recognized {
		return act, nil
	}

	// Later duplicates win.
	for _, p := range queryPairs(u.RawQuery) {
		switch p.key {
		case "name":
			act.Name = p.value
		case "url":
			act.URL = unescapeLenient(p.value, false)
		}
	}
	return act, nil
}

// Resolver turns activation strings into imported profiles.
type Resolver struct {
	store    ProfileStore
	notifier Notifier
	history  History
	logger   *zap.Logger
}

// NewResolver creates a resolver. history may be nil.
func NewResolver(store ProfileStore, notifier Notifier, history History, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:    store,
		notifier: notifier,
		history:  history,
		logger:   logs.For(logger, logs.TypeDeepLink),
	}
}

// Resolve parses raw and, for a recognised scheme, imports the referenced
// subscription. Links with other schemes are accepted and ignored.
func (r *Resolver) Resolve(ctx context.Context, raw string) error {
	r.logger.Info("Received deep link", zap.String("param", raw))

	act, err := Parse(raw)
	if err != nil {
		return err
	}
	if !act.Recognized {
		r.logger.Debug("Ignoring link with unhandled scheme", zap.String("scheme", act.Scheme))
		return nil
	}
	if act.URL == "" {
		r.notifier.Notice(events.StatusImportSubURLError, ErrMissingURLParameter.Error())
		return ErrMissingURLParameter
	}
	r.logger.Info("Decoded subscription url", zap.String("url", act.URL), zap.String("name", act.Name))

	item, err := r.importItem(ctx, act)
	rec := &storage.ImportRecord{URL: act.URL, Name: act.Name}
	if err != nil {
		r.logger.Error("Failed to import subscription", zap.String("url", act.URL), zap.Error(err))
		r.notifier.Notice(events.StatusImportSubURLError, err.Error())
		rec.Status = storage.ImportStatusError
		rec.Error = err.Error()
		r.record(rec)
		return fmt.Errorf("%w: %w", ErrImportFailed, err)
	}

	r.notifier.Notice(events.StatusImportSubURLOK, item.UID)
	rec.Status = storage.ImportStatusOK
	rec.UID = item.UID
	r.record(rec)
	return nil
}

func (r *Resolver) importItem(ctx context.Context, act *Activation) (*profiles.Item, error) {
	item, err := r.store.BuildItemFromURL(ctx, act.URL, act.Name)
	if err != nil {
		return nil, err
	}
	if err := r.store.AppendItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *Resolver) record(rec *storage.ImportRecord) {
	if r.history == nil {
		return
	}
	if err := r.history.RecordImport(rec); err != nil {
		r.logger.Warn("Failed to record import history", zap.Error(err))
	}
}
