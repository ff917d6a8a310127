// Package catalog maintains the conference catalog and the active conference.
//
// The catalog is built from two optional JSON sources, read in a fixed
// order: the bundled conference data and a user-writable file. Loading never
// fails; unavailable or malformed sources contribute zero conferences and
// are described in the returned LoadReport.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/robertmeta/kongress-cli/log"
	"github.com/robertmeta/kongress-cli/model"
)

// Settings keys and values used by the resolver.
const (
	KeyLoadPredefined      = "general.loadPredefined"
	KeyDefaultConferenceID = "general.defaultConferenceId"

	LoadPredefinedYes = "yes"
)

// Settings is the persisted key/value configuration. Get returns an empty
// string for unset keys. Set is expected to persist immediately.
type Settings interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Notifier receives change signals. Subscribers re-query the Resolver.
type Notifier interface {
	CatalogChanged()
	DefaultConferenceIDChanged()
	ActiveConferenceChanged()
}

// NopNotifier ignores all signals.
type NopNotifier struct{}

func (NopNotifier) CatalogChanged()             {}
func (NopNotifier) DefaultConferenceIDChanged() {}
func (NopNotifier) ActiveConferenceChanged()    {}

// SourceStatus describes what a source contributed to the catalog.
type SourceStatus string

const (
	SourceLoaded     SourceStatus = "loaded"
	SourceDisabled   SourceStatus = "disabled"
	SourceMissing    SourceStatus = "missing"
	SourceEmpty      SourceStatus = "empty"
	SourceMalformed  SourceStatus = "malformed"
	SourceUnreadable SourceStatus = "unreadable"
)

// SourceReport is the outcome of reading one source.
type SourceReport struct {
	Name   string       `json:"name"`
	Status SourceStatus `json:"status"`
	Count  int          `json:"count"`
	Error  string       `json:"error,omitempty"`
}

// LoadReport summarizes a catalog load.
type LoadReport struct {
	Sources []SourceReport `json:"sources"`
	Total   int            `json:"total"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNotifier sets the receiver of change signals.
func WithNotifier(n Notifier) Option {
	return func(r *Resolver) {
		r.notifier = n
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// Resolver owns the conference catalog and the active conference snapshot.
// It is safe for concurrent use.
type Resolver struct {
	settings Settings
	bundled  Source
	user     Source
	notifier Notifier
	log      logrus.FieldLogger

	mu          sync.Mutex
	conferences []model.Conference
	active      model.Conference
}

// NewResolver creates a Resolver. bundled and user may be nil.
func NewResolver(settings Settings, bundled, user Source, opts ...Option) *Resolver {
	r := &Resolver{
		settings: settings,
		bundled:  bundled,
		user:     user,
		notifier: NopNotifier{},
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start loads the catalog and selects the persisted default conference.
func (r *Resolver) Start() LoadReport {
	report := r.LoadCatalog()
	r.SelectActive(r.DefaultConferenceID())
	return report
}

// LoadCatalog rebuilds the catalog: bundled conferences first (unless the
// user opted out), then the user's conferences, each in file order.
func (r *Resolver) LoadCatalog() LoadReport {
	var (
		report      LoadReport
		conferences []model.Conference
	)

	if r.loadPredefined() {
		loaded, sr := r.readSource(r.bundled)
		conferences = append(conferences, loaded...)
		report.Sources = append(report.Sources, sr)
	} else if r.bundled != nil {
		report.Sources = append(report.Sources, SourceReport{Name: r.bundled.Name(), Status: SourceDisabled})
	}

	loaded, sr := r.readSource(r.user)
	conferences = append(conferences, loaded...)
	report.Sources = append(report.Sources, sr)
	report.Total = len(conferences)

	r.mu.Lock()
	r.conferences = conferences
	r.mu.Unlock()

	r.log.WithField(log.FldCount, report.Total).Debug("Conference catalog loaded")
	r.notifier.CatalogChanged()

	return report
}

// loadPredefined reads the opt-out flag, turning it on at first run.
func (r *Resolver) loadPredefined() bool {
	value, err := r.settings.Get(KeyLoadPredefined)
	if err != nil {
		r.log.WithError(err).Warn("Failed to read the predefined conferences flag")
	}

	switch value {
	case "":
		if err := r.settings.Set(KeyLoadPredefined, LoadPredefinedYes); err != nil {
			r.log.WithError(err).Warn("Failed to persist the predefined conferences flag")
		}
		return true
	case LoadPredefinedYes:
		return true
	default:
		return false
	}
}

func (r *Resolver) readSource(src Source) ([]model.Conference, SourceReport) {
	if src == nil {
		return nil, SourceReport{Status: SourceMissing}
	}

	report := SourceReport{Name: src.Name()}
	logger := r.log.WithField(log.FldSource, src.Name())

	f, err := src.Open()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			report.Status = SourceMissing
			logger.Debug("Catalog source does not exist")
		} else {
			report.Status = SourceUnreadable
			report.Error = err.Error()
			logger.WithError(err).Warn("Failed to open catalog source")
		}
		return nil, report
	}
	defer f.Close()

	conferences, err := Decode(f)
	if err != nil {
		report.Error = err.Error()
		switch {
		case errors.Is(err, ErrNotArray):
			report.Status = SourceMalformed
		default:
			report.Status = SourceUnreadable
		}
		logger.WithError(err).Warn("Ignoring catalog source")
		return nil, report
	}

	report.Count = len(conferences)
	report.Status = SourceLoaded
	if report.Count == 0 {
		report.Status = SourceEmpty
	}
	logger.WithField(log.FldCount, report.Count).Debug("Catalog source read")

	return conferences, report
}

// Conferences returns a copy of the catalog.
func (r *Resolver) Conferences() []model.Conference {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Conference, 0, len(r.conferences))
	for _, c := range r.conferences {
		out = append(out, c.Clone())
	}
	return out
}

// Conference returns the conference with the given ID. With duplicate IDs
// the last one in catalog order is returned, as with SelectActive.
func (r *Resolver) Conference(id string) (model.Conference, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		found model.Conference
		ok    bool
	)
	for _, c := range r.conferences {
		if c.ID == id {
			found, ok = c.Clone(), true
		}
	}
	return found, ok
}

// DefaultConferenceID returns the persisted default, or "" if none was chosen.
func (r *Resolver) DefaultConferenceID() string {
	id, err := r.settings.Get(KeyDefaultConferenceID)
	if err != nil {
		r.log.WithError(err).Warn("Failed to read the default conference")
		return ""
	}
	return id
}

// SetDefaultConferenceID persists id as the default and makes it active.
func (r *Resolver) SetDefaultConferenceID(id string) {
	if err := r.settings.Set(KeyDefaultConferenceID, id); err != nil {
		r.log.WithError(err).WithField(log.FldConference, id).Warn("Failed to persist the default conference")
	}
	r.notifier.DefaultConferenceIDChanged()
	r.SelectActive(id)
}

// SelectActive makes the conference with the given ID active.
//
// An empty ID does nothing. Otherwise the active snapshot is replaced by the
// last matching catalog entry and subscribers are notified once, even when
// nothing matched and the snapshot was kept.
func (r *Resolver) SelectActive(id string) {
	if id == "" {
		return
	}

	r.mu.Lock()
	matched := false
	for _, c := range r.conferences {
		if c.ID == id {
			r.active = c.Clone()
			matched = true
		}
	}
	r.mu.Unlock()

	if !matched {
		r.log.WithField(log.FldConference, id).Info("Conference not found in catalog; keeping active conference")
	}
	r.notifier.ActiveConferenceChanged()
}

// Active returns a copy of the active conference snapshot.
func (r *Resolver) Active() model.Conference {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.Clone()
}

// AddConference appends c to the user catalog and reloads.
func (r *Resolver) AddConference(c model.Conference) (LoadReport, error) {
	w, ok := r.user.(WritableSource)
	if !ok || w == nil {
		return LoadReport{}, errors.New("user catalog is not writable")
	}
	if err := w.Append(c); err != nil {
		return LoadReport{}, fmt.Errorf("failed to save conference %s: %w", c.ID, err)
	}
	r.log.WithField(log.FldConference, c.ID).Info("Conference saved to the user catalog")
	return r.LoadCatalog(), nil
}
