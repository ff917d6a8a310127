package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/robertmeta/kongress-cli/catalog"
	"github.com/robertmeta/kongress-cli/config"
	"github.com/robertmeta/kongress-cli/favorites"
	"github.com/robertmeta/kongress-cli/ics"
	"github.com/robertmeta/kongress-cli/log"
	"github.com/robertmeta/kongress-cli/model"
	"github.com/robertmeta/kongress-cli/store"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

const version = "0.1.0"

var conferenceFlag = &cli.StringFlag{
	Name:    "conference",
	Aliases: []string{"c"},
	Usage:   "Conference ID (default: the active conference)",
}

// favoriteFlags describe the candidate event of the favorite command.
var favoriteFlags = []cli.Flag{
	conferenceFlag,
	&cli.StringFlag{Name: "ics", Usage: "Schedule file to take the talk from"},
	&cli.StringFlag{Name: "uid", Usage: "Talk UID (new favorites get a fresh one when empty)"},
	&cli.StringFlag{Name: "summary", Aliases: []string{"s"}, Usage: "Title"},
	&cli.StringFlag{Name: "start", Usage: "Start (RFC 3339 or YYYY-MM-DD HH:MM in the conference zone)"},
	&cli.StringFlag{Name: "end", Usage: "End (RFC 3339 or YYYY-MM-DD HH:MM in the conference zone)"},
	&cli.StringFlag{Name: "description", Usage: "Description"},
	&cli.StringFlag{Name: "categories", Usage: "Categories"},
	&cli.StringFlag{Name: "location", Usage: "Room or location"},
	&cli.StringFlag{Name: "url", Usage: "Talk URL"},
}

func main() {
	app := &cli.App{
		Name:    "kongress",
		Usage:   "A scriptable conference companion",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   config.DefaultPath(),
				Usage:   "Configuration file path",
				EnvVars: []string{"KONGRESS_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory (overrides the configuration file)",
				EnvVars: []string{"KONGRESS_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "conferences",
				Usage:  "List the conference catalog",
				Action: listConferences,
			},
			{
				Name:      "default",
				Usage:     "Show or set the default conference",
				ArgsUsage: "[conference-id]",
				Action:    defaultConference,
			},
			{
				Name:      "active",
				Usage:     "Show the active conference, optionally selecting another one",
				ArgsUsage: "[conference-id]",
				Action:    activeConference,
			},
			{
				Name:  "add-conference",
				Usage: "Add a conference to the user catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Conference ID", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Display name"},
					&cli.StringFlag{Name: "description", Usage: "Description"},
					&cli.StringFlag{Name: "ical-url", Usage: "Schedule feed URL"},
					&cli.StringSliceFlag{Name: "day", Usage: "Conference day (YYYY-MM-DD), repeatable"},
					&cli.StringFlag{Name: "timezone", Usage: "IANA time zone ID"},
					&cli.StringFlag{Name: "venue-image", Usage: "Venue image URL"},
					&cli.StringFlag{Name: "venue-lat", Usage: "Venue latitude"},
					&cli.StringFlag{Name: "venue-lon", Usage: "Venue longitude"},
					&cli.StringFlag{Name: "venue-osm", Usage: "Venue OpenStreetMap URL"},
				},
				Action: addConference,
			},
			{
				Name:      "talks",
				Usage:     "List the talks of a conference schedule",
				ArgsUsage: "<ics-file>",
				Action:    listTalks,
			},
			{
				Name:   "favorite",
				Usage:  "Add or edit a favorite",
				Flags:  favoriteFlags,
				Action: addFavorite,
			},
			{
				Name:      "unfavorite",
				Usage:     "Remove a favorite",
				ArgsUsage: "<uid>",
				Flags:     []cli.Flag{conferenceFlag},
				Action:    removeFavorite,
			},
			{
				Name:  "favorites",
				Usage: "List favorites",
				Flags: []cli.Flag{
					conferenceFlag,
					&cli.StringFlag{
						Name:    "day",
						Aliases: []string{"d"},
						Usage:   "Show favorites on a day (YYYY-MM-DD, conference zone)",
					},
					&cli.StringFlag{
						Name:    "within",
						Aliases: []string{"w"},
						Usage:   "Show favorites within duration from now (e.g., 12h, 7d, 2w)",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum number of favorites to return",
					},
					&cli.IntFlag{
						Name:    "offset",
						Aliases: []string{"o"},
						Value:   0,
						Usage:   "Offset for pagination",
					},
				},
				Action: listFavorites,
			},
			{
				Name:  "export",
				Usage: "Export favorites to an iCalendar file",
				Flags: []cli.Flag{
					conferenceFlag,
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: stdout)",
					},
				},
				Action: exportFavorites,
			},
			{
				Name:      "settings",
				Usage:     "Show all settings, or set one",
				ArgsUsage: "[key value]",
				Action:    settings,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

// session is the composition root shared by all commands.
type session struct {
	cfg      *config.Config
	store    *store.Store
	resolver *catalog.Resolver
	engine   *favorites.Engine
	report   catalog.LoadReport
}

// notifier logs change signals; the CLI re-queries after every command.
type notifier struct {
	log logrus.FieldLogger
}

func (n notifier) CatalogChanged() {
	n.log.Debug("Conference catalog changed")
}

func (n notifier) DefaultConferenceIDChanged() {
	n.log.Debug("Default conference changed")
}

func (n notifier) ActiveConferenceChanged() {
	n.log.Debug("Active conference changed")
}

func (n notifier) EventsChanged(calendarID string) {
	n.log.WithField(log.FldCalendar, calendarID).Debug("Favorites changed")
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

func bundledSource(cfg *config.Config) catalog.Source {
	if cfg.BundledCatalog == "" {
		return catalog.Bundled()
	}
	return &catalog.FSSource{
		FS:   os.DirFS(filepath.Dir(cfg.BundledCatalog)),
		Path: filepath.Base(cfg.BundledCatalog),
	}
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	logger := log.Setup(cfg.LogLevel)
	logger.WithField(log.FldVersion, version).Debug("Starting kongress")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.SetLogger(logger)

	n := notifier{log: logger}
	resolver := catalog.NewResolver(
		s.Settings(),
		bundledSource(cfg),
		catalog.NewFileSource(cfg.UserCatalogPath()),
		catalog.WithNotifier(n),
		catalog.WithLogger(logger),
	)

	a := &session{
		cfg:      cfg,
		store:    s,
		resolver: resolver,
		engine:   favorites.NewEngine(s, n, favorites.WithLogger(logger)),
	}
	a.report = resolver.Start()
	return a, nil
}

func (a *session) Close() error {
	return a.store.Close()
}

// conference resolves the --conference flag, falling back to the active
// conference.
func (a *session) conference(c *cli.Context) (model.Conference, bool) {
	if id := c.String("conference"); id != "" {
		return a.resolver.Conference(id)
	}
	active := a.resolver.Active()
	return active, active.ID != ""
}

// calendar opens the favorites calendar of the conference. The calendar is
// nil when no conference is selected.
func (a *session) calendar(c *cli.Context) (model.Conference, *store.Calendar, error) {
	conf, ok := a.conference(c)
	if !ok {
		return conf, nil, nil
	}
	cal, err := a.store.OpenCalendar(conf.ID, conf.Location())
	if err != nil {
		return conf, nil, err
	}
	return conf, cal, nil
}

// engineCalendar keeps a missing calendar a nil interface.
func engineCalendar(cal *store.Calendar) favorites.Calendar {
	if cal == nil {
		return nil
	}
	return cal
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func listConferences(c *cli.Context) error {
	a, err := openSession(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer a.Close()

	conferences := a.resolver.Conferences()
	return outputJSON(map[string]interface{}{
		"count":       len(conferences),
		"default":     a.resolver.DefaultConferenceID(),
		"active":      a.resolver.Active().ID,
		"sources":     a.report.Sources,
		"conferences": conferences,
	})
}

func defaultConference(c *cli.Context) error {
	a, err := openSession(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer a.Close()

	if c.NArg() > 0 {
		id := c.Args().Get(0)
		if _, ok := a.resolver.Conference(id); !ok {
			return cli.Exit(fmt.Sprintf("Unknown conference: %s", id), ExitDataError)
		}
		a.resolver.SetDefaultConferenceID(id)
	}

	return outputJSON(map[string]interface{}{
		"default": a.resolver.DefaultConferenceID(),
		"active":  a.resolver.Active(),
	})
}

func activeConference(c *cli.Context) error {
	a, err := openSession(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer a.Close()

	requested := c.Args().Get(0)
	a.resolver.SelectActive(requested)
	active := a.resolver.Active()

	return outputJSON(map[string]interface{}{
		"found":      requested == "" || active.ID == requested,
		"conference": active,
	})
}

func conferenceFromFlags(c *cli.Context) model.Conference {
	return model.Conference{
		ID:             c.String("id"),
		Name:           c.String("name"),
		Description:    c.String("description"),
		ICalURL:        c.String("ical-url"),
		Days:           c.StringSlice("day"),
		VenueImageURL:  c.String("venue-image"),
		VenueLatitude:  c.String("venue-lat"),
		VenueLongitude: c.String("venue-lon"),
		VenueOsmURL:    c.String("venue-osm"),
		TimeZoneID:     c.String("timezone"),
	}
}

func addConference(c *cli.Context) error {
	conf := conferenceFromFlags(c)
	if err := conf.Validate(); err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}
	if conf.TimeZoneID != "" {
		if _, err := time.LoadLocation(conf.TimeZoneID); err != nil {
			return cli.Exit(fmt.Sprintf("Invalid time zone: %v", err), ExitUsageError)
		}
	}

	a, err := openSession(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer a.Close()

	report, err := a.resolver.AddConference(conf)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success":    true,
		"conference": conf,
		"sources":    report.Sources,
		"total":      report.Total,
	})
}

func readTalks(path string) ([]model.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schedule: %w", err)
	}
	defer file.Close()

	return ics.Parse(file)
}

func listTalks(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: kongress talks <ics-file>", ExitUsageError)
	}

	talks, err := readTalks(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"count": len(talks),
		"talks": talks,
	})
}

// parseTime accepts RFC 3339 or a wall-clock time in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use RFC 3339 or YYYY-MM-DD HH:MM)", s)
}

// candidateFromFlags builds the event to favorite. A talk taken from --ics is
// the base; explicit flags override its fields.
func candidateFromFlags(c *cli.Context, loc *time.Location) (model.Event, error) {
	var candidate model.Event

	if path := c.String("ics"); path != "" {
		uid := c.String("uid")
		if uid == "" {
			return candidate, errors.New("--uid is required with --ics")
		}
		talks, err := readTalks(path)
		if err != nil {
			return candidate, err
		}
		talk, ok := ics.Find(talks, uid)
		if !ok {
			return candidate, fmt.Errorf("talk %s not found in %s", uid, path)
		}
		candidate = talk
	} else {
		candidate.UID = c.String("uid")
	}

	for name, field := range map[string]*string{
		"summary":     &candidate.Summary,
		"description": &candidate.Description,
		"categories":  &candidate.Categories,
		"location":    &candidate.Location,
		"url":         &candidate.URL,
	} {
		if c.IsSet(name) {
			*field = c.String(name)
		}
	}

	for name, field := range map[string]*time.Time{
		"start": &candidate.Start,
		"end":   &candidate.End,
	} {
		if !c.IsSet(name) {
			continue
		}
		t, err := parseTime(c.String(name), loc)
		if err != nil {
			return candidate, err
		}
		*field = t
	}

	if strings.TrimSpace(candidate.Summary) == "" {
		return candidate, errors.New("a summary is required")
	}
	return candidate, nil
}

func addFavorite(c *cli.Context) error {
	a, err := openSession(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer a.Close()

	conf, cal, err := a.calendar(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open favorites: %v", err), ExitDataError)
	}

	candidate, err := candidateFromFlags(c, conf.Location())
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	res := a.engine.AddEdit(engineCalendar(cal), candidate)
	if err := outputJSON(map[string]interface{}{
		"conference": conf.ID,
		"result":     res,
	}); err != nil {
		return err
	}

	if res.Status == favorites.StatusNoCalendar {
		return cli.Exit("", ExitDataError)
	}
	return nil
}

func removeFavorite(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: kongress unfavorite <uid>", ExitUsageError)
	}
	uid := c.Args().Get(0)

	a, err := openSession(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer a.Close()

	conf, cal, err := a.calendar(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open favorites: %v", err), ExitDataError)
	}

	removed := false
	if cal != nil {
		_, removed = cal.EventByUID(uid)
	}
	a.engine.Remove(engineCalendar(cal), uid)

	return outputJSON(map[string]interface{}{
		"success":    cal != nil,
		"conference": conf.ID,
		"uid":        uid,
		"removed":    removed,
	})
}

func listFavorites(c *cli.Context) error {
	a, err := openSession(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer a.Close()

	conf, ok := a.conference(c)
	if !ok {
		return cli.Exit("No conference selected", ExitDataError)
	}

	opts, err := store.BuildQueryOptions(
		conf.ID,
		c.String("day"),
		c.String("within"),
		conf.Location(),
		c.Int("limit"),
		c.Int("offset"),
		time.Now(),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid query options: %v", err), ExitUsageError)
	}

	events, err := a.store.ListEvents(opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get favorites: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"conference": conf.ID,
		"count":      len(events),
		"limit":      opts.Limit,
		"offset":     opts.Offset,
		"favorites":  events,
	})
}

func exportFavorites(c *cli.Context) error {
	a, err := openSession(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer a.Close()

	conf, cal, err := a.calendar(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open favorites: %v", err), ExitDataError)
	}
	if cal == nil {
		return cli.Exit("No conference selected", ExitDataError)
	}
	events := cal.Events()

	outputPath := c.String("output")
	var writer io.Writer

	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to create output file: %v", err), ExitDataError)
		}
		defer file.Close()
		writer = file
	}

	name := conf.Name
	if name == "" {
		name = conf.ID
	}
	if err := ics.Generate(writer, events, ics.ExportOptions{Name: name, TimeZone: conf.TimeZoneID}); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to export favorites: %v", err), ExitDataError)
	}

	if outputPath != "" {
		return outputJSON(map[string]interface{}{
			"success":    true,
			"conference": conf.ID,
			"file":       outputPath,
			"count":      len(events),
		})
	}

	return nil
}

func settings(c *cli.Context) error {
	if c.NArg() == 1 || c.NArg() > 2 {
		return cli.Exit("Usage: kongress settings [key value]", ExitUsageError)
	}

	a, err := openSession(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer a.Close()

	if c.NArg() == 2 {
		key, value := c.Args().Get(0), c.Args().Get(1)
		if err := a.store.Settings().Set(key, value); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to save setting: %v", err), ExitDataError)
		}
	}

	all, err := a.store.Settings().GetAll()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get settings: %v", err), ExitDataError)
	}

	return outputJSON(all)
}
