package core

import (
	"context"
	"errors"
	"strings"
)

// Deps are the collaborators the Service works against.
// Monitor, Social, Mailer and Locker are optional.
type Deps struct {
	Inbox     InboxStore
	Stations  StationStore
	Photos    PhotoStore
	Users     UserStore
	Countries CountryStore
	Storage   PhotoStorage
	Monitor   Monitor
	Social    SocialBot
	Mailer    Mailer
	Locker    EntryLocker
}

// Options tune the moderation behavior.
type Options struct {
	// InboxBaseURL prefixes the URLs of uploaded files.
	InboxBaseURL string
	// NearbyRadiusKm is the proximity radius for coordinate conflicts.
	NearbyRadiusKm float64
}

// Service is the inbox moderation engine: submission intake, the admin
// command processor and the state queries.
type Service struct {
	inbox     InboxStore
	stations  StationStore
	photos    PhotoStore
	users     UserStore
	countries CountryStore
	storage   PhotoStorage
	monitor   Monitor
	social    SocialBot
	mailer    Mailer
	locker    EntryLocker

	conflicts *ConflictDetector
	resolver  *StationResolver
	handlers  map[Command]commandHandler

	inboxBaseURL string
}

// NewService wires a Service. All stores and the storage are required.
func NewService(deps Deps, opts Options) (*Service, error) {
	var missing []string
	if deps.Inbox == nil {
		missing = append(missing, "inbox store")
	}
	if deps.Stations == nil {
		missing = append(missing, "station store")
	}
	if deps.Photos == nil {
		missing = append(missing, "photo store")
	}
	if deps.Users == nil {
		missing = append(missing, "user store")
	}
	if deps.Countries == nil {
		missing = append(missing, "country store")
	}
	if deps.Storage == nil {
		missing = append(missing, "photo storage")
	}
	if len(missing) > 0 {
		return nil, errors.New("core: missing dependencies: " + strings.Join(missing, ", "))
	}

	s := &Service{
		inbox:        deps.Inbox,
		stations:     deps.Stations,
		photos:       deps.Photos,
		users:        deps.Users,
		countries:    deps.Countries,
		storage:      deps.Storage,
		monitor:      deps.Monitor,
		social:       deps.Social,
		mailer:       deps.Mailer,
		locker:       deps.Locker,
		inboxBaseURL: strings.TrimRight(opts.InboxBaseURL, "/"),
	}
	if s.monitor == nil {
		s.monitor = nopMonitor{}
	}
	if s.social == nil {
		s.social = nopSocialBot{}
	}
	if s.locker == nil {
		s.locker = NewKeyedLocker()
	}

	s.conflicts = NewConflictDetector(deps.Inbox, deps.Stations, opts.NearbyRadiusKm)
	s.resolver = NewStationResolver(deps.Stations, deps.Countries, s.conflicts)
	s.handlers = commandHandlers()

	return s, nil
}

// inboxURL returns where the entry's file can currently be fetched.
func (s *Service) inboxURL(entry InboxEntry, processed bool) string {
	filename := entry.Filename()
	if filename == "" {
		return ""
	}
	switch {
	case entry.IsRejected():
		return s.inboxBaseURL + "/rejected/" + filename
	case entry.Done:
		return s.inboxBaseURL + "/done/" + filename
	case processed:
		return s.inboxBaseURL + "/processed/" + filename
	default:
		return s.inboxBaseURL + "/" + filename
	}
}

type nopMonitor struct{}

func (nopMonitor) SendMessage(context.Context, MonitorMessage) {}

type nopSocialBot struct{}

func (nopSocialBot) TootNewPhoto(context.Context, Station, InboxEntry) {}
