package core

// service_commands.go is the admin command processor.
//
// An inbox entry moves from pending to done exactly once. Commands for the
// same entry are serialized through the EntryLocker, the entry is re-read
// under the lock, and stores only finalize rows that are still pending, so
// duplicate or racing admin requests fail with "No pending inbox entry
// found" instead of importing or deleting twice.
//
// Validation and conflict failures are *BadRequestError. Storage failures
// during an import are plain errors and leave the entry pending for retry.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/stationinbox/internal/logging"
	"github.com/JonMunkholm/stationinbox/internal/metrics"
)

type commandHandler func(s *Service, ctx context.Context, entry InboxEntry, cmd InboxCommand) error

func commandHandlers() map[Command]commandHandler {
	return map[Command]commandHandler{
		CommandReject:               (*Service).rejectEntry,
		CommandImportPhoto:          (*Service).importPhoto,
		CommandImportMissingStation: (*Service).importMissingStation,
		CommandActivateStation: func(s *Service, ctx context.Context, e InboxEntry, _ InboxCommand) error {
			return s.updateStationActive(ctx, e, true)
		},
		CommandDeactivateStation: func(s *Service, ctx context.Context, e InboxEntry, _ InboxCommand) error {
			return s.updateStationActive(ctx, e, false)
		},
		CommandDeleteStation:  (*Service).deleteStation,
		CommandDeletePhoto:    (*Service).deletePhoto,
		CommandMarkSolved:     (*Service).markSolved,
		CommandChangeName:     (*Service).changeName,
		CommandUpdateLocation: (*Service).updateLocation,
		CommandPhotoOutdated:  (*Service).markPhotoOutdated,
	}
}

// ProcessAdminCommand applies cmd to the pending entry cmd.ID on behalf of
// the administrator user.
func (s *Service) ProcessAdminCommand(ctx context.Context, user User, cmd InboxCommand) (err error) {
	start := time.Now()
	ctx = logging.ContextWithAttrs(ctx, "entry_id", cmd.ID, "command", string(cmd.Command), "admin", user.Name)
	log := logging.FromContext(ctx)

	defer func() {
		result := "ok"
		switch {
		case IsBadRequest(err):
			result = "bad_request"
			log.Warn("admin command refused", "reason", err.Error())
		case err != nil:
			result = "error"
			log.Error("admin command failed", "error", err)
		default:
			log.Info("admin command applied", "duration_ms", time.Since(start).Milliseconds())
		}
		metrics.CommandsTotal.WithLabelValues(string(cmd.Command), result).Inc()
		metrics.CommandDurationSeconds.WithLabelValues(string(cmd.Command)).Observe(time.Since(start).Seconds())
	}()

	handler, ok := s.handlers[cmd.Command]
	if !ok {
		return badRequest("Unexpected command value: %s", cmd.Command)
	}

	unlock, err := s.locker.Lock(ctx, cmd.ID)
	if err != nil {
		return fmt.Errorf("lock inbox entry %d: %w", cmd.ID, err)
	}
	defer unlock()

	entry, err := s.inbox.FindByID(ctx, cmd.ID)
	if err != nil {
		return fmt.Errorf("load inbox entry %d: %w", cmd.ID, err)
	}
	if entry == nil || entry.Done {
		return errNoPendingEntry()
	}

	log.Info("executing admin command", "kind", entry.Kind().String())
	return handler(s, ctx, *entry, cmd)
}

// markDone finalizes the entry without a reject reason.
func (s *Service) markDone(ctx context.Context, id int64) error {
	if err := s.inbox.Done(ctx, id); err != nil {
		if errors.Is(err, ErrNoPendingEntry) {
			return errNoPendingEntry()
		}
		return fmt.Errorf("mark inbox entry %d done: %w", id, err)
	}
	return nil
}

func (s *Service) rejectEntry(ctx context.Context, entry InboxEntry, cmd InboxCommand) error {
	if strings.TrimSpace(cmd.RejectReason) == "" {
		return badRequest("Reject reason is mandatory")
	}
	if err := s.inbox.Reject(ctx, entry.ID, cmd.RejectReason); err != nil {
		if errors.Is(err, ErrNoPendingEntry) {
			return errNoPendingEntry()
		}
		return fmt.Errorf("reject inbox entry %d: %w", entry.ID, err)
	}

	log := logging.FromContext(ctx)
	if !entry.IsPhotoUpload() {
		log.Info("problem report rejected", "reason", cmd.RejectReason)
		return nil
	}

	log.Info("upload rejected", "reason", cmd.RejectReason, "filename", entry.Filename())
	if err := s.storage.Reject(ctx, entry); err != nil {
		log.Warn("unable to move rejected file", "filename", entry.Filename(), "error", err)
	}
	return nil
}

func (s *Service) importPhoto(ctx context.Context, entry InboxEntry, cmd InboxCommand) error {
	if entry.IsProblemReport() {
		return badRequest("Can't import a problem report")
	}
	station, err := s.resolver.FindOrCreate(ctx, entry, cmd)
	if err != nil {
		return err
	}
	return s.importUpload(ctx, entry, cmd, station)
}

func (s *Service) importMissingStation(ctx context.Context, entry InboxEntry, cmd InboxCommand) error {
	cmd.CreateStation = true
	return s.importPhoto(ctx, entry, cmd)
}

// importUpload writes the photo row, moves the file into permanent storage
// and finalizes the entry. If the move or the finalize fails, the row change
// and the move are undone and the entry stays pending for a retry.
func (s *Service) importUpload(ctx context.Context, entry InboxEntry, cmd InboxCommand, station Station) error {
	log := logging.WithFields(ctx, "station", station.Key.String(), "filename", entry.Filename())

	if !cmd.IgnoreConflict {
		if station.HasPhoto() {
			return badRequest("Station already has a photo")
		}
		if s.conflicts.StationConflict(ctx, entry.ID, &station) {
			return badRequest("There is a conflict with another upload")
		}
	}

	photographer, err := s.users.FindByID(ctx, entry.PhotographerID)
	if err != nil {
		return fmt.Errorf("load photographer %d: %w", entry.PhotographerID, err)
	}
	if photographer == nil {
		return badRequest("Photographer %d not found", entry.PhotographerID)
	}
	country, err := s.countries.FindByCode(ctx, strings.ToLower(station.Key.Country))
	if err != nil {
		return fmt.Errorf("load country %q: %w", station.Key.Country, err)
	}
	if country == nil {
		return badRequest(reasonCountryNotFound)
	}

	photo := Photo{
		StationKey:       station.Key,
		URLPath:          PhotoURLPath(station.Key, entry.Extension),
		PhotographerID:   photographer.ID,
		PhotographerName: photographer.Name,
		License:          LicenseFor(*photographer, *country),
		CreatedAt:        time.Now().UTC(),
		Primary:          true,
	}
	previous, hadPhoto := station.PrimaryPhoto()
	if hadPhoto {
		photo.ID = previous.ID
		if err := s.photos.Update(ctx, photo); err != nil {
			return fmt.Errorf("update photo of %s: %w", station.Key, err)
		}
	} else {
		id, err := s.photos.Insert(ctx, photo)
		if err != nil {
			return fmt.Errorf("insert photo for %s: %w", station.Key, err)
		}
		photo.ID = id
	}

	if err := s.storage.ImportPhoto(ctx, entry, station); err != nil {
		s.revertPhoto(ctx, station.Key, previous, hadPhoto)
		return fmt.Errorf("import upload %d: moving file: %w", entry.ID, err)
	}

	if err := s.markDone(ctx, entry.ID); err != nil {
		s.revertPhoto(ctx, station.Key, previous, hadPhoto)
		if uerr := s.storage.UnimportPhoto(ctx, entry, station); uerr != nil {
			log.Error("returning upload to the inbox after failed finalize", "error", uerr)
		}
		return err
	}
	log.Info("upload accepted", "photo_id", photo.ID, "license", photo.License)

	fresh, err := s.stations.FindByKey(ctx, station.Key)
	if err != nil || fresh == nil {
		log.Warn("reloading imported station failed, announcing stale snapshot", "error", err)
		station.Photos = []Photo{photo}
		fresh = &station
	}
	s.social.TootNewPhoto(ctx, *fresh, entry)
	return nil
}

func (s *Service) revertPhoto(ctx context.Context, key StationKey, previous Photo, hadPhoto bool) {
	var err error
	if hadPhoto {
		err = s.photos.Update(ctx, previous)
	} else {
		err = s.photos.Delete(ctx, key)
	}
	if err != nil {
		logging.FromContext(ctx).Error("reverting photo row after failed import", "station", key.String(), "error", err)
	}
}

func (s *Service) updateStationActive(ctx context.Context, entry InboxEntry, active bool) error {
	station, err := s.resolver.MustFind(ctx, entry.StationKey())
	if err != nil {
		return err
	}
	if err := s.stations.UpdateActive(ctx, station.Key, active); err != nil {
		return fmt.Errorf("update active flag of %s: %w", station.Key, err)
	}
	logging.FromContext(ctx).Info("station active flag changed", "station", station.Key.String(), "active", active)
	return s.markDone(ctx, entry.ID)
}

func (s *Service) deleteStation(ctx context.Context, entry InboxEntry, _ InboxCommand) error {
	station, err := s.resolver.MustFind(ctx, entry.StationKey())
	if err != nil {
		return err
	}
	if err := s.photos.Delete(ctx, station.Key); err != nil {
		return fmt.Errorf("delete photos of %s: %w", station.Key, err)
	}
	if err := s.stations.Delete(ctx, station.Key); err != nil {
		return fmt.Errorf("delete station %s: %w", station.Key, err)
	}
	logging.FromContext(ctx).Info("station deleted", "station", station.Key.String())
	return s.markDone(ctx, entry.ID)
}

func (s *Service) deletePhoto(ctx context.Context, entry InboxEntry, _ InboxCommand) error {
	station, err := s.resolver.MustFind(ctx, entry.StationKey())
	if err != nil {
		return err
	}
	if err := s.photos.Delete(ctx, station.Key); err != nil {
		return fmt.Errorf("delete photos of %s: %w", station.Key, err)
	}
	logging.FromContext(ctx).Info("station photo deleted", "station", station.Key.String())
	return s.markDone(ctx, entry.ID)
}

func (s *Service) markSolved(ctx context.Context, entry InboxEntry, _ InboxCommand) error {
	if _, err := s.resolver.MustFind(ctx, entry.StationKey()); err != nil {
		return err
	}
	return s.markDone(ctx, entry.ID)
}

func (s *Service) changeName(ctx context.Context, entry InboxEntry, cmd InboxCommand) error {
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return badRequest("Empty new title: %s", cmd.Title)
	}
	station, err := s.resolver.MustFind(ctx, entry.StationKey())
	if err != nil {
		return err
	}
	if err := s.stations.ChangeTitle(ctx, station.Key, title); err != nil {
		return fmt.Errorf("change title of %s: %w", station.Key, err)
	}
	logging.FromContext(ctx).Info("station renamed", "station", station.Key.String(), "title", title)
	return s.markDone(ctx, entry.ID)
}

func (s *Service) updateLocation(ctx context.Context, entry InboxEntry, cmd InboxCommand) error {
	coords := entry.Coordinates
	if cmd.HasCoordinates() {
		coords = cmd.Coordinates
	}
	if coords == nil || !coords.IsValid() {
		return badRequest("Can't update location, coordinates: %s", describeCoordinates(coords))
	}
	station, err := s.resolver.MustFind(ctx, entry.StationKey())
	if err != nil {
		return err
	}
	if err := s.stations.UpdateLocation(ctx, station.Key, *coords); err != nil {
		return fmt.Errorf("update location of %s: %w", station.Key, err)
	}
	logging.FromContext(ctx).Info("station moved", "station", station.Key.String(), "coordinates", coords.String())
	return s.markDone(ctx, entry.ID)
}

func (s *Service) markPhotoOutdated(ctx context.Context, entry InboxEntry, _ InboxCommand) error {
	station, err := s.resolver.MustFind(ctx, entry.StationKey())
	if err != nil {
		return err
	}
	if !station.HasPhoto() {
		return badRequest("Station has no photo")
	}
	if err := s.photos.UpdateOutdated(ctx, station.Key); err != nil {
		return fmt.Errorf("mark photo of %s outdated: %w", station.Key, err)
	}
	return s.markDone(ctx, entry.ID)
}

func describeCoordinates(c *Coordinates) string {
	if c == nil {
		return "none"
	}
	return c.String()
}
