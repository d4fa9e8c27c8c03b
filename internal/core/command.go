package core

import "strings"

// Command is an administrator action on a pending inbox entry.
type Command string

const (
	CommandReject               Command = "REJECT"
	CommandImportPhoto          Command = "IMPORT_PHOTO"
	CommandImportMissingStation Command = "IMPORT_MISSING_STATION"
	CommandActivateStation      Command = "ACTIVATE_STATION"
	CommandDeactivateStation    Command = "DEACTIVATE_STATION"
	CommandDeleteStation        Command = "DELETE_STATION"
	CommandDeletePhoto          Command = "DELETE_PHOTO"
	CommandMarkSolved           Command = "MARK_SOLVED"
	CommandChangeName           Command = "CHANGE_NAME"
	CommandUpdateLocation       Command = "UPDATE_LOCATION"
	CommandPhotoOutdated        Command = "PHOTO_OUTDATED"
)

// AllCommands lists every command the processor accepts.
var AllCommands = []Command{
	CommandReject,
	CommandImportPhoto,
	CommandImportMissingStation,
	CommandActivateStation,
	CommandDeactivateStation,
	CommandDeleteStation,
	CommandDeletePhoto,
	CommandMarkSolved,
	CommandChangeName,
	CommandUpdateLocation,
	CommandPhotoOutdated,
}

// ParseCommand normalizes a client-supplied command name. Unknown names are
// returned unchanged and rejected by the processor.
func ParseCommand(s string) Command {
	c := Command(strings.ToUpper(strings.TrimSpace(s)))
	if c == "IMPORT" {
		return CommandImportPhoto
	}
	return c
}

// InboxCommand is an administrator's decision on the entry with ID.
// Station fields override the entry's values when a station is created.
type InboxCommand struct {
	ID             int64        `json:"id"`
	Command        Command      `json:"command"`
	CountryCode    string       `json:"countryCode,omitempty"`
	StationID      string       `json:"stationId,omitempty"`
	Title          string       `json:"title,omitempty"`
	Coordinates    *Coordinates `json:"coordinates,omitempty"`
	RejectReason   string       `json:"rejectReason,omitempty"`
	ShortCode      string       `json:"ds100,omitempty"`
	Active         *bool        `json:"active,omitempty"`
	CreateStation  bool         `json:"createStation,omitempty"`
	IgnoreConflict bool         `json:"ignoreConflict,omitempty"`
}

// HasCoordinates reports whether the command carries non-zero coordinates.
func (c InboxCommand) HasCoordinates() bool {
	_, ok := present(c.Coordinates)
	return ok
}
