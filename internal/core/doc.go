// Package core provides the inbox moderation engine of the railway station
// photo service.
//
// The package holds the domain logic independent of any transport or
// persistence layer. Stores, file storage, the operator monitor, the social
// bot, the mailer and the per-entry lock are injected through the interfaces
// in ports.go.
//
// # Intake
//
// Photographers submit photo uploads and problem reports. [Service.UploadPhoto]
// and [Service.ReportProblem] validate the submission, record a pending
// [InboxEntry], compute an advisory conflict flag and notify the operators.
// Outcomes are reported as an [InboxResponse] state, never as a Go error.
//
// # Admin Commands
//
// Administrators resolve pending entries with [Service.ProcessAdminCommand].
// Every entry is finalized exactly once: commands for the same entry are
// serialized through an [EntryLocker], and a finalized entry refuses further
// commands with "No pending inbox entry found". Refusals are returned as
// [*BadRequestError]; infrastructure failures are plain errors.
//
// Importing a photo writes the photo row first and then moves the file into
// permanent storage. A failed move reverts the row and leaves the entry
// pending.
//
// # Conflicts
//
// [ConflictDetector] flags an upload when its station already has a photo,
// another pending entry targets the same station, or another pending entry
// or station lies within the proximity radius of its coordinates.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages with support codes
// using [MapError].
package core
