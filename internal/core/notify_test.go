package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

func TestNotifyUsers(t *testing.T) {
	f := newFixture(t)
	accepted := f.upload(jpegUpload(keyNoPhoto))
	rejected := f.upload(missingStationUpload("Somewhere", 52.5, 13.4))
	report := f.report(keyWithPhoto, core.WrongPhoto)
	pending := f.upload(jpegUpload(keySwiss))

	require.NoError(t, f.command(accepted.ID, core.CommandImportPhoto))
	require.NoError(t, f.svc.ProcessAdminCommand(f.ctx, f.admin, core.InboxCommand{
		ID: rejected.ID, Command: core.CommandReject, RejectReason: "blurry",
	}))
	require.NoError(t, f.command(report, core.CommandMarkSolved))

	require.NoError(t, f.svc.NotifyUsers(f.ctx))

	require.Len(t, f.mailer.sent, 1)
	mail := f.mailer.sent[0]
	assert.Equal(t, "nick@example.org", mail.to.Email)
	assert.Equal(t, "Railway-Stations.org review result", mail.subject)
	assert.Contains(t, mail.body, "Hello nickname,")
	assert.Contains(t, mail.body, fmt.Sprintf("%d. Lummerland (photo): accepted\n", accepted.ID))
	assert.Contains(t, mail.body, fmt.Sprintf("%d. Somewhere (missing station): rejected - blurry\n", rejected.ID))
	assert.Contains(t, mail.body, fmt.Sprintf("%d. Neverland (problem report/WRONG_PHOTO): accepted\n", report))
	assert.NotContains(t, mail.body, fmt.Sprintf("%d. ", pending.ID))

	for _, id := range []int64{accepted.ID, rejected.ID, report} {
		assert.True(t, f.entry(id).Notified, "entry %d", id)
	}
	assert.False(t, f.entry(pending.ID).Notified)

	require.NoError(t, f.svc.NotifyUsers(f.ctx))
	assert.Len(t, f.mailer.sent, 1, "already notified entries are not mailed again")
}

func TestNotifyUsers_SkipsOptedOutPhotographer(t *testing.T) {
	f := newFixture(t)
	resp := f.svc.UploadPhoto(f.ctx, jpegUpload(keyNoPhoto), f.otherUser)
	require.Equal(t, core.StateReview, resp.State, resp.Message)
	require.NoError(t, f.command(resp.ID, core.CommandImportPhoto))

	require.NoError(t, f.svc.NotifyUsers(f.ctx))
	assert.Empty(t, f.mailer.sent)
	assert.True(t, f.entry(resp.ID).Notified)
}

func TestNotifyUsers_MailFailureStillMarksEntries(t *testing.T) {
	f := newFixture(t)
	resp := f.upload(jpegUpload(keyNoPhoto))
	require.NoError(t, f.command(resp.ID, core.CommandImportPhoto))
	f.mailer.err = errors.New("smtp down")

	require.NoError(t, f.svc.NotifyUsers(f.ctx))
	assert.True(t, f.entry(resp.ID).Notified)
}

func TestNotifyUsers_NothingToDo(t *testing.T) {
	f := newFixture(t)
	f.upload(jpegUpload(keyNoPhoto))

	require.NoError(t, f.svc.NotifyUsers(f.ctx))
	assert.Empty(t, f.mailer.sent)
}
