package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/stationinbox/internal/logging"
	"github.com/JonMunkholm/stationinbox/internal/metrics"
)

const notificationSubject = "Railway-Stations.org review result"

// NotifyUsers mails every photographer a summary of their entries reviewed
// since the last run, then marks those entries notified. Photographers
// without a verified address, or who opted out, are skipped but their
// entries are still marked.
func (s *Service) NotifyUsers(ctx context.Context) error {
	entries, err := s.inbox.FindToNotify(ctx)
	if err != nil {
		return fmt.Errorf("find entries to notify: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	var order []int64
	byPhotographer := make(map[int64][]InboxEntry)
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if _, seen := byPhotographer[e.PhotographerID]; !seen {
			order = append(order, e.PhotographerID)
		}
		byPhotographer[e.PhotographerID] = append(byPhotographer[e.PhotographerID], e)
		ids = append(ids, e.ID)
	}

	for _, pid := range order {
		s.notifyPhotographer(ctx, pid, byPhotographer[pid])
	}

	if err := s.inbox.UpdateNotified(ctx, ids); err != nil {
		return fmt.Errorf("mark %d entries notified: %w", len(ids), err)
	}
	logging.FromContext(ctx).Info("review notifications processed", "entries", len(ids), "photographers", len(order))
	return nil
}

func (s *Service) notifyPhotographer(ctx context.Context, photographerID int64, entries []InboxEntry) {
	log := logging.WithFields(ctx, "photographer_id", photographerID)

	user, err := s.users.FindByID(ctx, photographerID)
	if err != nil {
		log.Error("notify: photographer lookup failed", "error", err)
		metrics.NotificationsSentTotal.WithLabelValues("error").Inc()
		return
	}
	if s.mailer == nil || user == nil || user.Email == "" || !user.EmailVerified || !user.SendNotifications {
		metrics.NotificationsSentTotal.WithLabelValues("skipped").Inc()
		return
	}

	if err := s.mailer.Send(ctx, *user, notificationSubject, notificationBody(*user, entries)); err != nil {
		log.Error("notify: sending mail failed", "email", user.Email, "error", err)
		metrics.NotificationsSentTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.NotificationsSentTotal.WithLabelValues("sent").Inc()
	log.Info("review result mailed", "entries", len(entries))
}

func notificationBody(user User, entries []InboxEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nthank you for your contributions.\n\nThe following entries have been reviewed:\n\n", user.Name)
	for _, e := range entries {
		kind := e.Kind().String()
		if e.IsProblemReport() {
			kind += "/" + string(e.ProblemReportType)
		}
		fmt.Fprintf(&b, "%d. %s (%s): ", e.ID, e.Title, kind)
		if e.RejectReason != nil {
			fmt.Fprintf(&b, "rejected - %s\n", *e.RejectReason)
		} else {
			b.WriteString("accepted\n")
		}
	}
	b.WriteString("\nCheers\nYour Railway-Stations-Team\n")
	return b.String()
}
