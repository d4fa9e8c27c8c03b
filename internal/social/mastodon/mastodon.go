// Package mastodon announces newly imported station photos on a Mastodon
// instance.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/stationinbox/internal/core"
)

// Config holds the bot settings. The bot is disabled when any value is blank.
type Config struct {
	InstanceURL string
	Token       string
	StationURL  string
}

func (c Config) enabled() bool {
	return strings.TrimSpace(c.InstanceURL) != "" && strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.StationURL) != ""
}

type toot struct {
	Status string `json:"status"`
}

// Bot implements core.SocialBot. Toots are posted by a background worker;
// a full queue drops the toot.
type Bot struct {
	cfg       Config
	client    *http.Client
	queue     chan string
	done      chan struct{}
	closeOnce sync.Once
}

var _ core.SocialBot = (*Bot)(nil)

// New starts the posting worker. A nil client uses a client with a 30s timeout.
func New(cfg Config, client *http.Client) *Bot {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	b := &Bot{
		cfg:    cfg,
		client: client,
		queue:  make(chan string, 16),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bot) TootNewPhoto(ctx context.Context, station core.Station, entry core.InboxEntry) {
	if !b.cfg.enabled() {
		slog.InfoContext(ctx, "new photo not tooted, bot disabled", "station", station.Key.String())
		return
	}
	select {
	case b.queue <- Status(b.cfg.StationURL, station, entry):
	default:
		slog.WarnContext(ctx, "toot queue full, dropping toot", "station", station.Key.String())
	}
}

// Status composes the toot text for a new photo of station.
func Status(stationURL string, station core.Station, entry core.InboxEntry) string {
	photographer := entry.PhotographerName
	if p, ok := station.PrimaryPhoto(); ok && p.PhotographerName != "" {
		photographer = p.PhotographerName
	}
	status := fmt.Sprintf("%s\nby %s\n%s?countryCode=%s&stationId=%s",
		station.Title, photographer, stationURL, station.Key.Country, station.Key.ID)
	if c := strings.TrimSpace(entry.Comment); c != "" {
		status += "\n" + c
	}
	return status
}

func (b *Bot) run() {
	defer close(b.done)
	for status := range b.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := b.post(ctx, status); err != nil {
			slog.Error("sending toot failed", "error", err)
		}
		cancel()
	}
}

func (b *Bot) post(ctx context.Context, status string) error {
	body, err := json.Marshal(toot{Status: status})
	if err != nil {
		return err
	}
	url := strings.TrimRight(b.cfg.InstanceURL, "/") + "/api/v1/statuses"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Authorization", "Bearer "+b.cfg.Token)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()
	content, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: status %d: %s", url, resp.StatusCode, content)
	}
	slog.Info("toot sent", "url", url)
	return nil
}

// Close posts the queued toots and stops the worker.
func (b *Bot) Close() {
	b.closeOnce.Do(func() {
		close(b.queue)
		<-b.done
	})
}
