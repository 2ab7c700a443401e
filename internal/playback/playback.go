// Package playback is the fire-and-forget side channel to the upstream
// music controller. Notifications never block game handling and their
// failures are logged and forgotten.
package playback

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kottz/spektrum-sub000/internal/catalog"
)

// Notifier receives round transitions.
type Notifier interface {
	// RoundStarted asks the upstream controller to start playing the
	// round's track.
	RoundStarted(media catalog.Media)
	// Stopped asks the upstream controller to stop playback.
	Stopped()
}

// Noop discards all notifications.
type Noop struct{}

func (Noop) RoundStarted(catalog.Media) {}
func (Noop) Stopped()                   {}

// LogNotifier records transitions in the server log only. It is the default
// when no upstream controller is configured.
type LogNotifier struct {
	Log *logrus.Logger
}

func (n LogNotifier) RoundStarted(media catalog.Media) {
	n.Log.WithFields(logrus.Fields{
		"title":  media.Title,
		"artist": media.Artist,
	}).Info("Playback start")
}

func (n LogNotifier) Stopped() {
	n.Log.Info("Playback stop")
}

// HTTPNotifier posts transitions to an upstream controller. Requests run on
// their own goroutine with a short timeout; the caller returns immediately.
type HTTPNotifier struct {
	URL    string
	Log    *logrus.Logger
	Client *http.Client
}

// NewHTTPNotifier builds a notifier for the given endpoint.
func NewHTTPNotifier(url string, log *logrus.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		URL:    url,
		Log:    log,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

type playbackRequest struct {
	Action     string `json:"action"`
	PlaybackID string `json:"playback_id,omitempty"`
}

func (n *HTTPNotifier) RoundStarted(media catalog.Media) {
	n.post(playbackRequest{Action: "play", PlaybackID: media.PlaybackID})
}

func (n *HTTPNotifier) Stopped() {
	n.post(playbackRequest{Action: "stop"})
}

func (n *HTTPNotifier) post(req playbackRequest) {
	go func() {
		body, err := json.Marshal(req)
		if err != nil {
			return
		}
		resp, err := n.Client.Post(n.URL, "application/json", bytes.NewReader(body))
		if err != nil {
			n.Log.WithError(err).Warn("Playback notification failed")
			return
		}
		_ = resp.Body.Close()
	}()
}
