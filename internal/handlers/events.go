package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wkamthorn/campuswallet/internal/handlers/render"
	"github.com/wkamthorn/campuswallet/internal/handlers/userctx"
	"github.com/wkamthorn/campuswallet/internal/logger"
	"github.com/wkamthorn/campuswallet/internal/service/notify"
)

const heartbeatInterval = 15 * time.Second

// handleEvents streams the caller's committed balance changes as
// server sent events until the client goes away.
func handleEvents(broker *notify.Broker, l logger.Logger) http.Handler {
	type event struct {
		AccountID string  `json:"account_id"`
		Balance   float64 `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			render.ServiceError(w, "Streaming not supported", http.StatusNotImplemented)
			return
		}

		changes, cancel := broker.Subscribe(account.ID)
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				// Comment line keeps proxies from closing idle streams
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case change := <-changes:
				balance, _ := change.Balance.Float64()
				payload, err := json.Marshal(event{
					AccountID: change.AccountID.String(),
					Balance:   balance,
				})
				if err != nil {
					l.Error("Failed to encode change event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: balance\ndata: %s\n\n", payload)
				flusher.Flush()
			}
		}
	})
}
