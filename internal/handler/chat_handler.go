package handler

import (
	"log"
	"net/http"

	"github.com/aditya/rideshare/internal/middleware"
	"github.com/aditya/rideshare/internal/realtime"
	"github.com/aditya/rideshare/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// ChatHandler upgrades ride chat connections and hands them to the
// gatekeeper. Authentication happens on the socket so that failures are
// reported with a close code rather than an HTTP status.
type ChatHandler struct {
	gatekeeper *realtime.Gatekeeper
	upgrader   websocket.Upgrader
}

func NewChatHandler(gatekeeper *realtime.Gatekeeper) *ChatHandler {
	return &ChatHandler{
		gatekeeper: gatekeeper,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/rides/{id}/chat", h.ServeChat)
}

// GET /v1/ws/rides/{id}/chat
func (h *ChatHandler) ServeChat(w http.ResponseWriter, r *http.Request) {
	rideID := chi.URLParam(r, "id")
	if !utils.IsValidUUID(rideID) {
		utils.NotFound(w, "ride")
		return
	}
	credential := middleware.Credential(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("chat: upgrade failed for ride %s: %v", rideID, err)
		return
	}

	if err := h.gatekeeper.Serve(r.Context(), conn, rideID, credential); err != nil {
		log.Printf("chat: connection to ride %s closed: %v", rideID, err)
	}
}
