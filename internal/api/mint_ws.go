package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/skillcoin/learn-engine/internal/certificate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// MintMessage is one progress event of a simulated NFT mint
type MintMessage struct {
	Type    string `json:"type"` // stage | error
	Stage   string `json:"stage,omitempty"`
	TokenID string `json:"token_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleMintWS streams the stages of a simulated NFT mint over a
// websocket so the client can render progress during the artificial
// transaction delay
func (s *Server) handleMintWS(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	certID := chi.URLParam(r, "id")

	cert, err := s.issuer.Get(r.Context(), certID)
	if err != nil {
		if errors.Is(err, certificate.ErrNotFound) {
			http.Error(w, "certificate not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to load certificate", "error", err, "certificate_id", certID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if cert.UserID != session.UserID {
		http.Error(w, "certificate belongs to another user", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("mint websocket connected", "certificate_id", certID, "user_id", session.UserID)

	tokenID, err := s.issuer.MintWithProgress(r.Context(), certID, func(stage certificate.MintStage) {
		s.sendMintMessage(conn, MintMessage{Type: "stage", Stage: string(stage)})
	})
	if err != nil {
		msg := "failed to mint"
		if errors.Is(err, certificate.ErrAlreadyMinted) {
			msg = "certificate already has an NFT token"
		}
		s.sendMintMessage(conn, MintMessage{Type: "error", Error: msg})
		return
	}

	s.sendMintMessage(conn, MintMessage{
		Type:    "stage",
		Stage:   string(certificate.StageMinted),
		TokenID: tokenID,
	})
}

func (s *Server) sendMintMessage(conn *websocket.Conn, msg MintMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		slog.Warn("failed to write mint message", "error", err)
	}
}
