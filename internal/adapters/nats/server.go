package natsadapter

import (
	"encoding/json"
	"errors"

	nats "github.com/nats-io/nats.go"

	"github.com/example/devtrack-api/internal/tokenverify"
)

// VerifyHandler answers token-verification requests from sibling services
// over a NATS queue subject, so they never need the signing secret.
type VerifyHandler struct {
	verifier  tokenverify.Verifier
	respondFn func(msg *nats.Msg, resp verifyResponse)
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	OK       bool   `json:"ok"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error,omitempty"`
}

func NewVerifyHandler(verifier tokenverify.Verifier) *VerifyHandler {
	return &VerifyHandler{verifier: verifier, respondFn: respond}
}

func (h *VerifyHandler) Subscribe(conn *nats.Conn, subject, queue string) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	_, err := conn.QueueSubscribe(subject, queue, h.handle)
	return err
}

func (h *VerifyHandler) handle(msg *nats.Msg) {
	var req verifyRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		h.respondFn(msg, verifyResponse{OK: false, Error: "invalid_payload"})
		return
	}
	result, err := h.verifier.Verify(req.Token)
	if err != nil {
		h.respondFn(msg, verifyResponse{OK: false, Error: "invalid_token"})
		return
	}
	h.respondFn(msg, verifyResponse{OK: true, UserID: result.UserID, Email: result.Email, Username: result.Username})
}

func respond(msg *nats.Msg, resp verifyResponse) {
	data, _ := json.Marshal(resp)
	_ = msg.Respond(data)
}
