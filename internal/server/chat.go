package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/chat"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
)

const maxHistoryMinutes = 1440

var errUserMismatch = common.NewAppError("FORBIDDEN", "user_id does not match the authenticated user", common.ErrForbidden)

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	Minutes *int   `json:"minutes"`
}

// messageView is the history representation of one stored turn.
type messageView struct {
	ID          uuid.UUID             `json:"id"`
	Role        constants.Role        `json:"role"`
	Content     string                `json:"content"`
	MessageType constants.MessageKind `json:"message_type"`
	FileName    *string               `json:"file_name,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

func toMessageView(m *entity.ChatMessage) messageView {
	return messageView{
		ID:          m.ID,
		Role:        m.Role,
		Content:     m.Content,
		MessageType: m.MessageType,
		FileName:    m.FileName,
		CreatedAt:   m.CreatedAt,
	}
}

// chatUser resolves the caller and rejects a body user_id naming someone else.
func chatUser(r *http.Request, bodyUserID string) (string, error) {
	userID := common.UserIDFromContext(r.Context())
	if b := strings.TrimSpace(bodyUserID); b != "" && b != userID {
		return "", errUserMismatch
	}
	return userID, nil
}

func (h *handler) chatSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeChatError(w, err)
		return
	}
	userID, err := chatUser(r, req.UserID)
	if err != nil {
		writeChatError(w, err)
		return
	}
	reply, err := h.Chat.Send(r.Context(), userID, req.Message)
	if err != nil {
		h.logFailure(r, "chat.send", err)
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "response": reply})
}

func (h *handler) chatSendFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxAttachmentBytes+(1<<20))
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeChatError(w, common.InvalidInputError("File too large. Maximum size is 10MB"))
			return
		}
		writeChatError(w, common.InvalidInputErrorf("Invalid file upload: %v", err))
		return
	}
	userID, err := chatUser(r, r.FormValue("user_id"))
	if err != nil {
		writeChatError(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeChatError(w, common.InvalidInputError("No file provided"))
		return
	}
	defer file.Close()

	res, err := h.Chat.SendFile(r.Context(), userID, chat.FileUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, r.FormValue("message"))
	if err != nil {
		h.logFailure(r, "chat.send_file", err)
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"response":  res.Response,
		"file_type": res.Kind,
		"file_name": res.FileName,
	})
}

func (h *handler) chatHistory(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeChatError(w, err)
		return
	}
	userID, err := chatUser(r, req.UserID)
	if err != nil {
		writeChatError(w, err)
		return
	}
	window := h.Chat.Window()
	if req.Minutes != nil {
		v := common.NewValidator().Field("minutes", *req.Minutes, common.IntRange(1, maxHistoryMinutes))
		if err := common.ValidateAndReturnError(v); err != nil {
			writeChatError(w, err)
			return
		}
		window = time.Duration(*req.Minutes) * time.Minute
	}
	msgs, err := h.Chat.History(r.Context(), userID, window)
	if err != nil {
		h.logFailure(r, "chat.history", err)
		writeChatError(w, err)
		return
	}
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageView(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": out})
}

func (h *handler) chatClear(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeChatError(w, err)
		return
	}
	userID, err := chatUser(r, req.UserID)
	if err != nil {
		writeChatError(w, err)
		return
	}
	n, err := h.Chat.Clear(r.Context(), userID)
	if err != nil {
		h.logFailure(r, "chat.clear", err)
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted_count": n})
}
