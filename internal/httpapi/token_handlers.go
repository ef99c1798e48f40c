package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"merita.org/internal/accept"
	"merita.org/internal/audit"
	"merita.org/internal/auth"
	"merita.org/internal/ledger"
	"merita.org/internal/obs"
	"merita.org/internal/stats"
	"merita.org/internal/stream"
)

type createTokenRequest struct {
	BatchID       int64  `json:"batch_id"`
	ToUserID      string `json:"to_user_id"`
	SenderName    string `json:"sender_name"`
	ReceiverName  string `json:"receiver_name"`
	ReceiverEmail string `json:"receiver_email"`
	Amount        int64  `json:"amount"`
	Category      string `json:"category"`
	Message       string `json:"message"`

	// Clients may echo these documented fields; the sender link always
	// comes from the authenticated identity and new tokens are always
	// pending, so FromUserID is ignored and Status only validated.
	FromUserID string `json:"from_user_id"`
	Status     string `json:"status"`
}

func (a *API) handleTokensCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createToken(w, r)
	case http.MethodGet:
		a.listTokens(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleTokenResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/tokens/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if rest, ok := strings.CutSuffix(path, "/accept"); ok {
		id, err := parseID(rest)
		if err != nil {
			writeError(w, r, http.StatusNotFound, "token not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.acceptToken(w, r, id)
		return
	}

	id, err := parseID(path)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.getToken(w, r, id)
}

func (a *API) createToken(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if s := strings.TrimSpace(req.Status); s != "" && s != string(ledger.StatusPending) {
		writeError(w, r, http.StatusBadRequest, "status must be pending on creation")
		return
	}

	senderName := strings.TrimSpace(req.SenderName)
	if senderName == "" {
		senderName = ident.FullName()
	}

	// the sender link is always the authenticated identity
	tok, err := a.store.CreateToken(r.Context(), ledger.CreateTokenInput{
		BatchID:       req.BatchID,
		FromUserID:    ident.ID,
		ToUserID:      req.ToUserID,
		SenderName:    senderName,
		ReceiverName:  req.ReceiverName,
		ReceiverEmail: req.ReceiverEmail,
		Amount:        req.Amount,
		Category:      req.Category,
		Message:       req.Message,
	})
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	obs.TokenIssued()
	if a.stream != nil {
		a.stream.Publish(stream.TokenEvent{
			Type:         stream.EventTokenIssued,
			TokenID:      tok.ID,
			BatchID:      tok.BatchID,
			SenderName:   tok.SenderName,
			ReceiverName: tok.ReceiverName,
			Amount:       tok.Amount,
			Category:     tok.Category,
		})
	}
	a.audit(r.Context(), "token.create", map[string]any{
		"token_id": strconv.FormatInt(tok.ID, 10),
		"batch_id": strconv.FormatInt(tok.BatchID, 10),
		"amount":   strconv.FormatInt(tok.Amount, 10),
		"category": tok.Category,
	})

	w.Header().Set("Location", "/v1/tokens/"+strconv.FormatInt(tok.ID, 10))
	writeJSON(w, http.StatusCreated, tok)
}

func (a *API) getToken(w http.ResponseWriter, r *http.Request, id int64) {
	tok, err := a.store.GetToken(r.Context(), id)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (a *API) listTokens(w http.ResponseWriter, r *http.Request) {
	batchID, err := parseBatchID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.store.ListTokens(r.Context(), batchID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	if items == nil {
		items = []ledger.Token{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) acceptToken(w http.ResponseWriter, r *http.Request, id int64) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	tok, err := a.acceptor.Accept(r.Context(), id, ident)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	if a.stream != nil {
		a.stream.Publish(stream.TokenEvent{
			Type:         stream.EventTokenAccepted,
			TokenID:      tok.ID,
			BatchID:      tok.BatchID,
			SenderName:   tok.SenderName,
			ReceiverName: tok.ReceiverName,
			Amount:       tok.Amount,
			Category:     tok.Category,
		})
	}
	writeJSON(w, http.StatusOK, tok)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	batchID, err := parseBatchID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	// Linked-name matching is only sound against the roster of a single
	// batch; an unscoped view could count same-named members across
	// batches toward the caller.
	if batchID == 0 {
		writeError(w, r, http.StatusBadRequest, "batch_id is required")
		return
	}

	tokens, err := a.store.ListTokens(r.Context(), batchID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	roster, err := a.store.ListMembers(r.Context(), batchID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Compute(tokens, ident, roster, time.Now()))
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	batchID, err := parseBatchID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tokens, err := a.store.ListTokens(r.Context(), batchID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Leaderboard(tokens))
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}

// --- helpers ---

func parseID(raw string) (int64, error) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("identifier must be a positive integer")
	}
	return id, nil
}

func parseBatchID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("batch_id"))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.New("batch_id must be a positive integer")
	}
	return v, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrEmptyReceiver),
		errors.Is(err, ledger.ErrEmptyName),
		errors.Is(err, ledger.ErrInvalidUser):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, accept.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrAlreadyClaimed):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
