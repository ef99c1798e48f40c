package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"merita.org/internal/auth"
	"merita.org/internal/ledger"
)

type updateMemberRequest struct {
	Name string `json:"name"`
}

func (a *API) handleMembersCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	batchID, err := parseBatchID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	members, err := a.store.ListMembers(r.Context(), batchID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	if members == nil {
		members = []ledger.BatchMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (a *API) handleMemberResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/batch-members/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if rest, ok := strings.CutSuffix(path, "/claim"); ok {
		id, err := parseID(rest)
		if err != nil {
			writeError(w, r, http.StatusNotFound, "member not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.claimMember(w, r, id)
		return
	}

	id, err := parseID(path)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	a.renameMember(w, r, id)
}

// renameMember changes the roster name, which cascades the new label
// into every token soft-linked to the member.
func (a *API) renameMember(w http.ResponseWriter, r *http.Request, id int64) {
	var req updateMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	m, err := a.store.RenameMember(r.Context(), id, req.Name)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	a.audit(r.Context(), "member.rename", map[string]any{
		"member_id": strconv.FormatInt(m.ID, 10),
		"folder_id": strconv.FormatInt(m.FolderID, 10),
		"name":      m.Name,
	})
	writeJSON(w, http.StatusOK, m)
}

// claimMember links an unlinked roster entry to the authenticated
// account when the emails agree.
func (a *API) claimMember(w http.ResponseWriter, r *http.Request, id int64) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	m, err := a.store.GetMember(r.Context(), id)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	if m.Email == "" || !strings.EqualFold(m.Email, ident.Email) {
		writeError(w, r, http.StatusForbidden, "member email does not match your account")
		return
	}

	claimed, err := a.store.ClaimMember(r.Context(), id, ident.ID)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	a.audit(r.Context(), "member.claim", map[string]any{
		"member_id": strconv.FormatInt(claimed.ID, 10),
		"folder_id": strconv.FormatInt(claimed.FolderID, 10),
		"user_id":   claimed.UserID,
	})
	writeJSON(w, http.StatusOK, claimed)
}
