package registry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/skillswap/backend/internal/middleware"
	"github.com/skillswap/backend/internal/models"
)

type CreateSkillRequest struct {
	SkillName      string `json:"skill_name"`
	Level          string `json:"level"`
	CreditsPerHour int    `json:"credits_per_hour"`
	Description    string `json:"description"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// CreateSkill handles POST /skills for the authenticated teacher.
func (h *Handler) CreateSkill(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req CreateSkillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	l, err := h.svc.CreateListing(r.Context(), teacherID, req.SkillName, req.Level, req.CreditsPerHour, req.Description)
	if err != nil {
		if errors.Is(err, ErrInvalidListing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("create skill listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "create skill listing failed")
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// ListSkills handles GET /skills. Without ?teacher_id it lists the caller's
// own listings.
func (h *Handler) ListSkills(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if v := r.URL.Query().Get("teacher_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid teacher_id")
			return
		}
		teacherID = id
	}
	list, err := h.svc.ListForTeacher(r.Context(), teacherID)
	if err != nil {
		h.log.Error("list skill listings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list skill listings failed")
		return
	}
	if list == nil {
		list = []*models.SkillListing{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"skills": list})
}

// SearchSkills handles GET /skills/search?skill=.
func (h *Handler) SearchSkills(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Search(r.Context(), r.URL.Query().Get("skill"))
	if err != nil {
		if errors.Is(err, ErrInvalidListing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("search skill listings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search skill listings failed")
		return
	}
	if list == nil {
		list = []*models.TeacherSkill{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teachers": list})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
