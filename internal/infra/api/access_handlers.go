package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"forex-academy/internal/domain/model"
	"forex-academy/internal/infra/logging"
)

type resourceView struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Kind       string   `json:"kind"`
	RoleAccess []string `json:"roleAccess"`
}

func toResourceView(r *model.GatedResource) resourceView {
	return resourceView{ID: r.ID, Title: r.Title, Kind: r.Kind, RoleAccess: r.RoleAccess}
}

type programView struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Role       string `json:"role"`
	PriceCents int64  `json:"priceCents"`
}

func (s *Server) handlePrograms(w http.ResponseWriter, _ *http.Request) {
	ps := s.catalog.List()
	out := make([]programView, 0, len(ps))
	for _, p := range ps {
		out = append(out, programView{Name: p.Name, Title: p.Title, Role: p.Role, PriceCents: p.PriceCents})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleMyRoles(w http.ResponseWriter, r *http.Request) {
	uid, _ := logging.UserIDFrom(r.Context())
	roles, err := s.access.UserRoles(r.Context(), uid)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"userId": uid, "roles": roles})
}

type requestView struct {
	Program string `json:"program"`
	Status  string `json:"status"`
}

func (s *Server) handleMyPrograms(w http.ResponseWriter, r *http.Request) {
	uid, _ := logging.UserIDFrom(r.Context())
	reqs, err := s.entitlements.ListRequests(r.Context(), uid)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]requestView, 0, len(reqs))
	for _, q := range reqs {
		out = append(out, requestView{Program: q.Program, Status: string(q.Status)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	uid, _ := logging.UserIDFrom(r.Context())
	rs, err := s.access.ListVisible(r.Context(), uid)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]resourceView, 0, len(rs))
	for _, res := range rs {
		out = append(out, toResourceView(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	uid, _ := logging.UserIDFrom(r.Context())
	res, err := s.access.View(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toResourceView(res))
}
