package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/dance-area-backend/internal/area"
	"github.com/DoyleJ11/dance-area-backend/internal/hub"
	"github.com/DoyleJ11/dance-area-backend/internal/types"
)

func summarize(a *area.Area, v area.View) types.AreaSummary {
	b := a.Bounds()
	return types.AreaSummary{
		X:           b.X,
		Y:           b.Y,
		Width:       b.Width,
		Height:      b.Height,
		Version:     v.Version,
		Playing:     v.Playing,
		Subscribers: v.NumSubscribers,
		Area:        v.Area,
	}
}

func ListAreas(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		areas, err := h.Areas(r.Context())
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		out := make([]types.AreaSummary, 0, len(areas))
		for _, a := range areas {
			v, err := a.View(r.Context())
			if err != nil {
				continue
			}
			out = append(out, summarize(a, v))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetArea(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := h.Area(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		if a == nil {
			http.Error(w, "area not found", http.StatusNotFound)
			return
		}
		v, err := a.View(r.Context())
		if err != nil {
			http.Error(w, "area closed", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, summarize(a, v))
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
