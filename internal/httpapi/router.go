package httpapi

import (
	"net/http"
	"strings"
)

// NewRouter wires the API routes onto a ServeMux.
func NewRouter(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/references", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListReferences(w, r)
		case http.MethodPost:
			h.CreateReference(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/references/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/references/")
		parts := strings.Split(rest, "/")
		if parts[0] == "" {
			http.NotFound(w, r)
			return
		}
		sku := parts[0]

		// /api/references/{sku}/validate
		if len(parts) == 2 && parts[1] == "validate" {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h.Validate(w, r, sku)
			return
		}
		if len(parts) > 1 {
			http.NotFound(w, r)
			return
		}

		switch r.Method {
		case http.MethodGet:
			h.GetReference(w, r, sku)
		case http.MethodDelete:
			h.DeleteReference(w, r, sku)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.UploadCandidate(w, r)
	})

	mux.HandleFunc("/api/compare", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Compare(w, r)
	})

	mux.HandleFunc("/api/spellcheck", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.SpellCheck(w, r)
	})

	mux.HandleFunc("/api/signature", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.CheckSignature(w, r)
	})

	return mux
}
