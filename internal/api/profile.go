package api

import (
	"errors"
	"net/http"

	"github.com/portfolieo/portfolio-api/internal/profile"
)

type addLinkRequest struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Profile.Get(r.Context(), owner(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in profile.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	user, err := s.deps.Profile.Update(r.Context(), owner(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) listLinks(w http.ResponseWriter, r *http.Request) {
	links, err := s.deps.Profile.ListLinks(r.Context(), owner(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (s *Server) addLink(w http.ResponseWriter, r *http.Request) {
	var req addLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	link, err := s.deps.Profile.AddLink(r.Context(), owner(r), req.Platform, req.URL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (s *Server) deleteLink(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Profile.DeleteLink(r.Context(), owner(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadImage(kind profile.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Multipart framing needs a little headroom over the image itself.
		r.Body = http.MaxBytesReader(w, r.Body, profile.MaxImageBytes+64<<10)
		file, _, err := r.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeError(w, http.StatusRequestEntityTooLarge, "file too large")
				return
			}
			writeError(w, http.StatusBadRequest, "no file uploaded")
			return
		}
		defer func() { _ = file.Close() }()

		location, err := s.deps.Profile.UploadImage(r.Context(), kind, owner(r), file)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": location})
	}
}

func (s *Server) deleteImage(kind profile.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.deps.Profile.DeleteImage(r.Context(), kind, owner(r)); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
