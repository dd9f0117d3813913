package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/rating"
	"github.com/sw33tLie/riderpoint/pkg/storage"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithField("route", r.URL.Path).Errorf("Request failed: %v", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", catalog.ErrValidation, err)
	}
	return nil
}

func (s *Server) handleTours(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.TourFilter{
		Region:  q.Get("region"),
		Country: q.Get("country"),
		State:   q.Get("state"),
		Search:  q.Get("search"),
	}
	if f.Region == "" {
		f.Region = q.Get("category")
	}
	tours, err := s.DB.Tours(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tours)
}

func (s *Server) handleTour(w http.ResponseWriter, r *http.Request) {
	t, err := s.DB.Tour(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTour(w http.ResponseWriter, r *http.Request) {
	var in catalog.Tour
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.DB.CreateTour(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type VoteRequest struct {
	ID     string  `json:"id"`
	Rating float64 `json:"rating"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ID == "" {
		s.writeError(w, r, catalog.Invalidf("tour id is required"))
		return
	}
	vote, err := rating.ParseVote(req.Rating)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.DB.Vote(r.Context(), req.ID, vote)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordVote(vote)
	}
	writeJSON(w, http.StatusOK, t)
}

type UpdateRouteRequest struct {
	ID            string          `json:"id"`
	RouteGeometry json.RawMessage `json:"routeGeometry"`
	Km            float64         `json:"km"`
}

func (s *Server) handleUpdateRoute(w http.ResponseWriter, r *http.Request) {
	var req UpdateRouteRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.DB.UpdateRoute(r.Context(), req.ID, req.RouteGeometry, req.Km)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleForum(w http.ResponseWriter, r *http.Request) {
	cats, err := s.DB.Categories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(cats) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no forum categories"})
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.Category
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.DB.CreateCategory(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type AddTopicRequest struct {
	MainCatID string `json:"mainCatId"`
	Title     string `json:"title"`
	Desc      string `json:"desc"`
}

func (s *Server) handleAddTopic(w http.ResponseWriter, r *http.Request) {
	var req AddTopicRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.DB.AddTopic(r.Context(), req.MainCatID, req.Title, req.Desc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.DB.Threads(r.Context(), r.URL.Query().Get("topic"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	t, err := s.DB.Thread(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var in catalog.Thread
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.DB.CreateThread(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type ReplyRequest struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
	User  string `json:"user"`
	Text  string `json:"text"`
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ID == "" || req.Topic == "" {
		s.writeError(w, r, catalog.Invalidf("thread id and topic are required"))
		return
	}
	t, err := s.DB.AddReply(r.Context(), catalog.Thread{ID: req.ID, Topic: req.Topic}, catalog.Reply{User: req.User, Text: req.Text})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type UserSyncRequest struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func (s *Server) handleUserSync(w http.ResponseWriter, r *http.Request) {
	var req UserSyncRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.DB.SyncUser(r.Context(), catalog.User{ID: req.UID, Email: req.Email, DisplayName: req.DisplayName})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.DB.Posts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var in catalog.Post
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.DB.CreatePost(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.GetStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	changes, err := s.DB.ListRecentChanges(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}
