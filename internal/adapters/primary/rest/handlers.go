package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jupiterclapton/cenackle/feed-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/feed-service/internal/core/ports"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	feeds ports.FeedService
	posts ports.PostService
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// GET /v1/feed?mode=&authorId=&type=&cursor=&limit=
func (h *handlers) getFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := domain.ParseFeedMode(q.Get("mode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.serveFeed(w, r, mode, q.Get("authorId"))
}

// GET /v1/profiles/{id}/posts
func (h *handlers) getProfilePosts(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, domain.ModeAuthor, r.PathValue("id"))
}

func (h *handlers) serveFeed(w http.ResponseWriter, r *http.Request, mode domain.FeedMode, authorID string) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.feeds.GetFeed(r.Context(), domain.FeedRequest{
		Mode:     mode,
		ViewerID: ForContext(r.Context()),
		AuthorID: authorID,
		Type:     domain.ContentType(q.Get("type")),
		Cursor:   q.Get("cursor"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnvelope(page, toFeedItemDTO))
}

// GET /v1/posts/{id}
func (h *handlers) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.feeds.GetPost(r.Context(), r.PathValue("id"), ForContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeedItemDTO(*post))
}

// POST /v1/posts
func (h *handlers) createPost(w http.ResponseWriter, r *http.Request) {
	author, err := requireProfile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req createPostRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, badRequest("malformed request body"))
		return
	}

	post, err := h.posts.CreatePost(r.Context(), domain.NewPost{
		AuthorID:   author,
		Content:    req.Content,
		MediaIDs:   req.MediaIDs,
		Visibility: domain.Visibility(req.Visibility),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFeedItemDTO(*post))
}

// GET /v1/notifications
func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	req, err := listRequest(r, ForContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.feeds.ListNotifications(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnvelope(page, toNotificationDTO))
}

// GET /v1/profiles/{id}/followers et /following
func (h *handlers) listConnections(dir domain.ConnectionDirection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := listRequest(r, r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		page, err := h.feeds.ListConnections(r.Context(), dir, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toEnvelope(page, toConnectionDTO))
	}
}

// --- Helpers ---

func listRequest(r *http.Request, profileID string) (domain.ListRequest, error) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		return domain.ListRequest{}, err
	}
	return domain.ListRequest{ProfileID: profileID, Cursor: q.Get("cursor"), Limit: limit}, nil
}

// parseLimit rejects non-integers; range clamping belongs to the core.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ErrInvalidLimit
	}
	return n, nil
}
