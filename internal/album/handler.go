package album

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gallery/service/internal/auth"
	"github.com/gallery/service/internal/ordering"
	"github.com/gallery/service/internal/request"
	"github.com/gallery/service/internal/response"
)

// Handler holds HTTP handlers for album endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new album Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List godoc
//
//	@Summary		List albums
//	@Description	Returns albums ordered by category and displayOrder. Hidden albums are omitted unless an authenticated caller passes includeHidden=true.
//	@Tags			albums
//	@Produce		json
//	@Param			categoryId		query		string	false	"Only albums of this category"
//	@Param			includeHidden	query		bool	false	"Include hidden albums"
//	@Success		200				{object}	response.Envelope{data=[]Album}
//	@Failure		500				{object}	response.Envelope
//	@Router			/albums [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, Filter{CategoryID: r.URL.Query().Get("categoryId"), IncludeHidden: includeHidden(r)})
}

// ListByCategory godoc
//
//	@Summary		List albums of a category
//	@Tags			albums
//	@Produce		json
//	@Param			categoryId		path		string	true	"Category ID"
//	@Param			includeHidden	query		bool	false	"Include hidden albums"
//	@Success		200				{object}	response.Envelope{data=[]Album}
//	@Router			/albums/category/{categoryId} [get]
func (h *Handler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, Filter{CategoryID: chi.URLParam(r, "categoryId"), IncludeHidden: includeHidden(r)})
}

// includeHidden honours ?includeHidden=true for authenticated callers only.
func includeHidden(r *http.Request) bool {
	if r.URL.Query().Get("includeHidden") != "true" {
		return false
	}
	_, ok := auth.ClaimsFrom(r.Context())
	return ok
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, f Filter) {
	albums, err := h.svc.List(r.Context(), f)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, albums)
}

// Get godoc
//
//	@Summary		Get album
//	@Tags			albums
//	@Produce		json
//	@Param			id	path		string	true	"Album ID"
//	@Success		200	{object}	response.Envelope{data=Album}
//	@Failure		404	{object}	response.Envelope
//	@Router			/albums/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, a)
}

// GetBySlug godoc
//
//	@Summary		Get album by slug
//	@Tags			albums
//	@Produce		json
//	@Param			slug	path		string	true	"Album slug"
//	@Success		200		{object}	response.Envelope{data=Album}
//	@Failure		404		{object}	response.Envelope
//	@Router			/albums/slug/{slug} [get]
func (h *Handler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, a)
}

// Create godoc
//
//	@Summary		Create album
//	@Description	Creates an album in an existing category. displayOrder defaults to the end of that category.
//	@Tags			albums
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateInput	true	"Album"
//	@Success		201		{object}	response.Envelope{data=Album}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/albums [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := request.DecodeJSON(r, &in); err != nil {
		response.Err(w, err)
		return
	}
	a, err := h.svc.Create(r.Context(), in)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.Created(w, a)
}

// Update godoc
//
//	@Summary		Update album
//	@Tags			albums
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string		true	"Album ID"
//	@Param			request	body		UpdateInput	true	"Fields to change"
//	@Success		200		{object}	response.Envelope{data=Album}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/albums/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := request.DecodeJSON(r, &in); err != nil {
		response.Err(w, err)
		return
	}
	a, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, a)
}

// SetCover godoc
//
//	@Summary		Set album cover
//	@Description	Sets the cover image URL; null clears it.
//	@Tags			albums
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string		true	"Album ID"
//	@Param			request	body		CoverInput	true	"Cover"
//	@Success		200		{object}	response.Envelope{data=Album}
//	@Failure		404		{object}	response.Envelope
//	@Router			/albums/{id}/cover [patch]
func (h *Handler) SetCover(w http.ResponseWriter, r *http.Request) {
	var in CoverInput
	if err := request.DecodeJSON(r, &in); err != nil {
		response.Err(w, err)
		return
	}
	a, err := h.svc.SetCover(r.Context(), chi.URLParam(r, "id"), in.CoverImageURL)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, a)
}

// Delete godoc
//
//	@Summary		Delete album
//	@Description	Deletes the album and its photos. Their stored images are purged in the background if immediate removal fails.
//	@Tags			albums
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Album ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/albums/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, map[string]string{"id": id})
}

// Reorder godoc
//
//	@Summary		Reorder albums
//	@Description	Applies the given displayOrder values in one transaction. Any unknown id rejects the whole batch.
//	@Tags			albums
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		ordering.Request	true	"New ordering"
//	@Success		200		{object}	response.Envelope
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/albums/order/update [patch]
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req ordering.Request
	if err := request.DecodeJSON(r, &req); err != nil {
		response.Err(w, err)
		return
	}
	if err := h.svc.Reorder(r.Context(), req.Items); err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, map[string]int{"updated": len(req.Items)})
}
