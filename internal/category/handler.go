package category

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gallery/service/internal/ordering"
	"github.com/gallery/service/internal/request"
	"github.com/gallery/service/internal/response"
)

// Handler holds HTTP handlers for category endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new category Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List godoc
//
//	@Summary		List categories
//	@Description	Returns categories ordered by displayOrder. With menu=true only categories shown in the menu are returned.
//	@Tags			categories
//	@Produce		json
//	@Param			menu	query		bool	false	"Only categories shown in the menu"
//	@Success		200		{object}	response.Envelope{data=[]Category}
//	@Failure		500		{object}	response.Envelope
//	@Router			/categories [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.List(r.Context(), r.URL.Query().Get("menu") == "true")
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, cats)
}

// Get godoc
//
//	@Summary		Get category
//	@Tags			categories
//	@Produce		json
//	@Param			id	path		string	true	"Category ID"
//	@Success		200	{object}	response.Envelope{data=Category}
//	@Failure		404	{object}	response.Envelope
//	@Router			/categories/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, c)
}

// GetBySlug godoc
//
//	@Summary		Get category by slug
//	@Tags			categories
//	@Produce		json
//	@Param			slug	path		string	true	"Category slug"
//	@Success		200		{object}	response.Envelope{data=Category}
//	@Failure		404		{object}	response.Envelope
//	@Router			/categories/slug/{slug} [get]
func (h *Handler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, c)
}

// Create godoc
//
//	@Summary		Create category
//	@Description	Creates a category. The slug is derived from the name when omitted; displayOrder defaults to the end of the list.
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateInput	true	"Category"
//	@Success		201		{object}	response.Envelope{data=Category}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Router			/categories [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := request.DecodeJSON(r, &in); err != nil {
		response.Err(w, err)
		return
	}
	c, err := h.svc.Create(r.Context(), in)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.Created(w, c)
}

// Update godoc
//
//	@Summary		Update category
//	@Description	Partial update; only provided fields change. Renaming does not change the slug.
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string		true	"Category ID"
//	@Param			request	body		UpdateInput	true	"Fields to change"
//	@Success		200		{object}	response.Envelope{data=Category}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/categories/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := request.DecodeJSON(r, &in); err != nil {
		response.Err(w, err)
		return
	}
	c, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, c)
}

// Delete godoc
//
//	@Summary		Delete category
//	@Description	Refused with CONSTRAINT_VIOLATION while any album belongs to the category.
//	@Tags			categories
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Category ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		400	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/categories/{id} [delete]
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
//	@Summary		Reorder categories
//	@Description	Applies the given displayOrder values in one transaction. Any unknown id rejects the whole batch.
//	@Tags			categories
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		ordering.Request	true	"New ordering"
//	@Success		200		{object}	response.Envelope{data=[]Category}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/categories/order/update [patch]
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
	cats, err := h.svc.List(r.Context(), false)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, cats)
}
