package photo

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/gallery/service/internal/apperr"
	"github.com/gallery/service/internal/ordering"
	"github.com/gallery/service/internal/request"
	"github.com/gallery/service/internal/response"
	"github.com/gallery/service/internal/upload"
)

// multipartSlack covers form fields and part headers on top of the file.
const multipartSlack = 1 << 20

// Handler holds HTTP handlers for photo endpoints.
type Handler struct {
	svc      *Service
	maxBytes int64
}

// NewHandler creates a new photo Handler. maxBytes caps the uploaded file.
func NewHandler(svc *Service, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = upload.DefaultMaxBytes
	}
	return &Handler{svc: svc, maxBytes: maxBytes}
}

// List godoc
//
//	@Summary	List photos
//	@Tags		photos
//	@Produce	json
//	@Success	200	{object}	response.Envelope{data=[]Photo}
//	@Router		/photos [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	photos, err := h.svc.List(r.Context())
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, photos)
}

// ListByAlbum godoc
//
//	@Summary	List photos of an album
//	@Tags		photos
//	@Produce	json
//	@Param		albumId	path		string	true	"Album ID"
//	@Success	200		{object}	response.Envelope{data=[]Photo}
//	@Failure	404		{object}	response.Envelope
//	@Router		/photos/album/{albumId} [get]
func (h *Handler) ListByAlbum(w http.ResponseWriter, r *http.Request) {
	photos, err := h.svc.ListByAlbum(r.Context(), chi.URLParam(r, "albumId"))
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, photos)
}

// Slider godoc
//
//	@Summary		List slider photos
//	@Description	Photos flagged isSliderImage whose album is visible.
//	@Tags			photos
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=[]Photo}
//	@Router			/photos/slider [get]
func (h *Handler) Slider(w http.ResponseWriter, r *http.Request) {
	photos, err := h.svc.Slider(r.Context())
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, photos)
}

// Get godoc
//
//	@Summary	Get photo
//	@Tags		photos
//	@Produce	json
//	@Param		id	path		string	true	"Photo ID"
//	@Success	200	{object}	response.Envelope{data=Photo}
//	@Failure	404	{object}	response.Envelope
//	@Router		/photos/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, p)
}

// Create godoc
//
//	@Summary		Register photo
//	@Description	Records a photo whose images are already in storage.
//	@Tags			photos
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateInput	true	"Photo"
//	@Success		201		{object}	response.Envelope{data=Photo}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/photos [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := request.DecodeJSON(r, &in); err != nil {
		response.Err(w, err)
		return
	}
	p, err := h.svc.Create(r.Context(), in)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.Created(w, p)
}

// Upload godoc
//
//	@Summary		Upload photo
//	@Description	Stores an image with its thumbnail and WebP variants and adds it to the album.
//	@Tags			photos
//	@Accept			mpfd
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file			formData	file	true	"JPEG, PNG, WebP or GIF image"
//	@Param			albumId			formData	string	true	"Album ID"
//	@Param			displayOrder	formData	int		false	"Position in the album"
//	@Param			isSliderImage	formData	bool	false	"Show in the homepage slider"
//	@Success		201				{object}	response.Envelope{data=Photo}
//	@Failure		400				{object}	response.Envelope
//	@Failure		404				{object}	response.Envelope
//	@Failure		500				{object}	response.Envelope
//	@Router			/photos/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartSlack)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			response.Err(w, apperr.Validation(
				fmt.Sprintf("file exceeds the %s limit", humanize.IBytes(uint64(h.maxBytes))),
				map[string]string{"file": "too large"},
			))
			return
		}
		response.Err(w, apperr.Validation("expected a multipart/form-data body", nil))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	in, err := parseUploadForm(r)
	if err != nil {
		response.Err(w, err)
		return
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		response.Err(w, apperr.Validation("no file uploaded", map[string]string{"file": "is required"}))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Err(w, apperr.Validation("could not read uploaded file", nil))
		return
	}

	p, err := h.svc.Upload(r.Context(), in, upload.File{
		Data:         data,
		MimeType:     upload.DetectMIME(data),
		Size:         int64(len(data)),
		OriginalName: hdr.Filename,
	})
	if err != nil {
		response.Err(w, err)
		return
	}
	response.Created(w, p)
}

func parseUploadForm(r *http.Request) (UploadInput, error) {
	in := UploadInput{AlbumID: r.FormValue("albumId")}
	if v := r.FormValue("displayOrder"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return in, apperr.Validation("invalid fields: displayOrder",
				map[string]string{"displayOrder": "must be an integer"})
		}
		in.DisplayOrder = &n
	}
	if v := r.FormValue("isSliderImage"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return in, apperr.Validation("invalid fields: isSliderImage",
				map[string]string{"isSliderImage": "must be true or false"})
		}
		in.IsSliderImage = b
	}
	return in, request.Validate(in)
}

// Update godoc
//
//	@Summary	Update photo
//	@Tags		photos
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string		true	"Photo ID"
//	@Param		request	body		UpdateInput	true	"Fields to change"
//	@Success	200		{object}	response.Envelope{data=Photo}
//	@Failure	400		{object}	response.Envelope
//	@Failure	404		{object}	response.Envelope
//	@Router		/photos/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := request.DecodeJSON(r, &in); err != nil {
		response.Err(w, err)
		return
	}
	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		response.Err(w, err)
		return
	}
	response.OK(w, p)
}

// Delete godoc
//
//	@Summary		Delete photo
//	@Description	Deletes the record. Stored images are removed now or by the purge job.
//	@Tags			photos
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Photo ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/photos/{id} [delete]
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
//	@Summary	Reorder photos
//	@Tags		photos
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		ordering.Request	true	"New ordering"
//	@Success	200		{object}	response.Envelope
//	@Failure	400		{object}	response.Envelope
//	@Failure	404		{object}	response.Envelope
//	@Router		/photos/order/update [patch]
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
