package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"filevault/internal/api"
	"filevault/internal/models"
	"filevault/internal/objects"
)

func (s *Server) handleStoreObjects(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		form, ok := s.parseUpload(w, r)
		if !ok {
			return
		}
		defer form.RemoveAll()

		headers := form.File["file"]
		if len(headers) == 0 {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("at least one file part is required"), ErrCodeMissingRequired))
			return
		}
		temp, err := parseBoolField("temp", r.FormValue("temp"), ErrCodeInvalidArgument)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}
		noWatermark, err := parseBoolField("no_watermark", r.FormValue("no_watermark"), ErrCodeInvalidArgument)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}
		if noWatermark && !s.isAdmin(r) {
			s.writeErrorReq(w, r, http.StatusForbidden, forbidden(fmt.Errorf("no_watermark requires the admin token")))
			return
		}

		descriptions := form.Value["description"]
		items := make([]objects.BatchItem, 0, len(headers))
		files := make([]multipart.File, 0, len(headers))
		defer func() {
			for _, file := range files {
				_ = file.Close()
			}
		}()
		for i, header := range headers {
			file, err := header.Open()
			if err != nil {
				s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("open part %d: %w", i, err), ErrCodeInvalidMultipart))
				return
			}
			files = append(files, file)
			items = append(items, objects.BatchItem{
				Reader: file,
				Input: objects.StoreInput{
					Filename:    header.Filename,
					ContentType: header.Header.Get("Content-Type"),
					Description: formValueAt(descriptions, i),
					OwnerType:   strings.TrimSpace(r.FormValue("owner_type")),
					OwnerID:     strings.TrimSpace(r.FormValue("owner_id")),
					Temp:        temp,
					NoWatermark: noWatermark,
				},
			})
		}

		results := s.service.StoreBatch(r.Context(), items)
		resp := api.StoreResponse{Items: make([]api.StoreItemResponse, 0, len(results))}
		var firstErr error
		for _, result := range results {
			item := api.StoreItemResponse{Index: result.Index, Filename: headers[result.Index].Filename}
			if result.Err != nil {
				classified := classifyServiceError(result.Err)
				status := httpStatusFromError(classified)
				item.Error = classified.Error()
				if status >= 500 {
					s.log().Error("store item failed", "index", result.Index, "error", result.Err)
					item.Error = "internal error"
				}
				item.Code = errorCode(status, classified)
				item.ErrorCode = errorNumericCode(status, classified)
				resp.Failed++
				if firstErr == nil {
					firstErr = classified
				}
			} else {
				obj := objectResponse(*result.Object)
				item.Object = &obj
				resp.Stored++
			}
			resp.Items = append(resp.Items, item)
		}

		if resp.Stored == 0 && firstErr != nil {
			s.writeErrorReq(w, r, httpStatusFromError(firstErr), firstErr)
			return
		}
		s.writeJSON(w, http.StatusCreated, resp)
	})
}

func (s *Server) handleReplaceContent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		form, ok := s.parseUpload(w, r)
		if !ok {
			return
		}
		defer form.RemoveAll()

		file, _, err := r.FormFile("file")
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("file is required"), ErrCodeMissingRequired))
			return
		}
		defer file.Close()

		obj, err := s.service.ReplaceBody(r.Context(), id, file)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, objectResponse(obj))
	})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	obj, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, objectResponse(obj))
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list, err := s.service.ListByOwner(r.Context(), query.Get("owner_type"), query.Get("owner_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := make([]api.ObjectResponse, 0, len(list))
	for _, obj := range list {
		resp = append(resp, objectResponse(obj))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateObject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.ObjectUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if req.NoWatermark != nil && !s.isAdmin(r) {
		s.writeErrorReq(w, r, http.StatusForbidden, forbidden(fmt.Errorf("no_watermark requires the admin token")))
		return
	}

	obj, err := s.service.UpdateMetadata(r.Context(), id, objects.MetadataPatch{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Description: req.Description,
		OwnerType:   req.OwnerType,
		OwnerID:     req.OwnerID,
		NoWatermark: req.NoWatermark,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, objectResponse(obj))
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	if err := s.service.SoftDelete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) handleObjectDimensions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	crop, err := queryBool(r, "crop")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	format := r.URL.Query().Get("format")
	box, err := s.service.ResizedDimensions(r.Context(), id, format, crop)
	if err != nil {
		s.writeServeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DimensionsResponse{
		ID:     id,
		Format: format,
		Crop:   crop,
		Width:  box.Width,
		Height: box.Height,
	})
}

func (s *Server) handleObjectDataURI(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	uri, err := s.service.DataURI(r.Context(), id)
	if err != nil {
		s.writeServeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DataURIResponse{ID: id, DataURI: uri})
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MultipartMaxMemory); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return nil, false
	}
	return r.MultipartForm, true
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidMultipart)
}

func objectResponse(obj models.Object) api.ObjectResponse {
	return api.ObjectResponse{Object: obj, URL: servePath(obj)}
}

func servePath(obj models.Object) string {
	if obj.IsImage() {
		return "/serve-image/" + obj.ID
	}
	return "/serve/" + obj.ID
}

// formValueAt returns the i-th value, or the only value when one was sent
// for all parts.
func formValueAt(values []string, i int) string {
	switch {
	case i < len(values):
		return values[i]
	case len(values) == 1:
		return values[0]
	default:
		return ""
	}
}
