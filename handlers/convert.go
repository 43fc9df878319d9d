package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pixelharbor/imageconvbackend/config"
	"github.com/pixelharbor/imageconvbackend/conversion"
	"github.com/pixelharbor/imageconvbackend/media"
	"github.com/pixelharbor/imageconvbackend/models"
)

const defaultQuality = 85

// ConvertHandler serves the conversion endpoint and the supported
// formats listing.
type ConvertHandler struct {
	Svc   *conversion.Service
	Store media.Store
	Cfg   config.Config
}

// Convert handles POST /api/image/convert: multipart file + form
// params, responding with the converted bytes or a structured error.
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(h.Cfg.MaxUploadSize); err != nil {
		WriteAPIError(w, http.StatusRequestEntityTooLarge, "file_too_large",
			"upload exceeds the maximum allowed size")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "missing_file", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if !h.Cfg.IsAllowedExtension(ext) {
		WriteAPIError(w, http.StatusBadRequest, "invalid_extension",
			"source file type is not allowed: "+ext)
		return
	}

	params, errCode, errDetail := parseProcessingParams(r)
	if errCode != "" {
		WriteAPIError(w, http.StatusBadRequest, errCode, errDetail)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "read_failed", "failed to read uploaded file")
		return
	}

	user := UserFromContext(r.Context())

	record, err := h.Svc.Convert(r.Context(), user, data, filepath.Base(header.Filename), params)
	if err != nil {
		var validationErr *conversion.ValidationError
		var permissionErr *conversion.PermissionDeniedError
		switch {
		case errors.As(err, &validationErr):
			WriteAPIError(w, http.StatusBadRequest, "validation_failed", validationErr.Detail)
		case errors.As(err, &permissionErr):
			WriteAPIError(w, http.StatusForbidden, "permission_denied", permissionErr.Reason)
		default:
			// anonymous failures and infrastructure faults; the detail
			// is logged server-side, the client gets a generic message
			log.Printf("handlers.convert: conversion error: %v", err)
			WriteAPIError(w, http.StatusUnprocessableEntity, "conversion_failed", "conversion failed")
		}
		return
	}

	if !record.IsSuccess() {
		// the FAILED record is persisted; the detailed cause stays in
		// its error field, not in the response
		w.Header().Set("X-Conversion-Id", strconv.FormatUint(uint64(record.ID), 10))
		WriteAPIError(w, http.StatusUnprocessableEntity, "conversion_failed", "conversion failed")
		return
	}

	h.streamResult(w, record, params, user == nil)
}

// streamResult writes the converted file back to the caller. Anonymous
// results live in the temp namespace and are removed once streamed.
func (h *ConvertHandler) streamResult(w http.ResponseWriter, record *models.ConversionRecord, params media.ProcessingParams, transient bool) {
	if record.ConvertedFilePath == nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "converted file missing")
		return
	}
	outPath := *record.ConvertedFilePath

	reader, info, err := h.Store.Get(outPath)
	if err != nil {
		log.Printf("handlers.convert: failed to open converted file %q: %v", outPath, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "failed to read converted file")
		return
	}
	defer reader.Close()

	if transient {
		defer func() {
			if record.OriginalFilePath != nil {
				_ = h.Store.Delete(*record.OriginalFilePath)
			}
			_ = h.Store.Delete(outPath)
		}()
	}

	downloadName := outputDownloadName(record.OriginalFilename, params.TargetFormat)

	w.Header().Set("Content-Type", params.TargetFormat.MimeType())
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	if record.ID != 0 {
		w.Header().Set("X-Conversion-Id", strconv.FormatUint(uint64(record.ID), 10))
	}

	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("handlers.convert: failed streaming converted file %q: %v", outPath, err)
	}
}

// Formats handles GET /api/image/formats.
func (h *ConvertHandler) Formats(w http.ResponseWriter, r *http.Request) {
	type formatInfo struct {
		Format      string `json:"format"`
		Extension   string `json:"extension"`
		Lossy       bool   `json:"lossy"`
		Transparent bool   `json:"supports_transparency"`
	}

	formats := []media.TargetFormat{
		media.FormatJPEG, media.FormatPNG, media.FormatWEBP,
		media.FormatBMP, media.FormatTIFF, media.FormatGIF,
	}
	payload := make([]formatInfo, 0, len(formats))
	for _, f := range formats {
		payload = append(payload, formatInfo{
			Format:      strings.ToUpper(string(f)),
			Extension:   f.Extension(),
			Lossy:       f.Lossy(),
			Transparent: f.SupportsTransparency(),
		})
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"formats": payload})
}

// parseProcessingParams maps form fields onto ProcessingParams,
// returning an error code/detail pair on bad input.
func parseProcessingParams(r *http.Request) (media.ProcessingParams, string, string) {
	var params media.ProcessingParams

	format, err := media.ParseTargetFormat(r.FormValue("target_format"))
	if err != nil {
		return params, "invalid_format", err.Error()
	}
	params.TargetFormat = format

	params.Quality = defaultQuality
	if raw := r.FormValue("quality"); raw != "" {
		quality, err := strconv.Atoi(raw)
		if err != nil || quality < 1 || quality > 100 {
			return params, "invalid_quality", "quality must be an integer between 1 and 100"
		}
		params.Quality = quality
	}

	if raw := r.FormValue("resize_width"); raw != "" {
		width, err := strconv.Atoi(raw)
		if err != nil || width <= 0 {
			return params, "invalid_resize", "resize_width must be a positive integer"
		}
		params.ResizeWidth = width
	}
	if raw := r.FormValue("resize_height"); raw != "" {
		height, err := strconv.Atoi(raw)
		if err != nil || height <= 0 {
			return params, "invalid_resize", "resize_height must be a positive integer"
		}
		params.ResizeHeight = height
	}

	if raw := r.FormValue("watermark"); raw != "" {
		watermark, err := strconv.ParseBool(raw)
		if err != nil {
			return params, "invalid_watermark", "watermark must be a boolean"
		}
		params.Watermark = watermark
	}

	return params, "", ""
}

func outputDownloadName(originalName string, format media.TargetFormat) string {
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	if base == "" || base == "." {
		base = "converted"
	}
	return base + "_converted." + format.Extension()
}
