package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"flacshare/core/upload"
	"flacshare/logger"
	"flacshare/model"

	"github.com/gorilla/mux"
)

// multipart 表单除文件本身外的余量
const formOverhead = 1 << 20

type uploadResponse struct {
	ID string `json:"id"`
	upload.Snapshot
}

type updateFieldRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StartUploadHandler 接收音频文件并完成分析，返回 session id
func (h *Handler) StartUploadHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	file, status, err := readFormFile(w, r, "file", h.cfg.MaxAudioSize)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	id, snap, err := h.uploads.Start(r.Context(), userID, file)
	if err != nil {
		logger.Warn("[Upload] 音频分析失败",
			logger.Int64("userId", userID),
			logger.String("file", file.Name),
			logger.ErrorField(err))
		writeUploadError(w, err)
		return
	}

	logger.Info("[Upload] 新建上传 session",
		logger.Int64("userId", userID),
		logger.String("sessionId", id),
		logger.String("file", file.Name))
	writeJSON(w, http.StatusCreated, uploadResponse{ID: id, Snapshot: snap})
}

// GetUploadHandler 返回 session 快照
func (h *Handler) GetUploadHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id := mux.Vars(r)["id"]

	snap, err := h.uploads.Get(userID, id)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{ID: id, Snapshot: snap})
}

// UpdateFieldHandler 修改单个字段
func (h *Handler) UpdateFieldHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id := mux.Vars(r)["id"]

	var req updateFieldRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, formOverhead)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := h.uploads.UpdateField(userID, id, req.Name, req.Value)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{ID: id, Snapshot: snap})
}

// SetCoverHandler 设置封面；不带 cover 字段或空请求体时清除封面
func (h *Handler) SetCoverHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id := mux.Vars(r)["id"]

	cover, status, err := readFormFile(w, r, "cover", h.cfg.MaxCoverSize)
	if err != nil && !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, status, err.Error())
		return
	}

	snap, err := h.uploads.SetCover(userID, id, cover)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{ID: id, Snapshot: snap})
}

// SubmitUploadHandler 提交 session，成功后返回目录记录
func (h *Handler) SubmitUploadHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id := mux.Vars(r)["id"]

	record, err := h.uploads.Submit(r.Context(), userID, id)
	if err != nil {
		logger.Warn("[Upload] 提交失败",
			logger.Int64("userId", userID),
			logger.String("sessionId", id),
			logger.ErrorField(err))
		writeUploadError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// ResetUploadHandler 丢弃 session
func (h *Handler) ResetUploadHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.uploads.Reset(userID, mux.Vars(r)["id"]); err != nil {
		writeUploadError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readFormFile reads one multipart file of at most limit bytes. A missing
// field is returned as http.ErrMissingFile.
func readFormFile(w http.ResponseWriter, r *http.Request, field string, limit int64) (*model.FileHandle, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds %d bytes", limit)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}

	f, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, http.StatusBadRequest, http.ErrMissingFile
		}
		return nil, http.StatusBadRequest, fmt.Errorf("invalid %s field: %w", field, err)
	}
	defer f.Close()

	if header.Size > limit {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds %d bytes", limit)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("failed to read %s: %w", field, err)
	}

	return &model.FileHandle{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, http.StatusOK, nil
}

// writeUploadError maps coordinator errors to status codes.
func writeUploadError(w http.ResponseWriter, err error) {
	var (
		validationErr *upload.ValidationError
		analysisErr   *upload.AnalysisError
		uploadErr     *upload.UploadError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Fields: validationErr.Fields})
	case errors.As(err, &analysisErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &uploadErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:   fmt.Sprintf("upload failed at %s step, nothing was saved", uploadErr.Stage),
			Stage:   string(uploadErr.Stage),
			Orphans: len(uploadErr.Warnings),
		})
	case errors.Is(err, upload.ErrUnsupportedFile), errors.Is(err, upload.ErrUnsupportedCover):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, upload.ErrUnknownField):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, upload.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, upload.ErrInvalidState), errors.Is(err, upload.ErrSessionReset):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("[Upload] 未预期的错误", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
