package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"flacshare/logger"
	"flacshare/model"
	"flacshare/storage"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// ListTracksHandler 分页列出曲目，mine=true 时只列出自己上传的
func (h *Handler) ListTracksHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	q := r.URL.Query()
	if q.Get("mine") == "true" {
		records, err := h.catalog.ListByUploader(r.Context(), userID)
		if err != nil {
			logger.Error("[Catalog] 查询用户曲目失败", logger.Int64("userId", userID), logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to list tracks")
			return
		}
		writeJSON(w, http.StatusOK, records)
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	records, err := h.catalog.List(r.Context(), limit, offset)
	if err != nil {
		logger.Error("[Catalog] 查询曲目失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to list tracks")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetTrackHandler 获取单首曲目
func (h *Handler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	record, err := h.catalog.GetByID(r.Context(), id)
	if err != nil {
		logger.Error("[Catalog] 查询曲目失败", logger.Int64("trackId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to get track")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// UpdateTrackHandler 修改自己曲目的标题、艺术家、专辑或歌词
func (h *Handler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	var changes model.TrackUpdate
	dec := json.NewDecoder(io.LimitReader(r.Body, formOverhead))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&changes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if blank := changes.BlankRequired(); len(blank) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "title and artist cannot be empty", Fields: blank})
		return
	}

	if _, ok := h.ownedTrack(w, r, userID, id); !ok {
		return
	}

	record, err := h.catalog.Update(r.Context(), id, changes)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("[Catalog] 更新曲目失败", logger.Int64("trackId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to update track")
		return
	}

	logger.Info("[Catalog] 曲目已更新", logger.Int64("trackId", id), logger.Int64("userId", userID))
	writeJSON(w, http.StatusOK, record)
}

// DeleteTrackHandler 删除自己的曲目：先删记录，再删对象存储中的音频与封面
func (h *Handler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	record, ok := h.ownedTrack(w, r, userID, id)
	if !ok {
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("[Catalog] 删除曲目失败", logger.Int64("trackId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete track")
		return
	}

	// 记录已删除，客户端断开也要把对象清理完
	orphans := h.deleteTrackBlobs(context.WithoutCancel(r.Context()), record)

	logger.Info("[Catalog] 曲目已删除",
		logger.Int64("trackId", id),
		logger.Int64("userId", userID),
		logger.Int("orphans", orphans))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Track deleted successfully",
		"orphans": orphans,
	})
}

// ownedTrack loads the track and writes 404/403 when it is missing or foreign.
func (h *Handler) ownedTrack(w http.ResponseWriter, r *http.Request, userID, id int64) (*model.CatalogRecord, bool) {
	record, err := h.catalog.GetByID(r.Context(), id)
	if err != nil {
		logger.Error("[Catalog] 查询曲目失败", logger.Int64("trackId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to get track")
		return nil, false
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return nil, false
	}
	if record.UploaderID != userID {
		logger.Warn("[Catalog] 用户尝试操作不属于自己的曲目",
			logger.Int64("userId", userID),
			logger.Int64("trackId", id),
			logger.Int64("uploaderId", record.UploaderID))
		writeError(w, http.StatusForbidden, "Forbidden")
		return nil, false
	}
	return record, true
}

// deleteTrackBlobs removes the record's audio and cover objects and returns how
// many could not be deleted. Those are recorded in the orphan ledger.
func (h *Handler) deleteTrackBlobs(ctx context.Context, record *model.CatalogRecord) int {
	type blob struct {
		ns  storage.Namespace
		key string
	}
	blobs := []blob{{storage.NamespaceAudio, record.AudioKey}}
	// 占位封面没有对象
	if record.CoverKey != "" {
		blobs = append(blobs, blob{storage.NamespaceCover, record.CoverKey})
	}

	failed := 0
	for _, b := range blobs {
		if b.key == "" {
			continue
		}
		err := h.blobs.Delete(ctx, b.ns, b.key)
		if err == nil {
			continue
		}
		failed++
		logger.Warn("[Catalog] 删除曲目对象失败，对象可能残留",
			logger.Int64("trackId", record.ID),
			logger.String("namespace", string(b.ns)),
			logger.String("key", b.key),
			logger.ErrorField(err))
		if h.orphans == nil {
			continue
		}
		if recErr := h.orphans.RecordOrphan(ctx, b.ns, b.key, err); recErr != nil {
			logger.Warn("[Catalog] 记录残留对象失败", logger.String("key", b.key), logger.ErrorField(recErr))
		}
	}
	return failed
}

// PlayTrackHandler 播放计数加一
func (h *Handler) PlayTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	plays, err := h.catalog.IncrementPlays(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("[Catalog] 更新播放数失败", logger.Int64("trackId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to record play")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": id, "plays": plays})
}

// UserStatsHandler 返回当前用户的曲目数与总播放数
func (h *Handler) UserStatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	stats, err := h.catalog.UploaderStats(r.Context(), userID)
	if err != nil {
		logger.Error("[Catalog] 统计失败", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
