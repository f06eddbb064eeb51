package upload

import (
	"context"
	"errors"
	"strings"
	"time"

	"flacshare/logger"
	"flacshare/model"
	"flacshare/storage"

	"go.uber.org/zap"
)

// DefaultAlbum is stored when the album field is left blank at commit time.
const DefaultAlbum = "Unknown Album"

// Coordinator 驱动 session 完成分析与提交。
// 提交顺序固定为 音频 -> 封面(可选) -> 元数据，任一步失败即按相反顺序补偿。
type Coordinator struct {
	analyzer         Analyzer
	blobs            BlobStore
	records          MetadataStore
	orphans          OrphanRecorder
	placeholderCover string
	clock            *keyClock
	log              *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithOrphanRecorder records blobs whose compensating delete failed.
func WithOrphanRecorder(r OrphanRecorder) Option {
	return func(c *Coordinator) {
		c.orphans = r
	}
}

// WithPlaceholderCover sets the cover URL used when no cover is uploaded.
func WithPlaceholderCover(url string) Option {
	return func(c *Coordinator) {
		c.placeholderCover = url
	}
}

// WithClock overrides the time source used for storage keys.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.clock = newKeyClock(now)
	}
}

// DefaultPlaceholderCover is used unless WithPlaceholderCover overrides it.
const DefaultPlaceholderCover = "https://picsum.photos/seed/flacshare/400/400"

// NewCoordinator wires the coordinator to its collaborators.
func NewCoordinator(analyzer Analyzer, blobs BlobStore, records MetadataStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		analyzer:         analyzer,
		blobs:            blobs,
		records:          records,
		placeholderCover: DefaultPlaceholderCover,
		clock:            newKeyClock(time.Now),
		log:              logger.Named("upload"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSession creates a session for uploaderID and analyzes file into it.
// On analysis failure the returned error is *AnalysisError and no session is returned.
func (c *Coordinator) StartSession(ctx context.Context, uploaderID int64, file *model.FileHandle) (*Session, error) {
	s := NewSession(uploaderID)
	if err := c.SelectFile(ctx, s, file); err != nil {
		return nil, err
	}
	return s, nil
}

// SelectFile runs analysis for an Idle session: Idle -> Analyzing -> Editing,
// or back to Idle with the source discarded when analysis fails.
func (c *Coordinator) SelectFile(ctx context.Context, s *Session, file *model.FileHandle) error {
	gen, err := s.beginAnalysis(file)
	if err != nil {
		return err
	}

	result, err := c.analyzer.Analyze(ctx, file)
	if err != nil {
		s.failAnalysis(gen)
		var analysisErr *AnalysisError
		if !errors.As(err, &analysisErr) {
			err = &AnalysisError{File: file.Name, Err: err}
		}
		return err
	}
	return s.finishAnalysis(gen, result)
}

// Commit persists the session: audio blob, optional cover blob, then the catalog
// record. On success the session is Completed. On failure everything already
// written is compensated in reverse order and the session goes back to Editing
// with its fields intact.
func (c *Coordinator) Commit(ctx context.Context, s *Session) (*model.CatalogRecord, error) {
	in, err := s.beginCommit()
	if err != nil {
		return nil, err
	}

	record, err := c.commit(ctx, in)
	if err != nil {
		s.failCommit(in.generation)
		return nil, err
	}
	s.completeCommit(in.generation, record)
	return record, nil
}

func (c *Coordinator) commit(ctx context.Context, in *commitInput) (*model.CatalogRecord, error) {
	started := time.Now()
	ts := c.clock.next()
	plan := &commitPlan{}

	log := c.log.With(zap.Int64("uploaderId", in.uploaderID), zap.Int64("commitTs", ts))

	// 1. 音频
	audioKey := StorageKey(in.uploaderID, ts, in.source.Name)
	audioURL, err := c.blobs.Put(ctx, storage.NamespaceAudio, audioKey,
		storage.ContentTypeFor(in.source.Name, in.source.ContentType), in.source.Data)
	if err != nil {
		return nil, c.abort(ctx, log, plan, StageAudio, err)
	}
	plan.push(Resource{Kind: KindAudio, Key: audioKey}, func(ctx context.Context) error {
		return c.blobs.Delete(ctx, storage.NamespaceAudio, audioKey)
	})
	log.Info("音频上传成功", zap.String("key", audioKey), zap.Int64("size", in.source.Size()))

	// 2. 封面，缺省时使用占位图且不入栈
	coverURL, coverKey := c.placeholderCover, ""
	if in.cover != nil {
		key := StorageKey(in.uploaderID, ts, in.cover.Name)
		url, err := c.blobs.Put(ctx, storage.NamespaceCover, key,
			storage.ContentTypeFor(in.cover.Name, in.cover.ContentType), in.cover.Data)
		if err != nil {
			return nil, c.abort(ctx, log, plan, StageCover, err)
		}
		plan.push(Resource{Kind: KindCover, Key: key}, func(ctx context.Context) error {
			return c.blobs.Delete(ctx, storage.NamespaceCover, key)
		})
		coverURL, coverKey = url, key
		log.Info("封面上传成功", zap.String("key", key))
	}

	// 3. 元数据
	album := strings.TrimSpace(in.fields.Album)
	if album == "" {
		album = DefaultAlbum
	}
	record := &model.CatalogRecord{
		Title:           strings.TrimSpace(in.fields.Title),
		Artist:          strings.TrimSpace(in.fields.Artist),
		Album:           album,
		Lyrics:          in.fields.Lyrics,
		AudioURL:        audioURL,
		CoverURL:        coverURL,
		AudioKey:        audioKey,
		CoverKey:        coverKey,
		DurationSeconds: in.stats.DurationSeconds,
		Format:          in.stats.Format,
		BitrateKbps:     in.stats.BitrateKbps,
		SampleRateHz:    in.stats.SampleRateHz,
		ChannelCount:    in.stats.ChannelCount,
		UploaderID:      in.uploaderID,
		PlayCount:       0,
	}
	saved, err := c.records.Insert(ctx, record)
	if err != nil {
		return nil, c.abort(ctx, log, plan, StageMetadata, err)
	}
	plan.discard()

	log.Info("上传提交完成",
		zap.Int64("recordId", saved.ID),
		zap.String("title", saved.Title),
		zap.Duration("elapsed", time.Since(started)))
	return saved, nil
}

// abort compensates everything in plan and builds the UploadError for stage.
func (c *Coordinator) abort(ctx context.Context, log *zap.Logger, plan *commitPlan, stage Stage, cause error) error {
	log.Error("上传步骤失败，开始回滚",
		zap.String("stage", string(stage)),
		zap.Int("committed", len(plan.steps)),
		zap.Error(cause))

	// 调用方取消不应阻止补偿删除
	rollbackCtx := context.WithoutCancel(ctx)
	warnings := plan.rollback(rollbackCtx)
	for _, w := range warnings {
		log.Warn("回滚删除失败，对象可能残留",
			zap.String("namespace", string(w.Namespace())),
			zap.String("key", w.Key),
			zap.Error(w.Err))
		if c.orphans == nil {
			continue
		}
		if err := c.orphans.RecordOrphan(rollbackCtx, w.Namespace(), w.Key, w.Err); err != nil {
			log.Warn("记录残留对象失败", zap.String("key", w.Key), zap.Error(err))
		}
	}

	return &UploadError{Stage: stage, Err: cause, Warnings: warnings}
}
