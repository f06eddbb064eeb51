package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flacshare/core/audio"
	"flacshare/model"
	"flacshare/storage"
)

type storeCall struct {
	Op  string
	NS  storage.Namespace
	Key string
}

// callLog is shared by the fake stores so tests can assert cross-store ordering.
type callLog struct {
	mu    sync.Mutex
	calls []storeCall
}

func (l *callLog) add(c storeCall) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

func (l *callLog) all() []storeCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]storeCall(nil), l.calls...)
}

func (l *callLog) ops() []string {
	var out []string
	for _, c := range l.all() {
		if c.NS == "" {
			out = append(out, c.Op)
			continue
		}
		out = append(out, c.Op+":"+string(c.NS))
	}
	return out
}

type fakeBlobStore struct {
	log       *callLog
	putErr    map[storage.Namespace]error
	deleteErr map[storage.Namespace]error
	// block, when set, holds every Put until it is closed
	block chan struct{}

	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobStore(log *callLog) *fakeBlobStore {
	return &fakeBlobStore{
		log:       log,
		putErr:    map[storage.Namespace]error{},
		deleteErr: map[storage.Namespace]error{},
		objects:   map[string][]byte{},
	}
}

func (f *fakeBlobStore) Put(ctx context.Context, ns storage.Namespace, key, contentType string, data []byte) (string, error) {
	f.log.add(storeCall{Op: "put", NS: ns, Key: key})
	if f.block != nil {
		<-f.block
	}
	if err := f.putErr[ns]; err != nil {
		return "", err
	}
	f.mu.Lock()
	f.objects[storage.ObjectName(ns, key)] = data
	f.mu.Unlock()
	return "https://blobs.test/" + storage.ObjectName(ns, key), nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, ns storage.Namespace, key string) error {
	f.log.add(storeCall{Op: "delete", NS: ns, Key: key})
	if err := f.deleteErr[ns]; err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.objects, storage.ObjectName(ns, key))
	f.mu.Unlock()
	return nil
}

func (f *fakeBlobStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeMetadataStore struct {
	log    *callLog
	err    error
	nextID int64
	saved  []*model.CatalogRecord
}

func (f *fakeMetadataStore) Insert(ctx context.Context, record *model.CatalogRecord) (*model.CatalogRecord, error) {
	f.log.add(storeCall{Op: "insert"})
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	out := *record
	out.ID = f.nextID
	out.CreatedAt = time.Now()
	f.saved = append(f.saved, &out)
	return &out, nil
}

type fakeAnalyzer struct {
	err error
}

func (f fakeAnalyzer) Analyze(ctx context.Context, file *model.FileHandle) (*audio.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	guess := audio.GuessFromFilename(file.Name)
	return &audio.Analysis{
		Stats: model.AudioStats{
			DurationSeconds: 180.5,
			SampleRateHz:    44100,
			ChannelCount:    2,
			BitrateKbps:     900,
			Format:          audio.FormatFromFilename(file.Name),
		},
		Fields: model.TrackFields{Title: guess.Title, Artist: guess.Artist, Album: audio.DefaultAlbum},
	}, nil
}

type orphanEntry struct {
	NS  storage.Namespace
	Key string
}

type fakeOrphans struct {
	mu      sync.Mutex
	entries []orphanEntry
}

func (f *fakeOrphans) RecordOrphan(ctx context.Context, ns storage.Namespace, key string, cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, orphanEntry{NS: ns, Key: key})
	return nil
}

var errStore = errors.New("store unavailable")

type harness struct {
	log         *callLog
	blobs       *fakeBlobStore
	records     *fakeMetadataStore
	orphans     *fakeOrphans
	coordinator *Coordinator
}

func newHarness(opts ...Option) *harness {
	log := &callLog{}
	h := &harness{
		log:     log,
		blobs:   newFakeBlobStore(log),
		records: &fakeMetadataStore{log: log},
		orphans: &fakeOrphans{},
	}
	opts = append([]Option{WithOrphanRecorder(h.orphans), WithPlaceholderCover("https://placeholder.test/cover.jpg")}, opts...)
	h.coordinator = NewCoordinator(fakeAnalyzer{}, h.blobs, h.records, opts...)
	return h
}

func audioFile(name string) *model.FileHandle {
	return &model.FileHandle{Name: name, ContentType: "audio/flac", Data: []byte(fmt.Sprintf("pcm:%s", name))}
}

func coverFile() *model.FileHandle {
	return &model.FileHandle{Name: "front.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")}
}
