package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dunamismax/photoresize/internal/domain"
	"github.com/dunamismax/photoresize/internal/editor"
	"github.com/dunamismax/photoresize/internal/storage"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string]storage.Object
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string]storage.Object{}}
}

func (f *fakeObjectStore) ReadObject(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return obj.Data, nil
}

func (f *fakeObjectStore) PutObject(_ context.Context, obj storage.Object) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[obj.Key] = obj
	return nil
}

func (f *fakeObjectStore) PresignedGetURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

func TestObjectStoreProcessorRoundTrip(t *testing.T) {
	objects := newFakeObjectStore()
	objects.objects["uploads/job-9/source.png"] = storage.Object{Data: buildTestPNG(t, 120, 60)}

	processor, err := NewObjectStoreProcessor(
		ObjectStoreFetcher{Storage: objects},
		ObjectStoreEmitter{Storage: objects, OutputPrefix: "/renders/", DownloadTTL: time.Minute},
		editor.WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }),
	)
	if err != nil {
		t.Fatalf("new object store processor: %v", err)
	}

	result, err := processor.Process(context.Background(), Request{
		JobID:      "job-9",
		SourceType: SourceTypeS3Presigned,
		ObjectKey:  "uploads/job-9/source.png",
		Recipe: domain.Recipe{Steps: []domain.PipelineStep{
			{ID: "square", Action: domain.ActionCrop, Ratio: "1:1"},
		}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("expected one output, got %d", len(result.Outputs))
	}

	out := result.Outputs[0]
	wantKey := "renders/job-9/square_cropped-1_1-1700000000000.png"
	if out.Path != wantKey {
		t.Fatalf("unexpected object key %q", out.Path)
	}
	if out.URL != "https://objects.test/"+wantKey {
		t.Fatalf("unexpected download url %q", out.URL)
	}
	if out.Width != 60 || out.Height != 60 {
		t.Fatalf("expected 60x60 crop, got %dx%d", out.Width, out.Height)
	}

	stored := objects.objects[wantKey]
	if stored.ContentType != "image/png" || stored.Filename != out.Filename {
		t.Fatalf("unexpected stored object %+v", stored)
	}
	if stored.Metadata["job-id"] != "job-9" || stored.Metadata["size"] != "60x60" {
		t.Fatalf("unexpected metadata %v", stored.Metadata)
	}
}

func TestObjectStoreFetcherRejectsLocalFiles(t *testing.T) {
	_, err := ObjectStoreFetcher{Storage: newFakeObjectStore()}.Fetch(context.Background(), Request{
		SourceType: SourceTypeLocalFile,
		ObjectKey:  "/tmp/x.png",
	})
	if !errors.Is(err, ErrUnsupportedSourceType) {
		t.Fatalf("expected ErrUnsupportedSourceType, got %v", err)
	}
}
