package service_test

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/spinvfx/spinfab/pkg/conn/catalog"
	catalogmock "github.com/spinvfx/spinfab/pkg/conn/catalog/mock"
	"github.com/spinvfx/spinfab/pkg/domain/level"
	levelmock "github.com/spinvfx/spinfab/pkg/domain/level/db/mock"
	"github.com/spinvfx/spinfab/pkg/domain/level/service"
	"github.com/spinvfx/spinfab/pkg/utils/try"
)

func fixtureCatalog() *catalogmock.Catalog {
	cat := catalogmock.New()
	cat.Impl.FindProjects = func(context.Context, []string, []int) ([]catalog.Project, error) {
		return []catalog.Project{
			{ID: 101, Name: "lookdown", Division: "television"},
			{ID: 102, Name: "bigmovie", Division: "Feature Film"},
			{ID: 103, Name: "mystery", Division: "videogames"},
		}, nil
	}
	cat.Impl.FindProjectAssets = func(_ context.Context, projectID int) ([]catalog.Asset, error) {
		if projectID == 101 {
			return []catalog.Asset{
				{ID: 1, Code: "car01", AssetType: "vehicle"},
				{ID: 2, Code: "truck02", AssetType: "vehicle"},
				{ID: 3, Code: "hero", AssetType: "character"},
			}, nil
		}
		return []catalog.Asset{}, nil
	}
	cat.Impl.FindProjectSequences = func(_ context.Context, projectID int) ([]catalog.Sequence, error) {
		if projectID == 101 {
			return []catalog.Sequence{
				{ID: 11, Code: "sq010", Shots: []catalog.Shot{{ID: 21, Code: "0010"}}},
			}, nil
		}
		return []catalog.Sequence{}, nil
	}
	return cat
}

func quietLogger() *log.Logger {
	return log.New(os.Stderr, "", 0)
}

func TestSyncService_BuildRoot(t *testing.T) {
	store := levelmock.New()
	svc := service.NewSyncService(store, fixtureCatalog(), t.TempDir(), nil, nil, "", quietLogger())

	root := try.To(svc.BuildRoot(context.Background())).OrFatal(t)

	// the project with an unknown division is dropped
	if root.ProjectsCount() != 2 {
		t.Errorf("unexpected projects: %d", root.ProjectsCount())
	}
	if root.AssetTypesCount() != 2 {
		t.Errorf("unexpected asset types: %d", root.AssetTypesCount())
	}
	if root.AssetsCount() != 3 {
		t.Errorf("unexpected assets: %d", root.AssetsCount())
	}
	if root.ShotsCount() != 1 {
		t.Errorf("unexpected shots: %d", root.ShotsCount())
	}
}

func TestSyncService_NewTreeAndLoadTree(t *testing.T) {
	base := t.TempDir()
	store := levelmock.New()
	svc := service.NewSyncService(store, fixtureCatalog(), base, nil, nil, "", quietLogger())

	filename := try.To(svc.NewTree(context.Background())).OrFatal(t)

	if filepath.Ext(filename) != service.SnapshotExt {
		t.Errorf("unexpected snapshot extension: %s", filename)
	}
	if _, err := os.Stat(filepath.Join(base, filename)); err != nil {
		t.Fatalf("snapshot file not written: %v", err)
	}
	// no temp file left behind
	if _, err := os.Stat(filepath.Join(base, filename+".tmp")); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	root := try.To(svc.LoadTree(filename)).OrFatal(t)
	if root.ProjectsCount() != 2 {
		t.Errorf("unexpected projects after reload: %d", root.ProjectsCount())
	}
	if !svc.VerifyTree(filename) {
		t.Error("snapshot should verify")
	}
	if svc.VerifyTree("no-such-file.sgtree") {
		t.Error("missing snapshot should not verify")
	}
}

func TestSyncService_Once(t *testing.T) {
	t.Run("with no requests and no snapshot, it self-requests", func(t *testing.T) {
		store := levelmock.New()
		store.Impl.UnfulfilledSyncRequests = func(context.Context) ([]level.SyncRequest, error) {
			return []level.SyncRequest{}, nil
		}
		store.Impl.LastFulfilledRequest = func(context.Context) (level.SyncRequest, bool, error) {
			return level.SyncRequest{}, false, nil
		}
		requested := []string{}
		store.Impl.NewSyncRequest = func(_ context.Context, comment string) (level.SyncRequest, error) {
			requested = append(requested, comment)
			return level.SyncRequest{ID: 1, Comment: comment}, nil
		}

		liveFile := filepath.Join(t.TempDir(), "alive")
		svc := service.NewSyncService(store, fixtureCatalog(), t.TempDir(), nil, nil, liveFile, quietLogger())

		if err := svc.Once(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(requested) != 1 {
			t.Fatalf("expected one self-request, got %v", requested)
		}
		if _, err := os.Stat(liveFile); err != nil {
			t.Error("liveness file should be touched")
		}
	})

	t.Run("with pending requests, it rebuilds and fulfills them", func(t *testing.T) {
		store := levelmock.New()
		store.Impl.UnfulfilledSyncRequests = func(context.Context) ([]level.SyncRequest, error) {
			return []level.SyncRequest{{ID: 7}, {ID: 8}}, nil
		}
		fulfilled := map[int64]string{}
		store.Impl.UpdateRequestFilename = func(_ context.Context, id int64, filename string) error {
			fulfilled[id] = filename
			return nil
		}

		svc := service.NewSyncService(store, fixtureCatalog(), t.TempDir(), nil, nil, "", quietLogger())

		if err := svc.Once(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(fulfilled) != 2 {
			t.Fatalf("expected both requests fulfilled: %v", fulfilled)
		}
		if fulfilled[7] == "" || fulfilled[7] != fulfilled[8] {
			t.Errorf("both requests should share one snapshot: %v", fulfilled)
		}
	})

	t.Run("with a broken latest snapshot, it self-requests", func(t *testing.T) {
		store := levelmock.New()
		store.Impl.UnfulfilledSyncRequests = func(context.Context) ([]level.SyncRequest, error) {
			return []level.SyncRequest{}, nil
		}
		store.Impl.LastFulfilledRequest = func(context.Context) (level.SyncRequest, bool, error) {
			return level.SyncRequest{ID: 5, Filename: "gone.sgtree"}, true, nil
		}
		requested := 0
		store.Impl.NewSyncRequest = func(_ context.Context, comment string) (level.SyncRequest, error) {
			requested += 1
			return level.SyncRequest{ID: 6, Comment: comment}, nil
		}

		svc := service.NewSyncService(store, fixtureCatalog(), t.TempDir(), nil, nil, "", quietLogger())

		if err := svc.Once(context.Background()); err != nil {
			t.Fatal(err)
		}
		if requested != 1 {
			t.Errorf("expected a self-request, got %d", requested)
		}
	})
}
