package service

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spinvfx/spinfab/pkg/conn/catalog"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/level"
	leveldb "github.com/spinvfx/spinfab/pkg/domain/level/db"
	"github.com/spinvfx/spinfab/pkg/domain/level/tree"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
	"github.com/spinvfx/spinfab/pkg/loop"
	"github.com/spinvfx/spinfab/pkg/utils/liveness"
)

// SnapshotExt is the filename extension of on-disk tree snapshots.
const SnapshotExt = ".sgtree"

// SyncService rebuilds, persists and verifies level tree snapshots.
type SyncService struct {
	store        leveldb.Interface
	catalog      catalog.Catalog
	basePath     string
	tagsToAvoid  []string
	restrictTo   []int
	livenessFile string
	logger       *log.Logger
}

func NewSyncService(
	store leveldb.Interface,
	cat catalog.Catalog,
	basePath string,
	tagsToAvoid []string,
	restrictTo []int,
	livenessFile string,
	logger *log.Logger,
) *SyncService {
	if logger == nil {
		logger = log.Default()
	}
	return &SyncService{
		store:        store,
		catalog:      cat,
		basePath:     basePath,
		tagsToAvoid:  tagsToAvoid,
		restrictTo:   restrictTo,
		livenessFile: livenessFile,
		logger:       logger,
	}
}

// BuildRoot traverses the catalog and assembles a fresh tree.
func (s *SyncService) BuildRoot(ctx context.Context) (*tree.Root, error) {
	projects, err := s.catalog.FindProjects(ctx, s.tagsToAvoid, s.restrictTo)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}

	projectNodes := []*tree.ProjectNode{}
	for _, p := range projects {
		division, ok := domain.DivisionFromText(p.Division, false)
		if !ok {
			s.logger.Printf("skipping project %d %q: unknown division %q", p.ID, p.Name, p.Division)
			continue
		}
		if p.Name == "" || p.ID <= 0 {
			s.logger.Printf("skipping project %d: missing id or name", p.ID)
			continue
		}
		node := tree.NewProjectNode(division, p.ID, p.Name)

		assets, err := s.catalog.FindProjectAssets(ctx, p.ID)
		if err != nil {
			return nil, xerrors.WrapWithNote("interrupting tree building: assets of project "+p.Name, err)
		}
		node.Assets.AssetTypes = groupAssetsByType(assets)

		sequences, err := s.catalog.FindProjectSequences(ctx, p.ID)
		if err != nil {
			return nil, xerrors.WrapWithNote("interrupting tree building: sequences of project "+p.Name, err)
		}
		for _, seq := range sequences {
			seqNode := &tree.SequenceNode{ID: seq.ID, Code: seq.Code}
			for _, shot := range seq.Shots {
				seqNode.Shots = append(seqNode.Shots, &tree.ShotNode{ID: shot.ID, Name: shot.Code})
			}
			node.Sequences.Sequences = append(node.Sequences.Sequences, seqNode)
		}

		projectNodes = append(projectNodes, node)
	}

	root := &tree.Root{}
	for _, division := range []domain.Division{domain.DivisionTelevision, domain.DivisionFilm} {
		divisionNode := &tree.DivisionNode{Division: division}
		for _, p := range projectNodes {
			if p.Division == division {
				divisionNode.Projects = append(divisionNode.Projects, p)
			}
		}
		root.Divisions = append(root.Divisions, divisionNode)
	}
	return root, nil
}

func groupAssetsByType(assets []catalog.Asset) []*tree.AssetTypeNode {
	assetTypes := []*tree.AssetTypeNode{}
	for _, a := range assets {
		var typeNode *tree.AssetTypeNode
		for _, at := range assetTypes {
			if at.AssetType == a.AssetType {
				typeNode = at
				break
			}
		}
		if typeNode == nil {
			typeNode = &tree.AssetTypeNode{AssetType: a.AssetType}
			assetTypes = append(assetTypes, typeNode)
		}
		typeNode.Assets = append(typeNode.Assets, &tree.AssetNode{ID: a.ID, Code: a.Code})
	}
	return assetTypes
}

// NewTree builds a snapshot and persists it, returning its filename.
func (s *SyncService) NewTree(ctx context.Context) (string, error) {
	root, err := s.BuildRoot(ctx)
	if err != nil {
		return "", err
	}

	filename := uuid.New().String() + SnapshotExt
	if err := s.saveTree(root, filename); err != nil {
		return "", err
	}
	return filename, nil
}

// saveTree writes the snapshot with rename-into-place so readers never
// observe a half-written file.
func (s *SyncService) saveTree(root *tree.Root, filename string) error {
	payload, err := json.Marshal(root)
	if err != nil {
		return xerrors.Wrap(err)
	}

	target := filepath.Join(s.basePath, filename)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return xerrors.Wrap(err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return xerrors.Wrap(err)
	}
	return nil
}

func (s *SyncService) loadRoot(filename string) (*tree.Root, error) {
	payload, err := os.ReadFile(filepath.Join(s.basePath, filename))
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	root := &tree.Root{}
	if err := json.Unmarshal(payload, root); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return root, nil
}

// LoadTree loads and verifies a snapshot; the returned root is not yet
// prepared for service.
func (s *SyncService) LoadTree(filename string) (*tree.Root, error) {
	root, err := s.loadRoot(filename)
	if err != nil {
		return nil, err
	}
	if root.ProjectsCount() == 0 {
		return nil, xerrors.New("tree " + filename + " is loadable, but has no projects")
	}
	return root, nil
}

// VerifyTree tests that a snapshot is loadable and non-empty.
func (s *SyncService) VerifyTree(filename string) bool {
	if _, err := s.LoadTree(filename); err != nil {
		s.logger.Printf("tree %s failed verification: %v", filename, err)
		return false
	}
	return true
}

// FulfillRequests stamps the given requests with the snapshot filename.
func (s *SyncService) FulfillRequests(ctx context.Context, filename string, requests []level.SyncRequest) int {
	fulfilled := 0
	for _, req := range requests {
		if err := s.store.UpdateRequestFilename(ctx, req.ID, filename); err != nil {
			s.logger.Printf("failed to fulfill request %d: %v", req.ID, err)
			continue
		}
		fulfilled += 1
	}
	return fulfilled
}

// Once runs a single refresher iteration.
//
// With pending requests it rebuilds a snapshot and fulfills them. With
// none it makes sure a verified snapshot exists, self-requesting a new
// one otherwise.
func (s *SyncService) Once(ctx context.Context) error {
	requests, err := s.store.UnfulfilledSyncRequests(ctx)
	if err != nil {
		return xerrors.Wrap(err)
	}

	if len(requests) == 0 {
		latest, ok, err := s.store.LastFulfilledRequest(ctx)
		if err != nil {
			return xerrors.Wrap(err)
		}
		if !ok {
			s.logger.Print("no usable tree snapshot is available, creating a new request for next iteration")
			if _, err := s.store.NewSyncRequest(ctx, "self-requested because no previous snapshot was found"); err != nil {
				return xerrors.Wrap(err)
			}
		} else if !s.VerifyTree(latest.Filename) {
			s.logger.Print("latest tree unusable, creating a new request for next iteration")
			if _, err := s.store.NewSyncRequest(ctx, "self-requested because latest tree verification failed"); err != nil {
				return xerrors.Wrap(err)
			}
		}
	} else {
		s.logger.Printf("found %d request(s) to create a new tree", len(requests))

		filename, err := s.NewTree(ctx)
		if err != nil {
			s.logger.Printf("failed to create a new tree snapshot: %v", err)
		} else {
			s.logger.Printf("new tree snapshot created: %s", filename)
			s.FulfillRequests(ctx, filename, requests)
		}
	}

	if s.livenessFile != "" {
		if err := liveness.Touch(s.livenessFile); err != nil {
			s.logger.Printf("failed to update liveness file %s: %v", s.livenessFile, err)
		}
	}
	return nil
}

// Run loops Once every interval until ctx is done.
func (s *SyncService) Run(ctx context.Context, interval time.Duration) error {
	_, err := loop.Start(ctx, struct{}{}, func(ctx context.Context, v struct{}) (struct{}, loop.Next) {
		if err := s.Once(ctx); err != nil {
			s.logger.Printf("sync iteration failed: %v", err)
		}
		return v, loop.Continue(interval)
	})
	return err
}
