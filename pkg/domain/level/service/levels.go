package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/level"
	leveldb "github.com/spinvfx/spinfab/pkg/domain/level/db"
	"github.com/spinvfx/spinfab/pkg/domain/level/tree"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// ErrNoTree means no snapshot could be put in service yet.
var ErrNoTree = xerrors.New("no tree is available for service")

// TreeLoader loads a verified snapshot by filename.
//
// SyncService implements this; tests provide their own.
type TreeLoader interface {
	LoadTree(filename string) (*tree.Root, error)
}

// LevelsService serves level lookups over the youngest usable snapshot.
//
// The in-service tree is cached for at least cacheFor between catalog
// checks; a younger snapshot found after expiry is hot-swapped in.
type LevelsService struct {
	store                leveldb.Interface
	loader               TreeLoader
	cacheFor             time.Duration
	enforceProjectAccess bool
	logger               *log.Logger

	mu          sync.Mutex
	tree        *tree.Tree
	latestCheck time.Time
}

func NewLevelsService(
	store leveldb.Interface,
	loader TreeLoader,
	cacheFor time.Duration,
	enforceProjectAccess bool,
	logger *log.Logger,
) *LevelsService {
	if cacheFor <= 0 {
		cacheFor = 120 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LevelsService{
		store:                store,
		loader:               loader,
		cacheFor:             cacheFor,
		enforceProjectAccess: enforceProjectAccess,
		logger:               logger,
	}
}

// GetTree returns the tree in service, refreshing it when the cache
// has expired and a younger snapshot exists.
func (s *LevelsService) GetTree(ctx context.Context) (*tree.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkNow := s.tree == nil || s.cacheFor <= time.Since(s.latestCheck)

	if checkNow {
		s.latestCheck = time.Now()

		latest, ok, err := s.store.LastFulfilledRequest(ctx)
		if err != nil {
			s.logger.Printf("unable to detect the latest tree for service: %v", err)
		} else if !ok {
			s.logger.Print("unable to detect the latest tree for service")
		} else if s.tree == nil || s.tree.IsOlderThan(latest.ID) {
			s.attemptTreeSwitch(latest)
		}
	}

	if s.tree == nil {
		return nil, ErrNoTree
	}
	return s.tree, nil
}

func (s *LevelsService) attemptTreeSwitch(latest level.SyncRequest) {
	root, err := s.loader.LoadTree(latest.Filename)
	if err != nil {
		s.logger.Printf("failed to load latest available tree for service: %v", err)
		return
	}
	root.PrepareForService()
	s.tree = tree.New(root, latest)
	s.logger.Printf("switched service to use tree from snapshot %s", latest.Filename)
}

// GetLevel resolves a parsed path against the tree in service.
//
// ok is false when the path names no node or the user may not see the
// project it belongs to.
func (s *LevelsService) GetLevel(
	ctx context.Context,
	parsed domain.ParsedLevelPath,
	maxDepth int,
	operator domain.User,
) (tree.Level, bool, error) {
	t, err := s.GetTree(ctx)
	if err != nil {
		return tree.Level{}, false, err
	}

	node := t.Root().FindNodeByPath(parsed)
	if node == nil {
		return tree.Level{}, false, nil
	}

	lv := node.AsLevel(maxDepth)

	if !s.userMayAccess(lv, operator) {
		return tree.Level{}, false, nil
	}
	return lv, true, nil
}

func (s *LevelsService) userMayAccess(lv tree.Level, operator domain.User) bool {
	// levels above projects are visible to everyone
	if lv.Project == "" {
		return true
	}
	if !s.enforceProjectAccess {
		return true
	}

	if len(operator.Projects) == 0 {
		s.logger.Printf("blocked user %q: no projects in token, tried project %q", operator.Username, lv.Project)
		return false
	}
	for _, p := range operator.Projects {
		if p == lv.Project {
			return true
		}
	}
	s.logger.Printf("blocked user %q from unauthorized project %q", operator.Username, lv.Project)
	return false
}
