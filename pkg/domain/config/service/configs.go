package service

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/config"
	configdb "github.com/spinvfx/spinfab/pkg/domain/config/db"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// ErrActive rejects mutations of a config that is currently active.
var ErrActive = xerrors.New("configuration is active, deactivate it first")

// ErrInvalidName rejects names that do not follow the naming rules.
var ErrInvalidName = xerrors.New("configuration name is not acceptable")

// LevelVisibility answers whether an operator may see a level.
//
// With checkExistence the level must also exist in the tree in
// service, not merely parse.
type LevelVisibility interface {
	IsVisible(ctx context.Context, path domain.LevelPath, operator domain.User, checkExistence bool) (bool, error)
}

// ConfigsService implements config CRUD with inherit-aware reduction
// and effective-configuration resolution along the ancestor chain.
type ConfigsService struct {
	store                configdb.Interface
	bodies               BodyStore
	levels               LevelVisibility
	enforceProjectAccess bool
	logger               *log.Logger
}

func New(
	store configdb.Interface,
	bodies BodyStore,
	levels LevelVisibility,
	enforceProjectAccess bool,
	logger *log.Logger,
) *ConfigsService {
	if logger == nil {
		logger = log.Default()
	}
	return &ConfigsService{
		store:                store,
		bodies:               bodies,
		levels:               levels,
		enforceProjectAccess: enforceProjectAccess,
		logger:               logger,
	}
}

// CreateSpec carries the client-supplied fields of a new config.
type CreateSpec struct {
	Name          string
	Level         domain.LevelPath
	Description   string
	Inherits      bool
	Configuration map[string]any
}

// PatchSpec carries the fields to rewrite. Nil fields keep the stored
// value. A non-nil Configuration is the full desired state of the
// node's body, not a partial merge.
type PatchSpec struct {
	Level         *domain.LevelPath
	Name          *string
	Description   *string
	Inherits      *bool
	Configuration map[string]any
}

// Create persists a new inactive config at the given level.
//
// With inherit, the body is reduced against the effective
// configuration of the ancestors before it is written, so only the
// keys that actually differ are stored.
func (s *ConfigsService) Create(
	ctx context.Context, operator domain.User, spec CreateSpec, inherit bool,
) (config.Config, bool, error) {
	if !config.IsNameValid(spec.Name) {
		return config.Config{}, false, ErrInvalidName
	}

	parsed, ok := domain.ParseLevelPath(domain.CanonizePath(string(spec.Level)))
	if !ok {
		s.logger.Printf("creating config %q: level does not parse: %s", spec.Name, spec.Level)
		return config.Config{}, false, nil
	}
	path := parsed.ToLevelPath()

	if ok, err := s.levels.IsVisible(ctx, path, operator, true); err != nil {
		return config.Config{}, false, xerrors.WrapWithNote("creating config: level lookup failed", err)
	} else if !ok {
		s.logger.Printf("creating config: level %s not found or not visible to %q", path, operator.Username)
		return config.Config{}, false, nil
	}

	simplified := spec.Configuration
	if inherit && spec.Configuration != nil {
		effective, found, err := s.effectiveAt(ctx, spec.Name, path, nil, true)
		if err != nil {
			return config.Config{}, false, err
		}
		if found {
			simplified = config.Reduced(spec.Configuration, effective.Configuration)
		}
	}

	item, err := s.store.Create(ctx, path, spec.Name, spec.Description, spec.Inherits, operator.Username)
	if err != nil {
		return config.Config{}, false, err
	}

	if err := s.bodies.Save(item.ID, simplified); err != nil {
		// metadata without a body is useless, roll it back
		if _, derr := s.store.Delete(ctx, item.ID); derr != nil {
			s.logger.Printf("compensating delete of config %s failed: %v", item.ID, derr)
		}
		return config.Config{}, false, xerrors.WrapWithNote("creating config: body write failed", err)
	}

	item.Configuration = simplified
	return item, true, nil
}

// Patch rewrites an inactive config. The caller's body is first
// unified with the effective parents (keys absent from the body are
// dropped) and then reduced, so the stored residue stays minimal.
func (s *ConfigsService) Patch(
	ctx context.Context, operator domain.User, id string, patch PatchSpec, inherit bool,
) (config.Config, bool, error) {
	item, found, err := s.store.Get(ctx, id)
	if err != nil {
		return config.Config{}, false, err
	}
	if !found {
		return config.Config{}, false, nil
	}

	if ok, err := s.levels.IsVisible(ctx, item.Path, operator, false); err != nil {
		return config.Config{}, false, xerrors.WrapWithNote("patching config: level lookup failed", err)
	} else if !ok {
		return config.Config{}, false, nil
	}

	if item.Active > 0 {
		return config.Config{}, false, ErrActive
	}

	patchedPath := item.Path
	if patch.Level != nil {
		if parsed, ok := domain.ParseLevelPath(domain.CanonizePath(string(*patch.Level))); ok {
			patchedPath = parsed.ToLevelPath()
		}
	}
	patchedName := item.Name
	if patch.Name != nil {
		patchedName = *patch.Name
	}
	patchedDescription := item.Description
	if patch.Description != nil {
		patchedDescription = *patch.Description
	}
	patchedInherits := item.Inherits
	if patch.Inherits != nil {
		patchedInherits = *patch.Inherits
	}

	if ok, err := s.levels.IsVisible(ctx, patchedPath, operator, true); err != nil {
		return config.Config{}, false, xerrors.WrapWithNote("patching config: target level lookup failed", err)
	} else if !ok {
		s.logger.Printf("patching config %s: target level %s not found or not visible to %q", id, patchedPath, operator.Username)
		return config.Config{}, false, nil
	}

	simplified := patch.Configuration
	if inherit && patch.Configuration != nil {
		candidate := item
		candidate.Path = patchedPath
		candidate.Name = patchedName
		candidate.Description = patchedDescription
		candidate.Inherits = patchedInherits
		candidate.Active = 0

		parentsOnly, parentsFound, err := s.effectivePreview(ctx, operator, candidate, nil, nil, true)
		if err != nil {
			return config.Config{}, false, err
		}
		withSelf, selfFound, err := s.effectivePreview(ctx, operator, candidate, nil, nil, false)
		if err != nil {
			return config.Config{}, false, err
		}
		if parentsFound && selfFound {
			merged := config.Inherited(withSelf.Configuration, patch.Configuration, true)
			simplified = config.Reduced(merged, parentsOnly.Configuration)
		}
	}

	patched, found, err := s.store.Update(ctx, id, patchedPath, patchedName, patchedDescription, patchedInherits, 0)
	if err != nil {
		return config.Config{}, false, err
	}
	if !found {
		return config.Config{}, false, nil
	}

	if simplified != nil {
		if err := s.bodies.Save(id, simplified); err != nil {
			return config.Config{}, false, xerrors.WrapWithNote("patching config: body write failed", err)
		}
	}

	if inherit {
		// the caller sees the effective result, honoring the node's
		// previous inherits policy
		inherits := item.Inherits
		return s.GetEffectivePreview(ctx, operator, patched.ID, nil, &inherits)
	}

	body, err := s.bodies.Load(id)
	if err != nil {
		return config.Config{}, false, xerrors.WrapWithNote("patching config: body read failed", err)
	}
	patched.Configuration = body
	return patched, true, nil
}

// SetStatus activates or deactivates a config.
//
// Activation stamps active=now and sweeps every sibling sharing
// (path, name) to inactive, best effort.
func (s *ConfigsService) SetStatus(
	ctx context.Context, operator domain.User, id string, current bool,
) (bool, error) {
	item, found, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	// existence only matters when activating; an orphaned config can
	// still be deactivated and cleaned up
	if ok, err := s.levels.IsVisible(ctx, item.Path, operator, current); err != nil {
		return false, xerrors.WrapWithNote("setting config status: level lookup failed", err)
	} else if !ok {
		return false, nil
	}

	if !current {
		_, found, err := s.store.SetActiveStamp(ctx, id, 0)
		if err != nil {
			return false, err
		}
		return found, nil
	}

	stamped, found, err := s.store.SetActiveStamp(ctx, id, time.Now().UnixNano())
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	siblings, err := s.store.ActiveByPathAndName(ctx, stamped.Path, stamped.Name)
	if err != nil {
		s.logger.Printf("unable to determine siblings of config %s to inactivate: %v", id, err)
		return true, nil
	}
	for _, sibling := range siblings {
		if sibling.ID == id || sibling.Active == 0 {
			continue
		}
		if _, _, err := s.store.SetActiveStamp(ctx, sibling.ID, 0); err != nil {
			s.logger.Printf("failed to inactivate config %s: %v", sibling.ID, err)
		}
	}
	return true, nil
}

// GetStatus reports whether the config is the current one for its
// (path, name) pair.
func (s *ConfigsService) GetStatus(
	ctx context.Context, operator domain.User, id string,
) (current bool, found bool, err error) {
	item, found, err := s.store.Get(ctx, id)
	if err != nil || !found {
		return false, found, err
	}

	if ok, err := s.levels.IsVisible(ctx, item.Path, operator, false); err != nil {
		return false, false, xerrors.WrapWithNote("getting config status: level lookup failed", err)
	} else if !ok {
		return false, false, nil
	}

	if item.Active == 0 {
		return false, true, nil
	}

	cur, found, err := s.store.CurrentByPathAndName(ctx, item.Path, item.Name)
	if err != nil || !found {
		return false, found, err
	}
	return cur.ID == id, true, nil
}

// Get fetches one config with its body. A non-nil tokens map turns on
// token substitution, extended with the values implied by the path.
func (s *ConfigsService) Get(
	ctx context.Context, operator domain.User, id string, tokens map[string]string,
) (config.Config, bool, error) {
	item, found, err := s.store.Get(ctx, id)
	if err != nil || !found {
		return config.Config{}, found, err
	}

	if ok, err := s.levels.IsVisible(ctx, item.Path, operator, false); err != nil {
		return config.Config{}, false, xerrors.WrapWithNote("getting config: level lookup failed", err)
	} else if !ok {
		return config.Config{}, false, nil
	}

	extended, ok := extendTokens(tokens, item.Path)
	if !ok {
		extended = tokens
	}

	body, err := s.bodies.Load(id)
	if err != nil {
		return config.Config{}, false, xerrors.WrapWithNote("getting config: body read failed", err)
	}
	if extended != nil {
		body, err = applyTokens(body, extended)
		if err != nil {
			return config.Config{}, false, err
		}
	}
	item.Configuration = body
	return item, true, nil
}

// Find lists configs matching the optional name substring and exact
// path, paginated. Project-scoped configs the operator may not see
// are dropped before pagination.
func (s *ConfigsService) Find(
	ctx context.Context, operator domain.User,
	name *string, path *string,
	pageNumber int, pageSize int,
) ([]config.Config, int, error) {
	var pathFilter *domain.LevelPath
	if path != nil {
		canonized := domain.CanonizePath(*path)
		pathFilter = &canonized
	}

	all, err := s.store.Find(ctx, name, pathFilter)
	if err != nil {
		return nil, 0, err
	}

	visible := []config.Config{}
	for _, c := range all {
		if s.mayAccessPath(c.Path, operator) {
			visible = append(visible, c)
		}
	}

	total := len(visible)
	if pageSize <= 0 {
		return visible, total, nil
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	start := (pageNumber - 1) * pageSize
	if start >= total {
		return []config.Config{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return visible[start:end], total, nil
}

func (s *ConfigsService) mayAccessPath(path domain.LevelPath, operator domain.User) bool {
	if !s.enforceProjectAccess {
		return true
	}
	parsed, ok := domain.ParseLevelPath(path)
	if !ok || parsed.Show == "" {
		return true
	}
	return operator.MayAccessProject(parsed.Show)
}

// Delete removes an inactive config and its body.
func (s *ConfigsService) Delete(
	ctx context.Context, operator domain.User, id string,
) (bool, error) {
	item, found, err := s.store.Get(ctx, id)
	if err != nil || !found {
		return found, err
	}

	if ok, err := s.levels.IsVisible(ctx, item.Path, operator, false); err != nil {
		return false, xerrors.WrapWithNote("deleting config: level lookup failed", err)
	} else if !ok {
		return false, nil
	}

	if item.Active > 0 {
		return false, ErrActive
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil || !deleted {
		return false, err
	}

	if err := s.bodies.Remove(id); err != nil {
		s.logger.Printf("unable to remove body of deleted config %s: %v", id, err)
	}
	return true, nil
}

// GetEffective resolves the effective configuration for (name, path)
// by folding the current ancestor chain bottom-up.
func (s *ConfigsService) GetEffective(
	ctx context.Context, operator domain.User,
	name string, path domain.LevelPath,
	tokens map[string]string, inherit bool,
) (config.Config, bool, error) {
	path = domain.CanonizePath(string(path))

	if ok, err := s.levels.IsVisible(ctx, path, operator, true); err != nil {
		return config.Config{}, false, xerrors.WrapWithNote("getting effective config: level lookup failed", err)
	} else if !ok {
		return config.Config{}, false, nil
	}

	return s.effectiveAt(ctx, name, path, tokens, inherit)
}

func (s *ConfigsService) effectiveAt(
	ctx context.Context,
	name string, path domain.LevelPath,
	tokens map[string]string, inherit bool,
) (config.Config, bool, error) {
	chain, err := s.inheritableChain(ctx, name, path)
	if err != nil {
		return config.Config{}, false, err
	}

	extended, ok := extendTokens(tokens, path)
	if !ok {
		s.logger.Printf("effective config for %q: path does not parse: %s", name, path)
		return config.Config{}, false, nil
	}

	return s.calculateEffective(chain, extended, inherit)
}

// GetEffectivePreview resolves the effective configuration as if the
// config with the given id were the current deepest node, whether or
// not it is active.
func (s *ConfigsService) GetEffectivePreview(
	ctx context.Context, operator domain.User,
	id string, tokens map[string]string, inherit *bool,
) (config.Config, bool, error) {
	item, found, err := s.store.Get(ctx, id)
	if err != nil || !found {
		return config.Config{}, found, err
	}
	return s.effectivePreview(ctx, operator, item, tokens, inherit, false)
}

func (s *ConfigsService) effectivePreview(
	ctx context.Context, operator domain.User,
	item config.Config, tokens map[string]string, inherit *bool, excludeItem bool,
) (config.Config, bool, error) {
	if ok, err := s.levels.IsVisible(ctx, item.Path, operator, false); err != nil {
		return config.Config{}, false, xerrors.WrapWithNote("previewing effective config: level lookup failed", err)
	} else if !ok {
		return config.Config{}, false, nil
	}

	chain, err := s.inheritableChain(ctx, item.Name, item.Path)
	if err != nil {
		return config.Config{}, false, err
	}

	if len(chain) == 0 {
		if excludeItem {
			chain = []config.Config{}
		} else {
			chain = []config.Config{item}
		}
	} else if chain[0].ID != item.ID {
		// the previewed item displaces whatever currently occupies
		// its own level
		if chain[0].Path == item.Path {
			chain = chain[1:]
		}
		if !excludeItem {
			chain = append([]config.Config{item}, chain...)
		}
	}

	extended, ok := extendTokens(tokens, item.Path)
	if !ok {
		s.logger.Printf("previewing effective config %s: path does not parse: %s", item.ID, item.Path)
		return config.Config{}, false, nil
	}

	inheritVal := item.Inherits
	if excludeItem {
		inheritVal = true
	} else if inherit != nil {
		inheritVal = *inherit
	}

	return s.calculateEffective(chain, extended, inheritVal)
}

// inheritableChain lists the current configs named name along the
// ancestor-or-self chain of path, deepest first, cut after the first
// entry that does not inherit.
func (s *ConfigsService) inheritableChain(
	ctx context.Context, name string, path domain.LevelPath,
) ([]config.Config, error) {
	active, err := s.store.ActiveByName(ctx, name)
	if err != nil {
		return nil, err
	}

	onChain := map[domain.LevelPath]config.Config{}
	for _, c := range active {
		if c.Path != path && !c.Path.IsAncestorOf(path) {
			continue
		}
		if held, found := onChain[c.Path]; !found || held.Active < c.Active {
			onChain[c.Path] = c
		}
	}

	chain := []config.Config{}
	for _, c := range onChain {
		chain = append(chain, c)
	}
	// deepest first
	sort.Slice(chain, func(i, j int) bool { return chain[i].Path > chain[j].Path })

	for i, c := range chain {
		if !c.Inherits {
			return chain[:i+1], nil
		}
	}
	return chain, nil
}

func (s *ConfigsService) calculateEffective(
	chain []config.Config, tokens map[string]string, inherit bool,
) (config.Config, bool, error) {
	if len(chain) == 0 {
		return config.Config{}, false, nil
	}

	effective := config.Config{}
	for i, c := range chain {
		body, err := s.bodies.Load(c.ID)
		if err != nil {
			return config.Config{}, false, xerrors.WrapWithNote("effective config: body of "+c.ID+" unreadable", err)
		}
		if i == 0 {
			effective = c
			effective.Configuration = body
			if !inherit {
				break
			}
			continue
		}
		effective.Configuration = config.Merge(effective.Configuration, body)
	}

	if tokens != nil {
		filled, err := applyTokens(effective.Configuration, tokens)
		if err != nil {
			return config.Config{}, false, err
		}
		effective.Configuration = filled
	}
	return effective, true, nil
}

// applyTokens runs token substitution over the serialized body.
func applyTokens(body map[string]any, tokens map[string]string) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	filled := config.FillTokens(string(payload), tokens)
	var result map[string]any
	if err := json.Unmarshal([]byte(filled), &result); err != nil {
		return nil, xerrors.WrapWithNote("token substitution broke the configuration body", err)
	}
	return result, nil
}

// extendTokens overlays the path-implied values over the caller's
// token dictionary. A nil dictionary turns substitution off entirely.
func extendTokens(tokens map[string]string, path domain.LevelPath) (map[string]string, bool) {
	if tokens == nil {
		return nil, true
	}
	parsed, ok := domain.ParseLevelPath(path)
	if !ok {
		return nil, false
	}
	extended := map[string]string{}
	for k, v := range tokens {
		extended[k] = v
	}
	for k, v := range parsed.Tokens() {
		extended[k] = v
	}
	return extended, true
}
