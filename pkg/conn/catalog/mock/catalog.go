package mock

import (
	"context"
	"errors"

	"github.com/spinvfx/spinfab/pkg/conn/catalog"
)

// Catalog is a hand-written test double. Set the Impl funcs you expect
// to be called; unset ones fail with an error.
type Catalog struct {
	Impl struct {
		FindProjects         func(ctx context.Context, tagsToAvoid []string, restrictTo []int) ([]catalog.Project, error)
		FindProject          func(ctx context.Context, projectID int) (catalog.Project, error)
		FindProjectAssets    func(ctx context.Context, projectID int) ([]catalog.Asset, error)
		FindProjectSequences func(ctx context.Context, projectID int) ([]catalog.Sequence, error)
	}
}

var _ catalog.Catalog = &Catalog{}

func New() *Catalog {
	return &Catalog{}
}

func (m *Catalog) FindProjects(ctx context.Context, tagsToAvoid []string, restrictTo []int) ([]catalog.Project, error) {
	if m.Impl.FindProjects == nil {
		return nil, errors.New("mock catalog: FindProjects is not set")
	}
	return m.Impl.FindProjects(ctx, tagsToAvoid, restrictTo)
}

func (m *Catalog) FindProject(ctx context.Context, projectID int) (catalog.Project, error) {
	if m.Impl.FindProject == nil {
		return catalog.Project{}, errors.New("mock catalog: FindProject is not set")
	}
	return m.Impl.FindProject(ctx, projectID)
}

func (m *Catalog) FindProjectAssets(ctx context.Context, projectID int) ([]catalog.Asset, error) {
	if m.Impl.FindProjectAssets == nil {
		return nil, errors.New("mock catalog: FindProjectAssets is not set")
	}
	return m.Impl.FindProjectAssets(ctx, projectID)
}

func (m *Catalog) FindProjectSequences(ctx context.Context, projectID int) ([]catalog.Sequence, error) {
	if m.Impl.FindProjectSequences == nil {
		return nil, errors.New("mock catalog: FindProjectSequences is not set")
	}
	return m.Impl.FindProjectSequences(ctx, projectID)
}
