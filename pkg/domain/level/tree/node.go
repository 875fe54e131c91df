package tree

import (
	"strings"

	"github.com/spinvfx/spinfab/pkg/domain"
)

// Level is a depth-limited view of a node handed to API clients.
//
// HasSublevels reflects the in-tree structure even when Sublevels is
// clipped by the depth limit.
type Level struct {
	Label        string  `json:"label"`
	Path         string  `json:"path"`
	Site         string  `json:"site,omitempty"`
	Division     string  `json:"division,omitempty"`
	Project      string  `json:"project,omitempty"`
	Type         string  `json:"type,omitempty"`
	AssetType    string  `json:"asset_type,omitempty"`
	AssetCode    string  `json:"asset_code,omitempty"`
	SequenceName string  `json:"sequence_name,omitempty"`
	ShotName     string  `json:"shot_name,omitempty"`
	Sublevels    []Level `json:"sublevels"`
	HasSublevels bool    `json:"has_sublevels"`
}

// Node is one position in the level tree.
//
// Parent edges are rebuilt after deserialization; see Root.PrepareForService.
type Node interface {
	// AsLevel renders the node and up to maxDepth generations of children.
	AsLevel(maxDepth int) Level

	parentNode() Node
	pathSegment() string
	fillOwn(lv *Level)
	sublevels(maxDepth int) []Level
	hasSublevels() bool
}

func nodePath(n Node) domain.LevelPath {
	segments := []string{}
	for cur := n; cur != nil; cur = cur.parentNode() {
		if s := cur.pathSegment(); s != "" {
			segments = append([]string{s}, segments...)
		}
	}
	return domain.CanonizePath("/" + strings.Join(segments, "/"))
}

func fillChain(n Node, lv *Level) {
	if p := n.parentNode(); p != nil {
		fillChain(p, lv)
	}
	n.fillOwn(lv)
}

func asLevel(n Node, maxDepth int) Level {
	lv := Level{Sublevels: []Level{}}

	fillChain(n, &lv)

	lv.Label = n.pathSegment()
	lv.Path = nodePath(n).String()

	if 0 < maxDepth {
		lv.Sublevels = n.sublevels(maxDepth - 1)
	}
	lv.HasSublevels = n.hasSublevels()

	return lv
}

// Root is the top of the level tree.
//
// Divisions is the canonical, serialized branch. Site nodes are derived
// copies built by PrepareForService and never serialized; every site
// carries the same content.
type Root struct {
	Divisions []*DivisionNode `json:"divisions"`

	sites []*SiteNode
}

var _ Node = &Root{}

func (r *Root) parentNode() Node     { return nil }
func (r *Root) pathSegment() string  { return "" }
func (r *Root) fillOwn(lv *Level)    {}
func (r *Root) hasSublevels() bool   { return 0 < len(r.sites) }
func (r *Root) AsLevel(md int) Level { return asLevel(r, md) }

func (r *Root) sublevels(maxDepth int) []Level {
	subs := []Level{}
	for _, s := range r.sites {
		subs = append(subs, s.AsLevel(maxDepth))
	}
	return subs
}

func (r *Root) Sites() []*SiteNode { return r.sites }

func (r *Root) ProjectsCount() int {
	sum := 0
	for _, d := range r.Divisions {
		sum += len(d.Projects)
	}
	return sum
}

func (r *Root) AssetTypesCount() int {
	sum := 0
	for _, d := range r.Divisions {
		for _, p := range d.Projects {
			sum += len(p.Assets.AssetTypes)
		}
	}
	return sum
}

func (r *Root) AssetsCount() int {
	sum := 0
	for _, d := range r.Divisions {
		for _, p := range d.Projects {
			for _, at := range p.Assets.AssetTypes {
				sum += len(at.Assets)
			}
		}
	}
	return sum
}

func (r *Root) SequencesCount() int {
	sum := 0
	for _, d := range r.Divisions {
		for _, p := range d.Projects {
			sum += len(p.Sequences.Sequences)
		}
	}
	return sum
}

func (r *Root) ShotsCount() int {
	sum := 0
	for _, d := range r.Divisions {
		for _, p := range d.Projects {
			for _, s := range p.Sequences.Sequences {
				sum += len(s.Shots)
			}
		}
	}
	return sum
}

// PrepareForService rebuilds parent edges and derives per-site branches.
//
// Call once after deserialization, before handing the tree to readers.
// Each known site receives its own deep copy of the division branch so
// paths render with the site segment.
func (r *Root) PrepareForService() {
	r.sites = []*SiteNode{}

	for _, site := range domain.KnownSites() {
		siteNode := &SiteNode{Site: site, parent: r}
		for _, d := range r.Divisions {
			dc := d.clone()
			dc.relink(siteNode)
			siteNode.Divisions = append(siteNode.Divisions, dc)
		}
		r.sites = append(r.sites, siteNode)
	}
}

// SiteNode holds one site's copy of the division branch.
type SiteNode struct {
	Site      domain.Site     `json:"site"`
	Divisions []*DivisionNode `json:"divisions"`

	parent Node
}

var _ Node = &SiteNode{}

func (s *SiteNode) parentNode() Node     { return s.parent }
func (s *SiteNode) pathSegment() string  { return string(s.Site) }
func (s *SiteNode) fillOwn(lv *Level)    { lv.Site = string(s.Site) }
func (s *SiteNode) hasSublevels() bool   { return 0 < len(s.Divisions) }
func (s *SiteNode) AsLevel(md int) Level { return asLevel(s, md) }

func (s *SiteNode) sublevels(maxDepth int) []Level {
	subs := []Level{}
	for _, d := range s.Divisions {
		subs = append(subs, d.AsLevel(maxDepth))
	}
	return subs
}

// DivisionNode groups the projects of one division.
type DivisionNode struct {
	Division domain.Division `json:"division"`
	Projects []*ProjectNode  `json:"projects"`

	parent Node
}

var _ Node = &DivisionNode{}

func (d *DivisionNode) parentNode() Node     { return d.parent }
func (d *DivisionNode) pathSegment() string  { return string(d.Division) }
func (d *DivisionNode) fillOwn(lv *Level)    { lv.Division = string(d.Division) }
func (d *DivisionNode) hasSublevels() bool   { return 0 < len(d.Projects) }
func (d *DivisionNode) AsLevel(md int) Level { return asLevel(d, md) }

func (d *DivisionNode) sublevels(maxDepth int) []Level {
	subs := []Level{}
	for _, p := range d.Projects {
		subs = append(subs, p.AsLevel(maxDepth))
	}
	return subs
}

func (d *DivisionNode) clone() *DivisionNode {
	dc := &DivisionNode{Division: d.Division}
	for _, p := range d.Projects {
		dc.Projects = append(dc.Projects, p.clone())
	}
	return dc
}

func (d *DivisionNode) relink(parent Node) {
	d.parent = parent
	for _, p := range d.Projects {
		p.relink(d)
	}
}

// ProjectNode is a show, carrying its asset and sequence branches.
type ProjectNode struct {
	ID        int                   `json:"id"`
	Name      string                `json:"name"`
	Division  domain.Division       `json:"division"`
	Assets    *PathTypeAssetNode    `json:"assets"`
	Sequences *PathTypeSequenceNode `json:"sequences"`

	parent Node
}

var _ Node = &ProjectNode{}

func NewProjectNode(division domain.Division, id int, name string) *ProjectNode {
	return &ProjectNode{
		ID:        id,
		Name:      name,
		Division:  division,
		Assets:    &PathTypeAssetNode{},
		Sequences: &PathTypeSequenceNode{},
	}
}

func (p *ProjectNode) parentNode() Node    { return p.parent }
func (p *ProjectNode) pathSegment() string { return p.Name }
func (p *ProjectNode) fillOwn(lv *Level)   { lv.Project = p.Name }

// Both path type branches always exist under a project.
func (p *ProjectNode) hasSublevels() bool   { return true }
func (p *ProjectNode) AsLevel(md int) Level { return asLevel(p, md) }

func (p *ProjectNode) sublevels(maxDepth int) []Level {
	return []Level{
		p.Assets.AsLevel(maxDepth),
		p.Sequences.AsLevel(maxDepth),
	}
}

func (p *ProjectNode) clone() *ProjectNode {
	pc := &ProjectNode{ID: p.ID, Name: p.Name, Division: p.Division}
	pc.Assets = p.Assets.clone()
	pc.Sequences = p.Sequences.clone()
	return pc
}

func (p *ProjectNode) relink(parent Node) {
	p.parent = parent
	if p.Assets == nil {
		p.Assets = &PathTypeAssetNode{}
	}
	if p.Sequences == nil {
		p.Sequences = &PathTypeSequenceNode{}
	}
	p.Assets.relink(p)
	p.Sequences.relink(p)
}

// PathTypeAssetNode is the fixed "asset" branch of a project.
type PathTypeAssetNode struct {
	AssetTypes []*AssetTypeNode `json:"asset_types"`

	parent Node
}

var _ Node = &PathTypeAssetNode{}

func (n *PathTypeAssetNode) parentNode() Node     { return n.parent }
func (n *PathTypeAssetNode) pathSegment() string  { return string(domain.PathTypeAsset) }
func (n *PathTypeAssetNode) fillOwn(lv *Level)    { lv.Type = string(domain.PathTypeAsset) }
func (n *PathTypeAssetNode) hasSublevels() bool   { return 0 < len(n.AssetTypes) }
func (n *PathTypeAssetNode) AsLevel(md int) Level { return asLevel(n, md) }

func (n *PathTypeAssetNode) sublevels(maxDepth int) []Level {
	subs := []Level{}
	for _, at := range n.AssetTypes {
		subs = append(subs, at.AsLevel(maxDepth))
	}
	return subs
}

func (n *PathTypeAssetNode) clone() *PathTypeAssetNode {
	nc := &PathTypeAssetNode{}
	for _, at := range n.AssetTypes {
		nc.AssetTypes = append(nc.AssetTypes, at.clone())
	}
	return nc
}

func (n *PathTypeAssetNode) relink(parent Node) {
	n.parent = parent
	for _, at := range n.AssetTypes {
		at.relink(n)
	}
}

// AssetTypeNode groups assets sharing one asset type.
type AssetTypeNode struct {
	AssetType string       `json:"asset_type"`
	Assets    []*AssetNode `json:"assets"`

	parent Node
}

var _ Node = &AssetTypeNode{}

func (n *AssetTypeNode) parentNode() Node     { return n.parent }
func (n *AssetTypeNode) pathSegment() string  { return n.AssetType }
func (n *AssetTypeNode) fillOwn(lv *Level)    { lv.AssetType = n.AssetType }
func (n *AssetTypeNode) hasSublevels() bool   { return 0 < len(n.Assets) }
func (n *AssetTypeNode) AsLevel(md int) Level { return asLevel(n, md) }

func (n *AssetTypeNode) sublevels(maxDepth int) []Level {
	subs := []Level{}
	for _, a := range n.Assets {
		subs = append(subs, a.AsLevel(maxDepth))
	}
	return subs
}

func (n *AssetTypeNode) clone() *AssetTypeNode {
	nc := &AssetTypeNode{AssetType: n.AssetType}
	for _, a := range n.Assets {
		ac := *a
		ac.parent = nil
		nc.Assets = append(nc.Assets, &ac)
	}
	return nc
}

func (n *AssetTypeNode) relink(parent Node) {
	n.parent = parent
	for _, a := range n.Assets {
		a.parent = n
	}
}

// AssetNode is a leaf asset.
type AssetNode struct {
	ID   int    `json:"id"`
	Code string `json:"code"`

	parent Node
}

var _ Node = &AssetNode{}

func (n *AssetNode) parentNode() Node      { return n.parent }
func (n *AssetNode) pathSegment() string   { return n.Code }
func (n *AssetNode) fillOwn(lv *Level)     { lv.AssetCode = n.Code }
func (n *AssetNode) hasSublevels() bool    { return false }
func (n *AssetNode) sublevels(int) []Level { return []Level{} }
func (n *AssetNode) AsLevel(md int) Level  { return asLevel(n, md) }

// PathTypeSequenceNode is the fixed "sequence" branch of a project.
type PathTypeSequenceNode struct {
	Sequences []*SequenceNode `json:"sequences"`

	parent Node
}

var _ Node = &PathTypeSequenceNode{}

func (n *PathTypeSequenceNode) parentNode() Node     { return n.parent }
func (n *PathTypeSequenceNode) pathSegment() string  { return string(domain.PathTypeSequence) }
func (n *PathTypeSequenceNode) fillOwn(lv *Level)    { lv.Type = string(domain.PathTypeSequence) }
func (n *PathTypeSequenceNode) hasSublevels() bool   { return 0 < len(n.Sequences) }
func (n *PathTypeSequenceNode) AsLevel(md int) Level { return asLevel(n, md) }

func (n *PathTypeSequenceNode) sublevels(maxDepth int) []Level {
	subs := []Level{}
	for _, s := range n.Sequences {
		subs = append(subs, s.AsLevel(maxDepth))
	}
	return subs
}

func (n *PathTypeSequenceNode) clone() *PathTypeSequenceNode {
	nc := &PathTypeSequenceNode{}
	for _, s := range n.Sequences {
		nc.Sequences = append(nc.Sequences, s.clone())
	}
	return nc
}

func (n *PathTypeSequenceNode) relink(parent Node) {
	n.parent = parent
	for _, s := range n.Sequences {
		s.relink(n)
	}
}

// SequenceNode is a sequence together with its shots.
type SequenceNode struct {
	ID    int         `json:"id"`
	Code  string      `json:"code"`
	Shots []*ShotNode `json:"shots"`

	parent Node
}

var _ Node = &SequenceNode{}

func (n *SequenceNode) parentNode() Node     { return n.parent }
func (n *SequenceNode) pathSegment() string  { return n.Code }
func (n *SequenceNode) fillOwn(lv *Level)    { lv.SequenceName = n.Code }
func (n *SequenceNode) hasSublevels() bool   { return 0 < len(n.Shots) }
func (n *SequenceNode) AsLevel(md int) Level { return asLevel(n, md) }

func (n *SequenceNode) sublevels(maxDepth int) []Level {
	subs := []Level{}
	for _, s := range n.Shots {
		subs = append(subs, s.AsLevel(maxDepth))
	}
	return subs
}

func (n *SequenceNode) clone() *SequenceNode {
	nc := &SequenceNode{ID: n.ID, Code: n.Code}
	for _, s := range n.Shots {
		sc := *s
		sc.parent = nil
		nc.Shots = append(nc.Shots, &sc)
	}
	return nc
}

func (n *SequenceNode) relink(parent Node) {
	n.parent = parent
	for _, s := range n.Shots {
		s.parent = n
	}
}

// ShotNode is a leaf shot.
type ShotNode struct {
	ID   int    `json:"id"`
	Name string `json:"name"`

	parent Node
}

var _ Node = &ShotNode{}

func (n *ShotNode) parentNode() Node      { return n.parent }
func (n *ShotNode) pathSegment() string   { return n.Name }
func (n *ShotNode) fillOwn(lv *Level)     { lv.ShotName = n.Name }
func (n *ShotNode) hasSublevels() bool    { return false }
func (n *ShotNode) sublevels(int) []Level { return []Level{} }
func (n *ShotNode) AsLevel(md int) Level  { return asLevel(n, md) }
