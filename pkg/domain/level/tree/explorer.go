package tree

import (
	"github.com/spinvfx/spinfab/pkg/domain"
)

// FindNodeByPath walks the tree along the present segments of a parsed
// path. It returns nil as soon as a segment has no matching node.
//
// Segments below the deepest present one are ignored, so a path naming
// only site and division resolves to the division node.
func (r *Root) FindNodeByPath(parsed domain.ParsedLevelPath) Node {
	if parsed.Site == "" {
		return r
	}

	siteNode := r.findSite(parsed.Site)
	if siteNode == nil {
		return nil
	}

	if parsed.Division == "" {
		return siteNode
	}

	divisionNode := findDivision(siteNode, parsed.Division)
	if divisionNode == nil {
		return nil
	}

	if parsed.Show == "" {
		return divisionNode
	}

	projectNode := findProject(divisionNode, parsed.Show)
	if projectNode == nil {
		return nil
	}

	if parsed.Type == "" {
		return projectNode
	}

	switch parsed.Type {
	case domain.PathTypeAsset:
		assetBranch := projectNode.Assets

		if parsed.AssetType == "" {
			return assetBranch
		}
		assetTypeNode := findAssetType(assetBranch, parsed.AssetType)
		if assetTypeNode == nil {
			return nil
		}

		if parsed.AssetCode == "" {
			return assetTypeNode
		}
		if assetNode := findAsset(assetTypeNode, parsed.AssetCode); assetNode != nil {
			return assetNode
		}
		return nil

	case domain.PathTypeSequence:
		sequenceBranch := projectNode.Sequences

		if parsed.SequenceName == "" {
			return sequenceBranch
		}
		sequenceNode := findSequence(sequenceBranch, parsed.SequenceName)
		if sequenceNode == nil {
			return nil
		}

		if parsed.ShotName == "" {
			return sequenceNode
		}
		if shotNode := findShot(sequenceNode, parsed.ShotName); shotNode != nil {
			return shotNode
		}
		return nil
	}

	return nil
}

func (r *Root) findSite(site domain.Site) *SiteNode {
	for _, s := range r.sites {
		if s.Site == site {
			return s
		}
	}
	return nil
}

func findDivision(siteNode *SiteNode, division domain.Division) *DivisionNode {
	for _, d := range siteNode.Divisions {
		if d.Division == division {
			return d
		}
	}
	return nil
}

func findProject(divisionNode *DivisionNode, show string) *ProjectNode {
	for _, p := range divisionNode.Projects {
		if p.Name == show {
			// a project filed under the wrong division is treated as absent
			if p.Division != divisionNode.Division {
				return nil
			}
			return p
		}
	}
	return nil
}

func findAssetType(branch *PathTypeAssetNode, assetType string) *AssetTypeNode {
	for _, at := range branch.AssetTypes {
		if at.AssetType == assetType {
			return at
		}
	}
	return nil
}

func findAsset(assetTypeNode *AssetTypeNode, assetCode string) *AssetNode {
	for _, a := range assetTypeNode.Assets {
		if a.Code == assetCode {
			return a
		}
	}
	return nil
}

func findSequence(branch *PathTypeSequenceNode, sequenceName string) *SequenceNode {
	for _, s := range branch.Sequences {
		if s.Code == sequenceName {
			return s
		}
	}
	return nil
}

func findShot(sequenceNode *SequenceNode, shotName string) *ShotNode {
	for _, s := range sequenceNode.Shots {
		if s.Name == shotName {
			return s
		}
	}
	return nil
}
