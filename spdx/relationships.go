package spdx

import (
	"log/slog"

	"github.com/oscomply/inventoryd/inventory"
)

// Relationship kinds that place the related element under the source
// element, their inverses, and the linking kinds.
const (
	RelContains     = "CONTAINS"
	RelDependsOn    = "DEPENDS_ON"
	RelAncestorOf   = "ANCESTOR_OF"
	RelContainedBy  = "CONTAINED_BY"
	RelDependencyOf = "DEPENDENCY_OF"
	RelDescendantOf = "DESCENDANT_OF"
	RelStaticLink   = "STATIC_LINK"
	RelDynamicLink  = "DYNAMIC_LINK"
)

// applyRelationships is the second pass over the document's edges. It
// runs only after every package has an inventory item, since an edge may
// name an element that appears later in document order than the edge
// itself.
func (g *Ingestor) applyRelationships(tx *inventory.Tx, rels []Relationship, elements map[string]*inventory.InventoryItem) error {
	for _, rel := range rels {
		source := elements[rel.SpdxElementID]
		target := elements[rel.RelatedSpdxElement]

		switch rel.RelationshipType {
		case RelContains, RelDependsOn, RelAncestorOf:
			if err := g.setParent(tx, target, source, rel); err != nil {
				return err
			}
		case RelContainedBy, RelDependencyOf, RelDescendantOf:
			if err := g.setParent(tx, source, target, rel); err != nil {
				return err
			}
		case RelStaticLink:
			if err := g.setLinking(tx, target, inventory.LinkingStatic, rel); err != nil {
				return err
			}
		case RelDynamicLink:
			if err := g.setLinking(tx, target, inventory.LinkingDynamic, rel); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Ingestor) setParent(tx *inventory.Tx, child, parent *inventory.InventoryItem, rel Relationship) error {
	if child == nil || parent == nil {
		g.skip(rel)
		return nil
	}
	if child.ID == parent.ID {
		return nil
	}
	if err := tx.SetItemParent(child.ID, parent.ID); err != nil {
		return err
	}
	child.ParentID = parent.ID
	return nil
}

func (g *Ingestor) setLinking(tx *inventory.Tx, item *inventory.InventoryItem, linking inventory.LinkingType, rel Relationship) error {
	if item == nil {
		g.skip(rel)
		return nil
	}
	if err := tx.SetItemLinking(item.ID, linking); err != nil {
		return err
	}
	item.Linking = linking
	return nil
}

// skip logs edges whose endpoints are not package elements of this
// document, such as the document-describes edge.
func (g *Ingestor) skip(rel Relationship) {
	g.logger.Debug("relationship references unknown element",
		slog.String("type", rel.RelationshipType),
		slog.String("source", rel.SpdxElementID),
		slog.String("target", rel.RelatedSpdxElement))
}
