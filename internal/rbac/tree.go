package rbac

import "sort"

// SortMenus orders a flat menu list by Sort ascending, stable, with
// missing sort values last.
func SortMenus(menus []Menu) {
	sort.SliceStable(menus, func(i, j int) bool {
		a, b := menus[i].Sort, menus[j].Sort
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}

// BuildTree converts a flat menu list into the hierarchical tree.
//
// Hidden nodes are excluded entirely; their children are not implicitly
// hidden but end up orphaned (their parent never joins the tree) and are
// dropped, since only nodes with an empty or "0" parent reach the root
// list. Orphans pointing at unknown parents are dropped silently. After
// assembly the tree is pruned bottom-up: a node survives iff it has a
// surviving child, a non-empty path, or carries the permission marker.
func BuildTree(menus []Menu) []*MenuNode {
	nodes := make(map[string]*MenuNode, len(menus))
	for _, m := range menus {
		if m.Hidden {
			continue
		}
		nodes[m.ID] = &MenuNode{ID: m.ID, Name: m.Name, Path: m.Path, Sort: m.Sort}
	}

	var roots []*MenuNode
	for _, m := range menus {
		if m.Hidden {
			continue
		}
		node := nodes[m.ID]
		if isRootParent(m.ParentID) {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[m.ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	return prune(roots)
}

// BuildTreeWithPermissions behaves like BuildTree but augments every
// menu node with a synthetic child per associated permission, decorated
// with the display prefix. A node whose only children are permission
// entries still counts as having children for pruning.
func BuildTreeWithPermissions(menus []Menu, permsByMenu map[string][]Permission, prefix string) []*MenuNode {
	nodes := make(map[string]*MenuNode, len(menus))
	for _, m := range menus {
		if m.Hidden {
			continue
		}
		nodes[m.ID] = &MenuNode{ID: m.ID, Name: m.Name, Path: m.Path, Sort: m.Sort}
	}

	var roots []*MenuNode
	for _, m := range menus {
		if m.Hidden {
			continue
		}
		node := nodes[m.ID]
		for _, p := range permsByMenu[m.ID] {
			node.Children = append(node.Children, &MenuNode{
				ID:           p.ID,
				Name:         prefix + p.Code,
				IsPermission: true,
			})
		}
		if isRootParent(m.ParentID) {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[m.ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	return prune(roots)
}

func isRootParent(parentID string) bool {
	return parentID == "" || parentID == "0"
}

// prune removes pure folder nodes: children first, then the parent's
// keep-decision. Running it twice yields the same tree.
func prune(nodes []*MenuNode) []*MenuNode {
	kept := nodes[:0]
	for _, node := range nodes {
		node.Children = prune(node.Children)
		if len(node.Children) > 0 || node.Path != "" || node.IsPermission {
			kept = append(kept, node)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
