package rbac

import "testing"

func intp(v int) *int { return &v }

func TestBuildTreePrunesPathlessLeaves(t *testing.T) {
	menus := []Menu{
		{ID: "1", Path: "/sys"},
		{ID: "2", ParentID: "1", Path: "/sys/user"},
		{ID: "3", ParentID: "1"}, // no path, no children
	}
	tree := BuildTree(menus)
	if len(tree) != 1 || tree[0].ID != "1" {
		t.Fatalf("unexpected roots: %+v", tree)
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].ID != "2" {
		t.Fatalf("node 3 should be pruned: %+v", tree[0].Children)
	}
}

func TestBuildTreeHiddenNodesNeverAppear(t *testing.T) {
	menus := []Menu{
		{ID: "1", Path: "/a"},
		{ID: "2", ParentID: "1", Path: "/a/b", Hidden: true},
		{ID: "3", ParentID: "2", Path: "/a/b/c"}, // parent hidden -> orphaned, dropped
		{ID: "4", ParentID: "1", Path: "/a/d"},
	}
	tree := BuildTree(menus)
	var walk func(nodes []*MenuNode)
	walk = func(nodes []*MenuNode) {
		for _, n := range nodes {
			if n.ID == "2" || n.ID == "3" {
				t.Fatalf("node %s must not appear in the tree", n.ID)
			}
			walk(n.Children)
		}
	}
	walk(tree)
	if len(tree) != 1 || len(tree[0].Children) != 1 || tree[0].Children[0].ID != "4" {
		t.Fatalf("unexpected tree: %+v", tree)
	}
}

func TestBuildTreeOrphansAreDropped(t *testing.T) {
	menus := []Menu{
		{ID: "1", Path: "/home"},
		{ID: "9", ParentID: "404", Path: "/lost"},
	}
	tree := BuildTree(menus)
	if len(tree) != 1 || tree[0].ID != "1" {
		t.Fatalf("orphan must be dropped silently: %+v", tree)
	}
}

func TestBuildTreeZeroParentIsRoot(t *testing.T) {
	menus := []Menu{
		{ID: "1", ParentID: "0", Path: "/root"},
	}
	tree := BuildTree(menus)
	if len(tree) != 1 || tree[0].ID != "1" {
		t.Fatalf("parent id 0 must be treated as root: %+v", tree)
	}
}

func TestBuildTreePruningIsBottomUp(t *testing.T) {
	// A folder chain whose only leaf has no path collapses entirely.
	menus := []Menu{
		{ID: "1"},
		{ID: "2", ParentID: "1"},
		{ID: "3", ParentID: "2"},
	}
	if tree := BuildTree(menus); len(tree) != 0 {
		t.Fatalf("pure folder chain should vanish: %+v", tree)
	}
}

func TestBuildTreePruningInvariant(t *testing.T) {
	menus := []Menu{
		{ID: "1", Path: "/sys"},
		{ID: "2", ParentID: "1"},
		{ID: "3", ParentID: "2", Path: "/sys/deep"},
		{ID: "4"},
		{ID: "5", ParentID: "4"},
	}
	tree := BuildTree(menus)
	var check func(nodes []*MenuNode)
	check = func(nodes []*MenuNode) {
		for _, n := range nodes {
			if n.Path == "" && len(n.Children) == 0 && !n.IsPermission {
				t.Fatalf("pruning invariant violated at node %s", n.ID)
			}
			check(n.Children)
		}
	}
	check(tree)
	// Node 2 has no path but a surviving descendant, so it stays.
	if len(tree) != 1 || len(tree[0].Children) != 1 || tree[0].Children[0].ID != "2" {
		t.Fatalf("unexpected tree: %+v", tree)
	}
}

func TestSortMenusMissingSortLast(t *testing.T) {
	menus := []Menu{
		{ID: "a"},
		{ID: "b", Sort: intp(2)},
		{ID: "c", Sort: intp(1)},
		{ID: "d"},
	}
	SortMenus(menus)
	got := []string{menus[0].ID, menus[1].ID, menus[2].ID, menus[3].ID}
	want := []string{"c", "b", "a", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestBuildTreeWithPermissions(t *testing.T) {
	menus := []Menu{
		{ID: "1", Path: "/user"},
		{ID: "2", ParentID: "1"}, // folder kept alive only by its permission child
	}
	perms := map[string][]Permission{
		"2": {{ID: "p1", Code: "user:del"}},
	}
	tree := BuildTreeWithPermissions(menus, perms, "btn: ")
	if len(tree) != 1 || len(tree[0].Children) != 1 {
		t.Fatalf("unexpected tree: %+v", tree)
	}
	folder := tree[0].Children[0]
	if folder.ID != "2" || len(folder.Children) != 1 {
		t.Fatalf("permission child should keep the folder: %+v", folder)
	}
	leaf := folder.Children[0]
	if !leaf.IsPermission || leaf.Name != "btn: user:del" {
		t.Fatalf("unexpected permission node: %+v", leaf)
	}
}
