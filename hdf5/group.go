package hdf5

import (
	"fmt"
	"path"
	"strings"

	"github.com/robert-malhotra/tomoslice/internal/btree"
	"github.com/robert-malhotra/tomoslice/internal/heap"
	"github.com/robert-malhotra/tomoslice/internal/message"
	"github.com/robert-malhotra/tomoslice/internal/object"
)

// Group is an HDF5 group.
type Group struct {
	file   *File
	path   string
	parent *Group
	addr   uint64
	header *object.Header

	// links caches the members once loaded. Groups created by this
	// package start with an empty, loaded list.
	links  []*message.Link
	loaded bool

	// Header placement of a group this package wrote; chunk is the minimum
	// chunk size the header was encoded with.
	chunk int
	size  int
}

// Name returns the last component of the group path.
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

// Path returns the absolute path of the group.
func (g *Group) Path() string {
	return g.path
}

// Address returns the file address of the group's object header.
func (g *Group) Address() uint64 {
	return g.addr
}

// Members returns the names of the group's members in storage order.
func (g *Group) Members() ([]string, error) {
	links, err := g.memberLinks()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(links))
	for i, l := range links {
		names[i] = l.Name
	}
	return names, nil
}

// NumObjects returns the number of members.
func (g *Group) NumObjects() (int, error) {
	links, err := g.memberLinks()
	if err != nil {
		return 0, err
	}
	return len(links), nil
}

// OpenGroup opens a group by path. Relative paths start at g, absolute
// ones at the file root.
func (g *Group) OpenGroup(p string) (*Group, error) {
	obj, err := g.resolve(p, 0)
	if err != nil {
		return nil, err
	}
	grp, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, p)
	}
	return grp, nil
}

// OpenDataset opens a dataset by path. Relative paths start at g, absolute
// ones at the file root.
func (g *Group) OpenDataset(p string) (*Dataset, error) {
	obj, err := g.resolve(p, 0)
	if err != nil {
		return nil, err
	}
	ds, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, p)
	}
	return ds, nil
}

// resolve walks p one component at a time, following soft and external
// links. depth counts the links followed so far.
func (g *Group) resolve(p string, depth int) (any, error) {
	if depth > MaxLinkDepth {
		return nil, fmt.Errorf("%w: resolving %q", ErrLinkDepth, p)
	}
	start := g
	if strings.HasPrefix(p, "/") {
		start = g.file.root
	}
	var obj any = start
	for _, name := range SplitPath(p) {
		grp, ok := obj.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a group", ErrInvalidPath, p)
		}
		child, err := grp.child(name, depth)
		if err != nil {
			return nil, err
		}
		obj = child
	}
	return obj, nil
}

// child opens the member called name.
func (g *Group) child(name string, depth int) (any, error) {
	l, err := g.link(name)
	if err != nil {
		return nil, err
	}
	switch l.LinkType {
	case message.LinkTypeHard:
		return g.file.openObjectAt(l.ObjectAddress, joinPath(g.path, name), g)
	case message.LinkTypeSoft:
		return g.resolve(l.SoftPath, depth+1)
	case message.LinkTypeExternal:
		ext, err := g.file.openExternalFile(l.ExternalFile)
		if err != nil {
			return nil, err
		}
		return ext.root.resolve(l.ExternalPath, depth+1)
	}
	return nil, fmt.Errorf("%w: link type %d", ErrUnsupported, l.LinkType)
}

// link returns the member link called name.
func (g *Group) link(name string) (*message.Link, error) {
	links, err := g.memberLinks()
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, joinPath(g.path, name))
}

// memberLinks loads the group's members. Old style groups are converted
// to link form so both formats resolve the same way.
func (g *Group) memberLinks() ([]*message.Link, error) {
	if g.loaded {
		return g.links, nil
	}
	if g.header == nil {
		return nil, fmt.Errorf("%w: group %s has no header", ErrNotFound, g.path)
	}

	st := g.header.SymbolTable()
	if st == nil && g.path == "/" && g.file.superblock.RootBTreeAddress != 0 &&
		g.file.superblock.RootHeapAddress != 0 && len(g.header.Links()) == 0 {
		st = &message.SymbolTable{
			BTreeAddress:     g.file.superblock.RootBTreeAddress,
			LocalHeapAddress: g.file.superblock.RootHeapAddress,
		}
	}

	switch {
	case st != nil:
		links, err := g.symbolTableLinks(st)
		if err != nil {
			return nil, err
		}
		g.links = links
	default:
		if li := g.header.LinkInfo(); li != nil && !g.file.reader.IsUndefinedOffset(li.FractalHeapAddr) {
			return nil, fmt.Errorf("%w: dense link storage in %s", ErrUnsupported, g.path)
		}
		g.links = g.header.Links()
	}
	g.loaded = true
	return g.links, nil
}

func (g *Group) symbolTableLinks(st *message.SymbolTable) ([]*message.Link, error) {
	names, err := heap.ReadLocal(g.file.reader, st.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("reading local heap of %s: %w", g.path, err)
	}
	entries, err := btree.ReadGroup(g.file.reader, st.BTreeAddress, names)
	if err != nil {
		return nil, fmt.Errorf("reading symbol table of %s: %w", g.path, err)
	}
	links := make([]*message.Link, len(entries))
	for i, e := range entries {
		if e.SoftLink != "" {
			links[i] = &message.Link{Version: 1, LinkType: message.LinkTypeSoft, Name: e.Name, SoftPath: e.SoftLink}
			continue
		}
		links[i] = message.NewHardLink(e.Name, e.ObjectAddress)
	}
	return links, nil
}
