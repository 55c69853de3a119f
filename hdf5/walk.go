package hdf5

import (
	"errors"
)

// WalkFunc is called for each object during traversal. obj is a *Group
// or a *Dataset, or nil when err reports that the member could not be
// opened. Returning SkipGroup from a group visit skips its members; any
// other error stops the walk.
type WalkFunc func(path string, obj any, err error) error

// SkipGroup tells Walk not to descend into the group just visited.
var SkipGroup = errors.New("skip this group")

// ErrStopWalk stops a walk early; Walk then returns nil.
var ErrStopWalk = errors.New("walk stopped")

// Walk visits g and everything below it, parents before members, members
// in storage order. Groups reached through more than one link are
// visited once.
func Walk(g *Group, fn WalkFunc) error {
	err := walkGroup(g, fn, make(map[uint64]bool))
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

// Walk visits every object in the file starting at the root.
func (f *File) Walk(fn WalkFunc) error {
	if f.closed {
		return ErrClosed
	}
	return Walk(f.root, fn)
}

func walkGroup(g *Group, fn WalkFunc, seen map[uint64]bool) error {
	seen[g.addr] = true
	if err := fn(g.path, g, nil); err != nil {
		if errors.Is(err, SkipGroup) {
			return nil
		}
		return err
	}

	links, err := g.memberLinks()
	if err != nil {
		return fn(g.path, nil, err)
	}
	for _, l := range links {
		childPath := joinPath(g.path, l.Name)
		obj, err := g.child(l.Name, 0)
		if err != nil {
			if err := fn(childPath, nil, err); err != nil {
				return err
			}
			continue
		}
		switch o := obj.(type) {
		case *Group:
			if o.file != g.file || seen[o.addr] {
				continue
			}
			if err := walkGroup(o, fn, seen); err != nil {
				return err
			}
		case *Dataset:
			if err := fn(childPath, o, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
