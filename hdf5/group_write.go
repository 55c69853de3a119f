package hdf5

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robert-malhotra/tomoslice/internal/message"
	"github.com/robert-malhotra/tomoslice/internal/object"
)

// CreateGroup creates an empty subgroup called name.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkNewMember(name); err != nil {
		return nil, err
	}

	f := g.file
	raw, err := object.Encode(f.writer.Config(), object.GroupMessages(nil), object.MinGroupChunkSize)
	if err != nil {
		return nil, fmt.Errorf("encoding group header: %w", err)
	}
	addr := f.allocator.Alloc(uint64(len(raw)), "group header")
	if err := f.writer.At(int64(addr)).WriteBytes(raw); err != nil {
		return nil, fmt.Errorf("writing group header: %w", err)
	}

	child := &Group{
		file:   f,
		path:   joinPath(g.path, name),
		parent: g,
		addr:   addr,
		links:  []*message.Link{},
		loaded: true,
		chunk:  object.MinGroupChunkSize,
		size:   len(raw),
	}
	if err := g.addLink(message.NewHardLink(name, addr)); err != nil {
		return nil, err
	}
	f.groups[child.path] = child
	return child, nil
}

// RequireGroup opens the group at p relative to g, creating any missing
// groups along the way.
func (g *Group) RequireGroup(p string) (*Group, error) {
	cur := g
	if strings.HasPrefix(p, "/") {
		cur = g.file.root
	}
	for _, name := range SplitPath(p) {
		next, err := cur.OpenGroup(name)
		switch {
		case err == nil:
		case errors.Is(err, ErrNotFound):
			next, err = cur.CreateGroup(name)
			if err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// checkNewMember validates a member name about to be linked into g.
func (g *Group) checkNewMember(name string) error {
	if !g.file.writable {
		return ErrReadOnly
	}
	if g.file.closed {
		return ErrClosed
	}
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: member name %q", ErrInvalidPath, name)
	}
	links, err := g.memberLinks()
	if err != nil {
		return err
	}
	for _, l := range links {
		if l.Name == name {
			return fmt.Errorf("%w: %s", ErrExists, joinPath(g.path, name))
		}
	}
	return nil
}

// addLink appends a hard link to g and rewrites its header.
func (g *Group) addLink(l *message.Link) error {
	g.links = append(g.links, l)
	if err := g.rewriteHeader(); err != nil {
		g.links = g.links[:len(g.links)-1]
		return fmt.Errorf("linking %s: %w", joinPath(g.path, l.Name), err)
	}
	return nil
}

// rewriteHeader writes g's header with its current links. The header is
// rewritten in place while it fits; otherwise it moves to the end of the
// file with twice the room and the parent link, or the superblock root
// address, is updated.
func (g *Group) rewriteHeader() error {
	f := g.file
	cfg := f.writer.Config()
	msgs := object.GroupMessages(g.links)

	size, err := object.Size(cfg, msgs, g.chunk)
	if err != nil {
		return err
	}
	if size <= g.size {
		raw, err := object.Encode(cfg, msgs, g.chunk)
		if err != nil {
			return err
		}
		return f.writer.At(int64(g.addr)).WriteBytes(raw)
	}

	chunk := 2 * g.chunk
	raw, err := object.Encode(cfg, msgs, chunk)
	if err != nil {
		return err
	}
	addr := f.allocator.Alloc(uint64(len(raw)), "group header")
	if err := f.writer.At(int64(addr)).WriteBytes(raw); err != nil {
		return err
	}
	f.allocator.Free(g.addr, uint64(g.size))
	g.addr, g.chunk, g.size = addr, chunk, len(raw)

	if g.parent == nil {
		f.superblock.RootGroupAddress = addr
		return f.commitEOF()
	}
	name := g.Name()
	for _, l := range g.parent.links {
		if l.Name == name {
			l.ObjectAddress = addr
			return g.parent.rewriteHeader()
		}
	}
	return fmt.Errorf("%w: %s missing from its parent", ErrNotFound, g.path)
}
