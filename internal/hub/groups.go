package hub

import "sort"

// Groups is the broadcast membership table: group name to connection
// ids, plus the reverse index used on disconnect. Hub goroutine only.
type Groups struct {
	members map[string]map[string]struct{}
	byConn  map[string]map[string]struct{}
}

func NewGroups() *Groups {
	return &Groups{
		members: make(map[string]map[string]struct{}),
		byConn:  make(map[string]map[string]struct{}),
	}
}

func (g *Groups) Join(group, connID string) {
	if g.members[group] == nil {
		g.members[group] = make(map[string]struct{})
	}
	g.members[group][connID] = struct{}{}

	if g.byConn[connID] == nil {
		g.byConn[connID] = make(map[string]struct{})
	}
	g.byConn[connID][group] = struct{}{}
}

func (g *Groups) Leave(group, connID string) {
	if m, ok := g.members[group]; ok {
		delete(m, connID)
		if len(m) == 0 {
			delete(g.members, group)
		}
	}
	if m, ok := g.byConn[connID]; ok {
		delete(m, group)
		if len(m) == 0 {
			delete(g.byConn, connID)
		}
	}
}

// RemoveAll drops connID from every group it joined.
func (g *Groups) RemoveAll(connID string) {
	for group := range g.byConn[connID] {
		if m, ok := g.members[group]; ok {
			delete(m, connID)
			if len(m) == 0 {
				delete(g.members, group)
			}
		}
	}
	delete(g.byConn, connID)
}

// Members returns the group's connection ids in sorted order.
func (g *Groups) Members(group string) []string {
	m := g.members[group]
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Of returns the groups connID belongs to, sorted.
func (g *Groups) Of(connID string) []string {
	m := g.byConn[connID]
	out := make([]string, 0, len(m))
	for group := range m {
		out = append(out, group)
	}
	sort.Strings(out)
	return out
}

func (g *Groups) Len() int {
	return len(g.members)
}
