package roles

// Collection is an immutable, ordered role catalog holding at most one role per id.
type Collection struct {
	roles []Role
	byID  map[int64]int
}

// NewCollection builds a collection tagging every role with provenance. Later entries
// that repeat an id are dropped and their ids returned.
func NewCollection(list []Role, provenance Provenance) (*Collection, []int64) {
	c := &Collection{
		roles: make([]Role, 0, len(list)),
		byID:  make(map[int64]int, len(list)),
	}

	var dropped []int64
	for _, r := range list {
		if _, dup := c.byID[r.ID]; dup {
			dropped = append(dropped, r.ID)
			continue
		}
		r.Provenance = provenance
		c.byID[r.ID] = len(c.roles)
		c.roles = append(c.roles, r)
	}

	return c, dropped
}

func emptyCollection() *Collection {
	return &Collection{byID: map[int64]int{}}
}

// FindByID returns the role with the given id.
func (c *Collection) FindByID(id int64) (Role, bool) {
	if c == nil {
		return Role{}, false
	}
	idx, ok := c.byID[id]
	if !ok {
		return Role{}, false
	}
	return c.roles[idx], true
}

// Roles returns a copy of the catalog in fetch order.
func (c *Collection) Roles() []Role {
	if c == nil {
		return nil
	}
	out := make([]Role, len(c.roles))
	copy(out, c.roles)
	return out
}

// Len returns the number of roles.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.roles)
}

// Degraded reports whether the collection is the fallback catalog.
func (c *Collection) Degraded() bool {
	return c != nil && len(c.roles) > 0 && c.roles[0].Provenance == Fallback
}
