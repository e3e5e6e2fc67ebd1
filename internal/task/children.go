package task

// siblings is a doubly linked list of the live children of a task, in
// creation order. The links are stored in the children themselves.
type siblings struct {
	head, tail *Task
	n          int
}

// AddChild appends child to the children of t and makes t its parent.
func (t *Task) AddChild(child *Task) {
	if asserts && (child.Parent != nil || child.prevSibling != nil || child.nextSibling != nil) {
		panic("task: adding a child that already has a parent")
	}
	child.Parent = t
	child.prevSibling = t.children.tail
	if t.children.tail != nil {
		t.children.tail.nextSibling = child
	} else {
		t.children.head = child
	}
	t.children.tail = child
	t.children.n++
}

// Detach removes t from the children of its parent and clears the parent
// reference. It is a no-op for a task without a parent.
func (t *Task) Detach() {
	p := t.Parent
	if p == nil {
		return
	}
	if t.prevSibling != nil {
		t.prevSibling.nextSibling = t.nextSibling
	} else {
		p.children.head = t.nextSibling
	}
	if t.nextSibling != nil {
		t.nextSibling.prevSibling = t.prevSibling
	} else {
		p.children.tail = t.prevSibling
	}
	t.prevSibling, t.nextSibling = nil, nil
	p.children.n--
	t.Parent = nil
}

// Orphan clears the parent reference of every child of t and empties the
// children list. The children keep running, they just don't report to t
// anymore. It returns the orphaned children in creation order.
func (t *Task) Orphan() []*Task {
	if t.children.n == 0 {
		return nil
	}
	orphans := make([]*Task, 0, t.children.n)
	for c := t.children.head; c != nil; {
		next := c.nextSibling
		c.Parent = nil
		c.prevSibling, c.nextSibling = nil, nil
		orphans = append(orphans, c)
		c = next
	}
	t.children = siblings{}
	return orphans
}

// NumChildren returns the number of live children.
func (t *Task) NumChildren() int {
	return t.children.n
}

// IsChild reports whether c is a live direct child of t.
func (t *Task) IsChild(c *Task) bool {
	return c != nil && c.Parent == t
}

// Children returns the live children in creation order.
func (t *Task) Children() []*Task {
	list := make([]*Task, 0, t.children.n)
	for c := t.children.head; c != nil; c = c.nextSibling {
		list = append(list, c)
	}
	return list
}
