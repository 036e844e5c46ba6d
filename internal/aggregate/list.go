package aggregate

import "github.com/quillside/logdeck/internal/model"

// node is one intrusive list entry. Keeping prev/next on the entry itself
// gives O(1) removal-from-middle and move-to-tail, which a slice-backed
// collection cannot offer.
type node struct {
	rec        *model.LogRecord
	prev, next *node
}

// recordList is a doubly linked list ordered oldest (head) to newest (tail).
type recordList struct {
	head, tail *node
	size       int
}

func (l *recordList) pushTail(n *node) {
	n.prev = l.tail
	n.next = nil
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.size++
}

func (l *recordList) remove(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	l.size--
}

func (l *recordList) moveToTail(n *node) {
	if l.tail == n {
		return
	}
	l.remove(n)
	l.pushTail(n)
}

func (l *recordList) popHead() *node {
	n := l.head
	if n != nil {
		l.remove(n)
	}
	return n
}

func (l *recordList) clear() {
	l.head, l.tail, l.size = nil, nil, 0
}
