package stack

import "container/list"

func New() *stack {
	return &stack{new(list.List)}
}

func (s *stack) Len() int {
	return s.l.Len()
}

func (s *stack) IsEmpty() bool {
	return s.l.Len() == 0
}

func (s *stack) Pop() []byte {
	if e := s.l.Front(); e != nil {
		s.l.Remove(e)
		return e.Value.([]byte)
	}
	return nil
}

func (s *stack) Push(buf []byte) {
	s.l.PushFront(buf)
}
