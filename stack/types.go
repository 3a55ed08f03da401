package stack

import "container/list"

type Stack interface {
	Len() int
	IsEmpty() bool
	Push([]byte)
	Pop() []byte
}

type stack struct {
	l *list.List
}
