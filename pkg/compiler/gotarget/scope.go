package gotarget

import "strings"

// scope is one nesting level of a location's task-join structure: a
// TaskGroup variable name and the Go statements emitted into its body so
// far. The emitter keeps a stack of these per location, one per currently
// open parenthesized sub-expression, mirroring the original back-end's
// per-location ThreadStack nesting.
//
// groupVar is allocated lazily: a scope starts (and becomes, again, after
// every Join) "stale" with no declared variable, and ensureGroup only
// writes a `gN := station.NewTaskGroup()` declaration the next time the
// scope actually needs one to call .Go on. Declaring a replacement group
// unconditionally after every join — the original back-end's rule — would
// leave an unused local variable, a compile error in Go, whenever a join is
// a scope's last statement (every paren close, every location's final
// join).
type scope struct {
	groupVar string
	stale    bool
	body     strings.Builder
}

// ensureGroup allocates and declares a fresh task group for s if one isn't
// already live, and returns its variable name.
func (s *scope) ensureGroup(l *locationState) string {
	if s.stale {
		s.groupVar = "g" + itoa(l.counter)
		l.counter++
		s.body.WriteString("\t" + s.groupVar + " := station.NewTaskGroup()\n")
		s.stale = false
	}
	return s.groupVar
}

// locationState is the in-progress generation state for one location's
// main.go: the stack of open scopes and a monotonic counter that keeps
// every TaskGroup variable name unique within the location.
type locationState struct {
	name    string
	scopes  []*scope
	counter int
}

func newLocationState(name string) *locationState {
	return &locationState{name: name}
}

// push opens a new scope, stale until its first real use.
func (l *locationState) push() *scope {
	s := &scope{stale: true}
	l.scopes = append(l.scopes, s)
	return s
}

// pop closes the current top scope and returns it.
func (l *locationState) pop() *scope {
	n := len(l.scopes) - 1
	s := l.scopes[n]
	l.scopes = l.scopes[:n]
	return s
}

// top returns the currently open (innermost) scope.
func (l *locationState) top() *scope {
	return l.scopes[len(l.scopes)-1]
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := make([]byte, 0, 4)
	for n > 0 {
		digits = append(digits, byte('0'+n%10))
		n /= 10
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
