//go:build release

package ptr

const Checked = false

type borrowState struct{}

func (borrowState) acquireShared()            {}
func (borrowState) releaseShared()            {}
func (borrowState) acquireExclusive()         {}
func (borrowState) tryAcquireExclusive() bool { return true }
func (borrowState) releaseExclusive()         {}
func (borrowState) retire()                   {}

func violation(msg string) {}
