// Package testing switches the process into test mode. Test files import it
// for its side effect:
//
//	import _ "github.com/AkZcH/MutexTalk/testing"
package testing

import "github.com/AkZcH/MutexTalk/internal/testing/guard"

func init() {
	guard.Enable()
}
