// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Run runs Cont-world program a as task ta and b as task tb and returns
// both results. Interleaves both tasks on the calling goroutine using
// adaptive backoff (iox.Backoff) when neither can make progress.
// ta and tb must differ.
func Run[A, B any](ta, tb *Task, a kont.Eff[A], b kont.Eff[B]) (A, B) {
	return RunExpr(ta, tb, Reify(a), Reify(b))
}

// RunExpr is Run for Expr-world programs.
func RunExpr[A, B any](ta, tb *Task, a kont.Expr[A], b kont.Expr[B]) (A, B) {
	resultA, suspA := Step[A](a)
	resultB, suspB := Step[B](b)
	var bo iox.Backoff

	var sopA syscallDispatcher
	if suspA != nil {
		sopA = suspA.Op().(syscallDispatcher)
	}
	var sopB syscallDispatcher
	if suspB != nil {
		sopB = suspB.Op().(syscallDispatcher)
	}

	for suspA != nil || suspB != nil {
		progress := false
		if suspA != nil {
			v, err := sopA.DispatchSyscall(&ta.sc)
			if err == nil {
				resultA, suspA = suspA.Resume(v)
				if suspA != nil {
					sopA = suspA.Op().(syscallDispatcher)
				}
				progress = true
			}
		}
		if suspB != nil {
			v, err := sopB.DispatchSyscall(&tb.sc)
			if err == nil {
				resultB, suspB = suspB.Resume(v)
				if suspB != nil {
					sopB = suspB.Op().(syscallDispatcher)
				}
				progress = true
			}
		}
		if !progress {
			bo.Wait()
		} else {
			bo.Reset()
		}
	}
	return resultA, resultB
}
