package quell

import (
	"runtime"
	"strconv"
	"sync"
)

// StackTrace is a stack of call frames, optionally linked to a Parent trace from another
// goroutine. Spawned tasks that panic report one of these via [PanicError], with the panic site's
// frames linked to the spawn site's - so the report reads across the goroutine boundary.
//
// Collection is the fast path (it happens on every Spawn); printing is not optimized.
type StackTrace struct {
	Frames []StackFrame
	Parent *StackTrace
}

// StackFrame is one call frame of a [StackTrace]. Fields may be zero if the runtime could not
// resolve them.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// GetStackTrace collects the calling goroutine's stack, minus skip frames at the top, and links
// it to parent (which may be nil).
func GetStackTrace(parent *StackTrace, skip uint) StackTrace {
	frames := collectFrames(skip + 1) // skip the frame introduced by GetStackTrace itself
	return StackTrace{Frames: frames, Parent: parent}
}

func (st StackTrace) String() string {
	var buf []byte

	for {
		if len(st.Frames) == 0 {
			buf = append(buf, "<empty stack>\n"...)
		}
		for _, f := range st.Frames {
			if f.Function == "" {
				buf = append(buf, "<unknown function>"...)
			} else {
				buf = append(buf, f.Function...)
				buf = append(buf, "(...)"...)
			}
			buf = append(buf, "\n\t"...)
			if f.File == "" {
				buf = append(buf, "<unknown file>"...)
			} else {
				buf = append(buf, f.File...)
				if f.Line != 0 {
					buf = append(buf, ':')
					buf = strconv.AppendInt(buf, int64(f.Line), 10)
				}
			}
			buf = append(buf, '\n')
		}

		if st.Parent == nil {
			return string(buf)
		}
		st = *st.Parent
	}
}

var pcBufPool = sync.Pool{
	New: func() any {
		buf := make([]uintptr, 128)
		return &buf
	},
}

func putPCBuffer(buf *[]uintptr) {
	if len(*buf) < 1024 {
		pcBufPool.Put(buf)
	}
}

func collectFrames(skip uint) []StackFrame {
	skip += 2 // skip the frame introduced by this function and runtime.Callers

	pcBuf := pcBufPool.Get().(*[]uintptr)
	defer putPCBuffer(pcBuf)

	// read program counters into the buffer, doubling it until it's big enough
	var pc []uintptr
	for {
		n := runtime.Callers(0, *pcBuf)
		if n == 0 {
			panic("runtime.Callers(0, ...) returned zero")
		}

		if n < len(*pcBuf) {
			pc = (*pcBuf)[:n]
			break
		}
		*pcBuf = make([]uintptr, 2*len(*pcBuf))
	}

	framesIter := runtime.CallersFrames(pc)
	var frames []StackFrame
	more := true
	for more {
		var frame runtime.Frame
		frame, more = framesIter.Next()

		if skip > 0 {
			skip -= 1
			continue
		}

		frames = append(frames, StackFrame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
	}

	return frames
}
