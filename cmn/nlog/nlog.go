// Package nlog is the client-side logger: leveled, timestamped, with the
// caller's file:line prefix. Unlike a cluster daemon, a library process owns
// a single log sink for its whole lifetime, so this trims the teacher's
// multi-file buffering/rotation machinery down to one mutex-guarded writer.
package nlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

const sevChar = "IWE"

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
	lvl           = sevInfo
)

// SetOutput redirects all subsequent log lines; nil resets to stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
}

// SetLevel suppresses severities below lvl (sevInfo by default).
func SetLevel(warnOnly bool) {
	mu.Lock()
	defer mu.Unlock()
	if warnOnly {
		lvl = sevWarn
	} else {
		lvl = sevInfo
	}
}

func Infoln(args ...any)                  { log(sevInfo, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Warningln(args ...any)               { log(sevWarn, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Errorln(args ...any)                 { log(sevErr, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }

// Flush is a no-op kept for API parity with the teacher's rotating logger
// (the single writer here is unbuffered).
func Flush() {}

func log(sev severity, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if sev < lvl {
		return
	}
	var b strings.Builder
	writeHdr(&b, sev, 3)
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	io.WriteString(out, b.String())
}

func writeHdr(b *strings.Builder, sev severity, skip int) {
	b.WriteByte(sevChar[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')

	_, fn, ln, ok := runtime.Caller(skip)
	if !ok {
		return
	}
	if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
		fn = fn[idx+1:]
	}
	b.WriteString(fn)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(ln))
	b.WriteByte(' ')
}
