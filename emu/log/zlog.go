package log

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/Sirupsen/logrus.v0"
)

type Level int

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func (lvl Level) logrus() logrus.Level {
	return logrus.Level(lvl)
}

var disabled = false

// Disable turns off all logging. Meant for tests and benchmarks.
func Disable() {
	disabled = true
}

// LogContext is implemented by components that want to attach fields (like
// the current frame number or tick) to every log entry emitted while they
// are registered.
type LogContext interface {
	AddLogContext(z *EntryZ)
}

var contexts []LogContext

func AddContext(c LogContext) {
	contexts = append(contexts, c)
}

// EntryZ is an allocation-free structured log entry. Methods can be called
// on a nil receiver, which happens when the entry's level is filtered out.
type EntryZ struct {
	mod   Module
	lvl   Level
	msg   string
	zfbuf [16]ZField
	zfidx int
}

var zpool = sync.Pool{
	New: func() any { return new(EntryZ) },
}

func NewEntryZ() *EntryZ {
	z := zpool.Get().(*EntryZ)
	z.zfidx = 0
	return z
}

func (z *EntryZ) field(f ZField) *EntryZ {
	if z == nil {
		return nil
	}
	if z.zfidx < len(z.zfbuf) {
		z.zfbuf[z.zfidx] = f
		z.zfidx++
	}
	return z
}

func (z *EntryZ) String(key, val string) *EntryZ {
	return z.field(ZField{Type: FieldTypeString, Key: key, String: val})
}

func (z *EntryZ) Bool(key string, val bool) *EntryZ {
	return z.field(ZField{Type: FieldTypeBool, Key: key, Boolean: val})
}

func (z *EntryZ) Int(key string, val int64) *EntryZ {
	return z.field(ZField{Type: FieldTypeInt, Key: key, Integer: uint64(val)})
}

func (z *EntryZ) Uint(key string, val uint64) *EntryZ {
	return z.field(ZField{Type: FieldTypeUint, Key: key, Integer: val})
}

func (z *EntryZ) Hex8(key string, val uint8) *EntryZ {
	return z.field(ZField{Type: FieldTypeHex8, Key: key, Integer: uint64(val)})
}

func (z *EntryZ) Hex16(key string, val uint16) *EntryZ {
	return z.field(ZField{Type: FieldTypeHex16, Key: key, Integer: uint64(val)})
}

func (z *EntryZ) Error(key string, err error) *EntryZ {
	return z.field(ZField{Type: FieldTypeError, Key: key, Error: err})
}

func (z *EntryZ) Duration(key string, d time.Duration) *EntryZ {
	return z.field(ZField{Type: FieldTypeDuration, Key: key, Duration: d})
}

func (z *EntryZ) Stringer(key string, val fmt.Stringer) *EntryZ {
	return z.field(ZField{Type: FieldTypeStringer, Key: key, Interface: val})
}

func (z *EntryZ) Blob(key string, val []byte) *EntryZ {
	return z.field(ZField{Type: FieldTypeBlob, Key: key, Blob: val})
}

// End emits the entry and recycles it.
func (z *EntryZ) End() {
	if z == nil {
		return
	}

	fields := make(logrus.Fields, z.zfidx+1)
	fields["_mod"] = modNames[z.mod]
	for _, c := range contexts {
		c.AddLogContext(z)
	}
	for i := range z.zfbuf[:z.zfidx] {
		fields[z.zfbuf[i].Key] = z.zfbuf[i].Value()
	}

	entry := logrus.StandardLogger().WithFields(fields)
	msg := z.msg
	lvl := z.lvl
	zpool.Put(z)

	switch lvl {
	case DebugLevel:
		entry.Debug(msg)
	case InfoLevel:
		entry.Info(msg)
	case WarnLevel:
		entry.Warn(msg)
	case ErrorLevel:
		entry.Error(msg)
	case FatalLevel:
		entry.Fatal(msg)
	case PanicLevel:
		entry.Panic(msg)
	}
}
