package typereg

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/objbridge"
	bridgeerrors "github.com/wippyai/objbridge/errors"
)

func ctorReturning(ref objbridge.Ref) Constructor {
	return func(objbridge.Env, objbridge.NativeObject) (objbridge.Ref, error) {
		return ref, nil
	}
}

func useLogger(t *testing.T, l *zap.Logger) {
	t.Helper()
	prev := Logger()
	SetLogger(l)
	t.Cleanup(func() { SetLogger(prev) })
}

func TestRegistry_Register(t *testing.T) {
	r := New()

	if err := r.Register("Shape", ctorReturning(1)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name string
		tag  string
		ctor Constructor
	}{
		{"duplicate", "Shape", ctorReturning(2)},
		{"empty tag", "", ctorReturning(2)},
		{"nil constructor", "Circle", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.tag, tt.ctor)
			if !errors.Is(err, bridgeerrors.ErrRegistration) {
				t.Fatalf("Expected registration error, got %v", err)
			}
		})
	}

	ctor, ok := r.Constructor("Shape")
	if !ok {
		t.Fatal("Expected Shape constructor")
	}
	if ref, _ := ctor(nil, nil); ref != 1 {
		t.Fatal("Duplicate registration replaced the first constructor")
	}
	if _, ok := r.Constructor("Circle"); ok {
		t.Fatal("Failed registration must not be recorded")
	}
}

func TestRegistry_Tags(t *testing.T) {
	r := New()
	for _, tag := range []string{"Square", "Circle", "Shape"} {
		if err := r.Register(tag, ctorReturning(1)); err != nil {
			t.Fatalf("Register %s failed: %v", tag, err)
		}
	}
	tags := r.Tags()
	want := []string{"Circle", "Shape", "Square"}
	if len(tags) != len(want) {
		t.Fatalf("Expected %v, got %v", want, tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, tags)
		}
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := New()
	r.Register("Shape", ctorReturning(10))
	r.Register("Circle", ctorReturning(20))

	const (
		circleAddr  objbridge.Address = 0x1000
		unboundAddr objbridge.Address = 0x2000
		orphanAddr  objbridge.Address = 0x3000
	)
	r.Bind(circleAddr, "Circle")
	r.Bind(orphanAddr, "Hexagon")

	tests := []struct {
		name     string
		addr     objbridge.Address
		declared string
		wantTag  string
		wantRef  objbridge.Ref
		wantErr  bool
	}{
		{"bound concrete type", circleAddr, "Shape", "Circle", 20, false},
		{"unbound uses declared", unboundAddr, "Shape", "Shape", 10, false},
		{"unregistered concrete falls back", orphanAddr, "Shape", "Shape", 10, false},
		{"unknown declared", unboundAddr, "Polygon", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, ctor, err := r.Resolve(tt.addr, tt.declared)
			if tt.wantErr {
				if !errors.Is(err, bridgeerrors.ErrNotFound) {
					t.Fatalf("Expected not found, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if tag != tt.wantTag {
				t.Fatalf("Expected tag %s, got %s", tt.wantTag, tag)
			}
			if ref, _ := ctor(nil, nil); ref != tt.wantRef {
				t.Fatalf("Expected constructor for %s", tt.wantTag)
			}
		})
	}
}

func TestRegistry_BindUnbind(t *testing.T) {
	r := New()
	const addr objbridge.Address = 0x1000

	r.Bind(addr, "Circle")
	r.Bind(addr, "Square")
	if got := r.Lookup(addr, "Shape"); got != "Square" {
		t.Fatalf("Expected rebind to overwrite, got %s", got)
	}
	if r.Bound() != 1 {
		t.Fatalf("Expected 1 bound address, got %d", r.Bound())
	}

	if err := r.Unbind(addr); err != nil {
		t.Fatalf("Unbind failed: %v", err)
	}
	if got := r.Lookup(addr, "Shape"); got != "Shape" {
		t.Fatalf("Expected declared tag after unbind, got %s", got)
	}
}

func TestRegistry_UnbindUnknown(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	useLogger(t, zap.New(core))

	r := New()
	err := r.Unbind(0x1000)
	if !errors.Is(err, bridgeerrors.ErrConsistency) {
		t.Fatalf("Expected consistency error, got %v", err)
	}
	if n := logs.FilterLevelExact(zapcore.DPanicLevel).Len(); n != 1 {
		t.Fatalf("Expected 1 DPanic entry, got %d", n)
	}
}

func TestRegistry_UnbindUnknownPanicsInDevelopment(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	useLogger(t, zap.New(core, zap.Development()))

	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic under a development logger")
		}
	}()
	New().Unbind(0x1000)
}

func TestMustRegister(t *testing.T) {
	const tag = "typereg_test.MustRegister"
	if !MustRegister(tag, ctorReturning(1)) {
		t.Fatal("Expected true")
	}
	if _, ok := Default().Constructor(tag); !ok {
		t.Fatal("Expected tag in default registry")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic on duplicate registration")
		}
	}()
	MustRegister(tag, ctorReturning(2))
}
