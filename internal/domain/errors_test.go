package domain

import (
	"errors"
	"testing"
)

func TestErrorConstructors(t *testing.T) {
	if got := Validation("name", "bad %s", "value").Kind; got != KindValidation {
		t.Errorf("Validation kind = %v, want %v", got, KindValidation)
	}
	if got := NotFound("cluster", "abc").Kind; got != KindNotFound {
		t.Errorf("NotFound kind = %v, want %v", got, KindNotFound)
	}
	if got := Conflict("version mismatch").Kind; got != KindConflict {
		t.Errorf("Conflict kind = %v, want %v", got, KindConflict)
	}
	if got := InUse("still referenced", []string{"a", "b"}).Kind; got != KindInUse {
		t.Errorf("InUse kind = %v, want %v", got, KindInUse)
	}
	if got := Forbidden("nope").Kind; got != KindForbidden {
		t.Errorf("Forbidden kind = %v, want %v", got, KindForbidden)
	}
	if got := Unauthenticated("no token").Kind; got != KindUnauthenticated {
		t.Errorf("Unauthenticated kind = %v, want %v", got, KindUnauthenticated)
	}
	if got := Timeout("too slow").Kind; got != KindTimeout {
		t.Errorf("Timeout kind = %v, want %v", got, KindTimeout)
	}
	if got := DependencyUnavailable("db down").Kind; got != KindDependencyUnavailable {
		t.Errorf("DependencyUnavailable kind = %v, want %v", got, KindDependencyUnavailable)
	}
	cause := errors.New("boom")
	internal := Internal(cause, "wrapping")
	if internal.Kind != KindInternal {
		t.Errorf("Internal kind = %v, want %v", internal.Kind, KindInternal)
	}
	if !errors.Is(internal, cause) {
		t.Error("Internal error must unwrap to its cause")
	}
}

func TestErrorMessageIncludesField(t *testing.T) {
	e := Validation("name", "must not be empty")
	if got := e.Error(); got != `validation: must not be empty (name)` {
		t.Errorf("Error() = %q", got)
	}
	e2 := Conflict("already exists")
	if got := e2.Error(); got != `conflict: already exists` {
		t.Errorf("Error() = %q", got)
	}
}

func TestAsAndKindOf(t *testing.T) {
	de, ok := As(NotFound("team", "x"))
	if !ok || de.Kind != KindNotFound {
		t.Fatal("As must report true for a *Error and return it")
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Fatal("As must report false for a non-domain error")
	}
	if KindOf(Forbidden("no")) != KindForbidden {
		t.Error("KindOf must return the wrapped error's kind")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Error("KindOf must default unknown errors to KindInternal")
	}
}

func TestInUseDetailsCarryReferents(t *testing.T) {
	e := InUse("cluster is referenced", []string{"route-1", "route-2"})
	refs, ok := e.Details.([]string)
	if !ok || len(refs) != 2 {
		t.Fatalf("InUse Details = %#v, want the referents slice", e.Details)
	}
}
