package supervisor

import "testing"

func newTestValidator() *Validator {
	cfg := DefaultConfig()
	cfg.normalize()
	return NewValidator(cfg)
}

func TestValidator_RejectsShortText(t *testing.T) {
	t.Parallel()
	v := newTestValidator()

	if v.Validate("short") {
		t.Error("text under the minimum length should be rejected")
	}
	if v.Validate("   padded   ") {
		t.Error("length is measured after trimming")
	}
	if !v.Validate("long enough to pass validation") {
		t.Error("ordinary text should pass")
	}
}

func TestValidator_RejectsOCRFailureMarkers(t *testing.T) {
	t.Parallel()
	v := newTestValidator()

	if v.Validate("screen region shows dark_content only") {
		t.Error("OCR failure marker should be rejected")
	}
	if v.Validate("DETECTED_FEATURES: edges and blobs here") {
		t.Error("marker matching is case-insensitive")
	}
}

func TestValidator_PureAcrossCalls(t *testing.T) {
	t.Parallel()
	v := newTestValidator()
	text := "a perfectly ordinary reply on screen"

	for i := 0; i < 3; i++ {
		if !v.Validate(text) {
			t.Fatalf("call %d changed the verdict", i)
		}
	}
}
