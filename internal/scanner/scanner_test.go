package scanner

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractSimpleDerive(t *testing.T) {
	s := New()
	content := "#[derive(Clone, Copy)]\nstruct S;\n"

	findings := s.Extract("test/repo", "src/lib.rs", content)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}

	f := findings[0]
	if !reflect.DeepEqual(f.Derives, []string{"Clone", "Copy"}) {
		t.Errorf("unexpected derives: %v", f.Derives)
	}
	if f.LineNumber != 1 {
		t.Errorf("expected line 1, got %d", f.LineNumber)
	}
	if f.FullLine != "#[derive(Clone, Copy)]" {
		t.Errorf("unexpected full line: %q", f.FullLine)
	}
	if f.Repository != "test/repo" || f.FilePath != "src/lib.rs" {
		t.Errorf("unexpected location: %s %s", f.Repository, f.FilePath)
	}
}

func TestExtractBothTiersAgreeOnSimpleInput(t *testing.T) {
	content := "#[derive(Clone, Copy)]\nstruct S;\n"
	s := New()

	structured := s.Extract("test/repo", "src/lib.rs", content)
	text := s.ExtractTextOnly("test/repo", "src/lib.rs", content)

	if !reflect.DeepEqual(structured, text) {
		t.Errorf("tier disagreement:\nstructured: %+v\ntext: %+v", structured, text)
	}
}

func TestExtractPathQualifiedDerives(t *testing.T) {
	s := New()
	content := `#[derive(Debug, Clone, serde::Serialize, serde::Deserialize)]
pub struct ComplexStruct {
    field: String,
}
`
	findings := s.Extract("test/repo", "src/lib.rs", content)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	want := []string{"Debug", "Clone", "serde::Serialize", "serde::Deserialize"}
	if !reflect.DeepEqual(findings[0].Derives, want) {
		t.Errorf("got %v, want %v", findings[0].Derives, want)
	}
}

func TestExtractMultilineDeriveStructuredOnly(t *testing.T) {
	s := New()
	content := "#[derive(\n    Clone,\n    Debug,\n)]\nenum E {\n    A,\n}\n"

	structured := s.Extract("test/repo", "src/lib.rs", content)
	if len(structured) != 1 {
		t.Fatalf("expected 1 structured finding, got %d", len(structured))
	}
	if !reflect.DeepEqual(structured[0].Derives, []string{"Clone", "Debug"}) {
		t.Errorf("unexpected derives: %v", structured[0].Derives)
	}
	if structured[0].LineNumber != 1 {
		t.Errorf("expected attribute line 1, got %d", structured[0].LineNumber)
	}

	if text := s.ExtractTextOnly("test/repo", "src/lib.rs", content); len(text) != 0 {
		t.Errorf("text tier should miss multi-line derives, got %v", text)
	}
}

func TestExtractThroughInterveningAttributes(t *testing.T) {
	s := New()
	content := `#[derive(Clone)]
#[serde(rename_all = "camelCase")]
pub struct Wrapped;
`
	findings := s.Extract("test/repo", "src/lib.rs", content)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if !reflect.DeepEqual(findings[0].Derives, []string{"Clone"}) {
		t.Errorf("unexpected derives: %v", findings[0].Derives)
	}
}

func TestExtractIgnoresNonTypeItems(t *testing.T) {
	s := New()
	content := `#[derive_builder::setter]
fn not_a_type() {}

#[inline]
fn also_not() {}
`
	if findings := s.Extract("test/repo", "src/lib.rs", content); len(findings) != 0 {
		t.Errorf("expected no findings, got %v", findings)
	}
}

func TestExtractIgnoresCommentsAndStrings(t *testing.T) {
	s := New()
	content := `// #[derive(Clone)]
/* #[derive(Copy)]
   struct Fake; */
const EXAMPLE: &str = "#[derive(Debug)]";
#[derive(PartialEq)]
struct Real;
`
	findings := s.Extract("test/repo", "src/lib.rs", content)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %v", len(findings), findings)
	}
	if !reflect.DeepEqual(findings[0].Derives, []string{"PartialEq"}) {
		t.Errorf("unexpected derives: %v", findings[0].Derives)
	}
	if findings[0].LineNumber != 5 {
		t.Errorf("expected line 5, got %d", findings[0].LineNumber)
	}
}

func TestExtractNestedTypes(t *testing.T) {
	s := New()
	content := `fn helper() {
    #[derive(Default)]
    struct Local {
        n: usize,
    }
}
`
	findings := s.Extract("test/repo", "src/lib.rs", content)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding for nested type, got %d", len(findings))
	}
	if findings[0].LineNumber != 2 {
		t.Errorf("expected line 2, got %d", findings[0].LineNumber)
	}
}

func TestExtractFiltersInvalidTokens(t *testing.T) {
	s := New()
	content := "#[derive(Clone, Foo<T>, Debug)]\nstruct S;\n"

	findings := s.Extract("test/repo", "src/lib.rs", content)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if !reflect.DeepEqual(findings[0].Derives, []string{"Clone", "Debug"}) {
		t.Errorf("expected invalid token dropped, got %v", findings[0].Derives)
	}
}

func TestExtractUnion(t *testing.T) {
	s := New()
	content := "#[derive(Clone, Copy)]\nunion Bits {\n    f: f32,\n    i: u32,\n}\n"

	if findings := s.Extract("test/repo", "src/lib.rs", content); len(findings) != 1 {
		t.Fatalf("expected 1 union finding, got %d", len(findings))
	}
}

func TestExtractPreservesDuplicatesAndOrder(t *testing.T) {
	s := New()
	content := "#[derive(Debug, Clone, Debug)]\nstruct S;\n"

	findings := s.Extract("test/repo", "src/lib.rs", content)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if !reflect.DeepEqual(findings[0].Derives, []string{"Debug", "Clone", "Debug"}) {
		t.Errorf("expected order and duplicates preserved, got %v", findings[0].Derives)
	}
}

func TestExtractPathologicalInputNeverPanics(t *testing.T) {
	s := New()
	inputs := []string{
		strings.Repeat("{", 100_000),
		strings.Repeat("#[", 50_000),
		strings.Repeat("\"", 99_999),
		"#[derive(" + strings.Repeat("A,", 10_000),
		"r#\"" + strings.Repeat("x", 1000),
		"'",
	}
	for i, input := range inputs {
		first := s.Extract("test/repo", "src/bad.rs", input)
		second := s.Extract("test/repo", "src/bad.rs", input)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("input %d: extraction not idempotent", i)
		}
	}
}

func TestExtractGuardRoutesToTextTier(t *testing.T) {
	s := New()
	// A multi-line derive only the structured tier can see, padded past the
	// guard's size threshold so the guard forces the text tier.
	derive := "#[derive(\n    Clone,\n)]\nstruct S;\n"
	padding := "// " + strings.Repeat("x", DefaultGuardThresholds().MaxContentBytes) + "\n"

	if findings := s.Extract("test/repo", "src/lib.rs", derive); len(findings) != 1 {
		t.Fatalf("expected structured tier to find multi-line derive, got %d", len(findings))
	}
	if findings := s.Extract("test/repo", "src/lib.rs", padding+derive); len(findings) != 0 {
		t.Errorf("expected guard to route oversized file to text tier, got %v", findings)
	}
}

func TestExtractGuardPathFragment(t *testing.T) {
	s := New()
	derive := "#[derive(\n    Clone,\n)]\nstruct S;\n"

	findings := s.Extract("rust-lang/rust", "tests/ui/a.rs", derive)
	if len(findings) != 0 {
		t.Errorf("expected path fragment to force text tier, got %v", findings)
	}
}

func TestExtractTextOnlyKeepsUnfilteredTokens(t *testing.T) {
	s := New()
	content := "#[derive(Clone, Foo<T>)]\nstruct S;\n"

	findings := s.ExtractTextOnly("test/repo", "src/lib.rs", content)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if !reflect.DeepEqual(findings[0].Derives, []string{"Clone", "Foo<T>"}) {
		t.Errorf("text tier must not filter token charset, got %v", findings[0].Derives)
	}
}

func TestExtractEmptyDeriveList(t *testing.T) {
	s := New()
	content := "#[derive()]\nstruct S;\n"

	if findings := s.Extract("test/repo", "src/lib.rs", content); len(findings) != 0 {
		t.Errorf("expected no findings for empty derive list, got %v", findings)
	}
	if findings := s.ExtractTextOnly("test/repo", "src/lib.rs", content); len(findings) != 0 {
		t.Errorf("expected no text findings for empty derive list, got %v", findings)
	}
}
