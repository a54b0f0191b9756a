package parser

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/ardanlabs/bindgen/diag"
)

func mustParse(t *testing.T, src string, opts Options) *Compilation {
	t.Helper()

	comp, err := Parse("/inc/test.h", src, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return comp
}

func memFS(files map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		s, ok := files[path]
		if !ok {
			return nil, fs.ErrNotExist
		}
		return []byte(s), nil
	}
}

func TestEnumValues(t *testing.T) {
	comp := mustParse(t, `
#define BASE 0x10
enum Foo { FOO_A, FOO_B = 4, FOO_C };
enum Bar { BAR_A = BASE, BAR_B, BAR_C = BAR_A << 2 };
enum Plain { PLAIN_A, PLAIN_B };
`, Options{})

	if len(comp.Enums) != 3 {
		t.Fatalf("got %d enums, want 3", len(comp.Enums))
	}

	tests := []struct {
		enum     int
		values   []int64
		explicit bool
	}{
		{0, []int64{0, 4, 5}, true},
		{1, []int64{16, 17, 64}, true},
		{2, []int64{0, 1}, false},
	}

	for _, tt := range tests {
		e := comp.Enums[tt.enum]
		if len(e.Items) != len(tt.values) {
			t.Fatalf("%s: got %d items, want %d", e.Name, len(e.Items), len(tt.values))
		}
		for i, v := range tt.values {
			if e.Items[i].Value != v {
				t.Errorf("%s.%s = %d, want %d", e.Name, e.Items[i].Name, e.Items[i].Value, v)
			}
		}
		if e.HasExplicitValue() != tt.explicit {
			t.Errorf("%s: HasExplicitValue = %v, want %v", e.Name, e.HasExplicitValue(), tt.explicit)
		}
	}
}

func TestNamelessEnumIsKept(t *testing.T) {
	comp := mustParse(t, "enum { ANON_A, ANON_B };\n", Options{})

	if len(comp.Enums) != 1 || comp.Enums[0].Name != "" {
		t.Fatalf("want one nameless enum, got %+v", comp.Enums)
	}
}

func TestFunction(t *testing.T) {
	comp := mustParse(t, "int Foo_DoThing(const char* name);\n", Options{})

	if len(comp.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(comp.Functions))
	}
	fn := comp.Functions[0]

	if fn.Name != "Foo_DoThing" {
		t.Errorf("name = %q", fn.Name)
	}
	if got := fn.Return.DisplayName(); got != "int" {
		t.Errorf("return = %q, want int", got)
	}
	if len(fn.Params) != 1 || fn.Params[0].Name != "name" {
		t.Fatalf("params = %+v", fn.Params)
	}
	if got := fn.Params[0].Type.DisplayName(); got != "const char*" {
		t.Errorf("param type = %q, want const char*", got)
	}

	ptr, ok := fn.Params[0].Type.(*Pointer)
	if !ok {
		t.Fatalf("param is %T, want *Pointer", fn.Params[0].Type)
	}
	q, ok := ptr.Elem.(*Qualified)
	if !ok || q.Qualifier != Const {
		t.Fatalf("pointee is %T, want const qualified", ptr.Elem)
	}
	if fn.Loc.Line != 1 || fn.Loc.Filename() != "test" || fn.Loc.Folder() != "inc" {
		t.Errorf("loc = %+v", fn.Loc)
	}
}

func TestAnonymousStructTypedef(t *testing.T) {
	comp := mustParse(t, "typedef struct { int x; float y; } Point;\n", Options{})

	if len(comp.Typedefs) != 0 {
		t.Errorf("anonymous struct typedef should not be kept as a typedef, got %d", len(comp.Typedefs))
	}
	if len(comp.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(comp.Records))
	}

	r := comp.Records[0]
	if r.Name != "Point" || !r.Complete || len(r.Fields) != 2 {
		t.Fatalf("record = %+v", r)
	}
	if r.Fields[1].Name != "y" || r.Fields[1].Type.DisplayName() != "float" {
		t.Errorf("field = %+v", r.Fields[1])
	}
}

func TestStructFields(t *testing.T) {
	comp := mustParse(t, `
struct Vec {
	int data[4];
	int grid[2][3];
	struct Vec* next;
	unsigned int flags : 3;
	union { int i; float f; };
};
`, Options{})

	if len(comp.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(comp.Records))
	}
	r := comp.Records[0]

	want := []struct{ name, display string }{
		{"data", "int[4]"},
		{"grid", "int[3][2]"},
		{"next", "Vec*"},
		{"flags", "unsigned int"},
		{"i", "int"},
		{"f", "float"},
	}
	if len(r.Fields) != len(want) {
		t.Fatalf("got %d fields, want %d: %+v", len(r.Fields), len(want), r.Fields)
	}
	for i, w := range want {
		if r.Fields[i].Name != w.name || r.Fields[i].Type.DisplayName() != w.display {
			t.Errorf("field %d = %s %s, want %s %s", i, r.Fields[i].Type.DisplayName(), r.Fields[i].Name, w.display, w.name)
		}
	}

	grid := r.Fields[1].Type.(*Array)
	if grid.Size != 2 {
		t.Errorf("outer dimension = %d, want 2", grid.Size)
	}
	if next := r.Fields[2].Type.(*Pointer); next.Elem != r {
		t.Errorf("self reference should resolve to the same record")
	}
}

func TestForwardDeclarationIsCompleted(t *testing.T) {
	comp := mustParse(t, `
typedef struct Window Window;
void show(Window* w);
struct Window { int w, h; };
`, Options{})

	if len(comp.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(comp.Records))
	}
	r := comp.Records[0]
	if !r.Complete || len(r.Fields) != 2 {
		t.Errorf("forward record was not completed: %+v", r)
	}

	td := comp.Typedefs[0]
	if td.Elem != r {
		t.Errorf("typedef should point at the completed record")
	}
}

func TestFunctionPointers(t *testing.T) {
	comp := mustParse(t, `
typedef void (*Callback)(int, void*);
void set_cb(void (*cb)(int code, void* user), void* user);
`, Options{})

	if len(comp.Typedefs) != 1 || !comp.Typedefs[0].IsFunction() {
		t.Fatalf("Callback should be a function typedef: %+v", comp.Typedefs)
	}

	fn := comp.Functions[0]
	ptr, ok := fn.Params[0].Type.(*Pointer)
	if !ok {
		t.Fatalf("cb is %T", fn.Params[0].Type)
	}
	ft, ok := ptr.Elem.(*FunctionType)
	if !ok || len(ft.Params) != 2 {
		t.Fatalf("cb points at %T", ptr.Elem)
	}
	if got := fn.Params[0].Type.DisplayName(); got != "void (*)(int, void*)" {
		t.Errorf("display = %q", got)
	}
}

func TestExportMacros(t *testing.T) {
	comp := mustParse(t, `
typedef uint32_t Uint32;
extern DECLSPEC int SDLCALL SDL_Init(Uint32 flags);
extern DECLSPEC const char * SDLCALL SDL_GetError(void);
`, Options{})

	if len(comp.Functions) != 2 {
		t.Fatalf("got %d functions, want 2; diagnostics:\n%s", len(comp.Functions), comp.Diagnostics)
	}

	init := comp.Functions[0]
	if init.Name != "SDL_Init" || init.Params[0].Type.DisplayName() != "Uint32" {
		t.Errorf("SDL_Init = %+v", init)
	}
	if got := comp.Functions[1].Return.DisplayName(); got != "const char*" {
		t.Errorf("SDL_GetError returns %q", got)
	}
}

func TestFunctionLikeMacros(t *testing.T) {
	comp := mustParse(t, `
#define KEYCODE(X) (X | 0x40000000)
#define PAIR(hi, lo) ((hi) << 8 | (lo))
#define NAMED(x) Key_ ## x
#define API(ret) extern ret
#define FIRST(v, ...) v
enum NAMED(Code) {
	KEY_A = 'a',
	KEY_CAPS = KEYCODE(57),
	KEY_F1 = KEYCODE(KEYCODE(58)),
	KEY_PAIR = PAIR(1, 2),
	KEY_FIRST = FIRST(7, 8, 9)
};
API(int) Key_Get(void);
`, Options{})

	if d := comp.Diagnostics.ByCode(diag.EnumValue); len(d) != 0 {
		t.Errorf("unexpected diagnostics:\n%s", d)
	}
	if len(comp.Enums) != 1 || comp.Enums[0].Name != "Key_Code" {
		t.Fatalf("enums = %+v", comp.Enums)
	}

	want := []int64{'a', 0x40000039, 0x4000003A, 258, 7}
	items := comp.Enums[0].Items
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, v := range want {
		if items[i].Value != v {
			t.Errorf("%s = %#x, want %#x", items[i].Name, items[i].Value, v)
		}
	}

	if len(comp.Functions) != 1 || comp.Functions[0].Name != "Key_Get" {
		t.Fatalf("functions = %+v", comp.Functions)
	}
	if got := comp.Functions[0].Return.DisplayName(); got != "int" {
		t.Errorf("Key_Get returns %q", got)
	}
}

func TestUnexpandableEnumValue(t *testing.T) {
	comp := mustParse(t, `
#define KEYCODE(X) (X | 0x40000000)
enum Key { KEY_A = 1, KEY_B = KEYCODE(1, 2), KEY_C = };
`, Options{})

	if d := comp.Diagnostics.ByCode(diag.EnumValue); len(d) != 2 {
		t.Errorf("got %d enum-value diagnostics, want 2:\n%s", len(d), comp.Diagnostics)
	}

	if len(comp.Enums) != 1 || len(comp.Enums[0].Items) != 3 {
		t.Fatalf("enums = %+v", comp.Enums)
	}
	items := comp.Enums[0].Items
	for i, v := range []int64{1, 2, 3} {
		if items[i].Value != v {
			t.Errorf("%s = %d, want %d", items[i].Name, items[i].Value, v)
		}
	}
}

func TestFunctionLikeMacroInCondition(t *testing.T) {
	comp := mustParse(t, `
#define VERSION(major, minor) ((major) * 100 + (minor))
#if VERSION(2, 1) >= VERSION(2, 0)
int newer(void);
#else
int older(void);
#endif
`, Options{})

	if len(comp.Functions) != 1 || comp.Functions[0].Name != "newer" {
		t.Errorf("functions = %+v", comp.Functions)
	}
}

func TestRepeatedPrototype(t *testing.T) {
	comp := mustParse(t, `
int Foo_DoThing(const char* name);
int Foo_DoThing(const char* name);
void Foo_DoThing(int count);
`, Options{})

	if len(comp.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(comp.Functions))
	}
	if got := comp.Functions[0].Return.DisplayName(); got != "int" {
		t.Errorf("the first declaration should win, return = %q", got)
	}

	dups := comp.Diagnostics.ByCode(diag.DuplicateFunction)
	if len(dups) != 1 || !comp.Diagnostics.HasErrors() {
		t.Errorf("want one conflicting redeclaration error:\n%s", comp.Diagnostics)
	}
}

func TestConditionals(t *testing.T) {
	src := `
#define FOO 1
#if FOO && !defined(BAR)
int yes(void);
#else
int no(void);
#endif
#ifdef BAR
int bar(void);
#endif
#if 0
int never(void);
#endif
`

	tests := []struct {
		defines []string
		want    []string
	}{
		{nil, []string{"yes"}},
		{[]string{"BAR"}, []string{"no", "bar"}},
	}

	for _, tt := range tests {
		comp := mustParse(t, src, Options{Defines: tt.defines})

		var got []string
		for _, f := range comp.Functions {
			got = append(got, f.Name)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("defines %v: got %v, want %v", tt.defines, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("defines %v: got %v, want %v", tt.defines, got, tt.want)
			}
		}
	}
}

func TestIncludes(t *testing.T) {
	files := map[string]string{
		"/inc/main.h":  "#include \"types.h\"\nvoid use(Thing* t);\n#include <sys.h>\nsys_t sys(void);\n",
		"/inc/types.h": "typedef struct Thing Thing;\n",
		"/sys/sys.h":   "typedef int sys_t;\nint hidden(void);\n",
	}
	opts := Options{SystemIncludeFolders: []string{"/sys"}, ReadFile: memFS(files)}

	comp, err := ParseFiles([]string{"/inc/main.h"}, opts)
	if err != nil {
		t.Fatalf("ParseFiles: %v", err)
	}

	if len(comp.Files) != 2 {
		t.Errorf("files = %v, want main.h and types.h", comp.Files)
	}
	if len(comp.Typedefs) != 1 || comp.Typedefs[0].Loc.Path != "/inc/types.h" {
		t.Fatalf("typedefs = %+v", comp.Typedefs)
	}
	if len(comp.Functions) != 2 {
		t.Fatalf("functions = %+v", comp.Functions)
	}

	use := comp.Functions[0]
	if use.Name != "use" || use.Loc.Path != "/inc/main.h" || use.Loc.Line != 2 {
		t.Errorf("use = %+v", use)
	}

	sys := comp.Functions[1]
	if td, ok := sys.Return.(*Typedef); !ok || !td.IsPrimitive() {
		t.Errorf("sys_t should resolve through the system header, got %T", sys.Return)
	}
}

func TestMissingHeader(t *testing.T) {
	_, err := ParseFiles([]string{"/nope.h"}, Options{ReadFile: memFS(nil)})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestMissingQuotedInclude(t *testing.T) {
	comp := mustParse(t, "#include \"gone.h\"\nint f(void);\n", Options{ReadFile: memFS(nil)})

	if len(comp.Diagnostics.ByCode(diag.IncludeNotFound)) != 1 {
		t.Errorf("diagnostics = %s", comp.Diagnostics)
	}
	if len(comp.Functions) != 1 {
		t.Errorf("parsing should continue past the missing include")
	}
}

func TestBodiesAndLinkage(t *testing.T) {
	comp := mustParse(t, `
static inline int twice(int x) { return x * 2; }
extern "C" {
int after(void);
}
int printf_like(const char* fmt, ...);
int counter = 0;
`, Options{})

	if len(comp.Functions) != 2 {
		t.Fatalf("functions = %+v", comp.Functions)
	}
	if comp.Functions[0].Name != "after" {
		t.Errorf("first function = %s, want after", comp.Functions[0].Name)
	}
	if !comp.Functions[1].Variadic {
		t.Errorf("printf_like should be variadic")
	}
	if len(comp.Diagnostics.ByCode(diag.VariadicFunction)) != 1 {
		t.Errorf("want a variadic diagnostic, got %s", comp.Diagnostics)
	}
}

func TestParseErrorIsDiagnostic(t *testing.T) {
	comp := mustParse(t, "int 5x;\nint fine(void);\n", Options{})

	if len(comp.Diagnostics.ByCode(diag.ParseError)) != 1 {
		t.Errorf("diagnostics = %s", comp.Diagnostics)
	}
	if len(comp.Functions) != 1 || comp.Functions[0].Loc.Line != 2 {
		t.Errorf("functions = %+v", comp.Functions)
	}
}

func TestBuiltinTypes(t *testing.T) {
	comp := mustParse(t, "void logv(const char* fmt, va_list ap);\nsize_t len(void);\n", Options{})

	ap := comp.Functions[0].Params[1].Type.(*Typedef)
	arr, ok := ap.Elem.(*Array)
	if !ok || arr.Size != 1 {
		t.Fatalf("va_list = %T", ap.Elem)
	}
	if rec, ok := arr.Elem.(*Record); !ok || rec.Name != "__va_list_tag" {
		t.Errorf("va_list element = %T", arr.Elem)
	}

	size := comp.Functions[1].Return.(*Typedef)
	if size.Elem.(*Primitive).Kind != UnsignedLong {
		t.Errorf("size_t = %s", size.Elem.DisplayName())
	}
}

func TestPrimitiveFromWords(t *testing.T) {
	tests := []struct {
		words []string
		want  PrimitiveKind
	}{
		{[]string{"int"}, Int},
		{[]string{"unsigned"}, UnsignedInt},
		{[]string{"signed", "char"}, SignedChar},
		{[]string{"unsigned", "char"}, UnsignedChar},
		{[]string{"long", "long"}, LongLong},
		{[]string{"unsigned", "long", "long", "int"}, UnsignedLongLong},
		{[]string{"long", "double"}, LongDouble},
		{[]string{"short", "int"}, Short},
		{[]string{"_Bool"}, Bool},
	}

	for _, tt := range tests {
		if got := primitiveFromWords(tt.words); got != tt.want {
			t.Errorf("%v = %s, want %s", tt.words, got, tt.want)
		}
	}
}
