package partition

import (
	"io/fs"
	"slices"
	"testing"

	"github.com/janpfeifer/must"

	"github.com/ardanlabs/bindgen/diag"
	"github.com/ardanlabs/bindgen/parser"
	"github.com/ardanlabs/bindgen/target"
	"github.com/ardanlabs/bindgen/typemap"
)

var headers = map[string]string{
	"/src/SDL/SDL_stdinc.h": `
typedef unsigned int Uint32;
int SDL_Init(Uint32 flags);
void SDL_free(void* mem);
enum { SDL_UNNAMED_A, SDL_UNNAMED_B };
`,
	"/src/SDL/SDL_video.h": `
#include "SDL_stdinc.h"
typedef struct SDL_Window SDL_Window;
typedef enum { SDL_WINDOW_FULLSCREEN = 1, SDL_WINDOW_HIDDEN = 8 } SDL_WindowFlags;
typedef struct SDL_Point { int x; int type; } SDL_Point;
SDL_Window* SDL_CreateWindow(const char* title, int w, int h, Uint32 flags);
void SDL_DestroyWindow(SDL_Window* window);
void SDL_GL_Swap(int, SDL_Window* module);
const char* SDL_GetError(void);
`,
	"/src/SDL/SDL_test.h": `
void SDL_TestThing(int type);
`,
}

func readFile(path string) ([]byte, error) {
	s, ok := headers[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(s), nil
}

func defaultOptions() Options {
	return Options{
		Module:              "sdl",
		ExcludeFunctions:    []string{"SDL_free"},
		ExcludedFiles:       []string{"SDL_test"},
		ExcludedFromWrapper: []string{"SDL/SDL_stdinc"},
		StripEnumPrefix:     true,
	}
}

func run(t *testing.T, d *target.Dialect, opts Options) *Result {
	t.Helper()

	paths := []string{"/src/SDL/SDL_video.h", "/src/SDL/SDL_test.h"}
	comp := must.M1(parser.ParseFiles(paths, parser.Options{ReadFile: readFile}))

	env, _ := typemap.Build(d, comp, typemap.Options{Prefixes: []string{"SDL_"}})
	return Partition(comp, env, opts)
}

func functionNames(groups []*Group) []string {
	var names []string
	for _, g := range groups {
		for _, f := range g.Functions {
			names = append(names, f.Name)
		}
	}
	return names
}

func TestGroups(t *testing.T) {
	res := run(t, target.NewV(), defaultOptions())

	if len(res.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(res.Groups))
	}

	// The typedef in SDL_stdinc.h is seen first through the include.
	stdinc, video := res.Groups[0], res.Groups[1]
	if stdinc.Section() != "SDL/SDL_stdinc" || video.Section() != "SDL/SDL_video" {
		t.Fatalf("groups = %s, %s", stdinc.Section(), video.Section())
	}

	if len(stdinc.Enums) != 0 {
		t.Errorf("nameless enum was kept: %+v", stdinc.Enums)
	}
	if len(stdinc.Functions) != 1 || stdinc.Functions[0].TargetName != "sdl_init" {
		t.Errorf("stdinc functions = %+v", stdinc.Functions)
	}
	if stdinc.Functions[0].Wrapped {
		t.Errorf("SDL_Init is in a wrapper-excluded file")
	}

	want := []string{"SDL_CreateWindow", "SDL_DestroyWindow", "SDL_GL_Swap", "SDL_GetError"}
	if got := functionNames([]*Group{video}); !slices.Equal(got, want) {
		t.Errorf("video functions = %v, want %v", got, want)
	}
	for _, f := range video.Functions {
		if !f.Wrapped {
			t.Errorf("%s should be wrapped", f.Name)
		}
	}

	if len(video.Records) != 2 || video.Records[0].Name != "C.SDL_Window" || video.Records[1].Name != "C.SDL_Point" {
		t.Errorf("records = %+v", video.Records)
	}

	wantHeaders := []string{"/src/SDL/SDL_stdinc.h", "/src/SDL/SDL_video.h"}
	if !slices.Equal(res.Headers, wantHeaders) {
		t.Errorf("headers = %v, want %v", res.Headers, wantHeaders)
	}

	if len(res.Diagnostics.ByCode(diag.NamelessEnum)) != 1 {
		t.Errorf("expected one nameless enum diagnostic, got:\n%s", res.Diagnostics)
	}
}

func TestFunctions(t *testing.T) {
	res := run(t, target.NewV(), defaultOptions())
	video := res.Groups[1]

	create := video.Functions[0]
	if create.TargetName != "create_window" || create.Return != "&C.SDL_Window" {
		t.Errorf("create = %+v", create)
	}

	wantParams := []Param{
		{Name: "title", TargetName: "title", NativeType: "const char*", Type: "byteptr"},
		{Name: "w", TargetName: "w", NativeType: "int", Type: "int"},
		{Name: "h", TargetName: "h", NativeType: "int", Type: "int"},
		{Name: "flags", TargetName: "flags", NativeType: "Uint32", Type: "u32"},
	}
	if !slices.Equal(create.Params, wantParams) {
		t.Errorf("params = %+v\nwant %+v", create.Params, wantParams)
	}

	if destroy := video.Functions[1]; destroy.Return != "" || destroy.NativeReturn != "" {
		t.Errorf("void return = %q (%q)", destroy.Return, destroy.NativeReturn)
	}

	swap := video.Functions[2]
	if swap.TargetName != "gl_swap" {
		t.Errorf("swap name = %q", swap.TargetName)
	}
	if p := swap.Params[0]; p.Name != "arg0" || p.TargetName != "arg0" {
		t.Errorf("unnamed param = %+v", p)
	}
	if p := swap.Params[1]; p.Name != "mod" || p.TargetName != "mod" {
		t.Errorf("reserved param = %+v", p)
	}

	if get := video.Functions[3]; get.Return != "byteptr" || len(get.Params) != 0 {
		t.Errorf("get error = %+v", get)
	}
}

func TestEnumsAndRecords(t *testing.T) {
	res := run(t, target.NewV(), defaultOptions())
	video := res.Groups[1]

	if len(video.Enums) != 1 {
		t.Fatalf("enums = %+v", video.Enums)
	}
	flags := video.Enums[0]
	if flags.Name != "WindowFlags" || !flags.Explicit {
		t.Errorf("enum = %+v", flags)
	}
	want := []Member{
		{Native: "SDL_WINDOW_FULLSCREEN", Name: "fullscreen", Value: 1},
		{Native: "SDL_WINDOW_HIDDEN", Name: "hidden", Value: 8},
	}
	if !slices.Equal(flags.Members, want) {
		t.Errorf("members = %+v, want %+v", flags.Members, want)
	}

	point := video.Records[1]
	wantFields := []Field{
		{Native: "x", Name: "x", Type: "int"},
		{Native: "type", Name: "@type", Type: "int"},
	}
	if !slices.Equal(point.Fields, wantFields) {
		t.Errorf("fields = %+v, want %+v", point.Fields, wantFields)
	}

	opts := defaultOptions()
	opts.StripEnumPrefix = false
	res = run(t, target.NewV(), opts)
	if got := res.Groups[1].Enums[0].Members[0].Name; got != "sdl_window_fullscreen" {
		t.Errorf("unstripped member = %q", got)
	}
}

func TestSingleFile(t *testing.T) {
	opts := defaultOptions()
	opts.SingleFile = true

	res := run(t, target.NewV(), opts)
	if len(res.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(res.Groups))
	}

	want := []string{"SDL_Init", "SDL_CreateWindow", "SDL_DestroyWindow", "SDL_GL_Swap", "SDL_GetError"}
	if got := functionNames(res.Groups); !slices.Equal(got, want) {
		t.Errorf("functions = %v, want %v", got, want)
	}
}

func TestEveryFunctionOnce(t *testing.T) {
	for _, single := range []bool{false, true} {
		opts := defaultOptions()
		opts.SingleFile = single
		opts.ExcludedFiles = nil

		res := run(t, target.NewV(), opts)

		counts := make(map[string]int)
		for _, name := range functionNames(res.Groups) {
			counts[name]++
		}

		for _, name := range []string{"SDL_Init", "SDL_CreateWindow", "SDL_DestroyWindow", "SDL_GL_Swap", "SDL_GetError", "SDL_TestThing"} {
			if counts[name] != 1 {
				t.Errorf("single=%v: %s appears %d times", single, name, counts[name])
			}
		}
		if counts["SDL_free"] != 0 {
			t.Errorf("single=%v: excluded SDL_free was kept", single)
		}
	}
}

func TestReservedWithoutSubstitution(t *testing.T) {
	comp := must.M1(parser.Parse("/inc/foo.h", "void foo_wait(int when);", parser.Options{}))
	env, _ := typemap.Build(target.NewOdin(), comp, typemap.Options{Prefixes: []string{"foo_"}})

	res := Partition(comp, env, Options{Module: "foo"})

	f := res.Groups[0].Functions[0]
	if f.TargetName != "wait" || f.Params[0].Name != "when_" || f.Params[0].Type != "i32" {
		t.Errorf("function = %+v", f)
	}
	if len(res.Diagnostics.ByCode(diag.ReservedWord)) == 0 {
		t.Errorf("expected a reserved word diagnostic, got:\n%s", res.Diagnostics)
	}
}

func TestOptions(t *testing.T) {
	o := Options{
		ExcludeFunctions: []string{"Internal"},
		ExcludedFiles:    []string{"SDL_test", "GL/glext"},
	}

	if !o.IsFunctionExcluded("SDL_InternalThing") || o.IsFunctionExcluded("SDL_Init") {
		t.Errorf("function exclusion is substring based")
	}
	if !o.IsFileExcluded("SDL_test", "SDL") || !o.IsFileExcluded("glext", "GL") || o.IsFileExcluded("glext", "other") {
		t.Errorf("file exclusion matches filename or folder/filename")
	}
}
